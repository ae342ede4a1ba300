package search

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"top-pick/models"
)

// BleveEngine keeps an in-memory bleve index of the current holdings. The
// index is rebuilt wholesale on every Reindex, like the selected record.
type BleveEngine struct {
	log logrus.FieldLogger

	mu         sync.RWMutex
	index      bleve.Index
	candidates map[string]models.Candidate
}

func NewBleveEngine(candidates []models.Candidate, log logrus.FieldLogger) (*BleveEngine, error) {
	e := &BleveEngine{log: log}
	if err := e.Reindex(candidates); err != nil {
		return nil, err
	}
	return e, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	// tickers are matched whole or by prefix, never tokenized
	tickerField := bleve.NewKeywordFieldMapping()
	tickerField.Store = false
	doc.AddFieldMappingsAt("ticker", tickerField)

	textField := bleve.NewTextFieldMapping()
	textField.Store = false
	doc.AddFieldMappingsAt("name", textField)
	doc.AddFieldMappingsAt("description", textField)

	rankField := bleve.NewNumericFieldMapping()
	rankField.Store = false
	doc.AddFieldMappingsAt("rank", rankField)

	indexMapping.DefaultMapping = doc
	return indexMapping
}

func (e *BleveEngine) Reindex(candidates []models.Candidate) error {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return errors.Wrap(err, "creating index")
	}

	byID := make(map[string]models.Candidate, len(candidates))
	batch := index.NewBatch()
	for i, c := range candidates {
		id := strconv.Itoa(i)
		doc := map[string]interface{}{
			"ticker":      strings.ToLower(symbolOf(c)),
			"name":        c.Name,
			"description": c.Description,
		}
		if c.Rank.Valid {
			doc["rank"] = c.Rank.Value
		}
		if err := batch.Index(id, doc); err != nil {
			index.Close()
			return errors.Wrapf(err, "indexing candidate %s", c.BaseTicker)
		}
		byID[id] = c
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return errors.Wrap(err, "executing batch")
	}

	e.mu.Lock()
	old := e.index
	e.index = index
	e.candidates = byID
	e.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			e.log.WithError(err).Warn("closing previous index")
		}
	}
	e.log.WithField("candidates", len(candidates)).Debug("holdings indexed")
	return nil
}

func (e *BleveEngine) Search(query string) []models.Candidate {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	q := strings.ToLower(query)

	// 1. Exact ticker (boost 10)
	exact := bleve.NewTermQuery(q)
	exact.SetField("ticker")
	exact.SetBoost(10.0)

	// 2. Ticker prefix (boost 5)
	prefix := bleve.NewPrefixQuery(q)
	prefix.SetField("ticker")
	prefix.SetBoost(5.0)

	// 3. Name match (boost 3)
	name := bleve.NewMatchQuery(query)
	name.SetField("name")
	name.SetBoost(3.0)

	// 4. Partial name (boost 1.5)
	partial := bleve.NewWildcardQuery("*" + q + "*")
	partial.SetField("name")
	partial.SetBoost(1.5)

	// 5. Description match (boost 1)
	desc := bleve.NewMatchQuery(query)
	desc.SetField("description")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(exact, prefix, name, partial, desc))
	req.Size = 100

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.index == nil {
		return nil
	}

	res, err := e.index.Search(req)
	if err != nil {
		e.log.WithError(err).WithField("query", query).Warn("search failed")
		return []models.Candidate{}
	}

	type scored struct {
		c     models.Candidate
		score float64
	}
	hits := make([]scored, 0, len(res.Hits))
	for _, h := range res.Hits {
		if c, ok := e.candidates[h.ID]; ok {
			hits = append(hits, scored{c: c, score: h.Score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].c.Rank.Less(hits[j].c.Rank)
	})

	out := make([]models.Candidate, len(hits))
	for i, h := range hits {
		out[i] = h.c
	}
	return out
}

func (e *BleveEngine) GetByTicker(ticker string) *models.Candidate {
	symbol, _, _ := strings.Cut(ticker, ":")
	tq := bleve.NewTermQuery(strings.ToLower(symbol))
	tq.SetField("ticker")

	req := bleve.NewSearchRequest(tq)
	req.Size = 100

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.index == nil {
		return nil
	}

	res, err := e.index.Search(req)
	if err != nil || len(res.Hits) == 0 {
		return nil
	}

	// several rows can share a ticker; the earliest in the file wins
	best := -1
	for _, h := range res.Hits {
		if n, err := strconv.Atoi(h.ID); err == nil && (best < 0 || n < best) {
			best = n
		}
	}
	c, ok := e.candidates[strconv.Itoa(best)]
	if !ok {
		return nil
	}
	return &c
}

func (e *BleveEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index == nil {
		return nil
	}
	err := e.index.Close()
	e.index = nil
	return err
}
