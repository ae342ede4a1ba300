package search

import (
	"sort"
	"strings"
	"sync"

	"top-pick/models"
	"top-pick/selector"
)

// Engine looks up candidates from the most recent holdings fetch.
type Engine interface {
	Search(query string) []models.Candidate
	GetByTicker(ticker string) *models.Candidate
	Reindex(candidates []models.Candidate) error
}

// symbolOf returns the ticker without its exchange suffix, or "" when the
// record has none.
func symbolOf(c models.Candidate) string {
	s, err := selector.Ticker(c.BaseTicker)
	if err != nil {
		return ""
	}
	return s
}

type InMemoryEngine struct {
	mu         sync.RWMutex
	candidates []models.Candidate
}

func NewInMemoryEngine(candidates []models.Candidate) *InMemoryEngine {
	return &InMemoryEngine{candidates: candidates}
}

func (e *InMemoryEngine) Reindex(candidates []models.Candidate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candidates = append([]models.Candidate(nil), candidates...)
	return nil
}

func (e *InMemoryEngine) Search(query string) []models.Candidate {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var results []models.Candidate
	q := strings.ToLower(query)
	for _, c := range e.candidates {
		if strings.HasPrefix(strings.ToLower(symbolOf(c)), q) ||
			strings.Contains(strings.ToLower(c.Name), q) {
			results = append(results, c)
		}
	}
	sortByRank(results)
	return results
}

func (e *InMemoryEngine) GetByTicker(ticker string) *models.Candidate {
	e.mu.RLock()
	defer e.mu.RUnlock()

	want, _, _ := strings.Cut(ticker, ":")
	for _, c := range e.candidates {
		if strings.EqualFold(symbolOf(c), want) {
			c := c
			return &c
		}
	}
	return nil
}

// sortByRank orders results by rank, keeping input order for equal ranks.
func sortByRank(cs []models.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Rank.Less(cs[j].Rank) })
}
