package widget

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"top-pick/config"
	"top-pick/loader"
	"top-pick/models"
	"top-pick/search"
	"top-pick/selector"
	"top-pick/visibility"
)

type fakeSource struct {
	mu         sync.Mutex
	candidates []models.Candidate
	err        error
	calls      int
}

func (f *fakeSource) Fetch(ctx context.Context) ([]models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func (f *fakeSource) set(cs []models.Candidate, err error) {
	f.mu.Lock()
	f.candidates, f.err = cs, err
	f.mu.Unlock()
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recorder is a Surface that keeps every projection it receives.
type recorder struct {
	displays  []models.DisplayFields
	fallbacks []string
	states    []visibility.State
}

func (r *recorder) ApplyDisplay(d models.DisplayFields) { r.displays = append(r.displays, d) }
func (r *recorder) ShowFallback(msg string)             { r.fallbacks = append(r.fallbacks, msg) }
func (r *recorder) SetVisibility(s visibility.State)    { r.states = append(r.states, s) }

type fixedQuoter struct {
	price string
	err   error
}

func (q fixedQuoter) LastPrice(context.Context, string) (string, error) { return q.price, q.err }

func quiet() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func candidate(rank float64, ticker, name string) models.Candidate {
	return models.Candidate{
		Rank:        models.NewRank(rank),
		BaseTicker:  ticker,
		Name:        name,
		Description: "Makes things people buy every single day",
	}
}

func holdings() []models.Candidate {
	return []models.Candidate{
		candidate(3, "MSFT:NASDAQ", "Microsoft"),
		candidate(1, "AAPL:NASDAQ", "Apple"),
		candidate(2, "GOOG:NASDAQ", "Alphabet"),
	}
}

func newWidget(t *testing.T, src loader.Source, opts ...Option) *Widget {
	t.Helper()
	opts = append([]Option{WithLogger(quiet())}, opts...)
	w, err := New(src, config.DefaultWidget(), opts...)
	require.NoError(t, err)
	return w
}

func TestNewDefaults(t *testing.T) {
	w := newWidget(t, &fakeSource{})

	assert.Regexp(t, `^top-pick-\d+$`, w.ID())
	assert.Equal(t, visibility.StateHidden, w.State())
	snap := w.Snapshot()
	assert.False(t, snap.Loaded())
	assert.Equal(t, "HIDDEN", snap.Visibility)
	_, ok := w.Selected()
	assert.False(t, ok)
}

func TestNewRejects(t *testing.T) {
	_, err := New(nil, config.DefaultWidget())
	assert.Error(t, err)

	_, err = New(&fakeSource{}, config.DefaultWidget(), WithID("1bad id"))
	assert.Error(t, err)

	cfg := config.DefaultWidget()
	cfg.ScrollThreshold = 0
	_, err = New(&fakeSource{}, cfg)
	assert.Error(t, err)
}

func TestInstancesGetDistinctIDs(t *testing.T) {
	a := newWidget(t, &fakeSource{})
	b := newWidget(t, &fakeSource{})
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestRefreshSelectsLowestRank(t *testing.T) {
	rec := &recorder{}
	w := newWidget(t, &fakeSource{candidates: holdings()}, WithSurface(rec))

	require.NoError(t, w.Refresh(context.Background()))

	sel, ok := w.Selected()
	require.True(t, ok)
	assert.Equal(t, "AAPL:NASDAQ", sel.BaseTicker)

	snap := w.Snapshot()
	assert.True(t, snap.HasDisplay)
	assert.False(t, snap.Fallback)
	assert.Equal(t, "AAPL", snap.Display.Ticker)
	assert.Equal(t, "Overall Rank: 1.0", snap.Display.RankLabel)
	assert.Equal(t, "Makes things people buy…", snap.Display.Description)
	assert.Contains(t, snap.Display.Marketing, "Apple scores high")

	require.Len(t, rec.displays, 1)
	assert.Equal(t, snap.Display, rec.displays[0])
}

func TestRefreshRecomputesWholesale(t *testing.T) {
	src := &fakeSource{candidates: holdings()}
	w := newWidget(t, src)
	require.NoError(t, w.Refresh(context.Background()))

	src.set([]models.Candidate{candidate(5, "TSLA", "Tesla")}, nil)
	require.NoError(t, w.Refresh(context.Background()))

	snap := w.Snapshot()
	assert.Equal(t, "TSLA", snap.Display.Ticker)
	assert.Equal(t, "Overall Rank: 5.0", snap.Display.RankLabel)
}

func TestRefreshFailureKeepsLastDisplay(t *testing.T) {
	rec := &recorder{}
	src := &fakeSource{candidates: holdings()}
	w := newWidget(t, src, WithSurface(rec))
	require.NoError(t, w.Refresh(context.Background()))

	boom := errors.New("connection refused")
	src.set(nil, boom)
	err := w.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	snap := w.Snapshot()
	assert.True(t, snap.Fallback)
	assert.True(t, snap.HasDisplay)
	assert.Equal(t, "AAPL", snap.Display.Ticker)
	assert.Equal(t, "Unable to load top pick at this time.", snap.Message)
	assert.Equal(t, []string{"Unable to load top pick at this time."}, rec.fallbacks)
	assert.Equal(t, boom, w.Err())

	// the next good fetch clears the fallback
	src.set(holdings(), nil)
	require.NoError(t, w.Refresh(context.Background()))
	assert.False(t, w.Snapshot().Fallback)
	assert.NoError(t, w.Err())
}

func TestRefreshFailureCategories(t *testing.T) {
	tests := []struct {
		name       string
		candidates []models.Candidate
		err        error
		want       string
	}{
		{"empty", []models.Candidate{}, nil, "empty_input"},
		{"no ticker", []models.Candidate{{Rank: models.NewRank(1)}}, nil, "malformed_ticker"},
		{"bad body", nil, errors.Wrap(loader.ErrMalformedResponse, "decoding"), "malformed_response"},
		{"breaker", nil, loader.ErrBreakerOpen, "circuit_open"},
		{"deadline", nil, errors.Wrap(context.DeadlineExceeded, "get"), "timeout"},
		{"network", nil, errors.New("dial tcp: refused"), "transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWidget(t, &fakeSource{candidates: tt.candidates, err: tt.err})
			err := w.Refresh(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, Category(err))
			assert.True(t, w.Snapshot().Fallback)
		})
	}
	assert.Equal(t, "", Category(nil))
}

func TestRefreshToleratesBadRecords(t *testing.T) {
	decode := func(body string) []models.Candidate {
		cs, err := loader.DecodeCandidates(strings.NewReader(body))
		require.NoError(t, err)
		return cs
	}

	t.Run("bad record not selected", func(t *testing.T) {
		w := newWidget(t, &fakeSource{candidates: decode(`[
			{"rank": 5, "baseTicker": 123, "name": 7},
			{"rank": 1, "baseTicker": "AAPL:NASDAQ", "name": "Apple", "description": ["x"]}
		]`)})
		require.NoError(t, w.Refresh(context.Background()))

		snap := w.Snapshot()
		assert.False(t, snap.Fallback)
		assert.Equal(t, "AAPL", snap.Display.Ticker)
		assert.Equal(t, "…", snap.Display.Description)
	})

	t.Run("bad record selected", func(t *testing.T) {
		w := newWidget(t, &fakeSource{candidates: decode(`[
			{"rank": 1, "baseTicker": 123, "name": "Numbers"},
			{"rank": 2, "baseTicker": "AAPL:NASDAQ"}
		]`)})
		err := w.Refresh(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, selector.ErrMalformedTicker))
		assert.Equal(t, "malformed_ticker", Category(err))
	})
}

func TestRefreshLogsFailure(t *testing.T) {
	log, hook := test.NewNullLogger()
	w := newWidget(t, &fakeSource{candidates: []models.Candidate{}}, WithLogger(log))

	require.Error(t, w.Refresh(context.Background()))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "sidebar error", entry.Message)
	assert.Equal(t, "empty_input", entry.Data["category"])
	assert.Equal(t, w.ID(), entry.Data["widget"])
	assert.True(t, errors.Is(entry.Data[logrus.ErrorKey].(error), selector.ErrEmptyInput))
}

func TestRefreshAddsPrice(t *testing.T) {
	w := newWidget(t, &fakeSource{candidates: holdings()}, WithQuoter(fixedQuoter{price: "187.00 USD"}))
	require.NoError(t, w.Refresh(context.Background()))
	assert.Equal(t, "187.00 USD", w.Snapshot().Display.Price)

	w = newWidget(t, &fakeSource{candidates: holdings()}, WithQuoter(fixedQuoter{err: errors.New("no quote")}))
	require.NoError(t, w.Refresh(context.Background()))
	assert.Empty(t, w.Snapshot().Display.Price)
}

func TestRefreshReindexes(t *testing.T) {
	idx := search.NewInMemoryEngine(nil)
	w := newWidget(t, &fakeSource{candidates: holdings()}, WithIndex(idx))
	require.NoError(t, w.Refresh(context.Background()))

	got := idx.GetByTicker("GOOG")
	require.NotNil(t, got)
	assert.Equal(t, "Alphabet", got.Name)
}

func TestRunRefreshesUntilCancelled(t *testing.T) {
	src := &fakeSource{candidates: holdings()}
	w := newWidget(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return src.count() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, w.Snapshot().HasDisplay)
}

func TestRunOnce(t *testing.T) {
	src := &fakeSource{candidates: holdings()}
	w := newWidget(t, src)
	w.Run(context.Background(), 0)
	assert.Equal(t, 1, src.count())
}

func TestVisibilityIsIndependentOfData(t *testing.T) {
	rec := &recorder{}
	w := newWidget(t, &fakeSource{err: errors.New("down")}, WithSurface(rec))

	// the controller works before, and regardless of, the fetch outcome
	assert.Equal(t, visibility.StateHidden, w.Mount(0))
	assert.Equal(t, visibility.StateShown, w.Scroll(0.5))
	require.Error(t, w.Refresh(context.Background()))
	assert.Equal(t, visibility.StateShown, w.State())

	assert.Equal(t, visibility.StateHidden, w.Close())
	assert.Equal(t, visibility.StateHidden, w.Scroll(0.9))
	assert.Equal(t, visibility.StateShown, w.Toggle())
	assert.Equal(t, visibility.StateShown, w.Open())

	assert.Equal(t, []visibility.State{
		visibility.StateShown,
		visibility.StateHidden,
		visibility.StateShown,
	}, rec.states)
}

func TestMountAlreadyScrolled(t *testing.T) {
	w := newWidget(t, &fakeSource{})
	assert.Equal(t, visibility.StateShown, w.Mount(0.8))
}

func TestCollapseNeedsConfig(t *testing.T) {
	w := newWidget(t, &fakeSource{})
	assert.Equal(t, visibility.StateHidden, w.Collapse())

	cfg := config.DefaultWidget()
	cfg.Collapsible = true
	w, err := New(&fakeSource{}, cfg, WithLogger(quiet()))
	require.NoError(t, err)
	assert.Equal(t, visibility.StateCollapsed, w.Collapse())
	assert.Equal(t, visibility.StateCollapsed, w.Scroll(1))
	assert.Equal(t, visibility.StateShown, w.Open())
}

func TestAddSurfaceCatchesUp(t *testing.T) {
	w := newWidget(t, &fakeSource{candidates: holdings()})
	require.NoError(t, w.Refresh(context.Background()))
	w.Scroll(1)

	rec := &recorder{}
	w.AddSurface(rec)
	assert.Equal(t, []visibility.State{visibility.StateShown}, rec.states)
	require.Len(t, rec.displays, 1)
	assert.Equal(t, "AAPL", rec.displays[0].Ticker)
}

func TestConcurrentUse(t *testing.T) {
	w := newWidget(t, &fakeSource{candidates: holdings()})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = w.Refresh(context.Background())
		}()
		go func(i int) {
			defer wg.Done()
			w.Scroll(float64(i) / 8)
			_ = w.Snapshot()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, "AAPL", w.Snapshot().Display.Ticker)
}
