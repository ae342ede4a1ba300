// Package widget ties the selection pipeline and the visibility state machine
// into one explicitly constructed sidebar instance.
package widget

import (
	"context"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"top-pick/config"
	"top-pick/loader"
	"top-pick/models"
	"top-pick/quotes"
	"top-pick/search"
	"top-pick/selector"
	"top-pick/visibility"
)

// DefaultDataPath is resolved against the script's own URL when no data URL
// is configured.
const DefaultDataPath = "data/holdings.json"

var (
	validID = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	seq     uint64
)

// Surface receives projections of the widget state. Implementations must not
// call back into the widget.
type Surface interface {
	ApplyDisplay(d models.DisplayFields)
	ShowFallback(message string)
	SetVisibility(s visibility.State)
}

// Snapshot is a copy of the widget state at one point in time.
type Snapshot struct {
	ID         string               `json:"id"`
	Display    models.DisplayFields `json:"display"`
	HasDisplay bool                 `json:"hasDisplay"`
	Fallback   bool                 `json:"fallback"`
	Message    string               `json:"message,omitempty"`
	Visibility string               `json:"visibility"`
	UpdatedAt  time.Time            `json:"updatedAt,omitempty"`
}

// Loaded reports whether a refresh has completed, successfully or not.
func (s Snapshot) Loaded() bool {
	return s.HasDisplay || s.Fallback
}

// Widget is one sidebar instance. Several can live side by side; each owns
// its selected record, display fields and visibility controller.
type Widget struct {
	id     string
	cfg    config.Widget
	source loader.Source
	copy   selector.Copy
	log    logrus.FieldLogger

	quoter  quotes.Quoter
	index   search.Engine
	timeout time.Duration
	now     func() time.Time

	refreshMu sync.Mutex // serializes Refresh

	mu         sync.RWMutex
	ctrl       *visibility.Controller
	selected   *models.Candidate
	display    models.DisplayFields
	hasDisplay bool
	fallback   bool
	updatedAt  time.Time
	lastErr    error
	surfaces   []Surface
}

// Option customizes a Widget.
type Option func(*Widget)

// WithID sets the element id. It must be a valid CSS identifier.
func WithID(id string) Option {
	return func(w *Widget) { w.id = id }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(w *Widget) { w.log = log }
}

// WithQuoter adds a last-price line to the display.
func WithQuoter(q quotes.Quoter) Option {
	return func(w *Widget) { w.quoter = q }
}

// WithIndex keeps a search engine in step with every successful fetch.
func WithIndex(e search.Engine) Option {
	return func(w *Widget) { w.index = e }
}

// WithTimeout bounds the browser-side fetch. It defaults to 10s.
func WithTimeout(d time.Duration) Option {
	return func(w *Widget) { w.timeout = d }
}

func WithSurface(s Surface) Option {
	return func(w *Widget) { w.surfaces = append(w.surfaces, s) }
}

// New builds a widget in the HIDDEN state with no display yet.
func New(source loader.Source, cfg config.Widget, opts ...Option) (*Widget, error) {
	if source == nil {
		return nil, errors.New("widget needs a data source")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Widget{
		cfg:     cfg,
		source:  source,
		copy:    selector.Copy{Brand: cfg.Brand, Pitch: selector.DefaultPitch},
		log:     logrus.StandardLogger(),
		timeout: 10 * time.Second,
		now:     time.Now,
	}
	if w.copy.Brand == "" {
		w.copy.Brand = selector.DefaultBrand
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.id == "" {
		w.id = NextID()
	}
	if !validID.MatchString(w.id) {
		return nil, errors.Errorf("invalid widget id %q", w.id)
	}
	if w.cfg.FallbackMessage == "" {
		w.cfg.FallbackMessage = config.DefaultWidget().FallbackMessage
	}

	w.log = w.log.WithField("widget", w.id)
	w.ctrl = visibility.New(cfg.ScrollThreshold, cfg.Policy())
	w.ctrl.Observe(func(from, to visibility.State) {
		w.log.WithFields(logrus.Fields{"from": from, "to": to}).Debug("visibility changed")
	})
	return w, nil
}

// NextID returns a fresh element id.
func NextID() string {
	return "top-pick-" + strconv.FormatUint(atomic.AddUint64(&seq, 1), 10)
}

func (w *Widget) ID() string            { return w.id }
func (w *Widget) Config() config.Widget { return w.cfg }

// AddSurface registers a projection target and brings it up to date.
func (w *Widget) AddSurface(s Surface) {
	w.mu.Lock()
	w.surfaces = append(w.surfaces, s)
	snap := w.snapshotLocked()
	w.mu.Unlock()

	s.SetVisibility(w.State())
	switch {
	case snap.Fallback:
		s.ShowFallback(snap.Message)
	case snap.HasDisplay:
		s.ApplyDisplay(snap.Display)
	}
}

// Refresh fetches the holdings, selects the top pick and swaps it in. On
// failure the last display stays as it was and the widget switches to the
// fallback message; the error is logged and returned.
func (w *Widget) Refresh(ctx context.Context) error {
	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	candidates, err := w.source.Fetch(ctx)
	if err != nil {
		return w.fail(err)
	}

	top, err := selector.SelectTop(candidates)
	if err != nil {
		return w.fail(err)
	}
	display, err := selector.BuildDisplay(top, w.copy)
	if err != nil {
		return w.fail(err)
	}

	if w.quoter != nil {
		if price, err := w.quoter.LastPrice(ctx, display.Ticker); err != nil {
			w.log.WithError(err).WithField("ticker", display.Ticker).Debug("no price for top pick")
		} else {
			display.Price = price
		}
	}
	if w.index != nil {
		if err := w.index.Reindex(candidates); err != nil {
			w.log.WithError(err).Warn("reindexing holdings")
		}
	}

	w.mu.Lock()
	w.selected = &top
	w.display = display
	w.hasDisplay = true
	w.fallback = false
	w.lastErr = nil
	w.updatedAt = w.now()
	surfaces := append([]Surface(nil), w.surfaces...)
	w.mu.Unlock()

	w.log.WithFields(logrus.Fields{
		"ticker":     display.Ticker,
		"rank":       display.Rank,
		"candidates": len(candidates),
	}).Info("top pick refreshed")

	for _, s := range surfaces {
		s.ApplyDisplay(display)
	}
	return nil
}

func (w *Widget) fail(err error) error {
	w.mu.Lock()
	w.fallback = true
	w.lastErr = err
	w.updatedAt = w.now()
	msg := w.cfg.FallbackMessage
	surfaces := append([]Surface(nil), w.surfaces...)
	w.mu.Unlock()

	w.log.WithError(err).WithField("category", Category(err)).Error("sidebar error")

	for _, s := range surfaces {
		s.ShowFallback(msg)
	}
	return err
}

// Category names the failure class of a refresh error.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, selector.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, selector.ErrMalformedTicker):
		return "malformed_ticker"
	case errors.Is(err, loader.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, loader.ErrBreakerOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "transport"
	}
}

// Run refreshes now and then every interval until ctx ends. A non-positive
// interval refreshes once.
func (w *Widget) Run(ctx context.Context, interval time.Duration) {
	_ = w.Refresh(ctx)
	if interval <= 0 {
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = w.Refresh(ctx)
		}
	}
}

// Snapshot returns a copy of the current state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotLocked()
}

func (w *Widget) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:         w.id,
		Display:    w.display,
		HasDisplay: w.hasDisplay,
		Fallback:   w.fallback,
		Visibility: w.ctrl.State().String(),
		UpdatedAt:  w.updatedAt,
	}
	if w.fallback {
		s.Message = w.cfg.FallbackMessage
	}
	return s
}

// Selected returns the record behind the current display, if any.
func (w *Widget) Selected() (models.Candidate, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.selected == nil {
		return models.Candidate{}, false
	}
	return *w.selected, true
}

// Err returns the error of the last failed refresh, or nil.
func (w *Widget) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

func (w *Widget) State() visibility.State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ctrl.State()
}

// Mount runs the initial visibility evaluation for the given progress.
func (w *Widget) Mount(progress float64) visibility.State {
	return w.event(func(c *visibility.Controller) visibility.State { return c.Attach(progress) })
}

func (w *Widget) Scroll(progress float64) visibility.State {
	return w.event(func(c *visibility.Controller) visibility.State { return c.Scroll(progress) })
}

func (w *Widget) Open() visibility.State {
	return w.event((*visibility.Controller).Open)
}

func (w *Widget) Close() visibility.State {
	return w.event((*visibility.Controller).Close)
}

func (w *Widget) Toggle() visibility.State {
	return w.event((*visibility.Controller).Toggle)
}

func (w *Widget) Collapse() visibility.State {
	if !w.cfg.Collapsible {
		return w.State()
	}
	return w.event((*visibility.Controller).Collapse)
}

func (w *Widget) event(fn func(*visibility.Controller) visibility.State) visibility.State {
	w.mu.Lock()
	before := w.ctrl.State()
	after := fn(w.ctrl)
	surfaces := append([]Surface(nil), w.surfaces...)
	w.mu.Unlock()

	if before != after {
		for _, s := range surfaces {
			s.SetVisibility(after)
		}
	}
	return after
}
