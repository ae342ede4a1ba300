// Package visibility holds the show/hide state machine of the sidebar. The
// state value is the source of truth; presentation is projected from it
// through observers.
package visibility

import (
	"github.com/pkg/errors"
)

// State is the visibility of the sidebar.
type State int

const (
	StateHidden State = iota
	StateShown
	StateCollapsed // toggle shrunk to a minimal handle
)

func (s State) String() string {
	switch s {
	case StateHidden:
		return "HIDDEN"
	case StateShown:
		return "SHOWN"
	case StateCollapsed:
		return "COLLAPSED"
	default:
		return "UNKNOWN"
	}
}

// Policy decides what happens when scroll progress drops back below the
// threshold after the sidebar was shown by scrolling.
type Policy string

const (
	// PolicySticky keeps the sidebar shown once scrolling revealed it.
	PolicySticky Policy = "sticky"
	// PolicyRevert hides it again unless the user opened it by hand.
	PolicyRevert Policy = "revert"
)

// ParsePolicy accepts "sticky", "revert" or "" (sticky).
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicySticky:
		return PolicySticky, nil
	case PolicyRevert:
		return PolicyRevert, nil
	default:
		return "", errors.Errorf("unknown visibility policy %q", s)
	}
}

const DefaultThreshold = 0.3

// Observer is called after every state change.
type Observer func(from, to State)

// Controller is not safe for concurrent use; the owner serializes events.
type Controller struct {
	threshold float64
	policy    Policy

	state          State
	userOverride   bool
	manuallyOpened bool

	observers []Observer
}

// New returns a controller in StateHidden. A threshold outside (0,1] falls
// back to DefaultThreshold.
func New(threshold float64, policy Policy) *Controller {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if policy == "" {
		policy = PolicySticky
	}
	return &Controller{
		threshold: threshold,
		policy:    policy,
		state:     StateHidden,
	}
}

// Observe registers fn for state changes.
func (c *Controller) Observe(fn Observer) {
	c.observers = append(c.observers, fn)
}

func (c *Controller) State() State         { return c.state }
func (c *Controller) UserOverride() bool   { return c.userOverride }
func (c *Controller) Threshold() float64   { return c.threshold }
func (c *Controller) Policy() Policy       { return c.policy }
func (c *Controller) ManuallyOpened() bool { return c.manuallyOpened }

// Attach runs the initial evaluation for a page that may load already
// scrolled.
func (c *Controller) Attach(progress float64) State {
	return c.Scroll(progress)
}

// Scroll re-evaluates the guard for a new scroll progress.
func (c *Controller) Scroll(progress float64) State {
	if c.userOverride {
		return c.state
	}

	if progress >= c.threshold {
		c.set(StateShown)
		return c.state
	}

	if c.policy == PolicyRevert && c.state == StateShown && !c.manuallyOpened {
		c.set(StateHidden)
	}
	return c.state
}

// Open shows the sidebar and clears the override.
func (c *Controller) Open() State {
	c.userOverride = false
	c.manuallyOpened = true
	c.set(StateShown)
	return c.state
}

// Close hides the sidebar and suppresses scroll-driven reveals until Open.
func (c *Controller) Close() State {
	c.userOverride = true
	c.manuallyOpened = false
	c.set(StateHidden)
	return c.state
}

// Toggle closes a shown sidebar and opens it otherwise.
func (c *Controller) Toggle() State {
	if c.state == StateShown {
		return c.Close()
	}
	return c.Open()
}

// Collapse shrinks the hidden toggle into a handle. It is ignored unless the
// sidebar is hidden.
func (c *Controller) Collapse() State {
	if c.state != StateHidden {
		return c.state
	}
	c.userOverride = true
	c.set(StateCollapsed)
	return c.state
}

func (c *Controller) set(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	for _, fn := range c.observers {
		fn(from, to)
	}
}
