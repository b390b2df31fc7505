// Package drag turns pointer gestures over a time grid into reschedule
// commits. All input carries explicit timestamps so the controller has no
// timers of its own.
package drag

import (
	"errors"
	"log/slog"
	"time"

	"github.com/starford/agenda/internal/models"
)

// State is the controller's gesture state.
type State int

const (
	// Idle: no press in progress.
	Idle State = iota
	// Pending: a block is pressed but the activation threshold is not met yet.
	// Releasing now is a click.
	Pending
	// Dragging: the block follows the pointer.
	Dragging
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Dragging:
		return "dragging"
	default:
		return "idle"
	}
}

// Outcome is what a release produced.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeClick
	OutcomeCommit
	OutcomeCancel
)

// Commit reports a successful drop.
type Commit struct {
	Appointment models.Appointment
	NewStart    time.Time
	NewEnd      time.Time
}

// Result is returned by Release.
type Result struct {
	Outcome Outcome
	// ID is the pressed appointment for clicks, commits and cancels.
	ID     string
	Commit Commit
}

// Lookup resolves an appointment id against the current collection.
type Lookup func(id string) (models.Appointment, bool)

// Bounds limits the overlay offset on free-moving surfaces.
type Bounds struct {
	Min Point
	Max Point
}

// Surface describes where a drag happens.
type Surface struct {
	View models.ViewType
	// Origin is the first day shown: the anchor day or the week start.
	Origin time.Time
	// Bounds clamps the overlay offset on the weekly surface. Zero means unbounded.
	Bounds Bounds
}

type session struct {
	id        string
	modality  Modality
	origin    Point
	pressedAt time.Time
	offset    Point
}

// Controller is the drag state machine for one surface. It is not safe for
// concurrent use.
type Controller struct {
	surface    Surface
	lookup     Lookup
	thresholds Thresholds
	log        *slog.Logger

	state  State
	active *session
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithThresholds overrides the activation thresholds.
func WithThresholds(t Thresholds) ControllerOption {
	return func(c *Controller) { c.thresholds = t }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.log = l }
}

// NewController creates an idle controller.
func NewController(surface Surface, lookup Lookup, opts ...ControllerOption) *Controller {
	c := &Controller{
		surface:    surface,
		lookup:     lookup,
		thresholds: DefaultThresholds(),
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// ActiveID is the pressed or dragged appointment, empty when idle.
func (c *Controller) ActiveID() string {
	if c.active == nil {
		return ""
	}
	return c.active.id
}

// Dimmed reports whether id should render at reduced opacity in place.
func (c *Controller) Dimmed(id string) bool {
	return c.state == Dragging && c.active.id == id
}

// Overlay returns the offset of the floating duplicate while dragging.
func (c *Controller) Overlay() (Point, bool) {
	if c.state != Dragging {
		return Point{}, false
	}
	return c.active.offset, true
}

// Press starts a gesture on appointment id. It is ignored unless idle.
func (c *Controller) Press(id string, m Modality, at Point, now time.Time) State {
	if c.state != Idle || id == "" {
		return c.state
	}
	c.active = &session{id: id, modality: m, origin: at, pressedAt: now}
	c.state = Pending
	return c.state
}

// Tick advances time without movement, activating delay constraints.
func (c *Controller) Tick(now time.Time) State {
	if c.state == Pending {
		k := c.thresholds.For(c.active.modality)
		if k.Delay > 0 && now.Sub(c.active.pressedAt) >= k.Delay {
			c.activate()
		}
	}
	return c.state
}

// Move reports a pointer position.
func (c *Controller) Move(at Point, now time.Time) State {
	switch c.state {
	case Pending:
		k := c.thresholds.For(c.active.modality)
		moved := at.Sub(c.active.origin).length()
		if k.Delay > 0 {
			if now.Sub(c.active.pressedAt) >= k.Delay {
				c.activate()
				c.follow(at)
				return c.state
			}
			if moved > k.Tolerance {
				c.log.Debug("drag activation aborted", slog.String("id", c.active.id), slog.Float64("moved", moved))
				c.reset()
			}
			return c.state
		}
		if moved >= k.Distance {
			c.activate()
			c.follow(at)
		}
	case Dragging:
		c.follow(at)
	}
	return c.state
}

// Release ends the gesture over targetID; an empty target means outside
// every drop cell.
func (c *Controller) Release(targetID string, now time.Time) Result {
	if c.state == Pending {
		c.Tick(now)
	}
	switch c.state {
	case Idle:
		return Result{}
	case Pending:
		id := c.active.id
		c.reset()
		return Result{Outcome: OutcomeClick, ID: id}
	}

	id := c.active.id
	c.reset()
	if targetID == "" {
		return Result{Outcome: OutcomeCancel, ID: id}
	}

	commit, err := Drop(c.surface, c.lookup, id, targetID)
	if err != nil {
		if errors.Is(err, ErrMalformedTarget) {
			c.log.Warn("drop cancelled", slog.String("id", id), slog.String("target", targetID), slog.Any("error", err))
		}
		return Result{Outcome: OutcomeCancel, ID: id}
	}
	return Result{Outcome: OutcomeCommit, ID: id, Commit: commit}
}

// Cancel abandons the gesture, e.g. when the input device disconnects.
func (c *Controller) Cancel() {
	c.reset()
}

func (c *Controller) activate() {
	c.state = Dragging
	c.log.Debug("drag started", slog.String("id", c.active.id), slog.String("modality", c.active.modality.String()))
}

func (c *Controller) follow(at Point) {
	off := at.Sub(c.active.origin)
	if c.surface.View == models.ViewDaily {
		off.X = 0
	} else if b := c.surface.Bounds; b != (Bounds{}) {
		off.X = min(max(off.X, b.Min.X), b.Max.X)
		off.Y = min(max(off.Y, b.Min.Y), b.Max.Y)
	}
	c.active.offset = off
}

func (c *Controller) reset() {
	c.state = Idle
	c.active = nil
}

// ErrNotFound is returned by Drop when the appointment is gone.
var ErrNotFound = errors.New("appointment not found")

// Drop decodes targetID on surface and computes the new times for id,
// preserving duration.
func Drop(surface Surface, lookup Lookup, id, targetID string) (Commit, error) {
	t, err := ParseTarget(surface.View, targetID)
	if err != nil {
		return Commit{}, err
	}
	a, ok := lookup(id)
	if !ok {
		return Commit{}, ErrNotFound
	}
	start, end := Reschedule(a, t.Start(surface.Origin))
	return Commit{Appointment: a, NewStart: start, NewEnd: end}, nil
}
