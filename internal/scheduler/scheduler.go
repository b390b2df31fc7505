// Package scheduler is the root of the calendar: it owns the appointment
// collection and the view state, and reports every committed change through
// Hooks.
package scheduler

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/agenda/internal/calendar"
	"github.com/starford/agenda/internal/drag"
	"github.com/starford/agenda/internal/models"
)

var (
	// ErrNotFound is returned when an id is not in the collection.
	ErrNotFound = errors.New("scheduler: appointment not found")
	// ErrExists is returned by Create when the explicit id is taken.
	ErrExists = errors.New("scheduler: appointment already exists")
)

// Hooks are called after a change is committed, outside the scheduler lock.
// Save, Delete and Move hooks run one at a time in commit order. A hook must
// not mutate the scheduler.
type Hooks struct {
	OnClick  func(a models.Appointment)
	OnSave   func(a models.Appointment, created bool)
	OnDelete func(id string)
	OnMove   func(a models.Appointment, newStart, newEnd time.Time)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithWeekStart(d time.Weekday) Option { return func(s *Scheduler) { s.weekStart = d } }

func WithLocale(l calendar.Locale) Option { return func(s *Scheduler) { s.locale = l } }

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// WithIDGenerator replaces uuid.NewString for new appointments.
func WithIDGenerator(f func() string) Option { return func(s *Scheduler) { s.newID = f } }

func WithHooks(h Hooks) Option { return func(s *Scheduler) { s.hooks = h } }

func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.log = l } }

// WithThresholds sets the activation thresholds of controllers built by
// Controller.
func WithThresholds(t drag.Thresholds) Option { return func(s *Scheduler) { s.thresholds = t } }

// Scheduler is safe for concurrent use. Every mutation replaces the
// collection slice, so snapshots handed out are never changed afterwards.
type Scheduler struct {
	mu    sync.Mutex
	apps  []models.Appointment
	state models.ViewState

	weekStart  time.Weekday
	locale     calendar.Locale
	thresholds drag.Thresholds
	now        func() time.Time
	newID      func() string
	hooks      Hooks
	log        *slog.Logger

	// seq is the next commit ticket, guarded by mu. Hooks of ticket n wait
	// until hookNext reaches n.
	seq      uint64
	hookMu   sync.Mutex
	hookCond *sync.Cond
	hookNext uint64
}

// New creates an empty scheduler showing today in the daily view.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		weekStart:  time.Monday,
		locale:     calendar.PtBR,
		thresholds: drag.DefaultThresholds(),
		now:        time.Now,
		newID:      uuid.NewString,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.hookCond = sync.NewCond(&s.hookMu)
	s.state = models.ViewState{CurrentDate: s.now(), View: models.ViewDaily}
	return s
}

// WeekStart returns the configured first day of the week.
func (s *Scheduler) WeekStart() time.Weekday {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weekStart
}

// Locale returns the label locale.
func (s *Scheduler) Locale() calendar.Locale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locale
}

// SetCalendar changes the week start and label locale.
func (s *Scheduler) SetCalendar(weekStart time.Weekday, loc calendar.Locale) {
	s.mu.Lock()
	s.weekStart = weekStart
	if loc != nil {
		s.locale = loc
	}
	s.mu.Unlock()
}

// Thresholds returns the drag activation thresholds.
func (s *Scheduler) Thresholds() drag.Thresholds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thresholds
}

// SetThresholds changes the thresholds of controllers built afterwards.
func (s *Scheduler) SetThresholds(t drag.Thresholds) {
	s.mu.Lock()
	s.thresholds = t
	s.mu.Unlock()
}

// Load replaces the whole collection without firing hooks.
func (s *Scheduler) Load(apps []models.Appointment) {
	s.mu.Lock()
	s.apps = slices.Clone(apps)
	s.mu.Unlock()
}

// Appointments returns a snapshot of the collection in insertion order.
func (s *Scheduler) Appointments() []models.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.apps)
}

// Find looks an appointment up by id.
func (s *Scheduler) Find(id string) (models.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return models.Appointment{}, false
	}
	return s.apps[i], true
}

func (s *Scheduler) index(id string) int {
	return slices.IndexFunc(s.apps, func(a models.Appointment) bool { return a.ID == id })
}

// State returns a copy of the view state.
func (s *Scheduler) State() models.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.Draft != nil {
		d := *st.Draft
		st.Draft = &d
	}
	return st
}

func (s *Scheduler) SetView(v models.ViewType) {
	s.mu.Lock()
	s.state.View = v
	s.mu.Unlock()
}

func (s *Scheduler) SetDate(t time.Time) {
	s.mu.Lock()
	s.state.CurrentDate = t
	s.mu.Unlock()
}

// Previous moves the anchor one window back.
func (s *Scheduler) Previous() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentDate = calendar.Previous(s.state.CurrentDate, s.state.View)
	return s.state.CurrentDate
}

// Next moves the anchor one window forward.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentDate = calendar.Next(s.state.CurrentDate, s.state.View)
	return s.state.CurrentDate
}

// Today resets the anchor to now.
func (s *Scheduler) Today() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentDate = s.now()
	return s.state.CurrentDate
}

// Visible filters the collection for the current view and date.
func (s *Scheduler) Visible() []models.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calendar.Filter(s.apps, s.state.CurrentDate, s.state.View, s.weekStart)
}

// Window returns the range covered by the current view.
func (s *Scheduler) Window() calendar.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calendar.WindowFor(s.state.CurrentDate, s.state.View, s.weekStart)
}

// Label returns the display label of the current window.
func (s *Scheduler) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return calendar.Label(s.state.CurrentDate, s.state.View, s.weekStart, s.locale)
}

// Open selects an existing appointment for editing.
func (s *Scheduler) Open(id string) (models.Appointment, bool) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Appointment{}, false
	}
	a := s.apps[i]
	s.state.SelectedID = id
	s.state.Draft = nil
	s.state.IsModalOpen = true
	s.mu.Unlock()

	if s.hooks.OnClick != nil {
		s.hooks.OnClick(a)
	}
	return a, true
}

// OpenDraft opens the modal for a new appointment. A zero draft defaults to
// 09:00-10:00 today.
func (s *Scheduler) OpenDraft(draft models.Appointment) models.Appointment {
	if draft.Start.IsZero() {
		y, m, d := s.now().Date()
		draft.Start = time.Date(y, m, d, 9, 0, 0, 0, s.now().Location())
		draft.End = draft.Start.Add(time.Hour)
	}
	if draft.Color == "" {
		draft.Color = models.DefaultColor
	}
	draft.ID = ""

	s.mu.Lock()
	s.state.SelectedID = ""
	s.state.Draft = &draft
	s.state.IsModalOpen = true
	s.mu.Unlock()
	return draft
}

// Close closes the modal and clears the selection.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
}

func (s *Scheduler) closeLocked() {
	s.state.SelectedID = ""
	s.state.Draft = nil
	s.state.IsModalOpen = false
}

// ticketLocked reserves the next hook slot. Every ticket must be passed to
// dispatch exactly once.
func (s *Scheduler) ticketLocked() uint64 {
	t := s.seq
	s.seq++
	return t
}

// dispatch runs fire once every earlier ticket has run.
func (s *Scheduler) dispatch(ticket uint64, fire func()) {
	s.hookMu.Lock()
	for s.hookNext != ticket {
		s.hookCond.Wait()
	}
	s.hookMu.Unlock()
	defer func() {
		s.hookMu.Lock()
		s.hookNext++
		s.hookMu.Unlock()
		s.hookCond.Broadcast()
	}()
	if fire != nil {
		fire()
	}
}

func (s *Scheduler) fireSave(ticket uint64, a models.Appointment, created bool) {
	var fire func()
	if h := s.hooks.OnSave; h != nil {
		fire = func() { h(a, created) }
	}
	s.dispatch(ticket, fire)
}

func (s *Scheduler) fireMove(ticket uint64, prev models.Appointment, start, end time.Time) {
	var fire func()
	if h := s.hooks.OnMove; h != nil {
		fire = func() { h(prev, start, end) }
	}
	s.dispatch(ticket, fire)
}

// Save creates a without an id (assigning one) or replaces the appointment
// with the same id. An unknown id is appended. The modal is closed.
func (s *Scheduler) Save(a models.Appointment) (models.Appointment, bool) {
	if a.Color == "" {
		a.Color = models.DefaultColor
	}

	s.mu.Lock()
	created := false
	next := slices.Clone(s.apps)
	if a.IsNew() {
		a.ID = s.newID()
		created = true
		next = append(next, a)
	} else if i := s.index(a.ID); i >= 0 {
		next[i] = a
	} else {
		created = true
		next = append(next, a)
	}
	s.apps = next
	s.closeLocked()
	ticket := s.ticketLocked()
	s.mu.Unlock()

	s.fireSave(ticket, a, created)
	return a, created
}

// Create adds a, assigning an id when it has none. An explicit id that is
// already present fails with ErrExists.
func (s *Scheduler) Create(a models.Appointment) (models.Appointment, error) {
	if a.Color == "" {
		a.Color = models.DefaultColor
	}

	s.mu.Lock()
	if a.IsNew() {
		a.ID = s.newID()
	} else if s.index(a.ID) >= 0 {
		s.mu.Unlock()
		return models.Appointment{}, ErrExists
	}
	s.apps = append(slices.Clone(s.apps), a)
	s.closeLocked()
	ticket := s.ticketLocked()
	s.mu.Unlock()

	s.fireSave(ticket, a, true)
	return a, nil
}

// Replace swaps the appointment with a's id for a. check sees the current
// value under the lock; a non-nil result aborts the replace and is returned
// as is. A missing id fails with ErrNotFound.
func (s *Scheduler) Replace(a models.Appointment, check func(cur models.Appointment) error) (models.Appointment, error) {
	if a.Color == "" {
		a.Color = models.DefaultColor
	}

	s.mu.Lock()
	i := s.index(a.ID)
	if i < 0 {
		s.mu.Unlock()
		return models.Appointment{}, ErrNotFound
	}
	if check != nil {
		if err := check(s.apps[i]); err != nil {
			s.mu.Unlock()
			return models.Appointment{}, err
		}
	}
	next := slices.Clone(s.apps)
	next[i] = a
	s.apps = next
	s.closeLocked()
	ticket := s.ticketLocked()
	s.mu.Unlock()

	s.fireSave(ticket, a, false)
	return a, nil
}

// Delete removes id. It reports whether anything was removed.
func (s *Scheduler) Delete(id string) bool {
	s.mu.Lock()
	n := len(s.apps)
	s.apps = slices.DeleteFunc(slices.Clone(s.apps), func(a models.Appointment) bool { return a.ID == id })
	removed := len(s.apps) != n
	s.closeLocked()
	if !removed {
		s.mu.Unlock()
		return false
	}
	ticket := s.ticketLocked()
	s.mu.Unlock()

	var fire func()
	if h := s.hooks.OnDelete; h != nil {
		fire = func() { h(id) }
	}
	s.dispatch(ticket, fire)
	return true
}

// moveLocked sets start and end on the appointment at i and reserves the
// hook ticket. It returns the previous and the moved value.
func (s *Scheduler) moveLocked(i int, start, end time.Time) (models.Appointment, models.Appointment, uint64) {
	next := slices.Clone(s.apps)
	prev := next[i]
	next[i].Start, next[i].End = start, end
	s.apps = next
	return prev, next[i], s.ticketLocked()
}

// Move sets new start and end times on id.
func (s *Scheduler) Move(id string, start, end time.Time) (models.Appointment, error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Appointment{}, ErrNotFound
	}
	prev, moved, ticket := s.moveLocked(i, start, end)
	s.mu.Unlock()

	s.fireMove(ticket, prev, start, end)
	return moved, nil
}

func (s *Scheduler) surfaceLocked(view models.ViewType, anchor time.Time) drag.Surface {
	return drag.Surface{View: view, Origin: drag.Origin(view, anchor, s.weekStart)}
}

// Surface returns the drag surface for view around anchor.
func (s *Scheduler) Surface(view models.ViewType, anchor time.Time) drag.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surfaceLocked(view, anchor)
}

// Controller returns a drag controller over the current view using the
// configured thresholds.
func (s *Scheduler) Controller(opts ...drag.ControllerOption) *drag.Controller {
	s.mu.Lock()
	surface := s.surfaceLocked(s.state.View, s.state.CurrentDate)
	base := []drag.ControllerOption{drag.WithThresholds(s.thresholds), drag.WithLogger(s.log)}
	s.mu.Unlock()
	return drag.NewController(surface, s.Find, append(base, opts...)...)
}

// Commit applies a drag result. Anything but a commit is a no-op. The end
// is recomputed from the duration at commit time.
func (s *Scheduler) Commit(r drag.Result) (models.Appointment, bool) {
	if r.Outcome != drag.OutcomeCommit {
		return models.Appointment{}, false
	}
	s.mu.Lock()
	i := s.index(r.ID)
	if i < 0 {
		// deleted between release and commit
		s.mu.Unlock()
		return models.Appointment{}, false
	}
	start, end := drag.Reschedule(s.apps[i], r.Commit.NewStart)
	prev, moved, ticket := s.moveLocked(i, start, end)
	s.mu.Unlock()

	s.fireMove(ticket, prev, start, end)
	return moved, true
}

// Drop moves id onto targetID of the view surface around anchor, keeping
// its duration. Malformed targets are logged and returned as errors.
func (s *Scheduler) Drop(view models.ViewType, anchor time.Time, id, targetID string) (models.Appointment, error) {
	s.mu.Lock()
	lookup := func(key string) (models.Appointment, bool) {
		if i := s.index(key); i >= 0 {
			return s.apps[i], true
		}
		return models.Appointment{}, false
	}
	c, err := drag.Drop(s.surfaceLocked(view, anchor), lookup, id, targetID)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, drag.ErrNotFound) {
			return models.Appointment{}, ErrNotFound
		}
		s.log.Warn("drop cancelled", slog.String("id", id), slog.String("target", targetID), slog.Any("error", err))
		return models.Appointment{}, err
	}
	prev, moved, ticket := s.moveLocked(s.index(id), c.NewStart, c.NewEnd)
	s.mu.Unlock()

	s.fireMove(ticket, prev, c.NewStart, c.NewEnd)
	return moved, nil
}
