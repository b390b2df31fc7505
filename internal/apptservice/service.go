// Package apptservice coordinates the scheduler, persistence, change events
// and ICS export for the HTTP and MCP surfaces.
package apptservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/agenda/internal/apperr"
	"github.com/starford/agenda/internal/calendar"
	"github.com/starford/agenda/internal/checksum"
	"github.com/starford/agenda/internal/drag"
	"github.com/starford/agenda/internal/grid"
	"github.com/starford/agenda/internal/ics"
	"github.com/starford/agenda/internal/layout"
	"github.com/starford/agenda/internal/models"
	"github.com/starford/agenda/internal/scheduler"
	"github.com/starford/agenda/internal/seed"
	"github.com/starford/agenda/internal/sse"
	"github.com/starford/agenda/internal/storage"
	"github.com/starford/agenda/internal/store"
)

// ExportFile is the name of the ICS file kept in the export directory.
const ExportFile = "agenda.ics"

// Publisher receives change notifications.
type Publisher interface {
	PublishAppointmentEvent(kind, id string)
	Publish(ev sse.Event)
}

// Settings are the hot-reloadable calendar tunables.
type Settings struct {
	Grid       layout.Grid     `json:"grid"`
	Grouping   layout.Grouping `json:"grouping"`
	WeekStart  time.Weekday    `json:"week_start"`
	Locale     calendar.Locale `json:"-"`
	Location   *time.Location  `json:"-"`
	Thresholds drag.Thresholds `json:"drag"`
}

// DefaultSettings mirrors the reference grid.
func DefaultSettings() Settings {
	return Settings{
		Grid:       layout.DefaultGrid(),
		Grouping:   layout.GroupChain,
		WeekStart:  time.Monday,
		Locale:     calendar.PtBR,
		Location:   time.Local,
		Thresholds: drag.DefaultThresholds(),
	}
}

// Detail is an appointment with its ETag checksum.
type Detail struct {
	models.Appointment
	Category models.Category `json:"category"`
	Checksum string          `json:"checksum"`
}

func newDetail(a models.Appointment) *Detail {
	return &Detail{Appointment: a, Category: a.Category(), Checksum: checksum.Appointment(a)}
}

// ViewResult is a filtered window of the collection.
type ViewResult struct {
	View         models.ViewType      `json:"view"`
	Date         time.Time            `json:"date"`
	Label        string               `json:"label"`
	Window       calendar.Window      `json:"window"`
	Appointments []models.Appointment `json:"appointments"`
}

// StateResult is the shared view state with its derived window.
type StateResult struct {
	State   models.ViewState     `json:"state"`
	Label   string               `json:"label"`
	Window  calendar.Window      `json:"window"`
	Visible []models.Appointment `json:"visible"`
}

// Option configures a Service.
type Option func(*Service)

func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }

// WithExports keeps ExportFile in p up to date.
func WithExports(p storage.Provider) Option { return func(s *Service) { s.exports = p } }

func WithSettings(st Settings) Option { return func(s *Service) { s.settings.Store(&st) } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// WithImportHorizon sets how far past the start of the current month
// recurring events are expanded on import.
func WithImportHorizon(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.horizon = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.clock = now } }

// Service is safe for concurrent use.
type Service struct {
	repo     store.Repository
	sched    *scheduler.Scheduler
	events   Publisher
	exports  storage.Provider
	log      *slog.Logger
	clock    func() time.Time
	horizon  time.Duration
	settings atomic.Pointer[Settings]
}

// New creates a Service over repo. Call Load before serving.
func New(repo store.Repository, opts ...Option) *Service {
	s := &Service{repo: repo, log: slog.Default(), clock: time.Now, horizon: ics.DefaultHorizon}
	st := DefaultSettings()
	s.settings.Store(&st)
	for _, o := range opts {
		o(s)
	}
	cur := s.Settings()
	s.sched = scheduler.New(
		scheduler.WithWeekStart(cur.WeekStart),
		scheduler.WithLocale(cur.Locale),
		scheduler.WithThresholds(cur.Thresholds),
		scheduler.WithClock(s.now),
		scheduler.WithLogger(s.log),
		scheduler.WithHooks(scheduler.Hooks{
			OnSave:   s.onSave,
			OnDelete: s.onDelete,
			OnMove:   s.onMove,
		}),
	)
	return s
}

func (s *Service) now() time.Time {
	return s.clock().In(s.Settings().Location)
}

// Settings returns the current tunables.
func (s *Service) Settings() Settings {
	return *s.settings.Load()
}

// Apply swaps the tunables and announces config.updated.
func (s *Service) Apply(st Settings) {
	if st.Locale == nil {
		st.Locale = calendar.PtBR
	}
	if st.Location == nil {
		st.Location = time.Local
	}
	s.settings.Store(&st)
	s.sched.SetCalendar(st.WeekStart, st.Locale)
	s.sched.SetThresholds(st.Thresholds)
	s.log.Info("calendar settings applied",
		slog.Int("start_hour", st.Grid.StartHour),
		slog.Int("end_hour", st.Grid.EndHour),
		slog.String("week_start", st.WeekStart.String()))
	if s.events != nil {
		s.events.Publish(sse.Event{Type: "config.updated", Data: st})
	}
}

// Load fills the scheduler from the store. An empty store is seeded with
// the sample appointments when seedEmpty is set.
func (s *Service) Load(_ context.Context, seedEmpty bool) error {
	apps, err := s.repo.All()
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}
	s.sched.Load(apps)
	if len(apps) == 0 && seedEmpty {
		for _, a := range seed.Appointments(s.now()) {
			s.sched.Save(a)
		}
		s.log.Info("seeded sample appointments", slog.Int("count", len(s.sched.Appointments())))
		return nil
	}
	s.log.Info("appointments loaded", slog.Int("count", len(apps)))
	return nil
}

// Ready reports whether the store is reachable.
func (s *Service) Ready(_ context.Context) error {
	return s.repo.Ping()
}

// Now returns the current time in the calendar zone.
func (s *Service) Now() time.Time { return s.now() }

// ParseDate parses a DateLayout date in the calendar zone. Empty means today.
func (s *Service) ParseDate(v string) (time.Time, error) {
	if v == "" {
		return s.now(), nil
	}
	t, err := time.ParseInLocation(DateLayout, v, s.Settings().Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", apperr.ErrInvalidInput, v)
	}
	return t, nil
}

// List returns the appointments visible in view around date.
func (s *Service) List(_ context.Context, view models.ViewType, date time.Time, loc calendar.Locale) *ViewResult {
	st := s.Settings()
	if loc == nil {
		loc = st.Locale
	}
	return &ViewResult{
		View:         view,
		Date:         date,
		Label:        calendar.Label(date, view, st.WeekStart, loc),
		Window:       calendar.WindowFor(date, view, st.WeekStart),
		Appointments: calendar.Filter(s.sched.Appointments(), date, view, st.WeekStart),
	}
}

// All returns the whole collection in insertion order.
func (s *Service) All(_ context.Context) []models.Appointment {
	return s.sched.Appointments()
}

// Get returns one appointment.
func (s *Service) Get(_ context.Context, id string) (*Detail, error) {
	a, ok := s.sched.Find(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return newDetail(a), nil
}

// Search finds appointments whose title, patient or notes match query.
func (s *Service) Search(_ context.Context, query string, limit int) ([]store.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", apperr.ErrInvalidInput)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.Search(query, limit)
}

// Create adds an appointment. An explicit id must be unused.
func (s *Service) Create(_ context.Context, in Input) (*Detail, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	a, err := s.sched.Create(in.Appointment(s.Settings().Location))
	if errors.Is(err, scheduler.ErrExists) {
		return nil, apperr.ErrAlreadyExists
	}
	if err != nil {
		return nil, err
	}
	return newDetail(a), nil
}

// Update replaces id. A non-empty ifMatch must equal the current checksum;
// the comparison and the replace happen atomically.
func (s *Service) Update(_ context.Context, id string, in Input, ifMatch string) (*Detail, error) {
	if _, ok := s.sched.Find(id); !ok {
		return nil, apperr.ErrNotFound
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	in.ID = id
	var check func(models.Appointment) error
	if ifMatch != "" {
		check = func(cur models.Appointment) error {
			if checksum.Appointment(cur) != ifMatch {
				return apperr.ErrConflict
			}
			return nil
		}
	}
	a, err := s.sched.Replace(in.Appointment(s.Settings().Location), check)
	switch {
	case errors.Is(err, scheduler.ErrNotFound):
		return nil, apperr.ErrNotFound
	case err != nil:
		return nil, err
	}
	return newDetail(a), nil
}

// Delete removes id.
func (s *Service) Delete(_ context.Context, id string) error {
	if !s.sched.Delete(id) {
		return apperr.ErrNotFound
	}
	return nil
}

// Move sets explicit times on id.
func (s *Service) Move(_ context.Context, id string, in MoveInput) (*Detail, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	loc := s.Settings().Location
	a, err := s.sched.Move(id, in.Start.In(loc), in.End.In(loc))
	if errors.Is(err, scheduler.ErrNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return newDetail(a), nil
}

// Drop moves id onto a grid cell, keeping its duration.
func (s *Service) Drop(_ context.Context, id string, in DropInput) (*Detail, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	date, err := s.ParseDate(in.Date)
	if err != nil {
		return nil, err
	}
	a, err := s.sched.Drop(models.ViewType(in.View), date, id, in.Target)
	switch {
	case errors.Is(err, scheduler.ErrNotFound):
		return nil, apperr.ErrNotFound
	case errors.Is(err, drag.ErrMalformedTarget):
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	case err != nil:
		return nil, err
	}
	return newDetail(a), nil
}

// Controller returns a drag controller over the shared view state, using
// the configured activation thresholds. Commit applies its result.
func (s *Service) Controller() *drag.Controller {
	return s.sched.Controller()
}

// Commit applies a controller result. It reports whether anything moved.
func (s *Service) Commit(_ context.Context, r drag.Result) (*Detail, bool) {
	a, ok := s.sched.Commit(r)
	if !ok {
		return nil, false
	}
	return newDetail(a), true
}

func (s *Service) renderer(loc calendar.Locale) (*grid.Renderer, *layout.Engine) {
	st := s.Settings()
	if loc == nil {
		loc = st.Locale
	}
	engine := layout.New(st.Grid, layout.WithGrouping(st.Grouping))
	return grid.NewRenderer(engine,
		grid.WithWeekStart(st.WeekStart),
		grid.WithLocale(loc),
		grid.WithClock(s.now),
	), engine
}

// Render builds the grid of view around date. active marks a block being dragged.
func (s *Service) Render(_ context.Context, view models.ViewType, date time.Time, active string, loc calendar.Locale) any {
	r, _ := s.renderer(loc)
	apps := s.sched.Appointments()
	switch view {
	case models.ViewWeekly:
		return r.Weekly(date, apps, active)
	case models.ViewMonthly:
		return r.Monthly(date, apps)
	default:
		return r.Daily(date, apps, active)
	}
}

// DayLayout returns the positioned appointments of one day.
func (s *Service) DayLayout(_ context.Context, date time.Time) []models.PositionedAppointment {
	_, engine := s.renderer(nil)
	return engine.Day(calendar.OnDay(s.sched.Appointments(), date))
}

// Draft returns the creation draft for an empty day.
func (s *Service) Draft(date time.Time) models.Appointment {
	return grid.Draft(date)
}

// State returns the shared view state.
func (s *Service) State(_ context.Context) StateResult {
	return StateResult{
		State:   s.sched.State(),
		Label:   s.sched.Label(),
		Window:  s.sched.Window(),
		Visible: s.sched.Visible(),
	}
}

// Navigate applies previous, next or today to the shared view state.
func (s *Service) Navigate(ctx context.Context, action string) (StateResult, error) {
	switch action {
	case "previous":
		s.sched.Previous()
	case "next":
		s.sched.Next()
	case "today":
		s.sched.Today()
	default:
		return StateResult{}, fmt.Errorf("%w: action %q", apperr.ErrInvalidInput, action)
	}
	return s.State(ctx), nil
}

// SetView changes the shared view and, when non-zero, its anchor date.
func (s *Service) SetView(ctx context.Context, view models.ViewType, date time.Time) StateResult {
	s.sched.SetView(view)
	if !date.IsZero() {
		s.sched.SetDate(date)
	}
	return s.State(ctx)
}

// Export writes the collection as iCalendar.
func (s *Service) Export(_ context.Context, w io.Writer) error {
	return ics.Encode(w, s.sched.Appointments(), s.now())
}

// Import merges an iCalendar document: known UIDs are replaced, others
// are added. Recurring events are expanded from the first day of the
// current month up to the import horizon. It returns the number of
// appointments saved.
func (s *Service) Import(_ context.Context, r io.Reader) (int, error) {
	now := s.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	apps, err := ics.Decode(r, ics.Options{
		Location: s.Settings().Location,
		From:     from,
		Until:    from.Add(s.horizon),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	for _, a := range apps {
		s.sched.Save(a)
	}
	return len(apps), nil
}

func (s *Service) onSave(a models.Appointment, created bool) {
	if err := s.repo.Upsert(a); err != nil {
		s.log.Error("persist appointment failed", slog.String("id", a.ID), slog.String("error", err.Error()))
	}
	kind := sse.KindUpdated
	if created {
		kind = sse.KindCreated
	}
	s.changed(kind, a.ID)
}

func (s *Service) onDelete(id string) {
	if err := s.repo.Delete(id); err != nil {
		s.log.Error("delete appointment failed", slog.String("id", id), slog.String("error", err.Error()))
	}
	s.changed(sse.KindDeleted, id)
}

func (s *Service) onMove(a models.Appointment, start, end time.Time) {
	a.Start, a.End = start, end
	if err := s.repo.Upsert(a); err != nil {
		s.log.Error("persist move failed", slog.String("id", a.ID), slog.String("error", err.Error()))
	}
	s.changed(sse.KindMoved, a.ID)
}

func (s *Service) changed(kind, id string) {
	if s.events != nil {
		s.events.PublishAppointmentEvent(kind, id)
	}
	if s.exports == nil {
		return
	}
	var buf bytes.Buffer
	if err := s.Export(context.Background(), &buf); err != nil {
		s.log.Warn("export encode failed", slog.String("error", err.Error()))
		return
	}
	written, err := s.exports.Write(ExportFile, buf.Bytes())
	if err != nil {
		s.log.Warn("export write failed", slog.String("error", err.Error()))
		return
	}
	if written {
		s.log.Debug("export refreshed", slog.String("file", ExportFile), slog.String("trigger", kind))
	}
}
