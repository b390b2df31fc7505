package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Importer merges a calendar document into the agenda.
type Importer interface {
	Import(ctx context.Context, r io.Reader) (int, error)
}

// Source is one subscribed calendar feed.
type Source struct {
	// ID names the source in logs and status output.
	ID  string `yaml:"id" json:"id"`
	URL string `yaml:"url" json:"url"`
}

// Status is the outcome of the latest sync of a source.
type Status struct {
	Source   Source    `json:"source"`
	SyncedAt time.Time `json:"synced_at"`
	Imported int       `json:"imported"`
	// Unchanged is set when the feed answered 304 and nothing was imported.
	Unchanged bool   `json:"unchanged,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ParseSchedule validates a five-field cron expression or descriptor
// such as "@hourly".
func ParseSchedule(expr string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("feed: schedule %q: %w", expr, err)
	}
	return s, nil
}

// Runner imports every source once at start and then on schedule.
type Runner struct {
	schedule cron.Schedule
	sources  []Source
	imp      Importer
	fetch    *Fetcher
	log      *slog.Logger
	clock    func() time.Time

	mu         sync.Mutex
	status     map[string]Status
	validators map[string]Validators
}

// NewRunner validates the cron expression and returns a Runner for sources.
func NewRunner(expr string, sources []Source, imp Importer, fetch *Fetcher, logger *slog.Logger) (*Runner, error) {
	if len(sources) == 0 {
		return nil, errors.New("feed: no sources")
	}
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		schedule: schedule,
		sources:  sources,
		imp:      imp,
		fetch:    fetch,
		log:      logger,
		clock:    time.Now,
		status:     make(map[string]Status, len(sources)),
		validators: make(map[string]Validators, len(sources)),
	}, nil
}

// Run blocks until ctx is done. A sync still in flight when the next tick
// fires is not started twice.
func (r *Runner) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLogger(cronLogger{r.log}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{r.log})),
	)
	c.Schedule(r.schedule, cron.FuncJob(func() { r.SyncAll(ctx) }))

	r.SyncAll(ctx)
	c.Start()
	r.log.Info("feed sync scheduled",
		slog.Int("sources", len(r.sources)),
		slog.Time("next", r.schedule.Next(r.clock())))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// SyncAll imports every source sequentially and returns their statuses.
func (r *Runner) SyncAll(ctx context.Context) []Status {
	out := make([]Status, 0, len(r.sources))
	for _, src := range r.sources {
		if ctx.Err() != nil {
			break
		}
		out = append(out, r.Sync(ctx, src))
	}
	return out
}

// Sync imports one source and records the outcome.
func (r *Runner) Sync(ctx context.Context, src Source) Status {
	st := Status{Source: src, SyncedAt: r.clock()}
	n, unchanged, err := r.sync(ctx, src)
	st.Imported, st.Unchanged = n, unchanged
	switch {
	case err != nil:
		st.Error = err.Error()
		r.log.Warn("feed sync failed", slog.String("feed", src.ID), slog.String("error", err.Error()))
	case unchanged:
		r.log.Debug("feed unchanged", slog.String("feed", src.ID))
	default:
		r.log.Info("feed synced", slog.String("feed", src.ID), slog.Int("imported", n))
	}

	r.mu.Lock()
	r.status[src.ID] = st
	r.mu.Unlock()
	return st
}

func (r *Runner) sync(ctx context.Context, src Source) (int, bool, error) {
	r.mu.Lock()
	prev := r.validators[src.ID]
	r.mu.Unlock()

	resp, err := r.fetch.Fetch(ctx, src.URL, prev)
	if err != nil {
		return 0, false, err
	}
	if resp.NotModified {
		return 0, true, nil
	}
	if err := Validate(resp.Body); err != nil {
		return 0, false, err
	}
	n, err := r.imp.Import(ctx, bytes.NewReader(resp.Body))
	if err != nil {
		return 0, false, err
	}

	// Validators are kept only after a successful import so a failed one
	// is retried in full on the next tick.
	r.mu.Lock()
	r.validators[src.ID] = resp.Validators
	r.mu.Unlock()
	return n, false, nil
}

// Statuses returns the latest outcome per source, in configuration order.
func (r *Runner) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.sources))
	for _, src := range r.sources {
		if st, ok := r.status[src.ID]; ok {
			out = append(out, st)
		}
	}
	return out
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
