package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/agenda/internal/calendar"
	"github.com/starford/agenda/internal/drag"
	"github.com/starford/agenda/internal/feed"
	"github.com/starford/agenda/internal/layout"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Calendar CalendarConfig    `yaml:"calendar"`
	Drag     DragConfig        `yaml:"drag"`
	Events   EventsConfig      `yaml:"events"`
	Seed     SeedConfig        `yaml:"seed"`
	Export   ExportConfig      `yaml:"export"`
	Feeds    FeedsConfig       `yaml:"feeds"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.SQLite, &c.Auth, &c.Calendar, &c.Drag, &c.Events, &c.Feeds} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile, when set, receives a size-rotated copy of the log.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// CalendarConfig holds the grid geometry and calendar conventions.
type CalendarConfig struct {
	StartHour      int     `yaml:"start_hour"`
	EndHour        int     `yaml:"end_hour"`
	HourHeight     float64 `yaml:"hour_height"`
	SlotMinutes    int     `yaml:"slot_minutes"`
	MinBlockHeight float64 `yaml:"min_block_height"`
	// WeekStart is "monday" or "sunday".
	WeekStart string `yaml:"week_start"`
	// Locale is the default BCP 47 tag for labels.
	Locale string `yaml:"locale"`
	// Timezone is an IANA name or "Local".
	Timezone string `yaml:"timezone"`
	// Grouping is "chain" or "running".
	Grouping string `yaml:"grouping"`
}

// Validate validates the calendar configuration.
func (c *CalendarConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.StartHour, validation.Min(0), validation.Max(23)),
		validation.Field(&c.EndHour, validation.Required, validation.Min(1), validation.Max(24)),
		validation.Field(&c.HourHeight, validation.Required, validation.Min(1.0)),
		validation.Field(&c.SlotMinutes, validation.Required, validation.In(5, 10, 15, 20, 30, 60)),
		validation.Field(&c.MinBlockHeight, validation.Min(0.0)),
		validation.Field(&c.WeekStart, validation.Required, validation.In("monday", "sunday")),
		validation.Field(&c.Locale, validation.Required, validation.By(func(any) error {
			_, err := calendar.LookupLocale(c.Locale)
			return err
		})),
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
		validation.Field(&c.Grouping, validation.In("", "chain", "running")),
	); err != nil {
		return err
	}
	if c.StartHour >= c.EndHour {
		return errors.New("calendar: start_hour must be before end_hour")
	}
	return nil
}

// Grid returns the layout geometry.
func (c *CalendarConfig) Grid() layout.Grid {
	return layout.Grid{
		StartHour:      c.StartHour,
		EndHour:        c.EndHour,
		HourHeight:     c.HourHeight,
		SlotMinutes:    c.SlotMinutes,
		MinBlockHeight: c.MinBlockHeight,
	}
}

// Weekday returns the first day of the week.
func (c *CalendarConfig) Weekday() time.Weekday {
	if strings.EqualFold(c.WeekStart, "sunday") {
		return time.Sunday
	}
	return time.Monday
}

// Location resolves Timezone.
func (c *CalendarConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// LayoutGrouping returns the overlap grouping strategy.
func (c *CalendarConfig) LayoutGrouping() layout.Grouping {
	if c.Grouping == "running" {
		return layout.GroupRunning
	}
	return layout.GroupChain
}

// DragConfig holds the drag activation constraints per input modality.
type DragConfig struct {
	Mouse   drag.Constraint `yaml:"mouse"`
	Touch   drag.Constraint `yaml:"touch"`
	Pointer drag.Constraint `yaml:"pointer"`
}

// Validate validates the drag configuration.
func (c *DragConfig) Validate() error {
	for name, k := range map[string]drag.Constraint{"mouse": c.Mouse, "touch": c.Touch, "pointer": c.Pointer} {
		if k.Delay < 0 || k.Tolerance < 0 || k.Distance < 0 {
			return fmt.Errorf("drag: %s thresholds must not be negative", name)
		}
		if k.Delay == 0 && k.Distance == 0 {
			return fmt.Errorf("drag: %s needs a delay or a distance", name)
		}
	}
	return nil
}

// Thresholds converts to the controller's form.
func (c *DragConfig) Thresholds() drag.Thresholds {
	return drag.Thresholds{Mouse: c.Mouse, Touch: c.Touch, Pointer: c.Pointer}
}

// EventsConfig holds SSE settings.
type EventsConfig struct {
	LayoutThrottle time.Duration `yaml:"layout_throttle"`
	// History is the number of frames kept for Last-Event-ID replay.
	History   int           `yaml:"history"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LayoutThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.History, validation.Min(0), validation.Max(4096)),
		validation.Field(&c.Heartbeat, validation.Min(time.Duration(0))),
	)
}

// SeedConfig controls sample data.
type SeedConfig struct {
	// Enabled loads the sample appointments when the store is empty.
	Enabled bool `yaml:"enabled"`
}

// ExportConfig controls the ICS export file.
type ExportConfig struct {
	// Dir, when set, receives agenda.ics after every change.
	Dir string `yaml:"dir"`
}

// FeedsConfig lists the calendar feeds imported on a schedule.
type FeedsConfig struct {
	// Refresh is a cron expression, e.g. "*/15 * * * *" or "@hourly".
	Refresh string `yaml:"refresh"`
	// HorizonDays bounds recurrence expansion on import.
	HorizonDays int           `yaml:"horizon_days"`
	Sources     []feed.Source `yaml:"sources"`
}

// Validate validates the feeds configuration.
func (c *FeedsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Refresh, validation.Required, validation.By(func(any) error {
			_, err := feed.ParseSchedule(c.Refresh)
			return err
		})),
		validation.Field(&c.HorizonDays, validation.Required, validation.Min(1), validation.Max(3660)),
	); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("feeds: source %d: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("feeds: duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
		if _, err := feed.NormalizeURL(src.URL); err != nil {
			return fmt.Errorf("feeds: source %q: %w", src.ID, err)
		}
	}
	return nil
}

// Horizon returns HorizonDays as a duration.
func (c *FeedsConfig) Horizon() time.Duration {
	return time.Duration(c.HorizonDays) * 24 * time.Hour
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	grid := layout.DefaultGrid()
	th := drag.DefaultThresholds()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./agenda.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Calendar: CalendarConfig{
			StartHour:      grid.StartHour,
			EndHour:        grid.EndHour,
			HourHeight:     grid.HourHeight,
			SlotMinutes:    grid.SlotMinutes,
			MinBlockHeight: grid.MinBlockHeight,
			WeekStart:      "monday",
			Locale:         "pt-BR",
			Timezone:       "Local",
			Grouping:       "chain",
		},
		Drag: DragConfig{
			Mouse:   th.Mouse,
			Touch:   th.Touch,
			Pointer: th.Pointer,
		},
		Events: EventsConfig{
			LayoutThrottle: 2 * time.Second,
			History:        64,
			Heartbeat:      25 * time.Second,
		},
		Feeds: FeedsConfig{
			Refresh:     "*/15 * * * *",
			HorizonDays: 366,
		},
	}
}
