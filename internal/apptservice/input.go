package apptservice

import (
	"errors"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/agenda/internal/models"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Input is the create/update payload shared by the HTTP and MCP surfaces.
type Input struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	PatientName string    `json:"patient_name"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Notes       string    `json:"notes"`
	Color       string    `json:"color"`
}

// Validate checks the form-level rules, including end after start.
func (in *Input) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.PatientName, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Start, validation.Required),
		validation.Field(&in.End, validation.Required, validation.By(endAfter(&in.Start, &in.End))),
		validation.Field(&in.Notes, validation.Length(0, 4000)),
		validation.Field(&in.Color, validation.Match(hexColor).Error("must be a #rrggbb colour")),
	)
}

// Appointment converts the payload with its times in loc.
func (in *Input) Appointment(loc *time.Location) models.Appointment {
	return models.Appointment{
		ID:          in.ID,
		Title:       in.Title,
		PatientName: in.PatientName,
		Start:       in.Start.In(loc),
		End:         in.End.In(loc),
		Notes:       in.Notes,
		Color:       in.Color,
	}
}

// MoveInput sets explicit times on an appointment.
type MoveInput struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate validates the move payload.
func (in *MoveInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Start, validation.Required),
		validation.Field(&in.End, validation.Required, validation.By(endAfter(&in.Start, &in.End))),
	)
}

// DropInput drops an appointment on a grid cell.
type DropInput struct {
	View   string `json:"view"`
	Date   string `json:"date"`
	Target string `json:"target"`
}

// Validate validates the drop payload. Target syntax is checked by the drag
// controller so malformed ids follow the cancel path.
func (in *DropInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.View, validation.Required, validation.In(string(models.ViewDaily), string(models.ViewWeekly))),
		validation.Field(&in.Date, validation.Date(DateLayout)),
		validation.Field(&in.Target, validation.Required),
	)
}

// DateLayout is the query/body format for calendar dates.
const DateLayout = "2006-01-02"

func endAfter(start, end *time.Time) validation.RuleFunc {
	return func(any) error {
		if !end.After(*start) {
			return errors.New("must be after start")
		}
		return nil
	}
}
