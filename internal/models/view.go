package models

import (
	"fmt"
	"time"
)

// ViewType is the granularity of the calendar window.
type ViewType string

const (
	ViewDaily   ViewType = "daily"
	ViewWeekly  ViewType = "weekly"
	ViewMonthly ViewType = "monthly"
)

// ParseViewType converts s to a ViewType. The empty string yields ViewDaily.
func ParseViewType(s string) (ViewType, error) {
	switch ViewType(s) {
	case "":
		return ViewDaily, nil
	case ViewDaily, ViewWeekly, ViewMonthly:
		return ViewType(s), nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}

// ViewState is the ephemeral state owned by the scheduler root.
type ViewState struct {
	CurrentDate time.Time `json:"current_date"`
	View        ViewType  `json:"view"`
	// SelectedID references an appointment in the collection; it is not owned.
	SelectedID string `json:"selected_id,omitempty"`
	// Draft holds the unsaved appointment shown when the modal opens for creation.
	Draft       *Appointment `json:"draft,omitempty"`
	IsModalOpen bool         `json:"is_modal_open"`
}
