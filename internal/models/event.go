package models

import "time"

const (
	// EventStatusDraft marks an event that is still being planned
	EventStatusDraft = "draft"
	// EventStatusActive marks an event that is currently running or ready to run
	EventStatusActive = "active"
	// EventStatusClosed marks an event that is over
	EventStatusClosed = "closed"
)

// ValidEventStatus checks if the given value is a valid event status
func ValidEventStatus(status string) bool {
	return status == EventStatusDraft || status == EventStatusActive || status == EventStatusClosed
}

// Event describes a scheduled karaoke session
// Events stay in the database after they are over for statistical reasons
type Event struct {
	// Internal ID
	ID uint `db:"id" json:"id"`
	// Name of the event
	Name string `db:"name" json:"name"`
	// A little description of the event
	Description string `db:"description" json:"description,omitempty"`
	// Where the event takes place
	Venue string `db:"venue" json:"venue,omitempty"`
	// Current status of the event - see the EventStatus* constants
	Status string `db:"status" json:"status"`
	// The user who created the event
	CreatedBy uint `db:"createdBy" json:"createdBy"`
	// When does/did the event start?
	StartsAt time.Time `db:"startsAt" json:"startsAt"`
	// When does/did the event end?
	EndsAt time.Time `db:"endsAt" json:"endsAt"`
	// Creation date of this entry
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updatedAt" json:"updatedAt"`
}
