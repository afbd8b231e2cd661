package models

import "time"

// Crate is the deduplicated set of songs staged for performance at one event, independent of the
// requests that reference them. There is at most one crate per event and it is created lazily on
// the first write
type Crate struct {
	// Internal ID
	ID uint `db:"id" json:"id"`
	// The event this crate belongs to
	EventID uint `db:"eventId" json:"eventId"`
	// The songs staged in this crate - insertion order is preserved, duplicates are forbidden.
	// Stored in a separate table, loaded by the repository
	SongIDs []uint `db:"-" json:"songIds"`
	// Creation timestamp of the crate
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
	// Timestamp of the last change of the crate
	UpdatedAt time.Time `db:"updatedAt" json:"updatedAt"`
}

// Contains checks if the given song is already staged in the crate
func (c *Crate) Contains(songID uint) bool {
	for _, id := range c.SongIDs {
		if id == songID {
			return true
		}
	}
	return false
}

// CrateDetails is the hydrated form of a crate with the song references resolved for display
type CrateDetails struct {
	Crate
	// The full catalog entries of the staged songs, in crate order
	Songs []Song `json:"songs"`
}

// MergeReport sums up the outcome of merging one or more source crates into a target crate
type MergeReport struct {
	// Number of songs newly staged in the target
	Added uint `json:"added"`
	// Number of songs skipped because the target already contained them
	Skipped uint `json:"skipped"`
	// The song IDs that were skipped as duplicates
	DuplicateSongIDs []uint `json:"duplicateSongIds"`
}
