// Package repos contains the repository interfaces needed in Encore
// It exists to prevent circular dependencies between encore and the repo implementations
package repos

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tbrandt/encore/internal/models"
)

var (
	// ErrEntityNotExisting is fired by a repository when an entity that is read, updated or deleted does not exist
	ErrEntityNotExisting = fmt.Errorf("cannot update: Entity does not exist")
	// ErrStateConflict is fired by a repository when a guarded status update loses against a concurrent
	// transition into a terminal state
	ErrStateConflict = fmt.Errorf("entity is no longer in a state that allows this update")
	// ErrDuplicateEntity is fired by a repository when an insert collides with an existing entity
	// under a unique natural key
	ErrDuplicateEntity = fmt.Errorf("an entity with the same unique key does already exist")
)

// SongRepo defines a repository that handles storing and querying the song catalog
type SongRepo interface {
	// Create inserts a new catalog entry. The unique index on the dedup key makes a duplicate
	// insert fail with ErrDuplicateEntity - callers handle that by re-reading via GetByDedupKey
	Create(s *models.Song) error
	// UpdateEnrichment updates the enrichment fields (video URL, cover art) of an existing entry
	UpdateEnrichment(s *models.Song) error
	// GetByID returns the catalog entry having the given ID
	GetByID(id uint) (*models.Song, error)
	// GetByIDs returns the catalog entries for the given IDs, keyed by ID
	GetByIDs(ids []uint) (map[uint]models.Song, error)
	// GetByDedupKey returns the catalog entry matching the given natural key exactly
	GetByDedupKey(key models.DedupKey) (*models.Song, error)
	// Find searches for songs matching the given search string - supports pagination
	Find(search string, offset uint, limit uint) ([]models.Song, uint, error)
}

// RequestRepo defines a repository that stores song requests and their co-singer sets
type RequestRepo interface {
	// Create inserts a new request together with its co-singer set
	Create(r *models.Request) error
	// GetByID returns the request with the given ID, co-singers included
	GetByID(id uint) (*models.Request, error)
	// SetStatus performs a guarded status update: it only succeeds while the stored status is
	// non-terminal, so a racing terminal transition wins. Returns ErrStateConflict when the guard fails
	SetStatus(id uint, status models.RequestStatus, reason string) error
	// SetInCrate updates the denormalized in-crate flag of the request
	SetInCrate(id uint, inCrate bool) error
	// SetVideoURL attaches or overwrites the video URL of the request
	SetVideoURL(id uint, videoURL string) error
	// FindByEvent returns the requests of the event matching the filter, newest first
	FindByEvent(eventID uint, filter models.RequestFilter) ([]models.Request, error)
	// FindEligible returns the event's requests in the approved or queued state, ordered by
	// creation time ascending. One call reads one consistent snapshot
	FindEligible(eventID uint) ([]models.Request, error)
	// CountOpenBySinger counts the singer's requests at the event that are neither rejected nor performed
	CountOpenBySinger(eventID uint, requesterID uint) (uint, error)
	// CountByEventAndSong counts the non-terminal requests for the given song at the given event
	CountByEventAndSong(eventID uint, songID uint) (uint, error)
}

// CrateRepo defines a repository that stores the per-event crates and their song sets
type CrateRepo interface {
	// GetOrCreateByEvent returns the crate of the event, creating an empty one if none exists yet
	GetOrCreateByEvent(eventID uint) (*models.Crate, error)
	// GetByEvent returns the crate of the event, song IDs included
	GetByEvent(eventID uint) (*models.Crate, error)
	// GetByID returns the crate with the given ID, song IDs included
	GetByID(id uint) (*models.Crate, error)
	// AddSong stages a song in the crate if it is not already present. The add is atomic at the
	// storage layer - concurrent calls for the same song never produce a duplicate.
	// Returns whether the song was newly added
	AddSong(crateID uint, songID uint) (bool, error)
	// RemoveSong removes a song from the crate. Returns whether the song was present
	RemoveSong(crateID uint, songID uint) (bool, error)
	// ContainsSong checks if the crate currently stages the given song
	ContainsSong(crateID uint, songID uint) (bool, error)
}

// EventRepo defines a repository that handles storing and querying events
type EventRepo interface {
	// Create creates a new event
	Create(ev *models.Event) error
	// Update updates the given event
	Update(ev *models.Event) error
	// Delete removes the given event
	Delete(id uint) error
	// GetByID returns the Event with the given ID
	GetByID(id uint) (*models.Event, error)
	// GetByDate returns the event or events that are valid for the given point in time
	GetByDate(date time.Time) ([]models.Event, error)
	// Find searches for events matching the given search string - supports pagination
	Find(search string, offset uint, limit uint) ([]models.Event, uint, error)
}

// UserRepo defines a repository that is able to store, query and authenticate users
type UserRepo interface {
	// Create creates a new user
	Create(u *models.User) error
	// Update updates an existing user
	Update(u *models.User) error
	// Delete removes an existing user from the user storage
	Delete(id uint) error
	// GetByID returns the user with the given ID
	GetByID(id uint) (*models.User, error)
	// GetByIDs returns the users for the given IDs, keyed by ID. Unknown IDs are simply absent
	GetByIDs(ids []uint) (map[uint]models.User, error)
	// GetByCredentials returns the user which has the given username and password - this is used for login
	GetByCredentials(username string, password string) (*models.User, error)
}

// SessionRepo stores information about active API sessions
type SessionRepo interface {
	// CreateFor creates a new session for the given user ID
	CreateFor(userID uint) (*models.Session, error)
	// GetByID returns the session associated with the given session ID and extends it's expiry if requested
	GetByID(sessionID string, extend bool) (*models.Session, error)
	// Delete removes a session from the session storage
	Delete(sessionID string) error
}

// -- Helpers for SQLX repos -------------------------------------------------------------------------------------------

// DoRollback rolls back a transaction and catches any error resulting from it while appending the original error
func DoRollback(tx *sqlx.Tx, originalError error) error {
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("doRollback: Transaction rollback failed: %v; Recent error: %v", err, originalError)
	}
	return originalError
}
