// Package sqlite contains a repository for crates that stores its data inside a SQLite database
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tbrandt/encore/internal/log"
	"github.com/tbrandt/encore/internal/models"
	"github.com/tbrandt/encore/internal/repos"
)

const (
	crateFields = `id, eventId, createdAt, updatedAt`
)

// CrateRepo is a crate repository that stores its data inside a SQLite database
type CrateRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new CrateRepo instance with the given DB and logger instances
func New(db *sqlx.DB, logger *logrus.Entry) repos.CrateRepo {
	return &CrateRepo{db, logger}
}

// GetOrCreateByEvent returns the crate of the event, creating an empty one if none exists yet
// The unique index on the event ID makes the lazy creation safe when two writers race: the loser's
// insert is ignored and both end up reading the same row
func (r *CrateRepo) GetOrCreateByEvent(eventID uint) (*models.Crate, error) {
	query := `INSERT OR IGNORE INTO Crates(eventId, createdAt, updatedAt) VALUES(?, datetime('now'), datetime('now'))`
	if _, err := r.db.Exec(query, eventID); err != nil {
		return nil, fmt.Errorf("GetOrCreateByEvent: Failed to create crate: %v", err)
	}
	return r.GetByEvent(eventID)
}

// GetByEvent returns the crate of the event, song IDs included
func (r *CrateRepo) GetByEvent(eventID uint) (*models.Crate, error) {
	r.logger.WithField(log.FldEvent, eventID).Debug("Loading crate")
	query := fmt.Sprintf("SELECT %s FROM Crates WHERE eventId = ?", crateFields)
	var crate models.Crate
	err := r.db.Get(&crate, query, eventID)
	if err != nil {
		if err == sql.ErrNoRows {
			// Nothing found
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	if err = r.loadSongIDs(&crate); err != nil {
		return nil, err
	}
	return &crate, nil
}

// GetByID returns the crate with the given ID, song IDs included
func (r *CrateRepo) GetByID(id uint) (*models.Crate, error) {
	r.logger.WithField(log.FldCrate, id).Debug("Loading crate")
	query := fmt.Sprintf("SELECT %s FROM Crates WHERE id = ?", crateFields)
	var crate models.Crate
	err := r.db.Get(&crate, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	if err = r.loadSongIDs(&crate); err != nil {
		return nil, err
	}
	return &crate, nil
}

// loadSongIDs fills the crate's song set in insertion order
func (r *CrateRepo) loadSongIDs(crate *models.Crate) error {
	query := "SELECT songId FROM CrateSongs WHERE crateId = ? ORDER BY addedAt, songId"
	var ids []uint
	if err := r.db.Select(&ids, query, crate.ID); err != nil {
		return errors.Wrap(err, "loadSongIDs: Failed to query crate songs")
	}
	crate.SongIDs = ids
	return nil
}

// AddSong stages a song in the crate if it is not already present
// INSERT OR IGNORE against the compound primary key is the atomic add-if-absent primitive: duplicate
// prevention holds even if two add calls race
func (r *CrateRepo) AddSong(crateID uint, songID uint) (bool, error) {
	r.logger.WithFields(logrus.Fields{
		log.FldCrate: crateID,
		log.FldSong:  songID,
	}).Debug("Adding song to crate")
	query := `INSERT OR IGNORE INTO CrateSongs(crateId, songId, addedAt) VALUES(?, ?, datetime('now'))`
	res, err := r.db.Exec(query, crateID, songID)
	if err != nil {
		return false, fmt.Errorf("AddSong: Failed to add song to crate: %v", err)
	}
	num, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("AddSong: Failed to get number of inserted rows: %v", err)
	}
	if num > 0 {
		r.touch(crateID)
	}
	return num > 0, nil
}

// RemoveSong removes a song from the crate. A missing song is not an error
func (r *CrateRepo) RemoveSong(crateID uint, songID uint) (bool, error) {
	r.logger.WithFields(logrus.Fields{
		log.FldCrate: crateID,
		log.FldSong:  songID,
	}).Debug("Removing song from crate")
	query := "DELETE FROM CrateSongs WHERE crateId = ? AND songId = ?"
	res, err := r.db.Exec(query, crateID, songID)
	if err != nil {
		return false, fmt.Errorf("RemoveSong: Failed to remove song from crate: %v", err)
	}
	num, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("RemoveSong: Failed to get number of deleted rows: %v", err)
	}
	if num > 0 {
		r.touch(crateID)
	}
	return num > 0, nil
}

// ContainsSong checks if the crate currently stages the given song
func (r *CrateRepo) ContainsSong(crateID uint, songID uint) (bool, error) {
	query := `SELECT COUNT(*) FROM CrateSongs WHERE crateId = ? AND songId = ?`
	var count uint
	if err := r.db.Get(&count, query, crateID, songID); err != nil {
		return false, errors.Wrap(err, "ContainsSong: Failed to query database")
	}
	return count > 0, nil
}

// touch bumps the crate's update timestamp after a membership change
func (r *CrateRepo) touch(crateID uint) {
	query := `UPDATE Crates SET updatedAt = datetime('now') WHERE id = ?`
	if _, err := r.db.Exec(query, crateID); err != nil {
		// Do not report the error back, but log it!
		r.logger.WithError(err).WithField(log.FldCrate, crateID).Error("Failed to update crate timestamp")
	}
}
