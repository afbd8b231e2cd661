// Package sqlite contains a repository for events that stores its data inside a SQLite database
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/tbrandt/encore/internal/log"
	"github.com/tbrandt/encore/internal/models"
	"github.com/tbrandt/encore/internal/repos"
)

const (
	eventFields  = `id, name, description, venue, status, createdBy, startsAt, endsAt, createdAt, updatedAt`
	insertFields = `name, description, venue, status, createdBy, startsAt, endsAt, createdAt, updatedAt`
)

// EventRepo is an event repository that stores its data inside a SQLite database
type EventRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new EventRepo instance with the given DB and logger instances
func New(db *sqlx.DB, logger *logrus.Entry) repos.EventRepo {
	return &EventRepo{db, logger}
}

// Create creates a new event
func (r *EventRepo) Create(ev *models.Event) error {
	r.logger.WithField("name", ev.Name).Debug("Adding new event")
	query := fmt.Sprintf(
		"INSERT INTO Events(%s) VALUES(?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))",
		insertFields,
	)
	res, err := r.db.Exec(query, ev.Name, ev.Description, ev.Venue, ev.Status, ev.CreatedBy, ev.StartsAt, ev.EndsAt)
	if err != nil {
		return err
	}
	// Setting the dates like this should be enough for now
	ev.CreatedAt = time.Now()
	ev.UpdatedAt = time.Now()
	var id int64
	if id, err = res.LastInsertId(); err == nil {
		ev.ID = uint(id)
	}
	return err
}

// Update updates the given event
func (r *EventRepo) Update(ev *models.Event) error {
	r.logger.WithField(log.FldID, ev.ID).Debug("Updating event")
	query := `UPDATE Events SET
                name = ?, description = ?, venue = ?, status = ?, startsAt = ?, endsAt = ?,
                updatedAt = datetime('now')
            WHERE id = ?`
	res, err := r.db.Exec(query, ev.Name, ev.Description, ev.Venue, ev.Status, ev.StartsAt, ev.EndsAt, ev.ID)
	if err != nil {
		return err
	}
	ev.UpdatedAt = time.Now()
	var num int64
	if num, err = res.RowsAffected(); err == nil {
		if num == 0 {
			return repos.ErrEntityNotExisting
		}
	}
	return err
}

// Delete removes the given event together with its requests and crate
func (r *EventRepo) Delete(id uint) error {
	r.logger.WithField(log.FldID, id).Debug("Deleting event")
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("Delete: Failed to start transaction: %v", err)
	}
	query := "DELETE FROM Events WHERE id = ?"
	res, err := tx.Exec(query, id)
	if err != nil {
		return repos.DoRollback(tx, err)
	}
	var num int64
	if num, err = res.RowsAffected(); err == nil {
		if num == 0 {
			return repos.DoRollback(tx, repos.ErrEntityNotExisting)
		}
	}
	// Remove the requests, their co-singer rows and the crate belonging to the deleted event
	queries := []string{
		"DELETE FROM RequestSingers WHERE requestId IN (SELECT id FROM Requests WHERE eventId = ?)",
		"DELETE FROM Requests WHERE eventId = ?",
		"DELETE FROM CrateSongs WHERE crateId IN (SELECT id FROM Crates WHERE eventId = ?)",
		"DELETE FROM Crates WHERE eventId = ?",
	}
	for _, query := range queries {
		if _, err = tx.Exec(query, id); err != nil {
			return repos.DoRollback(tx, fmt.Errorf("Delete: Failed to remove dependent rows: %v", err))
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Delete: Failed to commit transaction: %v", err)
	}
	return nil
}

// GetByID returns the Event with the given ID
func (r *EventRepo) GetByID(id uint) (*models.Event, error) {
	r.logger.WithField(log.FldID, id).Debug("Loading event")
	query := fmt.Sprintf("SELECT %s FROM Events WHERE id = ?", eventFields)
	var ev models.Event
	err := r.db.Get(&ev, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			// Nothing found
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	return &ev, nil
}

// GetByDate returns the event or events that are valid for the given point in time
func (r *EventRepo) GetByDate(date time.Time) ([]models.Event, error) {
	query := fmt.Sprintf("SELECT %s FROM Events WHERE startsAt <= ? AND endsAt >= ? ORDER BY startsAt", eventFields)
	var ret []models.Event
	if err := r.db.Select(&ret, query, date, date); err != nil {
		return nil, err
	}
	return ret, nil
}

// Find searches for events matching the given search string - supports pagination
func (r *EventRepo) Find(search string, offset uint, limit uint) ([]models.Event, uint, error) {
	if limit == 0 {
		limit = 50
	}
	r.logger.WithFields(logrus.Fields{
		log.FldSearch: search,
		log.FldOffset: offset,
		log.FldLimit:  limit,
	}).Debug("Searching for event")
	// For now, we're using a simple LIKE search
	search = "%" + search + "%"
	query := fmt.Sprintf(`SELECT %s FROM Events WHERE
        name LIKE $1 OR
        venue LIKE $1 OR
        description LIKE $1
        ORDER BY startsAt DESC
        LIMIT $2 OFFSET $3`, eventFields)
	var ret []models.Event
	err := r.db.Select(&ret, query, search, limit, offset)
	if err != nil {
		r.logger.WithError(err).Error("Failed to query events")
		return nil, 0, err
	}
	// Query the full count
	query = `SELECT COUNT(*) FROM Events WHERE
        name LIKE $1 OR
        venue LIKE $1 OR
        description LIKE $1`
	var numRows uint
	if err = r.db.Get(&numRows, query, search); err != nil {
		return nil, 0, err
	}
	return ret, numRows, nil
}
