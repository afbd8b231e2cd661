// Package sqlite contains a repository for song requests that stores its data inside a SQLite database
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
	requestFields = `id, eventId, songId, requesterId, status, videoUrl, rejectionReason, fastPass, inCrate,
                    createdAt, updatedAt`
	insertFields = `eventId, songId, requesterId, status, videoUrl, rejectionReason, fastPass, inCrate,
                    createdAt, updatedAt`
)

// Helper struct to get the count of things
type countHelper struct {
	Count uint `db:"count"`
}

// RequestRepo is a song request repository that stores its data inside a SQLite database
type RequestRepo struct {
	db     *sqlx.DB
	logger *logrus.Entry
}

// New creates a new RequestRepo instance with the given DB and logger instances
func New(db *sqlx.DB, logger *logrus.Entry) repos.RequestRepo {
	return &RequestRepo{db, logger}
}

// -- Methods ----------------------------------------------------------------------------------------------------------

// Create inserts a new request together with its co-singer set
// The co-singer rows live in a separate table with a compound primary key, so duplicates in the
// incoming slice collapse into one row each
func (r *RequestRepo) Create(req *models.Request) error {
	r.logger.WithFields(logrus.Fields{
		log.FldEvent: req.EventID,
		log.FldSong:  req.SongID,
		log.FldUser:  req.RequesterID,
	}).Debug("Creating song request")
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("Create: Failed to start transaction: %v", err)
	}
	query := fmt.Sprintf(
		"INSERT INTO Requests(%s) VALUES(?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))",
		insertFields,
	)
	res, err := tx.Exec(
		query,
		req.EventID, req.SongID, req.RequesterID, req.Status, req.VideoURL, req.RejectionReason,
		req.FastPass, req.InCrate,
	)
	if err != nil {
		return repos.DoRollback(tx, fmt.Errorf("Create: Failed to create request: %v", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return repos.DoRollback(tx, fmt.Errorf("Create: Failed to retrieve last insert ID: %v", err))
	}
	req.ID = uint(id)
	for _, userID := range req.CoSingerIDs {
		query = "INSERT OR IGNORE INTO RequestSingers(requestId, userId) VALUES(?, ?)"
		if _, err = tx.Exec(query, req.ID, userID); err != nil {
			return repos.DoRollback(tx, fmt.Errorf("Create: Failed to store co-singer: %v", err))
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Create: Failed to commit transaction: %v", err)
	}
	return nil
}

// GetByID returns the request with the given ID, co-singers included
func (r *RequestRepo) GetByID(id uint) (*models.Request, error) {
	r.logger.WithField(log.FldRequest, id).Debug("Loading song request")
	query := fmt.Sprintf("SELECT %s FROM Requests WHERE id = ?", requestFields)
	var req models.Request
	err := r.db.Get(&req, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			// Nothing found
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	if err = r.loadCoSingers(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// loadCoSingers fills the co-singer set of the given request from the join table
func (r *RequestRepo) loadCoSingers(req *models.Request) error {
	query := "SELECT userId FROM RequestSingers WHERE requestId = ? ORDER BY userId"
	var ids []uint
	if err := r.db.Select(&ids, query, req.ID); err != nil {
		return errors.Wrap(err, "loadCoSingers: Failed to query co-singers")
	}
	req.CoSingerIDs = ids
	return nil
}

// SetStatus performs a guarded status update on the request
// The WHERE clause re-checks that the stored status is still non-terminal, so the update loses
// cleanly against a racing terminal transition instead of resurrecting a rejected or performed request
func (r *RequestRepo) SetStatus(id uint, status models.RequestStatus, reason string) error {
	r.logger.WithFields(logrus.Fields{
		log.FldRequest: id,
		log.FldStatus:  status,
	}).Debug("Updating request status")
	query := `UPDATE Requests SET
                status = ?,
                rejectionReason = ?,
                updatedAt = datetime('now')
            WHERE id = ? AND status NOT IN (?, ?)`
	res, err := r.db.Exec(query, status, reason, id, models.RequestRejected, models.RequestPerformed)
	if err != nil {
		return fmt.Errorf("SetStatus: Failed to update request in database: %v", err)
	}
	if num, _ := res.RowsAffected(); num == 0 {
		// Distinguish "gone" from "already terminal"
		var exists countHelper
		if err := r.db.Get(&exists, `SELECT COUNT(*) as count FROM Requests WHERE id = ?`, id); err != nil {
			return fmt.Errorf("SetStatus: Failed to verify request existence: %v", err)
		}
		if exists.Count == 0 {
			return repos.ErrEntityNotExisting
		}
		return repos.ErrStateConflict
	}
	return nil
}

// SetInCrate updates the denormalized in-crate flag of the request
func (r *RequestRepo) SetInCrate(id uint, inCrate bool) error {
	query := `UPDATE Requests SET inCrate = ?, updatedAt = datetime('now') WHERE id = ?`
	res, err := r.db.Exec(query, inCrate, id)
	if err != nil {
		return fmt.Errorf("SetInCrate: Failed to update request: %v", err)
	}
	if num, _ := res.RowsAffected(); num == 0 {
		return repos.ErrEntityNotExisting
	}
	return nil
}

// SetVideoURL attaches or overwrites the video URL of the request
func (r *RequestRepo) SetVideoURL(id uint, videoURL string) error {
	query := `UPDATE Requests SET videoUrl = ?, updatedAt = datetime('now') WHERE id = ?`
	res, err := r.db.Exec(query, videoURL, id)
	if err != nil {
		return fmt.Errorf("SetVideoURL: Failed to update request: %v", err)
	}
	if num, _ := res.RowsAffected(); num == 0 {
		return repos.ErrEntityNotExisting
	}
	return nil
}

// FindByEvent returns the requests of the event matching the filter, newest first
func (r *RequestRepo) FindByEvent(eventID uint, filter models.RequestFilter) ([]models.Request, error) {
	r.logger.WithField(log.FldEvent, eventID).Debug("Listing song requests")
	query := fmt.Sprintf("SELECT %s FROM Requests WHERE eventId = ?", requestFields)
	params := []interface{}{eventID}
	if filter.Status != nil {
		query += " AND status = ?"
		params = append(params, *filter.Status)
	}
	if filter.InCrate != nil {
		query += " AND inCrate = ?"
		params = append(params, *filter.InCrate)
	}
	query += " ORDER BY createdAt DESC, id DESC"
	var ret []models.Request
	if err := r.db.Select(&ret, query, params...); err != nil {
		return nil, err
	}
	if err := r.loadCoSingerSets(ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// FindEligible returns the event's requests in the approved or queued state, ordered by creation
// time ascending. The secondary sort on the ID keeps the order stable for requests created within
// the same timestamp granularity
func (r *RequestRepo) FindEligible(eventID uint) ([]models.Request, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM Requests WHERE eventId = ? AND status IN (?, ?) ORDER BY createdAt ASC, id ASC`,
		requestFields,
	)
	var ret []models.Request
	err := r.db.Select(&ret, query, eventID, models.RequestApproved, models.RequestQueued)
	if err != nil {
		return nil, err
	}
	if err = r.loadCoSingerSets(ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// loadCoSingerSets fills the co-singer sets for a whole result page with a single query
func (r *RequestRepo) loadCoSingerSets(requests []models.Request) error {
	if len(requests) == 0 {
		return nil
	}
	idx := map[uint]int{}
	params := []interface{}{}
	placeholders := ""
	for i, req := range requests {
		idx[req.ID] = i
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		params = append(params, req.ID)
	}
	query := fmt.Sprintf(
		"SELECT requestId, userId FROM RequestSingers WHERE requestId IN (%s) ORDER BY userId",
		placeholders,
	)
	rows, err := r.db.Queryx(query, params...)
	if err != nil {
		return errors.Wrap(err, "loadCoSingerSets: Failed to query co-singers")
	}
	defer rows.Close()
	for rows.Next() {
		var requestID, userID uint
		if err = rows.Scan(&requestID, &userID); err != nil {
			return errors.Wrap(err, "loadCoSingerSets: Failed to scan co-singer row")
		}
		if i, ok := idx[requestID]; ok {
			requests[i].CoSingerIDs = append(requests[i].CoSingerIDs, userID)
		}
	}
	return nil
}

// CountOpenBySinger counts the singer's requests at the event that are neither rejected nor performed
func (r *RequestRepo) CountOpenBySinger(eventID uint, requesterID uint) (uint, error) {
	query := `SELECT COUNT(*) as count FROM Requests
            WHERE eventId = ? AND requesterId = ? AND status NOT IN (?, ?)`
	var c countHelper
	err := r.db.Get(&c, query, eventID, requesterID, models.RequestRejected, models.RequestPerformed)
	if err != nil {
		return 0, errors.Wrap(err, "CountOpenBySinger: Failed to query database")
	}
	return c.Count, nil
}

// CountByEventAndSong counts the non-terminal requests for the given song at the given event
func (r *RequestRepo) CountByEventAndSong(eventID uint, songID uint) (uint, error) {
	query := `SELECT COUNT(*) as count FROM Requests
            WHERE eventId = ? AND songId = ? AND status NOT IN (?, ?)`
	var c countHelper
	err := r.db.Get(&c, query, eventID, songID, models.RequestRejected, models.RequestPerformed)
	if err != nil {
		return 0, errors.Wrap(err, "CountByEventAndSong: Failed to query database")
	}
	return c.Count, nil
}
