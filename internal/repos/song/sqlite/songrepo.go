// Package sqlite provides a song catalog repository that uses SQLite for storage
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tbrandt/encore/internal/log"
	"github.com/tbrandt/encore/internal/models"
	"github.com/tbrandt/encore/internal/repos"
)

const (
	// The field names in the song table
	fieldNames = `id, title, normalizedTitle, artist, normalizedArtist, album, duration, coverUrl, videoUrl,
                    source, sourceExternalId, createdAt, updatedAt`
	insertFields = `title, normalizedTitle, artist, normalizedArtist, album, duration, coverUrl, videoUrl,
                    source, sourceExternalId, createdAt, updatedAt`
)

// SongRepo implements repos.SongRepo and provides access to the song catalog stored inside a SQLite database
type SongRepo struct {
	logger *logrus.Entry
	db     *sqlx.DB
}

// New creates a new SongRepo
func New(db *sqlx.DB, logger *logrus.Entry) repos.SongRepo {
	return &SongRepo{logger, db}
}

// isUniqueViolation checks if the given error is the SQLite unique-constraint failure fired when two
// writes race for the same dedup key
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Create inserts a new catalog entry
func (r *SongRepo) Create(s *models.Song) error {
	r.logger.WithFields(logrus.Fields{
		"title":       s.Title,
		"artist":      s.Artist,
		log.FldSource: s.Source,
	}).Debug("Creating song")
	query := fmt.Sprintf(
		`INSERT INTO Songs(%s) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))`,
		insertFields,
	)
	res, err := r.db.Exec(
		query,
		s.Title, s.NormalizedTitle, s.Artist, s.NormalizedArtist, s.Album, s.Duration, s.CoverURL, s.VideoURL,
		s.Source, s.SourceExternalID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repos.ErrDuplicateEntity
		}
		return err
	}
	var id int64
	if id, err = res.LastInsertId(); err == nil {
		s.ID = uint(id)
	}
	return err
}

// UpdateEnrichment updates the enrichment fields of an existing catalog entry
// The identifying metadata of a song is immutable once created
func (r *SongRepo) UpdateEnrichment(s *models.Song) error {
	r.logger.WithField(log.FldSong, s.ID).Debug("Updating song enrichment fields")
	query := `UPDATE Songs SET coverUrl = ?, videoUrl = ?, updatedAt = datetime('now') WHERE id = ?`
	res, err := r.db.Exec(query, s.CoverURL, s.VideoURL, s.ID)
	if err != nil {
		return errors.Wrap(err, "UpdateEnrichment: Failed to update song entry")
	}
	if num, _ := res.RowsAffected(); num == 0 {
		return repos.ErrEntityNotExisting
	}
	return nil
}

// GetByID returns the catalog entry having the given ID
func (r *SongRepo) GetByID(id uint) (*models.Song, error) {
	r.logger.WithField(log.FldSong, id).Debug("Loading song")
	query := fmt.Sprintf("SELECT %s FROM Songs WHERE id = ?", fieldNames)
	var song models.Song
	err := r.db.Get(&song, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			// Nothing found
			return nil, repos.ErrEntityNotExisting
		}
		return nil, err
	}
	return &song, nil
}

// GetByIDs returns the catalog entries for the given IDs, keyed by ID
func (r *SongRepo) GetByIDs(ids []uint) (map[uint]models.Song, error) {
	ret := map[uint]models.Song{}
	if len(ids) == 0 {
		return ret, nil
	}
	query := fmt.Sprintf(
		"SELECT %s FROM Songs WHERE id IN (?%s)",
		fieldNames, strings.Repeat(", ?", len(ids)-1),
	)
	params := []interface{}{}
	for _, id := range ids {
		params = append(params, id)
	}
	rows, err := r.db.Queryx(query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var song models.Song
		if err = rows.StructScan(&song); err != nil {
			return nil, err
		}
		ret[song.ID] = song
	}
	return ret, nil
}

// GetByDedupKey returns the catalog entry matching the given natural key exactly
func (r *SongRepo) GetByDedupKey(key models.DedupKey) (*models.Song, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM Songs WHERE source = ? AND sourceExternalId = ? AND normalizedTitle = ? AND normalizedArtist = ?`,
		fieldNames,
	)
	var song models.Song
	err := r.db.Get(&song, query, key.Source, key.SourceExternalID, key.NormalizedTitle, key.NormalizedArtist)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repos.ErrEntityNotExisting
		}
		return nil, errors.Wrap(err, "GetByDedupKey: Failed to query database")
	}
	return &song, nil
}

// Find searches for songs matching the given search string - supports pagination
// Returned is the requested page of the catalog and the number of songs in the full result set
func (r *SongRepo) Find(search string, offset uint, limit uint) ([]models.Song, uint, error) {
	if limit == 0 || limit > 50 {
		limit = 50
	}
	r.logger.WithFields(logrus.Fields{
		log.FldSearch: search,
		log.FldOffset: offset,
		log.FldLimit:  limit,
	}).Debug("Searching for song")
	// For now, we're using a simple LIKE search
	search = "%" + search + "%"
	query := fmt.Sprintf(`SELECT %s FROM Songs WHERE
        title LIKE $1 OR
        artist LIKE $1 OR
        album LIKE $1
        ORDER BY title, artist, album
        LIMIT $2 OFFSET $3
    `, fieldNames)
	var ret []models.Song
	err := r.db.Select(&ret, query, search, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	// Query the full count
	query = `SELECT COUNT(*) FROM Songs WHERE
        title LIKE $1 OR
        artist LIKE $1 OR
        album LIKE $1`
	var numRows uint
	if err = r.db.Get(&numRows, query, search); err != nil {
		return nil, 0, err
	}
	return ret, numRows, nil
}
