package internal

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tbrandt/encore/internal/log"
	"github.com/tbrandt/encore/internal/models"
	"github.com/tbrandt/encore/internal/repos"
	"golang.org/x/net/context"
)

// SaveResult is the outcome of a save-from-source call. When the catalog already contained a matching
// entry, Duplicate is true and Song is the existing row
type SaveResult struct {
	Song      *models.Song `json:"song"`
	Duplicate bool         `json:"duplicate"`
}

// SongService provides service functions for working with the song catalog
type SongService interface {
	// SaveFromSource saves incoming track metadata unless the catalog already contains an entry with
	// the same dedup key. The call is idempotent: saving the same input twice returns the same song
	// identity both times and writes only once
	SaveFromSource(ctx context.Context, song *models.Song) (*SaveResult, error)
	// Get returns the catalog entry with the given ID
	Get(ctx context.Context, id uint) (*models.Song, error)
	// Search returns a page of catalog entries matching the search term
	Search(ctx context.Context, search *Search) ([]models.Song, uint, error)
	// UpdateEnrichment sets the enrichment fields (video URL, cover art) on an existing entry.
	// All other song metadata is immutable after creation
	UpdateEnrichment(ctx context.Context, id uint, videoURL, coverURL string) (*models.Song, error)
}

// -- SongService implementation ---------------------------------------------------------------------------------------

type songService struct {
	logger *logrus.Entry
	repo   repos.SongRepo
}

// NewSongService creates a new SongService instance
func NewSongService(repo repos.SongRepo, logger *logrus.Entry) SongService {
	return &songService{logger, repo}
}

// validateURL checks that the given string parses as an absolute http(s) URL
func validateURL(raw string, field string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return MakeValidationError(fmt.Sprintf("'%s' must be a well-formed http(s) URL", field), field)
	}
	return nil
}

// SaveFromSource saves incoming track metadata unless the catalog already contains a matching entry
func (s *songService) SaveFromSource(ctx context.Context, song *models.Song) (*SaveResult, error) {
	song.Title = strings.TrimSpace(song.Title)
	song.Artist = strings.TrimSpace(song.Artist)
	if song.Title == "" {
		return nil, MakeValidationError("Song title missing", "title")
	}
	if song.Artist == "" {
		return nil, MakeValidationError("Song artist missing", "artist")
	}
	if !models.ValidSongSource(song.Source) {
		return nil, MakeValidationError(fmt.Sprintf("Unknown song source '%s'", song.Source), "source")
	}
	if song.VideoURL != "" {
		if err := validateURL(song.VideoURL, "videoUrl"); err != nil {
			return nil, err
		}
	}
	song.Normalize()

	// Look for an existing entry under the natural key first
	existing, err := s.repo.GetByDedupKey(song.DedupKey())
	if err != nil && err != repos.ErrEntityNotExisting {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while checking catalog for duplicates",
			err,
		)
	}
	if existing != nil {
		return &SaveResult{Song: existing, Duplicate: true}, nil
	}

	if err := s.repo.Create(song); err != nil {
		if err == repos.ErrDuplicateEntity {
			// Lost a race against a concurrent save of the same track - the other writer's row wins
			existing, err := s.repo.GetByDedupKey(song.DedupKey())
			if err != nil {
				return nil, MakeErrorWithData(
					http.StatusConflict,
					ErrCodeConflict,
					"A matching catalog entry appeared concurrently but could not be loaded",
					err,
				)
			}
			return &SaveResult{Song: existing, Duplicate: true}, nil
		}
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while saving song to catalog",
			err,
		)
	}
	s.logger.WithFields(logrus.Fields{
		log.FldSong:   song.ID,
		log.FldSource: song.Source,
	}).Info("New song saved to catalog")
	return &SaveResult{Song: song, Duplicate: false}, nil
}

// Get returns the catalog entry with the given ID
func (s *songService) Get(ctx context.Context, id uint) (*models.Song, error) {
	song, err := s.repo.GetByID(id)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(
				http.StatusNotFound,
				ErrCodeSongNotFound,
				fmt.Sprintf("Song #%d does not exist", id),
			)
		}
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while retrieving song #%d", id),
			err,
		)
	}
	return song, nil
}

// Search returns a page of catalog entries matching the search term
func (s *songService) Search(ctx context.Context, search *Search) ([]models.Song, uint, error) {
	songs, numRows, err := s.repo.Find(search.Search, search.Offset, search.Limit)
	if err != nil {
		s.logger.WithError(err).Error("Song search query failed")
		return nil, 0, MakeError(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Failed to load song information from storage",
		)
	}
	return songs, numRows, nil
}

// UpdateEnrichment sets the enrichment fields on an existing catalog entry
func (s *songService) UpdateEnrichment(ctx context.Context, id uint, videoURL, coverURL string) (*models.Song, error) {
	if videoURL != "" {
		if err := validateURL(videoURL, "videoUrl"); err != nil {
			return nil, err
		}
	}
	if coverURL != "" {
		if err := validateURL(coverURL, "coverUrl"); err != nil {
			return nil, err
		}
	}
	song, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	song.VideoURL = videoURL
	song.CoverURL = coverURL
	if err := s.repo.UpdateEnrichment(song); err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(
				http.StatusNotFound,
				ErrCodeSongNotFound,
				fmt.Sprintf("Song #%d does not exist", id),
			)
		}
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while updating song #%d", id),
			err,
		)
	}
	return song, nil
}
