package internal

import (
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/tbrandt/encore/internal/ingest"
	"github.com/tbrandt/encore/internal/log"
	"github.com/tbrandt/encore/internal/models"
	"golang.org/x/net/context"
)

// ImportSummary reports what an import run did to the catalog
type ImportSummary struct {
	// Display name of the imported collection, if the source provides one
	Name string `json:"name,omitempty"`
	// Number of tracks newly added to the catalog
	Saved uint `json:"saved"`
	// Number of tracks the catalog already contained
	Duplicates uint `json:"duplicates"`
	// Number of rows the importer could not turn into a track (missing title or artist)
	Skipped uint `json:"skipped"`
}

// ImportService feeds external track metadata into the song catalog
type ImportService interface {
	// ImportSpotify resolves a Spotify playlist, album or track URL and saves its tracks
	ImportSpotify(ctx context.Context, url string) (*ImportSummary, error)
	// ImportCSV reads a CSV track list and saves its rows
	ImportCSV(ctx context.Context, r io.Reader) (*ImportSummary, error)
}

// -- ImportService implementation -------------------------------------------------------------------------------------

type importService struct {
	logger  *logrus.Entry
	songs   SongService
	spotify ingest.TrackSource
}

// NewImportService creates a new ImportService instance. The Spotify source may be nil when no
// API credentials are configured - Spotify imports then answer with an error instead
func NewImportService(songs SongService, spotifySource ingest.TrackSource, logger *logrus.Entry) ImportService {
	return &importService{
		logger:  logger,
		songs:   songs,
		spotify: spotifySource,
	}
}

// ImportSpotify resolves a Spotify URL and saves the tracks it points at
func (s *importService) ImportSpotify(ctx context.Context, url string) (*ImportSummary, error) {
	if s.spotify == nil {
		return nil, MakeError(
			http.StatusServiceUnavailable,
			ErrCodeImportSourceUnavailable,
			"Spotify import is not configured on this server",
		)
	}
	if err := validateURL(url, "url"); err != nil {
		return nil, err
	}
	tracks, name, err := s.spotify.Fetch(ctx, url)
	if err != nil {
		s.logger.WithError(err).WithField(log.FldSource, models.SourceSpotify).Error("Spotify import failed")
		return nil, MakeErrorWithData(
			http.StatusBadGateway,
			ErrCodeImportFailed,
			"Could not fetch track data from Spotify",
			err.Error(),
		)
	}
	summary, err := s.saveTracks(ctx, tracks, 0)
	if err != nil {
		return nil, err
	}
	summary.Name = name
	s.logImport(models.SourceSpotify, summary)
	return summary, nil
}

// ImportCSV reads a CSV track list and saves its rows
func (s *importService) ImportCSV(ctx context.Context, r io.Reader) (*ImportSummary, error) {
	tracks, skipped, err := ingest.ParseCSV(r)
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeImportFailed,
			"Could not parse the uploaded CSV file",
			err.Error(),
		)
	}
	summary, err := s.saveTracks(ctx, tracks, skipped)
	if err != nil {
		return nil, err
	}
	s.logImport(models.SourceCSV, summary)
	return summary, nil
}

// saveTracks pushes the imported rows through the catalog's dedup gate one by one
func (s *importService) saveTracks(ctx context.Context, tracks []ingest.Track, skipped uint) (*ImportSummary, error) {
	summary := &ImportSummary{Skipped: skipped}
	for _, t := range tracks {
		song := t.Song()
		res, err := s.songs.SaveFromSource(ctx, &song)
		if err != nil {
			if httpErr, ok := err.(*HTTPError); ok && httpErr.ErrorCode() == ErrCodeValidation {
				// Bad row, good file - count it and keep going
				summary.Skipped++
				continue
			}
			return nil, err
		}
		if res.Duplicate {
			summary.Duplicates++
		} else {
			summary.Saved++
		}
	}
	return summary, nil
}

func (s *importService) logImport(source string, summary *ImportSummary) {
	s.logger.WithFields(logrus.Fields{
		log.FldSource: source,
		"saved":       summary.Saved,
		"duplicates":  summary.Duplicates,
		"skipped":     summary.Skipped,
	}).Info("Catalog import finished")
}
