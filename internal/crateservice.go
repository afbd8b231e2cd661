package internal

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/tbrandt/encore/internal/log"
	"github.com/tbrandt/encore/internal/models"
	"github.com/tbrandt/encore/internal/repos"
	"golang.org/x/net/context"
)

// AddResult reports the outcome of adding a song to a crate. AlreadyPresent is true when the crate
// already contained the song and nothing was written
type AddResult struct {
	Crate          *models.Crate `json:"crate"`
	AlreadyPresent bool          `json:"alreadyPresent"`
}

// CrateService provides service functions for working with per-event crates
type CrateService interface {
	// GetOrCreate returns the crate belonging to the given event, creating an empty one on first use
	GetOrCreate(ctx context.Context, eventID uint) (*models.Crate, error)
	// Get returns the crate with the given ID together with its hydrated song list
	Get(ctx context.Context, id uint) (*models.CrateDetails, error)
	// GetByEvent returns the hydrated crate of the given event, creating an empty one on first use
	GetByEvent(ctx context.Context, eventID uint) (*models.CrateDetails, error)
	// AddSong adds a catalog song to the event's crate. Adding a song that is already in the crate
	// is a no-op flagged in the result
	AddSong(ctx context.Context, eventID uint, songID uint) (*AddResult, error)
	// RemoveSong removes a song from the event's crate. Removing a song that is not in the crate is
	// a no-op
	RemoveSong(ctx context.Context, eventID uint, songID uint) (*models.Crate, error)
	// Merge copies the songs of the given source crates into the target event's crate and reports
	// how many were added and how many were skipped as duplicates
	Merge(ctx context.Context, eventID uint, sourceCrateIDs []uint) (*models.MergeReport, error)
}

// -- CrateService implementation --------------------------------------------------------------------------------------

type crateService struct {
	logger    *logrus.Entry
	crates    repos.CrateRepo
	songs     repos.SongRepo
	eventRepo repos.EventRepo
}

// NewCrateService creates a new CrateService instance
func NewCrateService(crates repos.CrateRepo, songs repos.SongRepo, events repos.EventRepo, logger *logrus.Entry) CrateService {
	return &crateService{logger, crates, songs, events}
}

// ensureEvent checks that the event the crate belongs to actually exists
func (s *crateService) ensureEvent(eventID uint) error {
	if _, err := s.eventRepo.GetByID(eventID); err != nil {
		if err == repos.ErrEntityNotExisting {
			return MakeError(
				http.StatusNotFound,
				ErrCodeEventNotFound,
				fmt.Sprintf("Event #%d does not exist", eventID),
			)
		}
		return MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while loading event #%d", eventID),
			err,
		)
	}
	return nil
}

func (s *crateService) GetOrCreate(ctx context.Context, eventID uint) (*models.Crate, error) {
	if err := s.ensureEvent(eventID); err != nil {
		return nil, err
	}
	crate, err := s.crates.GetOrCreateByEvent(eventID)
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while loading crate for event #%d", eventID),
			err,
		)
	}
	return crate, nil
}

func (s *crateService) Get(ctx context.Context, id uint) (*models.CrateDetails, error) {
	crate, err := s.crates.GetByID(id)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(
				http.StatusNotFound,
				ErrCodeCrateNotFound,
				fmt.Sprintf("Crate #%d does not exist", id),
			)
		}
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while loading crate #%d", id),
			err,
		)
	}
	return s.hydrate(crate)
}

func (s *crateService) GetByEvent(ctx context.Context, eventID uint) (*models.CrateDetails, error) {
	crate, err := s.GetOrCreate(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.hydrate(crate)
}

// hydrate resolves a crate's song ID set into full catalog entries, keeping the stored song order
func (s *crateService) hydrate(crate *models.Crate) (*models.CrateDetails, error) {
	songMap, err := s.songs.GetByIDs(crate.SongIDs)
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while loading crate songs",
			err,
		)
	}
	details := &models.CrateDetails{
		Crate: *crate,
		Songs: make([]models.Song, 0, len(crate.SongIDs)),
	}
	for _, id := range crate.SongIDs {
		if song, ok := songMap[id]; ok {
			details.Songs = append(details.Songs, song)
		}
	}
	return details, nil
}

func (s *crateService) AddSong(ctx context.Context, eventID uint, songID uint) (*AddResult, error) {
	crate, err := s.GetOrCreate(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if _, err := s.songs.GetByID(songID); err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(
				http.StatusNotFound,
				ErrCodeSongNotFound,
				fmt.Sprintf("Song #%d does not exist", songID),
			)
		}
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while loading song #%d", songID),
			err,
		)
	}
	added, err := s.crates.AddSong(crate.ID, songID)
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while adding song #%d to crate #%d", songID, crate.ID),
			err,
		)
	}
	if added {
		s.logger.WithFields(logrus.Fields{
			log.FldCrate: crate.ID,
			log.FldSong:  songID,
			log.FldEvent: eventID,
		}).Info("Song added to crate")
	}
	// Reload so the returned crate reflects the write
	crateID := crate.ID
	crate, err = s.crates.GetByID(crateID)
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while reloading crate #%d", crateID),
			err,
		)
	}
	return &AddResult{Crate: crate, AlreadyPresent: !added}, nil
}

func (s *crateService) RemoveSong(ctx context.Context, eventID uint, songID uint) (*models.Crate, error) {
	crate, err := s.GetOrCreate(ctx, eventID)
	if err != nil {
		return nil, err
	}
	removed, err := s.crates.RemoveSong(crate.ID, songID)
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while removing song #%d from crate #%d", songID, crate.ID),
			err,
		)
	}
	if removed {
		s.logger.WithFields(logrus.Fields{
			log.FldCrate: crate.ID,
			log.FldSong:  songID,
		}).Info("Song removed from crate")
	}
	crateID := crate.ID
	crate, err = s.crates.GetByID(crateID)
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while reloading crate #%d", crateID),
			err,
		)
	}
	return crate, nil
}

func (s *crateService) Merge(ctx context.Context, eventID uint, sourceCrateIDs []uint) (*models.MergeReport, error) {
	target, err := s.GetOrCreate(ctx, eventID)
	if err != nil {
		return nil, err
	}
	report := &models.MergeReport{}
	// Songs the target held before this merge - only these count as duplicates. Overlap between
	// the sources themselves is folded silently into the union
	preexisting := map[uint]bool{}
	for _, id := range target.SongIDs {
		preexisting[id] = true
	}
	merged := map[uint]bool{}
	skipped := map[uint]bool{}
	for _, crateID := range sourceCrateIDs {
		source, err := s.crates.GetByID(crateID)
		if err != nil {
			if err == repos.ErrEntityNotExisting {
				return nil, MakeError(
					http.StatusNotFound,
					ErrCodeCrateNotFound,
					fmt.Sprintf("Source crate #%d does not exist", crateID),
				)
			}
			return nil, MakeErrorWithData(
				http.StatusInternalServerError,
				ErrCodeRepoError,
				fmt.Sprintf("Error while loading source crate #%d", crateID),
				err,
			)
		}
		for _, songID := range source.SongIDs {
			if preexisting[songID] {
				// Each already-present song is reported once, no matter how many sources carry it
				if !skipped[songID] {
					skipped[songID] = true
					report.Skipped++
					report.DuplicateSongIDs = append(report.DuplicateSongIDs, songID)
				}
				continue
			}
			if merged[songID] {
				// A previous source in this same merge already staged it
				continue
			}
			added, err := s.crates.AddSong(target.ID, songID)
			if err != nil {
				return nil, MakeErrorWithData(
					http.StatusInternalServerError,
					ErrCodeRepoError,
					fmt.Sprintf("Error while merging song #%d into crate #%d", songID, target.ID),
					err,
				)
			}
			merged[songID] = true
			if !added {
				// Another writer got here first - treat it like a preexisting duplicate
				skipped[songID] = true
				report.Skipped++
				report.DuplicateSongIDs = append(report.DuplicateSongIDs, songID)
				continue
			}
			report.Added++
		}
	}
	s.logger.WithFields(logrus.Fields{
		log.FldCrate: target.ID,
		log.FldEvent: eventID,
		"added":      report.Added,
		"skipped":    report.Skipped,
	}).Info("Crate merge finished")
	return report, nil
}
