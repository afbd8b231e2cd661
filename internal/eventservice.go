package internal

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tbrandt/encore/internal/ctxhelper"
	"github.com/tbrandt/encore/internal/log"
	"github.com/tbrandt/encore/internal/models"
	"github.com/tbrandt/encore/internal/repos"
	"golang.org/x/net/context"
)

// EventService provides service functions for working with events
type EventService interface {
	List(ctx context.Context, search *Search) ([]models.Event, uint, error)
	Get(ctx context.Context, id uint) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) (*models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id uint) error
	SetCurrentEvent(ctx context.Context, id uint) error
	CurrentEvent(ctx context.Context) (*models.Event, error)
}

// -- EventService implementation --------------------------------------------------------------------------------------

// EventService implementation
type eventService struct {
	repo           repos.EventRepo
	logger         *logrus.Entry
	currentEventID uint
}

// NewEventService creates a new event service instance
func NewEventService(repo repos.EventRepo, logger *logrus.Entry) EventService {
	return &eventService{
		repo:   repo,
		logger: logger,
	}
}

// SetCurrentEvent sets the event currently active to the event with the given ID
func (s *eventService) SetCurrentEvent(ctx context.Context, id uint) error {
	// Check if the event exists
	if _, err := s.repo.GetByID(id); err != nil {
		if err == repos.ErrEntityNotExisting {
			return MakeError(http.StatusNotFound, ErrCodeEventNotFound,
				fmt.Sprintf("Event #%d does not exist", id),
			)
		}
		return MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while retrieving event #%d", id), err,
		)
	}
	s.currentEventID = id
	s.logger.WithField(log.FldEvent, id).Info("Current event changed")
	return nil
}

// CurrentEvent returns the event which is currently active
func (s *eventService) CurrentEvent(ctx context.Context) (*models.Event, error) {
	if s.currentEventID == 0 {
		return nil, ErrNoCurrentEvent
	}
	return s.Get(ctx, s.currentEventID)
}

// List searches for events matching the given search term
func (s *eventService) List(ctx context.Context, search *Search) ([]models.Event, uint, error) {
	lists, numRows, err := s.repo.Find(search.Search, search.Offset, search.Limit)
	if err != nil {
		return nil, 0, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while searching events",
			err,
		)
	}
	return lists, numRows, nil
}

// Get returns the event with the given ID
func (s *eventService) Get(ctx context.Context, id uint) (*models.Event, error) {
	ev, err := s.repo.GetByID(id)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(http.StatusNotFound, ErrCodeEventNotFound,
				fmt.Sprintf("Event #%d does not exist", id),
			)
		}
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while retrieving event #%d", id), err,
		)
	}
	return ev, nil
}

// Create creates a new event
func (s *eventService) Create(ctx context.Context, event *models.Event) (*models.Event, error) {
	event.Name = strings.TrimSpace(event.Name)
	if event.Name == "" {
		return nil, MakeValidationError("Event name missing", "name")
	}
	if event.Status == "" {
		event.Status = models.EventStatusDraft
	}
	if !models.ValidEventStatus(event.Status) {
		return nil, MakeValidationError(fmt.Sprintf("Unknown event status '%s'", event.Status), "status")
	}
	if user := ctxhelper.User(ctx); user != nil {
		event.CreatedBy = user.ID
	}
	if err := s.repo.Create(event); err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while creating event",
			err,
		)
	}
	return event, nil
}

// Update updates an existing event
func (s *eventService) Update(ctx context.Context, event *models.Event) error {
	originalEvent, err := s.Get(ctx, event.ID)
	if err != nil {
		return err
	}
	event.Name = strings.TrimSpace(event.Name)
	if event.Name != "" {
		originalEvent.Name = event.Name
	}
	originalEvent.Description = event.Description
	originalEvent.Venue = event.Venue
	if event.Status != "" {
		if !models.ValidEventStatus(event.Status) {
			return MakeValidationError(fmt.Sprintf("Unknown event status '%s'", event.Status), "status")
		}
		originalEvent.Status = event.Status
	}
	originalEvent.StartsAt = event.StartsAt
	originalEvent.EndsAt = event.EndsAt
	err = s.repo.Update(originalEvent)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return MakeError(
				http.StatusNotFound,
				ErrCodeEventNotFound,
				fmt.Sprintf("Event #%d does not exist", event.ID),
			)
		}
		return MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			fmt.Sprintf("Error while upating event #%d", event.ID),
			err,
		)
	}
	return nil
}

// Delete removes an existing event from the repository
func (s *eventService) Delete(ctx context.Context, id uint) error {
	err := s.repo.Delete(id)
	if err == repos.ErrEntityNotExisting {
		return MakeError(
			http.StatusNotFound,
			ErrCodeEventNotFound,
			fmt.Sprintf("Event #%d does not exist", id),
		)
	}
	if id == s.currentEventID {
		// Now, we don't have a current event any more
		s.currentEventID = 0
	}
	return err
}
