package internal

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tbrandt/encore/internal/ctxhelper"
	"github.com/tbrandt/encore/internal/log"
	"github.com/tbrandt/encore/internal/models"
	"github.com/tbrandt/encore/internal/notify"
	"github.com/tbrandt/encore/internal/repos"
	"golang.org/x/net/context"
)

// ApproveOptions control what happens alongside an approval
type ApproveOptions struct {
	// AddToCrate stages the requested song in the event's crate in the same call
	AddToCrate bool `json:"addToCrate"`
}

// RequestService provides service functions for working with song requests and the live queue
type RequestService interface {
	// Create files a new song request for the given event. The request starts in the
	// pending state and has to be decided by an admin before it can enter the queue
	Create(ctx context.Context, req *models.Request) (*models.RequestDetails, error)
	// Get returns the request with the given ID, references resolved
	Get(ctx context.Context, id uint) (*models.RequestDetails, error)
	// List returns the requests of an event matching the filter, newest first
	List(ctx context.Context, eventID uint, filter models.RequestFilter) ([]models.RequestDetails, error)
	// Queue returns the event's current performance queue: all eligible requests ordered by
	// creation time, each carrying its freshly computed 1-based position
	Queue(ctx context.Context, eventID uint) ([]models.QueueEntry, error)
	// Approve accepts a pending request, making it eligible for the queue. Approving an already
	// approved request changes nothing and is not an error
	Approve(ctx context.Context, id uint, opts ApproveOptions) (*models.RequestDetails, error)
	// Reject declines a pending request. The reason is mandatory and becomes part of the request
	Reject(ctx context.Context, id uint, reason string) (*models.RequestDetails, error)
	// MarkPerformed finalizes an eligible request after the song has been sung
	MarkPerformed(ctx context.Context, id uint) (*models.RequestDetails, error)
	// UpdateVideo attaches or overwrites the request's video URL. Pure metadata - the request
	// keeps its state and queue position
	UpdateVideo(ctx context.Context, id uint, videoURL string) (*models.RequestDetails, error)
}

// -- RequestService implementation ------------------------------------------------------------------------------------

type requestService struct {
	logger   *logrus.Entry
	requests repos.RequestRepo
	songs    repos.SongRepo
	users    repos.UserRepo
	events   repos.EventRepo
	crates   repos.CrateRepo
	config   ConfigService
	notifier notify.Notifier
}

// NewRequestService creates a new RequestService instance
func NewRequestService(
	requests repos.RequestRepo,
	songs repos.SongRepo,
	users repos.UserRepo,
	events repos.EventRepo,
	crates repos.CrateRepo,
	config ConfigService,
	notifier notify.Notifier,
	logger *logrus.Entry,
) RequestService {
	return &requestService{
		logger:   logger,
		requests: requests,
		songs:    songs,
		users:    users,
		events:   events,
		crates:   crates,
		config:   config,
		notifier: notifier,
	}
}

// Create files a new song request for the given event
func (s *requestService) Create(ctx context.Context, req *models.Request) (*models.RequestDetails, error) {
	if _, err := s.events.GetByID(req.EventID); err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(
				http.StatusNotFound,
				ErrCodeEventNotFound,
				fmt.Sprintf("Event #%d does not exist", req.EventID),
			)
		}
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while retrieving event #%d", req.EventID), err,
		)
	}
	if _, err := s.songs.GetByID(req.SongID); err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(
				http.StatusNotFound,
				ErrCodeSongNotFound,
				fmt.Sprintf("Song #%d does not exist", req.SongID),
			)
		}
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while retrieving song #%d", req.SongID), err,
		)
	}
	requester := ctxhelper.User(ctx)
	if req.RequesterID == 0 && requester != nil {
		req.RequesterID = requester.ID
	}
	if req.RequesterID == 0 {
		return nil, MakeValidationError("Requester missing", "requesterId")
	}
	if req.VideoURL != "" {
		if err := validateURL(req.VideoURL, "videoUrl"); err != nil {
			return nil, err
		}
	}
	// The co-singers form a set that never contains the requester
	req.CoSingerIDs = dedupCoSingers(req.CoSingerIDs, req.RequesterID)

	if err := s.checkRestrictions(ctx, req, requester); err != nil {
		return nil, err
	}

	// The in-crate flag is a read-only annotation computed against the event's crate - the
	// request never modifies the crate
	req.InCrate = false
	if crate, err := s.crates.GetByEvent(req.EventID); err == nil {
		req.InCrate = crate.Contains(req.SongID)
	} else if err != repos.ErrEntityNotExisting {
		s.logger.WithError(err).WithField(log.FldEvent, req.EventID).
			Warn("Could not compute in-crate flag for new request")
	}

	req.Status = models.RequestPendingAdmin
	req.RejectionReason = ""
	if err := s.requests.Create(req); err != nil {
		return nil, MakeErrorWithData(
			http.StatusInternalServerError,
			ErrCodeRepoError,
			"Error while creating request",
			err,
		)
	}
	s.logger.WithFields(logrus.Fields{
		log.FldRequest: req.ID,
		log.FldEvent:   req.EventID,
		log.FldSong:    req.SongID,
		log.FldUser:    req.RequesterID,
	}).Info("New song request filed")
	return s.hydrateOne(req)
}

// dedupCoSingers removes duplicate entries and the requester from the co-singer list while
// keeping the original order
func dedupCoSingers(ids []uint, requesterID uint) []uint {
	seen := map[uint]bool{requesterID: true}
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// checkRestrictions enforces the configured singer restrictions. Admins and whitelisted singers
// bypass all of them
func (s *requestService) checkRestrictions(ctx context.Context, req *models.Request, requester *models.User) error {
	if requester != nil && (requester.IsAdmin() || s.config.IsWhitelisted(requester.Name)) {
		return nil
	}
	restr := s.config.GetConfig(ctx).Restrictions
	if restr.MaxOpenRequestsPerSinger > 0 {
		open, err := s.requests.CountOpenBySinger(req.EventID, req.RequesterID)
		if err != nil {
			return MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
				"Error while counting the singer's open requests", err,
			)
		}
		if open >= restr.MaxOpenRequestsPerSinger {
			return MakeError(
				http.StatusForbidden,
				ErrCodeTooManyRequests,
				fmt.Sprintf("You already have %d open requests at this event", open),
			)
		}
	}
	if !restr.AllowDuplicateSongRequests {
		num, err := s.requests.CountByEventAndSong(req.EventID, req.SongID)
		if err != nil {
			return MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
				"Error while checking for duplicate song requests", err,
			)
		}
		if num > 0 {
			return MakeError(
				http.StatusConflict,
				ErrCodeDuplicateRequestNotAllowed,
				"This song has already been requested at this event",
			)
		}
	}
	return nil
}

// Get returns the request with the given ID, references resolved
func (s *requestService) Get(ctx context.Context, id uint) (*models.RequestDetails, error) {
	req, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return s.hydrateOne(req)
}

// load fetches the raw request or translates the repo error
func (s *requestService) load(id uint) (*models.Request, error) {
	req, err := s.requests.GetByID(id)
	if err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(
				http.StatusNotFound,
				ErrCodeRequestNotFound,
				fmt.Sprintf("Request #%d does not exist", id),
			)
		}
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while retrieving request #%d", id), err,
		)
	}
	return req, nil
}

// List returns the requests of an event matching the filter, newest first
func (s *requestService) List(ctx context.Context, eventID uint, filter models.RequestFilter) ([]models.RequestDetails, error) {
	reqs, err := s.requests.FindByEvent(eventID, filter)
	if err != nil {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while listing requests of event #%d", eventID), err,
		)
	}
	return s.hydrate(reqs)
}

// Queue returns the event's current performance queue. Positions are derived from a single
// consistent read: rank 1..n over the eligible requests in creation order. They are never stored,
// so the queue heals itself as soon as a member leaves or joins
func (s *requestService) Queue(ctx context.Context, eventID uint) ([]models.QueueEntry, error) {
	reqs, err := s.requests.FindEligible(eventID)
	if err != nil {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while loading the queue of event #%d", eventID), err,
		)
	}
	details, err := s.hydrate(reqs)
	if err != nil {
		return nil, err
	}
	queue := make([]models.QueueEntry, len(details))
	for i, d := range details {
		queue[i] = models.QueueEntry{
			RequestDetails: d,
			QueuePosition:  uint(i + 1),
		}
	}
	return queue, nil
}

// transition moves the request into the target status after checking the lifecycle rules
func (s *requestService) transition(id uint, to models.RequestStatus, reason string) (*models.Request, error) {
	req, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if req.Status == to {
		// Repeating a decision is a no-op, not an error
		return req, nil
	}
	if !models.CanTransition(req.Status, to) {
		return nil, MakeError(
			http.StatusConflict,
			ErrCodeInvalidStateTransition,
			fmt.Sprintf("Request #%d cannot change from '%s' to '%s'", id, req.Status, to),
		)
	}
	if err := s.requests.SetStatus(id, to, reason); err != nil {
		if err == repos.ErrStateConflict {
			// A concurrent terminal transition won the race
			return nil, MakeError(
				http.StatusConflict,
				ErrCodeInvalidStateTransition,
				fmt.Sprintf("Request #%d has meanwhile reached a final state", id),
			)
		}
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(
				http.StatusNotFound,
				ErrCodeRequestNotFound,
				fmt.Sprintf("Request #%d does not exist", id),
			)
		}
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while updating request #%d", id), err,
		)
	}
	req.Status = to
	req.RejectionReason = reason
	s.logger.WithFields(logrus.Fields{
		log.FldRequest: id,
		log.FldStatus:  string(to),
	}).Info("Request changed state")
	return req, nil
}

// Approve accepts a pending request, making it eligible for the queue
func (s *requestService) Approve(ctx context.Context, id uint, opts ApproveOptions) (*models.RequestDetails, error) {
	req, err := s.transition(id, models.RequestApproved, "")
	if err != nil {
		return nil, err
	}
	if opts.AddToCrate {
		crate, err := s.crates.GetOrCreateByEvent(req.EventID)
		if err != nil {
			return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
				fmt.Sprintf("Error while loading crate for event #%d", req.EventID), err,
			)
		}
		if _, err := s.crates.AddSong(crate.ID, req.SongID); err != nil {
			return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
				fmt.Sprintf("Error while staging song #%d in crate #%d", req.SongID, crate.ID), err,
			)
		}
		if !req.InCrate {
			if err := s.requests.SetInCrate(id, true); err != nil {
				s.logger.WithError(err).WithField(log.FldRequest, id).
					Warn("Could not update in-crate flag after approval")
			} else {
				req.InCrate = true
			}
		}
	}
	details, err := s.hydrateOne(req)
	if err != nil {
		return nil, err
	}
	title := ""
	if details.Song != nil {
		title = details.Song.Title
	}
	s.notifyRequester(ctx, req, notify.Message{
		Title: "Your song is in!",
		Body:  fmt.Sprintf("'%s' was approved and joined the queue", title),
		Data:  map[string]string{"requestId": fmt.Sprintf("%d", req.ID)},
	})
	return details, nil
}

// Reject declines a pending request. The reason is mandatory
func (s *requestService) Reject(ctx context.Context, id uint, reason string) (*models.RequestDetails, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, MakeValidationError("A rejection needs a reason", "reason")
	}
	req, err := s.transition(id, models.RequestRejected, reason)
	if err != nil {
		return nil, err
	}
	details, err := s.hydrateOne(req)
	if err != nil {
		return nil, err
	}
	title := ""
	if details.Song != nil {
		title = details.Song.Title
	}
	s.notifyRequester(ctx, req, notify.Message{
		Title: "Request declined",
		Body:  fmt.Sprintf("'%s' was declined: %s", title, reason),
		Data:  map[string]string{"requestId": fmt.Sprintf("%d", req.ID)},
	})
	return details, nil
}

// MarkPerformed finalizes an eligible request after the song has been sung
func (s *requestService) MarkPerformed(ctx context.Context, id uint) (*models.RequestDetails, error) {
	req, err := s.transition(id, models.RequestPerformed, "")
	if err != nil {
		return nil, err
	}
	return s.hydrateOne(req)
}

// UpdateVideo attaches or overwrites the request's video URL
func (s *requestService) UpdateVideo(ctx context.Context, id uint, videoURL string) (*models.RequestDetails, error) {
	if videoURL != "" {
		if err := validateURL(videoURL, "videoUrl"); err != nil {
			return nil, err
		}
	}
	req, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if err := s.requests.SetVideoURL(id, videoURL); err != nil {
		if err == repos.ErrEntityNotExisting {
			return nil, MakeError(
				http.StatusNotFound,
				ErrCodeRequestNotFound,
				fmt.Sprintf("Request #%d does not exist", id),
			)
		}
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			fmt.Sprintf("Error while updating request #%d", id), err,
		)
	}
	req.VideoURL = videoURL
	return s.hydrateOne(req)
}

// notifyRequester delivers a push message to the requester's device. Failures are logged and
// swallowed - a broken push channel never fails the admin's decision
func (s *requestService) notifyRequester(ctx context.Context, req *models.Request, msg notify.Message) {
	user, err := s.users.GetByID(req.RequesterID)
	if err != nil {
		s.logger.WithError(err).WithField(log.FldRequest, req.ID).
			Warn("Could not load requester for push notification")
		return
	}
	if err := s.notifier.Notify(ctx, user.ExpoPushToken, msg); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			log.FldRequest: req.ID,
			log.FldUser:    user.ID,
		}).Warn("Push notification failed")
	}
}

// hydrateOne resolves the references of a single request
func (s *requestService) hydrateOne(req *models.Request) (*models.RequestDetails, error) {
	list, err := s.hydrate([]models.Request{*req})
	if err != nil {
		return nil, err
	}
	return &list[0], nil
}

// hydrate resolves song and user references for a batch of requests with one repo call per kind
func (s *requestService) hydrate(reqs []models.Request) ([]models.RequestDetails, error) {
	songIDs := make([]uint, 0, len(reqs))
	userIDs := []uint{}
	songSeen := map[uint]bool{}
	userSeen := map[uint]bool{}
	for _, r := range reqs {
		if !songSeen[r.SongID] {
			songSeen[r.SongID] = true
			songIDs = append(songIDs, r.SongID)
		}
		if !userSeen[r.RequesterID] {
			userSeen[r.RequesterID] = true
			userIDs = append(userIDs, r.RequesterID)
		}
		for _, id := range r.CoSingerIDs {
			if !userSeen[id] {
				userSeen[id] = true
				userIDs = append(userIDs, id)
			}
		}
	}
	songs, err := s.songs.GetByIDs(songIDs)
	if err != nil {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			"Error while loading songs for request list", err,
		)
	}
	users, err := s.users.GetByIDs(userIDs)
	if err != nil {
		return nil, MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError,
			"Error while loading users for request list", err,
		)
	}
	out := make([]models.RequestDetails, len(reqs))
	for i, r := range reqs {
		d := models.RequestDetails{Request: r}
		if song, ok := songs[r.SongID]; ok {
			songCopy := song
			d.Song = &songCopy
		}
		if u, ok := users[r.RequesterID]; ok {
			sum := u.Summary()
			d.Requester = &sum
		}
		for _, id := range r.CoSingerIDs {
			if u, ok := users[id]; ok {
				d.CoSingers = append(d.CoSingers, u.Summary())
			}
		}
		out[i] = d
	}
	return out, nil
}
