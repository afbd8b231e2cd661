package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/kardianos/osext"
	"github.com/sirupsen/logrus"
	"github.com/tbrandt/encore/internal/ctxhelper"
	"github.com/tbrandt/encore/internal/log"
	"github.com/tbrandt/encore/internal/models"
	"golang.org/x/net/context"
)

const (
	apiBasePath = "/api"
)

// Defines an error that defines the HTTP status that should be returned
type httpStatuser interface {
	Status() int
}

// Defines an error that returns a machine-readable error code
type errorCoder interface {
	ErrorCode() string
}

// Defines an error that contains a data field with additional information
type dataBearer interface {
	Data() interface{}
}

type errorResponse struct {
	basicResponse
	// The error code
	Error   string      `json:"error"`
	Message string      `json:"errorMessage"`
	Details interface{} `json:"errorDetails,omitempty"`
}

// MakeHTTPHandler creates the main HTTP handler for the Encore service
func MakeHTTPHandler(
	songs SongService,
	requests RequestService,
	crates CrateService,
	events EventService,
	sessions SessionService,
	config ConfigService,
	imports ImportService,
	logger *logrus.Entry,
) http.Handler {
	r := mux.NewRouter()

	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(encodeError),
		httptransport.ServerBefore(makeContextInjector(logger)),
		httptransport.ServerBefore(makeSessionDecoder(sessions)),
	}

	// -- Song catalog ---------------------------------
	{
		sEp := MakeSongEndpoints(songs)

		// Search
		r.Methods(http.MethodGet).Path(apiBasePath + "/songs").Handler(httptransport.NewServer(
			sEp.Search,
			decodeSearchRequest,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/songs/{id:[0-9]+}").Handler(httptransport.NewServer(
			sEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Save (manual entry)
		r.Methods(http.MethodPost).Path(apiBasePath + "/songs").Handler(httptransport.NewServer(
			sEp.Save,
			decodeSong,
			encodeJSONResponse,
			options...,
		))

		// UpdateEnrichment
		r.Methods(http.MethodPut).Path(apiBasePath + "/songs/{id:[0-9]+}/enrichment").Handler(httptransport.NewServer(
			sEp.UpdateEnrichment,
			decodeEnrichmentRequest,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Song requests and the queue ------------------
	{
		rEp := MakeRequestEndpoints(requests)

		// Create
		r.Methods(http.MethodPost).Path(apiBasePath + "/events/{id:[0-9]+}/requests").Handler(httptransport.NewServer(
			rEp.Create,
			decodeRequestCreate,
			encodeJSONResponse,
			options...,
		))

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id:[0-9]+}/requests").Handler(httptransport.NewServer(
			rEp.List,
			decodeRequestListRequest,
			encodeJSONResponse,
			options...,
		))

		// Queue
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id:[0-9]+}/queue").Handler(httptransport.NewServer(
			rEp.Queue,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/requests/{id:[0-9]+}").Handler(httptransport.NewServer(
			rEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Approve
		r.Methods(http.MethodPost).Path(apiBasePath + "/requests/{id:[0-9]+}/approve").Handler(httptransport.NewServer(
			rEp.Approve,
			decodeApproveRequest,
			encodeJSONResponse,
			options...,
		))

		// Reject
		r.Methods(http.MethodPost).Path(apiBasePath + "/requests/{id:[0-9]+}/reject").Handler(httptransport.NewServer(
			rEp.Reject,
			decodeRejectRequest,
			encodeJSONResponse,
			options...,
		))

		// MarkPerformed
		r.Methods(http.MethodPost).Path(apiBasePath + "/requests/{id:[0-9]+}/performed").Handler(httptransport.NewServer(
			rEp.MarkPerformed,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// UpdateVideo
		r.Methods(http.MethodPut).Path(apiBasePath + "/requests/{id:[0-9]+}/video").Handler(httptransport.NewServer(
			rEp.UpdateVideo,
			decodeRequestVideo,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Crates ---------------------------------------
	{
		cEp := MakeCrateEndpoints(crates)

		// GetByEvent
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id:[0-9]+}/crate").Handler(httptransport.NewServer(
			cEp.GetByEvent,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/crates/{id:[0-9]+}").Handler(httptransport.NewServer(
			cEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// AddSong
		r.Methods(http.MethodPut).Path(apiBasePath + "/events/{id:[0-9]+}/crate/songs/{songId:[0-9]+}").Handler(httptransport.NewServer(
			cEp.AddSong,
			decodeCrateSongRequest,
			encodeJSONResponse,
			options...,
		))

		// RemoveSong
		r.Methods(http.MethodDelete).Path(apiBasePath + "/events/{id:[0-9]+}/crate/songs/{songId:[0-9]+}").Handler(httptransport.NewServer(
			cEp.RemoveSong,
			decodeCrateSongRequest,
			encodeJSONResponse,
			options...,
		))

		// Merge
		r.Methods(http.MethodPost).Path(apiBasePath + "/events/{id:[0-9]+}/crate/merge").Handler(httptransport.NewServer(
			cEp.Merge,
			decodeCrateMergeRequest,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Event Service --------------------------------
	{
		evEp := MakeEventEndpoints(events)

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/events").Handler(httptransport.NewServer(
			evEp.List,
			decodeSearchRequest,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id:[0-9]+}").Handler(httptransport.NewServer(
			evEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Create
		r.Methods(http.MethodPost).Path(apiBasePath + "/events").Handler(httptransport.NewServer(
			evEp.Create,
			decodeEvent,
			encodeJSONResponse,
			options...,
		))

		// Update
		r.Methods(http.MethodPut).Path(apiBasePath + "/events/{id:[0-9]+}").Handler(httptransport.NewServer(
			evEp.Update,
			decodeEventUpdate,
			encodeJSONResponse,
			options...,
		))

		// Delete
		r.Methods(http.MethodDelete).Path(apiBasePath + "/events/{id:[0-9]+}").Handler(httptransport.NewServer(
			evEp.Delete,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// SetCurrentEvent
		r.Methods(http.MethodPost).Path(apiBasePath + "/events/{id:[0-9]+}/makeCurrent").Handler(httptransport.NewServer(
			evEp.SetCurrentEvent,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// CurrentEvent
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/current").Handler(httptransport.NewServer(
			evEp.CurrentEvent,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Session Service ------------------------------
	{
		sEp := MakeSessionEndpoints(sessions)

		// Login
		r.Methods(http.MethodPost).Path(apiBasePath + "/login").Handler(httptransport.NewServer(
			sEp.Login,
			decodeLoginRequest,
			encodeJSONResponse,
			options...,
		))

		// Logout
		r.Methods(http.MethodPost).Path(apiBasePath + "/logout").Handler(httptransport.NewServer(
			sEp.Logout,
			decodeToken,
			encodeJSONResponse,
			options...,
		))

		// WhoAmI
		r.Methods(http.MethodGet).Path(apiBasePath + "/whoami").Handler(httptransport.NewServer(
			sEp.WhoAmI,
			decodeToken,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Config service -------------------------------
	{
		configEndpoints := MakeConfigEndpoints(config)

		// GetWhitelist
		r.Methods(http.MethodGet).Path(apiBasePath + "/config/restrictions/whitelist").Handler(httptransport.NewServer(
			configEndpoints.GetWhitelist,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// AddToWhitelist
		r.Methods(http.MethodPost).Path(apiBasePath + "/config/restrictions/whitelist").Handler(httptransport.NewServer(
			configEndpoints.AddToWhitelist,
			decodeUserNameFromJSONBody,
			encodeJSONResponse,
			options...,
		))

		// RemoveFromWhitelist
		r.Methods(http.MethodDelete).Path(apiBasePath + "/config/restrictions/whitelist/{name}").Handler(httptransport.NewServer(
			configEndpoints.RemoveFromWhitelist,
			decodeUserNameFromPath,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Import service -------------------------------
	{
		iEp := MakeImportEndpoints(imports)

		// Spotify
		r.Methods(http.MethodPost).Path(apiBasePath + "/import/spotify").Handler(httptransport.NewServer(
			iEp.Spotify,
			decodeImportSpotifyRequest,
			encodeJSONResponse,
			options...,
		))

		// CSV
		r.Methods(http.MethodPost).Path(apiBasePath + "/import/csv").Handler(httptransport.NewServer(
			iEp.CSV,
			decodeImportCSVRequest,
			encodeJSONResponse,
			options...,
		))
	}

	// Simple alive answer for checking if HTTP can be reached
	r.Methods(http.MethodGet).Path("/alive").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		data := map[string]bool{"ok": true}
		json.NewEncoder(w).Encode(data)
	})

	// Plain file service for the UI serving everything from the "ui" folder right beside the application executable
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		panic(err)
	}
	uiDir := filepath.Join(execDir, "ui")
	r.Methods(http.MethodGet).PathPrefix("/").Handler(http.FileServer(http.Dir(uiDir)))

	return r
}

// decodeNilRequest just does nothing with the request. It is used for endpoints that don't need anything to be passed
func decodeNilRequest(_ context.Context, r *http.Request) (request interface{}, err error) {
	return nil, nil
}

// decodeJSONBody is the shared JSON body decoder that wraps parse failures into the transport's error format
func decodeJSONBody(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return nil
}

// decodeUserNameFromJSONBody reads a user name from a provided JSON body
func decodeUserNameFromJSONBody(_ context.Context, r *http.Request) (interface{}, error) {
	data := map[string]string{}
	if err := decodeJSONBody(r, &data); err != nil {
		return nil, err
	}
	name, ok := data["name"]
	if !ok {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			"Missing user name parameter",
		)
	}
	return name, nil
}

func decodeUserNameFromPath(_ context.Context, r *http.Request) (interface{}, error) {
	vars := mux.Vars(r)
	str, ok := vars["name"]
	if !ok {
		return nil, MakeError(http.StatusBadRequest, ErrCodeRequiredFieldMissing, "Missing user name")
	}
	return str, nil
}

// decodeLoginRequest decodes a login request from the JSON body
func decodeLoginRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req loginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	return req, nil
}

// decodeToken gets the token from the call's context
func decodeToken(ctx context.Context, r *http.Request) (request interface{}, err error) {
	session := ctxhelper.Session(ctx)
	if session == nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeNotLoggedIn,
			"You need an active session for this operation",
		)
	}
	return session.ID, nil
}

// decodePaginationRequest reads the pagination information from the request's query variables
func decodePaginationRequest(_ context.Context, r *http.Request) (request interface{}, err error) {
	val := r.URL.Query()
	pag := Pagination{
		Limit: 50,
	}
	if i, err := strconv.ParseUint(val.Get("offset"), 10, 64); err == nil {
		pag.Offset = uint(i)
	}
	if i, err := strconv.ParseUint(val.Get("limit"), 10, 64); err == nil && i > 0 && i <= 50 {
		pag.Limit = uint(i)
	}
	return pag, nil
}

// decodeSearchRequest decodes the parameters of a search by checking the GET variables "search", "limit" and "offset"
func decodeSearchRequest(ctx context.Context, r *http.Request) (request interface{}, err error) {
	val := r.URL.Query()
	pag, _ := decodePaginationRequest(ctx, r)
	search := Search{
		Search:     val.Get("search"),
		Pagination: pag.(Pagination),
	}
	return search, nil
}

// decodeSong tries to load a song object from the provided HTTP request's body. A song posted by
// hand always enters the catalog as a manual entry
func decodeSong(_ context.Context, r *http.Request) (interface{}, error) {
	var song models.Song
	if err := decodeJSONBody(r, &song); err != nil {
		return nil, err
	}
	if song.Source == "" {
		song.Source = models.SourceManual
	}
	return song, nil
}

// decodeEnrichmentRequest reads the enrichment fields from the body and the song ID from the path
func decodeEnrichmentRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req enrichmentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	id, err := getUintFromPath("id", r)
	if err != nil {
		return nil, err
	}
	req.ID = id
	return req, nil
}

// decodeRequestCreate reads a new song request from the body and its event from the path
func decodeRequestCreate(_ context.Context, r *http.Request) (interface{}, error) {
	var req models.Request
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	id, err := getUintFromPath("id", r)
	if err != nil {
		return nil, err
	}
	req.EventID = id
	return req, nil
}

// decodeRequestListRequest reads the event ID from the path and the optional status and inCrate
// filters from the query variables
func decodeRequestListRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := getUintFromPath("id", r)
	if err != nil {
		return nil, err
	}
	req := requestListRequest{EventID: id}
	val := r.URL.Query()
	if str := val.Get("status"); str != "" {
		status := models.RequestStatus(str)
		if !models.ValidRequestStatus(status) {
			return nil, MakeValidationError(fmt.Sprintf("Unknown request status '%s'", str), "status")
		}
		req.Filter.Status = &status
	}
	if str := val.Get("inCrate"); str != "" {
		inCrate, err := strconv.ParseBool(str)
		if err != nil {
			return nil, MakeValidationError("'inCrate' must be a boolean", "inCrate")
		}
		req.Filter.InCrate = &inCrate
	}
	return req, nil
}

// decodeApproveRequest reads the request ID from the path and the optional approval options from
// the body. An empty body means a plain approval
func decodeApproveRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := getUintFromPath("id", r)
	if err != nil {
		return nil, err
	}
	req := approveRequest{ID: id}
	if err := json.NewDecoder(r.Body).Decode(&req.ApproveOptions); err != nil && err != io.EOF {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return req, nil
}

// decodeRejectRequest reads the request ID from the path and the rejection reason from the body
func decodeRejectRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req rejectRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	id, err := getUintFromPath("id", r)
	if err != nil {
		return nil, err
	}
	req.ID = id
	return req, nil
}

// decodeRequestVideo reads the request ID from the path and the video URL from the body
func decodeRequestVideo(_ context.Context, r *http.Request) (interface{}, error) {
	var req requestVideoRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	id, err := getUintFromPath("id", r)
	if err != nil {
		return nil, err
	}
	req.ID = id
	return req, nil
}

// decodeCrateSongRequest reads the event and song IDs from the path
func decodeCrateSongRequest(_ context.Context, r *http.Request) (interface{}, error) {
	eventID, err := getUintFromPath("id", r)
	if err != nil {
		return nil, err
	}
	songID, err := getUintFromPath("songId", r)
	if err != nil {
		return nil, err
	}
	return crateSongRequest{EventID: eventID, SongID: songID}, nil
}

// decodeCrateMergeRequest reads the target event from the path and the source crates from the body
func decodeCrateMergeRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req crateMergeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	id, err := getUintFromPath("id", r)
	if err != nil {
		return nil, err
	}
	req.EventID = id
	return req, nil
}

func decodeImportSpotifyRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req importSpotifyRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	return req, nil
}

// decodeImportCSVRequest hands the raw request body to the CSV importer
func decodeImportCSVRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return importCSVRequest{Data: r.Body}, nil
}

// decodeEvent tries to load an event object from the provided HTTP request's body
func decodeEvent(_ context.Context, r *http.Request) (interface{}, error) {
	var ev models.Event
	if err := decodeJSONBody(r, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// getUintFromPath is a helper function that gets a uint from the given path variable
func getUintFromPath(varname string, r *http.Request) (uint, error) {
	errmsg := fmt.Sprintf("Value for '%s' is no valid unsigned integer", varname)
	vars := mux.Vars(r)
	str, ok := vars[varname]
	if !ok {
		return 0, MakeError(http.StatusBadRequest, ErrCodeInvalidUint, errmsg)
	}
	id, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, MakeError(http.StatusBadRequest, ErrCodeInvalidUint, errmsg)
	}
	return uint(id), nil
}

// Decodes an ID from the "id" path variable provided by GoRilla
func decodeIDFromPath(ctx context.Context, r *http.Request) (interface{}, error) {
	return getUintFromPath("id", r)
}

// Decodes an event from an update request where the ID of the event is in the path
func decodeEventUpdate(ctx context.Context, r *http.Request) (interface{}, error) {
	ev, err := decodeEvent(ctx, r)
	if err != nil {
		return nil, err
	}
	id, err := decodeIDFromPath(ctx, r)
	if err != nil {
		return nil, err
	}
	ret := ev.(models.Event)
	ret.ID = id.(uint)
	return ret, nil
}

// Encodes a typical JSON response
func encodeJSONResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(response)
}

// Builds an error response based on the incoming error
func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	if err == nil {
		panic("encodeError with nil error")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if st, ok := err.(httpStatuser); ok {
		w.WriteHeader(st.Status())
	} else {
		w.WriteHeader(http.StatusInternalServerError)
	}
	ret := errorResponse{
		basicResponse: basicResponse{false, nil},
		Message:       err.Error(),
		Error:         ErrCodeUnknown,
	}
	if cd, ok := err.(errorCoder); ok {
		ret.Error = cd.ErrorCode()
	}
	if db, ok := err.(dataBearer); ok {
		if data := db.Data(); data != nil {
			if err, ok := data.(error); ok {
				ret.Details = err.Error()
			} else {
				ret.Details = data
			}
		}
	}
	json.NewEncoder(w).Encode(&ret)
}

// makeSessionDecoder returns a function that is used in every HTTP call to decode the session used, if a session
// token is sent by the client
func makeSessionDecoder(s SessionService) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		token := strings.TrimSpace(r.Header.Get("token"))
		logger := ctxhelper.Logger(ctx)
		if token != "" {
			// Try to load the session's data
			sess, user, err := s.GetContents(ctx, token, true)
			if err != nil {
				logger.WithError(err).WithField(log.FldSession, token).Error("Failed to retrieve session information")
				return ctx
			}
			if sess == nil || user == nil {
				// Nobody logged in
				return ctx
			}
			ctx = context.WithValue(ctx, ctxhelper.KeySession, *sess)
			ctx = context.WithValue(ctx, ctxhelper.KeyUser, *user)
			ctx = context.WithValue(ctx, ctxhelper.KeyLogger, logger.WithFields(logrus.Fields{
				log.FldSession: sess.ID,
				log.FldUser:    user.ID,
			}))
		}
		return ctx
	}
}

func makeContextInjector(logger *logrus.Entry) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		return context.WithValue(ctx, ctxhelper.KeyLogger, logger)
	}
}
