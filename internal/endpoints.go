package internal

import (
	"fmt"
	"io"

	"github.com/go-kit/kit/endpoint"
	"github.com/tbrandt/encore/internal/models"
	"golang.org/x/net/context"
)

// SongEndpoints is a collection of endpoints for working with the song catalog
type SongEndpoints struct {
	Search           endpoint.Endpoint
	Get              endpoint.Endpoint
	Save             endpoint.Endpoint
	UpdateEnrichment endpoint.Endpoint
}

// RequestEndpoints is a collection of endpoints for working with song requests and the queue
type RequestEndpoints struct {
	Create        endpoint.Endpoint
	Get           endpoint.Endpoint
	List          endpoint.Endpoint
	Queue         endpoint.Endpoint
	Approve       endpoint.Endpoint
	Reject        endpoint.Endpoint
	MarkPerformed endpoint.Endpoint
	UpdateVideo   endpoint.Endpoint
}

// CrateEndpoints is a collection of endpoints for working with the per-event crates
type CrateEndpoints struct {
	GetByEvent endpoint.Endpoint
	Get        endpoint.Endpoint
	AddSong    endpoint.Endpoint
	RemoveSong endpoint.Endpoint
	Merge      endpoint.Endpoint
}

// EventEndpoints is a collection of endpoints for working with the event service
type EventEndpoints struct {
	List            endpoint.Endpoint
	Get             endpoint.Endpoint
	Create          endpoint.Endpoint
	Update          endpoint.Endpoint
	Delete          endpoint.Endpoint
	SetCurrentEvent endpoint.Endpoint
	CurrentEvent    endpoint.Endpoint
}

// SessionEndpoints is a collection of endpoints for working with the session service
type SessionEndpoints struct {
	Login  endpoint.Endpoint
	Logout endpoint.Endpoint
	WhoAmI endpoint.Endpoint
}

// ConfigEndpoints is a collection of endpoints for changing the system's configuration
type ConfigEndpoints struct {
	GetWhitelist        endpoint.Endpoint
	AddToWhitelist      endpoint.Endpoint
	RemoveFromWhitelist endpoint.Endpoint
}

// ImportEndpoints is a collection of endpoints for feeding external track data into the catalog
type ImportEndpoints struct {
	Spotify endpoint.Endpoint
	CSV     endpoint.Endpoint
}

// The base for all responses which always contains an "ok" property to show if the call was successful and a
// data element containing the result of the request
type basicResponse struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data,omitempty"`
}

type pagingResponse struct {
	Rows uint        `json:"rows"`
	List interface{} `json:"list"`
}

// searchResponse is a paged result plus a flag telling the client whether paging further will
// yield more rows
type searchResponse struct {
	pagingResponse
	HasMore bool `json:"hasMore"`
}

func makeSearchResponse(offset uint, shown int, total uint, list interface{}) searchResponse {
	return searchResponse{
		pagingResponse: pagingResponse{total, list},
		HasMore:        offset+uint(shown) < total,
	}
}

// A request made when logging in
type loginRequest struct {
	User string `json:"user"`
	Pass string `json:"password"`
}

// A request for updating a song's enrichment fields
type enrichmentRequest struct {
	ID       uint
	VideoURL string `json:"videoUrl"`
	CoverURL string `json:"coverUrl"`
}

// A request for listing the song requests of an event
type requestListRequest struct {
	EventID uint
	Filter  models.RequestFilter
}

// A request for deciding on a pending song request
type approveRequest struct {
	ID uint
	ApproveOptions
}

type rejectRequest struct {
	ID     uint
	Reason string `json:"reason"`
}

// A request for attaching a video to a song request
type requestVideoRequest struct {
	ID       uint
	VideoURL string `json:"videoUrl"`
}

// A request addressing one song inside one event's crate
type crateSongRequest struct {
	EventID uint
	SongID  uint
}

// A request for merging other crates into an event's crate
type crateMergeRequest struct {
	EventID        uint
	SourceCrateIDs []uint `json:"sourceCrateIds"`
}

type importSpotifyRequest struct {
	URL string `json:"url"`
}

type importCSVRequest struct {
	Data io.Reader
}

// -- Songs ------------------------------------------------------------------------------------------------------------

// MakeSongEndpoints creates the endpoints needed for using the song catalog service
func MakeSongEndpoints(s SongService) SongEndpoints {
	return SongEndpoints{
		Search:           MakeSearchSongsEndpoint(s),
		Get:              MakeGetSongEndpoint(s),
		Save:             EnsureUserLoggedIn(MakeSaveSongEndpoint(s)),
		UpdateEnrichment: EnsureAdmin(MakeUpdateEnrichmentEndpoint(s)),
	}
}

// MakeSearchSongsEndpoint returns an endpoint calling the Search method on the provided SongService
func MakeSearchSongsEndpoint(s SongService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		se, ok := request.(Search)
		if !ok {
			return nil, fmt.Errorf("illegal search parameter")
		}
		songs, numRows, err := s.Search(ctx, &se)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, makeSearchResponse(se.Offset, len(songs), numRows, songs)}, nil
	}
}

// MakeGetSongEndpoint returns an endpoint calling the Get method on the provided SongService
func MakeGetSongEndpoint(s SongService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal song ID")
		}
		song, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, song}, nil
	}
}

// MakeSaveSongEndpoint returns an endpoint calling the SaveFromSource method on the provided SongService
func MakeSaveSongEndpoint(s SongService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		song, ok := request.(models.Song)
		if !ok {
			return nil, fmt.Errorf("illegal song parameter")
		}
		res, err := s.SaveFromSource(ctx, &song)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, res}, nil
	}
}

// MakeUpdateEnrichmentEndpoint returns an endpoint calling the UpdateEnrichment method on the provided SongService
func MakeUpdateEnrichmentEndpoint(s SongService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(enrichmentRequest)
		if !ok {
			return nil, fmt.Errorf("illegal enrichment parameter")
		}
		song, err := s.UpdateEnrichment(ctx, req.ID, req.VideoURL, req.CoverURL)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, song}, nil
	}
}

// -- Requests ---------------------------------------------------------------------------------------------------------

// MakeRequestEndpoints creates the endpoints needed for using the request service. Filing and
// reading requests needs a logged-in user; deciding on them is for admins only
func MakeRequestEndpoints(s RequestService) RequestEndpoints {
	return RequestEndpoints{
		Create:        EnsureUserLoggedIn(makeCreateRequestEndpoint(s)),
		Get:           EnsureUserLoggedIn(makeGetRequestEndpoint(s)),
		List:          EnsureUserLoggedIn(makeListRequestsEndpoint(s)),
		Queue:         makeQueueEndpoint(s),
		Approve:       EnsureAdmin(makeApproveRequestEndpoint(s)),
		Reject:        EnsureAdmin(makeRejectRequestEndpoint(s)),
		MarkPerformed: EnsureAdmin(makeMarkPerformedEndpoint(s)),
		UpdateVideo:   EnsureAdmin(makeUpdateRequestVideoEndpoint(s)),
	}
}

func makeCreateRequestEndpoint(s RequestService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(models.Request)
		if !ok {
			return nil, fmt.Errorf("illegal request parameter")
		}
		details, err := s.Create(ctx, &req)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, details}, nil
	}
}

func makeGetRequestEndpoint(s RequestService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal request ID")
		}
		details, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, details}, nil
	}
}

func makeListRequestsEndpoint(s RequestService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(requestListRequest)
		if !ok {
			return nil, fmt.Errorf("illegal request list parameter")
		}
		list, err := s.List(ctx, req.EventID, req.Filter)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, pagingResponse{uint(len(list)), list}}, nil
	}
}

func makeQueueEndpoint(s RequestService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		queue, err := s.Queue(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, pagingResponse{uint(len(queue)), queue}}, nil
	}
}

func makeApproveRequestEndpoint(s RequestService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(approveRequest)
		if !ok {
			return nil, fmt.Errorf("illegal approval parameter")
		}
		details, err := s.Approve(ctx, req.ID, req.ApproveOptions)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, details}, nil
	}
}

func makeRejectRequestEndpoint(s RequestService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(rejectRequest)
		if !ok {
			return nil, fmt.Errorf("illegal rejection parameter")
		}
		details, err := s.Reject(ctx, req.ID, req.Reason)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, details}, nil
	}
}

func makeMarkPerformedEndpoint(s RequestService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal request ID")
		}
		details, err := s.MarkPerformed(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, details}, nil
	}
}

func makeUpdateRequestVideoEndpoint(s RequestService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(requestVideoRequest)
		if !ok {
			return nil, fmt.Errorf("illegal video parameter")
		}
		details, err := s.UpdateVideo(ctx, req.ID, req.VideoURL)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, details}, nil
	}
}

// -- Crates -----------------------------------------------------------------------------------------------------------

// MakeCrateEndpoints creates the endpoints needed for using the crate service. The crate is the
// admin's staging area - only reading it is open to every logged-in user
func MakeCrateEndpoints(s CrateService) CrateEndpoints {
	return CrateEndpoints{
		GetByEvent: EnsureUserLoggedIn(makeGetCrateByEventEndpoint(s)),
		Get:        EnsureUserLoggedIn(makeGetCrateEndpoint(s)),
		AddSong:    EnsureAdmin(makeAddCrateSongEndpoint(s)),
		RemoveSong: EnsureAdmin(makeRemoveCrateSongEndpoint(s)),
		Merge:      EnsureAdmin(makeMergeCratesEndpoint(s)),
	}
}

func makeGetCrateByEventEndpoint(s CrateService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		crate, err := s.GetByEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, crate}, nil
	}
}

func makeGetCrateEndpoint(s CrateService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal crate ID")
		}
		crate, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, crate}, nil
	}
}

func makeAddCrateSongEndpoint(s CrateService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(crateSongRequest)
		if !ok {
			return nil, fmt.Errorf("illegal crate song parameter")
		}
		res, err := s.AddSong(ctx, req.EventID, req.SongID)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, res}, nil
	}
}

func makeRemoveCrateSongEndpoint(s CrateService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(crateSongRequest)
		if !ok {
			return nil, fmt.Errorf("illegal crate song parameter")
		}
		crate, err := s.RemoveSong(ctx, req.EventID, req.SongID)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, crate}, nil
	}
}

func makeMergeCratesEndpoint(s CrateService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(crateMergeRequest)
		if !ok {
			return nil, fmt.Errorf("illegal crate merge parameter")
		}
		report, err := s.Merge(ctx, req.EventID, req.SourceCrateIDs)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, report}, nil
	}
}

// -- Events -----------------------------------------------------------------------------------------------------------

// MakeEventEndpoints builds the endpoints needed to communicate with the Event Service
func MakeEventEndpoints(s EventService) EventEndpoints {
	return EventEndpoints{
		List:            EnsureUserLoggedIn(makeListEventsEndpoint(s)),
		Get:             EnsureUserLoggedIn(makeGetEventEndpoint(s)),
		Create:          EnsureAdmin(makeCreateEventEndpoint(s)),
		Update:          EnsureAdmin(makeUpdateEventEndpoint(s)),
		Delete:          EnsureAdmin(makeDeleteEventEndpoint(s)),
		SetCurrentEvent: EnsureAdmin(makeSetCurrentEventEndpoint(s)),
		CurrentEvent:    makeGetCurrentEventEndpoint(s),
	}
}

func makeListEventsEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		se, ok := request.(Search)
		if !ok {
			return nil, fmt.Errorf("illegal search parameter")
		}
		list, numRows, err := s.List(ctx, &se)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, makeSearchResponse(se.Offset, len(list), numRows, list)}, nil
	}
}

func makeGetEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		ev, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, ev}, nil
	}
}

func makeCreateEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		event, ok := request.(models.Event)
		if !ok {
			return nil, fmt.Errorf("illegal event parameter")
		}
		ev, err := s.Create(ctx, &event)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, ev}, nil
	}
}

func makeUpdateEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		event, ok := request.(models.Event)
		if !ok {
			return nil, fmt.Errorf("illegal event parameter")
		}
		err := s.Update(ctx, &event)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeDeleteEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		err := s.Delete(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeSetCurrentEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(uint)
		if !ok {
			return nil, fmt.Errorf("illegal event ID")
		}
		err := s.SetCurrentEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeGetCurrentEventEndpoint(s EventService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		ev, err := s.CurrentEvent(ctx)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, ev}, nil
	}
}

// -- Sessions ---------------------------------------------------------------------------------------------------------

// MakeSessionEndpoints builds the endpoints needed to communicate with the Session Service
func MakeSessionEndpoints(s SessionService) SessionEndpoints {
	return SessionEndpoints{
		Login:  makeLoginEndpoint(s),
		Logout: makeLogoutEndpoint(s),
		WhoAmI: makeWhoAmIEndpoint(s),
	}
}

func makeLoginEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		se, ok := request.(loginRequest)
		if !ok {
			return nil, fmt.Errorf("illegal login request")
		}
		si, err := s.Login(ctx, se.User, se.Pass)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, si}, nil
	}
}

func makeLogoutEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal session token")
		}
		err := s.Logout(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeWhoAmIEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal session token")
		}
		si, err := s.WhoAmI(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, si}, nil
	}
}

// -- Configuration ----------------------------------------------------------------------------------------------------

// MakeConfigEndpoints creates the endpoints needed to use the configuration service
func MakeConfigEndpoints(s ConfigService) ConfigEndpoints {
	return ConfigEndpoints{
		GetWhitelist:        EnsureAdmin(makeGetWhitelistEndpoint(s)),
		AddToWhitelist:      EnsureAdmin(makeAddToWhitelistEndpoint(s)),
		RemoveFromWhitelist: EnsureAdmin(makeRemoveFromWhitelistEndpoint(s)),
	}
}

func makeGetWhitelistEndpoint(s ConfigService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		return basicResponse{true, s.WhitelistedSingers(ctx)}, nil
	}
}

func makeAddToWhitelistEndpoint(s ConfigService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		name, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("missing user name parameter")
		}
		if err := s.AddToWhitelist(ctx, name); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeRemoveFromWhitelistEndpoint(s ConfigService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		name, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("missing user name parameter")
		}
		if err := s.RemoveFromWhitelist(ctx, name); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

// -- Imports ----------------------------------------------------------------------------------------------------------

// MakeImportEndpoints creates the endpoints needed to use the import service
func MakeImportEndpoints(s ImportService) ImportEndpoints {
	return ImportEndpoints{
		Spotify: EnsureAdmin(makeImportSpotifyEndpoint(s)),
		CSV:     EnsureAdmin(makeImportCSVEndpoint(s)),
	}
}

func makeImportSpotifyEndpoint(s ImportService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(importSpotifyRequest)
		if !ok {
			return nil, fmt.Errorf("illegal import parameter")
		}
		summary, err := s.ImportSpotify(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, summary}, nil
	}
}

func makeImportCSVEndpoint(s ImportService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(importCSVRequest)
		if !ok {
			return nil, fmt.Errorf("illegal import parameter")
		}
		summary, err := s.ImportCSV(ctx, req.Data)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, summary}, nil
	}
}
