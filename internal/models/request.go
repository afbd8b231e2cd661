package models

import "time"

// RequestStatus is the state of a song request inside its lifecycle
type RequestStatus string

const (
	// RequestPendingAdmin is the initial state of every request - waiting for an admin decision
	RequestPendingAdmin RequestStatus = "pending_admin"
	// RequestApproved means an admin accepted the request - it is eligible for a queue position
	RequestApproved RequestStatus = "approved"
	// RequestRejected means an admin declined the request - terminal, carries a mandatory reason
	RequestRejected RequestStatus = "rejected"
	// RequestQueued is a workflow sibling of RequestApproved for venues that sequence explicitly.
	// No operation currently sets it, but it counts as eligible wherever RequestApproved does
	RequestQueued RequestStatus = "queued"
	// RequestPerformed means the song has been sung - terminal, kept as history
	RequestPerformed RequestStatus = "performed"
)

// ValidRequestStatus checks if the given value is a known request status
func ValidRequestStatus(status RequestStatus) bool {
	switch status {
	case RequestPendingAdmin, RequestApproved, RequestRejected, RequestQueued, RequestPerformed:
		return true
	}
	return false
}

// Terminal checks if the status allows no further transition
func (s RequestStatus) Terminal() bool {
	return s == RequestRejected || s == RequestPerformed
}

// Eligible checks if a request in this status takes part in the live queue
func (s RequestStatus) Eligible() bool {
	return s == RequestApproved || s == RequestQueued
}

// CanTransition checks whether the lifecycle allows moving a request from one status to another.
// Re-entering the same non-terminal status is allowed so that repeating an admin decision stays
// idempotent instead of failing
func CanTransition(from, to RequestStatus) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case RequestApproved, RequestRejected, RequestQueued:
		return from == RequestPendingAdmin || from == RequestApproved || from == RequestQueued
	case RequestPerformed:
		return from.Eligible()
	}
	return false
}

// Request is a singer's ask to perform a specific song at a specific event
type Request struct {
	// Internal ID
	ID uint `db:"id" json:"id"`
	// The event this request belongs to
	EventID uint `db:"eventId" json:"eventId"`
	// The catalog entry of the requested song
	SongID uint `db:"songId" json:"songId"`
	// The user who filed the request
	RequesterID uint `db:"requesterId" json:"requesterId"`
	// Users singing along - a set, deduplicated on write and never containing the requester.
	// Stored in a separate table, loaded by the repository
	CoSingerIDs []uint `db:"-" json:"coSingerIds"`
	// Current lifecycle state - see the Request* constants
	Status RequestStatus `db:"status" json:"status"`
	// URL of a video attached to the request - pure metadata, no lifecycle implication
	VideoURL string `db:"videoUrl" json:"videoUrl,omitempty"`
	// Why the request was rejected - mandatory when Status is RequestRejected
	RejectionReason string `db:"rejectionReason" json:"rejectionReason,omitempty"`
	// Marks requests that bought their way past the regular line
	FastPass bool `db:"fastPass" json:"fastPass"`
	// Whether the requested song was in the event's crate when this flag was last computed
	InCrate bool `db:"inCrate" json:"inCrate"`
	// Creation timestamp of the request - the queue sorts by this
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
	// Timestamp of the last change of this request
	UpdatedAt time.Time `db:"updatedAt" json:"updatedAt"`
}

// RequestDetails is the hydrated, display-ready form of a request with all references resolved.
// The raw Request keeps only IDs; list and queue reads return this type instead
type RequestDetails struct {
	Request
	// The full catalog entry of the requested song
	Song *Song `json:"song"`
	// The resolved identity of the requester
	Requester *UserSummary `json:"requester"`
	// The resolved identities of all co-singers
	CoSingers []UserSummary `json:"coSingers,omitempty"`
}

// QueueEntry is one row of the computed performance queue. The position is derived on every read
// and never stored
type QueueEntry struct {
	RequestDetails
	// 1-based rank among all currently eligible requests of the event
	QueuePosition uint `json:"queuePosition"`
}

// RequestFilter narrows a request listing
type RequestFilter struct {
	// Only return requests in this status
	Status *RequestStatus
	// Only return requests whose in-crate flag matches
	InCrate *bool
}
