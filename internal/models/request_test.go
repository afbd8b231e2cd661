package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestStatusProperties(t *testing.T) {
	assert.True(t, RequestRejected.Terminal())
	assert.True(t, RequestPerformed.Terminal())
	assert.False(t, RequestPendingAdmin.Terminal())
	assert.False(t, RequestApproved.Terminal())
	assert.False(t, RequestQueued.Terminal())

	assert.True(t, RequestApproved.Eligible())
	assert.True(t, RequestQueued.Eligible())
	assert.False(t, RequestPendingAdmin.Eligible())
	assert.False(t, RequestRejected.Eligible())
	assert.False(t, RequestPerformed.Eligible())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    RequestStatus
		to      RequestStatus
		allowed bool
	}{
		{"pending to approved", RequestPendingAdmin, RequestApproved, true},
		{"pending to rejected", RequestPendingAdmin, RequestRejected, true},
		{"pending to queued", RequestPendingAdmin, RequestQueued, true},
		{"pending to performed", RequestPendingAdmin, RequestPerformed, false},
		{"approved to performed", RequestApproved, RequestPerformed, true},
		{"approved to rejected", RequestApproved, RequestRejected, true},
		{"approved to approved", RequestApproved, RequestApproved, true},
		{"queued to performed", RequestQueued, RequestPerformed, true},
		{"rejected is final", RequestRejected, RequestApproved, false},
		{"rejected stays rejected", RequestRejected, RequestRejected, false},
		{"performed is final", RequestPerformed, RequestApproved, false},
		{"performed cannot be rejected", RequestPerformed, RequestRejected, false},
		{"nothing enters pending", RequestApproved, RequestPendingAdmin, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestValidRequestStatus(t *testing.T) {
	assert.True(t, ValidRequestStatus(RequestPendingAdmin))
	assert.True(t, ValidRequestStatus(RequestPerformed))
	assert.False(t, ValidRequestStatus(RequestStatus("waiting")))
	assert.False(t, ValidRequestStatus(RequestStatus("")))
}
