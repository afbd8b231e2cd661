package internal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbrandt/encore/internal/models"
)

func TestCreateRequestStartsPending(t *testing.T) {
	env := newTestEnv(t)
	ev := env.mustCreateEvent(t, "Open Stage")
	song := env.mustCreateSong(t, "Valerie", "Amy Winehouse")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)
	buddy := env.mustCreateUser(t, "kim", models.RoleSinger)

	details, err := env.requests.Create(ctxWithUser(singer), &models.Request{
		EventID:     ev.ID,
		SongID:      song.ID,
		CoSingerIDs: []uint{buddy.ID, buddy.ID, singer.ID},
		Status:      models.RequestApproved, // a client cannot pick its own status
	})
	require.NoError(t, err)

	assert.Equal(t, models.RequestPendingAdmin, details.Status)
	assert.Equal(t, singer.ID, details.RequesterID)
	// The co-singer set is deduplicated and never contains the requester
	assert.Equal(t, []uint{buddy.ID}, details.CoSingerIDs)
	require.NotNil(t, details.Song)
	assert.Equal(t, "Valerie", details.Song.Title)
	require.NotNil(t, details.Requester)
	assert.Equal(t, "dana", details.Requester.Name)
	require.Len(t, details.CoSingers, 1)
	assert.Equal(t, "kim", details.CoSingers[0].Name)
}

func TestCreateRequestUnknownReferences(t *testing.T) {
	env := newTestEnv(t)
	ev := env.mustCreateEvent(t, "Open Stage")
	song := env.mustCreateSong(t, "Valerie", "Amy Winehouse")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)

	_, err := env.requests.Create(ctxWithUser(singer), &models.Request{EventID: 999, SongID: song.ID})
	requireErrorCode(t, err, ErrCodeEventNotFound)

	_, err = env.requests.Create(ctxWithUser(singer), &models.Request{EventID: ev.ID, SongID: 999})
	requireErrorCode(t, err, ErrCodeSongNotFound)
}

func TestCreateRequestComputesInCrateFlag(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()
	ev := env.mustCreateEvent(t, "Open Stage")
	staged := env.mustCreateSong(t, "Staged", "Band")
	fresh := env.mustCreateSong(t, "Fresh", "Band")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)

	_, err := env.crates.AddSong(ctx, ev.ID, staged.ID)
	require.NoError(t, err)

	inCrate := env.mustFileRequest(t, ev.ID, staged.ID, singer)
	assert.True(t, inCrate.InCrate)

	notInCrate := env.mustFileRequest(t, ev.ID, fresh.ID, singer)
	assert.False(t, notInCrate.InCrate)

	// The request only annotates - the crate itself is untouched
	crate, err := env.crates.GetByEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, crate.Songs, 1)
}

func TestOpenRequestLimit(t *testing.T) {
	env := newTestEnv(t)
	env.config.conf.Restrictions.MaxOpenRequestsPerSinger = 2
	ev := env.mustCreateEvent(t, "Open Stage")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)

	for i := 0; i < 2; i++ {
		song := env.mustCreateSong(t, fmt.Sprintf("Song %d", i), "Band")
		env.mustFileRequest(t, ev.ID, song.ID, singer)
	}

	third := env.mustCreateSong(t, "Song 3", "Band")
	_, err := env.requests.Create(ctxWithUser(singer), &models.Request{EventID: ev.ID, SongID: third.ID})
	requireErrorCode(t, err, ErrCodeTooManyRequests)

	// A rejected request frees up a slot
	first, err := env.requests.List(testCtx(), ev.ID, models.RequestFilter{})
	require.NoError(t, err)
	_, err = env.requests.Reject(testCtx(), first[0].ID, "double booking")
	require.NoError(t, err)

	_, err = env.requests.Create(ctxWithUser(singer), &models.Request{EventID: ev.ID, SongID: third.ID})
	require.NoError(t, err)
}

func TestOpenRequestLimitBypass(t *testing.T) {
	env := newTestEnv(t)
	env.config.conf.Restrictions.MaxOpenRequestsPerSinger = 1
	ev := env.mustCreateEvent(t, "Open Stage")

	// Whitelisted singers ignore the limit
	regular := env.mustCreateUser(t, "vera", models.RoleSinger)
	env.config.whitelist["vera"] = true
	for i := 0; i < 3; i++ {
		song := env.mustCreateSong(t, fmt.Sprintf("W %d", i), "Band")
		env.mustFileRequest(t, ev.ID, song.ID, regular)
	}

	// Admins do too
	admin := env.mustCreateUser(t, "boss", models.RoleAdmin)
	for i := 0; i < 3; i++ {
		song := env.mustCreateSong(t, fmt.Sprintf("A %d", i), "Band")
		env.mustFileRequest(t, ev.ID, song.ID, admin)
	}
}

func TestDuplicateSongRequestBlocked(t *testing.T) {
	env := newTestEnv(t)
	ev := env.mustCreateEvent(t, "Open Stage")
	song := env.mustCreateSong(t, "Wonderwall", "Oasis")
	first := env.mustCreateUser(t, "dana", models.RoleSinger)
	second := env.mustCreateUser(t, "kim", models.RoleSinger)

	env.mustFileRequest(t, ev.ID, song.ID, first)

	_, err := env.requests.Create(ctxWithUser(second), &models.Request{EventID: ev.ID, SongID: song.ID})
	requireErrorCode(t, err, ErrCodeDuplicateRequestNotAllowed)

	// Allowing duplicates in the config lifts the block
	env.config.conf.Restrictions.AllowDuplicateSongRequests = true
	_, err = env.requests.Create(ctxWithUser(second), &models.Request{EventID: ev.ID, SongID: song.ID})
	require.NoError(t, err)
}

func TestQueuePositionsAreGaplessAndDerived(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()
	ev := env.mustCreateEvent(t, "Open Stage")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)

	var ids []uint
	for i := 1; i <= 3; i++ {
		song := env.mustCreateSong(t, fmt.Sprintf("Song %d", i), "Band")
		details := env.mustFileRequest(t, ev.ID, song.ID, singer)
		_, err := env.requests.Approve(ctx, details.ID, ApproveOptions{})
		require.NoError(t, err)
		ids = append(ids, details.ID)
	}
	// A still pending request never shows up in the queue
	pendingSong := env.mustCreateSong(t, "Pending Song", "Band")
	env.mustFileRequest(t, ev.ID, pendingSong.ID, singer)

	queue, err := env.requests.Queue(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	for i, entry := range queue {
		assert.Equal(t, uint(i+1), entry.QueuePosition)
		assert.Equal(t, ids[i], entry.ID)
	}

	// Performing the head renumbers everyone behind it - no gaps, no stored positions
	_, err = env.requests.MarkPerformed(ctx, ids[0])
	require.NoError(t, err)

	queue, err = env.requests.Queue(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, ids[1], queue[0].ID)
	assert.Equal(t, uint(1), queue[0].QueuePosition)
	assert.Equal(t, ids[2], queue[1].ID)
	assert.Equal(t, uint(2), queue[1].QueuePosition)

	// A newly approved request joins at the tail
	lateSong := env.mustCreateSong(t, "Late Song", "Band")
	late := env.mustFileRequest(t, ev.ID, lateSong.ID, singer)
	_, err = env.requests.Approve(ctx, late.ID, ApproveOptions{})
	require.NoError(t, err)

	queue, err = env.requests.Queue(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, late.ID, queue[2].ID)
	assert.Equal(t, uint(3), queue[2].QueuePosition)
}

func TestApproveIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()
	ev := env.mustCreateEvent(t, "Open Stage")
	song := env.mustCreateSong(t, "Valerie", "Amy Winehouse")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)
	req := env.mustFileRequest(t, ev.ID, song.ID, singer)

	first, err := env.requests.Approve(ctx, req.ID, ApproveOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, first.Status)

	// Approving again changes nothing
	second, err := env.requests.Approve(ctx, req.ID, ApproveOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, second.Status)

	queue, err := env.requests.Queue(ctx, ev.ID)
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

func TestApproveWithAddToCrate(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()
	ev := env.mustCreateEvent(t, "Open Stage")
	song := env.mustCreateSong(t, "Valerie", "Amy Winehouse")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)
	req := env.mustFileRequest(t, ev.ID, song.ID, singer)
	assert.False(t, req.InCrate)

	details, err := env.requests.Approve(ctx, req.ID, ApproveOptions{AddToCrate: true})
	require.NoError(t, err)
	assert.True(t, details.InCrate)

	crate, err := env.crates.GetByEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, crate.Songs, 1)
	assert.Equal(t, song.ID, crate.Songs[0].ID)
}

func TestRejectNeedsAReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()
	ev := env.mustCreateEvent(t, "Open Stage")
	song := env.mustCreateSong(t, "Valerie", "Amy Winehouse")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)
	req := env.mustFileRequest(t, ev.ID, song.ID, singer)

	_, err := env.requests.Reject(ctx, req.ID, "   ")
	requireErrorCode(t, err, ErrCodeValidation)

	details, err := env.requests.Reject(ctx, req.ID, "Sung twice already tonight")
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, details.Status)
	assert.Equal(t, "Sung twice already tonight", details.RejectionReason)
}

func TestTerminalStatesAreFinal(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()
	ev := env.mustCreateEvent(t, "Open Stage")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)

	rejectedSong := env.mustCreateSong(t, "Rejected", "Band")
	rejected := env.mustFileRequest(t, ev.ID, rejectedSong.ID, singer)
	_, err := env.requests.Reject(ctx, rejected.ID, "nope")
	require.NoError(t, err)

	_, err = env.requests.Approve(ctx, rejected.ID, ApproveOptions{})
	requireErrorCode(t, err, ErrCodeInvalidStateTransition)
	_, err = env.requests.MarkPerformed(ctx, rejected.ID)
	requireErrorCode(t, err, ErrCodeInvalidStateTransition)

	performedSong := env.mustCreateSong(t, "Performed", "Band")
	performed := env.mustFileRequest(t, ev.ID, performedSong.ID, singer)
	_, err = env.requests.Approve(ctx, performed.ID, ApproveOptions{})
	require.NoError(t, err)
	_, err = env.requests.MarkPerformed(ctx, performed.ID)
	require.NoError(t, err)

	_, err = env.requests.Reject(ctx, performed.ID, "too late")
	requireErrorCode(t, err, ErrCodeInvalidStateTransition)

	// A pending request cannot jump straight to performed either
	pendingSong := env.mustCreateSong(t, "Pending", "Band")
	pending := env.mustFileRequest(t, ev.ID, pendingSong.ID, singer)
	_, err = env.requests.MarkPerformed(ctx, pending.ID)
	requireErrorCode(t, err, ErrCodeInvalidStateTransition)
}

func TestUpdateVideoIsPureMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()
	ev := env.mustCreateEvent(t, "Open Stage")
	song := env.mustCreateSong(t, "Valerie", "Amy Winehouse")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)
	req := env.mustFileRequest(t, ev.ID, song.ID, singer)
	_, err := env.requests.Approve(ctx, req.ID, ApproveOptions{})
	require.NoError(t, err)

	details, err := env.requests.UpdateVideo(ctx, req.ID, "https://example.com/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/clip.mp4", details.VideoURL)
	assert.Equal(t, models.RequestApproved, details.Status)

	_, err = env.requests.UpdateVideo(ctx, req.ID, "::not a url::")
	requireErrorCode(t, err, ErrCodeValidation)

	// The queue position is untouched by metadata edits
	queue, err := env.requests.Queue(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, uint(1), queue[0].QueuePosition)
}

func TestListRequestsFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()
	ev := env.mustCreateEvent(t, "Open Stage")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)

	var reqs []*models.RequestDetails
	for i := 0; i < 3; i++ {
		song := env.mustCreateSong(t, fmt.Sprintf("Song %d", i), "Band")
		reqs = append(reqs, env.mustFileRequest(t, ev.ID, song.ID, singer))
	}
	_, err := env.requests.Approve(ctx, reqs[0].ID, ApproveOptions{})
	require.NoError(t, err)

	all, err := env.requests.List(ctx, ev.ID, models.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	// Newest first
	assert.Equal(t, reqs[2].ID, all[0].ID)

	status := models.RequestPendingAdmin
	pending, err := env.requests.List(ctx, ev.ID, models.RequestFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestDecisionsNotifyTheRequester(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()
	ev := env.mustCreateEvent(t, "Open Stage")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)

	approveSong := env.mustCreateSong(t, "Approved Song", "Band")
	approved := env.mustFileRequest(t, ev.ID, approveSong.ID, singer)
	_, err := env.requests.Approve(ctx, approved.ID, ApproveOptions{})
	require.NoError(t, err)

	rejectSong := env.mustCreateSong(t, "Rejected Song", "Band")
	rejected := env.mustFileRequest(t, ev.ID, rejectSong.ID, singer)
	_, err = env.requests.Reject(ctx, rejected.ID, "set is full")
	require.NoError(t, err)

	msgs := env.notifier.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Body, "Approved Song")
	assert.Contains(t, msgs[1].Body, "Rejected Song")
	assert.Contains(t, msgs[1].Body, "set is full")
}

func TestNotificationFailureDoesNotFailTheDecision(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()
	ev := env.mustCreateEvent(t, "Open Stage")
	song := env.mustCreateSong(t, "Valerie", "Amy Winehouse")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)
	req := env.mustFileRequest(t, ev.ID, song.ID, singer)

	env.notifier.failNext = fmt.Errorf("push endpoint is down")
	details, err := env.requests.Approve(ctx, req.ID, ApproveOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, details.Status)
}
