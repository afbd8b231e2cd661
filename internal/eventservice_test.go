package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbrandt/encore/internal/models"
)

func TestEventLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	ev, err := env.events.Create(ctx, &models.Event{
		Name:     "Karaoke Friday",
		Venue:    "Moonlight Bar",
		StartsAt: time.Now(),
		EndsAt:   time.Now().Add(4 * time.Hour),
	})
	require.NoError(t, err)
	assert.NotZero(t, ev.ID)
	// A new event without an explicit status starts as a draft
	assert.Equal(t, models.EventStatusDraft, ev.Status)

	require.NoError(t, env.events.Update(ctx, &models.Event{
		ID:     ev.ID,
		Name:   "Karaoke Friday XL",
		Venue:  "Main Hall",
		Status: models.EventStatusActive,
	}))
	got, err := env.events.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Karaoke Friday XL", got.Name)
	assert.Equal(t, models.EventStatusActive, got.Status)

	require.NoError(t, env.events.Delete(ctx, ev.ID))
	_, err = env.events.Get(ctx, ev.ID)
	requireErrorCode(t, err, ErrCodeEventNotFound)
}

func TestEventValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	_, err := env.events.Create(ctx, &models.Event{Name: "   "})
	requireErrorCode(t, err, ErrCodeValidation)

	_, err = env.events.Create(ctx, &models.Event{Name: "Party", Status: "cancelled"})
	requireErrorCode(t, err, ErrCodeValidation)
}

func TestCurrentEventSelection(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()

	_, err := env.events.CurrentEvent(ctx)
	requireErrorCode(t, err, ErrCodeNoCurrentEvent)

	ev := env.mustCreateEvent(t, "Tonight")
	require.NoError(t, env.events.SetCurrentEvent(ctx, ev.ID))

	current, err := env.events.CurrentEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, current.ID)

	// Deleting the current event clears the selection
	require.NoError(t, env.events.Delete(ctx, ev.ID))
	_, err = env.events.CurrentEvent(ctx)
	requireErrorCode(t, err, ErrCodeNoCurrentEvent)

	require.Error(t, env.events.SetCurrentEvent(ctx, 999))
}

func TestDeletingAnEventDropsItsRequestsAndCrate(t *testing.T) {
	env := newTestEnv(t)
	ctx := testCtx()
	ev := env.mustCreateEvent(t, "Short Lived")
	song := env.mustCreateSong(t, "Valerie", "Amy Winehouse")
	singer := env.mustCreateUser(t, "dana", models.RoleSinger)

	env.mustFileRequest(t, ev.ID, song.ID, singer)
	_, err := env.crates.AddSong(ctx, ev.ID, song.ID)
	require.NoError(t, err)

	require.NoError(t, env.events.Delete(ctx, ev.ID))

	var count int
	require.NoError(t, env.db.Get(&count, "SELECT COUNT(*) FROM Requests WHERE eventId = ?", ev.ID))
	assert.Zero(t, count)
	require.NoError(t, env.db.Get(&count, "SELECT COUNT(*) FROM Crates WHERE eventId = ?", ev.ID))
	assert.Zero(t, count)
}
