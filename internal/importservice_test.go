package internal

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbrandt/encore/internal/ingest"
	"github.com/tbrandt/encore/internal/models"
	"golang.org/x/net/context"
)

// fakeTrackSource answers every fetch with a fixed track list
type fakeTrackSource struct {
	tracks []ingest.Track
	name   string
	err    error
}

func (f *fakeTrackSource) Fetch(ctx context.Context, locator string) ([]ingest.Track, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.tracks, f.name, nil
}

func newImportEnv(t *testing.T, source ingest.TrackSource) (*testEnv, ImportService) {
	t.Helper()
	env := newTestEnv(t)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return env, NewImportService(env.songs, source, logrus.NewEntry(logger))
}

func TestImportSpotifyCountsDuplicates(t *testing.T) {
	source := &fakeTrackSource{
		name: "Karaoke Classics",
		tracks: []ingest.Track{
			{Title: "Africa", Artist: "Toto", Source: models.SourceSpotify, SourceExternalID: "a1"},
			{Title: "Africa", Artist: "Toto", Source: models.SourceSpotify, SourceExternalID: "a1"},
			{Title: "Creep", Artist: "Radiohead", Source: models.SourceSpotify, SourceExternalID: "b2"},
		},
	}
	_, imports := newImportEnv(t, source)

	summary, err := imports.ImportSpotify(testCtx(), "https://open.spotify.com/playlist/37i9dQ")
	require.NoError(t, err)
	assert.Equal(t, "Karaoke Classics", summary.Name)
	assert.Equal(t, uint(2), summary.Saved)
	assert.Equal(t, uint(1), summary.Duplicates)
	assert.Equal(t, uint(0), summary.Skipped)

	// A re-import only produces duplicates
	summary, err = imports.ImportSpotify(testCtx(), "https://open.spotify.com/playlist/37i9dQ")
	require.NoError(t, err)
	assert.Equal(t, uint(0), summary.Saved)
	assert.Equal(t, uint(3), summary.Duplicates)
}

func TestImportSpotifyWithoutCredentials(t *testing.T) {
	_, imports := newImportEnv(t, nil)
	_, err := imports.ImportSpotify(testCtx(), "https://open.spotify.com/playlist/37i9dQ")
	requireErrorCode(t, err, ErrCodeImportSourceUnavailable)
}

func TestImportCSV(t *testing.T) {
	env, imports := newImportEnv(t, nil)

	data := `title,artist
Valerie,Amy Winehouse
,No Title
Creep,Radiohead
`
	summary, err := imports.ImportCSV(testCtx(), strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint(2), summary.Saved)
	assert.Equal(t, uint(0), summary.Duplicates)
	assert.Equal(t, uint(1), summary.Skipped)

	_, total, err := env.songs.Search(testCtx(), &Search{Pagination: Pagination{Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, uint(2), total)
}

func TestImportCSVBadFile(t *testing.T) {
	_, imports := newImportEnv(t, nil)
	_, err := imports.ImportCSV(testCtx(), strings.NewReader("colour,weight\n1,2\n"))
	requireErrorCode(t, err, ErrCodeImportFailed)
}
