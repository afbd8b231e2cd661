package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbrandt/encore/internal/models"
)

func TestParseCSV(t *testing.T) {
	data := `title,artist,album,duration_ms,spotify_id
Bohemian Rhapsody,Queen,A Night at the Opera,354000,4u7EnebtmKWzUH433cf5Qv
Roxanne,The Police,Outlandos d'Amour,193000,
`
	tracks, skipped, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint(0), skipped)
	require.Len(t, tracks, 2)

	assert.Equal(t, "Bohemian Rhapsody", tracks[0].Title)
	assert.Equal(t, "Queen", tracks[0].Artist)
	assert.Equal(t, "A Night at the Opera", tracks[0].Album)
	assert.Equal(t, 354*time.Second, tracks[0].Duration)
	assert.Equal(t, "4u7EnebtmKWzUH433cf5Qv", tracks[0].SourceExternalID)
	assert.Equal(t, models.SourceCSV, tracks[0].Source)

	assert.Equal(t, "Roxanne", tracks[1].Title)
	assert.Empty(t, tracks[1].SourceExternalID)
}

func TestParseCSVHeaderAliases(t *testing.T) {
	data := `Track,Performer,Length
Creep,Radiohead,238000
`
	tracks, skipped, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint(0), skipped)
	require.Len(t, tracks, 1)
	assert.Equal(t, "Creep", tracks[0].Title)
	assert.Equal(t, "Radiohead", tracks[0].Artist)
	assert.Equal(t, 238*time.Second, tracks[0].Duration)
}

func TestParseCSVSkipsIncompleteRows(t *testing.T) {
	data := `title,artist
Complete Song,Some Band
,Missing Title
Missing Artist,
Another Song,Another Band
`
	tracks, skipped, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint(2), skipped)
	require.Len(t, tracks, 2)
	assert.Equal(t, "Complete Song", tracks[0].Title)
	assert.Equal(t, "Another Song", tracks[1].Title)
}

func TestParseCSVRejectsUnusableInput(t *testing.T) {
	_, _, err := ParseCSV(strings.NewReader("foo,bar\n1,2\n"))
	assert.Error(t, err)

	_, _, err = ParseCSV(strings.NewReader(""))
	assert.Error(t, err)
}
