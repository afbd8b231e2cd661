package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Bohemian Rhapsody", "bohemian rhapsody"},
		{"strips punctuation", "Don't Stop Me Now!", "dont stop me now"},
		{"collapses whitespace", "  under   pressure  ", "under pressure"},
		{"keeps digits", "99 Luftballons", "99 luftballons"},
		{"keeps unicode letters", "Änderung läuft", "änderung läuft"},
		{"drops dashes and brackets", "Song (Live) - Remastered", "song live remastered"},
		{"empty", "", ""},
		{"only punctuation", "!!! --- ???", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeString(tt.input))
		})
	}
}

func TestSongDedupKey(t *testing.T) {
	a := Song{Title: "Don't Stop Me Now!", Artist: "Queen", Source: SourceManual}
	a.Normalize()
	b := Song{Title: "dont stop me now", Artist: "QUEEN", Source: SourceManual}
	b.Normalize()

	// Formatting differences never break the natural key
	assert.Equal(t, a.DedupKey(), b.DedupKey())

	// A different source yields a different key even for the same title and artist
	c := b
	c.Source = SourceCSV
	assert.NotEqual(t, a.DedupKey(), c.DedupKey())

	// A different external ID yields a different key too
	d := b
	d.SourceExternalID = "abc123"
	assert.NotEqual(t, a.DedupKey(), d.DedupKey())
}

func TestJoinArtists(t *testing.T) {
	assert.Equal(t, "Queen David Bowie", JoinArtists([]string{"Queen", "David Bowie"}))
	assert.Equal(t, "Queen", JoinArtists([]string{"Queen"}))
	assert.Equal(t, "", JoinArtists(nil))
}
