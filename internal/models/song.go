package models

import (
	"strings"
	"time"
	"unicode"
)

const (
	// SourceSpotify marks a song imported from the Spotify catalog
	SourceSpotify = "spotify"
	// SourceCSV marks a song imported from a CSV upload
	SourceCSV = "csv"
	// SourceManual marks a song entered by hand
	SourceManual = "manual"
)

// Song is a catalog entry for a performable track
type Song struct {
	// Internal ID
	ID uint `db:"id" json:"id"`
	// Title of the track as delivered by the source
	Title string `db:"title" json:"title"`
	// Normalized form of the title - used for duplicate detection
	NormalizedTitle string `db:"normalizedTitle" json:"-"`
	// The performing artist(s) - multiple artists are joined with a single space before normalization
	Artist string `db:"artist" json:"artist"`
	// Normalized form of the artist string - used for duplicate detection
	NormalizedArtist string `db:"normalizedArtist" json:"-"`
	// The album the track appears on
	Album string `db:"album" json:"album,omitempty"`
	// Length of the track
	Duration time.Duration `db:"duration" json:"duration"`
	// URL of the cover art - enrichment field, may be set after creation
	CoverURL string `db:"coverUrl" json:"coverUrl,omitempty"`
	// URL of a performance or lyric video - enrichment field, may be set after creation
	VideoURL string `db:"videoUrl" json:"videoUrl,omitempty"`
	// Where this entry was imported from - see the Source* constants
	Source string `db:"source" json:"source"`
	// The source system's own identifier for the track (e.g. the Spotify track ID)
	SourceExternalID string `db:"sourceExternalId" json:"sourceExternalId,omitempty"`
	// Creation timestamp of this catalog entry
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
	// Timestamp of the last change of this catalog entry
	UpdatedAt time.Time `db:"updatedAt" json:"updatedAt"`
}

// ValidSongSource checks if the given value is a known song source
func ValidSongSource(source string) bool {
	return source == SourceSpotify || source == SourceCSV || source == SourceManual
}

// NormalizeString produces the canonical matching form of a title or artist string: lower-cased, with
// every rune that is neither letter, digit nor whitespace removed and runs of whitespace collapsed to a
// single space. The same function is used when writing a song and when re-deriving its dedup key, so
// both sides always agree
func NormalizeString(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// JoinArtists joins the names of multiple performing artists into the single artist string stored on a song
func JoinArtists(names []string) string {
	return strings.Join(names, " ")
}

// Normalize fills the song's normalized title and artist fields from its raw metadata
func (s *Song) Normalize() {
	s.NormalizedTitle = NormalizeString(s.Title)
	s.NormalizedArtist = NormalizeString(s.Artist)
}

// DedupKey is the natural key that decides whether two catalog entries represent the same track from
// the same source
type DedupKey struct {
	Source           string
	SourceExternalID string
	NormalizedTitle  string
	NormalizedArtist string
}

// DedupKey derives the song's natural key from its current metadata
func (s *Song) DedupKey() DedupKey {
	return DedupKey{
		Source:           s.Source,
		SourceExternalID: s.SourceExternalID,
		NormalizedTitle:  NormalizeString(s.Title),
		NormalizedArtist: NormalizeString(s.Artist),
	}
}
