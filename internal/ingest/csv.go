package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tbrandt/encore/internal/models"
)

// canonical header mapping - CSV exports name the same columns in many ways
var headerAliases = map[string]string{
	"title":       "title",
	"track":       "title",
	"track_title": "title",
	"name":        "title",

	"artist":      "artist",
	"artist_name": "artist",
	"performer":   "artist",

	"album":       "album",
	"album_title": "album",

	"duration":    "duration",
	"duration_ms": "duration",
	"length":      "duration",

	"external_id": "externalId",
	"spotify_id":  "externalId",
	"id":          "externalId",
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseCSV reads track metadata rows from a CSV stream. The first row must be a header; columns are
// matched case-insensitively against a set of known aliases. Rows without a title or artist are
// skipped and counted instead of aborting the whole import
func ParseCSV(r io.Reader) ([]Track, uint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rawHeaders, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columnMap := make(map[int]string)
	for i, h := range rawHeaders {
		if canonical, ok := headerAliases[normalizeHeader(h)]; ok {
			columnMap[i] = canonical
		}
	}
	if len(columnMap) == 0 {
		return nil, 0, fmt.Errorf("CSV has no recognizable columns")
	}

	var tracks []Track
	var skipped uint
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read CSV row: %w", err)
		}
		track := Track{Source: models.SourceCSV}
		for i, field := range record {
			name, ok := columnMap[i]
			if !ok {
				continue
			}
			value := strings.TrimSpace(field)
			switch name {
			case "title":
				track.Title = value
			case "artist":
				track.Artist = value
			case "album":
				track.Album = value
			case "duration":
				if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
					track.Duration = time.Duration(ms) * time.Millisecond
				}
			case "externalId":
				track.SourceExternalID = value
			}
		}
		if track.Title == "" || track.Artist == "" {
			skipped++
			continue
		}
		tracks = append(tracks, track)
	}
	return tracks, skipped, nil
}
