// Package ingest contains the song importers that feed external track metadata into the catalog
package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tbrandt/encore/internal/models"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/net/context"
)

// Track is one row of imported track metadata, not yet a catalog entry
type Track struct {
	Title            string
	Artist           string
	Album            string
	Duration         time.Duration
	CoverURL         string
	Source           string
	SourceExternalID string
}

// Song converts the imported row into an unsaved catalog entry
func (t Track) Song() models.Song {
	return models.Song{
		Title:            t.Title,
		Artist:           t.Artist,
		Album:            t.Album,
		Duration:         t.Duration,
		CoverURL:         t.CoverURL,
		Source:           t.Source,
		SourceExternalID: t.SourceExternalID,
	}
}

// TrackSource fetches track metadata for a source-specific locator (a Spotify URL, for example)
type TrackSource interface {
	// Fetch resolves the locator and returns the tracks it points at plus a display name for the
	// imported collection
	Fetch(ctx context.Context, locator string) ([]Track, string, error)
}

// -- Spotify importer -------------------------------------------------------------------------------------------------

// SpotifyImporter resolves Spotify playlist, album and track URLs via the Spotify Web API
// The API client carries its own injected token source, so the importer holds no credential state
type SpotifyImporter struct {
	client *spotify.Client
	logger *logrus.Entry
}

// NewSpotifyImporter creates a new importer around the given Spotify API client
func NewSpotifyImporter(client *spotify.Client, logger *logrus.Entry) *SpotifyImporter {
	return &SpotifyImporter{client: client, logger: logger}
}

// Fetch resolves the given Spotify URL and returns the track metadata it points at
func (p *SpotifyImporter) Fetch(ctx context.Context, url string) ([]Track, string, error) {
	id, mediaType, err := parseSpotifyURL(url)
	if err != nil {
		return nil, "", err
	}
	switch mediaType {
	case "playlist":
		return p.fetchPlaylist(ctx, id)
	case "album":
		return p.fetchAlbum(ctx, id)
	case "track":
		return p.fetchTrack(ctx, id)
	}
	return nil, "", fmt.Errorf("unsupported spotify type: %s", mediaType)
}

func (p *SpotifyImporter) fetchPlaylist(ctx context.Context, id spotify.ID) ([]Track, string, error) {
	res, err := p.client.GetPlaylist(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get playlist: %w", err)
	}
	var tracks []Track
	page := res.Tracks
	for {
		for _, item := range page.Tracks {
			if item.Track.ID != "" && !item.IsLocal {
				tracks = append(tracks, transformTrack(item.Track))
			}
		}
		err = p.client.NextPage(ctx, &page)
		if err == spotify.ErrNoMorePages {
			break
		}
		if err != nil {
			return tracks, res.Name, fmt.Errorf("playlist pagination error: %w", err)
		}
	}
	return tracks, res.Name, nil
}

func (p *SpotifyImporter) fetchAlbum(ctx context.Context, id spotify.ID) ([]Track, string, error) {
	res, err := p.client.GetAlbum(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get album: %w", err)
	}
	var ids []spotify.ID
	for _, t := range res.Tracks.Tracks {
		ids = append(ids, t.ID)
	}
	var tracks []Track
	// The track endpoint takes at most 50 IDs per call
	for i := 0; i < len(ids); i += 50 {
		end := i + 50
		if end > len(ids) {
			end = len(ids)
		}
		fullTracks, err := p.client.GetTracks(ctx, ids[i:end])
		if err != nil {
			return nil, "", fmt.Errorf("get full tracks for album: %w", err)
		}
		for _, ft := range fullTracks {
			tracks = append(tracks, transformTrack(*ft))
		}
	}
	return tracks, res.Name, nil
}

func (p *SpotifyImporter) fetchTrack(ctx context.Context, id spotify.ID) ([]Track, string, error) {
	res, err := p.client.GetTrack(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("get track: %w", err)
	}
	return []Track{transformTrack(*res)}, res.Name, nil
}

func parseSpotifyURL(urlStr string) (spotify.ID, string, error) {
	for _, mediaType := range []string{"playlist", "album", "track"} {
		if strings.Contains(urlStr, "/"+mediaType+"/") {
			return extractSpotifyID(urlStr), mediaType, nil
		}
	}
	return "", "", fmt.Errorf("could not identify media type from URL")
}

func extractSpotifyID(urlStr string) spotify.ID {
	parts := strings.Split(urlStr, "/")
	lastPart := parts[len(parts)-1]
	id := strings.Split(lastPart, "?")[0]
	return spotify.ID(id)
}

func transformTrack(st spotify.FullTrack) Track {
	artists := make([]string, len(st.Artists))
	for i, a := range st.Artists {
		artists[i] = a.Name
	}
	track := Track{
		Title:            st.Name,
		Artist:           models.JoinArtists(artists),
		Album:            st.Album.Name,
		Duration:         time.Duration(st.Duration) * time.Millisecond,
		Source:           models.SourceSpotify,
		SourceExternalID: string(st.ID),
	}
	if len(st.Album.Images) > 0 {
		track.CoverURL = st.Album.Images[0].URL
	}
	return track
}
