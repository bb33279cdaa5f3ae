// Spotify Web API client used by the protected resource
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/tunegate/internal/shared"
	"golang.org/x/oauth2"
)

const (
	SpotifyAuthURL  = "https://accounts.spotify.com/authorize"
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"
	SpotifyBaseURL  = "https://api.spotify.com/v1"

	// Time ranges accepted by the top items endpoint.
	TimeRangeShort  = "short_term"
	TimeRangeMedium = "medium_term"
	TimeRangeLong   = "long_term"

	defaultTopLimit = 20
	maxTopLimit     = 50
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	Explicit    bool            `json:"explicit"`
	ExternalIDs externalIDs     `json:"external_ids"`
	Popularity  int             `json:"popularity"`
	URI         string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

// SpotifyPaginatedTracks represents a paginated response of top tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifyTrack `json:"items"`
	Total    int            `json:"total"`
	Limit    int            `json:"limit"`
	Offset   int            `json:"offset"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
}

// NewOAuthConfig builds the [oauth2.Config] for the Spotify authorization server.
//
// Endpoints left empty in cfg fall back to the public Spotify accounts service.
func NewOAuthConfig(cfg shared.SpotifyConfig) *oauth2.Config {
	authURL, tokenURL := cfg.AuthURL, cfg.TokenURL
	if authURL == "" {
		authURL = SpotifyAuthURL
	}
	if tokenURL == "" {
		tokenURL = SpotifyTokenURL
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"user-top-read"}
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// SpotifyClient calls the Spotify Web API with a caller-supplied access token.
//
// It never refreshes tokens itself: a 401 is reported as [shared.ErrTokenRevoked] so the caller can decide.
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSpotifyClient creates a client for baseURL (defaults to [SpotifyBaseURL]).
func NewSpotifyClient(baseURL string, httpClient *http.Client) *SpotifyClient {
	if baseURL == "" {
		baseURL = SpotifyBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SpotifyClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (s *SpotifyClient) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated GET against the Spotify API and decodes the JSON body into result.
func (s *SpotifyClient) doRequest(ctx context.Context, accessToken, endpoint string, result any) error {
	if accessToken == "" {
		return fmt.Errorf("%w: access token", shared.ErrMissingArgument)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		return shared.ErrTokenRevoked
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: spotify API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %w", shared.ErrAPIRequest, err)
		}
	}

	return nil
}

// TopTracks retrieves the user's top tracks. limit is clamped to 1..50 and an unknown timeRange falls back to
// medium_term.
func (s *SpotifyClient) TopTracks(ctx context.Context, accessToken string, limit int, timeRange string) (*SpotifyPaginatedTracks, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}
	timeRange = NormalizeTimeRange(timeRange)

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("time_range", timeRange)

	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, accessToken, "/me/top/tracks?"+q.Encode(), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// NormalizeTimeRange maps user input onto a supported time range.
func NormalizeTimeRange(timeRange string) string {
	switch timeRange {
	case TimeRangeShort, TimeRangeLong:
		return timeRange
	default:
		return TimeRangeMedium
	}
}

// ToTrack converts a [SpotifyTrack] into the provider-neutral [Track].
func ToTrack(st SpotifyTrack) Track {
	track := Track{
		ID:       st.ID,
		Title:    st.Name,
		Album:    st.Album.Name,
		Duration: st.DurationMS / 1000,
		ISRC:     st.ExternalIDs.ISRC,
	}
	if len(st.Artists) > 0 {
		track.Artist = st.Artists[0].Name
	}
	return track
}

// NewWrapped summarizes a top tracks page.
func NewWrapped(timeRange string, page *SpotifyPaginatedTracks) Wrapped {
	w := Wrapped{TimeRange: NormalizeTimeRange(timeRange), Tracks: []Track{}}
	if page == nil {
		return w
	}
	w.Total = page.Total
	for _, item := range page.Items {
		w.Tracks = append(w.Tracks, ToTrack(item))
	}
	return w
}
