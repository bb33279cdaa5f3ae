// package services defines clients for the third-party HTTP APIs the gateway proxies
package services

import (
	"context"
)

// Service is a music provider the gateway can call with a delegated access token.
type Service interface {
	// TopTracks retrieves the account's most played tracks.
	TopTracks(ctx context.Context, accessToken string, limit int, timeRange string) (*SpotifyPaginatedTracks, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// Track is the provider-neutral view of a track returned to API clients.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Duration int    `json:"duration"` // Duration in seconds
	ISRC     string `json:"isrc,omitempty"`
}

// Wrapped summarizes a listener's top tracks for one time range.
type Wrapped struct {
	TimeRange string  `json:"time_range"`
	Total     int     `json:"total"`
	Tracks    []Track `json:"tracks"`
}
