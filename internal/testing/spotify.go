package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/tunegate/internal/shared"
)

const (
	FakeClientID     = "fake-client-id"
	FakeClientSecret = "fake-client-secret"
	FakeRedirectURI  = "http://127.0.0.1:5173/content.html"
)

// FakeSpotify is an httptest server standing in for the Spotify accounts service and Web API.
//
// Authorization codes must be registered with [FakeSpotify.AddCode]; each one can be exchanged once. Every issued
// refresh token stays valid until revoked.
type FakeSpotify struct {
	Server *httptest.Server

	mu               sync.Mutex
	seq              int
	codes            map[string]bool
	refreshTokens    map[string]bool
	accessTokens     map[string]bool
	expiresIn        int
	omitRefreshToken bool
	tokenStatus      int
	refreshHold      chan struct{}
	refreshArrived   chan struct{}

	exchangeCalls atomic.Int32
	refreshCalls  atomic.Int32
	apiCalls      atomic.Int32
}

// NewFakeSpotify starts a fake and closes it when the test ends.
func NewFakeSpotify(t *testing.T) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{
		codes:         make(map[string]bool),
		refreshTokens: make(map[string]bool),
		accessTokens:  make(map[string]bool),
		expiresIn:     3600,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", f.handleToken)
	mux.HandleFunc("GET /v1/me/top/tracks", f.handleTopTracks)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// Config returns Spotify settings pointing at the fake.
func (f *FakeSpotify) Config() shared.SpotifyConfig {
	return shared.SpotifyConfig{
		ClientID:     FakeClientID,
		ClientSecret: FakeClientSecret,
		RedirectURI:  FakeRedirectURI,
		Scopes:       []string{"user-top-read"},
		AuthURL:      f.Server.URL + "/authorize",
		TokenURL:     f.Server.URL + "/api/token",
		APIURL:       f.Server.URL + "/v1",
	}
}

// AddCode registers a single-use authorization code.
func (f *FakeSpotify) AddCode(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = true
}

// AddRefreshToken registers a refresh token that the fake will accept.
func (f *FakeSpotify) AddRefreshToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshTokens[token] = true
}

// AddAccessToken registers an access token that the API endpoints will accept.
func (f *FakeSpotify) AddAccessToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessTokens[token] = true
}

// RevokeRefreshToken makes later refreshes with token fail with invalid_grant.
func (f *FakeSpotify) RevokeRefreshToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refreshTokens, token)
}

// RevokeAccessToken makes API calls with token answer 401.
func (f *FakeSpotify) RevokeAccessToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accessTokens, token)
}

// SetExpiresIn sets the expires_in value of issued tokens.
func (f *FakeSpotify) SetExpiresIn(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiresIn = seconds
}

// SetOmitRefreshToken makes refresh responses leave out refresh_token.
func (f *FakeSpotify) SetOmitRefreshToken(omit bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.omitRefreshToken = omit
}

// SetTokenStatus forces the token endpoint to answer with status (0 restores normal behavior).
func (f *FakeSpotify) SetTokenStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenStatus = status
}

// HoldRefreshes parks every refresh_token grant until release is called. arrived receives once per parked request.
func (f *FakeSpotify) HoldRefreshes() (arrived <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hold := make(chan struct{})
	f.refreshHold = hold
	f.refreshArrived = make(chan struct{}, 16)

	var once sync.Once
	return f.refreshArrived, func() {
		once.Do(func() {
			f.mu.Lock()
			f.refreshHold = nil
			f.mu.Unlock()
			close(hold)
		})
	}
}

func (f *FakeSpotify) ExchangeCalls() int { return int(f.exchangeCalls.Load()) }
func (f *FakeSpotify) RefreshCalls() int  { return int(f.refreshCalls.Load()) }
func (f *FakeSpotify) APICalls() int      { return int(f.apiCalls.Load()) }

func (f *FakeSpotify) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeTokenError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID, clientSecret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	if clientID != FakeClientID || clientSecret != FakeClientSecret {
		writeTokenError(w, http.StatusUnauthorized, "invalid_client")
		return
	}

	grant := r.PostForm.Get("grant_type")
	if grant == "refresh_token" {
		f.mu.Lock()
		hold, arrived := f.refreshHold, f.refreshArrived
		f.mu.Unlock()
		if hold != nil {
			arrived <- struct{}{}
			<-hold
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch grant {
	case "authorization_code":
		f.exchangeCalls.Add(1)
	case "refresh_token":
		f.refreshCalls.Add(1)
	}

	if f.tokenStatus != 0 {
		writeTokenError(w, f.tokenStatus, "server_error")
		return
	}

	resp := map[string]any{"token_type": "Bearer", "expires_in": f.expiresIn, "scope": "user-top-read"}

	switch grant {
	case "authorization_code":
		code := r.PostForm.Get("code")
		if !f.codes[code] {
			writeTokenError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		delete(f.codes, code)
		resp["access_token"] = f.issueAccess()
		resp["refresh_token"] = f.issueRefresh()
	case "refresh_token":
		if !f.refreshTokens[r.PostForm.Get("refresh_token")] {
			writeTokenError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		resp["access_token"] = f.issueAccess()
		if !f.omitRefreshToken {
			resp["refresh_token"] = f.issueRefresh()
		}
	default:
		writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (f *FakeSpotify) issueAccess() string {
	f.seq++
	token := fmt.Sprintf("access-%d", f.seq)
	f.accessTokens[token] = true
	return token
}

func (f *FakeSpotify) issueRefresh() string {
	f.seq++
	token := fmt.Sprintf("refresh-%d", f.seq)
	f.refreshTokens[token] = true
	return token
}

func (f *FakeSpotify) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accessTokens[token]
}

func (f *FakeSpotify) handleTopTracks(w http.ResponseWriter, r *http.Request) {
	f.apiCalls.Add(1)
	if !f.authorized(r) {
		writeAPIError(w, http.StatusUnauthorized, "The access token expired")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"items": []map[string]any{
			{
				"id":           "track-1",
				"name":         "Song One",
				"duration_ms":  215000,
				"artists":      []map[string]any{{"id": "artist-1", "name": "Artist One"}},
				"album":        map[string]any{"id": "album-1", "name": "Album One"},
				"external_ids": map[string]any{"isrc": "USABC0000001"},
			},
			{
				"id":          "track-2",
				"name":        "Song Two",
				"duration_ms": 180000,
				"artists":     []map[string]any{{"id": "artist-2", "name": "Artist Two"}},
				"album":       map[string]any{"id": "album-2", "name": "Album Two"},
			},
		},
		"total":  2,
		"limit":  limit,
		"offset": 0,
	})
}

func writeTokenError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "error_description": code})
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"status": status, "message": message}})
}
