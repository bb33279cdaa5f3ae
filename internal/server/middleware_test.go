package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/tunegate/internal/shared"
)

func TestRateLimiter(t *testing.T) {
	t.Run("Allow", func(t *testing.T) {
		l := NewRateLimiter(0.001, 2)

		if !l.Allow("1.2.3.4") || !l.Allow("1.2.3.4") {
			t.Fatal("expected burst of 2 to be allowed")
		}
		if l.Allow("1.2.3.4") {
			t.Error("expected third request to be limited")
		}
		if !l.Allow("5.6.7.8") {
			t.Error("expected other clients to have their own bucket")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		l := NewRateLimiter(0, 1)
		for range 100 {
			if !l.Allow("1.2.3.4") {
				t.Fatal("expected unlimited limiter to allow every request")
			}
		}
	})

	t.Run("middleware", func(t *testing.T) {
		handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}), RateLimit(NewRateLimiter(0.001, 1)))

		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.1:1234"

		first := httptest.NewRecorder()
		handler.ServeHTTP(first, req)
		if first.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", first.Code)
		}

		second := httptest.NewRecorder()
		handler.ServeHTTP(second, req)
		if second.Code != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", second.Code)
		}
		if second.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
	})
}

func TestRecover(t *testing.T) {
	t.Run("before response", func(t *testing.T) {
		handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}), Recover(shared.NewLogger(io.Discard)))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assertError(t, rec, http.StatusInternalServerError, "InternalError")
	})

	t.Run("after response started", func(t *testing.T) {
		var logs bytes.Buffer
		handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("partial"))
			panic("boom")
		}), Recover(shared.NewLogger(&logs)), Logging(shared.NewLogger(io.Discard)))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected the written status to stand, got %d", rec.Code)
		}
		if body := rec.Body.String(); body != "partial" {
			t.Errorf("expected no error body appended, got %q", body)
		}
		if !strings.Contains(logs.String(), "panic after response started") {
			t.Errorf("expected panic to be logged, got %q", logs.String())
		}
	})

	t.Run("body without explicit header", func(t *testing.T) {
		handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("partial"))
			panic("boom")
		}), Recover(shared.NewLogger(io.Discard)))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Body.String() != "partial" {
			t.Errorf("expected no error body appended, got %q", rec.Body.String())
		}
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mark("first"), mark("second"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"first", "second", "handler"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"duplicate", fmt.Errorf("%w: a@b.co", shared.ErrDuplicateEmail), http.StatusBadRequest, "DuplicateEmail"},
		{"session expired", shared.ErrSessionExpired, http.StatusUnauthorized, "SessionExpired"},
		{"not linked", shared.ErrNotLinked, http.StatusForbidden, "NotLinked"},
		{"external expired", shared.ErrExternalAuthExpired, http.StatusUnauthorized, "ExternalAuthExpired"},
		{"rejected", fmt.Errorf("%w: invalid_grant", shared.ErrExchangeRejected), http.StatusUnauthorized, "Rejected"},
		{"exchange failed", shared.ErrExchangeFailed, http.StatusBadGateway, "ExchangeFailed"},
		{"storage", fmt.Errorf("%w: failed to insert user: %w", shared.ErrStorage, errors.New("disk full")), http.StatusInternalServerError, "InternalError"},
		{"storage timeout", fmt.Errorf("%w: query user timed out: %w", shared.ErrStorage, context.DeadlineExceeded), http.StatusServiceUnavailable, "Unavailable"},
		{"unknown", errors.New("something else"), http.StatusInternalServerError, "InternalError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if got.status != tt.status || got.code != tt.code {
				t.Errorf("classify(%v) = %d %s, want %d %s", tt.err, got.status, got.code, tt.status, tt.code)
			}
		})
	}

	t.Run("storage details are not exposed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		writeError(rec, shared.NewLogger(io.Discard), fmt.Errorf("%w: failed to insert user: %w", shared.ErrStorage, errors.New("UNIQUE constraint on secret_table")))

		if body := rec.Body.String(); body == "" || containsAny(body, "secret_table", "insert user") {
			t.Errorf("response leaked internals: %s", body)
		}
	})

	t.Run("timeout sets Retry-After", func(t *testing.T) {
		rec := httptest.NewRecorder()
		writeError(rec, shared.NewLogger(io.Discard), fmt.Errorf("%w: %w", shared.ErrStorage, context.DeadlineExceeded))
		if rec.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
	})
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
