package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/cappuccino/testutil"
)

func readyz(t *testing.T, opts Options) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()

	NewMux(opts).ServeHTTP(rr, req)

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rr.Code, resp
}

func TestReadyzReady(t *testing.T) {
	code, resp := readyz(t, Options{Transports: []Transport{&fakeTransport{name: "irc", up: true}}})

	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%v", code, resp)
	}
	if resp["status"] != "ready" {
		t.Fatalf("expected status=ready, got %q", resp["status"])
	}
}

func TestReadyzNoTransports(t *testing.T) {
	code, resp := readyz(t, Options{})
	if code != http.StatusOK || resp["status"] != "ready" {
		t.Fatalf("expected ready with nothing to check, got %d %v", code, resp)
	}
}

func TestReadyzNotReadyTransportDown(t *testing.T) {
	code, resp := readyz(t, Options{Transports: []Transport{
		&fakeTransport{name: "irc", up: true},
		&fakeTransport{name: "twitch", up: false},
	}})

	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if resp["status"] != "not_ready" {
		t.Errorf("expected status=not_ready, got %q", resp["status"])
	}
	if resp["failed_check"] != "transport_twitch" {
		t.Errorf("expected failed_check=transport_twitch, got %q", resp["failed_check"])
	}
	if resp["error"] == "" {
		t.Error("expected error message")
	}
}

func TestReadyzWithDatabase(t *testing.T) {
	db := testutil.SetupTestDB(t)

	code, resp := readyz(t, Options{DB: db, Transports: []Transport{&fakeTransport{name: "irc", up: true}}})
	if code != http.StatusOK || resp["status"] != "ready" {
		t.Fatalf("expected ready, got %d %v", code, resp)
	}
}
