// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/circle-sketch/auth"
	"github.com/danielhkuo/circle-sketch/circle"
	"github.com/danielhkuo/circle-sketch/coordinator"
	"github.com/danielhkuo/circle-sketch/gallery"
	"github.com/danielhkuo/circle-sketch/models"
	"github.com/danielhkuo/circle-sketch/rounds"
	"github.com/danielhkuo/circle-sketch/testutil"
)

func setupRouter(t *testing.T) *http.ServeMux {
	t.Helper()

	cfg := testutil.GetTestConfig()
	st := testutil.SetupTestStore(t)

	closeAt, err := rounds.ParseDaily(cfg.ScheduleTime, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	pool, err := rounds.NewPool(rounds.DefaultThemes)
	if err != nil {
		t.Fatal(err)
	}
	machine := rounds.NewMachine(st, pool, closeAt)
	roster := circle.NewManager(st, cfg.CircleLimit)

	renderer, err := gallery.NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	artifacts, err := gallery.NewArtifacts(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	coord := coordinator.New(machine, roster, &testutil.FakeMessenger{}, renderer, artifacts, nil, coordinator.Config{
		ChannelID: cfg.ChannelID,
		CloseAt:   closeAt,
	})
	t.Cleanup(coord.Wait)

	return NewRouter(Deps{Machine: machine, Roster: roster, Coordinator: coord}, cfg)
}

func TestHealthEndpoint(t *testing.T) {
	mux := setupRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux := setupRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	expected := "circle-sketch bridge API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestSignedRoutes(t *testing.T) {
	mux := setupRouter(t)

	testCases := []struct {
		name     string
		path     string
		body     interface{}
		expected int
	}{
		{"join", "/commands/join", models.CommandRequest{MemberID: "A"}, http.StatusOK},
		{"list", "/commands/list", models.CommandRequest{MemberID: "A"}, http.StatusOK},
		{"unknown command", "/commands/dance", models.CommandRequest{MemberID: "A"}, http.StatusNotFound},
		{"direct message", "/events/direct-message", models.DirectMessageRequest{MemberID: "A"}, http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, testutil.MakeRequest("POST", tc.path, tc.body))
			testutil.AssertStatus(t, w, tc.expected)
		})
	}
}

func TestPathParameterExtraction(t *testing.T) {
	mux := setupRouter(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("POST", "/commands/join", models.CommandRequest{MemberID: "A"}))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.CommandResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Reply != "Welcome! The circle now has 1/10 players." {
		t.Errorf("Expected join reply, got %q", resp.Reply)
	}
}

func TestUnsignedRequestsRejected(t *testing.T) {
	mux := setupRouter(t)
	body := []byte(`{"member_id":"A"}`)

	testCases := []struct {
		name      string
		path      string
		signature string
	}{
		{"command without signature", "/commands/join", ""},
		{"command with wrong secret", "/commands/join", auth.Sign(body, "not-the-secret")},
		{"dm without signature", "/events/direct-message", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tc.path, bytes.NewReader(body))
			if tc.signature != "" {
				req.Header.Set(auth.SignatureHeader, tc.signature)
			}
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			testutil.AssertStatus(t, w, http.StatusUnauthorized)
		})
	}
}

func TestSpecificMethodRouting(t *testing.T) {
	mux := setupRouter(t)

	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"POST to health endpoint", "POST", "/health", http.StatusMethodNotAllowed},
		{"PUT a direct message", "PUT", "/events/direct-message", http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != tc.expectedStatus {
				t.Errorf("Expected %d for %s %s, got %d", tc.expectedStatus, tc.method, tc.path, w.Code)
			}
		})
	}
}
