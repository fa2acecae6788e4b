// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/circle-sketch/auth"
	"github.com/danielhkuo/circle-sketch/cliparse"
	"github.com/danielhkuo/circle-sketch/models"
	"github.com/danielhkuo/circle-sketch/store"
)

// TestScope is the roster scope used by every test store
const TestScope = "test-guild"

// TestSecret signs bridge requests in tests
const TestSecret = "test-bridge-secret"

// SetupTestStore creates a fresh sqlite database with the full schema
func SetupTestStore(t *testing.T) *store.SQLStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "circle.db")
	st, err := store.Open(context.Background(), store.SQLite, path, TestScope)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return st
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseType: "sqlite",
		DatabaseURL:  ":memory:",
		BridgeSecret: TestSecret,
		ChannelID:    "game-channel",
		ScopeID:      TestScope,
		CircleLimit:  10,
		ScheduleTime: "17:00",
		Timezone:     "America/New_York",
		OpenDelay:    cliparse.DefaultOpenDelay,
		ResetTimeout: cliparse.DefaultResetTimeout,
	}
}

// SeedRoster replaces the roster
func SeedRoster(t *testing.T, st store.Store, members ...string) {
	t.Helper()

	err := st.Atomic(context.Background(), func(tx store.Tx) error {
		return tx.SetRoster(members)
	}, store.UnitRoster)
	if err != nil {
		t.Fatalf("Failed to seed roster: %v", err)
	}
}

// SeedRound replaces the active round
func SeedRound(t *testing.T, st store.Store, round *models.Round) {
	t.Helper()

	err := st.Atomic(context.Background(), func(tx store.Tx) error {
		return tx.SetRound(round)
	}, store.UnitRound)
	if err != nil {
		t.Fatalf("Failed to seed round: %v", err)
	}
}

// LoadRound reads the active round
func LoadRound(t *testing.T, st store.Store) *models.Round {
	t.Helper()

	var round *models.Round
	err := st.View(context.Background(), func(tx store.Tx) error {
		var err error
		round, err = tx.Round()
		return err
	})
	if err != nil {
		t.Fatalf("Failed to load round: %v", err)
	}
	return round
}

// LoadRoster reads the roster
func LoadRoster(t *testing.T, st store.Store) []string {
	t.Helper()

	var members []string
	err := st.View(context.Background(), func(tx store.Tx) error {
		var err error
		members, err = tx.Roster()
		return err
	})
	if err != nil {
		t.Fatalf("Failed to load roster: %v", err)
	}
	return members
}

// Streaks returns the group streak and the requested member streaks
func Streaks(t *testing.T, st store.Store, members ...string) (int, map[string]int) {
	t.Helper()

	var group int
	byMember := make(map[string]int, len(members))
	err := st.View(context.Background(), func(tx store.Tx) error {
		var err error
		if group, err = tx.GroupStreak(); err != nil {
			return err
		}
		for _, id := range members {
			n, err := tx.MemberStreak(id)
			if err != nil {
				return err
			}
			byMember[id] = n
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to load streaks: %v", err)
	}
	return group, byMember
}

// Sent is one outbound message captured by FakeMessenger
type Sent struct {
	ChannelID string
	MemberID  string
	Text      string
	Filename  string
	File      []byte
}

// FakeMessenger records outbound messages. Members listed in FailDMs
// cannot be reached. SendDelay slows every channel post.
type FakeMessenger struct {
	mu        sync.Mutex
	Channel   []Sent
	DMs       []Sent
	FailDMs   []string
	FailSend  bool
	SendDelay time.Duration
}

func (f *FakeMessenger) Send(_ context.Context, channelID, text, filename string, file []byte) error {
	time.Sleep(f.SendDelay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSend {
		return errFake
	}
	f.Channel = append(f.Channel, Sent{ChannelID: channelID, Text: text, Filename: filename, File: file})
	return nil
}

func (f *FakeMessenger) SendDM(_ context.Context, memberID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if slices.Contains(f.FailDMs, memberID) {
		return errFake
	}
	f.DMs = append(f.DMs, Sent{MemberID: memberID, Text: text})
	return nil
}

func (f *FakeMessenger) LookupMember(_ context.Context, memberID string) (models.Member, error) {
	return models.Member{ID: memberID, DisplayName: "Member " + memberID}, nil
}

// DMsTo returns the texts sent to one member
func (f *FakeMessenger) DMsTo(memberID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var texts []string
	for _, dm := range f.DMs {
		if dm.MemberID == memberID {
			texts = append(texts, dm.Text)
		}
	}
	return texts
}

// ChannelPosts returns a copy of everything posted to channels
func (f *FakeMessenger) ChannelPosts() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.Channel)
}

type fakeError string

func (e fakeError) Error() string { return string(e) }

const errFake = fakeError("fake messenger: unreachable")

// MakeRequest creates a signed HTTP test request
func MakeRequest(method, path string, body interface{}) *http.Request {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.SignatureHeader, auth.Sign(payload, TestSecret))
	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
