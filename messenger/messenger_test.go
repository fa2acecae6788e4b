// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/danielhkuo/circle-sketch/auth"
	"github.com/danielhkuo/circle-sketch/models"
)

const testSecret = "bridge-secret"

type bridgeRecorder struct {
	mu       sync.Mutex
	paths    []string
	bodies   [][]byte
	badSigns int
}

func (r *bridgeRecorder) snapshot() ([]string, [][]byte, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...), append([][]byte(nil), r.bodies...), r.badSigns
}

func newBridge(t *testing.T, rec *bridgeRecorder, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.paths = append(rec.paths, r.Method+" "+r.URL.Path)
		rec.bodies = append(rec.bodies, body)
		if auth.ValidateSignature(body, r.Header.Get(auth.SignatureHeader), testSecret) != nil {
			rec.badSigns++
		}
		rec.mu.Unlock()
		if handler != nil {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebhook_Send(t *testing.T) {
	rec := &bridgeRecorder{}
	srv := newBridge(t, rec, nil)
	w := NewWebhook(srv.URL+"/", testSecret, 100)

	err := w.Send(context.Background(), "chan-1", "hello", "theme.png", []byte{0x89, 'P', 'N', 'G'})
	if err != nil {
		t.Fatal(err)
	}

	paths, bodies, badSigns := rec.snapshot()
	if len(paths) != 1 || paths[0] != "POST /send" {
		t.Fatalf("unexpected requests: %v", paths)
	}
	if badSigns != 0 {
		t.Error("request was not signed correctly")
	}

	var got models.SendRequest
	if err := json.Unmarshal(bodies[0], &got); err != nil {
		t.Fatal(err)
	}
	if got.ChannelID != "chan-1" || got.Text != "hello" || got.Filename != "theme.png" || len(got.File) != 4 {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestWebhook_SendDM(t *testing.T) {
	rec := &bridgeRecorder{}
	srv := newBridge(t, rec, nil)
	w := NewWebhook(srv.URL, testSecret, 100)

	if err := w.SendDM(context.Background(), "42", "draw a boat"); err != nil {
		t.Fatal(err)
	}

	paths, bodies, badSigns := rec.snapshot()
	var got models.DMRequest
	json.Unmarshal(bodies[0], &got)
	if paths[0] != "POST /dm" || got.MemberID != "42" || got.Text != "draw a boat" {
		t.Errorf("unexpected request %s %+v", paths[0], got)
	}
	if badSigns != 0 {
		t.Error("request was not signed correctly")
	}
}

func TestWebhook_LookupMember(t *testing.T) {
	rec := &bridgeRecorder{}
	srv := newBridge(t, rec, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.Member{DisplayName: "Ada", AvatarURL: "https://cdn/ada.png"})
	})
	w := NewWebhook(srv.URL, testSecret, 100)

	member, err := w.LookupMember(context.Background(), "7")
	if err != nil {
		t.Fatal(err)
	}
	paths, _, badSigns := rec.snapshot()
	if paths[0] != "GET /members/7" || badSigns != 0 {
		t.Errorf("unexpected request %s (bad signatures: %d)", paths[0], badSigns)
	}
	if member.ID != "7" || member.DisplayName != "Ada" || member.AvatarURL == "" {
		t.Errorf("unexpected member: %+v", member)
	}
}

func TestWebhook_ErrorStatus(t *testing.T) {
	rec := &bridgeRecorder{}
	srv := newBridge(t, rec, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "member has DMs closed", http.StatusForbidden)
	})
	w := NewWebhook(srv.URL, testSecret, 100)

	err := w.SendDM(context.Background(), "42", "hi")
	if !errors.Is(err, ErrBridgeStatus) {
		t.Errorf("expected ErrBridgeStatus, got %v", err)
	}
}

func TestWebhook_CancelledContext(t *testing.T) {
	rec := &bridgeRecorder{}
	srv := newBridge(t, rec, nil)
	// burst of one: the second call has to wait for a token
	w := NewWebhook(srv.URL, testSecret, 0.001)

	if err := w.SendDM(context.Background(), "1", "first"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.SendDM(ctx, "2", "second"); err == nil {
		t.Error("expected an error when the context is cancelled while throttled")
	}
	if paths, _, _ := rec.snapshot(); len(paths) != 1 {
		t.Errorf("throttled request should not reach the bridge, got %v", paths)
	}
}

func TestLog(t *testing.T) {
	var m Messenger = Log{}
	ctx := context.Background()

	if err := m.Send(ctx, "c", "t", "", nil); err != nil {
		t.Error(err)
	}
	if err := m.SendDM(ctx, "1", "t"); err != nil {
		t.Error(err)
	}
	member, err := m.LookupMember(ctx, "1")
	if err != nil || member.DisplayName != "1" {
		t.Errorf("unexpected member %+v %v", member, err)
	}
}
