// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/circle-sketch/circle"
	"github.com/danielhkuo/circle-sketch/coordinator"
	"github.com/danielhkuo/circle-sketch/gallery"
	"github.com/danielhkuo/circle-sketch/models"
	"github.com/danielhkuo/circle-sketch/rounds"
	"github.com/danielhkuo/circle-sketch/store"
	"github.com/danielhkuo/circle-sketch/testutil"
)

type testEnv struct {
	st       *store.SQLStore
	msg      *testutil.FakeMessenger
	coord    *coordinator.Coordinator
	commands *CommandHandler
	dms      *DirectMessageHandler
}

// setupHandlers wires every handler to a fresh sqlite store. The round
// clock is fixed at 18:30 New York time.
func setupHandlers(t *testing.T, limit int) *testEnv {
	t.Helper()

	cfg := testutil.GetTestConfig()
	cfg.CircleLimit = limit

	st := testutil.SetupTestStore(t)
	pool, err := rounds.NewPool([]string{"Lighthouse"})
	if err != nil {
		t.Fatal(err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		t.Fatal(err)
	}
	closeAt, err := rounds.ParseDaily(cfg.ScheduleTime, loc)
	if err != nil {
		t.Fatal(err)
	}
	machine := rounds.NewMachine(st, pool, closeAt)
	machine.SetClock(func() time.Time { return time.Date(2025, 7, 7, 18, 30, 0, 0, loc) })

	renderer, err := gallery.NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	artifacts, err := gallery.NewArtifacts(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	roster := circle.NewManager(st, cfg.CircleLimit)
	msg := &testutil.FakeMessenger{}
	coord := coordinator.New(machine, roster, msg, renderer, artifacts, coordinator.NewMemoryGuard(), coordinator.Config{
		ChannelID: cfg.ChannelID,
		CloseAt:   closeAt,
	})
	t.Cleanup(coord.Wait)

	return &testEnv{
		st:       st,
		msg:      msg,
		coord:    coord,
		commands: NewCommandHandler(machine, roster, coord, cfg),
		dms:      NewDirectMessageHandler(coord),
	}
}

// command posts a command through the handler and returns the decoded reply
func (e *testEnv) command(t *testing.T, name string, req models.CommandRequest) models.CommandResponse {
	t.Helper()

	r := testutil.MakeRequest("POST", "/commands/"+name, req)
	r.SetPathValue("name", name)
	w := httptest.NewRecorder()
	e.commands.Handle(w, r)

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.CommandResponse
	testutil.AssertJSON(t, w, &resp)
	return resp
}

func (e *testEnv) directMessage(t *testing.T, req models.DirectMessageRequest) string {
	t.Helper()

	r := testutil.MakeRequest("POST", "/events/direct-message", req)
	w := httptest.NewRecorder()
	e.dms.Handle(w, r)

	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.DirectMessageResponse
	testutil.AssertJSON(t, w, &resp)
	return resp.Reply
}

func member(id string) models.CommandRequest {
	return models.CommandRequest{MemberID: id, DisplayName: "Member " + id}
}

func admin(id string) models.CommandRequest {
	req := member(id)
	req.Admin = true
	return req
}

func assertReply(t *testing.T, got models.CommandResponse, want string) {
	t.Helper()
	if !strings.Contains(got.Reply, want) {
		t.Errorf("Expected reply containing %q, got %q", want, got.Reply)
	}
}
