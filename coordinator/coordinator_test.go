// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package coordinator_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/circle-sketch/circle"
	"github.com/danielhkuo/circle-sketch/coordinator"
	"github.com/danielhkuo/circle-sketch/gallery"
	"github.com/danielhkuo/circle-sketch/rounds"
	"github.com/danielhkuo/circle-sketch/store"
	"github.com/danielhkuo/circle-sketch/testutil"
)

type harness struct {
	st        store.Store
	machine   *rounds.Machine
	coord     *coordinator.Coordinator
	msg       *testutil.FakeMessenger
	artifacts *gallery.Artifacts
	images    *httptest.Server
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.SetNRGBA(x, y, color.NRGBA{200, 30, 30, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	drawing := pngBytes(t)
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".png") {
			w.Write(drawing)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(images.Close)

	st := testutil.SetupTestStore(t)
	pool, err := rounds.NewPool([]string{"Paper Boat"})
	if err != nil {
		t.Fatal(err)
	}
	loc, _ := time.LoadLocation("America/New_York")
	closeAt, err := rounds.ParseDaily("17:00", loc)
	if err != nil {
		t.Fatal(err)
	}
	machine := rounds.NewMachine(st, pool, closeAt)
	renderer, err := gallery.NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	artifacts, err := gallery.NewArtifacts(filepath.Join(t.TempDir(), "artifacts"))
	if err != nil {
		t.Fatal(err)
	}
	msg := &testutil.FakeMessenger{}

	coord := coordinator.New(machine, circle.NewManager(st, 10), msg, renderer, artifacts, coordinator.NewMemoryGuard(), coordinator.Config{
		ChannelID: "game",
		CloseAt:   closeAt,
	})
	t.Cleanup(coord.Wait)

	return &harness{st: st, machine: machine, coord: coord, msg: msg, artifacts: artifacts, images: images}
}

func TestBootstrap_OpensOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedRoster(t, h.st, "A", "B")

	res, err := h.coord.Bootstrap(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != rounds.OutcomeOpened {
		t.Fatalf("expected opened, got %s", res.Outcome)
	}
	h.coord.Wait()

	for _, id := range []string{"A", "B"} {
		dms := h.msg.DMsTo(id)
		if len(dms) != 1 || !strings.Contains(dms[0], "Paper Boat") {
			t.Errorf("%s should get the theme by DM, got %v", id, dms)
		}
	}
	posts := h.msg.ChannelPosts()
	if len(posts) != 1 || posts[0].Filename != "theme.png" || len(posts[0].File) == 0 {
		t.Fatalf("expected one announcement with the banner, got %+v", posts)
	}
	if _, err := png.Decode(bytes.NewReader(posts[0].File)); err != nil {
		t.Errorf("banner is not a PNG: %v", err)
	}

	res, err = h.coord.Bootstrap(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != rounds.OutcomeBootstrapDone {
		t.Errorf("expected bootstrap_done, got %s", res.Outcome)
	}
}

func TestEndManual_Authorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedRoster(t, h.st, "A", "B")

	if res, err := h.coord.StartManual(ctx, "A"); err != nil || res.Outcome != rounds.OutcomeOpened {
		t.Fatalf("StartManual: %v %v", res.Outcome, err)
	}
	if res, _ := h.coord.StartManual(ctx, "B"); res.Outcome != rounds.OutcomeAlreadyRunning {
		t.Errorf("second start should be already_running, got %s", res.Outcome)
	}

	res, err := h.coord.EndManual(ctx, "B", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != rounds.OutcomeUnauthorized {
		t.Fatalf("expected unauthorized, got %s", res.Outcome)
	}

	res, err = h.coord.EndManual(ctx, "B", true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != rounds.OutcomeClosed {
		t.Fatalf("admin should close, got %s", res.Outcome)
	}
	h.coord.Wait()

	posts := h.msg.ChannelPosts()
	if len(posts) != 2 || posts[0].Filename != "theme.png" {
		t.Fatalf("expected announcement then reveal, got %+v", posts)
	}
	if !strings.Contains(posts[1].Text, "No submissions") || !strings.Contains(posts[1].Text, "Paper Boat") {
		t.Errorf("expected empty reveal, got %q", posts[1].Text)
	}
}

func TestBootstrap_SkippedAfterAnyRound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.coord.Bootstrap(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != rounds.OutcomeNoPlayers {
		t.Fatalf("expected no_players, got %s", res.Outcome)
	}

	testutil.SeedRoster(t, h.st, "A")
	if res, _ := h.coord.ScheduledOpen(ctx); res.Outcome != rounds.OutcomeOpened {
		t.Fatalf("expected opened, got %s", res.Outcome)
	}
	if res, _ := h.coord.EndManual(ctx, "Z", true); res.Outcome != rounds.OutcomeClosed {
		t.Fatalf("expected closed, got %s", res.Outcome)
	}

	// a restart in the idle window must wait for the schedule
	res, err = h.coord.Bootstrap(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != rounds.OutcomeBootstrapDone {
		t.Errorf("expected bootstrap_done, got %s", res.Outcome)
	}
	if round := testutil.LoadRound(t, h.st); round != nil {
		t.Errorf("bootstrap opened an off-schedule round: %+v", round)
	}
}

func TestNotifications_PostInCommitOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.msg.SendDelay = 20 * time.Millisecond
	testutil.SeedRoster(t, h.st, "A")

	err := h.st.Atomic(ctx, func(tx store.Tx) error { return tx.SetGroupStreak(2) }, store.UnitRound)
	if err != nil {
		t.Fatal(err)
	}

	// nothing waits between triggers, so every post is still queued
	h.coord.StartManual(ctx, "A")
	h.coord.Submit(ctx, "A", h.images.URL+"/a.png")
	h.coord.EndManual(ctx, "A", false)
	h.coord.StartManual(ctx, "A")
	h.coord.Wait()

	var got []string
	for _, p := range h.msg.ChannelPosts() {
		switch {
		case p.Filename == "theme.png":
			got = append(got, "banner")
		case strings.Contains(p.Text, "day streak"):
			got = append(got, "streak")
		case strings.Contains(p.Text, "has submitted"):
			got = append(got, "submitted")
		case strings.HasPrefix(p.Filename, "gallery_"):
			got = append(got, "card")
		default:
			got = append(got, "header")
		}
	}
	want := []string{"streak", "banner", "submitted", "header", "card", "streak", "banner"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("posts out of order:\n got %v\nwant %v", got, want)
	}
}

func TestEndManual_StarterCloses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedRoster(t, h.st, "A")

	h.coord.StartManual(ctx, "A")
	res, err := h.coord.EndManual(ctx, "A", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != rounds.OutcomeClosed {
		t.Errorf("starter should close, got %s", res.Outcome)
	}

	if res, _ := h.coord.EndManual(ctx, "A", false); res.Outcome != rounds.OutcomeNoActiveRound {
		t.Errorf("expected no_active_round, got %s", res.Outcome)
	}
}

func TestEndManual_ScheduledRoundNeedsAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedRoster(t, h.st, "A")

	h.coord.ScheduledOpen(ctx)
	if res, _ := h.coord.EndManual(ctx, "A", false); res.Outcome != rounds.OutcomeUnauthorized {
		t.Errorf("non-admin should not end a scheduled round, got %s", res.Outcome)
	}
}

func TestScheduledClose_EndsManualRound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedRoster(t, h.st, "A", "B")

	h.coord.StartManual(ctx, "A")
	res, err := h.coord.ScheduledClose(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != rounds.OutcomeClosed {
		t.Fatalf("scheduled close should end a manual round, got %s", res.Outcome)
	}
	if round := testutil.LoadRound(t, h.st); round != nil {
		t.Errorf("round should be idle, got %+v", round)
	}
}

func TestScheduledFires_DuplicatesDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedRoster(t, h.st, "A")

	now := time.Date(2025, 7, 7, 21, 0, 10, 0, time.UTC)
	h.coord.SetClock(func() time.Time { return now })

	first, err := h.coord.ScheduledOpen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Outcome != rounds.OutcomeOpened {
		t.Fatalf("expected opened, got %s", first.Outcome)
	}
	second, _ := h.coord.ScheduledOpen(ctx)
	if second.Outcome != coordinator.OutcomeDuplicateFire {
		t.Errorf("expected duplicate_fire, got %s", second.Outcome)
	}

	closed, _ := h.coord.ScheduledClose(ctx)
	if closed.Outcome != rounds.OutcomeClosed {
		t.Fatalf("expected closed, got %s", closed.Outcome)
	}
	again, _ := h.coord.ScheduledClose(ctx)
	if again.Outcome != coordinator.OutcomeDuplicateFire {
		t.Errorf("expected duplicate_fire, got %s", again.Outcome)
	}

	// next day's slot is free again
	now = now.Add(24 * time.Hour)
	next, _ := h.coord.ScheduledOpen(ctx)
	if next.Outcome != rounds.OutcomeOpened {
		t.Errorf("next day should open, got %s", next.Outcome)
	}
}

func TestSubmitAndReveal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedRoster(t, h.st, "A", "B")

	h.coord.ScheduledOpen(ctx)
	h.coord.Wait()
	res, err := h.coord.Submit(ctx, "A", h.images.URL+"/a.png")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != rounds.OutcomeAccepted || res.RoundID == "" {
		t.Fatalf("expected accepted, got %s", res.Outcome)
	}
	h.coord.Wait()

	if _, err := h.artifacts.Load(res.RoundID, "A"); err != nil {
		t.Errorf("accepted submission should be cached: %v", err)
	}
	posts := h.msg.ChannelPosts()
	if !strings.Contains(posts[len(posts)-1].Text, "<@A> has submitted") {
		t.Errorf("expected submission announcement, got %q", posts[len(posts)-1].Text)
	}

	before := len(posts)
	if _, err := h.coord.ScheduledClose(ctx); err != nil {
		t.Fatal(err)
	}
	h.coord.Wait()

	reveal := h.msg.ChannelPosts()[before:]
	if len(reveal) != 2 {
		t.Fatalf("expected header and one card, got %d posts", len(reveal))
	}
	if !strings.Contains(reveal[0].Text, "Current group streak: 1") || !strings.Contains(reveal[0].Text, "<@A>: 1🔥") || !strings.Contains(reveal[0].Text, "<@B>: 0") {
		t.Errorf("unexpected gallery header: %q", reveal[0].Text)
	}
	if reveal[1].Filename != "gallery_A.png" {
		t.Errorf("unexpected card filename %q", reveal[1].Filename)
	}
	if _, err := png.Decode(bytes.NewReader(reveal[1].File)); err != nil {
		t.Errorf("card is not a PNG: %v", err)
	}

	if _, err := h.artifacts.Load(res.RoundID, "A"); err == nil {
		t.Error("artifacts should be cleared after the reveal")
	}
}

func TestReveal_UnreachableImageStillPosts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedRoster(t, h.st, "A")

	h.coord.ScheduledOpen(ctx)
	h.coord.Submit(ctx, "A", h.images.URL+"/gone.jpg")
	h.coord.Wait()

	before := len(h.msg.ChannelPosts())
	h.coord.ScheduledClose(ctx)
	h.coord.Wait()

	reveal := h.msg.ChannelPosts()[before:]
	if len(reveal) != 2 || !strings.Contains(reveal[1].Text, "Failed to generate gallery image for <@A>") {
		t.Errorf("expected a failure notice for the card, got %+v", reveal)
	}
}

func TestNotificationFailuresAreIsolated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.msg.FailDMs = []string{"B"}
	testutil.SeedRoster(t, h.st, "A", "B", "C")

	res, err := h.coord.StartManual(ctx, "A")
	if err != nil || res.Outcome != rounds.OutcomeOpened {
		t.Fatalf("open should succeed despite delivery failures: %v %v", res.Outcome, err)
	}
	h.coord.Wait()

	if len(h.msg.DMsTo("A")) != 1 || len(h.msg.DMsTo("C")) != 1 {
		t.Error("reachable members should still be notified")
	}
	if testutil.LoadRound(t, h.st) == nil {
		t.Error("round must stay open when a DM fails")
	}
}

func TestStreakAnnouncedBeforeTheme(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedRoster(t, h.st, "A")

	err := h.st.Atomic(ctx, func(tx store.Tx) error { return tx.SetGroupStreak(3) }, store.UnitRound)
	if err != nil {
		t.Fatal(err)
	}

	h.coord.ScheduledOpen(ctx)
	h.coord.Wait()

	posts := h.msg.ChannelPosts()
	if len(posts) != 2 {
		t.Fatalf("expected streak post and announcement, got %+v", posts)
	}
	if !strings.Contains(posts[0].Text, "3 day streak") || posts[1].Filename != "theme.png" {
		t.Errorf("unexpected order: %q then %q", posts[0].Text, posts[1].Filename)
	}
}

func TestJoin_LateJoinerGetsTheme(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedRoster(t, h.st, "A")
	h.coord.ScheduledOpen(ctx)
	h.coord.Wait()

	res, err := h.coord.Join(ctx, "B")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != circle.OutcomeJoined {
		t.Fatalf("expected joined, got %s", res.Outcome)
	}
	h.coord.Wait()

	dms := h.msg.DMsTo("B")
	if len(dms) != 1 || !strings.Contains(dms[0], "Paper Boat") {
		t.Errorf("late joiner should get the theme, got %v", dms)
	}
	if sub, _ := h.coord.Submit(ctx, "B", h.images.URL+"/b.png"); sub.Outcome != rounds.OutcomeAccepted {
		t.Errorf("late joiner should be able to submit, got %s", sub.Outcome)
	}
}

func TestRun_BootstrapsAndStops(t *testing.T) {
	h := newHarness(t)
	testutil.SeedRoster(t, h.st, "A")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.coord.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for testutil.LoadRound(t, h.st) == nil {
		if time.Now().After(deadline) {
			t.Fatal("bootstrap did not open a round")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestMemoryGuard(t *testing.T) {
	g := coordinator.NewMemoryGuard()
	ctx := context.Background()

	ok, _ := g.Claim(ctx, "open:2025-07-07", time.Hour)
	if !ok {
		t.Fatal("first claim should succeed")
	}
	ok, _ = g.Claim(ctx, "open:2025-07-07", time.Hour)
	if ok {
		t.Error("second claim should be dropped")
	}
	ok, _ = g.Claim(ctx, "close:2025-07-07", time.Hour)
	if !ok {
		t.Error("different key should succeed")
	}
	ok, _ = g.Claim(ctx, "short", 0)
	if !ok {
		t.Error("zero ttl claim should succeed")
	}
	ok, _ = g.Claim(ctx, "short", 0)
	if !ok {
		t.Error("expired claim should be reusable")
	}
}
