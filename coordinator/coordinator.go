// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/circle-sketch/circle"
	"github.com/danielhkuo/circle-sketch/gallery"
	"github.com/danielhkuo/circle-sketch/messenger"
	"github.com/danielhkuo/circle-sketch/models"
	"github.com/danielhkuo/circle-sketch/rounds"
)

const (
	// DefaultOpenDelay separates the scheduled close from the next open.
	DefaultOpenDelay = 10 * time.Second

	// DefaultFanout bounds concurrent deliveries per notification.
	DefaultFanout = 4

	// fireTTL outlives any retry of the same daily slot.
	fireTTL = 6 * time.Hour

	// notifyTimeout bounds one notification, downloads and renders included.
	notifyTimeout = 2 * time.Minute
)

// OutcomeDuplicateFire is returned when a scheduled trigger already ran
// for the current slot.
const OutcomeDuplicateFire rounds.Outcome = "duplicate_fire"

type Config struct {
	ChannelID string
	CloseAt   rounds.Daily
	OpenDelay time.Duration
	Fanout    int
}

// Coordinator routes manual, scheduled and bootstrap triggers into the
// round machine and delivers the resulting notifications. It never caches
// round state; every decision is made by the machine against the store.
type Coordinator struct {
	machine   *rounds.Machine
	roster    *circle.Manager
	msg       messenger.Messenger
	render    *gallery.Renderer
	artifacts *gallery.Artifacts
	guard     FireGuard
	cfg       Config
	now       func() time.Time

	// order is held from a trigger's commit until its notification is
	// queued, so the queue follows commit order.
	order sync.Mutex
	// tail is closed when the last queued notification finishes.
	tail     chan struct{}
	inflight sync.WaitGroup
}

func New(
	machine *rounds.Machine,
	roster *circle.Manager,
	msg messenger.Messenger,
	render *gallery.Renderer,
	artifacts *gallery.Artifacts,
	guard FireGuard,
	cfg Config,
) *Coordinator {
	if cfg.OpenDelay <= 0 {
		cfg.OpenDelay = DefaultOpenDelay
	}
	if cfg.Fanout <= 0 {
		cfg.Fanout = DefaultFanout
	}
	if guard == nil {
		guard = NewMemoryGuard()
	}
	return &Coordinator{
		machine:   machine,
		roster:    roster,
		msg:       msg,
		render:    render,
		artifacts: artifacts,
		guard:     guard,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetClock replaces the time source used for fire slots.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// StartManual opens a round on behalf of starterID.
func (c *Coordinator) StartManual(ctx context.Context, starterID string) (rounds.OpenResult, error) {
	c.order.Lock()
	defer c.order.Unlock()

	res, err := c.machine.OpenRound(ctx, rounds.OpenRequest{
		Trigger:   models.TriggerManual,
		StarterID: starterID,
	})
	if err != nil {
		return res, err
	}
	if res.Outcome == rounds.OutcomeOpened {
		c.announceOpen(res)
	}
	return res, nil
}

// EndManual closes the open round if callerID started it or is an
// administrator.
func (c *Coordinator) EndManual(ctx context.Context, callerID string, admin bool) (rounds.CloseResult, error) {
	c.order.Lock()
	defer c.order.Unlock()

	res, err := c.machine.CloseRound(ctx, func(round *models.Round) bool {
		return admin || (round.StarterID != "" && round.StarterID == callerID)
	})
	if err != nil {
		return res, err
	}
	if res.Outcome == rounds.OutcomeClosed {
		c.reveal(res.Summary)
	}
	return res, nil
}

// ScheduledClose closes whatever round is open, manual rounds included.
// Duplicate fires for the same day are dropped.
func (c *Coordinator) ScheduledClose(ctx context.Context) (rounds.CloseResult, error) {
	if !c.claim(ctx, "close") {
		return rounds.CloseResult{Outcome: OutcomeDuplicateFire}, nil
	}
	c.order.Lock()
	defer c.order.Unlock()

	res, err := c.machine.CloseRound(ctx, nil)
	if err != nil {
		return res, err
	}
	if res.Outcome == rounds.OutcomeClosed {
		c.reveal(res.Summary)
	}
	return res, nil
}

// ScheduledOpen opens the daily round. Duplicate fires for the same day
// are dropped.
func (c *Coordinator) ScheduledOpen(ctx context.Context) (rounds.OpenResult, error) {
	if !c.claim(ctx, "open") {
		return rounds.OpenResult{Outcome: OutcomeDuplicateFire}, nil
	}
	c.order.Lock()
	defer c.order.Unlock()

	res, err := c.machine.OpenRound(ctx, rounds.OpenRequest{Trigger: models.TriggerScheduled})
	if err != nil {
		return res, err
	}
	if res.Outcome == rounds.OutcomeOpened {
		c.announceOpen(res)
	}
	return res, nil
}

// Bootstrap opens the very first round immediately instead of waiting
// for the schedule. Once it has succeeded it never opens again.
func (c *Coordinator) Bootstrap(ctx context.Context) (rounds.OpenResult, error) {
	c.order.Lock()
	defer c.order.Unlock()

	res, err := c.machine.OpenRound(ctx, rounds.OpenRequest{Trigger: models.TriggerBootstrap})
	if err != nil {
		return res, err
	}
	slog.Info("bootstrap checked", "outcome", res.Outcome)
	if res.Outcome == rounds.OutcomeOpened {
		c.announceOpen(res)
	}
	return res, nil
}

// Join adds the member to the circle, announces it and DMs the theme to
// late joiners.
func (c *Coordinator) Join(ctx context.Context, memberID string) (circle.JoinResult, error) {
	c.order.Lock()
	defer c.order.Unlock()

	res, err := c.roster.Join(ctx, memberID)
	if err != nil {
		return res, err
	}
	if res.Outcome != circle.OutcomeJoined {
		return res, nil
	}

	theme := res.Theme
	c.dispatch("join", func(ctx context.Context) error {
		if err := c.msg.Send(ctx, c.cfg.ChannelID, joinAnnouncement(memberID), "", nil); err != nil {
			slog.Error("failed to announce join", "member_id", memberID, "error", err)
		}
		if theme == "" {
			return nil
		}
		return c.msg.SendDM(ctx, memberID, lateJoinDM(theme))
	})
	return res, nil
}

// Submit records a drawing, caches it and tells the channel.
func (c *Coordinator) Submit(ctx context.Context, memberID, imageRef string) (rounds.SubmitResult, error) {
	c.order.Lock()
	defer c.order.Unlock()

	res, err := c.machine.Submit(ctx, memberID, imageRef)
	if err != nil {
		return res, err
	}
	if res.Outcome != rounds.OutcomeAccepted {
		return res, nil
	}

	roundID := res.RoundID
	c.dispatch("submission", func(ctx context.Context) error {
		if c.artifacts != nil {
			if _, err := c.artifacts.Save(ctx, roundID, memberID, imageRef); err != nil {
				slog.Warn("failed to cache submission", "member_id", memberID, "error", err)
			}
		}
		return c.msg.Send(ctx, c.cfg.ChannelID, submissionAnnouncement(memberID), "", nil)
	})
	return res, nil
}

// Run bootstraps, then fires the daily close and open until ctx is done.
// It waits for in-flight notifications before returning.
func (c *Coordinator) Run(ctx context.Context) error {
	if _, err := c.Bootstrap(ctx); err != nil {
		slog.Error("bootstrap failed", "error", err)
	}

	sched := cron.NewWithLocation(c.cfg.CloseAt.Location)
	closeSpec := c.cfg.CloseAt.Spec(0)
	openSpec := c.cfg.CloseAt.Spec(c.cfg.OpenDelay)

	err := sched.AddFunc(closeSpec, func() {
		if _, err := c.ScheduledClose(ctx); err != nil {
			slog.Error("scheduled close failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid close schedule %q: %w", closeSpec, err)
	}
	err = sched.AddFunc(openSpec, func() {
		if _, err := c.ScheduledOpen(ctx); err != nil {
			slog.Error("scheduled open failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid open schedule %q: %w", openSpec, err)
	}

	sched.Start()
	slog.Info("scheduler started", "close", closeSpec, "open", openSpec, "location", c.cfg.CloseAt.Location.String())

	<-ctx.Done()
	sched.Stop()
	c.Wait()
	return nil
}

// Wait blocks until every dispatched notification has finished.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

func (c *Coordinator) claim(ctx context.Context, kind string) bool {
	slot := c.now().In(c.cfg.CloseAt.Location).Format(models.DateLayout)
	key := kind + ":" + slot
	ok, err := c.guard.Claim(ctx, key, fireTTL)
	if err != nil {
		// fall through; the machine still rejects a second open or close
		slog.Warn("fire guard unavailable", "key", key, "error", err)
		return true
	}
	if !ok {
		slog.Info("duplicate scheduled fire dropped", "key", key)
	}
	return ok
}

// dispatch queues fn after the triggering transaction has committed.
// Queued notifications run one at a time in the order they were queued,
// detached from the caller's context; failures are only logged. Callers
// hold c.order.
func (c *Coordinator) dispatch(kind string, fn func(ctx context.Context) error) {
	prev, done := c.tail, make(chan struct{})
	c.tail = done

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			slog.Error("notification failed", "kind", kind, "error", err)
		}
	}()
}

// fanout runs fn for every member with bounded concurrency. A failure for
// one member is logged and never stops the others.
func (c *Coordinator) fanout(ctx context.Context, kind string, members []string, fn func(ctx context.Context, memberID string) error) {
	var g errgroup.Group
	g.SetLimit(c.cfg.Fanout)
	for _, id := range members {
		g.Go(func() error {
			if err := fn(ctx, id); err != nil {
				slog.Error("delivery failed", "kind", kind, "member_id", id, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

func (c *Coordinator) announceOpen(res rounds.OpenResult) {
	round := res.Round
	streak := res.GroupStreak

	c.dispatch("open", func(ctx context.Context) error {
		if streak > 0 {
			if err := c.msg.Send(ctx, c.cfg.ChannelID, streakAnnouncement(streak), "", nil); err != nil {
				slog.Error("failed to announce streak", "error", err)
			}
		}

		banner, err := c.render.Announcement(round.Theme)
		if err != nil {
			slog.Error("failed to render announcement", "round_id", round.ID, "error", err)
			err = c.msg.Send(ctx, c.cfg.ChannelID, openAnnouncement+" Theme: **"+round.Theme+"**", "", nil)
		} else {
			err = c.msg.Send(ctx, c.cfg.ChannelID, openAnnouncement, "theme.png", banner)
		}
		if err != nil {
			slog.Error("failed to announce round", "round_id", round.ID, "error", err)
		}

		c.fanout(ctx, "theme", round.Participants, func(ctx context.Context, memberID string) error {
			return c.msg.SendDM(ctx, memberID, themeDM(round.Theme))
		})
		return nil
	})
}

func (c *Coordinator) reveal(summary *models.Summary) {
	c.dispatch("reveal", func(ctx context.Context) error {
		if summary.Empty {
			return c.msg.Send(ctx, c.cfg.ChannelID, emptyReveal(summary), "", nil)
		}

		if err := c.msg.Send(ctx, c.cfg.ChannelID, galleryHeader(summary), "", nil); err != nil {
			slog.Error("failed to post gallery header", "round_id", summary.RoundID, "error", err)
		}

		// render in parallel, post in entry order
		cards := make([][]byte, len(summary.Entries))
		ids := make([]string, len(summary.Entries))
		for i, e := range summary.Entries {
			ids[i] = e.MemberID
		}
		var g errgroup.Group
		g.SetLimit(c.cfg.Fanout)
		for i, entry := range summary.Entries {
			g.Go(func() error {
				card, err := c.card(ctx, summary, entry)
				if err != nil {
					slog.Error("failed to render card", "member_id", entry.MemberID, "error", err)
					return nil
				}
				cards[i] = card
				return nil
			})
		}
		g.Wait()

		for i, card := range cards {
			var err error
			if card == nil {
				err = c.msg.Send(ctx, c.cfg.ChannelID, cardFailure(ids[i]), "", nil)
			} else {
				err = c.msg.Send(ctx, c.cfg.ChannelID, "", "gallery_"+ids[i]+".png", card)
			}
			if err != nil {
				slog.Error("failed to post card", "member_id", ids[i], "error", err)
			}
		}

		if c.artifacts != nil {
			if err := c.artifacts.Clear(summary.RoundID); err != nil {
				slog.Warn("failed to clear artifacts", "round_id", summary.RoundID, "error", err)
			}
		}
		return nil
	})
}

func (c *Coordinator) card(ctx context.Context, summary *models.Summary, entry models.Submission) ([]byte, error) {
	drawing, err := c.drawing(ctx, summary.RoundID, entry)
	if err != nil {
		return nil, err
	}

	member, err := c.msg.LookupMember(ctx, entry.MemberID)
	if err != nil {
		slog.Warn("member lookup failed", "member_id", entry.MemberID, "error", err)
		member = models.Member{ID: entry.MemberID, DisplayName: entry.MemberID}
	}

	var avatar []byte
	if member.AvatarURL != "" && c.artifacts != nil {
		if avatar, err = c.artifacts.Fetch(ctx, member.AvatarURL); err != nil {
			slog.Warn("avatar download failed", "member_id", entry.MemberID, "error", err)
			avatar = nil
		}
	}

	return c.render.Card(gallery.Card{
		Theme:   summary.Theme,
		Date:    summary.Date,
		Author:  member.DisplayName,
		Avatar:  avatar,
		Drawing: drawing,
	})
}

// drawing prefers the cached copy and falls back to the original URL.
func (c *Coordinator) drawing(ctx context.Context, roundID string, entry models.Submission) ([]byte, error) {
	if c.artifacts == nil {
		return nil, fmt.Errorf("no artifact store to fetch %s", entry.ImageRef)
	}
	if data, err := c.artifacts.Load(roundID, entry.MemberID); err == nil {
		return data, nil
	}
	return c.artifacts.Fetch(ctx, entry.ImageRef)
}
