// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rounds

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/circle-sketch/models"
	"github.com/danielhkuo/circle-sketch/store"
)

// Outcome tags the result of a state machine operation. Expected
// conditions are outcomes; only storage faults are returned as errors.
type Outcome string

const (
	OutcomeOpened         Outcome = "opened"
	OutcomeAlreadyRunning Outcome = "already_running"
	OutcomeNoPlayers      Outcome = "no_players"
	OutcomeBootstrapDone  Outcome = "bootstrap_done"

	OutcomeAccepted         Outcome = "accepted"
	OutcomeNoActiveRound    Outcome = "no_active_round"
	OutcomeNotParticipant   Outcome = "not_participant"
	OutcomeAlreadySubmitted Outcome = "already_submitted"
	OutcomeNoAttachment     Outcome = "no_attachment"

	OutcomeClosed       Outcome = "closed"
	OutcomeUnauthorized Outcome = "unauthorized"

	OutcomeInfo Outcome = "info"
)

// OpenRequest describes how a round is being opened.
type OpenRequest struct {
	Trigger string
	// Participants overrides the roster snapshot when non-nil.
	Participants []string
	// StarterID is recorded for manual rounds only.
	StarterID string
}

type OpenResult struct {
	Outcome Outcome
	Round   *models.Round
	// GroupStreak is the streak the new round continues.
	GroupStreak int
}

type SubmitResult struct {
	Outcome    Outcome
	RoundID    string
	Theme      string
	Submission models.Submission
}

type CloseResult struct {
	Outcome Outcome
	Summary *models.Summary
}

type StatusResult struct {
	Outcome      Outcome
	Round        *models.Round
	Participants int
	Submissions  int
	NextClose    time.Time
	UntilClose   time.Duration
}

// StreakBoard is what show_streaks displays.
type StreakBoard struct {
	Group     int
	RoundOpen bool
	Members   []models.MemberStreak
}

// Authorizer decides whether a close may proceed for the given round.
// A nil Authorizer allows every close.
type Authorizer func(round *models.Round) bool

// Machine runs round transitions against the store. It keeps no state
// between calls; every decision rereads the store inside the transaction
// that applies it.
type Machine struct {
	store   store.Store
	pool    *Pool
	closeAt Daily
	now     func() time.Time
}

func NewMachine(st store.Store, pool *Pool, closeAt Daily) *Machine {
	return &Machine{
		store:   st,
		pool:    pool,
		closeAt: closeAt,
		now:     time.Now,
	}
}

// SetClock replaces the time source.
func (m *Machine) SetClock(now func() time.Time) {
	m.now = now
}

// OpenRound starts a round if none is running.
func (m *Machine) OpenRound(ctx context.Context, req OpenRequest) (OpenResult, error) {
	var res OpenResult

	err := m.store.Atomic(ctx, func(tx store.Tx) error {
		res = OpenResult{}

		if req.Trigger == models.TriggerBootstrap {
			started, err := tx.BootstrapFlag()
			if err != nil {
				return err
			}
			if started {
				res.Outcome = OutcomeBootstrapDone
				return nil
			}
		}

		current, err := tx.Round()
		if err != nil {
			return err
		}
		if current.IsOpen() {
			res.Outcome = OutcomeAlreadyRunning
			res.Round = current
			if req.Trigger == models.TriggerBootstrap {
				// a round is already live; nothing left to bootstrap
				return tx.SetBootstrapFlag(true)
			}
			return nil
		}

		participants := req.Participants
		if participants == nil {
			if participants, err = tx.Roster(); err != nil {
				return err
			}
		}
		participants = dedupe(participants)
		if len(participants) == 0 {
			res.Outcome = OutcomeNoPlayers
			return nil
		}

		now := m.now()
		round := &models.Round{
			ID:           uuid.NewString(),
			Theme:        m.pool.Pick(),
			Date:         now.In(m.closeAt.Location).Format(models.DateLayout),
			OpenedAt:     now,
			Trigger:      req.Trigger,
			Participants: participants,
			Submissions:  []models.Submission{},
		}
		if req.Trigger == models.TriggerManual {
			round.StarterID = req.StarterID
		}
		if err := tx.SetRound(round); err != nil {
			return err
		}
		// any successful open counts as the first round having run
		if err := tx.SetBootstrapFlag(true); err != nil {
			return err
		}

		if res.GroupStreak, err = tx.GroupStreak(); err != nil {
			return err
		}
		res.Outcome = OutcomeOpened
		res.Round = round
		return nil
	}, store.UnitRoster, store.UnitRound)
	if err != nil {
		return OpenResult{}, err
	}

	if res.Outcome == OutcomeOpened {
		slog.Info("round opened",
			"round_id", res.Round.ID,
			"theme", res.Round.Theme,
			"trigger", res.Round.Trigger,
			"participants", len(res.Round.Participants),
		)
	}
	return res, nil
}

// Submit records a participant's image. Preconditions are checked in a
// fixed order and the first failing one is reported.
func (m *Machine) Submit(ctx context.Context, memberID, imageRef string) (SubmitResult, error) {
	var res SubmitResult

	err := m.store.Atomic(ctx, func(tx store.Tx) error {
		res = SubmitResult{}

		round, err := tx.Round()
		if err != nil {
			return err
		}
		switch {
		case !round.IsOpen():
			res.Outcome = OutcomeNoActiveRound
			return nil
		case !round.IsParticipant(memberID):
			res.Outcome = OutcomeNotParticipant
			return nil
		}
		res.RoundID = round.ID
		res.Theme = round.Theme
		if existing, ok := round.Submission(memberID); ok {
			res.Outcome = OutcomeAlreadySubmitted
			res.Submission = existing
			return nil
		}
		if imageRef == "" {
			res.Outcome = OutcomeNoAttachment
			return nil
		}

		sub := models.Submission{MemberID: memberID, ImageRef: imageRef, SubmittedAt: m.now()}
		round.Submissions = append(round.Submissions, sub)
		if err := tx.SetRound(round); err != nil {
			return err
		}
		res.Outcome = OutcomeAccepted
		res.Submission = sub
		return nil
	}, store.UnitRound)
	if err != nil {
		return SubmitResult{}, err
	}

	if res.Outcome == OutcomeAccepted {
		slog.Info("submission accepted", "member_id", memberID)
	}
	return res, nil
}

// CloseRound settles streaks and clears the round in one transaction, so
// a close either happens completely or not at all.
func (m *Machine) CloseRound(ctx context.Context, authorize Authorizer) (CloseResult, error) {
	var res CloseResult

	err := m.store.Atomic(ctx, func(tx store.Tx) error {
		res = CloseResult{}

		round, err := tx.Round()
		if err != nil {
			return err
		}
		if !round.IsOpen() {
			res.Outcome = OutcomeNoActiveRound
			return nil
		}
		if authorize != nil && !authorize(round) {
			res.Outcome = OutcomeUnauthorized
			return nil
		}

		summary, err := settleStreaks(tx, round)
		if err != nil {
			return err
		}
		if err := tx.SetRound(nil); err != nil {
			return err
		}

		res.Outcome = OutcomeClosed
		res.Summary = summary
		return nil
	}, store.UnitRound)
	if err != nil {
		return CloseResult{}, err
	}

	if res.Outcome == OutcomeClosed {
		slog.Info("round closed",
			"round_id", res.Summary.RoundID,
			"entries", len(res.Summary.Entries),
			"group_streak", res.Summary.Streak,
		)
	}
	return res, nil
}

func settleStreaks(tx store.Tx, round *models.Round) (*models.Summary, error) {
	previous, err := tx.GroupStreak()
	if err != nil {
		return nil, err
	}

	summary := &models.Summary{
		RoundID:  round.ID,
		Theme:    round.Theme,
		Date:     round.Date,
		Previous: previous,
		Streaks:  []models.MemberStreak{},
		Entries:  slices.Clone(round.Submissions),
	}
	if summary.Entries == nil {
		summary.Entries = []models.Submission{}
	}

	submitted := round.Entries()
	if len(submitted) == 0 {
		summary.Empty = true
		summary.Streak = 0
	} else {
		summary.Streak = previous + 1
	}
	if err := tx.SetGroupStreak(summary.Streak); err != nil {
		return nil, err
	}

	for _, id := range dedupe(round.Participants) {
		next := 0
		if _, ok := submitted[id]; ok {
			current, err := tx.MemberStreak(id)
			if err != nil {
				return nil, err
			}
			next = current + 1
		}
		if err := tx.SetMemberStreak(id, next); err != nil {
			return nil, err
		}
		summary.Streaks = append(summary.Streaks, models.MemberStreak{MemberID: id, Streak: next})
	}
	return summary, nil
}

// Status reports the open round, if any, and the time left until the next
// scheduled close.
func (m *Machine) Status(ctx context.Context) (StatusResult, error) {
	var res StatusResult

	err := m.store.View(ctx, func(tx store.Tx) error {
		round, err := tx.Round()
		if err != nil {
			return err
		}
		if !round.IsOpen() {
			res = StatusResult{Outcome: OutcomeNoActiveRound}
			return nil
		}

		now := m.now()
		next := m.closeAt.Next(now)
		res = StatusResult{
			Outcome:      OutcomeInfo,
			Round:        round,
			Participants: len(round.Participants),
			Submissions:  len(round.Submissions),
			NextClose:    next,
			UntilClose:   next.Sub(now),
		}
		return nil
	})
	if err != nil {
		return StatusResult{}, err
	}
	return res, nil
}

// Streaks returns the group streak and, while a round is open, its
// participants' streaks; otherwise every stored member streak.
func (m *Machine) Streaks(ctx context.Context) (StreakBoard, error) {
	var board StreakBoard

	err := m.store.View(ctx, func(tx store.Tx) error {
		group, err := tx.GroupStreak()
		if err != nil {
			return err
		}
		board = StreakBoard{Group: group, Members: []models.MemberStreak{}}

		round, err := tx.Round()
		if err != nil {
			return err
		}
		if !round.IsOpen() || len(round.Participants) == 0 {
			board.Members, err = tx.MemberStreaks()
			return err
		}

		board.RoundOpen = true
		for _, id := range round.Participants {
			n, err := tx.MemberStreak(id)
			if err != nil {
				return err
			}
			board.Members = append(board.Members, models.MemberStreak{MemberID: id, Streak: n})
		}
		return nil
	})
	if err != nil {
		return StreakBoard{}, err
	}
	return board, nil
}

// dedupe keeps the first occurrence of every non-empty ID.
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
