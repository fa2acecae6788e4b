// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package circle

import (
	"context"
	"log/slog"
	"slices"

	"github.com/danielhkuo/circle-sketch/store"
)

// DefaultCapacity bounds the roster when no limit is configured.
const DefaultCapacity = 10

type Outcome string

const (
	OutcomeJoined        Outcome = "joined"
	OutcomeAlreadyMember Outcome = "already_member"
	OutcomeFull          Outcome = "full"
	OutcomeLeft          Outcome = "left"
	OutcomeNotMember     Outcome = "not_member"
)

type JoinResult struct {
	Outcome Outcome
	Size    int
	// Theme is set when the member was added to an open round and
	// should be told what to draw.
	Theme string
}

type LeaveResult struct {
	Outcome Outcome
	Size    int
}

type Listing struct {
	Members  []string
	Size     int
	Capacity int
}

// Manager owns roster membership. Like the round machine it is
// stateless; every call goes through the store.
type Manager struct {
	store    store.Store
	capacity int
}

func NewManager(st store.Store, capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{store: st, capacity: capacity}
}

func (m *Manager) Capacity() int {
	return m.capacity
}

// Join appends the member to the roster. When a round is open the member
// also becomes a participant in the same transaction.
func (m *Manager) Join(ctx context.Context, memberID string) (JoinResult, error) {
	var res JoinResult

	err := m.store.Atomic(ctx, func(tx store.Tx) error {
		res = JoinResult{}

		members, err := tx.Roster()
		if err != nil {
			return err
		}
		res.Size = len(members)
		if slices.Contains(members, memberID) {
			res.Outcome = OutcomeAlreadyMember
			return nil
		}
		if len(members) >= m.capacity {
			res.Outcome = OutcomeFull
			return nil
		}

		members = append(members, memberID)
		if err := tx.SetRoster(members); err != nil {
			return err
		}
		res.Outcome = OutcomeJoined
		res.Size = len(members)

		round, err := tx.Round()
		if err != nil {
			return err
		}
		if !round.IsOpen() {
			return nil
		}
		if !round.IsParticipant(memberID) {
			round.Participants = append(round.Participants, memberID)
			if err := tx.SetRound(round); err != nil {
				return err
			}
		}
		res.Theme = round.Theme
		return nil
	}, store.UnitRoster, store.UnitRound)
	if err != nil {
		return JoinResult{}, err
	}

	if res.Outcome == OutcomeJoined {
		slog.Info("member joined circle", "member_id", memberID, "size", res.Size, "late_joiner", res.Theme != "")
	}
	return res, nil
}

// Leave removes the member from the roster only. An open round keeps the
// member as a participant.
func (m *Manager) Leave(ctx context.Context, memberID string) (LeaveResult, error) {
	var res LeaveResult

	err := m.store.Atomic(ctx, func(tx store.Tx) error {
		res = LeaveResult{}

		members, err := tx.Roster()
		if err != nil {
			return err
		}
		i := slices.Index(members, memberID)
		if i < 0 {
			res.Outcome = OutcomeNotMember
			res.Size = len(members)
			return nil
		}

		members = slices.Delete(members, i, i+1)
		if err := tx.SetRoster(members); err != nil {
			return err
		}
		res.Outcome = OutcomeLeft
		res.Size = len(members)
		return nil
	}, store.UnitRoster)
	if err != nil {
		return LeaveResult{}, err
	}

	if res.Outcome == OutcomeLeft {
		slog.Info("member left circle", "member_id", memberID, "size", res.Size)
	}
	return res, nil
}

func (m *Manager) List(ctx context.Context) (Listing, error) {
	var listing Listing

	err := m.store.View(ctx, func(tx store.Tx) error {
		members, err := tx.Roster()
		if err != nil {
			return err
		}
		listing = Listing{Members: members, Size: len(members), Capacity: m.capacity}
		return nil
	})
	if err != nil {
		return Listing{}, err
	}
	return listing, nil
}

// Reset clears the roster and any open round. Streaks are kept. Callers
// must check authorization first.
func (m *Manager) Reset(ctx context.Context) error {
	err := m.store.Atomic(ctx, func(tx store.Tx) error {
		return tx.ResetAll()
	}, store.UnitRoster, store.UnitRound)
	if err != nil {
		return err
	}

	slog.Warn("circle reset")
	return nil
}
