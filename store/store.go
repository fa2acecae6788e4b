// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"slices"

	"github.com/danielhkuo/circle-sketch/models"
)

var (
	ErrUnknownDialect = errors.New("unknown database type")
	ErrCorruptRound   = errors.New("stored round is unreadable")
)

// Unit is an independently lockable part of the store.
// Units are always acquired in declaration order.
type Unit int

const (
	UnitRoster Unit = iota + 1
	UnitRound
)

func (u Unit) String() string {
	switch u {
	case UnitRoster:
		return "roster"
	case UnitRound:
		return "round"
	default:
		return "unknown"
	}
}

// Tx exposes every entity of the store inside one transaction.
type Tx interface {
	Roster() ([]string, error)
	// SetRoster replaces the roster wholesale, keeping the given order.
	SetRoster(members []string) error

	// Round returns nil when no round is running.
	Round() (*models.Round, error)
	// SetRound replaces the round wholesale; nil clears it.
	SetRound(round *models.Round) error

	GroupStreak() (int, error)
	SetGroupStreak(streak int) error

	// MemberStreak returns 0 for members never seen.
	MemberStreak(memberID string) (int, error)
	SetMemberStreak(memberID string, streak int) error
	MemberStreaks() ([]models.MemberStreak, error)

	BootstrapFlag() (bool, error)
	SetBootstrapFlag(started bool) error

	// ResetAll clears roster and round. Streak counters are kept.
	ResetAll() error
}

// Store is the single source of truth for circle state.
type Store interface {
	// Atomic runs fn in a transaction holding the given units. The
	// transaction commits only if fn returns nil.
	Atomic(ctx context.Context, fn func(Tx) error, units ...Unit) error
	// View runs fn in a transaction that is always rolled back.
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// lockOrder returns units deduplicated and sorted so that concurrent
// transactions never wait on each other in opposite orders.
func lockOrder(units []Unit) []Unit {
	ordered := slices.Clone(units)
	slices.Sort(ordered)
	return slices.Compact(ordered)
}
