// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/danielhkuo/circle-sketch/db"
	"github.com/danielhkuo/circle-sketch/models"
)

const flagFirstRound = "first_round_started"

// SQLStore implements Store on database/sql for every Dialect.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	scope   string
}

// New wraps an open database. The schema must already exist.
func New(conn *sql.DB, dialect Dialect, scope string) *SQLStore {
	return &SQLStore{db: conn, dialect: dialect, scope: scope}
}

// Open connects, verifies the connection and creates the schema.
// Callers treat any error as fatal.
func Open(ctx context.Context, dialect Dialect, url, scope string) (*SQLStore, error) {
	conn, err := sql.Open(dialect.Driver, url)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := dialect.configure(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	if err := db.CreateSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return New(conn, dialect, scope), nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Atomic(ctx context.Context, fn func(Tx) error, units ...Unit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range lockOrder(units) {
		if err := s.dialect.lock(ctx, tx, s.scope, u); err != nil {
			return err
		}
	}

	if err := fn(&sqlTx{ctx: ctx, tx: tx, s: s}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) View(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&sqlTx{ctx: ctx, tx: tx, s: s})
}

type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
	s   *SQLStore
}

func (t *sqlTx) exec(query string, args ...any) error {
	_, err := t.tx.ExecContext(t.ctx, t.s.dialect.Rebind(query), args...)
	return err
}

func (t *sqlTx) queryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(t.ctx, t.s.dialect.Rebind(query), args...)
}

func (t *sqlTx) Roster() ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx, t.s.dialect.Rebind(`
		SELECT member_id FROM roster_member
		WHERE scope_id = ?
		ORDER BY position
	`), t.s.scope)
	if err != nil {
		return nil, fmt.Errorf("failed to query roster: %w", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan roster member: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func (t *sqlTx) SetRoster(members []string) error {
	if err := t.exec(`DELETE FROM roster_member WHERE scope_id = ?`, t.s.scope); err != nil {
		return fmt.Errorf("failed to clear roster: %w", err)
	}
	for i, id := range members {
		err := t.exec(`
			INSERT INTO roster_member (scope_id, member_id, position)
			VALUES (?, ?, ?)
		`, t.s.scope, id, i)
		if err != nil {
			return fmt.Errorf("failed to insert roster member %s: %w", id, err)
		}
	}
	return nil
}

func (t *sqlTx) Round() (*models.Round, error) {
	var payload string
	err := t.queryRow(`SELECT payload FROM round_state WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query round: %w", err)
	}
	return decodeRound([]byte(payload))
}

func (t *sqlTx) SetRound(round *models.Round) error {
	if round == nil {
		if err := t.exec(`DELETE FROM round_state WHERE id = 1`); err != nil {
			return fmt.Errorf("failed to clear round: %w", err)
		}
		return nil
	}

	payload, err := encodeRound(round)
	if err != nil {
		return err
	}
	err = t.exec(`
		INSERT INTO round_state (id, payload) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload
	`, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save round: %w", err)
	}
	return nil
}

func (t *sqlTx) GroupStreak() (int, error) {
	var streak int
	err := t.queryRow(`SELECT streak FROM group_streak WHERE id = 1`).Scan(&streak)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query group streak: %w", err)
	}
	return streak, nil
}

func (t *sqlTx) SetGroupStreak(streak int) error {
	err := t.exec(`
		INSERT INTO group_streak (id, streak) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET streak = excluded.streak
	`, streak)
	if err != nil {
		return fmt.Errorf("failed to save group streak: %w", err)
	}
	return nil
}

func (t *sqlTx) MemberStreak(memberID string) (int, error) {
	var streak int
	err := t.queryRow(`SELECT streak FROM member_streak WHERE member_id = ?`, memberID).Scan(&streak)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query streak for %s: %w", memberID, err)
	}
	return streak, nil
}

func (t *sqlTx) SetMemberStreak(memberID string, streak int) error {
	err := t.exec(`
		INSERT INTO member_streak (member_id, streak) VALUES (?, ?)
		ON CONFLICT (member_id) DO UPDATE SET streak = excluded.streak
	`, memberID, streak)
	if err != nil {
		return fmt.Errorf("failed to save streak for %s: %w", memberID, err)
	}
	return nil
}

func (t *sqlTx) MemberStreaks() ([]models.MemberStreak, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT member_id, streak FROM member_streak ORDER BY member_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query member streaks: %w", err)
	}
	defer rows.Close()

	streaks := []models.MemberStreak{}
	for rows.Next() {
		var ms models.MemberStreak
		if err := rows.Scan(&ms.MemberID, &ms.Streak); err != nil {
			return nil, fmt.Errorf("failed to scan member streak: %w", err)
		}
		streaks = append(streaks, ms)
	}
	return streaks, rows.Err()
}

func (t *sqlTx) BootstrapFlag() (bool, error) {
	var value string
	err := t.queryRow(`SELECT value FROM bot_flag WHERE name = ?`, flagFirstRound).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query bootstrap flag: %w", err)
	}
	started, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("bootstrap flag has invalid value %q: %w", value, err)
	}
	return started, nil
}

func (t *sqlTx) SetBootstrapFlag(started bool) error {
	err := t.exec(`
		INSERT INTO bot_flag (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value
	`, flagFirstRound, strconv.FormatBool(started))
	if err != nil {
		return fmt.Errorf("failed to save bootstrap flag: %w", err)
	}
	return nil
}

func (t *sqlTx) ResetAll() error {
	if err := t.SetRoster(nil); err != nil {
		return err
	}
	return t.SetRound(nil)
}
