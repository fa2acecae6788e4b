// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The statements are shared by the sqlite and postgres backends.
func CreateSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// Tables lists every table CreateSchema owns, children first.
var Tables = []string{"roster_member", "round_state", "group_streak", "member_streak", "bot_flag"}

var schema = []string{
	// Roster
	`CREATE TABLE IF NOT EXISTS roster_member (
    scope_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (scope_id, member_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_roster_member_position ON roster_member(scope_id, position)`,

	// Active round, single row
	`CREATE TABLE IF NOT EXISTS round_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    payload TEXT NOT NULL
)`,

	// Group streak, single row
	`CREATE TABLE IF NOT EXISTS group_streak (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    streak INTEGER NOT NULL DEFAULT 0
)`,
	`INSERT INTO group_streak (id, streak) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,

	// Per-member streaks
	`CREATE TABLE IF NOT EXISTS member_streak (
    member_id TEXT PRIMARY KEY,
    streak INTEGER NOT NULL DEFAULT 0
)`,

	// One-off flags
	`CREATE TABLE IF NOT EXISTS bot_flag (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`,
}
