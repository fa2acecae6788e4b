// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect captures the differences between the supported databases.
type Dialect struct {
	Name   string
	Driver string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
	// advisory locks per unit; otherwise writers are serialised by a
	// single connection
	advisory bool
}

var (
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite"}
	Postgres = Dialect{Name: "postgres", Driver: "postgres", numbered: true, advisory: true}
)

// DialectFor maps a configured database type to its dialect.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// configure applies per-dialect pool settings after sql.Open.
func (d Dialect) configure(ctx context.Context, db *sql.DB) error {
	if d.advisory {
		return nil
	}
	// One connection: every transaction, reads included, runs alone.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return nil
}

// lock takes the transaction-scoped lock for a unit.
func (d Dialect) lock(ctx context.Context, tx *sql.Tx, scope string, u Unit) error {
	if !d.advisory {
		return nil
	}
	_, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1, $2)", lockClass, lockKey(scope, u))
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", u, err)
	}
	return nil
}

// lockClass namespaces this application's advisory locks.
const lockClass int32 = 0x43534b // "CSK"

func lockKey(scope string, u Unit) int32 {
	if u == UnitRound {
		// the round is global, not per scope
		return int32(u)
	}
	var h uint32 = 2166136261
	for i := 0; i < len(scope); i++ {
		h ^= uint32(scope[i])
		h *= 16777619
	}
	return int32(h&0x7fffff00) | int32(u)
}
