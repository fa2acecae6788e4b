// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store persists every piece of circle state: roster, active round,
group and member streaks, and the one-time bootstrap flag.

# Backends

One implementation, SQLStore, runs on database/sql. The backend is chosen
once at startup:

	dialect, err := store.DialectFor(cfg.DatabaseType) // "sqlite" or "postgres"
	st, err := store.Open(ctx, dialect, cfg.DatabaseURL, cfg.ScopeID)

Open pings the database and creates the schema. Callers exit the process on
error; there is no degraded mode.

# Transactions

All reads and writes go through a Tx:

	err := st.Atomic(ctx, func(tx store.Tx) error {
		round, err := tx.Round()
		...
		return tx.SetRound(round)
	}, store.UnitRound)

Atomic holds the named units for the whole transaction. The roster and the
round are separate units; a transaction that needs both names both and they
are taken in a fixed order. On PostgreSQL each unit is a transaction-scoped
advisory lock. On sqlite the pool is limited to one connection, which
serialises every transaction.

# Round Payloads

The round is stored as a versioned JSON document. Payloads written by the
first version of the bot (integer IDs, user_ids, gallery,
manual_game_starter_id) are upgraded when loaded.
*/
package store
