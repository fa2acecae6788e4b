// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same statements run on sqlite (modernc.org/sqlite) and PostgreSQL (lib/pq).

# Tables

  - roster_member: circle membership per scope, ordered by position
  - round_state: the active round as a JSON payload (single row, id = 1)
  - group_streak: group streak counter (single row, id = 1)
  - member_streak: per-member streak counters
  - bot_flag: named one-off flags such as first_round_started

No row in round_state means no round is running.
*/
package db
