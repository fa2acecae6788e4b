// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Circle Sketch bot server.

Circle Sketch runs a daily drawing game for a small circle of chat members.
Every day a theme is sent to each member of the circle, members reply with
a drawing by direct message, and at the scheduled time the round closes:
streaks are updated and a gallery of cards is posted to the game channel.

# Starting the Server

The server requires environment variables or CLI flags for configuration.
A .env file in the working directory is loaded first if present:

	DATABASE_URL=circle.db BRIDGE_SECRET=... GAME_CHANNEL_ID=... go run .

Or with flags:

	go run . -p 3318 -d circle.db -t sqlite -channel 123 -bridge-secret ...

# Configuration

Required settings:

  - DATABASE_URL (-d): sqlite file or PostgreSQL connection string
  - BRIDGE_SECRET (-bridge-secret): HMAC secret shared with the chat bridge
  - GAME_CHANNEL_ID (-channel): where announcements and galleries go

See package cliparse for the optional ones.

# Architecture

The chat platform is reached through a bridge process: it posts slash
commands and direct messages to this server and receives outbound
messages on its own HTTP endpoints.

  - store: transactional persistence (sqlite or postgres)
  - circle: roster membership
  - rounds: round state machine, streaks, prompt pool, daily schedule
  - coordinator: manual, scheduled and bootstrap triggers, notifications
  - gallery: announcement and gallery card rendering, drawing cache
  - messenger: outbound bridge client
  - handlers, router, middleware: inbound bridge API
  - auth: request signatures and tokens
  - models, db, cliparse: shared types, schema, configuration

See package documentation for each component.
*/
package main
