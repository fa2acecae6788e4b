// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

main loads an optional .env file first, so its values act as environment
variables.

# Flags and Environment Variables

	-p              PORT                 Server port (default 3318)
	-d              DATABASE_URL         Database URL or sqlite path (required)
	-t              DATABASE_TYPE        sqlite (default) or postgres
	-bridge-url     BRIDGE_URL           Bridge base URL; empty logs outbound messages
	-bridge-secret  BRIDGE_SECRET        HMAC secret shared with the bridge (required)
	-channel        GAME_CHANNEL_ID      Announcement channel (required)
	-scope          SCOPE_ID             Roster scope (default "default")
	-limit          CIRCLE_LIMIT         Maximum circle size (default 10)
	-time           SCHEDULED_GAME_TIME  Daily close, HH:MM (default 17:00)
	-tz             TIMEZONE             Schedule zone (default America/New_York)
	-open-delay     OPEN_DELAY           Close to open gap (default 10s)
	-reset-timeout  RESET_TIMEOUT        Reset confirmation window (default 30s)
	-prompts        PROMPTS_FILE         YAML theme pool (built-in pool if empty)
	-artifacts      ARTIFACT_DIR         Cached drawings (default ./artifacts)
	-redis          REDIS_ADDR           Shared fire guard (in-process if empty)
	-dm-rate        DM_RATE              Outbound requests per second (default 5)
	-log-level      LOG_LEVEL            debug, info, warn, error
	-log-format     LOG_FORMAT           text or json

CLI flags take precedence over environment variables.

# Validation

ParseFlags returns an error if a required value is missing or a numeric or
duration value does not parse. Time zone and schedule strings are checked
by main when it builds the schedule.
*/
package cliparse
