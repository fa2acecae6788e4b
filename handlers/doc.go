// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains the HTTP handlers the messaging bridge calls.

# Handler Types

  - CommandHandler: slash commands, POST /commands/{name}
  - DirectMessageHandler: drawing submissions, POST /events/direct-message

Handlers are created via constructor functions:

	commands := handlers.NewCommandHandler(machine, roster, coord, cfg)
	dms := handlers.NewDirectMessageHandler(coord)

# Commands

Every command body is a models.CommandRequest. The bridge sets admin when
the member holds administrator rights on the chat server.

	join, leave, list        roster membership
	reset                    admin only; replies with a confirmation token
	reset_confirm            admin only; token must be unexpired (RESET_TIMEOUT)
	reset_cancel             drops the token
	start_round              opens a manual round, caller becomes starter
	end_round                starter or admin
	status                   theme, counts and time left until the close
	show_streaks             group and member streaks

Expected conditions (circle full, no active round, not authorized) are
replies with status 200. Storage faults are 500 with a generic message.

# Direct Messages

The first attachment is the drawing. Bot messages, members outside the
round and messages while no round is open get an empty reply, which the
bridge does not relay.
*/
package handlers
