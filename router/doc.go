// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines the HTTP routes the messaging bridge calls.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(router.Deps{
		Machine:     machine,
		Roster:      roster,
		Coordinator: coord,
	}, cfg)

# Endpoints

Health:

	GET /health

Bridge callbacks (body signed with BRIDGE_SECRET, see middleware):

	POST /commands/{name}          - join, leave, list, reset, reset_confirm,
	                                 reset_cancel, start_round, end_round,
	                                 status, show_streaks
	POST /events/direct-message    - drawing submissions

Both reply with JSON; the bridge relays the reply text privately to the
member who issued the command or sent the message.
*/
package router
