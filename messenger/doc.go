// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package messenger sends outbound messages to the chat platform.

Webhook posts signed JSON to the messaging bridge:

	POST {BRIDGE_URL}/send         - channel message, optional file
	POST {BRIDGE_URL}/dm           - direct message
	GET  {BRIDGE_URL}/members/{id} - display name and avatar

Requests are throttled by a token bucket so a reveal with many cards does
not trip the platform's rate limits. Log is a stand-in that only logs.
*/
package messenger
