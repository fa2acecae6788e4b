// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines domain, request, and response types shared by the bot.

# Domain Types

  - Round: the single active round (theme, participants, submissions, starter)
  - Submission: one participant's image reference
  - MemberStreak: a stored per-member streak counter
  - Summary: what a closing round produces for the reveal
  - Member: a chat user as resolved by the messaging bridge

A nil *Round means no round is running. A round is open iff its theme is set:

	if round.IsOpen() && round.IsParticipant(memberID) { ... }

# Request Types

Types posted by the messaging bridge:

  - CommandRequest: member_id, display_name, admin, token
  - DirectMessageRequest: member_id, content, attachments

# Response Types

  - CommandResponse: reply, token, expires_at
  - DirectMessageResponse: reply
  - ErrorResponse: error, message

# Outbound Types

Payloads the bot posts back to the bridge:

  - SendRequest: channel_id, text, filename, file (base64 in JSON)
  - DMRequest: member_id, text

# Constants

Trigger kinds recorded on every round:

	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerBootstrap = "bootstrap"
*/
package models
