// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package rounds implements the round lifecycle.

# States

A round is idle (no record), open (theme set) or closing. Closing is
transient: streaks are settled and the record cleared in the same
transaction, so callers only ever observe idle or open.

	idle --OpenRound--> open --CloseRound--> idle

# Operations

	res, err := machine.OpenRound(ctx, rounds.OpenRequest{Trigger: models.TriggerScheduled})
	res, err := machine.Submit(ctx, memberID, imageURL)
	res, err := machine.CloseRound(ctx, authorize)
	res, err := machine.Status(ctx)

Each returns a tagged Outcome. The error is non-nil only for storage
failures.

Submit checks, in order: round open, caller is a participant, no earlier
submission, attachment present. Submissions are never overwritten.

# Streaks

On close the group streak increments when there is at least one entry and
resets to zero otherwise. Every participant recorded on the round (not
the current roster) either increments (submitted) or resets to zero.

# Prompts

Themes are drawn uniformly from a Pool loaded from YAML:

	themes:
	  - Lighthouse at Dusk
	  - Robot Gardener
*/
package rounds
