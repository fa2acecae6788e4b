// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package circle manages the roster of members drawn into rounds.

The roster keeps join order and is bounded by a capacity (10 unless
configured). A member who joins while a round is open is added to that
round's participants in the same transaction; JoinResult.Theme is then
set so the caller can send the theme. Leaving never removes anyone from an
open round.
*/
package circle
