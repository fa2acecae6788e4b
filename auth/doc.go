// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides request signing and token generation utilities.

# Bridge Signatures

Every request between the bot and the messaging bridge carries an
HMAC-SHA256 signature of the raw body in the X-Bridge-Signature header:

	sig := auth.Sign(body, secret)           // "sha256=<hex>"
	err := auth.ValidateSignature(body, sig, secret)

Validation uses hmac.Equal so timing does not leak how much of the
signature matched. The same shared secret signs both directions.

# Confirmation Tokens

Destructive commands (circle reset) answer with a token that must be sent
back to confirm:

	token, err := auth.GenerateConfirmToken()

Tokens are 24 random bytes, URL-safe base64 encoded without padding.

# ID Generation

Random hex IDs:

	id, err := auth.GenerateID(16)  // 32 hex characters
*/
package auth
