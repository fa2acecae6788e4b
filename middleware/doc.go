// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (request_id, method, path, remote) and completion (status,
duration_ms).

# Bridge Signatures

Every request from the messaging bridge carries an HMAC-SHA256 of its body
in X-Bridge-Signature. VerifySignature checks it before the handler runs:

	signed := middleware.VerifySignature(cfg.BridgeSecret)
	mux.HandleFunc("POST /commands/{name}", middleware.WithLogging(signed(h.Handle)))

Unsigned or tampered requests get 401; bodies over MaxBodyBytes get 413.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Parse JSON request bodies:

	var req models.CommandRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

GetClientIP returns the original caller (handles X-Forwarded-For,
X-Real-IP) and is what the request log records as remote.
*/
package middleware
