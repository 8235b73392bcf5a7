// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (duration_ms).

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(cfg.AllowedOrigin, mux),
	}

An origin of "*" (or empty) reflects the caller's Origin header. Allows
methods GET, POST, OPTIONS with headers Content-Type and X-Fingerprint, and
exposes the rate limit headers (Retry-After, X-RateLimit-Remaining,
X-RateLimit-Reset) to scripts.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Parse JSON request bodies:

	var req models.VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Order: first X-Forwarded-For entry, X-Real-IP, CF-Connecting-IP, then the
sentinel models.UnknownIP. RemoteAddr is never used; behind a proxy it is
the proxy's address.
*/
package middleware
