// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides voter identity resolution and ID generation.

# Identity Resolution

Every vote request is keyed by an Identity, the (ip, fingerprint) pair:

	identity, err := auth.ResolveIdentity(r, req.Fingerprint, cfg.IPHashSalt)

The IP component comes from middleware.GetClientIP (X-Forwarded-For first
entry, X-Real-IP, CF-Connecting-IP, else "unknown") and is stored only as a
salted hash. The fingerprint is an opaque caller-supplied token; it is
best-effort and spoofable, and an empty one is rejected with
ErrMissingFingerprint.

# IP Hashing

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.

# ID Generation

Random hex IDs for poll and option records:

	id, err := auth.GenerateID(16)  // 32 hex characters
*/
package auth
