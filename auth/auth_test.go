// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/quickly-vote/models"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int // hex encoded length = byteLen * 2
	}{
		{"8 bytes", 8, 16},
		{"16 bytes", 16, 32},
		{"24 bytes", 24, 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateID(tt.byteLen)
			if err != nil {
				t.Fatalf("GenerateID() error = %v", err)
			}
			if len(id) != tt.wantLen {
				t.Errorf("GenerateID() length = %d, want %d", len(id), tt.wantLen)
			}
			// Verify it's valid hex
			for _, c := range id {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("GenerateID() contains invalid hex char: %c", c)
				}
			}
		})
	}

	// Test randomness - two IDs should be different
	id1, _ := GenerateID(16)
	id2, _ := GenerateID(16)
	if id1 == id2 {
		t.Error("GenerateID() produced duplicate IDs (extremely unlikely)")
	}
}

func TestHashIP(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		salt string
	}{
		{"IPv4", "192.168.1.1", "ip-salt"},
		{"IPv6", "2001:0db8:85a3::8a2e:0370:7334", "ip-salt"},
		{"localhost", "127.0.0.1", "ip-salt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashIP(tt.ip, tt.salt)

			// Should not be empty
			if hash == "" {
				t.Error("HashIP() returned empty string")
			}

			// Should be 16 hex characters (8 bytes * 2)
			if len(hash) != 16 {
				t.Errorf("HashIP() length = %d, want 16", len(hash))
			}

			// Should be valid hex
			for _, c := range hash {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("HashIP() contains invalid hex char: %c", c)
				}
			}

			// Should be deterministic
			hash2 := HashIP(tt.ip, tt.salt)
			if hash != hash2 {
				t.Error("HashIP() is not deterministic")
			}
		})
	}

	// Different IPs should produce different hashes
	hash1 := HashIP("192.168.1.1", "salt")
	hash2 := HashIP("192.168.1.2", "salt")
	if hash1 == hash2 {
		t.Error("HashIP() produced same hash for different IPs")
	}

	// Different salts should produce different hashes
	hash3 := HashIP("192.168.1.1", "salt1")
	hash4 := HashIP("192.168.1.1", "salt2")
	if hash3 == hash4 {
		t.Error("HashIP() produced same hash for different salts")
	}
}

func TestResolveIdentity(t *testing.T) {
	const salt = "ip-salt"

	tests := []struct {
		name        string
		headers     map[string]string
		fingerprint string
		wantIP      string
		wantErr     error
	}{
		{
			name:        "forwarded for first entry",
			headers:     map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"},
			fingerprint: "fp-1",
			wantIP:      "203.0.113.7",
		},
		{
			name:        "real ip",
			headers:     map[string]string{"X-Real-IP": "198.51.100.2"},
			fingerprint: "fp-2",
			wantIP:      "198.51.100.2",
		},
		{
			name:        "no headers falls back to sentinel",
			fingerprint: "fp-3",
			wantIP:      models.UnknownIP,
		},
		{
			name:        "fingerprint is trimmed",
			headers:     map[string]string{"X-Real-IP": "198.51.100.2"},
			fingerprint: "  fp-4  ",
			wantIP:      "198.51.100.2",
		},
		{
			name:        "blank fingerprint",
			fingerprint: "   ",
			wantErr:     ErrMissingFingerprint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/vote", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			identity, err := ResolveIdentity(req, tt.fingerprint, salt)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveIdentity() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveIdentity() error = %v", err)
			}

			if identity.IP != HashIP(tt.wantIP, salt) {
				t.Errorf("ResolveIdentity() IP = %s, want hash of %s", identity.IP, tt.wantIP)
			}
			if identity.Fingerprint == "" || identity.Fingerprint[0] == ' ' {
				t.Errorf("ResolveIdentity() fingerprint not trimmed: %q", identity.Fingerprint)
			}
		})
	}
}

// Benchmark tests
func BenchmarkGenerateID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateID(16)
	}
}

func BenchmarkHashIP(b *testing.B) {
	for i := 0; i < b.N; i++ {
		HashIP("203.0.113.7", "ip-salt")
	}
}
