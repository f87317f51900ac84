// Package signer computes per-venue request signatures.
// Pure functions, no state: reference venue and venue D use HMAC-SHA256
// hex, venue C uses HMAC-SHA384 hex, venue B uses HMAC-SHA256 raw then
// base64.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"

	"github.com/lilwiggy/ex-act/pkg/venue"
)

// Sign computes the canonical signature string for a venue's payload.
func Sign(tag venue.Tag, secret, payload []byte) string {
	switch tag {
	case venue.C:
		mac := hmac.New(sha512.New384, secret)
		mac.Write(payload)
		return hex.EncodeToString(mac.Sum(nil))
	case venue.B:
		mac := hmac.New(sha256.New, secret)
		mac.Write(payload)
		return base64.StdEncoding.EncodeToString(mac.Sum(nil))
	default: // Reference, D
		mac := hmac.New(sha256.New, secret)
		mac.Write(payload)
		return hex.EncodeToString(mac.Sum(nil))
	}
}
