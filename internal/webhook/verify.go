// Package webhook authenticates inbound commerce webhooks.
//
// The sender signs the exact request body with HMAC-SHA256 over a shared
// secret and sends the base64 digest in SignatureHeader. Verification must
// run against the raw bytes as received; re-encoding parsed JSON changes the
// digest.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureHeader carries the base64 HMAC of the raw body.
const SignatureHeader = "X-Shopify-Hmac-Sha256"

// IDHeader optionally carries the sender's delivery id.
const IDHeader = "X-Shopify-Webhook-Id"

// Sign returns base64(HMAC-SHA256(secret, body)).
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is a valid signature of body under secret.
// It never panics and returns false for an empty secret, an empty signature
// or a signature that is not valid base64.
func Verify(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	provided, err := base64.StdEncoding.Strict().DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	// Use constant-time comparison
	return hmac.Equal(provided, mac.Sum(nil))
}
