// Package signature signs and verifies webhook payloads with HMAC-SHA256.
//
// Signatures are rendered as "sha256=<hex>", the form used both for outbound
// deliveries and for the X-Hub-Signature-256 header sent by WhatsApp.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const Prefix = "sha256="

// Sign returns "sha256=" followed by the hex HMAC-SHA256 of payload keyed by secret.
func Sign(payload []byte, secret string) string {
	return Prefix + hex.EncodeToString(compute(payload, secret))
}

// Verify reports whether signature matches payload under secret. The "sha256="
// prefix is optional. Malformed or empty signatures never match.
func Verify(payload []byte, signature, secret string) bool {
	sig := strings.TrimSpace(signature)
	sig = strings.TrimPrefix(sig, Prefix)
	if sig == "" {
		return false
	}

	decoded, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(decoded, compute(payload, secret)) == 1
}

func compute(payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return mac.Sum(nil)
}
