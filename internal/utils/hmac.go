package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// SignHMAC creates a hex-encoded HMAC-SHA256 signature for a message.
// Razorpay signs both checkout callbacks and webhook bodies this way.
func SignHMAC(message, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMAC verifies an HMAC signature against a message using the provided secret.
// Uses constant-time comparison to prevent timing attacks.
func VerifyHMAC(message, signature, secret string) bool {
	expectedMAC := SignHMAC(message, secret)

	return subtle.ConstantTimeCompare([]byte(signature), []byte(expectedMAC)) == 1
}
