package monnify

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// ComputeSignature returns the hex HMAC-SHA512 of the raw webhook body keyed
// with the webhook secret.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the provided signature matches the raw
// webhook body. Comparison is constant time.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	if c == nil || c.webhookSecret == "" || signature == "" {
		return false
	}
	expected := ComputeSignature(c.webhookSecret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
