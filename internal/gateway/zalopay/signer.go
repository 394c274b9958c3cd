package zalopay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign computes the gateway MAC: HMAC-SHA256 over the pipe-joined fields,
// rendered as lowercase hex. The field order is part of the wire contract and
// differs per operation; callers pass fields in the contract order.
func Sign(key string, fields ...string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the MAC over payload and compares it with the provided
// value in constant time. A mismatch is a hard rejection.
func Verify(key, payload, mac string) bool {
	expected := Sign(key, payload)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(mac)))
}
