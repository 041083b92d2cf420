package signing

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// CanonicalJSON serializes a decoded body with sorted keys and no whitespace.
// Numbers must have been decoded as json.Number so they round-trip verbatim.
func CanonicalJSON(body map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ComputeHMAC returns the lowercase hex HMAC-SHA256 of payload.
func ComputeHMAC(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC compares the expected MAC with the presented one in constant time.
func VerifyHMAC(secret, payload []byte, presented string) bool {
	expected := ComputeHMAC(secret, payload)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(presented)))
}

// TimestampWithin reports whether a unix-ms timestamp is within window of now.
func TimestampWithin(now time.Time, timestampMs int64, window time.Duration) bool {
	diff := now.UnixMilli() - timestampMs
	if diff < 0 {
		diff = -diff
	}
	return diff <= window.Milliseconds()
}
