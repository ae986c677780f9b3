package mexc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// signPayload computes the request signature: HMAC-SHA256 over the
// concatenation of access key, request timestamp (milliseconds) and the
// parameter string, keyed by the API secret. For GET requests the parameter
// string is the sorted query string; for POST requests it is the raw JSON
// body.
func signPayload(apiKey, apiSecret, timestamp, params string) string {
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(apiKey + timestamp + params))
	return hex.EncodeToString(mac.Sum(nil))
}
