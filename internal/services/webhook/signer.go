// Package webhook implements the outbound merchant-notification signer and
// dispatcher of §4.5. Grounded on the exchange client's HMAC-SHA256 request
// signing (internal/adapters/exchange/client.go's signedQuery) adapted from
// signing a query string to signing a JSON body.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Sign returns the timestamp and signature for payload per §4.5: message =
// timestamp + "." + payload, signature = "sha256=" + hex(HMAC-SHA256(secret,
// message)).
func Sign(secret string, payload []byte, unixSeconds int64) (timestamp, signature string) {
	timestamp = strconv.FormatInt(unixSeconds, 10)
	signature = "sha256=" + hexHMAC(secret, timestamp, payload)

	return timestamp, signature
}

// VerifySignature reports whether signature is the expected HMAC-SHA256
// signature of timestamp+"."+payload under secret, using a constant-time
// comparison per §4.5's verification helper.
func VerifySignature(secret, timestamp string, payload []byte, signature string) bool {
	expected := "sha256=" + hexHMAC(secret, timestamp, payload)

	return hmac.Equal([]byte(expected), []byte(signature))
}

func hexHMAC(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)

	return hex.EncodeToString(mac.Sum(nil))
}
