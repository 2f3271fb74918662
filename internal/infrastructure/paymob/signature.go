package paymob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks an HMAC-SHA256 signature over the raw (unparsed)
// webhook body. It must be fed the exact bytes that arrived on the wire:
// re-serializing a parsed JSON object is not guaranteed to be byte-identical
// to what the sender signed.
//
// The supplied signature may carry an optional "sha256=" prefix and is
// compared in constant time.
func VerifySignature(secret string, rawBody []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}

	signature = strings.TrimSpace(signature)
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// SignatureHeaders lists the header names the provider has been observed
// sending the webhook signature under, in lookup order.
var SignatureHeaders = []string{
	"x-paymob-signature",
	"x-signature",
	"x-hook-signature",
	"x-paymob-hmac",
}
