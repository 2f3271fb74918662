package paymob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_Valid(t *testing.T) {
	body := []byte(`{"obj":{"success":true}}`)
	sig := sign("topsecret", body)

	assert.True(t, VerifySignature("topsecret", body, sig))
}

func TestVerifySignature_Sha256Prefix(t *testing.T) {
	body := []byte(`{"obj":{"success":true}}`)
	sig := "sha256=" + sign("topsecret", body)

	assert.True(t, VerifySignature("topsecret", body, sig))
}

func TestVerifySignature_UppercaseHex(t *testing.T) {
	body := []byte(`payload`)
	sig := sign("topsecret", body)

	assert.True(t, VerifySignature("topsecret", body, toUpper(sig)))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`payload`)
	sig := sign("topsecret", body)

	assert.False(t, VerifySignature("othersecret", body, sig))
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	sig := sign("topsecret", []byte(`payload`))

	assert.False(t, VerifySignature("topsecret", []byte(`payload2`), sig))
}

func TestVerifySignature_EmptyInputs(t *testing.T) {
	assert.False(t, VerifySignature("", []byte(`payload`), "deadbeef"))
	assert.False(t, VerifySignature("topsecret", []byte(`payload`), ""))
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}
