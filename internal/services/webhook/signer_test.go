package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_ProducesVerifiableSignature(t *testing.T) {
	payload := []byte(`{"invoiceId":"abc"}`)

	timestamp, signature := Sign("shh", payload, 1700000000)

	assert.Equal(t, "1700000000", timestamp)
	assert.True(t, VerifySignature("shh", timestamp, payload, signature))
}

func TestVerifySignature_RejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"invoiceId":"abc"}`)

	timestamp, signature := Sign("shh", payload, 1700000000)

	assert.False(t, VerifySignature("other", timestamp, payload, signature))
}

func TestVerifySignature_RejectsTamperedPayload(t *testing.T) {
	timestamp, signature := Sign("shh", []byte(`{"amount":"10.00"}`), 1700000000)

	assert.False(t, VerifySignature("shh", timestamp, []byte(`{"amount":"99.00"}`), signature))
}
