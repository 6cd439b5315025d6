package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactor_RedactsBearerToken(t *testing.T) {
	r := NewRedactor()
	out := r.RedactString("Authorization: Bearer abc123XYZ.def456")
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "abc123XYZ")
}

func TestRedactor_RedactsKeyValuePair(t *testing.T) {
	r := NewRedactor()
	out := r.RedactString(`api_key="sk-verysecret123"`)
	assert.NotContains(t, out, "verysecret123")
}

func TestRedactor_RedactKeyValueScrubsConfiguredSecret(t *testing.T) {
	r := NewRedactor()
	out := r.RedactKeyValue("request to https://finnhub.io/api/v1/quote?token=shh-dont-tell failed", "shh-dont-tell")
	assert.NotContains(t, out, "shh-dont-tell")
	assert.Contains(t, out, "[REDACTED]")
}

func TestRedactor_LeavesOrdinaryTextAlone(t *testing.T) {
	r := NewRedactor()
	out := r.RedactString("fetched profile for AAPL in 120ms")
	assert.Equal(t, "fetched profile for AAPL in 120ms", out)
}
