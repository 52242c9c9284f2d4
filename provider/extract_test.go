package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractString(t *testing.T) {
	data := map[string]any{
		"correlationID": "abc-123",
		"charge": map[string]any{
			"brCode": "00020126...",
		},
		"payment": map[string]any{
			"charge": map[string]any{
				"id": "nested-id",
			},
		},
		"count": float64(3),
	}

	assert.Equal(t, "abc-123", ExtractString(data, "correlationID"))
	assert.Equal(t, "00020126...", ExtractString(data, "charge.brCode"))
	assert.Equal(t, "nested-id", ExtractString(data, "payment.charge.id"))

	// first matching path wins
	assert.Equal(t, "abc-123", ExtractString(data, "missing", "correlationID", "charge.brCode"))

	// non-string values are skipped
	assert.Equal(t, "", ExtractString(data, "count"))
	assert.Equal(t, "", ExtractString(data, "nope"))
}

func TestExtractMap(t *testing.T) {
	data := map[string]any{
		"data": map[string]any{
			"charge": map[string]any{"correlationID": "x"},
		},
	}

	charge := ExtractMap(data, "charge", "data.charge", "payment.charge")
	assert.NotNil(t, charge)
	assert.Equal(t, "x", charge["correlationID"])

	assert.Nil(t, ExtractMap(data, "missing", "also.missing"))
}
