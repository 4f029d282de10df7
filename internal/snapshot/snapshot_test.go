package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	for _, valid := range []string{"2024-01", "2024-12", "1999-06"} {
		p, err := ParsePeriod(valid)
		require.NoError(t, err, valid)
		assert.Equal(t, valid, p.String())
	}
	for _, invalid := range []string{"", "2024", "2024-13", "2024-00", "2024-1", "24-01", "2024-03-15", "março"} {
		_, err := ParsePeriod(invalid)
		assert.Error(t, err, invalid)
	}
}

func TestPeriodPrev(t *testing.T) {
	assert.Equal(t, Period("2024-02"), Period("2024-03").Prev())
	assert.Equal(t, Period("2023-12"), Period("2024-01").Prev())
}

func TestParseImportKind(t *testing.T) {
	for _, valid := range []string{"extrato", "omie", "cartao"} {
		k, err := ParseImportKind(valid)
		require.NoError(t, err)
		assert.Equal(t, ImportKind(valid), k)
	}
	_, err := ParseImportKind("boleto")
	assert.Error(t, err)
}

func TestStatusLifecycle(t *testing.T) {
	assert.True(t, IsValidTransition(StatusActive, StatusSuperseded))
	// superseded is terminal
	assert.False(t, IsValidTransition(StatusSuperseded, StatusActive))
	assert.False(t, IsValidTransition(StatusActive, StatusActive))
	assert.False(t, IsValidTransition(StatusSuperseded, StatusSuperseded))
}
