package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainLinksEntries(t *testing.T) {
	c := NewChainLogger()

	first := c.Append("save_import tipo=extrato periodo=2024-03")
	second := c.Append("save_result periodo=2024-03")

	assert.Equal(t, first.Hash, second.PreviousHash)
	assert.True(t, VerifyChain(c.Entries()))
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	c := NewChainLogger()
	c.Append("delete_import tipo=omie periodo=2024-03")
	c.Append("save_result periodo=2024-03")

	entries := c.Entries()
	require.Len(t, entries, 2)
	entries[0].Payload = "delete_import tipo=omie periodo=2024-04"

	assert.False(t, VerifyChain(entries))
}

func TestVerifyChainEmpty(t *testing.T) {
	assert.True(t, VerifyChain(nil))
}
