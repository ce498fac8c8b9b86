package runtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Tokens_ValidAndSortable(t *testing.T) {
	gen := UUIDv7Tokens{}
	a := gen.Generate()
	b := gen.Generate()

	ua, err := uuid.Parse(a)
	require.NoError(t, err)
	ub, err := uuid.Parse(b)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), ua.Version())
	assert.Equal(t, uuid.Version(7), ub.Version())

	// v7 embeds the timestamp in the high bits: later tokens sort later.
	assert.Less(t, a, b)
}

func TestFixedTokens_ReturnsInOrder(t *testing.T) {
	gen := NewFixedTokens("w1", "w2", "w3")
	assert.Equal(t, "w1", gen.Generate())
	assert.Equal(t, "w2", gen.Generate())
	assert.Equal(t, "w3", gen.Generate())
}

func TestFixedTokens_PanicsWhenExhausted(t *testing.T) {
	gen := NewFixedTokens("only")
	gen.Generate()
	assert.Panics(t, func() { gen.Generate() })
}
