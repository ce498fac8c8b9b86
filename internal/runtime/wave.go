package runtime

import "github.com/google/uuid"

// TokenGenerator generates wave tokens: one token per update pass,
// stamped on every journal event that pass produces so a trace can be
// grouped by wave. Implemented by UUIDv7Tokens (production) and
// FixedTokens (tests).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Tokens generates time-sortable UUIDv7 wave tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, so tokens
// sort by creation time, which keeps multi-wave traces readable.
type UUIDv7Tokens struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Tokens) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedTokens returns predetermined wave tokens for deterministic tests
// and golden trace comparison.
type FixedTokens struct {
	tokens []string
	idx    int
}

// NewFixedTokens creates a generator that returns tokens in order.
func NewFixedTokens(tokens ...string) *FixedTokens {
	return &FixedTokens{tokens: tokens}
}

// Generate returns the next predetermined token.
//
// Panics once all tokens are consumed. Fail-fast: a test that runs more
// update passes than it declared tokens for is misconfigured.
func (g *FixedTokens) Generate() string {
	if g.idx >= len(g.tokens) {
		panic("FixedTokens: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
