package chat

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/mixgram/mixgram/internal/domain/errs"
)

// Invite code defaults. Eight symbols over a 36-character alphabet give
// ~2.8e12 possible codes; no uniqueness check is performed at generation
// time and collisions are resolved first-match-wins at lookup.
const (
	DefaultInviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultInviteLength   = 8
)

// CodeGenerator produces invite codes. Alphabet and length are
// parameterized so tests can force collisions with a degenerate alphabet.
type CodeGenerator struct {
	alphabet string
	length   int
}

// CodeOption configures a CodeGenerator.
type CodeOption func(*CodeGenerator)

// WithAlphabet overrides the code alphabet.
func WithAlphabet(alphabet string) CodeOption {
	return func(g *CodeGenerator) {
		g.alphabet = alphabet
	}
}

// WithLength overrides the code length.
func WithLength(length int) CodeOption {
	return func(g *CodeGenerator) {
		g.length = length
	}
}

// NewCodeGenerator creates a generator with the default 8-character
// [A-Z0-9] scheme unless overridden.
func NewCodeGenerator(opts ...CodeOption) *CodeGenerator {
	g := &CodeGenerator{
		alphabet: DefaultInviteAlphabet,
		length:   DefaultInviteLength,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate draws a code uniformly from the configured alphabet using
// crypto/rand.
func (g *CodeGenerator) Generate() (string, error) {
	if len(g.alphabet) == 0 || g.length <= 0 {
		return "", errs.ErrInvalidInput
	}

	max := big.NewInt(int64(len(g.alphabet)))
	code := make([]byte, g.length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw invite code symbol: %w", err)
		}
		code[i] = g.alphabet[n.Int64()]
	}
	return string(code), nil
}
