// Package idgen produces ticket codes and redemption tokens.
//
// Codes are human-readable: a fixed event prefix, a base36 millisecond
// timestamp and a short random suffix, uppercased. Tokens are the redemption
// capability: 16 bytes of entropy rendered as 32 hex characters. Neither
// value is trusted to be unique on its own; the store's unique indexes are
// the real guarantee and collisions surface as duplicate-key errors there.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"gatepass/lib/clock"
)

const (
	suffixLen     = 5
	tokenBytes    = 16
	base36Charset = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Generator derives identifiers from an explicit clock and entropy source so
// tests can pin both.
type Generator struct {
	prefix  string
	clock   clock.Clock
	entropy io.Reader
}

func New(prefix string, clk clock.Clock, entropy io.Reader) *Generator {
	return &Generator{
		prefix:  prefix,
		clock:   clk,
		entropy: entropy,
	}
}

// NewDefault wires the system clock and crypto/rand.
func NewDefault(prefix string) *Generator {
	return New(prefix, clock.NewSystem(), rand.Reader)
}

// Code returns the next human-presentable ticket identifier.
func (g *Generator) Code() (string, error) {
	stamp := strconv.FormatInt(g.clock.Now().UnixMilli(), 36)

	buf := make([]byte, suffixLen)
	if _, err := io.ReadFull(g.entropy, buf); err != nil {
		return "", fmt.Errorf("idgen: read entropy: %w", err)
	}
	suffix := make([]byte, suffixLen)
	for i, b := range buf {
		suffix[i] = base36Charset[int(b)%len(base36Charset)]
	}

	return strings.ToUpper(g.prefix + stamp + string(suffix)), nil
}

// Token returns a fresh redemption token: 32 lowercase hex characters.
func (g *Generator) Token() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(g.entropy, buf); err != nil {
		return "", fmt.Errorf("idgen: read entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
