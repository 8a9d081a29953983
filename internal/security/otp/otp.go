// Package otp generates the numeric one-time codes mailed during password reset.
package otp

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// Digits is the length of every generated code.
const Digits = 6

var upperBound = big.NewInt(1_000_000)

// Generator draws codes from a cryptographically secure source.
type Generator struct {
	source io.Reader
}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{source: rand.Reader}
}

// Generate returns a uniformly distributed, zero-padded 6-digit code.
func (g *Generator) Generate() (string, error) {
	n, err := rand.Int(g.source, upperBound)
	if err != nil {
		return "", fmt.Errorf("otp: generate: %w", err)
	}
	return fmt.Sprintf("%0*d", Digits, n.Int64()), nil
}

// Valid reports whether code has the shape of a generated code.
func Valid(code string) bool {
	if len(code) != Digits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
