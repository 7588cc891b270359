// Package token generates bearer access tokens for documents.
//
// Tokens gate all public retrieval, so they must be unguessable: not
// sequential, not derived from document IDs or timestamps. The Source
// interface exists so the service layer can inject a deterministic
// generator in tests.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Length is the number of random bytes per token. Hex encoding doubles it
// in the wire representation.
const Length = 32

// Source produces access tokens.
type Source interface {
	// Token returns a fresh, collision-resistant token.
	Token() (string, error)
}

type cryptoSource struct{}

// NewSource returns a Source backed by the platform CSPRNG.
func NewSource() Source {
	return cryptoSource{}
}

func (cryptoSource) Token() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
