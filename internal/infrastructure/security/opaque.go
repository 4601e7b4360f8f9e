package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// opaqueTokenBytes gives 256 bits of entropy, 64 hex characters.
const opaqueTokenBytes = 32

// HexTokenGenerator implements ports.TokenGenerator for verification and
// reset tokens.
type HexTokenGenerator struct{}

func NewHexTokenGenerator() HexTokenGenerator {
	return HexTokenGenerator{}
}

func (HexTokenGenerator) Generate() (string, error) {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
