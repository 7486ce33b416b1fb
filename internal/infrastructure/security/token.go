package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/99minutos/auth-service/internal/core/ports"
)

const (
	TokenFormatUUID = "uuid"
	TokenFormatHex  = "hex"

	hexTokenBytes = 32
)

// UUIDGenerator renders tokens as canonical random (version 4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid token: %w", err)
	}
	return id.String(), nil
}

// HexGenerator renders 32 random bytes as 64 hex characters.
type HexGenerator struct{}

func (HexGenerator) NewToken() (string, error) {
	b := make([]byte, hexTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate hex token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewTokenGenerator selects a generator by format name.
func NewTokenGenerator(format string) (ports.TokenGenerator, error) {
	switch format {
	case "", TokenFormatUUID:
		return UUIDGenerator{}, nil
	case TokenFormatHex:
		return HexGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown token format %q", format)
	}
}
