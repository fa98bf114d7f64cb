package idgen

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// JoinCodeAlphabet avoids characters that are easy to confuse when read aloud
const JoinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Generator produces identifiers that can be mocked for testing
type Generator interface {
	// NewID returns a new globally unique identifier
	NewID() string

	// Code generates a short human-readable code of the given length
	Code(length int) string
}

// UUIDGenerator implements Generator with random UUIDs and crypto/rand codes
type UUIDGenerator struct{}

// New creates a new UUIDGenerator
func New() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID returns a random (version 4) UUID string
func (g *UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// Code generates a random code from JoinCodeAlphabet
func (g *UUIDGenerator) Code(length int) string {
	if length <= 0 {
		return ""
	}
	max := big.NewInt(int64(len(JoinCodeAlphabet)))
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			n = big.NewInt(0)
		}
		result[i] = JoinCodeAlphabet[n.Int64()]
	}
	return string(result)
}
