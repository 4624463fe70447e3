package service

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// cryptoOutcomeSource draws outcomes from crypto/rand. Wager results move
// real balances, so the house cannot use a seedable PRNG.
type cryptoOutcomeSource struct{}

// NewCryptoOutcomeSource creates an OutcomeSource backed by crypto/rand
func NewCryptoOutcomeSource() OutcomeSource {
	return cryptoOutcomeSource{}
}

// Float64 returns a uniformly distributed value in [0, 1) with 53 bits of
// precision, the same resolution math/rand offers.
func (cryptoOutcomeSource) Float64() (float64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53), nil
}
