package wheel

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// HashSource is a deterministic Keccak-256 counter stream. Given the same seed
// it replays the same sequence, so every draw can be re-derived by an auditor
// that knows the seed inputs.
type HashSource struct {
	seed    []byte
	counter uint64
	buf     []byte
}

// NewHashSource builds a stream from the concatenated seed parts.
func NewHashSource(parts ...[]byte) *HashSource {
	var seed []byte
	for _, part := range parts {
		seed = append(seed, part...)
	}
	return &HashSource{seed: ethcrypto.Keccak256(seed)}
}

// SeedFor derives the per-draw seed parts from an operator secret, the
// position id and its draw nonce.
func SeedFor(secret []byte, positionID uint64, nonce uint64) [][]byte {
	var id, n [8]byte
	binary.BigEndian.PutUint64(id[:], positionID)
	binary.BigEndian.PutUint64(n[:], nonce)
	return [][]byte{secret, id[:], n[:]}
}

func (h *HashSource) next() uint64 {
	if len(h.buf) < 8 {
		var ctr [8]byte
		binary.BigEndian.PutUint64(ctr[:], h.counter)
		h.counter++
		h.buf = ethcrypto.Keccak256(h.seed, ctr[:])
	}
	v := binary.BigEndian.Uint64(h.buf[:8])
	h.buf = h.buf[8:]
	return v
}

// Uint64n returns a uniform value in [0, n) using rejection sampling so large
// n do not bias towards low values.
func (h *HashSource) Uint64n(n uint64) uint64 {
	if n <= 1 {
		return 0
	}
	limit := ^uint64(0) - (^uint64(0) % n)
	for {
		v := h.next()
		if v < limit {
			return v % n
		}
	}
}

// CryptoSource draws from the operating system CSPRNG. Draws are not
// reproducible.
type CryptoSource struct{}

// Uint64n implements Source.
func (CryptoSource) Uint64n(n uint64) uint64 {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, new(big.Int).SetUint64(n))
	if err != nil {
		panic("wheel: crypto/rand unavailable: " + err.Error())
	}
	return v.Uint64()
}

// FixedSource replays a scripted sequence, wrapping each value into range.
// It is intended for tests and for replaying an audited draw.
type FixedSource struct {
	Values []uint64
	pos    int
}

// Uint64n implements Source.
func (f *FixedSource) Uint64n(n uint64) uint64 {
	if n == 0 || len(f.Values) == 0 {
		return 0
	}
	v := f.Values[f.pos%len(f.Values)]
	f.pos++
	return v % n
}
