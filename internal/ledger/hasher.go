package ledger

import (
	"crypto/sha256"
	"encoding/binary"
)

const GenesisHashSeed = "TxLedger:genesis:v1"

// StateHasher computes the deterministic hash chain over engine state.
type StateHasher struct {
	prevHash [32]byte
}

// NewStateHasher initializes with the genesis hash.
func NewStateHasher() *StateHasher {
	return &StateHasher{
		prevHash: sha256.Sum256([]byte(GenesisHashSeed)),
	}
}

// ComputeHash calculates state_hash[N] = SHA-256(prev_hash || sequence || state_digest)
func (h *StateHasher) ComputeHash(sequence int64, stateDigest []byte) [32]byte {
	hasher := sha256.New()

	hasher.Write(h.prevHash[:])

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))
	hasher.Write(seqBuf[:])

	hasher.Write(stateDigest)

	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))

	h.prevHash = hash

	return hash
}

// GetPrevHash returns the current chain tip.
func (h *StateHasher) GetPrevHash() [32]byte {
	return h.prevHash
}

// digestAccounts produces a canonical byte digest of the account table.
// Accounts are walked in client order so the digest is stable across
// runs regardless of map iteration order.
func digestAccounts(accounts []Account) []byte {
	h := sha256.New()

	var buf [8]byte
	for _, a := range accounts {
		binary.LittleEndian.PutUint16(buf[:2], a.Client)
		h.Write(buf[:2])

		binary.LittleEndian.PutUint64(buf[:], uint64(a.Available))
		h.Write(buf[:])

		binary.LittleEndian.PutUint64(buf[:], uint64(a.Held))
		h.Write(buf[:])

		if a.Locked {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}

	return h.Sum(nil)
}
