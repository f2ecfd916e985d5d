package btcrelay

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
)

// BuildMerkleProof builds the merkle tree of txIDs, duplicating the last
// hash of odd levels, and returns the proof of txIDs[index] and the root.
func BuildMerkleProof(txIDs []chainhash.Hash, index int) (*agreement.MerkleProof, chainhash.Hash) {
	if len(txIDs) == 0 || index < 0 || index >= len(txIDs) {
		return nil, chainhash.Hash{}
	}

	level := append([]chainhash.Hash{}, txIDs...)
	proof := &agreement.MerkleProof{Index: uint64(index)}
	pos := index
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		sibling := pos ^ 1
		proof.IntermediateNodes = append(proof.IntermediateNodes, level[sibling][:]...)

		next := make([]chainhash.Hash, len(level)/2)
		for i := range next {
			next[i] = HashMerkleBranches(&level[2*i], &level[2*i+1])
		}
		level = next
		pos /= 2
	}
	return proof, level[0]
}

// NewSimulatedHeader returns a header extending prev with merkleRoot.
func NewSimulatedHeader(prev chainhash.Hash, merkleRoot chainhash.Hash, timestamp time.Time) *wire.BlockHeader {
	return &wire.BlockHeader{
		Version:    0x20000000,
		PrevBlock:  prev,
		MerkleRoot: merkleRoot,
		Timestamp:  time.Unix(timestamp.Unix(), 0),
		Bits:       0x1d00ffff,
		Nonce:      uint32(common.RandBigInt(4).Uint64()),
	}
}

// RandTxIDs returns n random hashes.
func RandTxIDs(n int) []chainhash.Hash {
	out := make([]chainhash.Hash, n)
	for i := range out {
		copy(out[i][:], common.RandBytes(chainhash.HashSize))
	}
	return out
}
