// Global agreement on types shared by the bridge components and their
// external collaborators.

package agreement

import (
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/common"
)

// MerkleProof proves a tx hash against a block merkle root. IntermediateNodes
// is the concatenation of the 32-byte sibling hashes from leaf to root and
// Index the position of the tx in the block.
type MerkleProof struct {
	IntermediateNodes []byte
	Index             uint64
}

// Siblings splits IntermediateNodes into hashes.
func (p *MerkleProof) Siblings() ([]chainhash.Hash, error) {
	if len(p.IntermediateNodes)%chainhash.HashSize != 0 {
		return nil, fmt.Errorf("merkle proof length %d is not a multiple of %d", len(p.IntermediateNodes), chainhash.HashSize)
	}
	n := len(p.IntermediateNodes) / chainhash.HashSize
	out := make([]chainhash.Hash, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], p.IntermediateNodes[i*chainhash.HashSize:(i+1)*chainhash.HashSize])
	}
	return out, nil
}

type SwapRequest struct {
	AmountIn     *big.Int
	TokenIn      common.Address
	TokenOut     common.Address
	MinAmountOut *big.Int
	Recipient    common.Address
	Deadline     time.Time
}

func (r *SwapRequest) String() string {
	return fmt.Sprintf("SwapRequest{AmountIn: %s, TokenIn: %s, TokenOut: %s, MinAmountOut: %s, Recipient: %s, Deadline: %d}",
		r.AmountIn, r.TokenIn.Hex(), r.TokenOut.Hex(), r.MinAmountOut, r.Recipient.Hex(), r.Deadline.Unix())
}
