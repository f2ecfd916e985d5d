package agreement

import (
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/common"

	"github.com/TEENet-io/teleport-bridge/state"
)

// InclusionOracle answers whether a base-chain transaction is included, with
// enough confirmations, in the block at blockHeight.
type InclusionOracle interface {
	Verify(txID chainhash.Hash, blockHeight uint64, proof *MerkleProof) (bool, error)
}

// PriceFeed is a single price source, e.g. TDT/BTC. The answer is scaled
// by 10^Decimals().
type PriceFeed interface {
	Decimals() uint8
	LatestRoundData() (price *big.Int, updatedAt time.Time, err error)
}

// Token is the fungible token surface the core needs from any ledger.
type Token interface {
	Address() common.Address
	Decimals() uint8
	BalanceOf(ctx *state.Context, addr common.Address) (*big.Int, error)
	Transfer(ctx *state.Context, to common.Address, amount *big.Int) error
	TransferFrom(ctx *state.Context, from, to common.Address, amount *big.Int) error
	Approve(ctx *state.Context, spender common.Address, amount *big.Int) error
}

// ExchangeConnector swaps tokens on behalf of the caller of ctx. Swap pulls
// AmountIn of TokenIn from the caller (who must have approved Address()) and
// pays the output to Recipient.
//
// A false result means the swap could not be satisfied (deadline, liquidity,
// minimum output). Nothing has moved in that case.
type ExchangeConnector interface {
	Address() common.Address
	Swap(ctx *state.Context, req *SwapRequest) (bool, *big.Int, error)
	// QuoteInputForOutput returns the TokenIn amount needed to receive amountOut of tokenOut.
	QuoteInputForOutput(ctx *state.Context, amountOut *big.Int, tokenIn, tokenOut common.Address) (bool, *big.Int, error)
}
