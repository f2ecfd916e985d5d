package ccrouter

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/ledger"
	"github.com/TEENet-io/teleport-bridge/lockers"
)

type Config struct {
	// Address is the identity of the router. It must be a registry minter
	// and receives minted wrapped asset before distribution.
	Address ethcommon.Address

	Oracle       agreement.InclusionOracle
	Registry     *lockers.Registry
	WrappedToken *ledger.Ledger
	// Connector is used by the exchange router only.
	Connector agreement.ExchangeConnector

	// Params are stored by Init.
	Params Params
}

// Params are the router parameters set by the owner.
type Params struct {
	ChainID uint16
	AppID   uint16
	// ProtocolPercentageFee is paid to Treasury, parts per 10000 of the
	// deposited amount.
	ProtocolPercentageFee uint64
	Treasury              ethcommon.Address
	// Deposits included below StartingBlockHeight are refused.
	StartingBlockHeight uint64
	Paused              bool
}

func (p *Params) validate() error {
	if p.ProtocolPercentageFee > common.PercentageDenominator {
		return fmt.Errorf("%w: protocol fee %d", common.ErrFeeOutOfRange, p.ProtocolPercentageFee)
	}
	if p.ProtocolPercentageFee > 0 && p.Treasury == (ethcommon.Address{}) {
		return fmt.Errorf("%w: protocol fee without treasury", common.ErrInvalidArgument)
	}
	return nil
}
