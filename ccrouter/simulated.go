package ccrouter

import (
	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/lockers"
	"github.com/TEENet-io/teleport-bridge/state"
)

const (
	SimulatedChainID       = 137
	SimulatedTransferAppID = 1
	SimulatedExchangeAppID = 2
)

// SimulatedBridge is a simulated locker environment with both routers
// registered as minters.
type SimulatedBridge struct {
	*lockers.SimulatedEnv
	Transfer *TransferRouter
	Exchange *ExchangeRouter
}

// NewSimulatedBridge uses params for both routers, with the app ids set to
// SimulatedTransferAppID and SimulatedExchangeAppID. The exchange router
// swaps through the simulated exchange.
func NewSimulatedBridge(oracle agreement.InclusionOracle, params Params) (*SimulatedBridge, error) {
	sim, err := lockers.NewSimulatedEnv(lockers.SimulatedParams(), nil)
	if err != nil {
		return nil, err
	}

	transferParams, exchangeParams := params, params
	transferParams.AppID = SimulatedTransferAppID
	exchangeParams.AppID = SimulatedExchangeAppID

	b := &SimulatedBridge{
		SimulatedEnv: sim,
		Transfer: NewTransferRouter(&Config{
			Address:      common.RandEthAddress(),
			Oracle:       oracle,
			Registry:     sim.Registry,
			WrappedToken: sim.Wrapped,
			Params:       transferParams,
		}),
		Exchange: NewExchangeRouter(&Config{
			Address:      common.RandEthAddress(),
			Oracle:       oracle,
			Registry:     sim.Registry,
			WrappedToken: sim.Wrapped,
			Connector:    sim.Exchange,
			Params:       exchangeParams,
		}),
	}

	_, err = sim.Host.Execute(sim.Owner, func(ctx *state.Context) error {
		for _, r := range []*router{b.Transfer.router, b.Exchange.router} {
			if err := r.Init(ctx, sim.Owner); err != nil {
				return err
			}
			if err := sim.Registry.AddMinter(ctx, r.Address()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
