package lockers

import (
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/exchange"
	"github.com/TEENet-io/teleport-bridge/ledger"
	"github.com/TEENet-io/teleport-bridge/pricehealth"
	"github.com/TEENet-io/teleport-bridge/state"
)

const SimulatedPriceFeed = "BTC/TDT"

// SimulatedEnv is a registry wired to fresh ledgers, a price engine with a
// settable feed and a constant product exchange, over a memory database.
type SimulatedEnv struct {
	Host     *state.Host
	Clock    *state.SimulatedClock
	Owner    ethcommon.Address
	Treasury ethcommon.Address

	Wrapped    *ledger.Ledger
	Collateral *ledger.Ledger
	Native     *ledger.Ledger
	Engine     *pricehealth.Engine
	Feed       *pricehealth.SimulatedFeed
	Exchange   *exchange.Simulated
	Registry   *Registry
}

// SimulatedParams: 500 TDT minimum, 150% ratio, 0.2% locker fee, 5% penalty.
func SimulatedParams() Params {
	return Params{
		MinRequiredCollateral: common.Ether(500),
		MinRequiredNative:     new(big.Int),
		CollateralRatio:       15000,
		LockerPercentageFee:   20,
		SlashPenaltyRatio:     500,
	}
}

// NewSimulatedEnv prices 1 BTC at 20000 TDT. The owner owns every
// component and may mint any ledger. A nil connector means the simulated
// exchange.
func NewSimulatedEnv(params Params, connector agreement.ExchangeConnector) (*SimulatedEnv, error) {
	host, clock := state.NewSimulatedHost()
	env := &SimulatedEnv{
		Host:       host,
		Clock:      clock,
		Owner:      common.RandEthAddress(),
		Treasury:   params.Treasury,
		Wrapped:    ledger.RandLedger("TELEBTC", 8),
		Collateral: ledger.RandLedger("TDT", 18),
		Native:     ledger.RandLedger("NATIVE", 18),
		Engine:     pricehealth.New(&pricehealth.Config{AcceptableDelay: time.Hour}),
		Exchange:   exchange.New(&exchange.Config{Address: common.RandEthAddress()}),
	}
	env.Feed = pricehealth.NewSimulatedFeed(new(big.Int).Mul(big.NewInt(20000), big.NewInt(1e8)), 8, clock.T)
	env.Engine.RegisterFeed(SimulatedPriceFeed, env.Feed)
	for _, l := range []*ledger.Ledger{env.Wrapped, env.Collateral, env.Native} {
		env.Engine.RegisterToken(l.Address(), l.Decimals())
		env.Exchange.RegisterToken(l)
	}

	if connector == nil {
		connector = env.Exchange
	}
	env.Registry = New(&Config{
		Address:         common.RandEthAddress(),
		WrappedToken:    env.Wrapped,
		CollateralToken: env.Collateral,
		NativeToken:     env.Native,
		PriceEngine:     env.Engine,
		Connector:       connector,
		Params:          params,
	})

	_, err := host.Execute(env.Owner, func(ctx *state.Context) error {
		for _, l := range []*ledger.Ledger{env.Wrapped, env.Collateral, env.Native} {
			if err := l.Init(ctx, env.Owner); err != nil {
				return err
			}
			if err := l.AddMinter(ctx, env.Owner); err != nil {
				return err
			}
		}
		if err := env.Wrapped.AddMinter(ctx, env.Registry.Address()); err != nil {
			return err
		}
		if err := env.Wrapped.AddBurner(ctx, env.Registry.Address()); err != nil {
			return err
		}
		if err := env.Engine.Init(ctx, env.Owner); err != nil {
			return err
		}
		if err := env.Engine.SetPriceProxy(ctx, env.Wrapped.Address(), env.Collateral.Address(), SimulatedPriceFeed); err != nil {
			return err
		}
		return env.Registry.Init(ctx, env.Owner)
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// Fund mints amount of token to addr.
func (env *SimulatedEnv) Fund(token *ledger.Ledger, addr ethcommon.Address, amount *big.Int) error {
	_, err := env.Host.Execute(env.Owner, func(ctx *state.Context) error {
		return token.Mint(ctx, addr, amount)
	})
	return err
}

// OnboardLocker funds addr, requests candidacy with a random key and
// activates it. It returns the locking script.
func (env *SimulatedEnv) OnboardLocker(addr ethcommon.Address, collateral, native *big.Int) ([]byte, error) {
	if err := env.Fund(env.Collateral, addr, collateral); err != nil {
		return nil, err
	}
	if err := env.Fund(env.Native, addr, native); err != nil {
		return nil, err
	}

	pubKey := common.RandPubKey()
	script, err := common.P2PKHLockingScript(pubKey, common.ChainParams("mainnet"))
	if err != nil {
		return nil, err
	}
	_, err = env.Host.Execute(addr, func(ctx *state.Context) error {
		if err := env.Collateral.Approve(ctx, env.Registry.Address(), collateral); err != nil {
			return err
		}
		return env.Registry.RequestToBecomeLocker(ctx, pubKey, script, collateral, native)
	})
	if err != nil {
		return nil, err
	}
	_, err = env.Host.Execute(env.Owner, func(ctx *state.Context) error {
		return env.Registry.AddLocker(ctx, addr)
	})
	if err != nil {
		return nil, err
	}
	return script, nil
}

// AddLiquidity seeds the simulated exchange with a collateral/wrapped pool
// provided by the owner.
func (env *SimulatedEnv) AddLiquidity(collateral, wrapped *big.Int) error {
	if err := env.Fund(env.Collateral, env.Owner, collateral); err != nil {
		return err
	}
	if err := env.Fund(env.Wrapped, env.Owner, wrapped); err != nil {
		return err
	}
	_, err := env.Host.Execute(env.Owner, func(ctx *state.Context) error {
		if err := env.Collateral.Approve(ctx, env.Exchange.Address(), collateral); err != nil {
			return err
		}
		if err := env.Wrapped.Approve(ctx, env.Exchange.Address(), wrapped); err != nil {
			return err
		}
		return env.Exchange.AddLiquidity(ctx, env.Collateral.Address(), env.Wrapped.Address(), collateral, wrapped)
	})
	return err
}

// Balance reads the balance of addr on token.
func (env *SimulatedEnv) Balance(token *ledger.Ledger, addr ethcommon.Address) *big.Int {
	bal := new(big.Int)
	_ = env.Host.View(func(ctx *state.Context) error {
		b, err := token.BalanceOf(ctx, addr)
		if err == nil {
			bal = b
		}
		return err
	})
	return bal
}

// Locker reads the record of addr, nil if absent.
func (env *SimulatedEnv) Locker(addr ethcommon.Address) *Locker {
	var l *Locker
	_ = env.Host.View(func(ctx *state.Context) error {
		rec, ok, err := env.Registry.GetLocker(ctx, addr)
		if ok {
			l = rec
		}
		return err
	})
	return l
}
