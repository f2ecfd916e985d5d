package exchange

import (
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/ledger"
	"github.com/TEENet-io/teleport-bridge/state"
)

var _ agreement.Token = (*ledger.Ledger)(nil)

type env struct {
	host   *state.Host
	clock  *state.SimulatedClock
	ex     *Simulated
	a, b   *ledger.Ledger
	minter ethcommon.Address
	lp     ethcommon.Address
}

func newEnv(t *testing.T) *env {
	host, clock := state.NewSimulatedHost()
	e := &env{
		host:   host,
		clock:  clock,
		ex:     New(&Config{Address: common.RandEthAddress()}),
		a:      ledger.RandLedger("A", 18),
		b:      ledger.RandLedger("B", 18),
		minter: common.RandEthAddress(),
		lp:     common.RandEthAddress(),
	}
	e.ex.RegisterToken(e.a)
	e.ex.RegisterToken(e.b)

	_, err := host.Execute(e.minter, func(ctx *state.Context) error {
		for _, l := range []*ledger.Ledger{e.a, e.b} {
			if err := l.Init(ctx, e.minter); err != nil {
				return err
			}
			if err := l.AddMinter(ctx, e.minter); err != nil {
				return err
			}
			if err := l.Mint(ctx, e.lp, big.NewInt(1000)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	_, err = host.Execute(e.lp, func(ctx *state.Context) error {
		if err := e.a.Approve(ctx, e.ex.Address(), big.NewInt(1000)); err != nil {
			return err
		}
		if err := e.b.Approve(ctx, e.ex.Address(), big.NewInt(1000)); err != nil {
			return err
		}
		return e.ex.AddLiquidity(ctx, e.a.Address(), e.b.Address(), big.NewInt(1000), big.NewInt(1000))
	})
	require.NoError(t, err)
	return e
}

func TestSwap(t *testing.T) {
	e := newEnv(t)
	trader, recipient := common.RandEthAddress(), common.RandEthAddress()

	_, err := e.host.Execute(e.minter, func(ctx *state.Context) error {
		return e.a.Mint(ctx, trader, big.NewInt(100))
	})
	require.NoError(t, err)

	var quoted *big.Int
	_ = e.host.View(func(ctx *state.Context) error {
		ok, in, err := e.ex.QuoteInputForOutput(ctx, big.NewInt(90), e.a.Address(), e.b.Address())
		assert.NoError(t, err)
		assert.True(t, ok)
		quoted = in
		return nil
	})
	assert.Equal(t, big.NewInt(100), quoted)

	events, err := e.host.Execute(trader, func(ctx *state.Context) error {
		if err := e.a.Approve(ctx, e.ex.Address(), big.NewInt(100)); err != nil {
			return err
		}
		ok, out, err := e.ex.Swap(ctx, &agreement.SwapRequest{
			AmountIn:     big.NewInt(100),
			TokenIn:      e.a.Address(),
			TokenOut:     e.b.Address(),
			MinAmountOut: big.NewInt(90),
			Recipient:    recipient,
			Deadline:     ctx.Now().Add(time.Minute),
		})
		assert.True(t, ok)
		assert.Equal(t, big.NewInt(90), out)
		return err
	})
	require.NoError(t, err)
	assert.Len(t, state.FindEvents(events, "Swap"), 1)

	_ = e.host.View(func(ctx *state.Context) error {
		bal, _ := e.b.BalanceOf(ctx, recipient)
		assert.Equal(t, big.NewInt(90), bal)
		ra, rb, err := e.ex.Reserves(ctx, e.a.Address(), e.b.Address())
		assert.NoError(t, err)
		assert.Equal(t, big.NewInt(1100), ra)
		assert.Equal(t, big.NewInt(910), rb)
		return nil
	})
}

func TestSwapRejections(t *testing.T) {
	e := newEnv(t)
	trader := common.RandEthAddress()
	unknown := common.RandEthAddress()

	_, err := e.host.Execute(e.minter, func(ctx *state.Context) error {
		return e.a.Mint(ctx, trader, big.NewInt(100))
	})
	require.NoError(t, err)

	cases := map[string]*agreement.SwapRequest{
		"unknown token": {AmountIn: big.NewInt(100), TokenIn: e.a.Address(), TokenOut: unknown, Deadline: e.clock.T.Add(time.Minute)},
		"deadline":      {AmountIn: big.NewInt(100), TokenIn: e.a.Address(), TokenOut: e.b.Address(), Deadline: e.clock.T.Add(-time.Second)},
		"min output":    {AmountIn: big.NewInt(100), TokenIn: e.a.Address(), TokenOut: e.b.Address(), MinAmountOut: big.NewInt(91), Deadline: e.clock.T.Add(time.Minute)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			req.Recipient = trader
			_, err := e.host.Execute(trader, func(ctx *state.Context) error {
				ok, _, err := e.ex.Swap(ctx, req)
				assert.False(t, ok)
				return err
			})
			assert.NoError(t, err)
		})
	}

	_ = e.host.View(func(ctx *state.Context) error {
		bal, _ := e.a.BalanceOf(ctx, trader)
		assert.Equal(t, big.NewInt(100), bal)
		ok, _, err := e.ex.QuoteInputForOutput(ctx, big.NewInt(1000), e.a.Address(), e.b.Address())
		assert.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
}
