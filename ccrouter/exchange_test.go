package ccrouter

import (
	"errors"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/state"
)

type mockConnector struct {
	mock.Mock
	addr ethcommon.Address
}

func (c *mockConnector) Address() ethcommon.Address { return c.addr }

func (c *mockConnector) Swap(ctx *state.Context, req *agreement.SwapRequest) (bool, *big.Int, error) {
	args := c.Called(req)
	out, _ := args.Get(1).(*big.Int)
	return args.Bool(0), out, args.Error(2)
}

func (c *mockConnector) QuoteInputForOutput(ctx *state.Context, amountOut *big.Int, tokenIn, tokenOut ethcommon.Address) (bool, *big.Int, error) {
	args := c.Called(amountOut, tokenIn, tokenOut)
	in, _ := args.Get(1).(*big.Int)
	return args.Bool(0), in, args.Error(2)
}

// 1 BTC = 20000 TDT in the pool, like the price feed.
func newExchangeEnv(t *testing.T) *testEnv {
	env := newTestEnv(t, nil)
	require.NoError(t, env.AddLiquidity(common.Ether(1000000), big.NewInt(50e8)))
	return env
}

func (env *testEnv) exchangeTx(value int64, token ethcommon.Address, output *big.Int, deadline time.Time, fixed bool) *common.TxFields {
	req := &common.ExchangeRequest{
		TransferRequest: common.TransferRequest{
			ChainID:   testChainID,
			AppID:     testExchangeAppID,
			Recipient: env.user,
		},
		ExchangeToken: token,
		OutputAmount:  output,
		Deadline:      uint32(deadline.Unix()),
		IsFixedToken:  fixed,
	}
	payload, err := req.Encode()
	if err != nil {
		return nil
	}
	return common.NewDepositTxFields(env.script, value, payload)
}

func (env *testEnv) processExchange(tx *common.TxFields) (*Request, []state.Event, error) {
	var rec *Request
	events, err := env.Host.Execute(env.relayer, func(ctx *state.Context) error {
		var err error
		rec, err = env.exchange.ProcessExchange(ctx, tx, env.script, testBlockHeight, env.proof)
		return err
	})
	return rec, events, err
}

func TestProcessExchange(t *testing.T) {
	env := newExchangeEnv(t)
	supplyBefore := env.supply(t)
	tx := env.exchangeTx(1000000, env.Collateral.Address(), common.Ether(100), env.Clock.T.Add(time.Hour), false)

	rec, events, err := env.processExchange(tx)
	require.NoError(t, err)
	assert.Len(t, state.FindEvents(events, "CCExchange"), 1)
	assert.Empty(t, state.FindEvents(events, "FailedCCExchange"))

	assert.Equal(t, StatusExchanged, rec.Status)
	// 0.2% locker, 0.05% protocol
	assert.Equal(t, big.NewInt(997500), rec.NetAmount)
	assert.True(t, rec.ExchangedAmount.Cmp(common.Ether(100)) >= 0)
	assert.Equal(t, rec.ExchangedAmount, env.Balance(env.Collateral, env.user))
	assert.Equal(t, 0, env.Balance(env.Wrapped, env.user).Sign())
	assert.Equal(t, 0, env.Balance(env.Wrapped, env.exchange.Address()).Sign())
	assert.Equal(t, new(big.Int).Add(supplyBefore, big.NewInt(1000000)), env.supply(t))

	require.NoError(t, env.Host.View(func(ctx *state.Context) error {
		allowance, err := env.Wrapped.Allowance(ctx, env.exchange.Address(), env.Exchange.Address())
		require.NoError(t, err)
		assert.Equal(t, 0, allowance.Sign())
		return nil
	}))

	_, _, err = env.processExchange(tx)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestProcessExchangeFixedToken(t *testing.T) {
	env := newExchangeEnv(t)
	output := common.Ether(100)
	tx := env.exchangeTx(1000000, env.Collateral.Address(), output, env.Clock.T.Add(time.Hour), true)

	rec, _, err := env.processExchange(tx)
	require.NoError(t, err)
	assert.Equal(t, StatusExchanged, rec.Status)

	received := env.Balance(env.Collateral, env.user)
	assert.True(t, received.Cmp(output) >= 0)
	// just above the exact output, never the whole net amount's worth
	assert.True(t, received.Cmp(common.Ether(101)) < 0)

	remainder := env.Balance(env.Wrapped, env.user)
	assert.True(t, remainder.Sign() > 0)
	assert.True(t, remainder.Cmp(rec.NetAmount) < 0)
	assert.Equal(t, 0, env.Balance(env.Wrapped, env.exchange.Address()).Sign())
}

func TestProcessExchangeFallback(t *testing.T) {
	tests := []struct {
		name     string
		token    func(env *testEnv) ethcommon.Address
		output   *big.Int
		deadline time.Duration
		fixed    bool
	}{
		{"deadline passed", collateralToken, common.Ether(100), -time.Second, false},
		{"below minimum output", collateralToken, common.Ether(1000), time.Hour, false},
		{"fixed output too expensive", collateralToken, common.Ether(1000), time.Hour, true},
		{"unknown token", func(env *testEnv) ethcommon.Address { return common.RandEthAddress() }, common.Ether(1), time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newExchangeEnv(t)
			tx := env.exchangeTx(1000000, tt.token(env), tt.output, env.Clock.T.Add(tt.deadline), tt.fixed)

			rec, events, err := env.processExchange(tx)
			require.NoError(t, err)
			assert.Equal(t, StatusExchangeFallback, rec.Status)
			assert.Len(t, state.FindEvents(events, "FailedCCExchange"), 1)
			assert.Empty(t, state.FindEvents(events, "CCExchange"))
			assert.Empty(t, state.FindEvents(events, "Swap"))

			assert.Equal(t, big.NewInt(997500), env.Balance(env.Wrapped, env.user))
			assert.Equal(t, 0, env.Balance(env.Collateral, env.user).Sign())
			assert.Equal(t, 0, env.Balance(env.Wrapped, env.exchange.Address()).Sign())
			assert.True(t, env.isUsed(t, env.exchange.router, tx))

			supply := env.supply(t)
			_, _, err = env.processExchange(tx)
			assert.ErrorIs(t, err, ErrAlreadyProcessed)
			assert.Equal(t, supply, env.supply(t))
			assert.Equal(t, big.NewInt(997500), env.Balance(env.Wrapped, env.user))
		})
	}
}

func collateralToken(env *testEnv) ethcommon.Address { return env.Collateral.Address() }

func TestProcessExchangeConnectorError(t *testing.T) {
	connector := &mockConnector{addr: common.RandEthAddress()}
	connector.On("Swap", mock.Anything).Return(false, nil, errors.New("connector down"))

	env := newTestEnv(t, connector)
	tx := env.exchangeTx(1000000, env.Collateral.Address(), common.Ether(1), env.Clock.T.Add(time.Hour), false)

	rec, events, err := env.processExchange(tx)
	require.NoError(t, err)
	connector.AssertNumberOfCalls(t, "Swap", 1)
	assert.Equal(t, StatusExchangeFallback, rec.Status)
	assert.Len(t, state.FindEvents(events, "FailedCCExchange"), 1)
	assert.Empty(t, state.FindEvents(events, "Approval"))
	assert.Equal(t, big.NewInt(997500), env.Balance(env.Wrapped, env.user))
}

func TestRoutersKeepSeparateRecords(t *testing.T) {
	env := newExchangeEnv(t)
	tx := env.exchangeTx(1000000, env.Collateral.Address(), common.Ether(1), env.Clock.T.Add(time.Hour), false)

	// an exchange payload is malformed for the transfer router
	_, _, err := env.processTransfer(tx, env.script, testBlockHeight)
	assert.ErrorIs(t, err, common.ErrPayloadLength)
	assert.True(t, env.isUsed(t, env.transfer.router, tx))
	assert.False(t, env.isUsed(t, env.exchange.router, tx))

	rec, _, err := env.processExchange(tx)
	require.NoError(t, err)
	assert.Equal(t, StatusExchanged, rec.Status)
}
