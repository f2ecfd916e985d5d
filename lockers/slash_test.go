package lockers

import (
	"errors"
	"math/big"
	"testing"

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

type slashSetup struct {
	env         *SimulatedEnv
	locker      ethcommon.Address
	script      []byte
	router      ethcommon.Address
	user        ethcommon.Address
	beneficiary ethcommon.Address
}

func newSlashSetup(t *testing.T, connector agreement.ExchangeConnector) *slashSetup {
	env, err := NewSimulatedEnv(SimulatedParams(), connector)
	require.NoError(t, err)

	s := &slashSetup{
		env:         env,
		locker:      common.RandEthAddress(),
		router:      common.RandEthAddress(),
		user:        common.RandEthAddress(),
		beneficiary: common.RandEthAddress(),
	}
	s.script, err = env.OnboardLocker(s.locker, common.Ether(500), new(big.Int))
	require.NoError(t, err)
	require.NoError(t, env.exec(env.Owner, func(ctx *state.Context) error {
		return env.Registry.SetBurnRouter(ctx, s.router)
	}))
	return s
}

func (s *slashSetup) slash(caller ethcommon.Address, script []byte, reward, base int64) (*SlashResult, []state.Event, error) {
	var res *SlashResult
	events, err := s.env.Host.Execute(caller, func(ctx *state.Context) error {
		var err error
		res, err = s.env.Registry.SlashLocker(ctx, script, big.NewInt(reward), s.user, big.NewInt(base), s.beneficiary)
		return err
	})
	return res, events, err
}

func TestSlashLockerSwapsCollateral(t *testing.T) {
	s := newSlashSetup(t, nil)
	env := s.env
	// 1 BTC = 20000 TDT in the pool as well
	require.NoError(t, env.AddLiquidity(common.Ether(1000000), big.NewInt(50e8)))

	_, _, err := s.slash(s.user, s.script, 1000, 1000)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	_, _, err = s.slash(s.router, common.RandLockingScript(), 1000, 1000)
	assert.ErrorIs(t, err, ErrTargetNotLocker)

	res, events, err := s.slash(s.router, s.script, 1000, 1000)
	require.NoError(t, err)
	assert.True(t, res.Swapped)
	assert.False(t, res.Partial)
	assert.True(t, res.RewardWrapped.Cmp(big.NewInt(1000)) >= 0)
	assert.Len(t, state.FindEvents(events, "LockerSlashed"), 1)
	assert.Len(t, state.FindEvents(events, "Swap"), 1)

	// 5% of the 0.2 TDT that 1000 sats are worth
	assert.Equal(t, big.NewInt(1e16), res.PenaltyCollateral)
	assert.Equal(t, res.PenaltyCollateral, env.Balance(env.Collateral, s.beneficiary))
	assert.Equal(t, res.RewardWrapped, env.Balance(env.Wrapped, s.user))

	left := new(big.Int).Sub(common.Ether(500), res.Total())
	l := env.Locker(s.locker)
	assert.Equal(t, left, l.LockedCollateral)
	assert.Equal(t, res.Total(), l.Slashed)
	assert.Equal(t, 0, l.NetMinted.Sign())
	assert.Equal(t, left, env.Balance(env.Collateral, env.Registry.Address()))

	_ = env.Host.View(func(ctx *state.Context) error {
		allowance, err := env.Collateral.Allowance(ctx, env.Registry.Address(), env.Exchange.Address())
		require.NoError(t, err)
		assert.Equal(t, 0, allowance.Sign())
		return nil
	})
}

func TestSlashLockerCapsAtCollateral(t *testing.T) {
	s := newSlashSetup(t, nil)
	env := s.env
	require.NoError(t, env.AddLiquidity(common.Ether(1000000), big.NewInt(50e8)))

	// 1 BTC of reward is worth far more than the 500 TDT locked
	res, _, err := s.slash(s.router, s.script, 1e8, 1e8)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.True(t, res.Swapped)
	assert.Equal(t, common.Ether(500), res.RewardCollateral)
	assert.Equal(t, 0, res.PenaltyCollateral.Sign())
	assert.Equal(t, 0, env.Balance(env.Collateral, s.beneficiary).Sign())

	l := env.Locker(s.locker)
	assert.Equal(t, 0, l.LockedCollateral.Sign())
	assert.Equal(t, common.Ether(500), l.Slashed)
}

func TestSlashLockerWhenSwapFails(t *testing.T) {
	connector := &mockConnector{addr: common.RandEthAddress()}
	connector.On("QuoteInputForOutput", mock.Anything, mock.Anything, mock.Anything).Return(false, nil, nil)
	connector.On("Swap", mock.Anything).Return(false, nil, errors.New("pool drained"))

	s := newSlashSetup(t, connector)
	env := s.env

	res, events, err := s.slash(s.router, s.script, 1000, 1000)
	require.NoError(t, err)
	connector.AssertExpectations(t)

	assert.False(t, res.Swapped)
	assert.True(t, res.Partial)
	// no quote, so the reward is priced by the feed
	assert.Equal(t, big.NewInt(2e17), res.RewardCollateral)
	assert.Equal(t, res.RewardCollateral, env.Balance(env.Collateral, s.user))
	assert.Equal(t, 0, env.Balance(env.Wrapped, s.user).Sign())
	assert.Equal(t, big.NewInt(1e16), env.Balance(env.Collateral, s.beneficiary))
	assert.Empty(t, state.FindEvents(events, "Approval"))

	l := env.Locker(s.locker)
	assert.Equal(t, new(big.Int).Sub(common.Ether(500), res.Total()), l.LockedCollateral)
	assert.Equal(t, res.Total(), l.Slashed)

	_ = env.Host.View(func(ctx *state.Context) error {
		allowance, err := env.Collateral.Allowance(ctx, env.Registry.Address(), connector.Address())
		require.NoError(t, err)
		assert.Equal(t, 0, allowance.Sign())
		return nil
	})
}

func TestSlashRemovalRequestedLocker(t *testing.T) {
	connector := &mockConnector{addr: common.RandEthAddress()}
	connector.On("QuoteInputForOutput", mock.Anything, mock.Anything, mock.Anything).Return(true, big.NewInt(3e17), nil)
	connector.On("Swap", mock.Anything).Return(false, nil, nil)

	s := newSlashSetup(t, connector)
	require.NoError(t, s.env.exec(s.locker, s.env.Registry.RequestToRemoveLocker))

	res, _, err := s.slash(s.router, s.script, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3e17), res.RewardCollateral)
	assert.Equal(t, 0, res.PenaltyCollateral.Sign())
	assert.Equal(t, big.NewInt(3e17), s.env.Balance(s.env.Collateral, s.user))

	// the slasher capability moves with the burn router
	other := common.RandEthAddress()
	require.NoError(t, s.env.exec(s.env.Owner, func(ctx *state.Context) error {
		return s.env.Registry.SetBurnRouter(ctx, other)
	}))
	_, _, err = s.slash(s.router, s.script, 1000, 0)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	_, _, err = s.slash(other, s.script, 1000, 0)
	require.NoError(t, err)
}
