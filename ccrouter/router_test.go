package ccrouter

import (
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/lockers"
	"github.com/TEENet-io/teleport-bridge/state"
)

const (
	testChainID       = 137
	testTransferAppID = 1
	testExchangeAppID = 2
	testBlockHeight   = 800000
)

type stubOracle struct {
	accept bool
	err    error
	calls  int
}

func (o *stubOracle) Verify(txID chainhash.Hash, blockHeight uint64, proof *agreement.MerkleProof) (bool, error) {
	o.calls++
	return o.accept, o.err
}

type testEnv struct {
	*lockers.SimulatedEnv
	oracle   *stubOracle
	transfer *TransferRouter
	exchange *ExchangeRouter

	locker   ethcommon.Address
	script   []byte
	relayer  ethcommon.Address
	user     ethcommon.Address
	treasury ethcommon.Address
	proof    *agreement.MerkleProof
}

func newTestEnv(t *testing.T, connector agreement.ExchangeConnector) *testEnv {
	sim, err := lockers.NewSimulatedEnv(lockers.SimulatedParams(), nil)
	require.NoError(t, err)

	env := &testEnv{
		SimulatedEnv: sim,
		oracle:       &stubOracle{accept: true},
		locker:       common.RandEthAddress(),
		relayer:      common.RandEthAddress(),
		user:         common.RandEthAddress(),
		treasury:     common.RandEthAddress(),
		proof:        &agreement.MerkleProof{IntermediateNodes: common.RandBytes(64), Index: 1},
	}
	if connector == nil {
		connector = sim.Exchange
	}
	params := Params{
		ChainID:               testChainID,
		ProtocolPercentageFee: 5,
		Treasury:              env.treasury,
		StartingBlockHeight:   700000,
	}
	transferParams, exchangeParams := params, params
	transferParams.AppID = testTransferAppID
	exchangeParams.AppID = testExchangeAppID

	env.transfer = NewTransferRouter(&Config{
		Address:      common.RandEthAddress(),
		Oracle:       env.oracle,
		Registry:     sim.Registry,
		WrappedToken: sim.Wrapped,
		Params:       transferParams,
	})
	env.exchange = NewExchangeRouter(&Config{
		Address:      common.RandEthAddress(),
		Oracle:       env.oracle,
		Registry:     sim.Registry,
		WrappedToken: sim.Wrapped,
		Connector:    connector,
		Params:       exchangeParams,
	})

	_, err = sim.Host.Execute(sim.Owner, func(ctx *state.Context) error {
		if err := env.transfer.Init(ctx, sim.Owner); err != nil {
			return err
		}
		if err := env.exchange.Init(ctx, sim.Owner); err != nil {
			return err
		}
		if err := sim.Registry.AddMinter(ctx, env.transfer.Address()); err != nil {
			return err
		}
		return sim.Registry.AddMinter(ctx, env.exchange.Address())
	})
	require.NoError(t, err)

	env.script, err = sim.OnboardLocker(env.locker, common.Ether(500), new(big.Int))
	require.NoError(t, err)
	return env
}

func (env *testEnv) transferTx(value int64, fee uint16) *common.TxFields {
	req := &common.TransferRequest{
		ChainID:       testChainID,
		AppID:         testTransferAppID,
		Recipient:     env.user,
		PercentageFee: fee,
	}
	return common.NewDepositTxFields(env.script, value, req.Encode())
}

func (env *testEnv) processTransfer(tx *common.TxFields, script []byte, height uint64) (*Request, []state.Event, error) {
	var rec *Request
	events, err := env.Host.Execute(env.relayer, func(ctx *state.Context) error {
		var err error
		rec, err = env.transfer.ProcessTransfer(ctx, tx, script, height, env.proof)
		return err
	})
	return rec, events, err
}

func (env *testEnv) supply(t *testing.T) *big.Int {
	var supply *big.Int
	require.NoError(t, env.Host.View(func(ctx *state.Context) error {
		var err error
		supply, err = env.Wrapped.TotalSupply(ctx)
		return err
	}))
	return supply
}

func (env *testEnv) isUsed(t *testing.T, r *router, tx *common.TxFields) bool {
	var used bool
	require.NoError(t, env.Host.View(func(ctx *state.Context) error {
		var err error
		used, err = r.IsUsed(ctx, tx.TxID())
		return err
	}))
	return used
}

func (env *testEnv) request(t *testing.T, r *router, tx *common.TxFields) *Request {
	var rec *Request
	require.NoError(t, env.Host.View(func(ctx *state.Context) error {
		var err error
		rec, _, err = r.GetRequest(ctx, tx.TxID())
		return err
	}))
	return rec
}

func TestProcessTransfer(t *testing.T) {
	env := newTestEnv(t, nil)
	tx := env.transferTx(100000, 100)

	rec, events, err := env.processTransfer(tx, env.script, testBlockHeight)
	require.NoError(t, err)
	assert.Equal(t, 1, env.oracle.calls)
	assert.Len(t, state.FindEvents(events, "CCTransfer"), 1)
	assert.Len(t, state.FindEvents(events, "MintByLocker"), 1)

	// 1% teleporter, 0.2% locker, 0.05% protocol
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, big.NewInt(1000), rec.TeleporterFee)
	assert.Equal(t, big.NewInt(200), rec.LockerFee)
	assert.Equal(t, big.NewInt(50), rec.ProtocolFee)
	assert.Equal(t, big.NewInt(98750), rec.NetAmount)
	assert.Equal(t, env.locker, rec.Locker)
	assert.Equal(t, env.relayer, rec.Teleporter)

	assert.Equal(t, big.NewInt(98750), env.Balance(env.Wrapped, env.user))
	assert.Equal(t, big.NewInt(1000), env.Balance(env.Wrapped, env.relayer))
	assert.Equal(t, big.NewInt(200), env.Balance(env.Wrapped, env.locker))
	assert.Equal(t, big.NewInt(50), env.Balance(env.Wrapped, env.treasury))
	assert.Equal(t, 0, env.Balance(env.Wrapped, env.transfer.Address()).Sign())
	assert.Equal(t, big.NewInt(100000), env.supply(t))
	assert.Equal(t, big.NewInt(100000), env.Locker(env.locker).NetMinted)

	stored := env.request(t, env.transfer.router, tx)
	require.NotNil(t, stored)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Equal(t, env.user, stored.Recipient)
	assert.Equal(t, uint64(testBlockHeight), stored.BlockHeight)
	assert.True(t, env.isUsed(t, env.transfer.router, tx))
}

func TestProcessTransferTwice(t *testing.T) {
	env := newTestEnv(t, nil)
	tx := env.transferTx(100000, 0)

	_, _, err := env.processTransfer(tx, env.script, testBlockHeight)
	require.NoError(t, err)
	_, _, err = env.processTransfer(tx, env.script, testBlockHeight)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.ErrorIs(t, err, common.ErrAlreadyProcessed)

	// the fingerprint is checked before the oracle
	assert.Equal(t, 1, env.oracle.calls)
	assert.Equal(t, big.NewInt(100000), env.supply(t))
}

func TestProcessTransferReentrancy(t *testing.T) {
	env := newTestEnv(t, nil)
	tx := env.transferTx(100000, 0)

	var reentered error
	env.Wrapped.SetReceiveHook(env.user, func(ctx *state.Context, from ethcommon.Address, amount *big.Int) error {
		_, reentered = env.transfer.ProcessTransfer(ctx, tx, env.script, testBlockHeight, env.proof)
		return nil
	})
	defer env.Wrapped.SetReceiveHook(env.user, nil)

	_, _, err := env.processTransfer(tx, env.script, testBlockHeight)
	require.NoError(t, err)
	assert.ErrorIs(t, reentered, ErrAlreadyProcessed)
	assert.Equal(t, big.NewInt(100000), env.supply(t))
	assert.Equal(t, big.NewInt(100000), env.Locker(env.locker).NetMinted)
}

func TestProcessTransferRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	encode := func(mutate func(r *common.TransferRequest)) []byte {
		req := &common.TransferRequest{
			ChainID:   testChainID,
			AppID:     testTransferAppID,
			Recipient: env.user,
		}
		mutate(req)
		return req.Encode()
	}
	badSpeed := encode(func(r *common.TransferRequest) {})
	badSpeed[26] = 2

	tests := []struct {
		name    string
		value   int64
		payload []byte
		err     error
	}{
		{"chain mismatch", 1000, encode(func(r *common.TransferRequest) { r.ChainID = 1 }), ErrChainMismatch},
		{"app mismatch", 1000, encode(func(r *common.TransferRequest) { r.AppID = testExchangeAppID }), ErrAppMismatch},
		{"invalid speed", 1000, badSpeed, common.ErrInvalidSpeed},
		{"fees above total", 1000, encode(func(r *common.TransferRequest) { r.PercentageFee = 9980 }), common.ErrFeeOutOfRange},
		{"teleporter fee above total", 1000, encode(func(r *common.TransferRequest) { r.PercentageFee = 10001 }), common.ErrFeeOutOfRange},
		{"short payload", 1000, encode(func(r *common.TransferRequest) {})[:20], common.ErrPayloadLength},
		{"no payload", 1000, nil, common.ErrNoOpReturn},
		{"zero value", 0, encode(func(r *common.TransferRequest) {}), ErrZeroAmount},
		{"zero recipient", 1000, encode(func(r *common.TransferRequest) { r.Recipient = ethcommon.Address{} }), ErrZeroRecipient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := common.NewDepositTxFields(env.script, tt.value, tt.payload)
			require.NotNil(t, tx)

			rec, events, err := env.processTransfer(tx, env.script, testBlockHeight)
			assert.ErrorIs(t, err, tt.err)
			assert.True(t, state.IsPersisted(err))
			require.NotNil(t, rec)
			assert.Equal(t, StatusRejected, rec.Status)
			assert.Len(t, state.FindEvents(events, "RequestRejected"), 1)
			assert.Empty(t, state.FindEvents(events, "CCTransfer"))

			assert.True(t, env.isUsed(t, env.transfer.router, tx))
			stored := env.request(t, env.transfer.router, tx)
			require.NotNil(t, stored)
			assert.Equal(t, StatusRejected, stored.Status)
			assert.NotEmpty(t, stored.Reason)

			_, _, err = env.processTransfer(tx, env.script, testBlockHeight)
			assert.ErrorIs(t, err, ErrAlreadyProcessed)
		})
	}
	assert.Equal(t, 0, env.supply(t).Sign())
}

func TestProcessTransferOperatorFeesAboveTotal(t *testing.T) {
	env := newTestEnv(t, nil)

	// the router sees the registry fees when its own fee is set
	_, err := env.Host.Execute(env.Owner, func(ctx *state.Context) error {
		return env.transfer.SetProtocolPercentageFee(ctx, 9990)
	})
	assert.ErrorIs(t, err, common.ErrFeeOutOfRange)

	// the registry does not see the router fees
	setLockerFee := func(fee uint64) {
		_, err := env.Host.Execute(env.Owner, func(ctx *state.Context) error {
			return env.Registry.SetLockerPercentageFee(ctx, fee)
		})
		require.NoError(t, err)
	}
	setLockerFee(9999)

	tx := env.transferTx(100000, 0)
	rec, events, err := env.processTransfer(tx, env.script, testBlockHeight)
	assert.ErrorIs(t, err, ErrFeesMisconfigured)
	assert.ErrorIs(t, err, common.ErrInvalidState)
	assert.NotErrorIs(t, err, common.ErrFeeOutOfRange)
	assert.False(t, state.IsPersisted(err))
	assert.Nil(t, rec)
	assert.Empty(t, events)
	assert.False(t, env.isUsed(t, env.transfer.router, tx))
	assert.Nil(t, env.request(t, env.transfer.router, tx))

	_, _, err = env.processExchange(env.exchangeTx(100000, env.Collateral.Address(), common.Ether(1), env.Clock.T.Add(time.Hour), false))
	assert.ErrorIs(t, err, ErrFeesMisconfigured)

	// the deposit goes through once the operator fixes the fees
	setLockerFee(20)
	rec, _, err = env.processTransfer(tx, env.script, testBlockHeight)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, big.NewInt(99750), env.Balance(env.Wrapped, env.user))
	assert.Equal(t, big.NewInt(100000), env.supply(t))
}

func TestProcessTransferReverts(t *testing.T) {
	env := newTestEnv(t, nil)
	tx := env.transferTx(100000, 0)

	_, _, err := env.processTransfer(nil, env.script, testBlockHeight)
	assert.ErrorIs(t, err, ErrNilTx)

	_, _, err = env.processTransfer(tx, env.script, 699999)
	assert.ErrorIs(t, err, ErrRequestTooOld)

	env.oracle.accept = false
	_, _, err = env.processTransfer(tx, env.script, testBlockHeight)
	assert.ErrorIs(t, err, common.ErrProofInvalid)
	env.oracle.accept = true

	_, _, err = env.processTransfer(tx, common.RandLockingScript(), testBlockHeight)
	assert.ErrorIs(t, err, ErrLockerOutputNotFound)

	// pays a script that belongs to no locker
	stranger := common.RandLockingScript()
	strangerTx := common.NewDepositTxFields(stranger, 1000, (&common.TransferRequest{
		ChainID: testChainID, AppID: testTransferAppID, Recipient: env.user,
	}).Encode())
	_, _, err = env.processTransfer(strangerTx, stranger, testBlockHeight)
	assert.ErrorIs(t, err, lockers.ErrUnknownLocker)
	assert.False(t, env.isUsed(t, env.transfer.router, strangerTx))

	_, err = env.Host.Execute(env.Owner, env.transfer.Pause)
	require.NoError(t, err)
	_, _, err = env.processTransfer(tx, env.script, testBlockHeight)
	assert.ErrorIs(t, err, ErrPaused)
	_, err = env.Host.Execute(env.Owner, env.transfer.Unpause)
	require.NoError(t, err)

	// nothing above consumed the deposit
	assert.False(t, env.isUsed(t, env.transfer.router, tx))
	_, _, err = env.processTransfer(tx, env.script, testBlockHeight)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100000), env.supply(t))
}

func TestRouterParams(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.Host.Execute(env.relayer, func(ctx *state.Context) error {
		return env.transfer.SetProtocolPercentageFee(ctx, 10)
	})
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	_, err = env.Host.Execute(env.Owner, func(ctx *state.Context) error {
		return env.transfer.SetProtocolPercentageFee(ctx, common.PercentageDenominator+1)
	})
	assert.ErrorIs(t, err, common.ErrFeeOutOfRange)

	newTreasury := common.RandEthAddress()
	events, err := env.Host.Execute(env.Owner, func(ctx *state.Context) error {
		if err := env.transfer.SetProtocolPercentageFee(ctx, 10); err != nil {
			return err
		}
		if err := env.transfer.SetTreasury(ctx, newTreasury); err != nil {
			return err
		}
		return env.transfer.SetStartingBlockHeight(ctx, testBlockHeight+1)
	})
	require.NoError(t, err)
	assert.Len(t, state.FindEvents(events, "NewProtocolPercentageFee"), 1)

	require.NoError(t, env.Host.View(func(ctx *state.Context) error {
		p, err := env.transfer.Params(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), p.ProtocolPercentageFee)
		assert.Equal(t, newTreasury, p.Treasury)
		assert.Equal(t, uint64(testBlockHeight+1), p.StartingBlockHeight)

		// the exchange router keeps its own params
		p, err = env.exchange.Params(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), p.ProtocolPercentageFee)
		return nil
	}))

	tx := env.transferTx(100000, 0)
	_, _, err = env.processTransfer(tx, env.script, testBlockHeight)
	assert.ErrorIs(t, err, ErrRequestTooOld)
}
