package state

import (
	"errors"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/teleport-bridge/common"
)

var errBoom = errors.New("boom")

type recordingSink struct {
	events []Event
}

func (s *recordingSink) HandleEvents(events []Event) {
	s.events = append(s.events, events...)
}

type record struct {
	Name   string
	Amount *big.Int
	Owner  ethcommon.Address
}

func TestExecuteCommitAndRevert(t *testing.T) {
	host, clock := NewSimulatedHost()
	sink := &recordingSink{}
	host.Subscribe(sink)
	caller := common.RandEthAddress()
	key := Key("counter")

	events, err := host.Execute(caller, func(ctx *Context) error {
		assert.Equal(t, caller, ctx.Caller())
		assert.Equal(t, clock.T, ctx.Now())
		ctx.PutUint64(key, 7)
		ctx.Emit("Counted", logger.Fields{"value": 7})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Counted", events[0].Name)
	assert.NotEmpty(t, events[0].OpID)
	assert.Len(t, sink.events, 1)

	// a failing operation leaves no trace
	events, err = host.Execute(caller, func(ctx *Context) error {
		ctx.PutUint64(key, 8)
		ctx.Emit("Counted", logger.Fields{"value": 8})
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Nil(t, events)
	assert.Len(t, sink.events, 1)

	err = host.View(func(ctx *Context) error {
		v, err := ctx.GetUint64(key)
		assert.NoError(t, err)
		assert.Equal(t, uint64(7), v)
		ctx.PutUint64(key, 9)
		return nil
	})
	require.NoError(t, err)

	err = host.View(func(ctx *Context) error {
		v, err := ctx.GetUint64(key)
		assert.NoError(t, err)
		assert.Equal(t, uint64(7), v)
		return nil
	})
	require.NoError(t, err)

	// a persisted error keeps the writes
	_, err = host.Execute(caller, func(ctx *Context) error {
		ctx.PutUint64(key, 10)
		return Persist(errBoom)
	})
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, IsPersisted(err))
	_ = host.View(func(ctx *Context) error {
		v, _ := ctx.GetUint64(key)
		assert.Equal(t, uint64(10), v)
		return nil
	})

	_, err = host.Execute(caller, nil)
	assert.ErrorIs(t, err, ErrNilOperation)

	clock.Advance(time.Hour)
	_, _ = host.Execute(caller, func(ctx *Context) error {
		assert.Equal(t, int64(1700003600), ctx.Now().Unix())
		return nil
	})
}

func TestTry(t *testing.T) {
	host, _ := NewSimulatedHost()
	a, b := Key("a"), Key("b")

	events, err := host.Execute(common.RandEthAddress(), func(ctx *Context) error {
		ctx.PutBig(a, big.NewInt(1))

		err := ctx.Try(func(ctx *Context) error {
			ctx.PutBig(a, big.NewInt(2))
			ctx.PutBig(b, big.NewInt(2))
			ctx.Emit("Inner", nil)
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)

		v, _ := ctx.GetBig(a)
		assert.Equal(t, big.NewInt(1), v)
		ok, _ := ctx.Has(b)
		assert.False(t, ok)
		assert.Empty(t, ctx.Events())

		err = ctx.Try(func(ctx *Context) error {
			ctx.Delete(a)
			ctx.PutBig(b, big.NewInt(3))
			ctx.Emit("Inner", nil)
			return ctx.Try(func(ctx *Context) error {
				ctx.PutBool(Key("c"), true)
				return nil
			})
		})
		assert.NoError(t, err)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_ = host.View(func(ctx *Context) error {
		ok, _ := ctx.Has(a)
		assert.False(t, ok)
		v, _ := ctx.GetBig(b)
		assert.Equal(t, big.NewInt(3), v)
		c, _ := ctx.GetBool(Key("c"))
		assert.True(t, c)
		return nil
	})
}

func TestRLPAndWithCaller(t *testing.T) {
	host, _ := NewSimulatedHost()
	owner := common.RandEthAddress()
	other := common.RandEthAddress()
	key := Key("record", owner)

	_, err := host.Execute(owner, func(ctx *Context) error {
		nested := ctx.WithCaller(other)
		assert.Equal(t, other, nested.Caller())
		assert.Equal(t, owner, ctx.Caller())

		// writes through the nested context are shared
		require.NoError(t, nested.PutRLP(key, &record{Name: "x", Amount: big.NewInt(5), Owner: owner}))
		nested.PutAddress(Key("addr"), other)
		return nil
	})
	require.NoError(t, err)

	_ = host.View(func(ctx *Context) error {
		var r record
		ok, err := ctx.GetRLP(key, &r)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "x", r.Name)
		assert.Equal(t, big.NewInt(5), r.Amount)
		assert.Equal(t, owner, r.Owner)

		ok, err = ctx.GetRLP(Key("missing"), &r)
		assert.NoError(t, err)
		assert.False(t, ok)

		addr, _ := ctx.GetAddress(Key("addr"))
		assert.Equal(t, other, addr)
		return nil
	})
}

func TestFindEvents(t *testing.T) {
	events := []Event{{Name: "A"}, {Name: "B"}, {Name: "A"}}
	assert.Len(t, FindEvents(events, "A"), 2)
	assert.Empty(t, FindEvents(events, "C"))
}
