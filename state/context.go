package state

import (
	"encoding/binary"
	"errors"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/database"
)

// Key derives a state key from its parts, keccak256(encodePacked(parts...)).
func Key(parts ...interface{}) ethcommon.Hash {
	return common.Keccak256Packed(parts...)
}

type entry struct {
	value   []byte
	deleted bool
}

// frame is a write cache layered over its parent, or over the database
// for the root frame.
type frame struct {
	parent *frame
	db     database.Database
	dirty  map[string]entry
	order  []string
	events []Event
}

func newFrame(db database.Database, parent *frame) *frame {
	return &frame{parent: parent, db: db, dirty: make(map[string]entry)}
}

func (f *frame) get(key []byte) ([]byte, bool, error) {
	for fr := f; fr != nil; fr = fr.parent {
		if e, ok := fr.dirty[string(key)]; ok {
			if e.deleted {
				return nil, false, nil
			}
			return e.value, true, nil
		}
	}

	v, err := f.db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (f *frame) put(key string, e entry) {
	if _, ok := f.dirty[key]; !ok {
		f.order = append(f.order, key)
	}
	f.dirty[key] = e
}

func (f *frame) mergeInto(parent *frame) {
	for _, k := range f.order {
		parent.put(k, f.dirty[k])
	}
	parent.events = append(parent.events, f.events...)
}

func (f *frame) batch() *database.Batch {
	b := database.NewBatch()
	for _, k := range f.order {
		e := f.dirty[k]
		if e.deleted {
			b.Delete([]byte(k))
		} else {
			b.Put([]byte(k), e.value)
		}
	}
	return b
}

// Context is the execution context of one serialized operation. Nested
// calls share its write cache; WithCaller switches the calling identity.
type Context struct {
	f      *frame
	opID   string
	caller ethcommon.Address
	now    time.Time
}

func (ctx *Context) Caller() ethcommon.Address { return ctx.caller }
func (ctx *Context) Now() time.Time            { return ctx.now }
func (ctx *Context) OpID() string              { return ctx.opID }

// WithCaller returns a context sharing the same writes in which caller is
// the identity performing nested calls.
func (ctx *Context) WithCaller(caller ethcommon.Address) *Context {
	c := *ctx
	c.caller = caller
	return &c
}

// Try runs fn on a nested write cache. Writes and events of fn are kept
// only if it returns nil, otherwise they are dropped and the error returned.
func (ctx *Context) Try(fn func(ctx *Context) error) error {
	child := *ctx
	child.f = newFrame(ctx.f.db, ctx.f)
	if err := fn(&child); err != nil {
		return err
	}
	child.f.mergeInto(ctx.f)
	return nil
}

func (ctx *Context) Emit(name string, fields logger.Fields) {
	ctx.f.events = append(ctx.f.events, Event{Name: name, OpID: ctx.opID, Fields: fields})
}

// Events returns the events emitted so far in the current write cache.
func (ctx *Context) Events() []Event {
	return append([]Event(nil), ctx.f.events...)
}

func (ctx *Context) Get(key ethcommon.Hash) ([]byte, bool, error) {
	return ctx.f.get(key[:])
}

func (ctx *Context) Has(key ethcommon.Hash) (bool, error) {
	_, ok, err := ctx.f.get(key[:])
	return ok, err
}

func (ctx *Context) Put(key ethcommon.Hash, value []byte) {
	ctx.f.put(string(key[:]), entry{value: append([]byte{}, value...)})
}

func (ctx *Context) Delete(key ethcommon.Hash) {
	ctx.f.put(string(key[:]), entry{deleted: true})
}

// GetRLP decodes the value at key into v. It reports false if absent.
func (ctx *Context) GetRLP(key ethcommon.Hash, v interface{}) (bool, error) {
	b, ok, err := ctx.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(b, v); err != nil {
		return false, err
	}
	return true, nil
}

func (ctx *Context) PutRLP(key ethcommon.Hash, v interface{}) error {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	ctx.Put(key, b)
	return nil
}

// GetBig returns zero for an absent key.
func (ctx *Context) GetBig(key ethcommon.Hash) (*big.Int, error) {
	b, _, err := ctx.Get(key)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

func (ctx *Context) PutBig(key ethcommon.Hash, v *big.Int) {
	if v.Sign() == 0 {
		ctx.Delete(key)
		return
	}
	ctx.Put(key, v.Bytes())
}

func (ctx *Context) GetUint64(key ethcommon.Hash) (uint64, error) {
	b, ok, err := ctx.Get(key)
	if err != nil || !ok {
		return 0, err
	}
	if len(b) != 8 {
		return 0, errors.New("stored value is not a uint64")
	}
	return binary.BigEndian.Uint64(b), nil
}

func (ctx *Context) PutUint64(key ethcommon.Hash, v uint64) {
	ctx.Put(key, binary.BigEndian.AppendUint64(nil, v))
}

func (ctx *Context) GetAddress(key ethcommon.Hash) (ethcommon.Address, error) {
	b, _, err := ctx.Get(key)
	if err != nil {
		return ethcommon.Address{}, err
	}
	return ethcommon.BytesToAddress(b), nil
}

func (ctx *Context) PutAddress(key ethcommon.Hash, addr ethcommon.Address) {
	ctx.Put(key, addr[:])
}

func (ctx *Context) GetBool(key ethcommon.Hash) (bool, error) {
	b, ok, err := ctx.Get(key)
	if err != nil || !ok {
		return false, err
	}
	return len(b) == 1 && b[0] == 1, nil
}

func (ctx *Context) PutBool(key ethcommon.Hash, v bool) {
	if !v {
		ctx.Delete(key)
		return
	}
	ctx.Put(key, []byte{1})
}
