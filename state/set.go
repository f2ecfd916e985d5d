package state

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// AddressSet is an enumerable set of addresses kept in the state.
// Removal swaps the last element into the freed slot.
type AddressSet struct {
	name string
}

func NewAddressSet(name string) *AddressSet {
	return &AddressSet{name: name}
}

func (s *AddressSet) lenKey() ethcommon.Hash {
	return Key("set", s.name, "len")
}

func (s *AddressSet) atKey(i uint64) ethcommon.Hash {
	return Key("set", s.name, "at", i)
}

func (s *AddressSet) posKey(addr ethcommon.Address) ethcommon.Hash {
	return Key("set", s.name, "pos", addr)
}

func (s *AddressSet) Len(ctx *Context) (uint64, error) {
	return ctx.GetUint64(s.lenKey())
}

func (s *AddressSet) Contains(ctx *Context, addr ethcommon.Address) (bool, error) {
	return ctx.Has(s.posKey(addr))
}

func (s *AddressSet) At(ctx *Context, i uint64) (ethcommon.Address, error) {
	return ctx.GetAddress(s.atKey(i))
}

// Add reports whether addr was added.
func (s *AddressSet) Add(ctx *Context, addr ethcommon.Address) (bool, error) {
	ok, err := s.Contains(ctx, addr)
	if err != nil || ok {
		return false, err
	}
	n, err := s.Len(ctx)
	if err != nil {
		return false, err
	}
	ctx.PutAddress(s.atKey(n), addr)
	ctx.PutUint64(s.posKey(addr), n+1)
	ctx.PutUint64(s.lenKey(), n+1)
	return true, nil
}

// Remove reports whether addr was removed.
func (s *AddressSet) Remove(ctx *Context, addr ethcommon.Address) (bool, error) {
	pos, err := ctx.GetUint64(s.posKey(addr))
	if err != nil || pos == 0 {
		return false, err
	}
	n, err := s.Len(ctx)
	if err != nil {
		return false, err
	}

	i, last := pos-1, n-1
	if i != last {
		moved, err := s.At(ctx, last)
		if err != nil {
			return false, err
		}
		ctx.PutAddress(s.atKey(i), moved)
		ctx.PutUint64(s.posKey(moved), i+1)
	}
	ctx.Delete(s.atKey(last))
	ctx.Delete(s.posKey(addr))
	ctx.PutUint64(s.lenKey(), last)
	return true, nil
}

func (s *AddressSet) List(ctx *Context) ([]ethcommon.Address, error) {
	n, err := s.Len(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ethcommon.Address, 0, n)
	for i := uint64(0); i < n; i++ {
		addr, err := s.At(ctx, i)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}
