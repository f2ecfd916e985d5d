package lockers

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/pricehealth"
	"github.com/TEENet-io/teleport-bridge/state"
)

// GetLocker returns the record of addr, candidate or locker.
func (r *Registry) GetLocker(ctx *state.Context, addr ethcommon.Address) (*Locker, bool, error) {
	return r.getLocker(ctx, addr)
}

func (r *Registry) GetLockerByScript(ctx *state.Context, lockingScript []byte) (*Locker, bool, error) {
	return r.lockerByScript(ctx, lockingScript)
}

// IsLocker reports whether addr is active or waiting for removal.
func (r *Registry) IsLocker(ctx *state.Context, addr ethcommon.Address) (bool, error) {
	l, ok, err := r.getLocker(ctx, addr)
	if err != nil || !ok {
		return false, err
	}
	return l.IsLocker(), nil
}

func (r *Registry) Status(ctx *state.Context, addr ethcommon.Address) (Status, error) {
	l, ok, err := r.getLocker(ctx, addr)
	if err != nil || !ok {
		return StatusNone, err
	}
	return l.Status, nil
}

func (r *Registry) TotalNumberOfLockers(ctx *state.Context) (uint64, error) {
	return r.lockers.Len(ctx)
}

func (r *Registry) TotalNumberOfCandidates(ctx *state.Context) (uint64, error) {
	return r.candidates.Len(ctx)
}

// Lockers returns the records of all lockers.
func (r *Registry) Lockers(ctx *state.Context) ([]*Locker, error) {
	return r.records(ctx, r.lockers)
}

// Candidates returns the records of all pending candidates.
func (r *Registry) Candidates(ctx *state.Context) ([]*Locker, error) {
	return r.records(ctx, r.candidates)
}

func (r *Registry) records(ctx *state.Context, set *state.AddressSet) ([]*Locker, error) {
	addrs, err := set.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Locker, 0, len(addrs))
	for _, addr := range addrs {
		l, ok, err := r.getLocker(ctx, addr)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// CollateralRatio returns value(locked collateral)*10000/netMinted of
// addr. The boolean is false if the locker has no debt or does not exist.
func (r *Registry) CollateralRatio(ctx *state.Context, addr ethcommon.Address) (*big.Int, bool, error) {
	l, ok, err := r.getLocker(ctx, addr)
	if err != nil || !ok {
		return nil, false, err
	}
	return r.cfg.PriceEngine.CollateralRatio(ctx,
		[]pricehealth.Amount{{Token: r.cfg.CollateralToken.Address(), Amount: l.LockedCollateral}},
		r.cfg.WrappedToken.Address(), l.NetMinted)
}

// LockerCapacity is the wrapped amount addr can still mint while keeping
// the configured collateral ratio.
func (r *Registry) LockerCapacity(ctx *state.Context, addr ethcommon.Address) (*big.Int, error) {
	l, ok, err := r.getLocker(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	p, err := r.Params(ctx)
	if err != nil {
		return nil, err
	}
	return r.capacity(ctx, l, p)
}

func (r *Registry) capacity(ctx *state.Context, l *Locker, p *Params) (*big.Int, error) {
	value, err := r.cfg.PriceEngine.Convert(ctx, l.LockedCollateral, r.cfg.CollateralToken.Address(), r.cfg.WrappedToken.Address())
	if err != nil {
		return nil, err
	}
	value.Mul(value, big.NewInt(common.PercentageDenominator))
	value.Quo(value, new(big.Int).SetUint64(p.CollateralRatio))
	value.Sub(value, l.NetMinted)
	if value.Sign() < 0 {
		return new(big.Int), nil
	}
	return value, nil
}
