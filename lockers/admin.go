package lockers

import (
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/access"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/state"
)

func (r *Registry) AddMinter(ctx *state.Context, addr ethcommon.Address) error {
	return r.caps.SetRole(ctx, access.Minter, addr, true)
}

func (r *Registry) RemoveMinter(ctx *state.Context, addr ethcommon.Address) error {
	return r.caps.SetRole(ctx, access.Minter, addr, false)
}

func (r *Registry) AddBurner(ctx *state.Context, addr ethcommon.Address) error {
	return r.caps.SetRole(ctx, access.Burner, addr, true)
}

func (r *Registry) RemoveBurner(ctx *state.Context, addr ethcommon.Address) error {
	return r.caps.SetRole(ctx, access.Burner, addr, false)
}

func (r *Registry) IsMinter(ctx *state.Context, addr ethcommon.Address) (bool, error) {
	return r.caps.Has(ctx, access.Minter, addr)
}

func (r *Registry) IsBurner(ctx *state.Context, addr ethcommon.Address) (bool, error) {
	return r.caps.Has(ctx, access.Burner, addr)
}

// updateParams applies fn to the stored params as owner, validates and
// stores the result.
func (r *Registry) updateParams(ctx *state.Context, event string, fields logger.Fields, fn func(p *Params) error) error {
	if err := r.caps.Require(ctx, access.Owner); err != nil {
		return err
	}
	p, err := r.Params(ctx)
	if err != nil {
		return err
	}
	if err := fn(p); err != nil {
		return err
	}
	if err := p.validate(); err != nil {
		return err
	}
	if err := r.putParams(ctx, p); err != nil {
		return err
	}
	ctx.Emit(event, fields)
	return nil
}

// SetBurnRouter moves the slasher capability to router.
func (r *Registry) SetBurnRouter(ctx *state.Context, router ethcommon.Address) error {
	if router == (ethcommon.Address{}) {
		return fmt.Errorf("%w: zero burn router", common.ErrInvalidArgument)
	}
	return r.updateParams(ctx, "NewCCBurnRouter", logger.Fields{"router": router.Hex()}, func(p *Params) error {
		if p.BurnRouter != (ethcommon.Address{}) {
			r.caps.Revoke(ctx, access.Slasher, p.BurnRouter)
		}
		r.caps.Grant(ctx, access.Slasher, router)
		p.BurnRouter = router
		return nil
	})
}

func (r *Registry) SetLockerPercentageFee(ctx *state.Context, fee uint64) error {
	return r.updateParams(ctx, "NewLockerPercentageFee", logger.Fields{"fee": fee}, func(p *Params) error {
		p.LockerPercentageFee = fee
		return nil
	})
}

func (r *Registry) SetTreasuryPercentageFee(ctx *state.Context, fee uint64) error {
	return r.updateParams(ctx, "NewTreasuryPercentageFee", logger.Fields{"fee": fee}, func(p *Params) error {
		p.TreasuryPercentageFee = fee
		return nil
	})
}

func (r *Registry) SetTreasury(ctx *state.Context, treasury ethcommon.Address) error {
	return r.updateParams(ctx, "NewTreasury", logger.Fields{"treasury": treasury.Hex()}, func(p *Params) error {
		p.Treasury = treasury
		return nil
	})
}

func (r *Registry) SetMinRequiredCollateral(ctx *state.Context, amount *big.Int) error {
	return r.updateParams(ctx, "NewMinRequiredTDTLockedAmount", logger.Fields{"amount": amount.String()}, func(p *Params) error {
		p.MinRequiredCollateral = new(big.Int).Set(amount)
		return nil
	})
}

func (r *Registry) SetMinRequiredNative(ctx *state.Context, amount *big.Int) error {
	return r.updateParams(ctx, "NewMinRequiredNativeTokenLockedAmount", logger.Fields{"amount": amount.String()}, func(p *Params) error {
		p.MinRequiredNative = new(big.Int).Set(amount)
		return nil
	})
}

func (r *Registry) SetCollateralRatio(ctx *state.Context, ratio uint64) error {
	return r.updateParams(ctx, "NewCollateralRatio", logger.Fields{"ratio": ratio}, func(p *Params) error {
		p.CollateralRatio = ratio
		return nil
	})
}

func (r *Registry) SetSlashPenaltyRatio(ctx *state.Context, ratio uint64) error {
	return r.updateParams(ctx, "NewSlashPenaltyRatio", logger.Fields{"ratio": ratio}, func(p *Params) error {
		p.SlashPenaltyRatio = ratio
		return nil
	})
}

func (r *Registry) SetCheckCapacityOnMint(ctx *state.Context, enabled bool) error {
	return r.updateParams(ctx, "NewCheckCapacityOnMint", logger.Fields{"enabled": enabled}, func(p *Params) error {
		p.CheckCapacityOnMint = enabled
		return nil
	})
}

func (r *Registry) Pause(ctx *state.Context) error {
	return r.updateParams(ctx, "Paused", logger.Fields{"account": ctx.Caller().Hex()}, func(p *Params) error {
		if p.Paused {
			return ErrPaused
		}
		p.Paused = true
		return nil
	})
}

func (r *Registry) Unpause(ctx *state.Context) error {
	return r.updateParams(ctx, "Unpaused", logger.Fields{"account": ctx.Caller().Hex()}, func(p *Params) error {
		if !p.Paused {
			return ErrNotPaused
		}
		p.Paused = false
		return nil
	})
}
