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

// Mint mints gross wrapped asset against the active locker owning
// lockingScript. The locker fee goes to the locker, the treasury fee to the
// treasury and the rest to recipient. Caller must be a registry minter.
func (r *Registry) Mint(ctx *state.Context, lockingScript []byte, recipient ethcommon.Address, gross *big.Int) (*common.FeeSplit, error) {
	if err := r.caps.Require(ctx, access.Minter); err != nil {
		return nil, err
	}
	p, err := r.whenNotPaused(ctx)
	if err != nil {
		return nil, err
	}
	if gross == nil || gross.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	l, ok, err := r.lockerByScript(ctx, lockingScript)
	if err != nil {
		return nil, err
	}
	if !ok || !l.IsActive() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocker, common.ByteSliceToPureHexStr(lockingScript))
	}

	if p.CheckCapacityOnMint {
		capacity, err := r.capacity(ctx, l, p)
		if err != nil {
			return nil, err
		}
		if gross.Cmp(capacity) > 0 {
			return nil, fmt.Errorf("%w: %s > %s", ErrInsufficientCapacity, gross, capacity)
		}
	}

	split, err := common.ComputeFeeSplit(gross, common.FeeRates{
		Locker:   p.LockerPercentageFee,
		Treasury: p.TreasuryPercentageFee,
	})
	if err != nil {
		return nil, err
	}

	// debt is recorded before any token is created
	l.NetMinted.Add(l.NetMinted, gross)
	if err := r.putLocker(ctx, l); err != nil {
		return nil, err
	}

	self := r.self(ctx)
	if split.LockerFee.Sign() > 0 {
		if err := r.cfg.WrappedToken.Mint(self, l.Address, split.LockerFee); err != nil {
			return nil, err
		}
	}
	if split.TreasuryFee.Sign() > 0 {
		if err := r.cfg.WrappedToken.Mint(self, p.Treasury, split.TreasuryFee); err != nil {
			return nil, err
		}
	}
	if split.NetAmount.Sign() > 0 {
		if err := r.cfg.WrappedToken.Mint(self, recipient, split.NetAmount); err != nil {
			return nil, err
		}
	}

	ctx.Emit("MintByLocker", logger.Fields{
		"locker":      l.Address.Hex(),
		"receiver":    recipient.Hex(),
		"amount":      gross.String(),
		"lockerFee":   split.LockerFee.String(),
		"treasuryFee": split.TreasuryFee.String(),
		"netAmount":   split.NetAmount.String(),
		"netMinted":   l.NetMinted.String(),
	})
	return split, nil
}

// Burn burns amount of wrapped asset pulled from the caller against the
// locker owning lockingScript. The locker fee is handed to the locker
// instead of being burned and the locker debt decreases by the burned part.
// Caller must be a registry burner and have approved amount.
func (r *Registry) Burn(ctx *state.Context, lockingScript []byte, amount *big.Int) (*common.FeeSplit, error) {
	if err := r.caps.Require(ctx, access.Burner); err != nil {
		return nil, err
	}
	p, err := r.whenNotPaused(ctx)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	l, ok, err := r.lockerByScript(ctx, lockingScript)
	if err != nil {
		return nil, err
	}
	if !ok || !l.IsLocker() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocker, common.ByteSliceToPureHexStr(lockingScript))
	}
	if amount.Cmp(l.NetMinted) > 0 {
		return nil, fmt.Errorf("%w: %s > %s", ErrInsufficientDebt, amount, l.NetMinted)
	}

	split, err := common.ComputeFeeSplit(amount, common.FeeRates{Locker: p.LockerPercentageFee})
	if err != nil {
		return nil, err
	}

	l.NetMinted.Sub(l.NetMinted, split.NetAmount)
	if err := r.putLocker(ctx, l); err != nil {
		return nil, err
	}

	caller := ctx.Caller()
	self := r.self(ctx)
	if err := r.cfg.WrappedToken.TransferFrom(self, caller, r.cfg.Address, amount); err != nil {
		return nil, err
	}
	if split.LockerFee.Sign() > 0 {
		if err := r.cfg.WrappedToken.Transfer(self, l.Address, split.LockerFee); err != nil {
			return nil, err
		}
	}
	if err := r.cfg.WrappedToken.Burn(self, r.cfg.Address, split.NetAmount); err != nil {
		return nil, err
	}

	ctx.Emit("BurnByLocker", logger.Fields{
		"locker":    l.Address.Hex(),
		"burner":    caller.Hex(),
		"amount":    amount.String(),
		"lockerFee": split.LockerFee.String(),
		"burnt":     split.NetAmount.String(),
		"netMinted": l.NetMinted.String(),
	})
	return split, nil
}
