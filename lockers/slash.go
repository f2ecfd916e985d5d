package lockers

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/access"
	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/state"
)

// SlashLocker seizes collateral of the locker owning lockingScript. Enough
// collateral to buy rewardAmount of wrapped asset is swapped and paid to
// rewardRecipient, and a penalty worth SlashPenaltyRatio of baseAmount is
// sent to slasherBeneficiary. Both are capped by the locked collateral.
//
// The slash never fails because of the market: if the swap cannot be done
// the seized collateral itself is paid to rewardRecipient.
func (r *Registry) SlashLocker(
	ctx *state.Context,
	lockingScript []byte,
	rewardAmount *big.Int,
	rewardRecipient ethcommon.Address,
	baseAmount *big.Int,
	slasherBeneficiary ethcommon.Address,
) (*SlashResult, error) {
	if err := r.caps.Require(ctx, access.Slasher); err != nil {
		return nil, err
	}
	p, err := r.Params(ctx)
	if err != nil {
		return nil, err
	}

	l, ok, err := r.lockerByScript(ctx, lockingScript)
	if err != nil {
		return nil, err
	}
	if !ok || !l.IsLocker() {
		return nil, ErrTargetNotLocker
	}

	collateralToken := r.cfg.CollateralToken.Address()
	wrappedToken := r.cfg.WrappedToken.Address()

	neededForReward := new(big.Int)
	if rewardAmount != nil && rewardAmount.Sign() > 0 {
		neededForReward, err = r.collateralForReward(ctx, rewardAmount)
		if err != nil {
			return nil, err
		}
	}

	neededForPenalty := new(big.Int)
	if baseAmount != nil && baseAmount.Sign() > 0 && p.SlashPenaltyRatio > 0 {
		value, err := r.cfg.PriceEngine.Convert(ctx, baseAmount, wrappedToken, collateralToken)
		if err != nil {
			return nil, err
		}
		if neededForPenalty, err = common.PercentageOf(value, p.SlashPenaltyRatio); err != nil {
			return nil, err
		}
	}

	available := new(big.Int).Set(l.LockedCollateral)
	res := &SlashResult{
		RewardCollateral: new(big.Int).Set(common.BigMin(neededForReward, available)),
		RewardWrapped:    new(big.Int),
	}
	available.Sub(available, res.RewardCollateral)
	res.PenaltyCollateral = new(big.Int).Set(common.BigMin(neededForPenalty, available))
	res.Partial = res.RewardCollateral.Cmp(neededForReward) < 0 || res.PenaltyCollateral.Cmp(neededForPenalty) < 0

	// the seizure is recorded before any collateral leaves the registry
	seized := res.Total()
	l.LockedCollateral.Sub(l.LockedCollateral, seized)
	l.Slashed.Add(l.Slashed, seized)
	if err := r.putLocker(ctx, l); err != nil {
		return nil, err
	}

	self := r.self(ctx)
	if res.PenaltyCollateral.Sign() > 0 {
		if err := r.cfg.CollateralToken.Transfer(self, slasherBeneficiary, res.PenaltyCollateral); err != nil {
			return nil, err
		}
	}

	if res.RewardCollateral.Sign() > 0 {
		res.Swapped, res.RewardWrapped = r.swapCollateral(ctx, res.RewardCollateral, rewardRecipient)
		if !res.Swapped {
			if err := r.cfg.CollateralToken.Transfer(self, rewardRecipient, res.RewardCollateral); err != nil {
				return nil, err
			}
			res.Partial = true
		} else if res.RewardWrapped.Cmp(rewardAmount) < 0 {
			res.Partial = true
		}
	}

	ctx.Emit("LockerSlashed", logger.Fields{
		"locker":             l.Address.Hex(),
		"rewardAmount":       common.BigIntClone(rewardAmount).String(),
		"rewardRecipient":    rewardRecipient.Hex(),
		"rewardCollateral":   res.RewardCollateral.String(),
		"rewardWrapped":      res.RewardWrapped.String(),
		"penaltyCollateral":  res.PenaltyCollateral.String(),
		"slasherBeneficiary": slasherBeneficiary.Hex(),
		"swapped":            res.Swapped,
		"partial":            res.Partial,
	})
	return res, nil
}

// collateralForReward asks the connector how much collateral buys
// rewardAmount, falling back to the price engine.
func (r *Registry) collateralForReward(ctx *state.Context, rewardAmount *big.Int) (*big.Int, error) {
	collateralToken := r.cfg.CollateralToken.Address()
	wrappedToken := r.cfg.WrappedToken.Address()

	if r.cfg.Connector != nil {
		ok, amountIn, err := r.cfg.Connector.QuoteInputForOutput(ctx, rewardAmount, collateralToken, wrappedToken)
		if err == nil && ok && amountIn != nil && amountIn.Sign() > 0 {
			return amountIn, nil
		}
		logger.WithFields(logger.Fields{
			"op":     ctx.OpID(),
			"reward": rewardAmount.String(),
		}).WithError(err).Debug("no connector quote for slash reward, using price feed")
	}
	return r.cfg.PriceEngine.Convert(ctx, rewardAmount, wrappedToken, collateralToken)
}

// swapCollateral swaps amount of collateral into wrapped asset paid to
// recipient. Nothing is kept if the swap does not succeed.
func (r *Registry) swapCollateral(ctx *state.Context, amount *big.Int, recipient ethcommon.Address) (bool, *big.Int) {
	if r.cfg.Connector == nil {
		return false, new(big.Int)
	}

	out := new(big.Int)
	err := ctx.Try(func(ctx *state.Context) error {
		self := r.self(ctx)
		if err := r.cfg.CollateralToken.Approve(self, r.cfg.Connector.Address(), amount); err != nil {
			return err
		}
		ok, amountOut, err := r.cfg.Connector.Swap(self, &agreement.SwapRequest{
			AmountIn:     amount,
			TokenIn:      r.cfg.CollateralToken.Address(),
			TokenOut:     r.cfg.WrappedToken.Address(),
			MinAmountOut: new(big.Int),
			Recipient:    recipient,
			Deadline:     ctx.Now(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrSwapFailed
		}
		// clear any allowance left by a partial pull
		if err := r.cfg.CollateralToken.Approve(self, r.cfg.Connector.Address(), new(big.Int)); err != nil {
			return err
		}
		if amountOut != nil {
			out.Set(amountOut)
		}
		return nil
	})
	if err != nil {
		logger.WithFields(logger.Fields{
			"op":     ctx.OpID(),
			"amount": amount.String(),
		}).WithError(err).Info("slash swap failed, paying collateral")
		return false, new(big.Int)
	}
	return true, out
}
