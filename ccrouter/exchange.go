package ccrouter

import (
	"fmt"
	"math/big"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/state"
)

// ExchangeRouter mints wrapped asset for proven deposits that carry an
// exchange request and swaps the net amount for the requested token.
type ExchangeRouter struct {
	*router
}

func NewExchangeRouter(cfg *Config) *ExchangeRouter {
	return &ExchangeRouter{router: newRouter(cfg, "ccExchange", KindExchange)}
}

// ProcessExchange is ProcessTransfer for exchange requests. After fees the
// net amount is swapped through the connector. If the swap cannot be done
// (deadline passed, unknown token, no liquidity, output below the requested
// amount, connector failure) the recipient receives the net amount as
// wrapped asset instead and the request is recorded as a fallback.
func (r *ExchangeRouter) ProcessExchange(
	ctx *state.Context,
	tx *common.TxFields,
	lockingScript []byte,
	blockHeight uint64,
	proof *agreement.MerkleProof,
) (*Request, error) {
	d, err := r.verify(ctx, tx, lockingScript, blockHeight, proof)
	if err != nil {
		return nil, err
	}
	rec := newRequest(KindExchange, d.txID)

	var (
		req   *common.ExchangeRequest
		split *common.FeeSplit
	)
	payload, err := common.OpReturnData(d.tx)
	if err == nil {
		req, err = common.ParseExchangeRequest(payload)
	}
	if err == nil {
		rec.Recipient = req.Recipient
		rec.Speed = req.Speed
		rec.ExchangeToken = req.ExchangeToken
		rec.OutputAmount = new(big.Int).Set(req.OutputAmount)
		rec.Deadline = uint64(req.Deadline)
		err = r.checkRequest(d, &req.TransferRequest)
	}
	if err == nil {
		split, err = r.feeSplit(ctx, d, req.PercentageFee)
	}
	if err != nil {
		return r.reject(ctx, d, rec, err)
	}

	locker, err := r.mint(ctx, d, split)
	if err != nil {
		return nil, err
	}
	rec.Locker = locker
	rec.setSplit(split)

	fields := logger.Fields{
		"txId":                d.txID.String(),
		"lockerLockingScript": common.ByteSliceToPureHexStr(d.lockingScript),
		"lockerTargetAddress": locker.Hex(),
		"user":                req.Recipient.Hex(),
		"inputToken":          r.cfg.WrappedToken.Address().Hex(),
		"outputToken":         req.ExchangeToken.Hex(),
		"inputAmount":         split.Gross.String(),
		"outputAmount":        req.OutputAmount.String(),
		"isFixedToken":        req.IsFixedToken,
		"speed":               req.Speed,
		"teleporter":          ctx.Caller().Hex(),
		"teleporterFee":       split.TeleporterFee.String(),
		"lockerFee":           split.LockerFee.String(),
		"protocolFee":         split.ProtocolFee.String(),
		"treasuryFee":         split.TreasuryFee.String(),
	}

	if ok, out := r.exchange(ctx, req, split.NetAmount); ok {
		rec.Status = StatusExchanged
		rec.ExchangedAmount = out
		fields["exchangedAmount"] = out.String()
		if err := r.complete(ctx, d, rec); err != nil {
			return nil, err
		}
		ctx.Emit("CCExchange", fields)
		return rec, nil
	}

	if split.NetAmount.Sign() > 0 {
		if err := r.cfg.WrappedToken.Transfer(r.self(ctx), req.Recipient, split.NetAmount); err != nil {
			return nil, err
		}
	}
	rec.Status = StatusExchangeFallback
	if err := r.complete(ctx, d, rec); err != nil {
		return nil, err
	}
	fields["receivedAmount"] = split.NetAmount.String()
	ctx.Emit("FailedCCExchange", fields)
	return rec, nil
}

// exchange swaps net wrapped asset held by the router into the requested
// token for the recipient. Nothing is kept if it returns false.
func (r *ExchangeRouter) exchange(ctx *state.Context, req *common.ExchangeRequest, net *big.Int) (bool, *big.Int) {
	log := logger.WithFields(logger.Fields{
		"op":       ctx.OpID(),
		"token":    req.ExchangeToken.Hex(),
		"net":      net.String(),
		"deadline": req.Deadline,
	})
	if r.cfg.Connector == nil || net.Sign() <= 0 {
		return false, nil
	}
	deadline := time.Unix(int64(req.Deadline), 0)
	if ctx.Now().After(deadline) {
		log.Info("exchange deadline passed, paying wrapped asset")
		return false, nil
	}

	out := new(big.Int)
	err := ctx.Try(func(ctx *state.Context) error {
		self := r.self(ctx)
		wrapped := r.cfg.WrappedToken.Address()
		connector := r.cfg.Connector

		amountIn := net
		if req.IsFixedToken {
			ok, needed, err := connector.QuoteInputForOutput(ctx, req.OutputAmount, wrapped, req.ExchangeToken)
			if err != nil {
				return err
			}
			if !ok || needed == nil || needed.Sign() <= 0 {
				return fmt.Errorf("%w: no quote", common.ErrSwapFailed)
			}
			if needed.Cmp(net) > 0 {
				return fmt.Errorf("%w: needs %s, has %s", common.ErrInsufficientFunds, needed, net)
			}
			amountIn = needed
		}

		if err := r.cfg.WrappedToken.Approve(self, connector.Address(), amountIn); err != nil {
			return err
		}
		ok, amountOut, err := connector.Swap(self, &agreement.SwapRequest{
			AmountIn:     amountIn,
			TokenIn:      wrapped,
			TokenOut:     req.ExchangeToken,
			MinAmountOut: req.OutputAmount,
			Recipient:    req.Recipient,
			Deadline:     deadline,
		})
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrSwapFailed
		}
		if amountOut == nil || amountOut.Cmp(req.OutputAmount) < 0 {
			return fmt.Errorf("%w: %s < %s", common.ErrBelowMinOutput, amountOut, req.OutputAmount)
		}
		if err := r.cfg.WrappedToken.Approve(self, connector.Address(), new(big.Int)); err != nil {
			return err
		}

		if remainder := new(big.Int).Sub(net, amountIn); remainder.Sign() > 0 {
			if err := r.cfg.WrappedToken.Transfer(self, req.Recipient, remainder); err != nil {
				return err
			}
		}
		out.Set(amountOut)
		return nil
	})
	if err != nil {
		log.WithError(err).Info("exchange failed, paying wrapped asset")
		return false, nil
	}
	return true, out
}
