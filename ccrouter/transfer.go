package ccrouter

import (
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/state"
)

// TransferRouter mints wrapped asset for proven base-chain deposits that
// carry a transfer request.
type TransferRouter struct {
	*router
}

func NewTransferRouter(cfg *Config) *TransferRouter {
	return &TransferRouter{router: newRouter(cfg, "ccTransfer", KindTransfer)}
}

// ProcessTransfer verifies the deposit tx included at blockHeight and paying
// lockingScript, then mints its value minus fees to the requested
// recipient. The caller is the teleporter and earns the teleporter fee.
//
// Terminal failures (malformed payload, wrong chain or app, a teleporter
// fee out of range, zero value) return the error but still consume the
// deposit, which is then recorded as rejected.
func (r *TransferRouter) ProcessTransfer(
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
	rec := newRequest(KindTransfer, d.txID)

	var (
		req   *common.TransferRequest
		split *common.FeeSplit
	)
	payload, err := common.OpReturnData(d.tx)
	if err == nil {
		req, err = common.ParseTransferRequest(payload)
	}
	if err == nil {
		rec.Recipient = req.Recipient
		rec.Speed = req.Speed
		err = r.checkRequest(d, req)
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
	if split.NetAmount.Sign() > 0 {
		if err := r.cfg.WrappedToken.Transfer(r.self(ctx), req.Recipient, split.NetAmount); err != nil {
			return nil, err
		}
	}

	rec.Status = StatusCompleted
	rec.Locker = locker
	rec.setSplit(split)
	if err := r.complete(ctx, d, rec); err != nil {
		return nil, err
	}

	ctx.Emit("CCTransfer", logger.Fields{
		"txId":                d.txID.String(),
		"lockerLockingScript": common.ByteSliceToPureHexStr(d.lockingScript),
		"lockerTargetAddress": locker.Hex(),
		"user":                req.Recipient.Hex(),
		"inputAmount":         split.Gross.String(),
		"receivedAmount":      split.NetAmount.String(),
		"speed":               req.Speed,
		"teleporter":          ctx.Caller().Hex(),
		"teleporterFee":       split.TeleporterFee.String(),
		"lockerFee":           split.LockerFee.String(),
		"protocolFee":         split.ProtocolFee.String(),
		"treasuryFee":         split.TreasuryFee.String(),
	})
	return rec, nil
}
