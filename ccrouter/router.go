package ccrouter

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/access"
	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/state"
)

// router holds what the transfer and exchange routers share: parameters,
// the consumption records and the verify, mint and pay steps.
type router struct {
	cfg  *Config
	name string
	kind RequestKind
	caps *access.Capabilities
}

func newRouter(cfg *Config, name string, kind RequestKind) *router {
	return &router{
		cfg:  cfg,
		name: name,
		kind: kind,
		caps: access.New(name),
	}
}

func (r *router) Address() ethcommon.Address { return r.cfg.Address }

func (r *router) self(ctx *state.Context) *state.Context {
	return ctx.WithCaller(r.cfg.Address)
}

func (r *router) Init(ctx *state.Context, owner ethcommon.Address) error {
	params := r.cfg.Params
	if err := params.validate(); err != nil {
		return err
	}
	if err := r.caps.Init(ctx, owner); err != nil {
		return err
	}
	return ctx.PutRLP(r.paramsKey(), &params)
}

func (r *router) paramsKey() ethcommon.Hash {
	return state.Key(r.name, "params")
}

func (r *router) usedKey(txID chainhash.Hash) ethcommon.Hash {
	return state.Key(r.name, "used", txID)
}

func (r *router) requestKey(txID chainhash.Hash) ethcommon.Hash {
	return state.Key(r.name, "request", txID)
}

func (r *router) Params(ctx *state.Context) (*Params, error) {
	var p Params
	ok, err := ctx.GetRLP(r.paramsKey(), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s not initialized", common.ErrInvalidState, r.name)
	}
	return &p, nil
}

// IsUsed reports whether the deposit txID has been consumed.
func (r *router) IsUsed(ctx *state.Context, txID chainhash.Hash) (bool, error) {
	return ctx.GetBool(r.usedKey(txID))
}

func (r *router) GetRequest(ctx *state.Context, txID chainhash.Hash) (*Request, bool, error) {
	var req Request
	ok, err := ctx.GetRLP(r.requestKey(txID), &req)
	if err != nil || !ok {
		return nil, false, err
	}
	return &req, true, nil
}

// deposit is a proven deposit paying a locker.
type deposit struct {
	params        *Params
	txID          chainhash.Hash
	tx            *wire.MsgTx
	value         *big.Int
	lockingScript []byte
	blockHeight   uint64
}

// verify checks a submitted deposit and consumes its fingerprint. Any
// error returned here reverts the whole operation.
func (r *router) verify(
	ctx *state.Context,
	fields *common.TxFields,
	lockingScript []byte,
	blockHeight uint64,
	proof *agreement.MerkleProof,
) (*deposit, error) {
	p, err := r.Params(ctx)
	if err != nil {
		return nil, err
	}
	if p.Paused {
		return nil, ErrPaused
	}
	if fields == nil {
		return nil, ErrNilTx
	}

	txID := fields.TxID()
	used, err := r.IsUsed(ctx, txID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessed, txID)
	}
	if blockHeight < p.StartingBlockHeight {
		return nil, fmt.Errorf("%w: %d < %d", ErrRequestTooOld, blockHeight, p.StartingBlockHeight)
	}

	if proof == nil {
		return nil, ErrNilProof
	}
	ok, err := r.cfg.Oracle.Verify(txID, blockHeight, proof)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofInvalid, err)
	}
	if !ok {
		return nil, ErrProofInvalid
	}

	// consumed before anything else happens
	ctx.PutBool(r.usedKey(txID), true)

	tx, err := fields.MsgTx()
	if err != nil {
		return nil, err
	}
	value, found := common.ValueToLockingScript(tx, lockingScript)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrLockerOutputNotFound, common.ByteSliceToPureHexStr(lockingScript))
	}

	return &deposit{
		params:        p,
		txID:          txID,
		tx:            tx,
		value:         big.NewInt(value),
		lockingScript: ethcommon.CopyBytes(lockingScript),
		blockHeight:   blockHeight,
	}, nil
}

// checkRequest validates the decoded routing fields against the deployment.
func (r *router) checkRequest(d *deposit, req *common.TransferRequest) error {
	if req.ChainID != d.params.ChainID {
		return fmt.Errorf("%w: %d", ErrChainMismatch, req.ChainID)
	}
	if req.AppID != d.params.AppID {
		return fmt.Errorf("%w: %d", ErrAppMismatch, req.AppID)
	}
	if req.Recipient == (ethcommon.Address{}) {
		return ErrZeroRecipient
	}
	if d.value.Sign() <= 0 {
		return ErrZeroAmount
	}
	return nil
}

// feeSplit splits the deposited amount between teleporter, locker,
// protocol, treasury and recipient. Operator fees adding up to more than
// 100% are a configuration fault and revert; only then can the teleporter
// fee of the request push the total out of range.
func (r *router) feeSplit(ctx *state.Context, d *deposit, teleporterFee uint16) (*common.FeeSplit, error) {
	lp, err := r.cfg.Registry.Params(ctx)
	if err != nil {
		return nil, err
	}
	rates := common.FeeRates{
		Teleporter: uint64(teleporterFee),
		Locker:     lp.LockerPercentageFee,
		Protocol:   d.params.ProtocolPercentageFee,
		Treasury:   lp.TreasuryPercentageFee,
	}
	if operatorFees := rates.Sum() - rates.Teleporter; operatorFees > common.PercentageDenominator {
		logger.WithFields(logger.Fields{
			"router":   r.name,
			"protocol": rates.Protocol,
			"locker":   rates.Locker,
			"treasury": rates.Treasury,
		}).Error("operator fees exceed 100%")
		return nil, fmt.Errorf("%w: total %d", ErrFeesMisconfigured, operatorFees)
	}
	return common.ComputeFeeSplit(d.value, rates)
}

// reject records a terminal failure and returns it wrapped so that the
// record is committed. Other errors are returned unchanged and revert.
func (r *router) reject(ctx *state.Context, d *deposit, rec *Request, err error) (*Request, error) {
	if !isTerminal(err) {
		return nil, err
	}

	rec.Status = StatusRejected
	rec.Reason = err.Error()
	rec.BlockHeight = d.blockHeight
	rec.LockingScript = d.lockingScript
	rec.Teleporter = ctx.Caller()
	rec.Gross = new(big.Int).Set(d.value)
	rec.ProcessedAt = uint64(ctx.Now().Unix())
	if perr := ctx.PutRLP(r.requestKey(d.txID), rec); perr != nil {
		return nil, perr
	}

	logger.WithFields(logger.Fields{
		"op":     ctx.OpID(),
		"router": r.name,
		"txId":   d.txID.String(),
	}).WithError(err).Info("deposit rejected")
	ctx.Emit("RequestRejected", logger.Fields{
		"router": r.name,
		"txId":   d.txID.String(),
		"reason": rec.Reason,
	})
	return rec, state.Persist(err)
}

// mint mints the deposit to the router through the registry and pays the
// teleporter and protocol fees. The net amount stays with the router.
func (r *router) mint(ctx *state.Context, d *deposit, split *common.FeeSplit) (ethcommon.Address, error) {
	self := r.self(ctx)
	if _, err := r.cfg.Registry.Mint(self, d.lockingScript, r.cfg.Address, split.Gross); err != nil {
		return ethcommon.Address{}, err
	}
	l, ok, err := r.cfg.Registry.GetLockerByScript(ctx, d.lockingScript)
	if err != nil {
		return ethcommon.Address{}, err
	}
	if !ok {
		return ethcommon.Address{}, fmt.Errorf("%w: locker vanished", common.ErrInvalidState)
	}

	if split.TeleporterFee.Sign() > 0 {
		if err := r.cfg.WrappedToken.Transfer(self, ctx.Caller(), split.TeleporterFee); err != nil {
			return ethcommon.Address{}, err
		}
	}
	if split.ProtocolFee.Sign() > 0 {
		if err := r.cfg.WrappedToken.Transfer(self, d.params.Treasury, split.ProtocolFee); err != nil {
			return ethcommon.Address{}, err
		}
	}
	return l.Address, nil
}

func (r *router) complete(ctx *state.Context, d *deposit, rec *Request) error {
	rec.BlockHeight = d.blockHeight
	rec.LockingScript = d.lockingScript
	rec.Teleporter = ctx.Caller()
	rec.ProcessedAt = uint64(ctx.Now().Unix())
	return ctx.PutRLP(r.requestKey(d.txID), rec)
}

// updateParams applies fn to the stored params as owner, validates and
// stores the result.
func (r *router) updateParams(ctx *state.Context, event string, fields logger.Fields, fn func(p *Params) error) error {
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
	if err := ctx.PutRLP(r.paramsKey(), p); err != nil {
		return err
	}
	ctx.Emit(event, fields)
	return nil
}

func (r *router) SetProtocolPercentageFee(ctx *state.Context, fee uint64) error {
	return r.updateParams(ctx, "NewProtocolPercentageFee", logger.Fields{"router": r.name, "fee": fee}, func(p *Params) error {
		lp, err := r.cfg.Registry.Params(ctx)
		if err != nil {
			return err
		}
		if total := fee + lp.LockerPercentageFee + lp.TreasuryPercentageFee; total > common.PercentageDenominator {
			return fmt.Errorf("%w: protocol %d + locker %d + treasury %d", common.ErrFeeOutOfRange,
				fee, lp.LockerPercentageFee, lp.TreasuryPercentageFee)
		}
		p.ProtocolPercentageFee = fee
		return nil
	})
}

func (r *router) SetTreasury(ctx *state.Context, treasury ethcommon.Address) error {
	return r.updateParams(ctx, "NewTreasury", logger.Fields{"router": r.name, "treasury": treasury.Hex()}, func(p *Params) error {
		p.Treasury = treasury
		return nil
	})
}

func (r *router) SetStartingBlockHeight(ctx *state.Context, height uint64) error {
	return r.updateParams(ctx, "NewStartingBlockHeight", logger.Fields{"router": r.name, "height": height}, func(p *Params) error {
		p.StartingBlockHeight = height
		return nil
	})
}

func (r *router) SetAppID(ctx *state.Context, appID uint16) error {
	return r.updateParams(ctx, "NewAppId", logger.Fields{"router": r.name, "appId": appID}, func(p *Params) error {
		p.AppID = appID
		return nil
	})
}

func (r *router) Pause(ctx *state.Context) error {
	return r.updateParams(ctx, "Paused", logger.Fields{"router": r.name, "account": ctx.Caller().Hex()}, func(p *Params) error {
		if p.Paused {
			return ErrPaused
		}
		p.Paused = true
		return nil
	})
}

func (r *router) Unpause(ctx *state.Context) error {
	return r.updateParams(ctx, "Unpaused", logger.Fields{"router": r.name, "account": ctx.Caller().Hex()}, func(p *Params) error {
		if !p.Paused {
			return ErrNotPaused
		}
		p.Paused = false
		return nil
	})
}
