package lockers

import (
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/access"
	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/ledger"
	"github.com/TEENet-io/teleport-bridge/pricehealth"
	"github.com/TEENet-io/teleport-bridge/state"
)

type Config struct {
	// Address is the identity of the registry. It holds escrowed
	// collateral and must be minter and burner of WrappedToken.
	Address         ethcommon.Address
	WrappedToken    *ledger.Ledger
	CollateralToken *ledger.Ledger
	NativeToken     *ledger.Ledger
	PriceEngine     *pricehealth.Engine
	// Connector swaps seized collateral when slashing. Optional.
	Connector agreement.ExchangeConnector
	// Params are stored by Init.
	Params Params
}

// Registry manages the locker lifecycle and drives minting and burning of
// the wrapped asset on behalf of lockers.
type Registry struct {
	cfg        *Config
	caps       *access.Capabilities
	lockers    *state.AddressSet
	candidates *state.AddressSet
}

func New(cfg *Config) *Registry {
	return &Registry{
		cfg:        cfg,
		caps:       access.New("lockers"),
		lockers:    state.NewAddressSet("lockers"),
		candidates: state.NewAddressSet("lockerCandidates"),
	}
}

func (r *Registry) Address() ethcommon.Address { return r.cfg.Address }

// self is ctx acting as the registry for nested token calls.
func (r *Registry) self(ctx *state.Context) *state.Context {
	return ctx.WithCaller(r.cfg.Address)
}

func (r *Registry) Init(ctx *state.Context, owner ethcommon.Address) error {
	params := r.cfg.Params
	if err := params.validate(); err != nil {
		return err
	}
	if err := r.caps.Init(ctx, owner); err != nil {
		return err
	}
	if params.BurnRouter != (ethcommon.Address{}) {
		r.caps.Grant(ctx, access.Slasher, params.BurnRouter)
	}
	return r.putParams(ctx, &params)
}

func paramsKey() ethcommon.Hash {
	return state.Key("lockers", "params")
}

func lockerKey(addr ethcommon.Address) ethcommon.Hash {
	return state.Key("locker", addr)
}

func scriptKey(script []byte) ethcommon.Hash {
	return state.Key("lockerScript", common.Keccak256Packed(script))
}

func (r *Registry) Params(ctx *state.Context) (*Params, error) {
	var p Params
	ok, err := ctx.GetRLP(paramsKey(), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: registry not initialized", common.ErrInvalidState)
	}
	return &p, nil
}

func (r *Registry) putParams(ctx *state.Context, p *Params) error {
	return ctx.PutRLP(paramsKey(), p)
}

func (r *Registry) getLocker(ctx *state.Context, addr ethcommon.Address) (*Locker, bool, error) {
	var l Locker
	ok, err := ctx.GetRLP(lockerKey(addr), &l)
	if err != nil || !ok {
		return nil, false, err
	}
	return &l, true, nil
}

func (r *Registry) putLocker(ctx *state.Context, l *Locker) error {
	return ctx.PutRLP(lockerKey(l.Address), l)
}

func (r *Registry) deleteLocker(ctx *state.Context, l *Locker) {
	ctx.Delete(lockerKey(l.Address))
	ctx.Delete(scriptKey(l.LockingScript))
}

// lockerByScript resolves a locking script to its record.
func (r *Registry) lockerByScript(ctx *state.Context, script []byte) (*Locker, bool, error) {
	v, ok, err := ctx.Get(scriptKey(script))
	if err != nil || !ok {
		return nil, false, err
	}
	return r.getLocker(ctx, ethcommon.BytesToAddress(v))
}

func (r *Registry) whenNotPaused(ctx *state.Context) (*Params, error) {
	p, err := r.Params(ctx)
	if err != nil {
		return nil, err
	}
	if p.Paused {
		return nil, ErrPaused
	}
	return p, nil
}

// RequestToBecomeLocker registers the caller as a candidate and escrows its
// collateral. The collateral token must have been approved to the registry;
// the native amount is transferred directly by the caller.
func (r *Registry) RequestToBecomeLocker(ctx *state.Context, pubKey, lockingScript []byte, collateral, native *big.Int) error {
	p, err := r.whenNotPaused(ctx)
	if err != nil {
		return err
	}
	if err := common.ValidatePublicKey(pubKey); err != nil {
		return err
	}
	if err := common.ValidateLockingScript(lockingScript); err != nil {
		return err
	}
	if collateral == nil || collateral.Cmp(p.MinRequiredCollateral) < 0 {
		return fmt.Errorf("%w: collateral %s < %s", ErrInsufficientCollateral, collateral, p.MinRequiredCollateral)
	}
	if native == nil || native.Cmp(p.MinRequiredNative) < 0 {
		return fmt.Errorf("%w: native %s < %s", ErrInsufficientCollateral, native, p.MinRequiredNative)
	}

	caller := ctx.Caller()
	if _, ok, err := r.getLocker(ctx, caller); err != nil {
		return err
	} else if ok {
		return ErrAlreadyCandidateOrLocker
	}
	if ok, err := ctx.Has(scriptKey(lockingScript)); err != nil {
		return err
	} else if ok {
		return ErrLockingScriptInUse
	}

	l := &Locker{
		Address:           caller,
		ExternalPublicKey: ethcommon.CopyBytes(pubKey),
		LockingScript:     ethcommon.CopyBytes(lockingScript),
		LockedCollateral:  new(big.Int).Set(collateral),
		LockedNative:      new(big.Int).Set(native),
		NetMinted:         new(big.Int),
		Slashed:           new(big.Int),
		Status:            StatusCandidate,
		CreatedAt:         uint64(ctx.Now().Unix()),
	}
	if err := r.putLocker(ctx, l); err != nil {
		return err
	}
	ctx.PutAddress(scriptKey(lockingScript), caller)
	if _, err := r.candidates.Add(ctx, caller); err != nil {
		return err
	}

	if err := r.cfg.CollateralToken.TransferFrom(r.self(ctx), caller, r.cfg.Address, collateral); err != nil {
		return err
	}
	if native.Sign() > 0 {
		if err := r.cfg.NativeToken.Transfer(ctx, r.cfg.Address, native); err != nil {
			return err
		}
	}

	ctx.Emit("RequestAddLocker", logger.Fields{
		"locker":        caller.Hex(),
		"lockingScript": common.ByteSliceToPureHexStr(lockingScript),
		"collateral":    collateral.String(),
		"native":        native.String(),
	})
	return nil
}

// RevokeRequest withdraws the caller's candidacy and refunds its escrow.
func (r *Registry) RevokeRequest(ctx *state.Context) error {
	caller := ctx.Caller()
	l, ok, err := r.getLocker(ctx, caller)
	if err != nil {
		return err
	}
	if !ok || !l.IsCandidate() {
		return ErrNoSuchRequest
	}

	r.deleteLocker(ctx, l)
	if _, err := r.candidates.Remove(ctx, caller); err != nil {
		return err
	}
	if err := r.refund(ctx, l); err != nil {
		return err
	}

	ctx.Emit("RevokeAddLockerRequest", logger.Fields{
		"locker":     caller.Hex(),
		"collateral": l.LockedCollateral.String(),
		"native":     l.LockedNative.String(),
	})
	return nil
}

func (r *Registry) refund(ctx *state.Context, l *Locker) error {
	if l.LockedCollateral.Sign() > 0 {
		if err := r.cfg.CollateralToken.Transfer(r.self(ctx), l.Address, l.LockedCollateral); err != nil {
			return err
		}
	}
	if l.LockedNative.Sign() > 0 {
		if err := r.cfg.NativeToken.Transfer(r.self(ctx), l.Address, l.LockedNative); err != nil {
			return err
		}
	}
	return nil
}

// AddLocker activates a candidate. Owner only.
func (r *Registry) AddLocker(ctx *state.Context, addr ethcommon.Address) error {
	if err := r.caps.Require(ctx, access.Owner); err != nil {
		return err
	}
	l, ok, err := r.getLocker(ctx, addr)
	if err != nil {
		return err
	}
	if !ok || !l.IsCandidate() {
		return ErrNoSuchRequest
	}

	l.Status = StatusActive
	if err := r.putLocker(ctx, l); err != nil {
		return err
	}
	if _, err := r.candidates.Remove(ctx, addr); err != nil {
		return err
	}
	if _, err := r.lockers.Add(ctx, addr); err != nil {
		return err
	}

	ctx.Emit("LockerAdded", logger.Fields{
		"locker":        addr.Hex(),
		"lockingScript": common.ByteSliceToPureHexStr(l.LockingScript),
		"collateral":    l.LockedCollateral.String(),
		"native":        l.LockedNative.String(),
	})
	return nil
}

// RequestToRemoveLocker schedules the caller's removal. The locker stops
// accepting mints but can still be burned against and slashed.
func (r *Registry) RequestToRemoveLocker(ctx *state.Context) error {
	l, ok, err := r.getLocker(ctx, ctx.Caller())
	if err != nil {
		return err
	}
	if !ok || !l.IsActive() {
		return ErrNotALocker
	}

	l.Status = StatusRemovalRequested
	l.RequestedRemovalAt = uint64(ctx.Now().Unix())
	if err := r.putLocker(ctx, l); err != nil {
		return err
	}

	ctx.Emit("RequestRemoveLocker", logger.Fields{
		"locker":    l.Address.Hex(),
		"netMinted": l.NetMinted.String(),
	})
	return nil
}

// RemoveLocker removes a locker that requested removal. Owner only.
func (r *Registry) RemoveLocker(ctx *state.Context, addr ethcommon.Address) error {
	if err := r.caps.Require(ctx, access.Owner); err != nil {
		return err
	}
	l, ok, err := r.getLocker(ctx, addr)
	if err != nil {
		return err
	}
	if !ok || l.Status != StatusRemovalRequested {
		return ErrRemovalNotRequested
	}
	return r.removeLocker(ctx, l)
}

// SelfRemoveLocker lets a locker that requested removal leave by itself.
func (r *Registry) SelfRemoveLocker(ctx *state.Context) error {
	l, ok, err := r.getLocker(ctx, ctx.Caller())
	if err != nil {
		return err
	}
	if !ok || !l.IsLocker() {
		return ErrNotALocker
	}
	if l.Status != StatusRemovalRequested {
		return ErrRemovalNotRequested
	}
	return r.removeLocker(ctx, l)
}

func (r *Registry) removeLocker(ctx *state.Context, l *Locker) error {
	if l.NetMinted.Sign() > 0 {
		return fmt.Errorf("%w: %s", ErrLockerHasDebt, l.NetMinted)
	}

	r.deleteLocker(ctx, l)
	if _, err := r.lockers.Remove(ctx, l.Address); err != nil {
		return err
	}
	if err := r.refund(ctx, l); err != nil {
		return err
	}

	ctx.Emit("LockerRemoved", logger.Fields{
		"locker":     l.Address.Hex(),
		"collateral": l.LockedCollateral.String(),
		"native":     l.LockedNative.String(),
		"slashed":    l.Slashed.String(),
	})
	return nil
}
