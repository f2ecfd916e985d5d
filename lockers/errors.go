package lockers

import (
	"fmt"

	"github.com/TEENet-io/teleport-bridge/common"
)

var (
	ErrInsufficientCollateral   = fmt.Errorf("%w: low locking collateral amount", common.ErrInsufficientFunds)
	ErrAlreadyCandidateOrLocker = fmt.Errorf("%w: already candidate or locker", common.ErrInvalidState)
	ErrLockingScriptInUse       = fmt.Errorf("%w: locking script already used", common.ErrInvalidState)
	ErrNoSuchRequest            = fmt.Errorf("%w: request doesn't exist or already accepted", common.ErrInvalidState)
	ErrNotALocker               = fmt.Errorf("%w: sender is not locker", common.ErrInvalidState)
	ErrRemovalNotRequested      = fmt.Errorf("%w: locker didn't request to be removed", common.ErrInvalidState)
	ErrLockerHasDebt            = fmt.Errorf("%w: locker has outstanding minted debt", common.ErrInvalidState)
	ErrUnknownLocker            = fmt.Errorf("%w: no active locker for locking script", common.ErrInvalidState)
	ErrTargetNotLocker          = fmt.Errorf("%w: target is not locker", common.ErrInvalidState)
	ErrInsufficientDebt         = fmt.Errorf("%w: amount exceeds locker net minted", common.ErrInsufficientFunds)
	ErrInsufficientCapacity     = fmt.Errorf("%w: amount exceeds locker capacity", common.ErrInsufficientFunds)
	ErrPaused                   = fmt.Errorf("%w: paused", common.ErrInvalidState)
	ErrNotPaused                = fmt.Errorf("%w: not paused", common.ErrInvalidState)
	ErrInvalidAmount            = fmt.Errorf("%w: amount must be positive", common.ErrInvalidArgument)
)
