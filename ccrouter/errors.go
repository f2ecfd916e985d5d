package ccrouter

import (
	"errors"
	"fmt"

	"github.com/TEENet-io/teleport-bridge/common"
)

var (
	ErrAlreadyProcessed     = fmt.Errorf("%w: the request has been used before", common.ErrAlreadyProcessed)
	ErrProofInvalid         = fmt.Errorf("%w: transaction is not finalized", common.ErrProofInvalid)
	ErrRequestTooOld        = fmt.Errorf("%w: request is older than the starting block", common.ErrInvalidArgument)
	ErrLockerOutputNotFound = fmt.Errorf("%w: no output pays the locker", common.ErrInvalidArgument)
	ErrChainMismatch        = fmt.Errorf("%w: chain id is not correct", common.ErrChainMismatch)
	ErrAppMismatch          = fmt.Errorf("%w: app id is not correct", common.ErrAppMismatch)
	ErrZeroAmount           = fmt.Errorf("%w: input amount is zero", common.ErrInvalidArgument)
	ErrPaused               = fmt.Errorf("%w: paused", common.ErrInvalidState)
	ErrNotPaused            = fmt.Errorf("%w: not paused", common.ErrInvalidState)
	ErrNilTx                = fmt.Errorf("%w: nil tx fields", common.ErrInvalidArgument)
	ErrNilProof             = fmt.Errorf("%w: nil proof", common.ErrProofInvalid)
	ErrZeroRecipient        = fmt.Errorf("%w: zero recipient", common.ErrMalformedPayload)
	ErrFeesMisconfigured    = fmt.Errorf("%w: protocol, locker and treasury fees exceed 100%%", common.ErrInvalidState)
)

// isTerminal reports whether err is a property of the deposit itself that
// no resubmission can fix. Such a deposit consumes its fingerprint.
func isTerminal(err error) bool {
	return errors.Is(err, common.ErrMalformedPayload) ||
		errors.Is(err, common.ErrChainMismatch) ||
		errors.Is(err, common.ErrAppMismatch) ||
		errors.Is(err, common.ErrFeeOutOfRange) ||
		errors.Is(err, ErrZeroAmount)
}
