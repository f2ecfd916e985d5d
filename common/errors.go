package common

import "errors"

// Error categories. Package level errors wrap one of these so that callers
// can match either the precise failure or its category with errors.Is.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidState       = errors.New("invalid state")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrProofInvalid       = errors.New("proof invalid")
	ErrAlreadyProcessed   = errors.New("request already processed")
	ErrChainMismatch      = errors.New("chain id mismatch")
	ErrAppMismatch        = errors.New("app id mismatch")
	ErrNoPriceFeed        = errors.New("price proxy does not exist")
	ErrSwapFailed         = errors.New("swap failed")
	ErrBelowMinOutput     = errors.New("output below minimum")
	ErrMalformedPayload   = errors.New("malformed request payload")
	ErrFeeOutOfRange      = errors.New("percentage fee out of range")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)
