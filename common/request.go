package common

/*
Deposit request payload carried as OP_RETURN data of a base-chain transaction
that pays a locker. Layout (big-endian, version 1):

	offset size field
	0      2    chainId
	2      2    appId
	4      20   recipient
	24     2    percentageFee (teleporter, parts per 10000)
	26     1    speed
	27     20   exchangeToken   (exchange request only)
	47     28   outputAmount    (exchange request only)
	75     4    deadline        (exchange request only, unix seconds)
	79     1    isFixedToken    (exchange request only)

The version is identified by the payload length. A layout change must use a
new length or an explicit version byte.
*/

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

const (
	RequestVersion = 1

	TransferRequestLength = 27
	ExchangeRequestLength = 80

	outputAmountLength = 28

	SpeedNormal = 0
	SpeedFast   = 1
)

var (
	ErrPayloadLength     = fmt.Errorf("%w: unexpected length", ErrMalformedPayload)
	ErrInvalidSpeed      = fmt.Errorf("%w: invalid speed", ErrMalformedPayload)
	ErrInvalidFixedFlag  = fmt.Errorf("%w: invalid isFixedToken flag", ErrMalformedPayload)
	ErrOutputAmountRange = fmt.Errorf("%w: output amount exceeds 224 bits", ErrInvalidArgument)
)

type TransferRequest struct {
	ChainID       uint16
	AppID         uint16
	Recipient     ethcommon.Address
	PercentageFee uint16
	Speed         uint8
}

type ExchangeRequest struct {
	TransferRequest
	ExchangeToken ethcommon.Address
	OutputAmount  *big.Int
	Deadline      uint32
	IsFixedToken  bool
}

func (r *TransferRequest) String() string {
	return fmt.Sprintf("TransferRequest{ChainID: %d, AppID: %d, Recipient: %s, PercentageFee: %d, Speed: %d}",
		r.ChainID, r.AppID, r.Recipient.Hex(), r.PercentageFee, r.Speed)
}

func (r *ExchangeRequest) String() string {
	return fmt.Sprintf("ExchangeRequest{%s, ExchangeToken: %s, OutputAmount: %s, Deadline: %d, IsFixedToken: %v}",
		r.TransferRequest.String(), r.ExchangeToken.Hex(), r.OutputAmount, r.Deadline, r.IsFixedToken)
}

func (r *TransferRequest) Encode() []byte {
	b := make([]byte, TransferRequestLength)
	r.encodeInto(b)
	return b
}

func (r *TransferRequest) encodeInto(b []byte) {
	binary.BigEndian.PutUint16(b[0:2], r.ChainID)
	binary.BigEndian.PutUint16(b[2:4], r.AppID)
	copy(b[4:24], r.Recipient[:])
	binary.BigEndian.PutUint16(b[24:26], r.PercentageFee)
	b[26] = r.Speed
}

func (r *ExchangeRequest) Encode() ([]byte, error) {
	amount := r.OutputAmount
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 || amount.BitLen() > outputAmountLength*8 {
		return nil, ErrOutputAmountRange
	}

	b := make([]byte, ExchangeRequestLength)
	r.encodeInto(b)
	copy(b[27:47], r.ExchangeToken[:])
	amount.FillBytes(b[47:75])
	binary.BigEndian.PutUint32(b[75:79], r.Deadline)
	if r.IsFixedToken {
		b[79] = 1
	}
	return b, nil
}

func decodeTransferFields(data []byte) (TransferRequest, error) {
	r := TransferRequest{
		ChainID:       binary.BigEndian.Uint16(data[0:2]),
		AppID:         binary.BigEndian.Uint16(data[2:4]),
		Recipient:     ethcommon.BytesToAddress(data[4:24]),
		PercentageFee: binary.BigEndian.Uint16(data[24:26]),
		Speed:         data[26],
	}
	if r.Speed != SpeedNormal && r.Speed != SpeedFast {
		return r, fmt.Errorf("%w: %d", ErrInvalidSpeed, r.Speed)
	}
	if r.PercentageFee > PercentageDenominator {
		return r, fmt.Errorf("%w: teleporter fee %d", ErrFeeOutOfRange, r.PercentageFee)
	}
	return r, nil
}

// ParseTransferRequest decodes a transfer request payload. It does not
// check the chain or app id against any deployment.
func ParseTransferRequest(data []byte) (*TransferRequest, error) {
	if len(data) != TransferRequestLength {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrPayloadLength, len(data), TransferRequestLength)
	}
	r, err := decodeTransferFields(data)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ParseExchangeRequest decodes an exchange request payload.
func ParseExchangeRequest(data []byte) (*ExchangeRequest, error) {
	if len(data) != ExchangeRequestLength {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrPayloadLength, len(data), ExchangeRequestLength)
	}
	tr, err := decodeTransferFields(data)
	if err != nil {
		return nil, err
	}

	r := &ExchangeRequest{
		TransferRequest: tr,
		ExchangeToken:   ethcommon.BytesToAddress(data[27:47]),
		OutputAmount:    new(big.Int).SetBytes(data[47:75]),
		Deadline:        binary.BigEndian.Uint32(data[75:79]),
	}
	switch data[79] {
	case 0:
	case 1:
		r.IsFixedToken = true
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidFixedFlag, data[79])
	}
	return r, nil
}
