package ccrouter

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/TEENet-io/teleport-bridge/common"
)

type RequestStatus uint8

const (
	StatusNone RequestStatus = iota
	// StatusCompleted: wrapped asset delivered to the recipient.
	StatusCompleted
	// StatusExchanged: the net amount was swapped for the exchange token.
	StatusExchanged
	// StatusExchangeFallback: the swap failed and the net amount was
	// delivered as wrapped asset.
	StatusExchangeFallback
	// StatusRejected: the deposit can never be honored.
	StatusRejected
)

func (s RequestStatus) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusCompleted:
		return "completed"
	case StatusExchanged:
		return "exchanged"
	case StatusExchangeFallback:
		return "exchangeFallback"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

type RequestKind uint8

const (
	KindTransfer RequestKind = iota + 1
	KindExchange
)

func (k RequestKind) String() string {
	switch k {
	case KindTransfer:
		return "transfer"
	case KindExchange:
		return "exchange"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Request is the consumption record of a deposit, keyed by its txid.
type Request struct {
	TxID          chainhash.Hash
	Kind          RequestKind
	Status        RequestStatus
	Reason        string
	BlockHeight   uint64
	LockingScript []byte
	Locker        ethcommon.Address
	Teleporter    ethcommon.Address
	Recipient     ethcommon.Address
	Speed         uint8

	Gross         *big.Int
	TeleporterFee *big.Int
	LockerFee     *big.Int
	ProtocolFee   *big.Int
	TreasuryFee   *big.Int
	NetAmount     *big.Int

	ExchangeToken ethcommon.Address
	// OutputAmount is the requested minimum (or exact, for fixed token
	// requests) output, ExchangedAmount what the recipient received.
	OutputAmount    *big.Int
	ExchangedAmount *big.Int
	Deadline        uint64

	ProcessedAt uint64
}

func newRequest(kind RequestKind, txID chainhash.Hash) *Request {
	return &Request{
		TxID:            txID,
		Kind:            kind,
		Gross:           new(big.Int),
		TeleporterFee:   new(big.Int),
		LockerFee:       new(big.Int),
		ProtocolFee:     new(big.Int),
		TreasuryFee:     new(big.Int),
		NetAmount:       new(big.Int),
		OutputAmount:    new(big.Int),
		ExchangedAmount: new(big.Int),
	}
}

func (r *Request) setSplit(s *common.FeeSplit) {
	r.Gross = common.BigIntClone(s.Gross)
	r.TeleporterFee = common.BigIntClone(s.TeleporterFee)
	r.LockerFee = common.BigIntClone(s.LockerFee)
	r.ProtocolFee = common.BigIntClone(s.ProtocolFee)
	r.TreasuryFee = common.BigIntClone(s.TreasuryFee)
	r.NetAmount = common.BigIntClone(s.NetAmount)
}

func (r *Request) String() string {
	return fmt.Sprintf("Request{TxID: %s, Kind: %s, Status: %s, Recipient: %s, Gross: %s, Net: %s, Reason: %q}",
		r.TxID, r.Kind, r.Status, r.Recipient.Hex(), r.Gross, r.NetAmount, r.Reason)
}
