package lockers

import (
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/TEENet-io/teleport-bridge/common"
)

type Status uint8

const (
	StatusNone Status = iota
	StatusCandidate
	StatusActive
	StatusRemovalRequested
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusCandidate:
		return "candidate"
	case StatusActive:
		return "active"
	case StatusRemovalRequested:
		return "removalRequested"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Locker is the record of a custodian, from candidacy until removal.
type Locker struct {
	Address            ethcommon.Address
	ExternalPublicKey  []byte
	LockingScript      []byte
	LockedCollateral   *big.Int
	LockedNative       *big.Int
	NetMinted          *big.Int
	Slashed            *big.Int
	Status             Status
	RequestedRemovalAt uint64
	CreatedAt          uint64
}

func (l *Locker) IsCandidate() bool { return l.Status == StatusCandidate }

// IsLocker reports whether the record backs minted debt, i.e. it is active
// or waiting for removal.
func (l *Locker) IsLocker() bool {
	return l.Status == StatusActive || l.Status == StatusRemovalRequested
}

func (l *Locker) IsActive() bool { return l.Status == StatusActive }

func (l *Locker) LockingScriptHash() ethcommon.Hash {
	return common.Keccak256Packed(l.LockingScript)
}

func (l *Locker) String() string {
	return fmt.Sprintf("Locker{Address: %s, Script: %s, Collateral: %s, Native: %s, NetMinted: %s, Slashed: %s, Status: %s}",
		l.Address.Hex(), common.Shorten(common.ByteSliceToPureHexStr(l.LockingScript), 8),
		l.LockedCollateral, l.LockedNative, l.NetMinted, l.Slashed, l.Status)
}

// Params are the registry parameters set by the owner.
type Params struct {
	MinRequiredCollateral *big.Int
	MinRequiredNative     *big.Int
	// CollateralRatio is the required value(collateral)/value(debt), parts per 10000.
	CollateralRatio       uint64
	LockerPercentageFee   uint64
	TreasuryPercentageFee uint64
	Treasury              ethcommon.Address
	// SlashPenaltyRatio is the share of the slashed base amount's value seized
	// for the slasher beneficiary, parts per 10000.
	SlashPenaltyRatio uint64
	BurnRouter        ethcommon.Address
	// CheckCapacityOnMint rejects mints exceeding the locker capacity.
	CheckCapacityOnMint bool
	Paused              bool
}

func (p *Params) validate() error {
	if p.MinRequiredCollateral == nil || p.MinRequiredCollateral.Sign() < 0 ||
		p.MinRequiredNative == nil || p.MinRequiredNative.Sign() < 0 {
		return fmt.Errorf("%w: minimum collateral", common.ErrInvalidArgument)
	}
	if p.CollateralRatio < common.PercentageDenominator {
		return fmt.Errorf("%w: collateral ratio %d below 100%%", common.ErrInvalidArgument, p.CollateralRatio)
	}
	if p.LockerPercentageFee+p.TreasuryPercentageFee > common.PercentageDenominator {
		return fmt.Errorf("%w: locker %d + treasury %d", common.ErrFeeOutOfRange, p.LockerPercentageFee, p.TreasuryPercentageFee)
	}
	if p.TreasuryPercentageFee > 0 && p.Treasury == (ethcommon.Address{}) {
		return fmt.Errorf("%w: treasury fee without treasury", common.ErrInvalidArgument)
	}
	return nil
}

// SlashResult reports what a slash actually seized and paid.
type SlashResult struct {
	// RewardCollateral is the collateral spent on the reward recipient.
	RewardCollateral *big.Int
	// PenaltyCollateral is the collateral sent to the slasher beneficiary.
	PenaltyCollateral *big.Int
	// RewardWrapped is the wrapped amount the reward recipient received
	// from the swap, zero if collateral was paid out instead.
	RewardWrapped *big.Int
	Swapped       bool
	// Partial is set when less than requested could be seized or delivered.
	Partial bool
}

func (r *SlashResult) Total() *big.Int {
	return new(big.Int).Add(r.RewardCollateral, r.PenaltyCollateral)
}
