package common

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// PercentageDenominator is the unit of every percentage fee and ratio,
// i.e. percentages are expressed in parts per 10000 (basis points).
const PercentageDenominator = 10000

// FeeRates holds the percentages applied to a gross amount.
type FeeRates struct {
	Teleporter uint64
	Locker     uint64
	Protocol   uint64
	Treasury   uint64
}

func (r FeeRates) Sum() uint64 {
	return r.Teleporter + r.Locker + r.Protocol + r.Treasury
}

// FeeSplit is the decomposition of Gross. NetAmount is what remains after
// all fees so that the parts always add up to Gross.
type FeeSplit struct {
	Gross         *big.Int
	TeleporterFee *big.Int
	LockerFee     *big.Int
	ProtocolFee   *big.Int
	TreasuryFee   *big.Int
	NetAmount     *big.Int
}

func (s *FeeSplit) Total() *big.Int {
	total := new(big.Int).Set(s.NetAmount)
	for _, fee := range []*big.Int{s.TeleporterFee, s.LockerFee, s.ProtocolFee, s.TreasuryFee} {
		total.Add(total, fee)
	}
	return total
}

func (s *FeeSplit) String() string {
	return fmt.Sprintf("FeeSplit{Gross: %s, Teleporter: %s, Locker: %s, Protocol: %s, Treasury: %s, Net: %s}",
		s.Gross, s.TeleporterFee, s.LockerFee, s.ProtocolFee, s.TreasuryFee, s.NetAmount)
}

// PercentageOf returns floor(amount * pct / 10000). The multiplication is
// checked against the 256-bit word size of the host ledger.
func PercentageOf(amount *big.Int, pct uint64) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount", ErrInvalidArgument)
	}
	a, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	prod, overflow := new(uint256.Int).MulOverflow(a, uint256.NewInt(pct))
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return prod.Div(prod, uint256.NewInt(PercentageDenominator)).ToBig(), nil
}

// ComputeFeeSplit splits gross according to rates. Rates adding up to more
// than 100% are rejected.
func ComputeFeeSplit(gross *big.Int, rates FeeRates) (*FeeSplit, error) {
	if rates.Sum() > PercentageDenominator {
		return nil, fmt.Errorf("%w: total %d", ErrFeeOutOfRange, rates.Sum())
	}

	split := &FeeSplit{Gross: new(big.Int).Set(gross)}
	var err error
	if split.TeleporterFee, err = PercentageOf(gross, rates.Teleporter); err != nil {
		return nil, err
	}
	if split.LockerFee, err = PercentageOf(gross, rates.Locker); err != nil {
		return nil, err
	}
	if split.ProtocolFee, err = PercentageOf(gross, rates.Protocol); err != nil {
		return nil, err
	}
	if split.TreasuryFee, err = PercentageOf(gross, rates.Treasury); err != nil {
		return nil, err
	}

	split.NetAmount = new(big.Int).Set(gross)
	split.NetAmount.Sub(split.NetAmount, split.TeleporterFee)
	split.NetAmount.Sub(split.NetAmount, split.LockerFee)
	split.NetAmount.Sub(split.NetAmount, split.ProtocolFee)
	split.NetAmount.Sub(split.NetAmount, split.TreasuryFee)

	return split, nil
}
