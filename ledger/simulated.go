package ledger

import (
	"github.com/TEENet-io/teleport-bridge/common"
)

// RandLedger returns a ledger at a random token address.
func RandLedger(symbol string, decimals uint8) *Ledger {
	return New(&Config{
		Address:  common.RandEthAddress(),
		Name:     symbol,
		Symbol:   symbol,
		Decimals: decimals,
	})
}
