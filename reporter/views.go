package reporter

import (
	"github.com/gin-gonic/gin"

	"github.com/TEENet-io/teleport-bridge/ccrouter"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/lockers"
)

// Amounts are rendered as base-10 strings, scripts and keys as plain hex.

func lockerView(l *lockers.Locker) gin.H {
	return gin.H{
		"address":            l.Address.Hex(),
		"externalPublicKey":  common.ByteSliceToPureHexStr(l.ExternalPublicKey),
		"lockingScript":      common.ByteSliceToPureHexStr(l.LockingScript),
		"lockedCollateral":   l.LockedCollateral.String(),
		"lockedNative":       l.LockedNative.String(),
		"netMinted":          l.NetMinted.String(),
		"slashed":            l.Slashed.String(),
		"status":             l.Status.String(),
		"requestedRemovalAt": l.RequestedRemovalAt,
		"createdAt":          l.CreatedAt,
	}
}

func requestView(r *ccrouter.Request) gin.H {
	view := gin.H{
		"txId":          r.TxID.String(),
		"kind":          r.Kind.String(),
		"status":        r.Status.String(),
		"blockHeight":   r.BlockHeight,
		"lockingScript": common.ByteSliceToPureHexStr(r.LockingScript),
		"locker":        r.Locker.Hex(),
		"teleporter":    r.Teleporter.Hex(),
		"recipient":     r.Recipient.Hex(),
		"speed":         r.Speed,
		"inputAmount":   r.Gross.String(),
		"teleporterFee": r.TeleporterFee.String(),
		"lockerFee":     r.LockerFee.String(),
		"protocolFee":   r.ProtocolFee.String(),
		"treasuryFee":   r.TreasuryFee.String(),
		"netAmount":     r.NetAmount.String(),
		"processedAt":   r.ProcessedAt,
	}
	if r.Reason != "" {
		view["reason"] = r.Reason
	}
	if r.Kind == ccrouter.KindExchange {
		view["exchangeToken"] = r.ExchangeToken.Hex()
		view["outputAmount"] = r.OutputAmount.String()
		view["exchangedAmount"] = r.ExchangedAmount.String()
		view["deadline"] = r.Deadline
	}
	return view
}

func registryParamsView(p *lockers.Params) gin.H {
	return gin.H{
		"minRequiredCollateral": p.MinRequiredCollateral.String(),
		"minRequiredNative":     p.MinRequiredNative.String(),
		"collateralRatio":       p.CollateralRatio,
		"lockerPercentageFee":   p.LockerPercentageFee,
		"treasuryPercentageFee": p.TreasuryPercentageFee,
		"treasury":              p.Treasury.Hex(),
		"slashPenaltyRatio":     p.SlashPenaltyRatio,
		"burnRouter":            p.BurnRouter.Hex(),
		"checkCapacityOnMint":   p.CheckCapacityOnMint,
		"paused":                p.Paused,
	}
}

func routerParamsView(p *ccrouter.Params) gin.H {
	return gin.H{
		"chainId":               p.ChainID,
		"appId":                 p.AppID,
		"protocolPercentageFee": p.ProtocolPercentageFee,
		"treasury":              p.Treasury.Hex(),
		"startingBlockHeight":   p.StartingBlockHeight,
		"paused":                p.Paused,
	}
}
