package reporter

import (
	"fmt"
	"net/http"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/ccrouter"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/state"
)

// DepositSubmission is what a relayer posts for a deposit. Byte fields are
// hex with or without 0x. The teleporter is the caller of the operation and
// earns the teleporter fee.
type DepositSubmission struct {
	Version           string `json:"version" binding:"required"`
	Vin               string `json:"vin" binding:"required"`
	Vout              string `json:"vout" binding:"required"`
	Locktime          string `json:"locktime" binding:"required"`
	LockingScript     string `json:"lockingScript" binding:"required"`
	BlockHeight       uint64 `json:"blockHeight"`
	IntermediateNodes string `json:"intermediateNodes"`
	Index             uint64 `json:"index"`
	Teleporter        string `json:"teleporter" binding:"required"`
}

// NewDepositSubmission fills a submission from its decoded parts.
func NewDepositSubmission(tx *common.TxFields, lockingScript []byte, blockHeight uint64, proof *agreement.MerkleProof, teleporter ethcommon.Address) *DepositSubmission {
	return &DepositSubmission{
		Version:           common.ByteSliceToPureHexStr(tx.Version[:]),
		Vin:               common.ByteSliceToPureHexStr(tx.Vin),
		Vout:              common.ByteSliceToPureHexStr(tx.Vout),
		Locktime:          common.ByteSliceToPureHexStr(tx.Locktime[:]),
		LockingScript:     common.ByteSliceToPureHexStr(lockingScript),
		BlockHeight:       blockHeight,
		IntermediateNodes: common.ByteSliceToPureHexStr(proof.IntermediateNodes),
		Index:             proof.Index,
		Teleporter:        teleporter.Hex(),
	}
}

type deposit struct {
	tx            *common.TxFields
	lockingScript []byte
	blockHeight   uint64
	proof         *agreement.MerkleProof
	teleporter    ethcommon.Address
}

func decodeWord(name, s string) ([4]byte, error) {
	var w [4]byte
	b, err := common.DecodeHex(s)
	if err != nil {
		return w, err
	}
	if len(b) != len(w) {
		return w, fmt.Errorf("%w: %s must be %d bytes", common.ErrInvalidArgument, name, len(w))
	}
	copy(w[:], b)
	return w, nil
}

func (s *DepositSubmission) decode() (*deposit, error) {
	var (
		d   = &deposit{tx: &common.TxFields{}, blockHeight: s.BlockHeight, proof: &agreement.MerkleProof{Index: s.Index}}
		err error
	)
	if d.tx.Version, err = decodeWord("version", s.Version); err != nil {
		return nil, err
	}
	if d.tx.Locktime, err = decodeWord("locktime", s.Locktime); err != nil {
		return nil, err
	}
	if d.tx.Vin, err = common.DecodeHex(s.Vin); err != nil {
		return nil, err
	}
	if d.tx.Vout, err = common.DecodeHex(s.Vout); err != nil {
		return nil, err
	}
	if d.lockingScript, err = common.DecodeHex(s.LockingScript); err != nil {
		return nil, err
	}
	if s.IntermediateNodes != "" {
		if d.proof.IntermediateNodes, err = common.DecodeHex(s.IntermediateNodes); err != nil {
			return nil, err
		}
	}
	if d.teleporter, err = common.ParseAddress(s.Teleporter); err != nil {
		return nil, err
	}
	return d, nil
}

type processFunc func(ctx *state.Context, d *deposit) (*ccrouter.Request, error)

func (h *HttpReporter) submitDeposit(c *gin.Context, route string, process processFunc) {
	var body DepositSubmission
	if err := c.ShouldBindJSON(&body); err != nil {
		h.metrics.ObserveSubmission(route, http.StatusBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := body.decode()
	if err != nil {
		h.metrics.ObserveSubmission(route, http.StatusBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var rec *ccrouter.Request
	_, err = h.bridge.Host.Execute(d.teleporter, func(ctx *state.Context) error {
		var err error
		rec, err = process(ctx, d)
		return err
	})
	if err != nil {
		code := statusOf(err)
		h.metrics.ObserveSubmission(route, code)
		logger.WithFields(logger.Fields{
			"route":      route,
			"txId":       d.tx.TxID().String(),
			"teleporter": d.teleporter.Hex(),
		}).WithError(err).Info("deposit submission failed")

		resp := gin.H{"error": err.Error()}
		if state.IsPersisted(err) && rec != nil {
			resp["data"] = requestView(rec)
		}
		c.JSON(code, resp)
		return
	}

	h.metrics.ObserveSubmission(route, http.StatusOK)
	c.JSON(http.StatusOK, gin.H{"data": requestView(rec)})
}

func (h *HttpReporter) SubmitTransfer(c *gin.Context) {
	h.submitDeposit(c, ROUTE_TRANSFER, func(ctx *state.Context, d *deposit) (*ccrouter.Request, error) {
		return h.bridge.Transfer.ProcessTransfer(ctx, d.tx, d.lockingScript, d.blockHeight, d.proof)
	})
}

func (h *HttpReporter) SubmitExchange(c *gin.Context) {
	h.submitDeposit(c, ROUTE_EXCHANGE, func(ctx *state.Context, d *deposit) (*ccrouter.Request, error) {
		return h.bridge.Exchange.ProcessExchange(ctx, d.tx, d.lockingScript, d.blockHeight, d.proof)
	})
}

// HeaderSubmission carries a hex encoded 80-byte block header.
type HeaderSubmission struct {
	Height uint64 `json:"height"`
	Header string `json:"header" binding:"required"`
}

func (h *HttpReporter) SubmitHeader(c *gin.Context) {
	var body HeaderSubmission
	if err := c.ShouldBindJSON(&body); err != nil {
		h.metrics.ObserveSubmission(ROUTE_HEADER, http.StatusBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	raw, err := common.DecodeHex(body.Header)
	if err == nil {
		err = h.bridge.Relay.SubmitRawHeader(body.Height, raw)
	}
	if err != nil {
		code := statusOf(err)
		h.metrics.ObserveSubmission(ROUTE_HEADER, code)
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}

	tip, ok := h.bridge.Relay.Tip()
	if !ok {
		logger.WithField("height", body.Height).Error("relay has no tip after storing a header")
		h.metrics.ObserveSubmission(ROUTE_HEADER, http.StatusInternalServerError)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "relay tip unavailable"})
		return
	}
	h.metrics.SetRelayTip(tip)
	h.metrics.ObserveSubmission(ROUTE_HEADER, http.StatusOK)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"height": body.Height, "tip": tip}})
}
