// This is a http type of reporter.
// It reads the bridge state through the host, publishes it on http routes
// and forwards relayer submissions to the routers and the relay.

package reporter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/TEENet-io/teleport-bridge/btcrelay"
	"github.com/TEENet-io/teleport-bridge/ccrouter"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/ledger"
	"github.com/TEENet-io/teleport-bridge/lockers"
	"github.com/TEENet-io/teleport-bridge/pricehealth"
	"github.com/TEENet-io/teleport-bridge/state"
)

const (
	ROUTE_HELLO    = "/hello"
	ROUTE_PARAMS   = "/params"
	ROUTE_LOCKERS  = "/lockers"
	ROUTE_LOCKER   = "/locker"
	ROUTE_REQUEST  = "/request"
	ROUTE_BALANCE  = "/balance"
	ROUTE_CONVERT  = "/convert"
	ROUTE_TRANSFER = "/transfer"
	ROUTE_EXCHANGE = "/exchange"
	ROUTE_HEADER   = "/header"
	ROUTE_METRICS  = "/metrics"
)

const shutdownTimeout = 5 * time.Second

// Bridge is the set of components behind the reporter.
type Bridge struct {
	Host     *state.Host
	Registry *lockers.Registry
	Transfer *ccrouter.TransferRouter
	Exchange *ccrouter.ExchangeRouter
	Relay    *btcrelay.Relay
	Engine   *pricehealth.Engine
	Tokens   []*ledger.Ledger

	// ChainParams lets lockers be looked up by base-chain address. Optional.
	ChainParams *chaincfg.Params
}

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	bridge  *Bridge
	tokens  map[string]*ledger.Ledger // by upper case symbol and by address
	metrics *Metrics
}

// NewHttpReporter subscribes the reporter metrics to the bridge host.
func NewHttpReporter(serverIP string, serverPort string, bridge *Bridge) *HttpReporter {
	h := &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		bridge:     bridge,
		tokens:     make(map[string]*ledger.Ledger),
		metrics:    NewMetrics(),
	}
	for _, t := range bridge.Tokens {
		h.tokens[strings.ToUpper(t.Symbol())] = t
		h.tokens[strings.ToLower(t.Address().Hex())] = t
	}
	bridge.Host.Subscribe(h.metrics)
	if bridge.Relay != nil {
		if tip, ok := bridge.Relay.Tip(); ok {
			h.metrics.SetRelayTip(tip)
		}
	}
	return h
}

func (h *HttpReporter) Metrics() *Metrics {
	return h.metrics
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_HELLO, Hello)
	router.GET(ROUTE_PARAMS, h.Params)
	router.GET(ROUTE_LOCKERS, h.Lockers)
	router.GET(ROUTE_LOCKER+"/:address", h.Locker)
	router.GET(ROUTE_REQUEST+"/:txid", h.Request)
	router.GET(ROUTE_BALANCE+"/:token/:address", h.Balance)
	router.GET(ROUTE_CONVERT, h.Convert)

	router.POST(ROUTE_TRANSFER, h.SubmitTransfer)
	router.POST(ROUTE_EXCHANGE, h.SubmitExchange)
	router.POST(ROUTE_HEADER, h.SubmitHeader)

	router.GET(ROUTE_METRICS, gin.WrapH(h.metrics.Handler()))

	return router
}

// Hook up router & ip:port. Serves until ctx is done.
func (h *HttpReporter) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    h.serverIP + ":" + h.serverPort,
		Handler: h.SetupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Example route.
func Hello(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "world",
	})
}

func (h *HttpReporter) Params(c *gin.Context) {
	data := gin.H{}
	err := h.bridge.Host.View(func(ctx *state.Context) error {
		rp, err := h.bridge.Registry.Params(ctx)
		if err != nil {
			return err
		}
		data["lockers"] = registryParamsView(rp)

		if h.bridge.Transfer != nil {
			tp, err := h.bridge.Transfer.Params(ctx)
			if err != nil {
				return err
			}
			data["transfer"] = routerParamsView(tp)
		}
		if h.bridge.Exchange != nil {
			ep, err := h.bridge.Exchange.Params(ctx)
			if err != nil {
				return err
			}
			data["exchange"] = routerParamsView(ep)
		}
		if h.bridge.Engine != nil {
			delay, err := h.bridge.Engine.AcceptableDelay(ctx)
			if err != nil {
				return err
			}
			data["acceptablePriceDelay"] = delay.String()
		}
		return nil
	})
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	if h.bridge.Relay != nil {
		if tip, ok := h.bridge.Relay.Tip(); ok {
			data["relayTip"] = tip
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// Lockers lists the lockers, or the candidates with ?status=candidate.
func (h *HttpReporter) Lockers(c *gin.Context) {
	var list []*lockers.Locker
	err := h.bridge.Host.View(func(ctx *state.Context) (err error) {
		if c.Query("status") == lockers.StatusCandidate.String() {
			list, err = h.bridge.Registry.Candidates(ctx)
		} else {
			list, err = h.bridge.Registry.Lockers(ctx)
		}
		return err
	})
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}

	views := make([]gin.H, 0, len(list))
	for _, l := range list {
		views = append(views, lockerView(l))
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

// Locker accepts a host-chain address or, when chain params are set, the
// base-chain address of the locker locking script.
func (h *HttpReporter) Locker(c *gin.Context) {
	key := c.Param("address")
	var (
		addr   ethcommon.Address
		script []byte
		err    error
	)
	switch {
	case ethcommon.IsHexAddress(key):
		addr = ethcommon.HexToAddress(key)
	case h.bridge.ChainParams != nil:
		script, err = common.LockingScriptFromAddress(key, h.bridge.ChainParams)
	default:
		_, err = common.ParseAddress(key)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var view gin.H
	err = h.bridge.Host.View(func(ctx *state.Context) error {
		var (
			l   *lockers.Locker
			ok  bool
			err error
		)
		if script != nil {
			l, ok, err = h.bridge.Registry.GetLockerByScript(ctx, script)
		} else {
			l, ok, err = h.bridge.Registry.GetLocker(ctx, addr)
		}
		if err != nil || !ok {
			return err
		}
		view = lockerView(l)
		if !l.IsLocker() {
			return nil
		}
		// Both need a fresh price. They are left out when it is stale.
		if capacity, err := h.bridge.Registry.LockerCapacity(ctx, l.Address); err == nil {
			view["capacity"] = capacity.String()
		}
		if ratio, ok, err := h.bridge.Registry.CollateralRatio(ctx, l.Address); err == nil && ok {
			view["collateralRatio"] = ratio.String()
		}
		return nil
	})
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No locker found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

// Request looks the txid up in the router given by ?router=transfer|exchange,
// or in both.
func (h *HttpReporter) Request(c *gin.Context) {
	txID, err := chainhash.NewHashFromStr(c.Param("txid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var getters []func(*state.Context, chainhash.Hash) (*ccrouter.Request, bool, error)
	switch c.Query("router") {
	case "transfer":
		getters = append(getters, h.bridge.Transfer.GetRequest)
	case "exchange":
		getters = append(getters, h.bridge.Exchange.GetRequest)
	case "":
		getters = append(getters, h.bridge.Transfer.GetRequest, h.bridge.Exchange.GetRequest)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "router must be transfer or exchange"})
		return
	}

	var views []gin.H
	err = h.bridge.Host.View(func(ctx *state.Context) error {
		for _, get := range getters {
			rec, ok, err := get(ctx, *txID)
			if err != nil {
				return err
			}
			if ok {
				views = append(views, requestView(rec))
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}

	if len(views) > 0 {
		c.JSON(http.StatusOK, gin.H{"data": views})
	} else {
		c.JSON(http.StatusNotFound, gin.H{"error": "No request found"})
	}
}

func (h *HttpReporter) token(key string) (*ledger.Ledger, bool) {
	if ethcommon.IsHexAddress(key) {
		t, ok := h.tokens[strings.ToLower(ethcommon.HexToAddress(key).Hex())]
		return t, ok
	}
	t, ok := h.tokens[strings.ToUpper(key)]
	return t, ok
}

// Balance accepts a token symbol or address.
func (h *HttpReporter) Balance(c *gin.Context) {
	t, ok := h.token(c.Param("token"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No token found"})
		return
	}
	addr, err := common.ParseAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var balance string
	err = h.bridge.Host.View(func(ctx *state.Context) error {
		b, err := t.BalanceOf(ctx, addr)
		if err != nil {
			return err
		}
		balance = b.String()
		return nil
	})
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"token":   t.Symbol(),
		"address": addr.Hex(),
		"balance": balance,
	}})
}

// Convert prices ?amount of ?from in ?to through the price engine.
func (h *HttpReporter) Convert(c *gin.Context) {
	from, ok := h.token(c.Query("from"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No token found for from"})
		return
	}
	to, ok := h.token(c.Query("to"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No token found for to"})
		return
	}
	amount, err := common.ParseAmount(c.Query("amount"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var out string
	err = h.bridge.Host.View(func(ctx *state.Context) error {
		v, err := h.bridge.Engine.Convert(ctx, amount, from.Address(), to.Address())
		if err != nil {
			return err
		}
		out = v.String()
		return nil
	})
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"from":   from.Symbol(),
		"to":     to.Symbol(),
		"amount": amount.String(),
		"result": out,
	}})
}

var badRequests = []error{
	common.ErrInvalidArgument,
	common.ErrProofInvalid,
	common.ErrMalformedPayload,
	common.ErrFeeOutOfRange,
	common.ErrChainMismatch,
	common.ErrAppMismatch,
	common.ErrInsufficientFunds,
	common.ErrArithmeticOverflow,
}

// statusOf maps error categories to http status codes.
func statusOf(err error) int {
	switch {
	case state.IsPersisted(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, common.ErrAlreadyProcessed), errors.Is(err, common.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, common.ErrNoPriceFeed):
		return http.StatusServiceUnavailable
	}
	for _, target := range badRequests {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}
