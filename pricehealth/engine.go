package pricehealth

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/access"
	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/state"
)

var (
	ErrUnknownFeed  = fmt.Errorf("%w: unknown price feed", common.ErrInvalidArgument)
	ErrUnknownToken = fmt.Errorf("%w: unknown token", common.ErrInvalidArgument)
	ErrStalePrice   = fmt.Errorf("%w: stale price", common.ErrNoPriceFeed)
	ErrInvalidPrice = fmt.Errorf("%w: non-positive price", common.ErrNoPriceFeed)
)

type Config struct {
	// AcceptableDelay is the maximum age of a feed answer. Zero disables the check.
	AcceptableDelay time.Duration
}

// Amount is a quantity of a token.
type Amount struct {
	Token  ethcommon.Address
	Amount *big.Int
}

// Engine converts token amounts through price feeds registered per token
// pair, and derives collateral ratios from them.
type Engine struct {
	cfg  *Config
	caps *access.Capabilities

	mu       sync.RWMutex
	feeds    map[string]agreement.PriceFeed
	decimals map[ethcommon.Address]uint8
}

func New(cfg *Config) *Engine {
	return &Engine{
		cfg:      cfg,
		caps:     access.New("pricehealth"),
		feeds:    make(map[string]agreement.PriceFeed),
		decimals: make(map[ethcommon.Address]uint8),
	}
}

func (e *Engine) Init(ctx *state.Context, owner ethcommon.Address) error {
	if err := e.caps.Init(ctx, owner); err != nil {
		return err
	}
	ctx.PutUint64(state.Key("pricehealth", "acceptableDelay"), uint64(e.cfg.AcceptableDelay/time.Second))
	return nil
}

// RegisterFeed makes feed reachable under handle.
func (e *Engine) RegisterFeed(handle string, feed agreement.PriceFeed) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feeds[handle] = feed
}

func (e *Engine) RegisterToken(token ethcommon.Address, decimals uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.decimals[token] = decimals
}

func (e *Engine) feed(handle string) (agreement.PriceFeed, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f, ok := e.feeds[handle]
	return f, ok
}

func (e *Engine) tokenDecimals(token ethcommon.Address) (uint8, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.decimals[token]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}
	return d, nil
}

func proxyKey(a, b ethcommon.Address) ethcommon.Hash {
	return state.Key("priceProxy", a, b)
}

// SetPriceProxy maps the pair (a, b) to the feed registered under handle,
// pricing a in units of b. An empty handle removes the mapping.
func (e *Engine) SetPriceProxy(ctx *state.Context, a, b ethcommon.Address, handle string) error {
	if err := e.caps.Require(ctx, access.Owner); err != nil {
		return err
	}
	if handle == "" {
		ctx.Delete(proxyKey(a, b))
	} else {
		if _, ok := e.feed(handle); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFeed, handle)
		}
		ctx.Put(proxyKey(a, b), []byte(handle))
	}
	ctx.Emit("SetPriceProxy", logger.Fields{
		"tokenA": a.Hex(),
		"tokenB": b.Hex(),
		"feed":   handle,
	})
	return nil
}

func (e *Engine) PriceProxy(ctx *state.Context, a, b ethcommon.Address) (string, bool, error) {
	v, ok, err := ctx.Get(proxyKey(a, b))
	if err != nil || !ok {
		return "", false, err
	}
	return string(v), true, nil
}

func (e *Engine) SetAcceptableDelay(ctx *state.Context, delay time.Duration) error {
	if err := e.caps.Require(ctx, access.Owner); err != nil {
		return err
	}
	ctx.PutUint64(state.Key("pricehealth", "acceptableDelay"), uint64(delay/time.Second))
	ctx.Emit("NewAcceptableDelay", logger.Fields{"seconds": uint64(delay / time.Second)})
	return nil
}

func (e *Engine) AcceptableDelay(ctx *state.Context) (time.Duration, error) {
	s, err := ctx.GetUint64(state.Key("pricehealth", "acceptableDelay"))
	return time.Duration(s) * time.Second, err
}

// latestPrice reads the feed behind handle, rejecting stale or
// non-positive answers.
func (e *Engine) latestPrice(ctx *state.Context, handle string) (*big.Int, uint8, error) {
	feed, ok := e.feed(handle)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownFeed, handle)
	}
	price, updatedAt, err := feed.LatestRoundData()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrNoPriceFeed, err)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, 0, ErrInvalidPrice
	}

	delay, err := e.AcceptableDelay(ctx)
	if err != nil {
		return nil, 0, err
	}
	if delay > 0 && ctx.Now().Sub(updatedAt) > delay {
		return nil, 0, fmt.Errorf("%w: updated at %s", ErrStalePrice, updatedAt.UTC().Format(time.RFC3339))
	}
	return price, feed.Decimals(), nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Convert returns the amount of to equivalent to amount of from, rounded
// down. With a feed pricing from in to:
//
//	out = amount * price * 10^outDec / 10^(inDec + feedDec)
//
// and with only the reverse feed:
//
//	out = amount * 10^(outDec + feedDec) / (price * 10^inDec)
func (e *Engine) Convert(ctx *state.Context, amount *big.Int, from, to ethcommon.Address) (*big.Int, error) {
	if from == to {
		return new(big.Int).Set(amount), nil
	}
	inDec, err := e.tokenDecimals(from)
	if err != nil {
		return nil, err
	}
	outDec, err := e.tokenDecimals(to)
	if err != nil {
		return nil, err
	}

	if handle, ok, err := e.PriceProxy(ctx, from, to); err != nil {
		return nil, err
	} else if ok {
		price, feedDec, err := e.latestPrice(ctx, handle)
		if err != nil {
			return nil, err
		}
		num := new(big.Int).Mul(amount, price)
		num.Mul(num, pow10(int(outDec)))
		return num.Quo(num, pow10(int(inDec)+int(feedDec))), nil
	}

	if handle, ok, err := e.PriceProxy(ctx, to, from); err != nil {
		return nil, err
	} else if ok {
		price, feedDec, err := e.latestPrice(ctx, handle)
		if err != nil {
			return nil, err
		}
		num := new(big.Int).Mul(amount, pow10(int(outDec)+int(feedDec)))
		den := new(big.Int).Mul(price, pow10(int(inDec)))
		return num.Quo(num, den), nil
	}

	return nil, fmt.Errorf("%w: %s/%s", common.ErrNoPriceFeed, from.Hex(), to.Hex())
}

// Value sums amounts converted into token.
func (e *Engine) Value(ctx *state.Context, amounts []Amount, token ethcommon.Address) (*big.Int, error) {
	total := new(big.Int)
	for _, a := range amounts {
		if a.Amount == nil || a.Amount.Sign() == 0 {
			continue
		}
		v, err := e.Convert(ctx, a.Amount, a.Token, token)
		if err != nil {
			return nil, err
		}
		total.Add(total, v)
	}
	return total, nil
}

// CollateralRatio returns value(collateral) * 10000 / value(debt). The
// boolean is false when there is no debt, i.e. the ratio is unbounded.
func (e *Engine) CollateralRatio(ctx *state.Context, collateral []Amount, debtToken ethcommon.Address, debt *big.Int) (*big.Int, bool, error) {
	if debt == nil || debt.Sign() == 0 {
		return nil, false, nil
	}
	value, err := e.Value(ctx, collateral, debtToken)
	if err != nil {
		return nil, false, err
	}
	value.Mul(value, big.NewInt(common.PercentageDenominator))
	return value.Quo(value, debt), true, nil
}
