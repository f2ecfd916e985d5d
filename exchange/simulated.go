package exchange

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/agreement"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/state"
)

const DefaultFeeBps = 30

var (
	ErrUnknownToken = fmt.Errorf("%w: unknown token", common.ErrInvalidArgument)
	ErrSameToken    = fmt.Errorf("%w: identical tokens", common.ErrInvalidArgument)
)

var _ agreement.ExchangeConnector = (*Simulated)(nil)

type Config struct {
	// Address is the account holding the pool reserves.
	Address ethcommon.Address
	// FeeBps is the swap fee in parts per 10000.
	FeeBps uint64
}

// Simulated is a constant product exchange. Reserves live in the bridge
// state so that reverted operations also revert swaps.
type Simulated struct {
	cfg *Config

	mu     sync.RWMutex
	tokens map[ethcommon.Address]agreement.Token
}

func New(cfg *Config) *Simulated {
	if cfg.FeeBps == 0 {
		cfg.FeeBps = DefaultFeeBps
	}
	return &Simulated{cfg: cfg, tokens: make(map[ethcommon.Address]agreement.Token)}
}

func (s *Simulated) Address() ethcommon.Address {
	return s.cfg.Address
}

func (s *Simulated) RegisterToken(token agreement.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Address()] = token
}

func (s *Simulated) token(addr ethcommon.Address) (agreement.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[addr]
	return t, ok
}

func (s *Simulated) reserveKey(a, b, token ethcommon.Address) ethcommon.Hash {
	lo, hi := a, b
	if bytes.Compare(lo[:], hi[:]) > 0 {
		lo, hi = hi, lo
	}
	return state.Key("reserve", s.cfg.Address, lo, hi, token)
}

// Reserves returns the pool reserves of tokenA and tokenB.
func (s *Simulated) Reserves(ctx *state.Context, tokenA, tokenB ethcommon.Address) (*big.Int, *big.Int, error) {
	ra, err := ctx.GetBig(s.reserveKey(tokenA, tokenB, tokenA))
	if err != nil {
		return nil, nil, err
	}
	rb, err := ctx.GetBig(s.reserveKey(tokenA, tokenB, tokenB))
	if err != nil {
		return nil, nil, err
	}
	return ra, rb, nil
}

// AddLiquidity moves amountA and amountB from the caller into the pool.
// Both tokens must have been approved to Address().
func (s *Simulated) AddLiquidity(ctx *state.Context, tokenA, tokenB ethcommon.Address, amountA, amountB *big.Int) error {
	if tokenA == tokenB {
		return ErrSameToken
	}
	ta, ok := s.token(tokenA)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, tokenA.Hex())
	}
	tb, ok := s.token(tokenB)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, tokenB.Hex())
	}

	self := ctx.WithCaller(s.cfg.Address)
	if err := ta.TransferFrom(self, ctx.Caller(), s.cfg.Address, amountA); err != nil {
		return err
	}
	if err := tb.TransferFrom(self, ctx.Caller(), s.cfg.Address, amountB); err != nil {
		return err
	}

	ra, rb, err := s.Reserves(ctx, tokenA, tokenB)
	if err != nil {
		return err
	}
	ctx.PutBig(s.reserveKey(tokenA, tokenB, tokenA), ra.Add(ra, amountA))
	ctx.PutBig(s.reserveKey(tokenA, tokenB, tokenB), rb.Add(rb, amountB))

	ctx.Emit("AddLiquidity", logger.Fields{
		"provider": ctx.Caller().Hex(),
		"tokenA":   tokenA.Hex(),
		"tokenB":   tokenB.Hex(),
		"amountA":  amountA.String(),
		"amountB":  amountB.String(),
	})
	return nil
}

// AmountOut = amountIn*(10000-fee)*reserveOut / (reserveIn*10000 + amountIn*(10000-fee))
func (s *Simulated) AmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}
	withFee := new(big.Int).Mul(amountIn, big.NewInt(int64(common.PercentageDenominator-s.cfg.FeeBps)))
	num := new(big.Int).Mul(withFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, big.NewInt(common.PercentageDenominator))
	den.Add(den, withFee)
	return num.Quo(num, den)
}

// AmountIn = reserveIn*amountOut*10000 / ((reserveOut-amountOut)*(10000-fee)) + 1
func (s *Simulated) AmountIn(amountOut, reserveIn, reserveOut *big.Int) (*big.Int, bool) {
	if amountOut.Sign() <= 0 || reserveIn.Sign() <= 0 || amountOut.Cmp(reserveOut) >= 0 {
		return nil, false
	}
	num := new(big.Int).Mul(reserveIn, amountOut)
	num.Mul(num, big.NewInt(common.PercentageDenominator))
	den := new(big.Int).Sub(reserveOut, amountOut)
	den.Mul(den, big.NewInt(int64(common.PercentageDenominator-s.cfg.FeeBps)))
	num.Quo(num, den)
	return num.Add(num, big.NewInt(1)), true
}

func (s *Simulated) QuoteInputForOutput(ctx *state.Context, amountOut *big.Int, tokenIn, tokenOut ethcommon.Address) (bool, *big.Int, error) {
	if _, ok := s.token(tokenIn); !ok {
		return false, nil, nil
	}
	if _, ok := s.token(tokenOut); !ok || tokenIn == tokenOut {
		return false, nil, nil
	}
	rIn, rOut, err := s.Reserves(ctx, tokenIn, tokenOut)
	if err != nil {
		return false, nil, err
	}
	in, ok := s.AmountIn(amountOut, rIn, rOut)
	return ok, in, nil
}

func (s *Simulated) Swap(ctx *state.Context, req *agreement.SwapRequest) (bool, *big.Int, error) {
	log := logger.WithFields(logger.Fields{"op": ctx.OpID(), "swap": req.String()})

	tin, ok := s.token(req.TokenIn)
	if !ok {
		log.Debug("swap rejected: unknown input token")
		return false, nil, nil
	}
	tout, ok := s.token(req.TokenOut)
	if !ok || req.TokenIn == req.TokenOut {
		log.Debug("swap rejected: unknown output token")
		return false, nil, nil
	}
	if ctx.Now().After(req.Deadline) {
		log.Debug("swap rejected: deadline passed")
		return false, nil, nil
	}

	rIn, rOut, err := s.Reserves(ctx, req.TokenIn, req.TokenOut)
	if err != nil {
		return false, nil, err
	}
	out := s.AmountOut(req.AmountIn, rIn, rOut)
	if out.Sign() == 0 {
		log.Debug("swap rejected: no liquidity")
		return false, nil, nil
	}
	if req.MinAmountOut != nil && out.Cmp(req.MinAmountOut) < 0 {
		log.WithField("out", out.String()).Debug("swap rejected: below minimum output")
		return false, nil, nil
	}

	self := ctx.WithCaller(s.cfg.Address)
	if err := tin.TransferFrom(self, ctx.Caller(), s.cfg.Address, req.AmountIn); err != nil {
		return false, nil, err
	}
	ctx.PutBig(s.reserveKey(req.TokenIn, req.TokenOut, req.TokenIn), rIn.Add(rIn, req.AmountIn))
	ctx.PutBig(s.reserveKey(req.TokenIn, req.TokenOut, req.TokenOut), rOut.Sub(rOut, out))
	if err := tout.Transfer(self, req.Recipient, out); err != nil {
		return false, nil, err
	}

	ctx.Emit("Swap", logger.Fields{
		"sender":    ctx.Caller().Hex(),
		"tokenIn":   req.TokenIn.Hex(),
		"tokenOut":  req.TokenOut.Hex(),
		"amountIn":  req.AmountIn.String(),
		"amountOut": out.String(),
		"recipient": req.Recipient.Hex(),
	})
	return true, out, nil
}
