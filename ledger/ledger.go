package ledger

import (
	"fmt"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/access"
	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/state"
)

var (
	ErrInsufficientBalance   = fmt.Errorf("%w: insufficient balance", common.ErrInsufficientFunds)
	ErrInsufficientAllowance = fmt.Errorf("%w: insufficient allowance", common.ErrInsufficientFunds)
	ErrZeroAddress           = fmt.Errorf("%w: zero address", common.ErrInvalidArgument)
	ErrInvalidAmount         = fmt.Errorf("%w: negative amount", common.ErrInvalidArgument)
)

type Config struct {
	// Address identifies the token. It namespaces the ledger state and is
	// the token id used by price feeds and exchange connectors.
	Address  ethcommon.Address
	Name     string
	Symbol   string
	Decimals uint8
}

// ReceiveHook is invoked, as the recipient, after a transfer credited it.
// A returned error reverts the transfer.
type ReceiveHook func(ctx *state.Context, from ethcommon.Address, amount *big.Int) error

// Ledger is a fungible token whose mint and burn are capability gated.
type Ledger struct {
	cfg  *Config
	caps *access.Capabilities

	mu    sync.RWMutex
	hooks map[ethcommon.Address]ReceiveHook
}

func New(cfg *Config) *Ledger {
	return &Ledger{
		cfg:   cfg,
		caps:  access.New("ledger:" + cfg.Address.Hex()),
		hooks: make(map[ethcommon.Address]ReceiveHook),
	}
}

func (l *Ledger) Address() ethcommon.Address { return l.cfg.Address }
func (l *Ledger) Name() string               { return l.cfg.Name }
func (l *Ledger) Symbol() string             { return l.cfg.Symbol }
func (l *Ledger) Decimals() uint8            { return l.cfg.Decimals }

// SetReceiveHook registers hook for addr. A nil hook removes it.
func (l *Ledger) SetReceiveHook(addr ethcommon.Address, hook ReceiveHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hook == nil {
		delete(l.hooks, addr)
		return
	}
	l.hooks[addr] = hook
}

func (l *Ledger) hook(addr ethcommon.Address) ReceiveHook {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hooks[addr]
}

func (l *Ledger) Init(ctx *state.Context, owner ethcommon.Address) error {
	return l.caps.Init(ctx, owner)
}

func (l *Ledger) balanceKey(addr ethcommon.Address) ethcommon.Hash {
	return state.Key("balance", l.cfg.Address, addr)
}

func (l *Ledger) allowanceKey(owner, spender ethcommon.Address) ethcommon.Hash {
	return state.Key("allowance", l.cfg.Address, owner, spender)
}

func (l *Ledger) supplyKey() ethcommon.Hash {
	return state.Key("totalSupply", l.cfg.Address)
}

func (l *Ledger) BalanceOf(ctx *state.Context, addr ethcommon.Address) (*big.Int, error) {
	return ctx.GetBig(l.balanceKey(addr))
}

func (l *Ledger) TotalSupply(ctx *state.Context) (*big.Int, error) {
	return ctx.GetBig(l.supplyKey())
}

func (l *Ledger) Allowance(ctx *state.Context, owner, spender ethcommon.Address) (*big.Int, error) {
	return ctx.GetBig(l.allowanceKey(owner, spender))
}

func (l *Ledger) IsMinter(ctx *state.Context, addr ethcommon.Address) (bool, error) {
	return l.caps.Has(ctx, access.Minter, addr)
}

func (l *Ledger) IsBurner(ctx *state.Context, addr ethcommon.Address) (bool, error) {
	return l.caps.Has(ctx, access.Burner, addr)
}

func (l *Ledger) AddMinter(ctx *state.Context, addr ethcommon.Address) error {
	return l.caps.SetRole(ctx, access.Minter, addr, true)
}

func (l *Ledger) RemoveMinter(ctx *state.Context, addr ethcommon.Address) error {
	return l.caps.SetRole(ctx, access.Minter, addr, false)
}

func (l *Ledger) AddBurner(ctx *state.Context, addr ethcommon.Address) error {
	return l.caps.SetRole(ctx, access.Burner, addr, true)
}

func (l *Ledger) RemoveBurner(ctx *state.Context, addr ethcommon.Address) error {
	return l.caps.SetRole(ctx, access.Burner, addr, false)
}

// Transfer moves amount from the caller to to.
func (l *Ledger) Transfer(ctx *state.Context, to ethcommon.Address, amount *big.Int) error {
	return l.transfer(ctx, ctx.Caller(), to, amount)
}

func (l *Ledger) Approve(ctx *state.Context, spender ethcommon.Address, amount *big.Int) error {
	if spender == (ethcommon.Address{}) {
		return ErrZeroAddress
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	ctx.PutBig(l.allowanceKey(ctx.Caller(), spender), amount)
	ctx.Emit("Approval", logger.Fields{
		"token":   l.cfg.Symbol,
		"owner":   ctx.Caller().Hex(),
		"spender": spender.Hex(),
		"value":   amount.String(),
	})
	return nil
}

// TransferFrom moves amount from from to to, spending the caller's allowance.
func (l *Ledger) TransferFrom(ctx *state.Context, from, to ethcommon.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	allowance, err := l.Allowance(ctx, from, ctx.Caller())
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s < %s", ErrInsufficientAllowance, allowance, amount)
	}
	ctx.PutBig(l.allowanceKey(from, ctx.Caller()), allowance.Sub(allowance, amount))
	return l.transfer(ctx, from, to, amount)
}

func (l *Ledger) transfer(ctx *state.Context, from, to ethcommon.Address, amount *big.Int) error {
	if to == (ethcommon.Address{}) {
		return ErrZeroAddress
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := l.sub(ctx, from, amount); err != nil {
		return err
	}
	if err := l.add(ctx, to, amount); err != nil {
		return err
	}
	ctx.Emit("Transfer", logger.Fields{
		"token": l.cfg.Symbol,
		"from":  from.Hex(),
		"to":    to.Hex(),
		"value": amount.String(),
	})

	if hook := l.hook(to); hook != nil {
		return hook(ctx.WithCaller(to), from, amount)
	}
	return nil
}

func (l *Ledger) add(ctx *state.Context, addr ethcommon.Address, amount *big.Int) error {
	bal, err := l.BalanceOf(ctx, addr)
	if err != nil {
		return err
	}
	ctx.PutBig(l.balanceKey(addr), bal.Add(bal, amount))
	return nil
}

func (l *Ledger) sub(ctx *state.Context, addr ethcommon.Address, amount *big.Int) error {
	bal, err := l.BalanceOf(ctx, addr)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, addr.Hex(), bal, amount)
	}
	ctx.PutBig(l.balanceKey(addr), bal.Sub(bal, amount))
	return nil
}

// Mint credits to with amount. Caller must be a minter.
func (l *Ledger) Mint(ctx *state.Context, to ethcommon.Address, amount *big.Int) error {
	if err := l.caps.Require(ctx, access.Minter); err != nil {
		return err
	}
	if to == (ethcommon.Address{}) {
		return ErrZeroAddress
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	supply, err := l.TotalSupply(ctx)
	if err != nil {
		return err
	}
	ctx.PutBig(l.supplyKey(), supply.Add(supply, amount))
	if err := l.add(ctx, to, amount); err != nil {
		return err
	}
	ctx.Emit("Mint", logger.Fields{
		"token":  l.cfg.Symbol,
		"minter": ctx.Caller().Hex(),
		"to":     to.Hex(),
		"value":  amount.String(),
	})
	return nil
}

// Burn destroys amount held by from. Caller must be a burner.
func (l *Ledger) Burn(ctx *state.Context, from ethcommon.Address, amount *big.Int) error {
	if err := l.caps.Require(ctx, access.Burner); err != nil {
		return err
	}
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := l.sub(ctx, from, amount); err != nil {
		return err
	}

	supply, err := l.TotalSupply(ctx)
	if err != nil {
		return err
	}
	ctx.PutBig(l.supplyKey(), supply.Sub(supply, amount))
	ctx.Emit("Burn", logger.Fields{
		"token":  l.cfg.Symbol,
		"burner": ctx.Caller().Hex(),
		"from":   from.Hex(),
		"value":  amount.String(),
	})
	return nil
}
