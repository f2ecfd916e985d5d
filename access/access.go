package access

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/teleport-bridge/common"
	"github.com/TEENet-io/teleport-bridge/state"
)

type Role uint8

const (
	Owner Role = iota + 1
	Minter
	Burner
	Slasher
)

func (r Role) String() string {
	switch r {
	case Owner:
		return "owner"
	case Minter:
		return "minter"
	case Burner:
		return "burner"
	case Slasher:
		return "slasher"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

var (
	ErrMissingCapability  = fmt.Errorf("%w: missing capability", common.ErrUnauthorized)
	ErrAlreadyInitialized = fmt.Errorf("%w: already initialized", common.ErrInvalidState)
	ErrZeroAddress        = fmt.Errorf("%w: zero address", common.ErrInvalidArgument)
)

// Capabilities is the set of (role, address) grants of one component,
// kept in the state under the component's namespace.
type Capabilities struct {
	namespace string
}

func New(namespace string) *Capabilities {
	return &Capabilities{namespace: namespace}
}

func (c *Capabilities) key(role Role, addr ethcommon.Address) ethcommon.Hash {
	return state.Key("capability", c.namespace, uint8(role), addr)
}

func (c *Capabilities) ownerKey() ethcommon.Hash {
	return state.Key("owner", c.namespace)
}

// Init makes owner the single Owner. It can only be called once.
func (c *Capabilities) Init(ctx *state.Context, owner ethcommon.Address) error {
	if owner == (ethcommon.Address{}) {
		return ErrZeroAddress
	}
	ok, err := ctx.Has(c.ownerKey())
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyInitialized
	}
	ctx.PutAddress(c.ownerKey(), owner)
	c.Grant(ctx, Owner, owner)
	return nil
}

func (c *Capabilities) Owner(ctx *state.Context) (ethcommon.Address, error) {
	return ctx.GetAddress(c.ownerKey())
}

func (c *Capabilities) Has(ctx *state.Context, role Role, addr ethcommon.Address) (bool, error) {
	return ctx.GetBool(c.key(role, addr))
}

func (c *Capabilities) Grant(ctx *state.Context, role Role, addr ethcommon.Address) {
	ctx.PutBool(c.key(role, addr), true)
}

func (c *Capabilities) Revoke(ctx *state.Context, role Role, addr ethcommon.Address) {
	ctx.PutBool(c.key(role, addr), false)
}

// Require fails with ErrMissingCapability unless the caller of ctx holds role.
func (c *Capabilities) Require(ctx *state.Context, role Role) error {
	ok, err := c.Has(ctx, role, ctx.Caller())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s requires %s", ErrMissingCapability, ctx.Caller().Hex(), role)
	}
	return nil
}

// SetRole grants or revokes role for addr. Only the owner may call it.
func (c *Capabilities) SetRole(ctx *state.Context, role Role, addr ethcommon.Address, enabled bool) error {
	if err := c.Require(ctx, Owner); err != nil {
		return err
	}
	if addr == (ethcommon.Address{}) {
		return ErrZeroAddress
	}

	name := "RoleRevoked"
	if enabled {
		c.Grant(ctx, role, addr)
		name = "RoleGranted"
	} else {
		c.Revoke(ctx, role, addr)
	}
	ctx.Emit(name, logger.Fields{
		"component": c.namespace,
		"role":      role.String(),
		"account":   addr.Hex(),
	})
	return nil
}
