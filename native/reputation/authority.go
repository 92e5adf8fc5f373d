package reputation

import (
	"github.com/holiman/uint256"

	"gigchain/core/types"
)

// Authority is the mint/burn capability handed to a module at construction.
// Calls made through it do not emit ledger events; the calling module reports
// the effect in its own record.
type Authority interface {
	Mint(to types.Address, amount *uint256.Int) error
	Burn(from types.Address, amount *uint256.Int) error
	BalanceOf(addr types.Address) (*uint256.Int, error)
}

type moduleAuthority struct {
	engine *Engine
	module types.Address
}

// Authority binds the capability to the module identity. The role grant is
// checked on every call, so a capability for an identity that was never granted
// the roles fails Unauthorized.
func (e *Engine) Authority(module types.Address) Authority {
	return moduleAuthority{engine: e, module: module}
}

func (a moduleAuthority) Mint(to types.Address, amount *uint256.Int) error {
	return a.engine.mint("reputation.mint", a.module, to, amount)
}

func (a moduleAuthority) Burn(from types.Address, amount *uint256.Int) error {
	return a.engine.burn("reputation.burn", a.module, from, amount)
}

func (a moduleAuthority) BalanceOf(addr types.Address) (*uint256.Int, error) {
	return a.engine.BalanceOf(addr)
}
