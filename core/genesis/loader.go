package genesis

import (
	"fmt"

	"github.com/holiman/uint256"

	"gigchain/core/types"
)

// Target receives the genesis writes. The node implements it on top of its
// state manager; nothing is emitted for genesis state.
type Target interface {
	GrantModuleRoles() error
	CreditBalance(addr types.Address, amount *uint256.Int) error
	MintReputation(addr types.Address, amount *uint256.Int) error
	RegisterJuror(addr types.Address) error
}

// Apply writes the document into target in a deterministic order: module
// roles, balances, reputation, then jurors.
func Apply(spec *GenesisSpec, target Target) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if target == nil {
		return fmt.Errorf("genesis target must not be nil")
	}
	if err := target.GrantModuleRoles(); err != nil {
		return fmt.Errorf("grant module roles: %w", err)
	}
	for _, alloc := range spec.balances {
		if err := target.CreditBalance(alloc.Address, alloc.Amount); err != nil {
			return fmt.Errorf("alloc %s: %w", alloc.Address.Hex(), err)
		}
	}
	for _, alloc := range spec.reputation {
		if alloc.Amount.IsZero() {
			continue
		}
		if err := target.MintReputation(alloc.Address, alloc.Amount); err != nil {
			return fmt.Errorf("reputation %s: %w", alloc.Address.Hex(), err)
		}
	}
	for _, juror := range spec.jurors {
		if err := target.RegisterJuror(juror); err != nil {
			return fmt.Errorf("juror %s: %w", juror.Hex(), err)
		}
	}
	return nil
}
