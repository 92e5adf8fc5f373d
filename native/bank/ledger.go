package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	coreerrors "gigchain/core/errors"
	"gigchain/core/types"
)

var errNilState = errors.New("bank: state not configured")

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	balancePrefix = []byte("bank/balance/")
	heldPrefix    = []byte("bank/held/")
)

// ModuleAddress derives the vault identity of a native module. The identity
// has no key and can only be moved by the module that owns it.
func ModuleAddress(module string) types.Address {
	return types.BytesToAddress(ethcrypto.Keccak256([]byte("module/" + module))[12:])
}

func balanceKey(addr types.Address) []byte {
	buf := make([]byte, len(balancePrefix)+types.AddressLength)
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], addr[:])
	return buf
}

func heldKey(pool string, id uint64) []byte {
	return []byte(string(heldPrefix) + pool + "/" + strconv.FormatUint(id, 10))
}

// Ledger tracks settlement-currency balances and the value a module holds on
// behalf of a single job or dispute.
type Ledger struct {
	state ledgerState
}

// NewLedger returns a ledger bound to the supplied state.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state}
}

func (l *Ledger) load(key []byte) (*uint256.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	stored := new(big.Int)
	ok, err := l.state.KVGet(key, stored)
	if err != nil {
		return nil, fmt.Errorf("bank: load: %w", err)
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return types.AmountFromBig(stored)
}

func (l *Ledger) store(key []byte, amount *uint256.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return l.state.KVPut(key, types.AmountToBig(amount))
}

// Balance returns the spendable balance of addr.
func (l *Ledger) Balance(addr types.Address) (*uint256.Int, error) {
	return l.load(balanceKey(addr))
}

// Credit adds amount to addr.
func (l *Ledger) Credit(addr types.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	current, err := l.Balance(addr)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(current, amount)
	if overflow {
		return coreerrors.New(coreerrors.ErrInvalidAmount, "bank.credit", "account", 0, "balance overflow")
	}
	return l.store(balanceKey(addr), next)
}

// Debit removes amount from addr, failing with InsufficientBalance when the
// account cannot cover it.
func (l *Ledger) Debit(addr types.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	current, err := l.Balance(addr)
	if err != nil {
		return err
	}
	if current.Lt(amount) {
		return coreerrors.New(coreerrors.ErrInsufficientBalance, "bank.debit", "account", 0,
			fmt.Sprintf("%s holds %s, needs %s", addr.Hex(), current.Dec(), amount.Dec()))
	}
	return l.store(balanceKey(addr), new(uint256.Int).Sub(current, amount))
}

// Transfer moves amount between two identities.
func (l *Ledger) Transfer(from, to types.Address, amount *uint256.Int) error {
	if err := l.Debit(from, amount); err != nil {
		return err
	}
	return l.Credit(to, amount)
}

// Held returns the value the pool holds for the given entity ID.
func (l *Ledger) Held(pool string, id uint64) (*uint256.Int, error) {
	return l.load(heldKey(pool, id))
}

// Deposit moves amount from the depositor into the pool vault and attributes
// it to the entity ID.
func (l *Ledger) Deposit(pool string, id uint64, from types.Address, amount *uint256.Int) error {
	if err := l.Transfer(from, ModuleAddress(pool), amount); err != nil {
		return err
	}
	held, err := l.Held(pool, id)
	if err != nil {
		return err
	}
	return l.store(heldKey(pool, id), new(uint256.Int).Add(held, amount))
}

// Withdraw pays amount held for the entity ID out of the pool vault.
func (l *Ledger) Withdraw(pool string, id uint64, to types.Address, amount *uint256.Int) error {
	held, err := l.Held(pool, id)
	if err != nil {
		return err
	}
	if held.Lt(amount) {
		return coreerrors.New(coreerrors.ErrInsufficientBalance, "bank.withdraw", pool, id,
			fmt.Sprintf("held %s, needs %s", held.Dec(), amount.Dec()))
	}
	if err := l.store(heldKey(pool, id), new(uint256.Int).Sub(held, amount)); err != nil {
		return err
	}
	return l.Transfer(ModuleAddress(pool), to, amount)
}
