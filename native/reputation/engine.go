package reputation

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	coreerrors "gigchain/core/errors"
	"gigchain/core/events"
	"gigchain/core/types"
)

const (
	// RoleMinter may issue reputation.
	RoleMinter = "REPUTATION_MINTER"
	// RoleBurner may revoke reputation.
	RoleBurner = "REPUTATION_BURNER"
)

var errNilState = errors.New("reputation engine: state not configured")

var (
	balancePrefix = []byte("reputation/balance/")
	supplyKey     = []byte("reputation/supply")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	HasRole(role string, addr []byte) bool
}

type reputationEvent struct {
	evt *types.Event
}

func (e reputationEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e reputationEvent) Event() *types.Event { return e.evt }

// Engine maintains the reputation ledger: a non-negative balance per identity
// that only role holders can change, plus holder transfers when the deployment
// allows them.
type Engine struct {
	state        engineState
	emitter      events.Emitter
	transferable bool
}

// NewEngine creates a reputation engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetTransferable toggles holder-initiated transfers.
func (e *Engine) SetTransferable(enabled bool) { e.transferable = enabled }

// Transferable reports whether holders may move reputation.
func (e *Engine) Transferable() bool { return e != nil && e.transferable }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(reputationEvent{evt: event})
}

func balanceKey(addr types.Address) []byte {
	buf := make([]byte, len(balancePrefix)+types.AddressLength)
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], addr[:])
	return buf
}

func (e *Engine) load(key []byte) (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stored := new(big.Int)
	ok, err := e.state.KVGet(key, stored)
	if err != nil {
		return nil, fmt.Errorf("reputation: load: %w", err)
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return types.AmountFromBig(stored)
}

func (e *Engine) store(key []byte, v *uint256.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.KVPut(key, types.AmountToBig(v))
}

// BalanceOf returns the reputation held by addr. Unknown identities hold zero.
func (e *Engine) BalanceOf(addr types.Address) (*uint256.Int, error) {
	return e.load(balanceKey(addr))
}

// TotalSupply returns the sum of all balances.
func (e *Engine) TotalSupply() (*uint256.Int, error) {
	return e.load(supplyKey)
}

func (e *Engine) hasRole(role string, addr types.Address) bool {
	if e == nil || e.state == nil || addr.IsZero() {
		return false
	}
	return e.state.HasRole(role, addr[:])
}

func (e *Engine) mint(op string, caller, to types.Address, amount *uint256.Int) error {
	if !e.hasRole(RoleMinter, caller) {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, "", 0, "caller lacks minter role")
	}
	if to.IsZero() {
		return coreerrors.New(coreerrors.ErrInvalidRecipient, op, "", 0, "mint to the null identity")
	}
	if amount == nil || amount.IsZero() {
		return coreerrors.New(coreerrors.ErrInvalidAmount, op, "", 0, "amount must be positive")
	}
	balance, err := e.BalanceOf(to)
	if err != nil {
		return err
	}
	supply, err := e.TotalSupply()
	if err != nil {
		return err
	}
	nextSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return coreerrors.New(coreerrors.ErrInvalidAmount, op, "", 0, "supply overflow")
	}
	if err := e.store(balanceKey(to), new(uint256.Int).Add(balance, amount)); err != nil {
		return err
	}
	return e.store(supplyKey, nextSupply)
}

func (e *Engine) burn(op string, caller, from types.Address, amount *uint256.Int) error {
	if !e.hasRole(RoleBurner, caller) {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, "", 0, "caller lacks burner role")
	}
	if amount == nil || amount.IsZero() {
		return coreerrors.New(coreerrors.ErrInvalidAmount, op, "", 0, "amount must be positive")
	}
	balance, err := e.BalanceOf(from)
	if err != nil {
		return err
	}
	if balance.Lt(amount) {
		return coreerrors.New(coreerrors.ErrInsufficientBalance, op, "", 0,
			fmt.Sprintf("%s holds %s, burn %s", from.Hex(), balance.Dec(), amount.Dec()))
	}
	supply, err := e.TotalSupply()
	if err != nil {
		return err
	}
	if err := e.store(balanceKey(from), new(uint256.Int).Sub(balance, amount)); err != nil {
		return err
	}
	return e.store(supplyKey, new(uint256.Int).Sub(supply, amount))
}

// Mint issues amount to the recipient. Only holders of RoleMinter may call it.
func (e *Engine) Mint(caller, to types.Address, amount *uint256.Int) error {
	if err := e.mint("reputation.mint", caller, to, amount); err != nil {
		return err
	}
	e.emit(NewMintedEvent(to, amount.Dec()))
	return nil
}

// Burn revokes amount from the holder. Only holders of RoleBurner may call it.
func (e *Engine) Burn(caller, from types.Address, amount *uint256.Int) error {
	if err := e.burn("reputation.burn", caller, from, amount); err != nil {
		return err
	}
	e.emit(NewBurnedEvent(from, amount.Dec()))
	return nil
}

// Transfer moves reputation from the caller to another identity. It fails with
// Unauthorized unless the deployment enabled transferability.
func (e *Engine) Transfer(caller, to types.Address, amount *uint256.Int) error {
	const op = "reputation.transfer"
	if !e.Transferable() {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, "", 0, "reputation non-transferable")
	}
	if to.IsZero() {
		return coreerrors.New(coreerrors.ErrInvalidRecipient, op, "", 0, "transfer to the null identity")
	}
	if amount == nil || amount.IsZero() {
		return coreerrors.New(coreerrors.ErrInvalidAmount, op, "", 0, "amount must be positive")
	}
	fromBal, err := e.BalanceOf(caller)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return coreerrors.New(coreerrors.ErrInsufficientBalance, op, "", 0,
			fmt.Sprintf("%s holds %s, transfer %s", caller.Hex(), fromBal.Dec(), amount.Dec()))
	}
	if caller != to {
		toBal, err := e.BalanceOf(to)
		if err != nil {
			return err
		}
		if err := e.store(balanceKey(caller), new(uint256.Int).Sub(fromBal, amount)); err != nil {
			return err
		}
		if err := e.store(balanceKey(to), new(uint256.Int).Add(toBal, amount)); err != nil {
			return err
		}
	}
	e.emit(NewTransferredEvent(caller, to, amount.Dec()))
	return nil
}
