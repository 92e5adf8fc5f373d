package reputation

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	coreerrors "gigchain/core/errors"
	"gigchain/core/events"
	"gigchain/core/types"
)

type memoryStore struct {
	data  map[string][]byte
	roles map[string]map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte), roles: make(map[string]map[string]bool)}
}

func (m *memoryStore) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.data[string(key)] = encoded
	return nil
}

func (m *memoryStore) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *memoryStore) HasRole(role string, addr []byte) bool {
	return m.roles[role][string(addr)]
}

func (m *memoryStore) grant(role string, addr types.Address) {
	if m.roles[role] == nil {
		m.roles[role] = make(map[string]bool)
	}
	m.roles[role][string(addr[:])] = true
}

type captureEmitter struct {
	events []*types.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	if withEvent, ok := evt.(interface{ Event() *types.Event }); ok {
		c.events = append(c.events, withEvent.Event())
	}
}

var (
	module     = types.MustParseAddress("0x00000000000000000000000000000000000000e5")
	freelancer = types.MustParseAddress("0x00000000000000000000000000000000000000f1")
	stranger   = types.MustParseAddress("0x0000000000000000000000000000000000000bad")
)

func newTestEngine(t *testing.T) (*Engine, *memoryStore, *captureEmitter) {
	t.Helper()
	store := newMemoryStore()
	store.grant(RoleMinter, module)
	store.grant(RoleBurner, module)
	emitter := &captureEmitter{}
	engine := NewEngine()
	engine.SetState(store)
	engine.SetEmitter(emitter)
	return engine, store, emitter
}

func TestMintAndBurn(t *testing.T) {
	engine, _, emitter := newTestEngine(t)

	if err := engine.Mint(module, freelancer, uint256.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.Burn(module, freelancer, uint256.NewInt(4)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	bal, err := engine.BalanceOf(freelancer)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Uint64() != 6 {
		t.Fatalf("expected balance 6, got %s", bal)
	}
	supply, err := engine.TotalSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Uint64() != 6 {
		t.Fatalf("expected supply 6, got %s", supply)
	}
	if len(emitter.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(emitter.events))
	}
	if emitter.events[0].Type != EventTypeMinted || emitter.events[0].Attributes["amount"] != "10" {
		t.Fatalf("unexpected mint event %+v", emitter.events[0])
	}
	if emitter.events[1].Type != EventTypeBurned || emitter.events[1].Attributes["from"] != freelancer.Hex() {
		t.Fatalf("unexpected burn event %+v", emitter.events[1])
	}
}

func TestMintRequiresRole(t *testing.T) {
	engine, _, emitter := newTestEngine(t)
	err := engine.Mint(stranger, freelancer, uint256.NewInt(1))
	if !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := engine.Burn(stranger, freelancer, uint256.NewInt(1)); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized burn, got %v", err)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("failed calls must not emit")
	}
}

func TestMintRejectsNullRecipient(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	err := engine.Mint(module, types.ZeroAddress, uint256.NewInt(1))
	if !errors.Is(err, coreerrors.ErrInvalidRecipient) || !errors.Is(err, coreerrors.ErrInvalidParty) {
		t.Fatalf("expected invalid recipient, got %v", err)
	}
}

func TestBurnInsufficientBalance(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	if err := engine.Mint(module, freelancer, uint256.NewInt(3)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := engine.Burn(module, freelancer, uint256.NewInt(4))
	if !errors.Is(err, coreerrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	bal, _ := engine.BalanceOf(freelancer)
	if bal.Uint64() != 3 {
		t.Fatalf("balance changed on failed burn: %s", bal)
	}
}

func TestTransferDisabledByDefault(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	if err := engine.Mint(module, freelancer, uint256.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := engine.Transfer(freelancer, stranger, uint256.NewInt(1))
	if !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestTransferWhenEnabled(t *testing.T) {
	engine, _, emitter := newTestEngine(t)
	engine.SetTransferable(true)
	if err := engine.Mint(module, freelancer, uint256.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := engine.Transfer(freelancer, stranger, uint256.NewInt(2)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := engine.Transfer(freelancer, stranger, uint256.NewInt(9)); !errors.Is(err, coreerrors.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := engine.Transfer(freelancer, types.ZeroAddress, uint256.NewInt(1)); !errors.Is(err, coreerrors.ErrInvalidRecipient) {
		t.Fatalf("expected invalid recipient, got %v", err)
	}
	a, _ := engine.BalanceOf(freelancer)
	b, _ := engine.BalanceOf(stranger)
	if a.Uint64() != 3 || b.Uint64() != 2 {
		t.Fatalf("unexpected balances %s/%s", a, b)
	}
	last := emitter.events[len(emitter.events)-1]
	if last.Type != EventTypeTransferred {
		t.Fatalf("expected transferred event, got %s", last.Type)
	}
}

func TestAuthorityDoesNotEmit(t *testing.T) {
	engine, _, emitter := newTestEngine(t)
	auth := engine.Authority(module)
	if err := auth.Mint(freelancer, uint256.NewInt(10)); err != nil {
		t.Fatalf("authority mint: %v", err)
	}
	if err := auth.Burn(freelancer, uint256.NewInt(10)); err != nil {
		t.Fatalf("authority burn: %v", err)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("authority calls emitted %d events", len(emitter.events))
	}
	if err := engine.Authority(stranger).Mint(freelancer, uint256.NewInt(1)); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized authority, got %v", err)
	}
}
