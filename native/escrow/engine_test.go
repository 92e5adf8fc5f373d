package escrow

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	coreerrors "gigchain/core/errors"
	"gigchain/core/events"
	"gigchain/core/state"
	"gigchain/core/types"
	"gigchain/native/bank"
	"gigchain/native/reputation"
	"gigchain/storage"
)

var (
	client     = types.MustParseAddress("0x1000000000000000000000000000000000000001")
	freelancer = types.MustParseAddress("0x2000000000000000000000000000000000000002")
	arbiter    = types.MustParseAddress("0x3000000000000000000000000000000000000003")
	outsider   = types.MustParseAddress("0x4000000000000000000000000000000000000004")
)

type captureEmitter struct {
	events []*types.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	if withEvent, ok := evt.(interface{ Event() *types.Event }); ok {
		c.events = append(c.events, withEvent.Event())
	}
}

func (c *captureEmitter) last() *types.Event {
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

type testEnv struct {
	engine  *Engine
	bank    *bank.Ledger
	rep     *reputation.Engine
	emitter *captureEmitter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	ledger := bank.NewLedger(mgr)
	module := bank.ModuleAddress(ModuleName)
	if err := mgr.SetRole(reputation.RoleMinter, module.Bytes()); err != nil {
		t.Fatalf("grant minter: %v", err)
	}
	if err := mgr.SetRole(reputation.RoleBurner, module.Bytes()); err != nil {
		t.Fatalf("grant burner: %v", err)
	}
	rep := reputation.NewEngine()
	rep.SetState(mgr)
	repEmitter := &captureEmitter{}
	rep.SetEmitter(repEmitter)

	emitter := &captureEmitter{}
	engine := NewEngine()
	engine.SetState(mgr)
	engine.SetBank(ledger)
	engine.SetReputation(rep.Authority(module))
	engine.SetResolvers(arbiter)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })

	if err := ledger.Credit(client, uint256.NewInt(1_000)); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	t.Cleanup(func() {
		if len(repEmitter.events) != 0 {
			t.Errorf("reputation sub-steps emitted %d events", len(repEmitter.events))
		}
	})
	return &testEnv{engine: engine, bank: ledger, rep: rep, emitter: emitter}
}

func (env *testEnv) delivered(t *testing.T) *Job {
	t.Helper()
	job, err := env.engine.CreateJob(client, freelancer, uint256.NewInt(150))
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := env.engine.FundJob(client, job.ID, uint256.NewInt(150)); err != nil {
		t.Fatalf("fund job: %v", err)
	}
	if err := env.engine.SubmitDelivery(freelancer, job.ID, "ipfs://QmDelivery"); err != nil {
		t.Fatalf("submit delivery: %v", err)
	}
	return job
}

func expectKind(t *testing.T, err error, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func (env *testEnv) held(t *testing.T, id uint64) uint64 {
	t.Helper()
	held, err := env.engine.HeldBalance(id)
	if err != nil {
		t.Fatalf("held balance: %v", err)
	}
	return held.Uint64()
}

func TestHappyPathConfirmation(t *testing.T) {
	env := newTestEnv(t)
	job := env.delivered(t)
	if got := env.held(t, job.ID); got != 150 {
		t.Fatalf("expected held 150 while delivered, got %d", got)
	}

	if err := env.engine.ConfirmDelivery(client, job.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	stored, err := env.engine.Job(job.ID)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if stored.Status != StatusConfirmed || !stored.ReputationMinted {
		t.Fatalf("unexpected job state %+v", stored)
	}
	if stored.DeliveryReference != "ipfs://QmDelivery" {
		t.Fatalf("content reference not stored verbatim: %q", stored.DeliveryReference)
	}
	if got := env.held(t, job.ID); got != 0 {
		t.Fatalf("expected held 0 after confirmation, got %d", got)
	}
	paid, _ := env.bank.Balance(freelancer)
	if paid.Uint64() != 150 {
		t.Fatalf("expected freelancer paid 150, got %s", paid)
	}
	rep, _ := env.rep.BalanceOf(freelancer)
	if rep.Uint64() != 10 {
		t.Fatalf("expected reputation 10, got %s", rep)
	}

	wantTypes := []string{EventTypeJobCreated, EventTypeJobFunded, EventTypeDeliverySubmitted, EventTypeDeliveryConfirmed}
	if len(env.emitter.events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(env.emitter.events))
	}
	for i, want := range wantTypes {
		if env.emitter.events[i].Type != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, env.emitter.events[i].Type)
		}
	}
	if env.emitter.last().Attributes["reputationMinted"] != "10" {
		t.Fatalf("confirmation event missing mint effect: %+v", env.emitter.last())
	}
	if !stored.Terminal() {
		t.Fatalf("confirmed job must be terminal")
	}
}

func TestFundAmountMismatchKeepsCreated(t *testing.T) {
	env := newTestEnv(t)
	job, err := env.engine.CreateJob(client, freelancer, uint256.NewInt(150))
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	err = env.engine.FundJob(client, job.ID, uint256.NewInt(149))
	expectKind(t, err, coreerrors.ErrAmountMismatch)
	expectKind(t, err, coreerrors.ErrInvalidAmount)

	stored, _ := env.engine.Job(job.ID)
	if stored.Status != StatusCreated {
		t.Fatalf("expected Created after mismatch, got %s", stored.Status)
	}
	bal, _ := env.bank.Balance(client)
	if bal.Uint64() != 1_000 {
		t.Fatalf("client balance moved on mismatch: %s", bal)
	}
}

func TestCreateJobValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.CreateJob(client, client, uint256.NewInt(1))
	expectKind(t, err, coreerrors.ErrInvalidParty)
	_, err = env.engine.CreateJob(client, types.ZeroAddress, uint256.NewInt(1))
	expectKind(t, err, coreerrors.ErrInvalidParty)
	_, err = env.engine.CreateJob(client, freelancer, new(uint256.Int))
	expectKind(t, err, coreerrors.ErrInvalidAmount)

	count, err := env.engine.JobCount()
	if err != nil {
		t.Fatalf("job count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected creations must not consume IDs, count=%d", count)
	}

	first, _ := env.engine.CreateJob(client, freelancer, uint256.NewInt(1))
	second, _ := env.engine.CreateJob(client, freelancer, uint256.NewInt(1))
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected IDs 1 and 2, got %d and %d", first.ID, second.ID)
	}
}

func TestTransitionGuards(t *testing.T) {
	env := newTestEnv(t)
	job, _ := env.engine.CreateJob(client, freelancer, uint256.NewInt(150))

	expectKind(t, env.engine.FundJob(freelancer, job.ID, uint256.NewInt(150)), coreerrors.ErrUnauthorized)
	expectKind(t, env.engine.FundJob(client, 99, uint256.NewInt(150)), coreerrors.ErrNotFound)
	expectKind(t, env.engine.SubmitDelivery(freelancer, job.ID, "cid"), coreerrors.ErrWrongState)
	expectKind(t, env.engine.ConfirmDelivery(client, job.ID), coreerrors.ErrWrongState)
	expectKind(t, env.engine.Dispute(client, job.ID), coreerrors.ErrWrongState)

	if err := env.engine.FundJob(client, job.ID, uint256.NewInt(150)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	expectKind(t, env.engine.FundJob(client, job.ID, uint256.NewInt(150)), coreerrors.ErrWrongState)
	expectKind(t, env.engine.SubmitDelivery(client, job.ID, "cid"), coreerrors.ErrUnauthorized)
	expectKind(t, env.engine.Dispute(client, job.ID), coreerrors.ErrWrongState)

	if err := env.engine.SubmitDelivery(freelancer, job.ID, "cid"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	expectKind(t, env.engine.ConfirmDelivery(freelancer, job.ID), coreerrors.ErrUnauthorized)
	expectKind(t, env.engine.Dispute(outsider, job.ID), coreerrors.ErrUnauthorized)

	if err := env.engine.ConfirmDelivery(client, job.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	expectKind(t, env.engine.ConfirmDelivery(client, job.ID), coreerrors.ErrWrongState)
	expectKind(t, env.engine.Dispute(client, job.ID), coreerrors.ErrWrongState)
}

func TestFundInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	job, _ := env.engine.CreateJob(client, freelancer, uint256.NewInt(5_000))
	expectKind(t, env.engine.FundJob(client, job.ID, uint256.NewInt(5_000)), coreerrors.ErrInsufficientBalance)
}

func TestDisputeThenResolverRefund(t *testing.T) {
	env := newTestEnv(t)
	job := env.delivered(t)

	if err := env.engine.Dispute(freelancer, job.ID); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if got := env.held(t, job.ID); got != 150 {
		t.Fatalf("expected held 150 while disputed, got %d", got)
	}
	evt := env.emitter.last()
	if evt.Type != EventTypeJobDisputed || evt.Attributes["by"] != freelancer.Hex() || evt.Attributes["reputationBurned"] != "0" {
		t.Fatalf("unexpected dispute event %+v", evt)
	}

	expectKind(t, env.engine.Refund(client, job.ID), coreerrors.ErrUnauthorized)
	if err := env.engine.Refund(arbiter, job.ID); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got := env.held(t, job.ID); got != 0 {
		t.Fatalf("expected held 0 after refund, got %d", got)
	}
	bal, _ := env.bank.Balance(client)
	if bal.Uint64() != 1_000 {
		t.Fatalf("expected client made whole, got %s", bal)
	}
	if env.emitter.last().Type != EventTypeRefunded {
		t.Fatalf("expected refunded event, got %s", env.emitter.last().Type)
	}
	expectKind(t, env.engine.Refund(arbiter, job.ID), coreerrors.ErrWrongState)
	expectKind(t, env.engine.Release(arbiter, job.ID), coreerrors.ErrWrongState)

	stored, _ := env.engine.Job(job.ID)
	if !stored.Terminal() {
		t.Fatalf("resolved dispute must be terminal")
	}
}

func TestResolverRelease(t *testing.T) {
	env := newTestEnv(t)
	job := env.delivered(t)
	if err := env.engine.Dispute(client, job.ID); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if err := env.engine.Release(arbiter, job.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	paid, _ := env.bank.Balance(freelancer)
	if paid.Uint64() != 150 {
		t.Fatalf("expected freelancer paid 150, got %s", paid)
	}
	if env.emitter.last().Type != EventTypeReleased {
		t.Fatalf("expected released event")
	}
}

func TestRefundRequiresDispute(t *testing.T) {
	env := newTestEnv(t)
	job := env.delivered(t)
	expectKind(t, env.engine.Refund(arbiter, job.ID), coreerrors.ErrWrongState)
}

func TestLinkedDisputeSettlement(t *testing.T) {
	env := newTestEnv(t)
	job := env.delivered(t)
	if err := env.engine.Dispute(client, job.ID); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	emitted := len(env.emitter.events)

	_, err := env.engine.LinkDispute(arbiter, job.ID, 7, client, outsider)
	expectKind(t, err, coreerrors.ErrInvalidParty)
	linked, err := env.engine.LinkDispute(arbiter, job.ID, 7, freelancer, client)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if linked.DisputeID != 7 {
		t.Fatalf("expected dispute 7 linked, got %d", linked.DisputeID)
	}
	_, err = env.engine.LinkDispute(arbiter, job.ID, 8, client, freelancer)
	expectKind(t, err, coreerrors.ErrWrongState)

	expectKind(t, env.engine.Refund(arbiter, job.ID), coreerrors.ErrWrongState)
	expectKind(t, env.engine.SettleDispute(arbiter, job.ID, 8, true), coreerrors.ErrWrongState)
	expectKind(t, env.engine.SettleDispute(outsider, job.ID, 7, true), coreerrors.ErrUnauthorized)
	if err := env.engine.SettleDispute(arbiter, job.ID, 7, false); err != nil {
		t.Fatalf("settle: %v", err)
	}
	paid, _ := env.bank.Balance(freelancer)
	if paid.Uint64() != 150 {
		t.Fatalf("expected freelancer paid 150, got %s", paid)
	}
	if len(env.emitter.events) != emitted {
		t.Fatalf("link and settle must not emit")
	}
	expectKind(t, env.engine.SettleDispute(arbiter, job.ID, 7, false), coreerrors.ErrWrongState)
}

func TestDisputeBurnsAtMostBalance(t *testing.T) {
	env := newTestEnv(t)
	job := env.delivered(t)

	// Mint less than the recorded reward so the burn is capped by the balance.
	module := bank.ModuleAddress(ModuleName)
	if err := env.rep.Authority(module).Mint(freelancer, uint256.NewInt(4)); err != nil {
		t.Fatalf("seed reputation: %v", err)
	}
	stored, _ := env.engine.Job(job.ID)
	stored.ReputationMinted = true
	stored.ReputationReward = uint256.NewInt(10)
	if err := env.engine.storeJob(stored); err != nil {
		t.Fatalf("store job: %v", err)
	}

	if err := env.engine.Dispute(client, job.ID); err != nil {
		t.Fatalf("dispute: %v", err)
	}
	rep, _ := env.rep.BalanceOf(freelancer)
	if !rep.IsZero() {
		t.Fatalf("expected reputation burned to zero, got %s", rep)
	}
	after, _ := env.engine.Job(job.ID)
	if after.ReputationMinted {
		t.Fatalf("reputationMinted must clear after burn")
	}
	if env.emitter.last().Attributes["reputationBurned"] != "4" {
		t.Fatalf("unexpected burn amount %+v", env.emitter.last())
	}
}

func TestZeroRewardSkipsMint(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetReputationReward(new(uint256.Int))
	job := env.delivered(t)
	if err := env.engine.ConfirmDelivery(client, job.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	stored, _ := env.engine.Job(job.ID)
	if stored.ReputationMinted {
		t.Fatalf("zero reward must not mark reputation minted")
	}
}

func TestUnconfiguredEngine(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.CreateJob(client, freelancer, uint256.NewInt(1)); !errors.Is(err, errNilState) {
		t.Fatalf("expected nil state error, got %v", err)
	}
}
