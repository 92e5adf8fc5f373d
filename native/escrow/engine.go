package escrow

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/holiman/uint256"

	coreerrors "gigchain/core/errors"
	"gigchain/core/events"
	"gigchain/core/types"
	"gigchain/native/reputation"
)

// ModuleName names the escrow vault pool and the module identity that holds
// the reputation roles.
const ModuleName = "escrow"

const jobSequence = "escrow/job"

// DefaultReputationReward is minted to the freelancer on every confirmation
// unless the deployment overrides it.
var DefaultReputationReward = uint256.NewInt(10)

var (
	errNilState      = errors.New("escrow engine: state not configured")
	errNilBank       = errors.New("escrow engine: value ledger not configured")
	errNilReputation = errors.New("escrow engine: reputation authority not configured")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	NextSequence(name string) (uint64, error)
	Sequence(name string) (uint64, error)
}

// valueLedger moves settlement currency in and out of the escrow vault while
// attributing held value to individual jobs.
type valueLedger interface {
	Deposit(pool string, id uint64, from types.Address, amount *uint256.Int) error
	Withdraw(pool string, id uint64, to types.Address, amount *uint256.Int) error
	Held(pool string, id uint64) (*uint256.Int, error)
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine wires the job escrow business logic with external state, the value
// ledger, the reputation capability and event emitters.
type Engine struct {
	state      engineState
	bank       valueLedger
	reputation reputation.Authority
	emitter    events.Emitter
	reward     *uint256.Int
	resolvers  map[types.Address]struct{}
	nowFn      func() int64
}

// NewEngine creates an escrow engine with a no-op emitter and the default
// reputation reward. Callers can override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		reward:    types.CloneAmount(DefaultReputationReward),
		resolvers: make(map[types.Address]struct{}),
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the ledger that custodies held value.
func (e *Engine) SetBank(bank valueLedger) { e.bank = bank }

// SetReputation installs the mint/burn capability bound to the escrow module
// identity.
func (e *Engine) SetReputation(auth reputation.Authority) { e.reputation = auth }

// SetReputationReward overrides the amount minted on confirmation. A zero
// reward disables minting.
func (e *Engine) SetReputationReward(amount *uint256.Int) {
	e.reward = types.CloneAmount(amount)
}

// SetResolvers replaces the set of identities allowed to settle disputed jobs.
func (e *Engine) SetResolvers(resolvers ...types.Address) {
	e.resolvers = make(map[types.Address]struct{}, len(resolvers))
	for _, r := range resolvers {
		if r.IsZero() {
			continue
		}
		e.resolvers[r] = struct{}{}
	}
}

// IsResolver reports whether addr may refund or release disputed jobs.
func (e *Engine) IsResolver(addr types.Address) bool {
	if e == nil {
		return false
	}
	_, ok := e.resolvers[addr]
	return ok
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func jobKey(id uint64) []byte {
	return []byte("escrow/job/" + strconv.FormatUint(id, 10))
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.bank == nil:
		return errNilBank
	case e.reputation == nil:
		return errNilReputation
	}
	return nil
}

func (e *Engine) loadJob(op string, id uint64) (*Job, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var stored storedJob
	ok, err := e.state.KVGet(jobKey(id), &stored)
	if err != nil {
		return nil, fmt.Errorf("escrow: load job %d: %w", id, err)
	}
	if !ok {
		return nil, coreerrors.New(coreerrors.ErrNotFound, op, "job", id, "")
	}
	return stored.toJob()
}

func (e *Engine) storeJob(j *Job) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	j.UpdatedAt = e.now()
	return e.state.KVPut(jobKey(j.ID), newStoredJob(j))
}

func wrongState(op string, j *Job, want string) error {
	return coreerrors.New(coreerrors.ErrWrongState, op, "job", j.ID,
		fmt.Sprintf("status %s, requires %s", j.Status, want))
}

// Job returns a copy of the stored job.
func (e *Engine) Job(id uint64) (*Job, error) {
	return e.loadJob("escrow.job", id)
}

// JobCount returns the highest job ID handed out so far.
func (e *Engine) JobCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.Sequence(jobSequence)
}

// HeldBalance returns the value currently held for the job.
func (e *Engine) HeldBalance(id uint64) (*uint256.Int, error) {
	if e == nil || e.bank == nil {
		return nil, errNilBank
	}
	if _, err := e.loadJob("escrow.heldBalance", id); err != nil {
		return nil, err
	}
	return e.bank.Held(ModuleName, id)
}

// CreateJob opens a job between the caller (client) and the freelancer for a
// fixed amount.
func (e *Engine) CreateJob(caller, freelancer types.Address, amount *uint256.Int) (*Job, error) {
	const op = "escrow.createJob"
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller.IsZero() {
		return nil, coreerrors.New(coreerrors.ErrInvalidParty, op, "", 0, "client is the null identity")
	}
	if freelancer.IsZero() {
		return nil, coreerrors.New(coreerrors.ErrInvalidParty, op, "", 0, "freelancer is the null identity")
	}
	if freelancer == caller {
		return nil, coreerrors.New(coreerrors.ErrInvalidParty, op, "", 0, "freelancer must differ from client")
	}
	if amount == nil || amount.IsZero() {
		return nil, coreerrors.New(coreerrors.ErrInvalidAmount, op, "", 0, "amount must be positive")
	}
	id, err := e.state.NextSequence(jobSequence)
	if err != nil {
		return nil, err
	}
	now := e.now()
	job := &Job{
		ID:               id,
		Client:           caller,
		Freelancer:       freelancer,
		Amount:           types.CloneAmount(amount),
		Status:           StatusCreated,
		ReputationReward: new(uint256.Int),
		CreatedAt:        now,
	}
	if err := e.storeJob(job); err != nil {
		return nil, err
	}
	e.emit(NewJobCreatedEvent(job))
	return job.Clone(), nil
}

// FundJob moves the job amount from the client into the escrow vault. The paid
// amount must match the agreed amount exactly.
func (e *Engine) FundJob(caller types.Address, id uint64, paid *uint256.Int) error {
	const op = "escrow.fundJob"
	if err := e.ready(); err != nil {
		return err
	}
	job, err := e.loadJob(op, id)
	if err != nil {
		return err
	}
	if caller != job.Client {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, "job", id, "only the client may fund")
	}
	if job.Status != StatusCreated {
		return wrongState(op, job, StatusCreated.String())
	}
	if paid == nil || !paid.Eq(job.Amount) {
		return coreerrors.New(coreerrors.ErrAmountMismatch, op, "job", id,
			fmt.Sprintf("paid %s, amount %s", types.FormatAmount(paid), types.FormatAmount(job.Amount)))
	}
	if err := e.bank.Deposit(ModuleName, id, caller, job.Amount); err != nil {
		return err
	}
	job.Status = StatusFunded
	if err := e.storeJob(job); err != nil {
		return err
	}
	e.emit(NewJobFundedEvent(job))
	return nil
}

// SubmitDelivery records the freelancer's content reference verbatim.
func (e *Engine) SubmitDelivery(caller types.Address, id uint64, contentRef string) error {
	const op = "escrow.submitDelivery"
	if err := e.ready(); err != nil {
		return err
	}
	job, err := e.loadJob(op, id)
	if err != nil {
		return err
	}
	if caller != job.Freelancer {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, "job", id, "only the freelancer may deliver")
	}
	if job.Status != StatusFunded {
		return wrongState(op, job, StatusFunded.String())
	}
	job.DeliveryReference = contentRef
	job.Status = StatusDelivered
	if err := e.storeJob(job); err != nil {
		return err
	}
	e.emit(NewDeliverySubmittedEvent(job))
	return nil
}

// ConfirmDelivery pays the freelancer and mints the reputation reward.
func (e *Engine) ConfirmDelivery(caller types.Address, id uint64) error {
	const op = "escrow.confirmDelivery"
	if err := e.ready(); err != nil {
		return err
	}
	job, err := e.loadJob(op, id)
	if err != nil {
		return err
	}
	if caller != job.Client {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, "job", id, "only the client may confirm")
	}
	if job.Status != StatusDelivered {
		return wrongState(op, job, StatusDelivered.String())
	}
	if err := e.bank.Withdraw(ModuleName, id, job.Freelancer, job.Amount); err != nil {
		return err
	}
	if e.reward != nil && !e.reward.IsZero() {
		if err := e.reputation.Mint(job.Freelancer, e.reward); err != nil {
			return err
		}
		job.ReputationMinted = true
		job.ReputationReward = types.CloneAmount(e.reward)
	}
	job.Status = StatusConfirmed
	if err := e.storeJob(job); err != nil {
		return err
	}
	e.emit(NewDeliveryConfirmedEvent(job))
	return nil
}

// Dispute freezes a delivered job. Either party may call it. Reputation minted
// for the job, if still attributed, is burned up to the freelancer's balance.
func (e *Engine) Dispute(caller types.Address, id uint64) error {
	const op = "escrow.dispute"
	if err := e.ready(); err != nil {
		return err
	}
	job, err := e.loadJob(op, id)
	if err != nil {
		return err
	}
	if caller != job.Client && caller != job.Freelancer {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, "job", id, "only a job party may dispute")
	}
	if job.Status != StatusDelivered {
		return wrongState(op, job, StatusDelivered.String())
	}
	burned := new(uint256.Int)
	if job.ReputationMinted {
		balance, err := e.reputation.BalanceOf(job.Freelancer)
		if err != nil {
			return err
		}
		burned = types.CloneAmount(job.ReputationReward)
		if balance.Lt(burned) {
			burned = balance
		}
		if !burned.IsZero() {
			if err := e.reputation.Burn(job.Freelancer, burned); err != nil {
				return err
			}
		}
		job.ReputationMinted = false
	}
	job.Status = StatusDisputed
	if err := e.storeJob(job); err != nil {
		return err
	}
	e.emit(NewJobDisputedEvent(job, caller, burned.Dec()))
	return nil
}

func (e *Engine) loadSettleable(op string, caller types.Address, id uint64) (*Job, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	job, err := e.loadJob(op, id)
	if err != nil {
		return nil, err
	}
	if !e.IsResolver(caller) {
		return nil, coreerrors.New(coreerrors.ErrUnauthorized, op, "job", id, "caller is not a resolver")
	}
	if job.Status != StatusDisputed {
		return nil, wrongState(op, job, StatusDisputed.String())
	}
	if job.Resolved {
		return nil, coreerrors.New(coreerrors.ErrWrongState, op, "job", id, "dispute already settled")
	}
	return job, nil
}

func (e *Engine) payout(job *Job, favorClient bool) error {
	to := job.Freelancer
	if favorClient {
		to = job.Client
	}
	if err := e.bank.Withdraw(ModuleName, job.ID, to, job.Amount); err != nil {
		return err
	}
	job.Resolved = true
	return e.storeJob(job)
}

func (e *Engine) settleDirect(op string, caller types.Address, id uint64, favorClient bool) (*Job, error) {
	job, err := e.loadSettleable(op, caller, id)
	if err != nil {
		return nil, err
	}
	if job.DisputeID != 0 {
		return nil, coreerrors.New(coreerrors.ErrWrongState, op, "job", id,
			fmt.Sprintf("settlement belongs to dispute %d", job.DisputeID))
	}
	if err := e.payout(job, favorClient); err != nil {
		return nil, err
	}
	return job, nil
}

// Refund returns the held amount of a disputed job to the client. Only
// resolvers may call it.
func (e *Engine) Refund(caller types.Address, id uint64) error {
	job, err := e.settleDirect("escrow.refund", caller, id, true)
	if err != nil {
		return err
	}
	e.emit(NewRefundedEvent(job))
	return nil
}

// Release pays the held amount of a disputed job to the freelancer. Only
// resolvers may call it.
func (e *Engine) Release(caller types.Address, id uint64) error {
	job, err := e.settleDirect("escrow.release", caller, id, false)
	if err != nil {
		return err
	}
	e.emit(NewReleasedEvent(job))
	return nil
}

// LinkDispute attaches a dispute record to a disputed job. The opener and the
// counterparty must be the job's two parties. The linked job can afterwards
// only be settled through SettleDispute with the same dispute ID.
func (e *Engine) LinkDispute(caller types.Address, id, disputeID uint64, opener, counterparty types.Address) (*Job, error) {
	const op = "escrow.linkDispute"
	job, err := e.loadSettleable(op, caller, id)
	if err != nil {
		return nil, err
	}
	if job.DisputeID != 0 {
		return nil, coreerrors.New(coreerrors.ErrWrongState, op, "job", id,
			fmt.Sprintf("already linked to dispute %d", job.DisputeID))
	}
	parties := (opener == job.Client && counterparty == job.Freelancer) ||
		(opener == job.Freelancer && counterparty == job.Client)
	if !parties {
		return nil, coreerrors.New(coreerrors.ErrInvalidParty, op, "job", id, "dispute parties differ from job parties")
	}
	job.DisputeID = disputeID
	if err := e.storeJob(job); err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// SettleDispute pays out a job linked to disputeID. It emits nothing; the
// dispute resolution record carries the outcome.
func (e *Engine) SettleDispute(caller types.Address, id, disputeID uint64, favorClient bool) error {
	const op = "escrow.settleDispute"
	job, err := e.loadSettleable(op, caller, id)
	if err != nil {
		return err
	}
	if job.DisputeID != disputeID {
		return coreerrors.New(coreerrors.ErrWrongState, op, "job", id,
			fmt.Sprintf("linked to dispute %d, not %d", job.DisputeID, disputeID))
	}
	return e.payout(job, favorClient)
}
