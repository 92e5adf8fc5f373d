package dispute

import (
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/holiman/uint256"

	coreerrors "gigchain/core/errors"
	"gigchain/core/events"
	"gigchain/core/types"
	"gigchain/native/bank"
	"gigchain/native/escrow"
)

// ModuleName names the fee pool and the DAO module identity.
const ModuleName = "dispute"

const (
	EventTypeJurorRegistered = "JurorRegistered"
	EventTypeDisputeCreated  = "DisputeCreated"
	EventTypeVoteCast        = "VoteCast"
	EventTypeDisputeResolved = "DisputeResolved"
)

const disputeSequence = "dispute/id"

var (
	errStateNotConfigured  = errors.New("dispute: state not configured")
	errBankNotConfigured   = errors.New("dispute: value ledger not configured")
	errEscrowNotConfigured = errors.New("dispute: escrow not configured")
)

var jurorListKey = []byte("dispute/jurors")

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	NextSequence(name string) (uint64, error)
	Sequence(name string) (uint64, error)
}

type valueLedger interface {
	Deposit(pool string, id uint64, from types.Address, amount *uint256.Int) error
	Withdraw(pool string, id uint64, to types.Address, amount *uint256.Int) error
}

// jobSettler is the resolver-only side of the escrow engine.
type jobSettler interface {
	LinkDispute(caller types.Address, id, disputeID uint64, opener, counterparty types.Address) (*escrow.Job, error)
	SettleDispute(caller types.Address, id, disputeID uint64, favorClient bool) error
}

// Engine runs the dispute DAO: the juror registry, ballots and resolution.
type Engine struct {
	state   engineState
	bank    valueLedger
	escrow  jobSettler
	emitter events.Emitter
	policy  Policy
	self    types.Address
	nowFn   func() time.Time
}

// NewEngine returns a DAO engine using DefaultPolicy.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		policy:  DefaultPolicy(),
		self:    bank.ModuleAddress(ModuleName),
		nowFn:   time.Now,
	}
}

// SetState configures the persistence backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the ledger holding dispute fees.
func (e *Engine) SetBank(bank valueLedger) { e.bank = bank }

// SetEscrow wires the escrow engine used to settle linked jobs. The DAO module
// identity must be one of its resolvers.
func (e *Engine) SetEscrow(settler jobSettler) { e.escrow = settler }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock used by the engine.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

// SetPolicy replaces the DAO parameters. Invalid policies are rejected.
func (e *Engine) SetPolicy(policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	policy.MinFee = types.CloneAmount(policy.MinFee)
	e.policy = policy
	return nil
}

// Policy returns the active parameters.
func (e *Engine) Policy() Policy {
	p := e.policy
	p.MinFee = types.CloneAmount(p.MinFee)
	return p
}

// Address returns the DAO module identity.
func (e *Engine) Address() types.Address { return e.self }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(disputeEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn().Unix()
}

func disputeKey(id uint64) []byte {
	return []byte("dispute/record/" + strconv.FormatUint(id, 10))
}

func jurorKey(addr types.Address) []byte {
	return append([]byte("dispute/juror/"), addr[:]...)
}

func (e *Engine) loadDispute(op string, id uint64) (*Dispute, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	var stored storedDispute
	ok, err := e.state.KVGet(disputeKey(id), &stored)
	if err != nil {
		return nil, fmt.Errorf("dispute: load %d: %w", id, err)
	}
	if !ok {
		return nil, coreerrors.New(coreerrors.ErrNotFound, op, "dispute", id, "dispute does not exist")
	}
	return stored.toDispute()
}

func (e *Engine) storeDispute(d *Dispute) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	return e.state.KVPut(disputeKey(d.ID), newStoredDispute(d))
}

// Dispute returns a copy of the stored dispute.
func (e *Engine) Dispute(id uint64) (*Dispute, error) {
	return e.loadDispute("dispute.get", id)
}

// DisputeCount returns the highest dispute ID handed out so far.
func (e *Engine) DisputeCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errStateNotConfigured
	}
	return e.state.Sequence(disputeSequence)
}

// IsJuror reports whether addr is in the juror registry.
func (e *Engine) IsJuror(addr types.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errStateNotConfigured
	}
	var registered bool
	ok, err := e.state.KVGet(jurorKey(addr), &registered)
	if err != nil {
		return false, err
	}
	return ok && registered, nil
}

// Jurors lists the registry in registration order.
func (e *Engine) Jurors() ([]types.Address, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	var raw [][]byte
	if err := e.state.KVGetList(jurorListKey, &raw); err != nil {
		return nil, err
	}
	out := make([]types.Address, 0, len(raw))
	for _, b := range raw {
		out = append(out, types.BytesToAddress(b))
	}
	return out, nil
}

// RegisterAsJuror adds the caller to the registry. Repeat registrations
// succeed without changing state and report existing=true in the event.
func (e *Engine) RegisterAsJuror(caller types.Address) (bool, error) {
	const op = "dispute.registerAsJuror"
	if e == nil || e.state == nil {
		return false, errStateNotConfigured
	}
	if caller.IsZero() {
		return false, coreerrors.New(coreerrors.ErrInvalidParty, op, "juror", 0, "null identity")
	}
	existing, err := e.IsJuror(caller)
	if err != nil {
		return false, err
	}
	if !existing {
		if err := e.state.KVPut(jurorKey(caller), true); err != nil {
			return false, err
		}
		if err := e.state.KVAppend(jurorListKey, caller.Bytes()); err != nil {
			return false, err
		}
	}
	e.emit(newJurorRegisteredEvent(caller, existing))
	return existing, nil
}

// CreateDispute opens a dispute between the caller and the counterparty and
// moves the fee into the dispute's pool. A non-zero jobID links the dispute to
// a disputed escrow job; the parties are then taken from the job.
func (e *Engine) CreateDispute(caller, counterparty types.Address, reason string, fee *uint256.Int, jobID uint64) (*Dispute, error) {
	const op = "dispute.createDispute"
	switch {
	case e == nil || e.state == nil:
		return nil, errStateNotConfigured
	case e.bank == nil:
		return nil, errBankNotConfigured
	}
	if fee == nil || fee.Lt(e.policy.MinFee) {
		return nil, coreerrors.New(coreerrors.ErrInvalidAmount, op, "", 0,
			fmt.Sprintf("fee %s below minimum %s", types.FormatAmount(fee), e.policy.MinFee.Dec()))
	}
	if counterparty.IsZero() {
		return nil, coreerrors.New(coreerrors.ErrInvalidParty, op, "", 0, "counterparty is the null identity")
	}
	if counterparty == caller {
		return nil, coreerrors.New(coreerrors.ErrInvalidParty, op, "", 0, "counterparty must differ from caller")
	}
	if reason == "" {
		return nil, coreerrors.New(coreerrors.ErrInvalidReason, op, "", 0, "reason required")
	}
	if utf8.RuneCountInString(reason) > e.policy.MaxReasonLength {
		return nil, coreerrors.New(coreerrors.ErrInvalidReason, op, "", 0,
			fmt.Sprintf("reason exceeds %d characters", e.policy.MaxReasonLength))
	}

	last, err := e.state.Sequence(disputeSequence)
	if err != nil {
		return nil, err
	}
	id := last + 1

	d := &Dispute{
		ID:         id,
		JobID:      jobID,
		Creator:    caller,
		Client:     caller,
		Freelancer: counterparty,
		Reason:     reason,
		Fee:        types.CloneAmount(fee),
		CreatedAt:  e.now(),
	}
	if jobID != 0 {
		if e.escrow == nil {
			return nil, errEscrowNotConfigured
		}
		job, err := e.escrow.LinkDispute(e.self, jobID, id, caller, counterparty)
		if err != nil {
			return nil, err
		}
		d.Client = job.Client
		d.Freelancer = job.Freelancer
	}
	if err := e.bank.Deposit(ModuleName, id, caller, fee); err != nil {
		return nil, err
	}
	if _, err := e.state.NextSequence(disputeSequence); err != nil {
		return nil, err
	}
	if err := e.storeDispute(d); err != nil {
		return nil, err
	}
	e.emit(newDisputeCreatedEvent(d))
	return d.Clone(), nil
}

// VoteOnDispute records a juror ballot. An unknown dispute is reported before
// the juror check, and the already-voted check runs before any tally changes.
func (e *Engine) VoteOnDispute(caller types.Address, id uint64, side Side) error {
	const op = "dispute.voteOnDispute"
	d, err := e.loadDispute(op, id)
	if err != nil {
		return err
	}
	isJuror, err := e.IsJuror(caller)
	if err != nil {
		return err
	}
	if !isJuror {
		return coreerrors.New(coreerrors.ErrUnauthorized, op, "dispute", id, "caller is not a registered juror")
	}
	if d.Resolved {
		return coreerrors.New(coreerrors.ErrAlreadyResolved, op, "dispute", id, "")
	}
	if d.Voted(caller) {
		return coreerrors.New(coreerrors.ErrAlreadyVoted, op, "dispute", id, caller.Hex())
	}
	switch side {
	case SideClient:
		d.VotesClient++
	case SideFreelancer:
		d.VotesFreelancer++
	default:
		return coreerrors.New(coreerrors.ErrInvalidVote, op, "dispute", id,
			fmt.Sprintf("side %d, expected 1 (client) or 2 (freelancer)", side))
	}
	d.Votes = append(d.Votes, Vote{Juror: caller, Side: side})
	if err := e.storeDispute(d); err != nil {
		return err
	}
	e.emit(newVoteCastEvent(d.ID, caller, side))
	return nil
}

// ResolveDispute tallies the ballots, settles the linked job and disposes of
// the fee pool. Ties favour the client. Anyone may trigger it.
func (e *Engine) ResolveDispute(caller types.Address, id uint64) (*Dispute, error) {
	const op = "dispute.resolveDispute"
	if e == nil || e.bank == nil {
		return nil, errBankNotConfigured
	}
	d, err := e.loadDispute(op, id)
	if err != nil {
		return nil, err
	}
	if d.Resolved {
		return nil, coreerrors.New(coreerrors.ErrAlreadyResolved, op, "dispute", id, "")
	}
	d.Winner = SideFreelancer
	if d.VotesClient >= d.VotesFreelancer {
		d.Winner = SideClient
	}
	d.Resolved = true
	d.ResolvedAt = e.now()

	if d.JobID != 0 {
		if e.escrow == nil {
			return nil, errEscrowNotConfigured
		}
		if err := e.escrow.SettleDispute(e.self, d.JobID, d.ID, d.Winner == SideClient); err != nil {
			return nil, err
		}
	}
	payouts := e.feePayouts(d)
	for _, p := range payouts {
		if err := e.bank.Withdraw(ModuleName, d.ID, p.to, p.amount); err != nil {
			return nil, err
		}
	}
	if err := e.storeDispute(d); err != nil {
		return nil, err
	}
	e.emit(newDisputeResolvedEvent(d, len(payouts)))
	return d.Clone(), nil
}

type feePayout struct {
	to     types.Address
	amount *uint256.Int
}

// feePayouts computes the fee disposition for a resolved dispute. Under the
// juror split the remainder goes one unit at a time to the earliest winning
// voters.
func (e *Engine) feePayouts(d *Dispute) []feePayout {
	if d.Fee == nil || d.Fee.IsZero() {
		return nil
	}
	var winners []types.Address
	if e.policy.FeePolicy == FeePolicyJurorSplit {
		for _, v := range d.Votes {
			if v.Side == d.Winner {
				winners = append(winners, v.Juror)
			}
		}
	}
	if len(winners) == 0 {
		return []feePayout{{to: d.Creator, amount: types.CloneAmount(d.Fee)}}
	}
	n := uint256.NewInt(uint64(len(winners)))
	share := new(uint256.Int).Div(d.Fee, n)
	remainder := new(uint256.Int).Mod(d.Fee, n).Uint64()
	payouts := make([]feePayout, 0, len(winners))
	for i, juror := range winners {
		amount := types.CloneAmount(share)
		if uint64(i) < remainder {
			amount.AddUint64(amount, 1)
		}
		if amount.IsZero() {
			continue
		}
		payouts = append(payouts, feePayout{to: juror, amount: amount})
	}
	return payouts
}

type disputeEvent struct {
	evt *types.Event
}

func (d disputeEvent) EventType() string {
	if d.evt == nil {
		return ""
	}
	return d.evt.Type
}

func (d disputeEvent) Event() *types.Event { return d.evt }

func newJurorRegisteredEvent(juror types.Address, existing bool) *types.Event {
	return &types.Event{Type: EventTypeJurorRegistered, Attributes: map[string]string{
		"juror":    juror.Hex(),
		"existing": strconv.FormatBool(existing),
	}}
}

func newDisputeCreatedEvent(d *Dispute) *types.Event {
	attrs := map[string]string{
		"disputeId":  strconv.FormatUint(d.ID, 10),
		"client":     d.Client.Hex(),
		"freelancer": d.Freelancer.Hex(),
		"reason":     d.Reason,
		"fee":        types.FormatAmount(d.Fee),
	}
	if d.JobID != 0 {
		attrs["jobId"] = strconv.FormatUint(d.JobID, 10)
	}
	return &types.Event{Type: EventTypeDisputeCreated, Attributes: attrs}
}

func newVoteCastEvent(id uint64, juror types.Address, side Side) *types.Event {
	return &types.Event{Type: EventTypeVoteCast, Attributes: map[string]string{
		"disputeId": strconv.FormatUint(id, 10),
		"juror":     juror.Hex(),
		"side":      strconv.FormatUint(uint64(side), 10),
	}}
}

func newDisputeResolvedEvent(d *Dispute, feeRecipients int) *types.Event {
	attrs := map[string]string{
		"disputeId":       strconv.FormatUint(d.ID, 10),
		"winner":          d.WinnerAddress().Hex(),
		"side":            d.Winner.String(),
		"votesClient":     strconv.FormatUint(d.VotesClient, 10),
		"votesFreelancer": strconv.FormatUint(d.VotesFreelancer, 10),
		"feeRecipients":   strconv.Itoa(feeRecipients),
	}
	if d.JobID != 0 {
		attrs["jobId"] = strconv.FormatUint(d.JobID, 10)
	}
	return &types.Event{Type: EventTypeDisputeResolved, Attributes: attrs}
}
