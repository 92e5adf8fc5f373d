package dispute

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	coreerrors "gigchain/core/errors"
	"gigchain/core/events"
	"gigchain/core/state"
	"gigchain/core/types"
	"gigchain/native/bank"
	"gigchain/native/escrow"
	"gigchain/native/reputation"
	"gigchain/storage"
)

var (
	client     = types.MustParseAddress("0x1000000000000000000000000000000000000001")
	freelancer = types.MustParseAddress("0x2000000000000000000000000000000000000002")
	jurorA     = types.MustParseAddress("0x3000000000000000000000000000000000000003")
	jurorB     = types.MustParseAddress("0x4000000000000000000000000000000000000004")
	jurorC     = types.MustParseAddress("0x5000000000000000000000000000000000000005")
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

type fixture struct {
	dao     *Engine
	escrow  *escrow.Engine
	bank    *bank.Ledger
	emitter *captureEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	ledger := bank.NewLedger(mgr)
	escrowModule := bank.ModuleAddress(escrow.ModuleName)
	require.NoError(t, mgr.SetRole(reputation.RoleMinter, escrowModule.Bytes()))
	require.NoError(t, mgr.SetRole(reputation.RoleBurner, escrowModule.Bytes()))

	rep := reputation.NewEngine()
	rep.SetState(mgr)

	dao := NewEngine()
	esc := escrow.NewEngine()
	esc.SetState(mgr)
	esc.SetBank(ledger)
	esc.SetReputation(rep.Authority(escrowModule))
	esc.SetResolvers(dao.Address())

	emitter := &captureEmitter{}
	dao.SetState(mgr)
	dao.SetBank(ledger)
	dao.SetEscrow(esc)
	dao.SetEmitter(emitter)
	dao.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0) })

	for _, addr := range []types.Address{client, freelancer, jurorA, jurorB, jurorC} {
		require.NoError(t, ledger.Credit(addr, uint256.NewInt(1_000)))
	}
	return &fixture{dao: dao, escrow: esc, bank: ledger, emitter: emitter}
}

func (f *fixture) disputedJob(t *testing.T) *escrow.Job {
	t.Helper()
	job, err := f.escrow.CreateJob(client, freelancer, uint256.NewInt(150))
	require.NoError(t, err)
	require.NoError(t, f.escrow.FundJob(client, job.ID, uint256.NewInt(150)))
	require.NoError(t, f.escrow.SubmitDelivery(freelancer, job.ID, "ref1"))
	require.NoError(t, f.escrow.Dispute(client, job.ID))
	return job
}

func (f *fixture) register(t *testing.T, jurors ...types.Address) {
	t.Helper()
	for _, j := range jurors {
		_, err := f.dao.RegisterAsJuror(j)
		require.NoError(t, err)
	}
}

func balance(t *testing.T, l *bank.Ledger, addr types.Address) uint64 {
	t.Helper()
	bal, err := l.Balance(addr)
	require.NoError(t, err)
	return bal.Uint64()
}

func TestTieFavoursClientAndRefundsJob(t *testing.T) {
	f := newFixture(t)
	job := f.disputedJob(t)
	f.register(t, client, freelancer)

	d, err := f.dao.CreateDispute(client, freelancer, "work not delivered as agreed", uint256.NewInt(5), job.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1), d.ID)

	require.NoError(t, f.dao.VoteOnDispute(freelancer, d.ID, SideClient))
	require.NoError(t, f.dao.VoteOnDispute(client, d.ID, SideFreelancer))

	resolved, err := f.dao.ResolveDispute(jurorC, d.ID)
	require.NoError(t, err)
	require.Equal(t, SideClient, resolved.Winner)
	require.Equal(t, client, resolved.WinnerAddress())

	// 1000 - 150 job - 5 fee + 150 refund.
	require.Equal(t, uint64(995), balance(t, f.bank, client))
	// The only winning voter takes the whole pool.
	require.Equal(t, uint64(1_005), balance(t, f.bank, freelancer))

	stored, err := f.escrow.Job(job.ID)
	require.NoError(t, err)
	require.True(t, stored.Resolved)
	require.Equal(t, escrow.StatusDisputed, stored.Status)
	held, err := f.escrow.HeldBalance(job.ID)
	require.NoError(t, err)
	require.True(t, held.IsZero())

	evt := f.emitter.last()
	require.Equal(t, EventTypeDisputeResolved, evt.Type)
	require.Equal(t, client.Hex(), evt.Attributes["winner"])
	require.Equal(t, "1", evt.Attributes["votesClient"])
}

func TestOneVotePerJuror(t *testing.T) {
	f := newFixture(t)
	f.register(t, jurorA, jurorB)
	d, err := f.dao.CreateDispute(client, freelancer, "late", uint256.NewInt(5), 0)
	require.NoError(t, err)

	require.NoError(t, f.dao.VoteOnDispute(jurorA, d.ID, SideClient))
	require.NoError(t, f.dao.VoteOnDispute(jurorB, d.ID, SideFreelancer))
	err = f.dao.VoteOnDispute(jurorA, d.ID, SideFreelancer)
	require.ErrorIs(t, err, coreerrors.ErrAlreadyVoted)

	stored, err := f.dao.Dispute(d.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1), stored.VotesClient)
	require.Equal(t, uint64(1), stored.VotesFreelancer)
	require.Len(t, stored.Votes, 2)
}

func TestVoteValidation(t *testing.T) {
	f := newFixture(t)
	f.register(t, jurorA)
	d, err := f.dao.CreateDispute(client, freelancer, "late", uint256.NewInt(5), 0)
	require.NoError(t, err)

	require.ErrorIs(t, f.dao.VoteOnDispute(jurorB, d.ID, SideClient), coreerrors.ErrUnauthorized)
	require.ErrorIs(t, f.dao.VoteOnDispute(jurorA, 42, SideClient), coreerrors.ErrNotFound)
	require.ErrorIs(t, f.dao.VoteOnDispute(jurorB, 999, SideClient), coreerrors.ErrNotFound,
		"an unknown dispute is reported before the juror check")
	require.ErrorIs(t, f.dao.VoteOnDispute(jurorA, d.ID, SideUnspecified), coreerrors.ErrInvalidVote)
	require.ErrorIs(t, f.dao.VoteOnDispute(jurorA, d.ID, Side(3)), coreerrors.ErrInvalidVote)

	stored, err := f.dao.Dispute(d.ID)
	require.NoError(t, err)
	require.Empty(t, stored.Votes)

	_, err = f.dao.ResolveDispute(jurorA, d.ID)
	require.NoError(t, err)
	require.ErrorIs(t, f.dao.VoteOnDispute(jurorA, d.ID, SideClient), coreerrors.ErrAlreadyResolved)
}

func TestResolveTwice(t *testing.T) {
	f := newFixture(t)
	d, err := f.dao.CreateDispute(client, freelancer, "late", uint256.NewInt(5), 0)
	require.NoError(t, err)
	_, err = f.dao.ResolveDispute(client, d.ID)
	require.NoError(t, err)

	before, err := f.dao.Dispute(d.ID)
	require.NoError(t, err)
	emitted := len(f.emitter.events)

	_, err = f.dao.ResolveDispute(client, d.ID)
	require.ErrorIs(t, err, coreerrors.ErrAlreadyResolved)
	after, err := f.dao.Dispute(d.ID)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Len(t, f.emitter.events, emitted)

	_, err = f.dao.ResolveDispute(client, 99)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
}

func TestCreateDisputeValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.dao.CreateDispute(client, freelancer, "late", uint256.NewInt(4), 0)
	require.ErrorIs(t, err, coreerrors.ErrInvalidAmount)
	_, err = f.dao.CreateDispute(client, types.ZeroAddress, "late", uint256.NewInt(5), 0)
	require.ErrorIs(t, err, coreerrors.ErrInvalidParty)
	_, err = f.dao.CreateDispute(client, client, "late", uint256.NewInt(5), 0)
	require.ErrorIs(t, err, coreerrors.ErrInvalidParty)
	_, err = f.dao.CreateDispute(client, freelancer, "", uint256.NewInt(5), 0)
	require.ErrorIs(t, err, coreerrors.ErrInvalidReason)
	_, err = f.dao.CreateDispute(client, freelancer, strings.Repeat("x", 1025), uint256.NewInt(5), 0)
	require.ErrorIs(t, err, coreerrors.ErrInvalidReason)

	count, err := f.dao.DisputeCount()
	require.NoError(t, err)
	require.Zero(t, count)
	require.Equal(t, uint64(1_000), balance(t, f.bank, client))
}

func TestCreateDisputeLinkedToJob(t *testing.T) {
	f := newFixture(t)
	job, err := f.escrow.CreateJob(client, freelancer, uint256.NewInt(150))
	require.NoError(t, err)

	_, err = f.dao.CreateDispute(client, freelancer, "late", uint256.NewInt(5), job.ID)
	require.ErrorIs(t, err, coreerrors.ErrWrongState)

	require.NoError(t, f.escrow.FundJob(client, job.ID, uint256.NewInt(150)))
	require.NoError(t, f.escrow.SubmitDelivery(freelancer, job.ID, "ref1"))
	require.NoError(t, f.escrow.Dispute(freelancer, job.ID))

	_, err = f.dao.CreateDispute(jurorA, freelancer, "late", uint256.NewInt(5), job.ID)
	require.ErrorIs(t, err, coreerrors.ErrInvalidParty)

	// The freelancer opens it, but the roles still come from the job.
	d, err := f.dao.CreateDispute(freelancer, client, "client unresponsive", uint256.NewInt(5), job.ID)
	require.NoError(t, err)
	require.Equal(t, client, d.Client)
	require.Equal(t, freelancer, d.Freelancer)
	require.Equal(t, freelancer, d.Creator)

	_, err = f.dao.CreateDispute(client, freelancer, "again", uint256.NewInt(5), job.ID)
	require.ErrorIs(t, err, coreerrors.ErrWrongState)

	evt := f.emitter.last()
	require.Equal(t, EventTypeDisputeCreated, evt.Type)
	require.Equal(t, "1", evt.Attributes["disputeId"])
	require.Equal(t, client.Hex(), evt.Attributes["client"])
}

func TestFreelancerWinReleasesJob(t *testing.T) {
	f := newFixture(t)
	job := f.disputedJob(t)
	f.register(t, jurorA, jurorB, jurorC)
	d, err := f.dao.CreateDispute(client, freelancer, "rejected good work", uint256.NewInt(7), job.ID)
	require.NoError(t, err)

	require.NoError(t, f.dao.VoteOnDispute(jurorA, d.ID, SideFreelancer))
	require.NoError(t, f.dao.VoteOnDispute(jurorB, d.ID, SideClient))
	require.NoError(t, f.dao.VoteOnDispute(jurorC, d.ID, SideFreelancer))

	resolved, err := f.dao.ResolveDispute(client, d.ID)
	require.NoError(t, err)
	require.Equal(t, SideFreelancer, resolved.Winner)

	require.Equal(t, uint64(1_150), balance(t, f.bank, freelancer))
	// 7 split across two winners: the earlier voter gets the remainder unit.
	require.Equal(t, uint64(1_004), balance(t, f.bank, jurorA))
	require.Equal(t, uint64(1_000), balance(t, f.bank, jurorB))
	require.Equal(t, uint64(1_003), balance(t, f.bank, jurorC))
}

func TestFeeRefundedWithoutWinningVoters(t *testing.T) {
	f := newFixture(t)
	d, err := f.dao.CreateDispute(client, freelancer, "late", uint256.NewInt(5), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(995), balance(t, f.bank, client))
	_, err = f.dao.ResolveDispute(freelancer, d.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), balance(t, f.bank, client))
}

func TestRefundFeePolicy(t *testing.T) {
	f := newFixture(t)
	policy := DefaultPolicy()
	policy.FeePolicy = FeePolicyRefund
	require.NoError(t, f.dao.SetPolicy(policy))
	f.register(t, jurorA)

	d, err := f.dao.CreateDispute(client, freelancer, "late", uint256.NewInt(5), 0)
	require.NoError(t, err)
	require.NoError(t, f.dao.VoteOnDispute(jurorA, d.ID, SideClient))
	_, err = f.dao.ResolveDispute(client, d.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), balance(t, f.bank, client))
	require.Equal(t, uint64(1_000), balance(t, f.bank, jurorA))
}

func TestRegisterAsJurorIdempotent(t *testing.T) {
	f := newFixture(t)
	existing, err := f.dao.RegisterAsJuror(jurorA)
	require.NoError(t, err)
	require.False(t, existing)
	existing, err = f.dao.RegisterAsJuror(jurorA)
	require.NoError(t, err)
	require.True(t, existing)
	require.Equal(t, "true", f.emitter.last().Attributes["existing"])

	jurors, err := f.dao.Jurors()
	require.NoError(t, err)
	require.Equal(t, []types.Address{jurorA}, jurors)

	_, err = f.dao.RegisterAsJuror(types.ZeroAddress)
	require.True(t, errors.Is(err, coreerrors.ErrInvalidParty))
}

func TestParseSide(t *testing.T) {
	require.Equal(t, SideClient, ParseSide("1"))
	require.Equal(t, SideClient, ParseSide(" Client "))
	require.Equal(t, SideFreelancer, ParseSide("2"))
	require.Equal(t, SideFreelancer, ParseSide("freelancer"))
	require.Equal(t, SideUnspecified, ParseSide("maybe"))
	require.False(t, ParseSide("0").Valid())
	require.False(t, ParseSide("3").Valid())
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())
	bad := DefaultPolicy()
	bad.FeePolicy = "burn"
	require.Error(t, bad.Validate())
	bad = DefaultPolicy()
	bad.MaxReasonLength = 0
	require.Error(t, bad.Validate())
}
