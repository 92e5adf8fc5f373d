package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gigchain/core"
	"gigchain/core/events"
	"gigchain/core/genesis"
	"gigchain/core/types"
	"gigchain/native/dispute"
	"gigchain/storage"
)

var (
	client     = types.MustParseAddress("0x1000000000000000000000000000000000000001")
	freelancer = types.MustParseAddress("0x2000000000000000000000000000000000000002")
	juror1     = types.MustParseAddress("0x3000000000000000000000000000000000000003")
	juror2     = types.MustParseAddress("0x3000000000000000000000000000000000000004")
)

var quiet = slog.New(slog.NewJSONHandler(io.Discard, nil))

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "index.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db
}

func setupNode(t *testing.T) *core.Node {
	t.Helper()
	doc := fmt.Sprintf("networkName: gig-index\nalloc:\n  %q: \"1000\"\n  %q: \"100\"\n", client.Hex(), freelancer.Hex())
	spec, err := genesis.ParseGenesisSpec([]byte(doc))
	require.NoError(t, err)
	settings := core.DefaultSettings()
	settings.Logger = quiet
	node, err := core.NewNode(storage.NewMemDB(), settings, spec)
	require.NoError(t, err)
	return node
}

func runDisputedJob(t *testing.T, node *core.Node) {
	t.Helper()
	ctx := context.Background()
	steps := []func() (*core.Receipt, error){
		func() (*core.Receipt, error) { return node.RegisterAsJuror(ctx, juror1) },
		func() (*core.Receipt, error) { return node.RegisterAsJuror(ctx, juror2) },
		func() (*core.Receipt, error) { return node.CreateJob(ctx, client, freelancer, uint256.NewInt(150)) },
		func() (*core.Receipt, error) { return node.FundJob(ctx, client, 1, uint256.NewInt(150)) },
		func() (*core.Receipt, error) { return node.SubmitDelivery(ctx, freelancer, 1, "ipfs://bafy") },
		func() (*core.Receipt, error) { return node.DisputeJob(ctx, client, 1) },
		func() (*core.Receipt, error) {
			return node.CreateDispute(ctx, client, freelancer, "incomplete work", uint256.NewInt(5), 1)
		},
		func() (*core.Receipt, error) { return node.VoteOnDispute(ctx, juror1, 1, dispute.SideClient) },
		func() (*core.Receipt, error) { return node.VoteOnDispute(ctx, juror2, 1, dispute.SideFreelancer) },
		func() (*core.Receipt, error) { return node.ResolveDispute(ctx, juror1, 1) },
	}
	for i, step := range steps {
		_, err := step()
		require.NoError(t, err, "step %d", i)
	}
}

func TestCatchUpProjectsDisputedJob(t *testing.T) {
	ctx := context.Background()
	node := setupNode(t)
	runDisputedJob(t, node)

	ix, err := New(setupDB(t), node, quiet)
	require.NoError(t, err)
	last, err := ix.CatchUp(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(10), last)

	jobs, err := ix.Jobs(ctx, JobFilter{Party: client.Hex()})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	job := jobs[0]
	require.Equal(t, "Disputed", job.Status)
	require.Equal(t, "ipfs://bafy", job.DeliveryReference)
	require.Equal(t, uint64(1), job.DisputeID)
	require.True(t, job.Resolved)
	require.Equal(t, client.Hex(), job.SettledTo, "ties favour the client")

	disputes, err := ix.Disputes(ctx, false)
	require.NoError(t, err)
	require.Len(t, disputes, 1)
	d := disputes[0]
	require.True(t, d.Resolved)
	require.Equal(t, uint64(1), d.VotesClient)
	require.Equal(t, uint64(1), d.VotesFreelancer)
	require.Equal(t, "client", d.WinningSide)
	require.Equal(t, "5", d.Fee)

	open, err := ix.Disputes(ctx, true)
	require.NoError(t, err)
	require.Empty(t, open)

	jurors, err := ix.Jurors(ctx)
	require.NoError(t, err)
	require.Len(t, jurors, 2)
	require.Equal(t, juror1.Hex(), jurors[0].Address)

	votes, err := ix.EventsByType(ctx, dispute.EventTypeVoteCast, 0)
	require.NoError(t, err)
	require.Len(t, votes, 2)
}

func TestApplyIsIdempotentAndOrdered(t *testing.T) {
	ctx := context.Background()
	node := setupNode(t)
	runDisputedJob(t, node)
	records, err := node.Events(1, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)

	ix, err := New(setupDB(t), nil, quiet)
	require.NoError(t, err)
	require.NoError(t, ix.Apply(ctx, records[0]))
	require.NoError(t, ix.Apply(ctx, records[0]))

	err = ix.Apply(ctx, records[2])
	require.True(t, errors.Is(err, ErrOutOfOrder))

	require.NoError(t, ix.Apply(ctx, records[1]))
	cursor, err := ix.Cursor(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), cursor)

	_, err = ix.CatchUp(ctx)
	require.Error(t, err, "catch-up needs a source")
}

func TestApplyRejectsUnknownJob(t *testing.T) {
	ix, err := New(setupDB(t), nil, quiet)
	require.NoError(t, err)
	err = ix.Apply(context.Background(), events.Record{
		Seq:   1,
		Time:  time.Now().Unix(),
		Event: &types.Event{Type: "JobFunded", Attributes: map[string]string{"jobId": "7", "amount": "1"}},
	})
	require.Error(t, err)
	cursor, err := ix.Cursor(context.Background())
	require.NoError(t, err)
	require.Zero(t, cursor, "failed projection leaves the cursor alone")
}

func TestRunFollowsLiveRecords(t *testing.T) {
	node := setupNode(t)
	ix, err := New(setupDB(t), node, quiet)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ix.Run(ctx) }()

	_, err = node.CreateJob(context.Background(), client, freelancer, uint256.NewInt(40))
	require.NoError(t, err)
	_, err = node.FundJob(context.Background(), client, 1, uint256.NewInt(40))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		jobs, err := ix.Jobs(context.Background(), JobFilter{Status: "Funded"})
		return err == nil && len(jobs) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.Error(t, err)
}
