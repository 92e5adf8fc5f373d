package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coreerrors "gigchain/core/errors"
	"gigchain/core/events"
	"gigchain/core/genesis"
	kvstate "gigchain/core/state"
	"gigchain/core/types"
	"gigchain/native/bank"
	"gigchain/native/common"
	"gigchain/native/dispute"
	"gigchain/native/escrow"
	"gigchain/native/reputation"
	"gigchain/observability"
	"gigchain/observability/metrics"
	telemetry "gigchain/observability/otel"
	"gigchain/storage"
)

// Module names used for pausing, metrics and spans.
const (
	ModuleEscrow     = escrow.ModuleName
	ModuleDispute    = dispute.ModuleName
	ModuleReputation = "reputation"
)

// Settings carries the protocol parameters the node applies to its engines.
type Settings struct {
	// ReputationReward minted on confirmation. Nil keeps the engine default,
	// zero disables minting.
	ReputationReward       *uint256.Int
	ReputationTransferable bool
	DisputePolicy          dispute.Policy
	Arbiters               []types.Address
	Paused                 []string
	EventBuffer            int
	Logger                 *slog.Logger
	Now                    func() time.Time
}

// DefaultSettings mirrors the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		ReputationReward: types.CloneAmount(escrow.DefaultReputationReward),
		DisputePolicy:    dispute.DefaultPolicy(),
	}
}

// Receipt is returned for every committed transition.
type Receipt struct {
	Seq   uint64       `json:"seq"`
	ID    uint64       `json:"id,omitempty"`
	Event *types.Event `json:"event"`
}

// Node is the central controller, wiring all components together. Every
// transition runs under a single mutex against one staged state overlay that
// is committed as a single batch or discarded.
type Node struct {
	db     storage.Database
	state  *kvstate.Manager
	mu     sync.Mutex
	buffer *eventBuffer
	bus    *events.Bus
	pauses common.PauseSet
	logger *slog.Logger
	tracer trace.Tracer
	nowFn  func() time.Time

	bank       *bank.Ledger
	reputation *reputation.Engine
	escrow     *escrow.Engine
	dispute    *dispute.Engine

	openDisputes uint64
}

// NewNode opens the node over db. When the store has never been initialised
// the genesis document is applied first; spec may be nil for an empty genesis.
func NewNode(db storage.Database, settings Settings, spec *genesis.GenesisSpec) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	logger := settings.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := settings.Now
	if now == nil {
		now = time.Now
	}
	n := &Node{
		db:     db,
		state:  kvstate.NewManager(db),
		buffer: &eventBuffer{},
		bus:    events.NewBus(settings.EventBuffer),
		pauses: common.NewPauseSet(settings.Paused...),
		logger: logger,
		tracer: telemetry.Tracer(),
		nowFn:  now,
	}
	n.bus.OnDrop(observability.Events().RecordDropped)

	n.bank = bank.NewLedger(n.state)

	n.reputation = reputation.NewEngine()
	n.reputation.SetState(n.state)
	n.reputation.SetEmitter(n.buffer)
	n.reputation.SetTransferable(settings.ReputationTransferable)

	n.escrow = escrow.NewEngine()
	n.escrow.SetState(n.state)
	n.escrow.SetBank(n.bank)
	n.escrow.SetEmitter(n.buffer)
	n.escrow.SetReputation(n.reputation.Authority(bank.ModuleAddress(escrow.ModuleName)))
	n.escrow.SetNowFunc(func() int64 { return n.nowFn().Unix() })
	if settings.ReputationReward != nil {
		n.escrow.SetReputationReward(settings.ReputationReward)
	}

	n.dispute = dispute.NewEngine()
	n.dispute.SetState(n.state)
	n.dispute.SetBank(n.bank)
	n.dispute.SetEscrow(n.escrow)
	n.dispute.SetEmitter(n.buffer)
	n.dispute.SetNowFunc(func() time.Time { return n.nowFn() })
	policy := settings.DisputePolicy
	if policy.MinFee == nil && policy.FeePolicy == "" {
		policy = dispute.DefaultPolicy()
	}
	if err := n.dispute.SetPolicy(policy); err != nil {
		return nil, err
	}

	resolvers := append([]types.Address{n.dispute.Address()}, settings.Arbiters...)
	n.escrow.SetResolvers(resolvers...)

	if err := n.initGenesis(spec); err != nil {
		return nil, err
	}
	if err := n.loadGauges(); err != nil {
		return nil, err
	}
	return n, nil
}

// eventBuffer collects the events emitted by engines during one transition.
type eventBuffer struct {
	events []*types.Event
}

func (b *eventBuffer) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	if provider, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := provider.Event(); payload != nil {
			b.events = append(b.events, payload)
		}
		return
	}
	b.events = append(b.events, &types.Event{Type: evt.EventType(), Attributes: map[string]string{}})
}

func (b *eventBuffer) drain() []*types.Event {
	out := b.events
	b.events = nil
	return out
}

var errEventCount = errors.New("transition must emit exactly one event")

// apply runs fn as one atomic transition. fn returns the ID of the entity it
// touched, or zero.
func (n *Node) apply(ctx context.Context, module, op string, fn func() (uint64, error)) (*Receipt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := n.nowFn()
	_, span := n.tracer.Start(ctx, module+"."+op,
		trace.WithAttributes(attribute.String("module", module), attribute.String("op", op)))
	defer span.End()

	n.mu.Lock()
	receipt, err := n.applyLocked(module, fn)
	n.mu.Unlock()

	duration := n.nowFn().Sub(start)
	if err != nil {
		kind := coreerrors.KindName(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		metrics.Escrow().ObserveTransition(module, op, kind, duration)
		n.logger.Warn("transition rejected",
			slog.String("module", module),
			slog.String("op", op),
			slog.String("kind", kind),
			slog.Any("error", err))
		return nil, err
	}
	span.SetAttributes(attribute.Int64("seq", int64(receipt.Seq)))
	span.SetStatus(codes.Ok, receipt.Event.Type)
	metrics.Escrow().ObserveTransition(module, op, "ok", duration)
	observability.Events().RecordCommitted(receipt.Event.Type)
	n.logger.Info("transition committed",
		slog.String("module", module),
		slog.String("op", op),
		slog.String("event", receipt.Event.Type),
		slog.Uint64("seq", receipt.Seq),
		slog.Uint64("id", receipt.ID),
		slog.Duration("duration", duration))
	return receipt, nil
}

func (n *Node) applyLocked(module string, fn func() (uint64, error)) (*Receipt, error) {
	n.buffer.drain()
	if err := common.Guard(n.pauses, module); err != nil {
		return nil, err
	}
	id, err := fn()
	emitted := n.buffer.drain()
	if err != nil {
		n.state.Discard()
		return nil, err
	}
	if len(emitted) != 1 {
		n.state.Discard()
		return nil, fmt.Errorf("core: %s: %w (got %d)", module, errEventCount, len(emitted))
	}
	evt := emitted[0]
	seq, err := n.appendEvent(evt)
	if err != nil {
		n.state.Discard()
		return nil, err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		return nil, fmt.Errorf("core: commit: %w", err)
	}
	n.afterCommit(evt)
	n.bus.Publish(events.Record{Seq: seq, Time: n.nowFn().Unix(), Event: evt})
	return &Receipt{Seq: seq, ID: id, Event: evt.Clone()}, nil
}

func (n *Node) afterCommit(evt *types.Event) {
	switch evt.Type {
	case dispute.EventTypeDisputeCreated:
		n.openDisputes++
	case dispute.EventTypeDisputeResolved:
		if n.openDisputes > 0 {
			n.openDisputes--
		}
	}
	metrics.Escrow().SetOpenDisputes(n.openDisputes)
	n.updateHeldGauge()
}

func (n *Node) updateHeldGauge() {
	held, err := n.bank.Balance(bank.ModuleAddress(escrow.ModuleName))
	if err != nil {
		return
	}
	metrics.Escrow().SetHeldValue(held.Float64())
}

func (n *Node) loadGauges() error {
	count, err := n.dispute.DisputeCount()
	if err != nil {
		return err
	}
	var open uint64
	for id := uint64(1); id <= count; id++ {
		d, err := n.dispute.Dispute(id)
		if err != nil {
			return err
		}
		if !d.Resolved {
			open++
		}
	}
	n.openDisputes = open
	metrics.Escrow().SetOpenDisputes(open)
	n.updateHeldGauge()
	return nil
}

// Subscribe attaches a live feed of committed event records.
func (n *Node) Subscribe() *events.Subscription {
	return n.bus.Subscribe()
}

// EscrowAddress returns the escrow vault identity.
func (n *Node) EscrowAddress() types.Address { return bank.ModuleAddress(escrow.ModuleName) }

// DAOAddress returns the dispute DAO identity.
func (n *Node) DAOAddress() types.Address { return n.dispute.Address() }

// DisputePolicy returns the active DAO parameters.
func (n *Node) DisputePolicy() dispute.Policy { return n.dispute.Policy() }

// Close releases the underlying database.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Discard()
	n.db.Close()
	return nil
}
