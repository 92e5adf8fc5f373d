package core

import (
	"context"

	"github.com/holiman/uint256"

	"gigchain/core/types"
	"gigchain/native/dispute"
)

// CreateJob opens a job with the caller as client.
func (n *Node) CreateJob(ctx context.Context, caller, freelancer types.Address, amount *uint256.Int) (*Receipt, error) {
	return n.apply(ctx, ModuleEscrow, "createJob", func() (uint64, error) {
		job, err := n.escrow.CreateJob(caller, freelancer, amount)
		if err != nil {
			return 0, err
		}
		return job.ID, nil
	})
}

func (n *Node) FundJob(ctx context.Context, caller types.Address, id uint64, paid *uint256.Int) (*Receipt, error) {
	return n.apply(ctx, ModuleEscrow, "fundJob", func() (uint64, error) {
		return id, n.escrow.FundJob(caller, id, paid)
	})
}

func (n *Node) SubmitDelivery(ctx context.Context, caller types.Address, id uint64, contentRef string) (*Receipt, error) {
	return n.apply(ctx, ModuleEscrow, "submitDelivery", func() (uint64, error) {
		return id, n.escrow.SubmitDelivery(caller, id, contentRef)
	})
}

func (n *Node) ConfirmDelivery(ctx context.Context, caller types.Address, id uint64) (*Receipt, error) {
	return n.apply(ctx, ModuleEscrow, "confirmDelivery", func() (uint64, error) {
		return id, n.escrow.ConfirmDelivery(caller, id)
	})
}

// DisputeJob flags a delivered job as disputed. Only the client or the
// freelancer may call it.
func (n *Node) DisputeJob(ctx context.Context, caller types.Address, id uint64) (*Receipt, error) {
	return n.apply(ctx, ModuleEscrow, "dispute", func() (uint64, error) {
		return id, n.escrow.Dispute(caller, id)
	})
}

// Refund returns a disputed job's value to the client. Resolver only.
func (n *Node) Refund(ctx context.Context, caller types.Address, id uint64) (*Receipt, error) {
	return n.apply(ctx, ModuleEscrow, "refund", func() (uint64, error) {
		return id, n.escrow.Refund(caller, id)
	})
}

// Release pays a disputed job's value to the freelancer. Resolver only.
func (n *Node) Release(ctx context.Context, caller types.Address, id uint64) (*Receipt, error) {
	return n.apply(ctx, ModuleEscrow, "release", func() (uint64, error) {
		return id, n.escrow.Release(caller, id)
	})
}

func (n *Node) ReputationTransfer(ctx context.Context, caller, to types.Address, amount *uint256.Int) (*Receipt, error) {
	return n.apply(ctx, ModuleReputation, "transfer", func() (uint64, error) {
		return 0, n.reputation.Transfer(caller, to, amount)
	})
}

func (n *Node) ReputationMint(ctx context.Context, caller, to types.Address, amount *uint256.Int) (*Receipt, error) {
	return n.apply(ctx, ModuleReputation, "mint", func() (uint64, error) {
		return 0, n.reputation.Mint(caller, to, amount)
	})
}

func (n *Node) ReputationBurn(ctx context.Context, caller, from types.Address, amount *uint256.Int) (*Receipt, error) {
	return n.apply(ctx, ModuleReputation, "burn", func() (uint64, error) {
		return 0, n.reputation.Burn(caller, from, amount)
	})
}

// RegisterAsJuror adds the caller to the juror registry. Registering twice
// succeeds and is reported on the event.
func (n *Node) RegisterAsJuror(ctx context.Context, caller types.Address) (*Receipt, error) {
	return n.apply(ctx, ModuleDispute, "registerAsJuror", func() (uint64, error) {
		_, err := n.dispute.RegisterAsJuror(caller)
		return 0, err
	})
}

// CreateDispute opens a dispute against counterparty. jobID zero creates a
// standalone dispute.
func (n *Node) CreateDispute(ctx context.Context, caller, counterparty types.Address, reason string, fee *uint256.Int, jobID uint64) (*Receipt, error) {
	return n.apply(ctx, ModuleDispute, "createDispute", func() (uint64, error) {
		d, err := n.dispute.CreateDispute(caller, counterparty, reason, fee, jobID)
		if err != nil {
			return 0, err
		}
		return d.ID, nil
	})
}

func (n *Node) VoteOnDispute(ctx context.Context, caller types.Address, id uint64, side dispute.Side) (*Receipt, error) {
	return n.apply(ctx, ModuleDispute, "voteOnDispute", func() (uint64, error) {
		return id, n.dispute.VoteOnDispute(caller, id, side)
	})
}

func (n *Node) ResolveDispute(ctx context.Context, caller types.Address, id uint64) (*Receipt, error) {
	return n.apply(ctx, ModuleDispute, "resolveDispute", func() (uint64, error) {
		_, err := n.dispute.ResolveDispute(caller, id)
		return id, err
	})
}
