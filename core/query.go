package core

import (
	"github.com/holiman/uint256"

	"gigchain/core/types"
	"gigchain/native/dispute"
	"gigchain/native/escrow"
)

const maxPageSize = 500

// clampPage returns the inclusive ID range for a page. ok is false when the
// page starts past the last ID.
func clampPage(total, offset uint64, limit int) (first, last uint64, ok bool) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	if offset >= total {
		return 0, 0, false
	}
	first = offset + 1
	last = total
	if remaining := total - offset; remaining > uint64(limit) {
		last = offset + uint64(limit)
	}
	return first, last, true
}

// Job returns a copy of the job.
func (n *Node) Job(id uint64) (*escrow.Job, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.escrow.Job(id)
}

// Jobs lists jobs in ID order starting after offset.
func (n *Node) Jobs(offset uint64, limit int) ([]*escrow.Job, uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	total, err := n.escrow.JobCount()
	if err != nil {
		return nil, 0, err
	}
	out := make([]*escrow.Job, 0)
	first, last, ok := clampPage(total, offset, limit)
	if !ok {
		return out, total, nil
	}
	for id := first; id <= last; id++ {
		job, err := n.escrow.Job(id)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, job)
	}
	return out, total, nil
}

// Held returns the value escrowed for the job.
func (n *Node) Held(id uint64) (*uint256.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.escrow.HeldBalance(id)
}

func (n *Node) Dispute(id uint64) (*dispute.Dispute, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dispute.Dispute(id)
}

// Disputes lists disputes in ID order starting after offset.
func (n *Node) Disputes(offset uint64, limit int) ([]*dispute.Dispute, uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	total, err := n.dispute.DisputeCount()
	if err != nil {
		return nil, 0, err
	}
	out := make([]*dispute.Dispute, 0)
	first, last, ok := clampPage(total, offset, limit)
	if !ok {
		return out, total, nil
	}
	for id := first; id <= last; id++ {
		d, err := n.dispute.Dispute(id)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, nil
}

// Balance returns the settlement-currency balance of addr.
func (n *Node) Balance(addr types.Address) (*uint256.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bank.Balance(addr)
}

// Reputation returns the reputation balance of addr.
func (n *Node) Reputation(addr types.Address) (*uint256.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reputation.BalanceOf(addr)
}

func (n *Node) ReputationSupply() (*uint256.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reputation.TotalSupply()
}

func (n *Node) IsJuror(addr types.Address) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dispute.IsJuror(addr)
}

func (n *Node) Jurors() ([]types.Address, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dispute.Jurors()
}
