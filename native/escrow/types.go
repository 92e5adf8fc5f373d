package escrow

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"gigchain/core/types"
)

// JobStatus represents the lifecycle states of a job. Transitions only move
// forward.
type JobStatus uint8

const (
	StatusCreated JobStatus = iota
	StatusFunded
	StatusDelivered
	StatusConfirmed
	StatusDisputed
)

// String renders the status name used in events and RPC payloads.
func (s JobStatus) String() string {
	switch s {
	case StatusCreated:
		return "Created"
	case StatusFunded:
		return "Funded"
	case StatusDelivered:
		return "Delivered"
	case StatusConfirmed:
		return "Confirmed"
	case StatusDisputed:
		return "Disputed"
	default:
		return fmt.Sprintf("JobStatus(%d)", uint8(s))
	}
}

// Valid reports whether the status value is within the supported range.
func (s JobStatus) Valid() bool {
	return s <= StatusDisputed
}

// Job captures the parties, price and progress of a single engagement.
type Job struct {
	ID                uint64
	Client            types.Address
	Freelancer        types.Address
	Amount            *uint256.Int
	DeliveryReference string
	Status            JobStatus
	// ReputationMinted is set while the reward minted on confirmation is still
	// attributed to the freelancer.
	ReputationMinted bool
	ReputationReward *uint256.Int
	// Resolved is set once a dispute payout has been made.
	Resolved  bool
	DisputeID uint64
	CreatedAt int64
	UpdatedAt int64
}

// Clone returns a deep copy of the job so callers can safely mutate the copy
// without affecting the stored instance.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	clone := *j
	clone.Amount = types.CloneAmount(j.Amount)
	clone.ReputationReward = types.CloneAmount(j.ReputationReward)
	return &clone
}

// Terminal reports whether no further transition can apply to the job.
func (j *Job) Terminal() bool {
	if j == nil {
		return false
	}
	return j.Status == StatusConfirmed || (j.Status == StatusDisputed && j.Resolved)
}

type storedJob struct {
	ID                uint64
	Client            [20]byte
	Freelancer        [20]byte
	Amount            *big.Int
	DeliveryReference string
	Status            uint8
	ReputationMinted  bool
	ReputationReward  *big.Int
	Resolved          bool
	DisputeID         uint64
	CreatedAt         uint64
	UpdatedAt         uint64
}

func newStoredJob(j *Job) *storedJob {
	return &storedJob{
		ID:                j.ID,
		Client:            j.Client,
		Freelancer:        j.Freelancer,
		Amount:            types.AmountToBig(j.Amount),
		DeliveryReference: j.DeliveryReference,
		Status:            uint8(j.Status),
		ReputationMinted:  j.ReputationMinted,
		ReputationReward:  types.AmountToBig(j.ReputationReward),
		Resolved:          j.Resolved,
		DisputeID:         j.DisputeID,
		CreatedAt:         uint64(j.CreatedAt),
		UpdatedAt:         uint64(j.UpdatedAt),
	}
}

func (s *storedJob) toJob() (*Job, error) {
	amount, err := types.AmountFromBig(s.Amount)
	if err != nil {
		return nil, fmt.Errorf("escrow: job %d amount: %w", s.ID, err)
	}
	reward, err := types.AmountFromBig(s.ReputationReward)
	if err != nil {
		return nil, fmt.Errorf("escrow: job %d reward: %w", s.ID, err)
	}
	status := JobStatus(s.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("escrow: job %d has invalid status %d", s.ID, s.Status)
	}
	return &Job{
		ID:                s.ID,
		Client:            s.Client,
		Freelancer:        s.Freelancer,
		Amount:            amount,
		DeliveryReference: s.DeliveryReference,
		Status:            status,
		ReputationMinted:  s.ReputationMinted,
		ReputationReward:  reward,
		Resolved:          s.Resolved,
		DisputeID:         s.DisputeID,
		CreatedAt:         int64(s.CreatedAt),
		UpdatedAt:         int64(s.UpdatedAt),
	}, nil
}
