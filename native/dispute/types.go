package dispute

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"gigchain/core/types"
)

// Side enumerates the ballot options a juror can pick. The numeric values are
// part of the public interface.
type Side uint8

const (
	// SideUnspecified marks an unset or invalid ballot and is never
	// persisted.
	SideUnspecified Side = iota
	// SideClient favours the client; the held amount is refunded.
	SideClient
	// SideFreelancer favours the freelancer; the held amount is released.
	SideFreelancer
)

// Valid reports whether the side represents a supported selection.
func (s Side) Valid() bool {
	return s == SideClient || s == SideFreelancer
}

// String returns the lowercase name of the side.
func (s Side) String() string {
	switch s {
	case SideClient:
		return "client"
	case SideFreelancer:
		return "freelancer"
	default:
		return "unspecified"
	}
}

// ParseSide accepts either the numeric form ("1", "2") or the side name.
// Anything else maps to SideUnspecified, which the engine rejects.
func ParseSide(raw string) Side {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch normalized {
	case "1", SideClient.String():
		return SideClient
	case "2", SideFreelancer.String():
		return SideFreelancer
	}
	if n, err := strconv.ParseUint(normalized, 10, 8); err == nil {
		return Side(n)
	}
	return SideUnspecified
}

// FeePolicy selects how the fee pool of a resolved dispute is disposed of.
type FeePolicy string

const (
	// FeePolicyJurorSplit shares the pool among jurors that voted for the
	// winning side. Without winning voters the pool goes back to the creator.
	FeePolicyJurorSplit FeePolicy = "juror-split"
	// FeePolicyRefund returns the whole pool to the creator.
	FeePolicyRefund FeePolicy = "refund"
)

// Valid reports whether the fee policy is known.
func (p FeePolicy) Valid() bool {
	return p == FeePolicyJurorSplit || p == FeePolicyRefund
}

// Policy bundles the tunable parameters of the DAO.
type Policy struct {
	// MinFee is the dispute fee constant; createDispute rejects smaller fees.
	MinFee          *uint256.Int
	MaxReasonLength int
	FeePolicy       FeePolicy
}

// DefaultPolicy returns the parameters used when the deployment does not set
// its own.
func DefaultPolicy() Policy {
	return Policy{
		MinFee:          uint256.NewInt(5),
		MaxReasonLength: 1024,
		FeePolicy:       FeePolicyJurorSplit,
	}
}

// Validate checks the policy for internal consistency.
func (p Policy) Validate() error {
	if p.MinFee == nil {
		return fmt.Errorf("dispute: minimum fee required")
	}
	if p.MaxReasonLength <= 0 {
		return fmt.Errorf("dispute: max reason length must be positive")
	}
	if !p.FeePolicy.Valid() {
		return fmt.Errorf("dispute: unknown fee policy %q", p.FeePolicy)
	}
	return nil
}

// Vote is a counted ballot. Votes are kept in the order they were cast.
type Vote struct {
	Juror types.Address
	Side  Side
}

// Dispute captures a disagreement between a client and a freelancer and the
// juror ballots cast on it.
type Dispute struct {
	ID uint64
	// JobID links the dispute to an escrow job; zero for standalone disputes.
	JobID           uint64
	Creator         types.Address
	Client          types.Address
	Freelancer      types.Address
	Reason          string
	Fee             *uint256.Int
	VotesClient     uint64
	VotesFreelancer uint64
	Votes           []Vote
	Resolved        bool
	Winner          Side
	CreatedAt       int64
	ResolvedAt      int64
}

// Voted reports whether the juror already has a counted ballot.
func (d *Dispute) Voted(juror types.Address) bool {
	if d == nil {
		return false
	}
	for _, v := range d.Votes {
		if v.Juror == juror {
			return true
		}
	}
	return false
}

// WinnerAddress returns the identity of the winning party, or the null
// identity while the dispute is open.
func (d *Dispute) WinnerAddress() types.Address {
	if d == nil {
		return types.ZeroAddress
	}
	switch d.Winner {
	case SideClient:
		return d.Client
	case SideFreelancer:
		return d.Freelancer
	}
	return types.ZeroAddress
}

// Clone returns a deep copy of the dispute.
func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Fee = types.CloneAmount(d.Fee)
	clone.Votes = append([]Vote(nil), d.Votes...)
	return &clone
}

type storedVote struct {
	Juror [20]byte
	Side  uint8
}

type storedDispute struct {
	ID              uint64
	JobID           uint64
	Creator         [20]byte
	Client          [20]byte
	Freelancer      [20]byte
	Reason          string
	Fee             *big.Int
	VotesClient     uint64
	VotesFreelancer uint64
	Votes           []storedVote
	Resolved        bool
	Winner          uint8
	CreatedAt       uint64
	ResolvedAt      uint64
}

func newStoredDispute(d *Dispute) *storedDispute {
	votes := make([]storedVote, len(d.Votes))
	for i, v := range d.Votes {
		votes[i] = storedVote{Juror: v.Juror, Side: uint8(v.Side)}
	}
	return &storedDispute{
		ID:              d.ID,
		JobID:           d.JobID,
		Creator:         d.Creator,
		Client:          d.Client,
		Freelancer:      d.Freelancer,
		Reason:          d.Reason,
		Fee:             types.AmountToBig(d.Fee),
		VotesClient:     d.VotesClient,
		VotesFreelancer: d.VotesFreelancer,
		Votes:           votes,
		Resolved:        d.Resolved,
		Winner:          uint8(d.Winner),
		CreatedAt:       uint64(d.CreatedAt),
		ResolvedAt:      uint64(d.ResolvedAt),
	}
}

func (s *storedDispute) toDispute() (*Dispute, error) {
	fee, err := types.AmountFromBig(s.Fee)
	if err != nil {
		return nil, fmt.Errorf("dispute: %d fee: %w", s.ID, err)
	}
	votes := make([]Vote, len(s.Votes))
	for i, v := range s.Votes {
		votes[i] = Vote{Juror: v.Juror, Side: Side(v.Side)}
	}
	return &Dispute{
		ID:              s.ID,
		JobID:           s.JobID,
		Creator:         s.Creator,
		Client:          s.Client,
		Freelancer:      s.Freelancer,
		Reason:          s.Reason,
		Fee:             fee,
		VotesClient:     s.VotesClient,
		VotesFreelancer: s.VotesFreelancer,
		Votes:           votes,
		Resolved:        s.Resolved,
		Winner:          Side(s.Winner),
		CreatedAt:       int64(s.CreatedAt),
		ResolvedAt:      int64(s.ResolvedAt),
	}, nil
}
