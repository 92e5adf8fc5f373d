package escrow

import (
	"strconv"

	"gigchain/core/types"
)

const (
	EventTypeJobCreated        = "JobCreated"
	EventTypeJobFunded         = "JobFunded"
	EventTypeDeliverySubmitted = "DeliverySubmitted"
	EventTypeDeliveryConfirmed = "DeliveryConfirmed"
	EventTypeJobDisputed       = "JobDisputed"
	EventTypeRefunded          = "Refunded"
	EventTypeReleased          = "Released"
)

func jobID(j *Job) string {
	if j == nil {
		return "0"
	}
	return strconv.FormatUint(j.ID, 10)
}

// NewJobCreatedEvent returns the canonical event payload for a newly created
// job.
func NewJobCreatedEvent(j *Job) *types.Event {
	return &types.Event{Type: EventTypeJobCreated, Attributes: map[string]string{
		"jobId":      jobID(j),
		"client":     j.Client.Hex(),
		"freelancer": j.Freelancer.Hex(),
		"amount":     types.FormatAmount(j.Amount),
	}}
}

// NewJobFundedEvent returns the payload emitted once the client deposits the
// job amount.
func NewJobFundedEvent(j *Job) *types.Event {
	return &types.Event{Type: EventTypeJobFunded, Attributes: map[string]string{
		"jobId":  jobID(j),
		"amount": types.FormatAmount(j.Amount),
	}}
}

// NewDeliverySubmittedEvent carries the content reference verbatim.
func NewDeliverySubmittedEvent(j *Job) *types.Event {
	return &types.Event{Type: EventTypeDeliverySubmitted, Attributes: map[string]string{
		"jobId":      jobID(j),
		"contentRef": j.DeliveryReference,
	}}
}

// NewDeliveryConfirmedEvent reports the payout and the reputation minted as
// part of the confirmation.
func NewDeliveryConfirmedEvent(j *Job) *types.Event {
	minted := "0"
	if j.ReputationMinted {
		minted = types.FormatAmount(j.ReputationReward)
	}
	return &types.Event{Type: EventTypeDeliveryConfirmed, Attributes: map[string]string{
		"jobId":            jobID(j),
		"freelancer":       j.Freelancer.Hex(),
		"amount":           types.FormatAmount(j.Amount),
		"reputationMinted": minted,
	}}
}

// NewJobDisputedEvent reports who opened the dispute and how much reputation
// was burned.
func NewJobDisputedEvent(j *Job, by types.Address, burned string) *types.Event {
	return &types.Event{Type: EventTypeJobDisputed, Attributes: map[string]string{
		"jobId":            jobID(j),
		"by":               by.Hex(),
		"reputationBurned": burned,
	}}
}

// NewRefundedEvent reports the held amount returned to the client.
func NewRefundedEvent(j *Job) *types.Event {
	return &types.Event{Type: EventTypeRefunded, Attributes: map[string]string{
		"jobId":  jobID(j),
		"to":     j.Client.Hex(),
		"amount": types.FormatAmount(j.Amount),
	}}
}

// NewReleasedEvent reports the held amount paid to the freelancer.
func NewReleasedEvent(j *Job) *types.Event {
	return &types.Event{Type: EventTypeReleased, Attributes: map[string]string{
		"jobId":  jobID(j),
		"to":     j.Freelancer.Hex(),
		"amount": types.FormatAmount(j.Amount),
	}}
}
