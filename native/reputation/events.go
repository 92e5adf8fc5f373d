package reputation

import (
	"gigchain/core/types"
)

const (
	// EventTypeMinted is emitted when reputation is issued to an identity.
	EventTypeMinted = "Minted"
	// EventTypeBurned is emitted when reputation is revoked from an identity.
	EventTypeBurned = "Burned"
	// EventTypeTransferred is emitted when a holder moves reputation. Only
	// deployments that enable transferability ever produce it.
	EventTypeTransferred = "Transferred"
)

// NewMintedEvent returns the canonical event payload for a mint.
func NewMintedEvent(to types.Address, amount string) *types.Event {
	return &types.Event{Type: EventTypeMinted, Attributes: map[string]string{
		"to":     to.Hex(),
		"amount": amount,
	}}
}

// NewBurnedEvent returns the canonical event payload for a burn.
func NewBurnedEvent(from types.Address, amount string) *types.Event {
	return &types.Event{Type: EventTypeBurned, Attributes: map[string]string{
		"from":   from.Hex(),
		"amount": amount,
	}}
}

// NewTransferredEvent returns the canonical event payload for a transfer.
func NewTransferredEvent(from, to types.Address, amount string) *types.Event {
	return &types.Event{Type: EventTypeTransferred, Attributes: map[string]string{
		"from":   from.Hex(),
		"to":     to.Hex(),
		"amount": amount,
	}}
}
