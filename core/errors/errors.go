package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kinds surfaced to collaborators. Every transition failure unwraps to exactly
// one of these.
var (
	ErrNotFound            = stderrors.New("not found")
	ErrWrongState          = stderrors.New("wrong state")
	ErrUnauthorized        = stderrors.New("unauthorized")
	ErrInvalidAmount       = stderrors.New("invalid amount")
	ErrInvalidParty        = stderrors.New("invalid party")
	ErrAlreadyVoted        = stderrors.New("already voted")
	ErrAlreadyResolved     = stderrors.New("already resolved")
	ErrInsufficientBalance = stderrors.New("insufficient balance")
	ErrInvalidVote         = stderrors.New("invalid vote")
	ErrInvalidReason       = stderrors.New("invalid reason")
)

// Refinements that wrap a kind.
var (
	ErrAmountMismatch   = fmt.Errorf("amount mismatch: %w", ErrInvalidAmount)
	ErrInvalidRecipient = fmt.Errorf("invalid recipient: %w", ErrInvalidParty)
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrNotFound, "NotFound"},
	{ErrWrongState, "WrongState"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInvalidParty, "InvalidParty"},
	{ErrAlreadyVoted, "AlreadyVoted"},
	{ErrAlreadyResolved, "AlreadyResolved"},
	{ErrInsufficientBalance, "InsufficientBalance"},
	{ErrInvalidVote, "InvalidVote"},
	{ErrInvalidReason, "InvalidReason"},
}

// Error is the failure returned by engine transitions. It names the kind, the
// operation and the entity it concerns so a collaborator can explain it.
type Error struct {
	Kind   error
	Op     string
	Entity string
	ID     uint64
	Detail string
}

// New constructs an Error for the given kind. Entity and ID may be empty.
func New(kind error, op, entity string, id uint64, detail string) *Error {
	return &Error{Kind: kind, Op: op, Entity: entity, ID: id, Detail: detail}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Entity != "" {
		b.WriteString(e.Entity)
		if e.ID != 0 {
			fmt.Fprintf(&b, " %d", e.ID)
		}
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

// KindName returns the taxonomy name of err ("NotFound", "WrongState", ...) or
// "Internal" when err carries no kind.
func KindName(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// IsKind reports whether err belongs to the taxonomy.
func IsKind(err error) bool {
	return err != nil && KindName(err) != "Internal"
}
