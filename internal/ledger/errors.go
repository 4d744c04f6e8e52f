package ledger

import (
	"fmt"
	"strings"
)

// Revert reasons emitted by the game contract.
const (
	RevertZeroStake   = "stake == 0"
	RevertNotYourGame = "not-your-game"
	RevertInsolvent   = "contract-insolvent"
)

// ValidationError means a local precondition failed; the request never
// reached the ledger.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// TransportError means submission or confirmation failed at the transport
// level. Broadcast tells callers whether the transaction may already be on
// the wire: retrying a broadcast value transfer risks a duplicate stake.
type TransportError struct {
	Op        string
	Broadcast bool
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ledger transport failed during %s (broadcast=%t): %v", e.Op, e.Broadcast, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AuthorizationError means the ledger rejected the request because the
// caller does not own the session. Reason carries the ledger's rejection
// verbatim.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("ledger rejected request: %s", e.Reason)
}

// InsolvencyError means the ledger's reserve cannot cover the requested
// payout. Recoverable: the session is still live and the player can retry
// later or with a smaller game.
type InsolvencyError struct {
	Reason string
}

func (e *InsolvencyError) Error() string {
	return fmt.Sprintf("ledger reserve cannot cover payout: %s", e.Reason)
}

// ProtocolMismatchError means a confirmation succeeded but the expected
// structured event was absent from the receipt. The client and the deployed
// contract disagree on shape; this must never be silently swallowed.
type ProtocolMismatchError struct {
	Event  string
	TxHash string
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("receipt %s confirmed but expected %s event is missing (contract version skew?)", e.TxHash, e.Event)
}

// classifyRejection maps a ledger rejection reason onto the error taxonomy.
// Unknown reasons pass through as plain errors.
func classifyRejection(reason string) error {
	switch {
	case strings.Contains(reason, RevertNotYourGame):
		return &AuthorizationError{Reason: reason}
	case strings.Contains(reason, RevertInsolvent):
		return &InsolvencyError{Reason: reason}
	case strings.Contains(reason, RevertZeroStake):
		return &ValidationError{Reason: reason}
	default:
		return fmt.Errorf("ledger rejected request: %s", reason)
	}
}
