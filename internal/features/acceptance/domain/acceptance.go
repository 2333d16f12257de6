package domain

import (
	"encoding/json"
	"time"
)

// Outcome is the result of one acceptance reconcile pass.
type Outcome string

const (
	// OutcomeSuccess means the marketplace reports no pending orders.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomeIncomplete means pending orders remain that this pass did
	// not resolve.
	OutcomeIncomplete Outcome = "INCOMPLETE"
	// OutcomeNewOrdersFound means accept calls were issued for orders
	// with no local success record; the caller should run another pass.
	OutcomeNewOrdersFound Outcome = "NEW_ORDERS_FOUND"
	// OutcomeValidationFailed means the marketplace still reports
	// orders pending even though a local record says they were
	// accepted. Requires operator attention; never auto-retried.
	OutcomeValidationFailed Outcome = "VALIDATION_FAILED"
)

// Retryable reports whether the orchestrator should run another pass.
func (o Outcome) Retryable() bool {
	return o == OutcomeNewOrdersFound
}

// AcceptanceRecord marks one order as successfully accepted. Membership in
// the accepted set is monotonic: records are appended, never removed.
type AcceptanceRecord struct {
	// OrderID is the accepted order.
	OrderID string `json:"order_id"`
	// Timestamp is when the accept call succeeded.
	Timestamp time.Time `json:"timestamp"`
}

// JournalEntry is the audit record of one accept attempt, success or not.
type JournalEntry struct {
	// OrderID is the order the accept call targeted.
	OrderID string `json:"order_id"`
	// Timestamp is when the attempt was made.
	Timestamp time.Time `json:"timestamp"`
	// Success is true when the marketplace confirmed the accept.
	Success bool `json:"success"`
	// APIResponse is the raw marketplace response payload.
	APIResponse json.RawMessage `json:"api_response,omitempty"`
}

// FailedAcceptance records a reconciliation conflict: the marketplace
// still reported the order pending after a local success record existed.
type FailedAcceptance struct {
	// OrderID is the conflicting order.
	OrderID string `json:"order_id"`
	// FailureTimestamp is when the conflict was detected.
	FailureTimestamp time.Time `json:"failure_timestamp"`
}
