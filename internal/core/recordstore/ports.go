package recordstore

import (
	"context"
	"encoding/json"
	"fmt"

	"fulfillment-pipeline/internal/core/logger"

	"go.uber.org/zap"
)

// Named logs kept in the record store. Each is an append-only history;
// only the two pending_* working sets are ever rewritten.
const (
	LogPendingAcceptance = "pending_acceptance"
	LogAcceptedOrders    = "accepted_orders"
	LogAcceptanceJournal = "acceptance_journal"
	LogFailedAcceptances = "failed_acceptances"
	LogPendingShipping   = "pending_shipping"
	LogShippingLabels    = "shipping_labels"
	LogShippingHistory   = "shipping_history"
	LogTrackingPushes    = "tracking_pushes"
	LogShippedOrders     = "shipped_orders"
)

// Store is the durable record store port. Implementations keep named logs
// of JSON records in insertion order.
//
// Read semantics are availability-over-strictness: a missing or corrupted
// log reads as empty (with a warning) so one damaged history cannot halt
// the pipeline. Write failures always propagate - no silent data loss.
// This is a Secondary Port (Driven Port).
type Store interface {
	// Append marshals the record and adds it to the named log, creating
	// the log if absent.
	Append(ctx context.Context, log string, record any) error

	// ReadAll returns every record ever appended to the log, in
	// insertion order. Missing or corrupt logs yield an empty slice.
	ReadAll(ctx context.Context, log string) ([]json.RawMessage, error)

	// Replace rewrites a working-set log with the given records. Only
	// the pending_* logs use this; history logs are append-only.
	Replace(ctx context.Context, log string, records []json.RawMessage) error

	// Close releases any underlying resources.
	Close() error
}

// ReadAllAs reads a log and unmarshals each record into T. Records that no
// longer parse as T are skipped with a warning, consistent with the
// corrupt-as-empty read policy.
func ReadAllAs[T any](ctx context.Context, s Store, log string) ([]T, error) {
	raws, err := s.ReadAll(ctx, log)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			logger.Get().Warn("Skipping unreadable record",
				zap.String("log", log),
				zap.Error(err),
			)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// IDsWhere returns the set of order identifiers extracted by pred from
// records in the log. pred returns the identifier and whether the record
// satisfies the membership predicate.
func IDsWhere[T any](ctx context.Context, s Store, log string, pred func(T) (string, bool)) (map[string]bool, error) {
	records, err := ReadAllAs[T](ctx, s, log)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool)
	for _, rec := range records {
		if id, ok := pred(rec); ok && id != "" {
			ids[id] = true
		}
	}
	return ids, nil
}

// ReplaceAs marshals each record and rewrites the working-set log.
func ReplaceAs[T any](ctx context.Context, s Store, log string, records []T) error {
	raws := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record for log %s: %w", log, err)
		}
		raws = append(raws, raw)
	}
	return s.Replace(ctx, log, raws)
}
