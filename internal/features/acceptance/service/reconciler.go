package service

import (
	"context"
	"time"

	"fulfillment-pipeline/internal/core/clock"
	"fulfillment-pipeline/internal/core/credentials"
	"fulfillment-pipeline/internal/core/logger"
	"fulfillment-pipeline/internal/core/recordstore"
	"fulfillment-pipeline/internal/features/acceptance/domain"
	orderdomain "fulfillment-pipeline/internal/features/orders/domain"
	orderports "fulfillment-pipeline/internal/features/orders/ports"

	"go.uber.org/zap"
)

// Reconciler converges the set of marketplace orders in WAITING_ACCEPTANCE
// to a locally recorded accepted state. One Reconcile call is one pass of
// the set-difference check against remote truth; the orchestrator drives
// repeated passes up to its retry bound.
type Reconciler struct {
	store  recordstore.Store
	market orderports.MarketplaceAPI
	creds  credentials.Provider
	clk    clock.Clock
	// settle is the grace window between issuing accept calls and the
	// next validation pass, giving the marketplace time to apply them.
	settle time.Duration
}

// NewReconciler creates a new acceptance Reconciler.
func NewReconciler(store recordstore.Store, market orderports.MarketplaceAPI, creds credentials.Provider, clk clock.Clock, settle time.Duration) *Reconciler {
	return &Reconciler{
		store:  store,
		market: market,
		creds:  creds,
		clk:    clk,
		settle: settle,
	}
}

// Reconcile runs one acceptance pass:
//
//	R = remote orders still WAITING_ACCEPTANCE
//	A = orders with a local accepted record
//	R ∩ A non-empty -> VALIDATION_FAILED (accept did not take effect)
//	R \ A non-empty -> issue accepts, NEW_ORDERS_FOUND
//	R empty         -> SUCCESS, otherwise INCOMPLETE
//
// Every accept attempt is journaled with the raw API response. A missing
// marketplace credential aborts the pass cleanly before any remote call.
func (r *Reconciler) Reconcile(ctx context.Context) (domain.Outcome, error) {
	if _, err := credentials.Require(r.creds, credentials.MarketplaceAPIKey); err != nil {
		return "", err
	}

	remote, err := r.market.ListOrders(ctx, orderdomain.StateWaitingAcceptance)
	if err != nil {
		return "", err
	}
	logger.Get().Info("Retrieved pending-acceptance orders",
		zap.Int("count", len(remote)),
	)

	if err := r.updatePendingWorkingSet(ctx, remote); err != nil {
		return "", err
	}

	accepted, err := recordstore.IDsWhere(ctx, r.store, recordstore.LogAcceptedOrders,
		func(rec domain.AcceptanceRecord) (string, bool) {
			return rec.OrderID, true
		})
	if err != nil {
		return "", err
	}

	// Orders the marketplace still reports pending despite a local
	// success record. A hard conflict: retrying the accept would not
	// change remote state, so stop and leave a trail for an operator.
	var conflicts []string
	for _, order := range remote {
		if accepted[order.ID] {
			conflicts = append(conflicts, order.ID)
		}
	}
	if len(conflicts) > 0 {
		now := r.clk.Now()
		for _, id := range conflicts {
			rec := domain.FailedAcceptance{OrderID: id, FailureTimestamp: now}
			if err := r.store.Append(ctx, recordstore.LogFailedAcceptances, rec); err != nil {
				return "", err
			}
		}
		logger.Get().Error("Orders failed acceptance validation",
			zap.Strings("order_ids", conflicts),
		)
		return domain.OutcomeValidationFailed, nil
	}

	var fresh []orderdomain.Order
	for _, order := range remote {
		if !accepted[order.ID] {
			fresh = append(fresh, order)
		}
	}
	if len(fresh) > 0 {
		if err := r.acceptOrders(ctx, fresh); err != nil {
			return "", err
		}
		if err := r.clk.Sleep(ctx, r.settle); err != nil {
			return "", err
		}
		return domain.OutcomeNewOrdersFound, nil
	}

	if len(remote) == 0 {
		return domain.OutcomeSuccess, nil
	}
	return domain.OutcomeIncomplete, nil
}

// updatePendingWorkingSet merges newly seen orders into the pending log,
// de-duplicated by order ID.
func (r *Reconciler) updatePendingWorkingSet(ctx context.Context, remote []orderdomain.Order) error {
	existing, err := recordstore.ReadAllAs[orderdomain.Order](ctx, r.store, recordstore.LogPendingAcceptance)
	if err != nil {
		return err
	}

	merged, added := orderdomain.MergeByID(existing, remote)
	if added == 0 {
		return nil
	}

	logger.Get().Info("Added new orders to pending-acceptance working set",
		zap.Int("added", added),
	)
	return recordstore.ReplaceAs(ctx, r.store, recordstore.LogPendingAcceptance, merged)
}

// acceptOrders issues accept calls for each order, journaling every attempt.
// A failed accept call is recorded and logged but does not abort the batch.
func (r *Reconciler) acceptOrders(ctx context.Context, orders []orderdomain.Order) error {
	for _, order := range orders {
		resp, acceptErr := r.market.Accept(ctx, order.ID, order.AcceptAllLines())
		now := r.clk.Now()

		entry := domain.JournalEntry{
			OrderID:     order.ID,
			Timestamp:   now,
			Success:     acceptErr == nil,
			APIResponse: resp,
		}
		if err := r.store.Append(ctx, recordstore.LogAcceptanceJournal, entry); err != nil {
			return err
		}

		if acceptErr != nil {
			logger.Get().Error("Accept call failed",
				zap.String("order_id", order.ID),
				zap.Error(acceptErr),
			)
			continue
		}

		rec := domain.AcceptanceRecord{OrderID: order.ID, Timestamp: now}
		if err := r.store.Append(ctx, recordstore.LogAcceptedOrders, rec); err != nil {
			return err
		}
		logger.Get().Info("Order accepted", zap.String("order_id", order.ID))
	}
	return nil
}
