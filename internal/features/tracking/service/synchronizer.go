package service

import (
	"context"
	"time"

	"fulfillment-pipeline/internal/core/clock"
	"fulfillment-pipeline/internal/core/credentials"
	"fulfillment-pipeline/internal/core/logger"
	"fulfillment-pipeline/internal/core/recordstore"
	orderdomain "fulfillment-pipeline/internal/features/orders/domain"
	orderports "fulfillment-pipeline/internal/features/orders/ports"
	shippingdomain "fulfillment-pipeline/internal/features/shipping/domain"
	"fulfillment-pipeline/internal/features/tracking/domain"

	"go.uber.org/zap"
)

// Synchronizer reports carrier tracking IDs back to the marketplace and
// verifies the orders actually moved to a shipped state.
type Synchronizer struct {
	store  recordstore.Store
	market orderports.MarketplaceAPI
	creds  credentials.Provider
	clk    clock.Clock
	// carrierCode is the carrier identifier the marketplace expects on
	// tracking updates.
	carrierCode string
	// settle is the wait between pushing tracking numbers and checking
	// the resulting order states.
	settle time.Duration
}

// NewSynchronizer creates a new tracking Synchronizer.
func NewSynchronizer(store recordstore.Store, market orderports.MarketplaceAPI, creds credentials.Provider, clk clock.Clock, carrierCode string, settle time.Duration) *Synchronizer {
	return &Synchronizer{
		store:       store,
		market:      market,
		creds:       creds,
		clk:         clk,
		carrierCode: carrierCode,
		settle:      settle,
	}
}

// Run executes one tracking pass: push every unsynced tracking ID, give
// the marketplace time to apply the updates, then validate order states.
func (s *Synchronizer) Run(ctx context.Context) error {
	if err := s.PushTracking(ctx); err != nil {
		return err
	}
	if err := s.clk.Sleep(ctx, s.settle); err != nil {
		return err
	}
	return s.ValidateShipped(ctx)
}

// PushTracking walks the live labels and, for every order without a
// successful push on record, updates the marketplace tracking number,
// marks the order shipped and archives the final order snapshot. Each
// attempt is recorded; individual failures do not abort the batch.
func (s *Synchronizer) PushTracking(ctx context.Context) error {
	if _, err := credentials.Require(s.creds, credentials.MarketplaceAPIKey); err != nil {
		return err
	}

	labels, err := recordstore.ReadAllAs[shippingdomain.LabelRecord](ctx, s.store, recordstore.LogShippingLabels)
	if err != nil {
		return err
	}

	pushed, err := recordstore.IDsWhere(ctx, s.store, recordstore.LogTrackingPushes,
		func(rec domain.TrackingPush) (string, bool) {
			return rec.OrderID, rec.Success
		})
	if err != nil {
		return err
	}

	for _, orderID := range labelledOrderIDs(labels) {
		if pushed[orderID] {
			continue
		}
		live := shippingdomain.LiveLabel(labels, orderID)
		if live == nil {
			continue
		}
		if err := s.pushOne(ctx, orderID, live.TrackingID); err != nil {
			return err
		}
	}
	return nil
}

// pushOne syncs a single order. A push only counts as successful once
// both the tracking update and the shipped transition are confirmed; a
// half-applied push is recorded as failed and repeated on the next
// pass. Marketplace call failures are logged; only store failures
// propagate.
func (s *Synchronizer) pushOne(ctx context.Context, orderID, trackingID string) error {
	if err := s.market.SetTracking(ctx, orderID, s.carrierCode, trackingID); err != nil {
		logger.Get().Error("Failed to push tracking number",
			zap.String("order_id", orderID),
			zap.String("tracking_pin", trackingID),
			zap.Error(err),
		)
		return s.recordPush(ctx, orderID, trackingID, false)
	}
	logger.Get().Info("Pushed tracking number",
		zap.String("order_id", orderID),
		zap.String("tracking_pin", trackingID),
	)

	if err := s.market.MarkShipped(ctx, orderID); err != nil {
		logger.Get().Warn("Failed to mark order shipped",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return s.recordPush(ctx, orderID, trackingID, false)
	}

	if err := s.recordPush(ctx, orderID, trackingID, true); err != nil {
		return err
	}

	_, raw, err := s.market.GetOrder(ctx, orderID)
	if err != nil {
		logger.Get().Warn("Failed to fetch shipped order snapshot",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil
	}
	return s.store.Append(ctx, recordstore.LogShippedOrders, raw)
}

// recordPush appends one push attempt to the tracking push log.
func (s *Synchronizer) recordPush(ctx context.Context, orderID, trackingID string, success bool) error {
	return s.store.Append(ctx, recordstore.LogTrackingPushes, domain.TrackingPush{
		OrderID:    orderID,
		TrackingID: trackingID,
		Timestamp:  s.clk.Now(),
		Success:    success,
	})
}

// ValidateShipped re-queries the marketplace for every successfully
// pushed order and warns when the state is not a shipped one. States are
// never corrected automatically.
func (s *Synchronizer) ValidateShipped(ctx context.Context) error {
	if _, err := credentials.Require(s.creds, credentials.MarketplaceAPIKey); err != nil {
		return err
	}

	pushed, err := recordstore.IDsWhere(ctx, s.store, recordstore.LogTrackingPushes,
		func(rec domain.TrackingPush) (string, bool) {
			return rec.OrderID, rec.Success
		})
	if err != nil {
		return err
	}

	for orderID := range pushed {
		order, _, err := s.market.GetOrder(ctx, orderID)
		if err != nil {
			logger.Get().Warn("Could not check order state",
				zap.String("order_id", orderID),
				zap.Error(err),
			)
			continue
		}

		switch order.State {
		case orderdomain.StateShipping, orderdomain.StateShipped:
			logger.Get().Info("Order state confirmed",
				zap.String("order_id", orderID),
				zap.String("state", string(order.State)),
			)
		default:
			logger.Get().Warn("Order is not in a shipped state",
				zap.String("order_id", orderID),
				zap.String("state", string(order.State)),
			)
		}
	}
	return nil
}

// labelledOrderIDs returns the distinct order IDs in label insertion order.
func labelledOrderIDs(labels []shippingdomain.LabelRecord) []string {
	seen := make(map[string]bool, len(labels))
	ids := make([]string, 0, len(labels))
	for _, rec := range labels {
		if seen[rec.OrderID] {
			continue
		}
		seen[rec.OrderID] = true
		ids = append(ids, rec.OrderID)
	}
	return ids
}
