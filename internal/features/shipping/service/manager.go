package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment-pipeline/internal/core/clock"
	"fulfillment-pipeline/internal/core/credentials"
	"fulfillment-pipeline/internal/core/logger"
	"fulfillment-pipeline/internal/core/recordstore"
	orderdomain "fulfillment-pipeline/internal/features/orders/domain"
	orderports "fulfillment-pipeline/internal/features/orders/ports"
	"fulfillment-pipeline/internal/features/shipping/domain"
	"fulfillment-pipeline/internal/features/shipping/ports"

	"go.uber.org/zap"
)

// Manager owns the shipping label lifecycle: issuing labels for orders
// the marketplace moved into SHIPPING, and the void-before-reissue flow
// for labels that must be replaced.
type Manager struct {
	store   recordstore.Store
	market  orderports.MarketplaceAPI
	carrier ports.CarrierAPI
	archive ports.LabelArchive
	creds   credentials.Provider
	clk     clock.Clock
	// sender is the fixed origin party stamped on every shipment.
	sender domain.Party
	// cooldown is the wait before a fresh label is looked up in the
	// carrier tracking index.
	cooldown time.Duration
}

// NewManager creates a new shipping label lifecycle Manager.
func NewManager(store recordstore.Store, market orderports.MarketplaceAPI, carrier ports.CarrierAPI, archive ports.LabelArchive, creds credentials.Provider, clk clock.Clock, sender domain.Party, cooldown time.Duration) *Manager {
	return &Manager{
		store:    store,
		market:   market,
		carrier:  carrier,
		archive:  archive,
		creds:    creds,
		clk:      clk,
		sender:   sender,
		cooldown: cooldown,
	}
}

// ProcessPending runs one shipping pass: refresh the pending working set
// from the marketplace, issue a label for every order without a live
// one, then drop labelled orders from the working set. Individual
// carrier failures are recorded and the batch continues.
func (m *Manager) ProcessPending(ctx context.Context) error {
	if _, err := credentials.Require(m.creds,
		credentials.MarketplaceAPIKey,
		credentials.CarrierUser,
		credentials.CarrierPassword,
	); err != nil {
		return err
	}

	remote, err := m.market.ListOrders(ctx, orderdomain.StateShipping)
	if err != nil {
		return err
	}
	logger.Get().Info("Retrieved orders awaiting shipment",
		zap.Int("count", len(remote)),
	)

	if err := m.updatePendingWorkingSet(ctx, remote); err != nil {
		return err
	}

	pending, err := recordstore.ReadAllAs[orderdomain.Order](ctx, m.store, recordstore.LogPendingShipping)
	if err != nil {
		return err
	}
	labels, err := recordstore.ReadAllAs[domain.LabelRecord](ctx, m.store, recordstore.LogShippingLabels)
	if err != nil {
		return err
	}

	for _, order := range pending {
		if domain.LiveLabel(labels, order.ID) != nil {
			logger.Get().Info("Order already has a live label, skipping",
				zap.String("order_id", order.ID),
			)
			continue
		}
		if err := m.issueLabel(ctx, order); err != nil {
			return err
		}
	}

	return m.clearLabelledOrders(ctx)
}

// Reprocess voids an order's current label and issues a replacement.
// An order with no live label is a no-op: there is nothing to void and
// the regular pending pass will pick the order up if it still needs one.
func (m *Manager) Reprocess(ctx context.Context, orderID string) error {
	labels, err := recordstore.ReadAllAs[domain.LabelRecord](ctx, m.store, recordstore.LogShippingLabels)
	if err != nil {
		return err
	}

	live := domain.LiveLabel(labels, orderID)
	if live == nil {
		logger.Get().Info("No live label to void",
			zap.String("order_id", orderID),
		)
		return nil
	}
	if live.VoidURL == "" {
		logger.Get().Warn("Live label has no void URL and can never be voided",
			zap.String("order_id", orderID),
			zap.String("tracking_pin", live.TrackingID),
		)
		return fmt.Errorf("label for order %s has no void URL", orderID)
	}

	if err := m.carrier.VoidShipment(ctx, live.VoidURL); err != nil {
		return fmt.Errorf("failed to void label for order %s: %w", orderID, err)
	}

	tombstone := domain.LabelRecord{
		OrderID:    orderID,
		TrackingID: live.TrackingID,
		Timestamp:  m.clk.Now(),
		Voided:     true,
	}
	if err := m.store.Append(ctx, recordstore.LogShippingLabels, tombstone); err != nil {
		return err
	}
	logger.Get().Info("Voided shipping label",
		zap.String("order_id", orderID),
		zap.String("tracking_pin", live.TrackingID),
	)

	// The replacement is only issued once the cancelled artifact is out
	// of the active archive; a fresh label must never sit next to a
	// printable voided one.
	if err := m.archive.MarkVoided(orderID); err != nil {
		logger.Get().Error("Failed to relocate voided label artifact",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to relocate voided label artifact for order %s: %w", orderID, err)
	}

	order, _, err := m.market.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to fetch order %s for reissue: %w", orderID, err)
	}
	return m.issueLabel(ctx, *order)
}

// updatePendingWorkingSet merges newly seen orders into the pending
// shipping log, de-duplicated by order ID.
func (m *Manager) updatePendingWorkingSet(ctx context.Context, remote []orderdomain.Order) error {
	existing, err := recordstore.ReadAllAs[orderdomain.Order](ctx, m.store, recordstore.LogPendingShipping)
	if err != nil {
		return err
	}

	merged, added := orderdomain.MergeByID(existing, remote)
	if added == 0 {
		return nil
	}

	logger.Get().Info("Added new orders to pending-shipping working set",
		zap.Int("added", added),
	)
	return recordstore.ReplaceAs(ctx, m.store, recordstore.LogPendingShipping, merged)
}

// issueLabel creates one shipment and records the outcome. Carrier and
// parse failures are appended to the label log with the raw body and do
// not propagate; only store failures do.
func (m *Manager) issueLabel(ctx context.Context, order orderdomain.Order) error {
	result, createErr := m.carrier.CreateShipment(ctx, m.descriptor(order))
	now := m.clk.Now()

	if createErr != nil {
		rec := domain.LabelRecord{
			OrderID:   order.ID,
			Error:     createErr.Error(),
			Timestamp: now,
		}
		var carrierErr *domain.CarrierError
		if errors.As(createErr, &carrierErr) {
			rec.RawResponse = carrierErr.Body
		}
		if err := m.store.Append(ctx, recordstore.LogShippingLabels, rec); err != nil {
			return err
		}
		logger.Get().Error("Failed to create shipping label",
			zap.String("order_id", order.ID),
			zap.Error(createErr),
		)
		return nil
	}

	rec := domain.LabelRecord{
		OrderID:     order.ID,
		TrackingID:  result.TrackingID,
		LabelURL:    result.LabelURL,
		VoidURL:     result.VoidURL,
		RawResponse: result.Raw,
		Timestamp:   now,
	}
	if err := m.store.Append(ctx, recordstore.LogShippingLabels, rec); err != nil {
		return err
	}
	logger.Get().Info("Created shipping label",
		zap.String("order_id", order.ID),
		zap.String("tracking_pin", result.TrackingID),
	)

	if result.VoidURL == "" {
		logger.Get().Warn("Created label has no void URL and can never be voided",
			zap.String("order_id", order.ID),
			zap.String("tracking_pin", result.TrackingID),
		)
	}

	if result.DetailsURL != "" {
		if err := m.logShipmentDetails(ctx, result.DetailsURL); err != nil {
			return err
		}
	}

	m.validateTracking(ctx, order.ID, result.TrackingID)

	if result.LabelURL != "" {
		m.downloadArtifact(ctx, order.ID, result.LabelURL)
	}
	return nil
}

// logShipmentDetails appends the carrier shipment document to the
// shipping history audit log. A fetch failure is a warning only.
func (m *Manager) logShipmentDetails(ctx context.Context, detailsURL string) error {
	details, err := m.carrier.GetShipmentDetails(ctx, detailsURL)
	if err != nil {
		logger.Get().Warn("Failed to fetch shipment details",
			zap.String("details_url", detailsURL),
			zap.Error(err),
		)
		return nil
	}

	entry := domain.HistoryEntry{Timestamp: m.clk.Now(), ShipmentDetails: details}
	return m.store.Append(ctx, recordstore.LogShippingHistory, entry)
}

// validateTracking waits out the carrier indexing cool-down and checks
// the fresh tracking PIN resolves. A failed lookup means the label state
// is uncertain, not wrong, so it never fails the pass.
func (m *Manager) validateTracking(ctx context.Context, orderID, trackingID string) {
	if trackingID == "" {
		return
	}
	if err := m.clk.Sleep(ctx, m.cooldown); err != nil {
		return
	}
	if err := m.carrier.GetTrackingSummary(ctx, trackingID); err != nil {
		logger.Get().Warn("VALIDATION_UNCERTAIN: tracking pin not resolvable yet",
			zap.String("order_id", orderID),
			zap.String("tracking_pin", trackingID),
			zap.Error(err),
		)
		return
	}
	logger.Get().Info("Tracking pin validated",
		zap.String("order_id", orderID),
		zap.String("tracking_pin", trackingID),
	)
}

// downloadArtifact fetches the printable label into the active archive.
// The save timestamp is taken here, after the tracking cool-down, so a
// same-cycle reissue never reuses the name of an artifact that was
// just relocated. Failures are warnings; the label exists regardless.
func (m *Manager) downloadArtifact(ctx context.Context, orderID, labelURL string) {
	data, err := m.carrier.DownloadLabel(ctx, labelURL)
	if err != nil {
		logger.Get().Warn("Failed to download label artifact",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return
	}

	path, err := m.archive.SaveActive(orderID, m.clk.Now(), data)
	if err != nil {
		logger.Get().Warn("Failed to store label artifact",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return
	}
	logger.Get().Info("Saved label artifact",
		zap.String("order_id", orderID),
		zap.String("path", path),
	)
}

// clearLabelledOrders drops every order with a live label from the
// pending working set.
func (m *Manager) clearLabelledOrders(ctx context.Context) error {
	pending, err := recordstore.ReadAllAs[orderdomain.Order](ctx, m.store, recordstore.LogPendingShipping)
	if err != nil {
		return err
	}
	labels, err := recordstore.ReadAllAs[domain.LabelRecord](ctx, m.store, recordstore.LogShippingLabels)
	if err != nil {
		return err
	}

	remaining := make([]orderdomain.Order, 0, len(pending))
	for _, order := range pending {
		if domain.LiveLabel(labels, order.ID) == nil {
			remaining = append(remaining, order)
		}
	}
	if len(remaining) == len(pending) {
		return nil
	}

	logger.Get().Info("Cleared labelled orders from pending-shipping working set",
		zap.Int("removed", len(pending)-len(remaining)),
	)
	return recordstore.ReplaceAs(ctx, m.store, recordstore.LogPendingShipping, remaining)
}

// descriptor builds the order-specific shipment request. The destination
// company line doubles as the parcel content summary.
func (m *Manager) descriptor(order orderdomain.Order) domain.ShipmentDescriptor {
	content := ""
	if len(order.Lines) > 0 {
		content = fmt.Sprintf("%dx %s", order.Lines[0].Quantity, order.Lines[0].SKU)
	}

	return domain.ShipmentDescriptor{
		OrderID: order.ID,
		Sender:  m.sender,
		Destination: domain.Party{
			Name:    order.Customer.FirstName + " " + order.Customer.LastName,
			Company: content,
			Address: order.ShippingAddress,
		},
	}
}
