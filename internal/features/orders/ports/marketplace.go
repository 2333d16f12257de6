package ports

import (
	"context"
	"encoding/json"

	"fulfillment-pipeline/internal/features/orders/domain"
)

// MarketplaceAPI is the marketplace order capability consumed by every
// pipeline phase. The marketplace remains the authoritative system for
// order state; these calls read or advance that remote truth.
// This is a Secondary Port (Driven Port).
type MarketplaceAPI interface {
	// ListOrders retrieves all orders currently in the given state.
	ListOrders(ctx context.Context, state domain.OrderState) ([]domain.Order, error)

	// Accept confirms the given order lines. The raw API response is
	// returned for journaling regardless of interpretation.
	Accept(ctx context.Context, orderID string, lines []domain.AcceptanceLine) (json.RawMessage, error)

	// SetTracking records the carrier and tracking number on the order.
	SetTracking(ctx context.Context, orderID, carrierCode, trackingID string) error

	// MarkShipped advances the order to the shipped state.
	MarkShipped(ctx context.Context, orderID string) error

	// GetOrder fetches a single order snapshot along with the raw
	// marketplace document it was mapped from.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, json.RawMessage, error)
}
