package ports

import (
	"context"
	"time"

	"fulfillment-pipeline/internal/features/shipping/domain"
)

// CarrierAPI is the outbound port to the shipping carrier.
type CarrierAPI interface {
	// CreateShipment registers a shipment and returns the label, void
	// and details resources the carrier assigned to it.
	CreateShipment(ctx context.Context, desc domain.ShipmentDescriptor) (*domain.ShipmentResult, error)
	// GetTrackingSummary checks that a tracking ID is resolvable in the
	// carrier tracking index.
	GetTrackingSummary(ctx context.Context, trackingID string) error
	// VoidShipment cancels a shipment via its void URL.
	VoidShipment(ctx context.Context, voidURL string) error
	// DownloadLabel fetches the printable label artifact.
	DownloadLabel(ctx context.Context, labelURL string) ([]byte, error)
	// GetShipmentDetails fetches the full shipment document.
	GetShipmentDetails(ctx context.Context, detailsURL string) (string, error)
}

// LabelArchive stores printable label artifacts on behalf of the
// lifecycle manager.
type LabelArchive interface {
	// SaveActive stores a freshly downloaded label and returns its path.
	SaveActive(orderID string, ts time.Time, data []byte) (string, error)
	// MarkVoided visibly marks the order's stored artifacts as voided
	// and relocates them out of the active area.
	MarkVoided(orderID string) error
}
