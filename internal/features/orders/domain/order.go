package domain

import "time"

// OrderState is the marketplace lifecycle state of an order as last
// observed. The marketplace owns the authoritative value; the pipeline
// only holds snapshots.
type OrderState string

const (
	// StateWaitingAcceptance means the seller has not yet confirmed the order.
	StateWaitingAcceptance OrderState = "WAITING_ACCEPTANCE"
	// StateShipping means the order is accepted and awaiting a shipment.
	StateShipping OrderState = "SHIPPING"
	// StateShipped means the marketplace has been told the order shipped.
	StateShipped OrderState = "SHIPPED"
	// StateCancelled means the order was cancelled on the marketplace.
	StateCancelled OrderState = "CANCELLED"
)

// Address is a customer shipping address.
type Address struct {
	// Street1 is the primary address line.
	Street1 string `json:"street_1"`
	// Street2 is the optional secondary address line.
	Street2 string `json:"street_2,omitempty"`
	// City is the destination city.
	City string `json:"city"`
	// Province is the destination province or state code.
	Province string `json:"state"`
	// PostalCode is the destination postal code.
	PostalCode string `json:"zip_code"`
	// Country is the two-letter destination country code.
	Country string `json:"country,omitempty"`
}

// Customer identifies the buyer on an order.
type Customer struct {
	// FirstName is the customer's first name.
	FirstName string `json:"firstname"`
	// LastName is the customer's last name.
	LastName string `json:"lastname"`
}

// OrderLine is one purchased item on an order.
type OrderLine struct {
	// LineID is the marketplace identifier for this line.
	LineID string `json:"order_line_id"`
	// SKU is the offer SKU sold.
	SKU string `json:"offer_sku"`
	// Quantity is the number of units purchased.
	Quantity int `json:"quantity"`
}

// Order is a read-mostly snapshot of a marketplace order.
type Order struct {
	// ID is the globally unique marketplace order identifier, stable
	// across every pipeline phase.
	ID string `json:"order_id"`
	// State is the marketplace lifecycle state at retrieval time.
	State OrderState `json:"order_state"`
	// Customer is the buyer.
	Customer Customer `json:"customer"`
	// ShippingAddress is the destination for the shipment.
	ShippingAddress Address `json:"shipping_address"`
	// Lines are the purchased items, in marketplace order.
	Lines []OrderLine `json:"order_lines"`
	// RetrievedAt is when this snapshot was fetched.
	RetrievedAt time.Time `json:"retrieved_at,omitempty"`
}

// AcceptanceLine is the per-line decision sent on an accept call.
type AcceptanceLine struct {
	// LineID identifies the order line being confirmed.
	LineID string `json:"id"`
	// Accepted is true when the seller will fulfill the line.
	Accepted bool `json:"accepted"`
}

// AcceptAllLines builds an all-accepted decision for the order's lines.
func (o Order) AcceptAllLines() []AcceptanceLine {
	lines := make([]AcceptanceLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, AcceptanceLine{LineID: l.LineID, Accepted: true})
	}
	return lines
}

// MergeByID appends orders from incoming that are not already present in
// existing (by order ID) and reports how many were added. Used to maintain
// the pending working sets without duplicates.
func MergeByID(existing, incoming []Order) ([]Order, int) {
	seen := make(map[string]bool, len(existing))
	for _, o := range existing {
		seen[o.ID] = true
	}

	added := 0
	for _, o := range incoming {
		if seen[o.ID] {
			continue
		}
		existing = append(existing, o)
		seen[o.ID] = true
		added++
	}
	return existing, added
}
