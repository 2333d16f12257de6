package domain

import (
	"fmt"
	"time"

	orderdomain "fulfillment-pipeline/internal/features/orders/domain"
)

// CarrierError is a non-2xx carrier response. The body is preserved so
// failed attempts can be journaled with the exact carrier message.
type CarrierError struct {
	// StatusCode is the HTTP status the carrier returned.
	StatusCode int
	// Body is the raw response body.
	Body string
}

// Error implements error.
func (e *CarrierError) Error() string {
	return fmt.Sprintf("carrier API returned status %d: %s", e.StatusCode, e.Body)
}

// LabelRecord is one event in the shipping label log. Creation attempts
// append a record whether they succeed or fail; voiding appends a
// tombstone record instead of mutating history.
type LabelRecord struct {
	// OrderID is the marketplace order the label belongs to.
	OrderID string `json:"order_id"`
	// TrackingID is the carrier tracking PIN, empty on failure.
	TrackingID string `json:"tracking_pin,omitempty"`
	// LabelURL is where the printable artifact can be fetched.
	LabelURL string `json:"label_url,omitempty"`
	// VoidURL is the carrier endpoint that cancels this shipment. A
	// label without one can never be voided.
	VoidURL string `json:"void_url,omitempty"`
	// RawResponse is the carrier response exactly as received.
	RawResponse string `json:"api_response,omitempty"`
	// Error holds the failure description for unsuccessful attempts.
	Error string `json:"error,omitempty"`
	// Timestamp is when the attempt or void happened.
	Timestamp time.Time `json:"timestamp"`
	// Voided marks this record as a tombstone for the order's current
	// label rather than a creation attempt.
	Voided bool `json:"voided,omitempty"`
}

// Created reports whether the record represents a successful label creation.
func (r LabelRecord) Created() bool {
	return !r.Voided && r.Error == "" && r.TrackingID != ""
}

// LiveLabel returns the order's current label: the latest successful
// creation record not followed by a void tombstone. Records must be in
// insertion order. At most one label is live per order at any time.
func LiveLabel(records []LabelRecord, orderID string) *LabelRecord {
	var live *LabelRecord
	for i := range records {
		rec := records[i]
		if rec.OrderID != orderID {
			continue
		}
		if rec.Voided {
			live = nil
			continue
		}
		if rec.Created() {
			live = &records[i]
		}
	}
	return live
}

// Party is one side of a shipment, sender or destination.
type Party struct {
	// Name is the contact name printed on the label.
	Name string
	// Company is the company line. The destination side reuses it for
	// the parcel content summary.
	Company string
	// Phone is the contact phone number.
	Phone string
	// Address is the postal address.
	Address orderdomain.Address
}

// ShipmentDescriptor is everything order-specific the carrier needs to
// create one shipment. Service, settlement and parcel defaults live with
// the carrier adapter configuration.
type ShipmentDescriptor struct {
	// OrderID ties the shipment back to the marketplace order.
	OrderID string
	// Sender is the fixed origin party.
	Sender Party
	// Destination is the buyer.
	Destination Party
}

// ShipmentResult is the carrier's answer to a create-shipment call.
type ShipmentResult struct {
	// TrackingID is the tracking PIN assigned to the parcel.
	TrackingID string
	// LabelURL points at the printable label artifact.
	LabelURL string
	// VoidURL cancels the shipment; may be empty.
	VoidURL string
	// DetailsURL returns the full shipment document for auditing.
	DetailsURL string
	// Raw is the untouched response body.
	Raw string
}

// HistoryEntry is one audit snapshot in the shipping history log.
type HistoryEntry struct {
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
	// ShipmentDetails is the carrier shipment document as returned.
	ShipmentDetails string `json:"shipment_details"`
}
