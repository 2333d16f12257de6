package domain

import "time"

// TrackingPush records one attempt to report a tracking ID back to the
// marketplace. Only successful pushes count towards the synced set, so a
// failed push is retried on the next cycle.
type TrackingPush struct {
	// OrderID is the marketplace order the tracking ID belongs to.
	OrderID string `json:"order_id"`
	// TrackingID is the carrier tracking PIN that was pushed.
	TrackingID string `json:"tracking_pin"`
	// Timestamp is when the attempt was made.
	Timestamp time.Time `json:"timestamp"`
	// Success is true when the marketplace confirmed the update.
	Success bool `json:"success"`
}
