package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fulfillment-pipeline/internal/core/credentials"
	"fulfillment-pipeline/internal/core/httpclient"
	"fulfillment-pipeline/internal/features/orders/domain"
)

// MiraklAdapter implements the MarketplaceAPI port against a Mirakl-style
// marketplace REST API (order listing by state code, per-order accept,
// tracking and ship sub-resources).
type MiraklAdapter struct {
	// client is the HTTP client used for API requests.
	client *http.Client
	// baseURL is the marketplace API root, e.g. https://marketplace.example/api.
	baseURL string
	// creds resolves the API key lazily so an absent key aborts a phase
	// instead of the whole process.
	creds credentials.Provider
}

// NewMiraklAdapter creates a new MiraklAdapter.
func NewMiraklAdapter(baseURL string, creds credentials.Provider) *MiraklAdapter {
	return &MiraklAdapter{
		client:  httpclient.NewClient(30 * time.Second),
		baseURL: baseURL,
		creds:   creds,
	}
}

// apiKey resolves the marketplace API key or reports it missing.
func (a *MiraklAdapter) apiKey() (string, error) {
	key, ok := a.creds.Get(credentials.MarketplaceAPIKey)
	if !ok {
		return "", fmt.Errorf("%w: %s", credentials.ErrMissing, credentials.MarketplaceAPIKey)
	}
	return key, nil
}

// do executes an authenticated request and returns the response body.
// Non-2xx statuses are returned as errors carrying the body for auditing.
func (a *MiraklAdapter) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	key, err := a.apiKey()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	u := a.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, fmt.Errorf("marketplace API returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// ListOrders implements MarketplaceAPI.
func (a *MiraklAdapter) ListOrders(ctx context.Context, state domain.OrderState) ([]domain.Order, error) {
	query := url.Values{"order_state_codes": {string(state)}}

	body, err := a.do(ctx, http.MethodGet, "/orders", query, nil)
	if err != nil {
		return nil, err
	}

	var listing mkOrderListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode order listing: %w", err)
	}

	orders := make([]domain.Order, 0, len(listing.Orders))
	now := time.Now().UTC()
	for _, raw := range listing.Orders {
		order, err := mapOrder(raw, now)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// Accept implements MarketplaceAPI. The raw response body is always
// returned for journaling; an empty body becomes a minimal success marker.
func (a *MiraklAdapter) Accept(ctx context.Context, orderID string, lines []domain.AcceptanceLine) (json.RawMessage, error) {
	payload := mkAcceptRequest{OrderLines: lines}

	body, err := a.do(ctx, http.MethodPut, "/orders/"+orderID+"/accept", nil, payload)
	if len(body) == 0 {
		body = []byte(`{"status":"success","message":"Order accepted successfully."}`)
	}
	if !json.Valid(body) {
		quoted, _ := json.Marshal(string(body))
		body = quoted
	}
	if err != nil {
		return json.RawMessage(body), err
	}
	return json.RawMessage(body), nil
}

// SetTracking implements MarketplaceAPI.
func (a *MiraklAdapter) SetTracking(ctx context.Context, orderID, carrierCode, trackingID string) error {
	payload := mkTrackingRequest{CarrierCode: carrierCode, TrackingNumber: trackingID}

	if _, err := a.do(ctx, http.MethodPut, "/orders/"+orderID+"/tracking", nil, payload); err != nil {
		return fmt.Errorf("failed to set tracking for order %s: %w", orderID, err)
	}
	return nil
}

// MarkShipped implements MarketplaceAPI.
func (a *MiraklAdapter) MarkShipped(ctx context.Context, orderID string) error {
	if _, err := a.do(ctx, http.MethodPut, "/orders/"+orderID+"/ship", nil, nil); err != nil {
		return fmt.Errorf("failed to mark order %s shipped: %w", orderID, err)
	}
	return nil
}

// GetOrder implements MarketplaceAPI. The raw marketplace document is
// returned alongside the mapped snapshot so history logs can keep the
// order exactly as the marketplace reported it.
func (a *MiraklAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, json.RawMessage, error) {
	query := url.Values{"order_ids": {orderID}}

	body, err := a.do(ctx, http.MethodGet, "/orders", query, nil)
	if err != nil {
		return nil, nil, err
	}

	var listing mkOrderListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, nil, fmt.Errorf("failed to decode order listing: %w", err)
	}
	if len(listing.Orders) == 0 {
		return nil, nil, fmt.Errorf("order not found: %s", orderID)
	}

	raw := listing.Orders[0]
	order, err := mapOrder(raw, time.Now().UTC())
	if err != nil {
		return nil, nil, err
	}
	return order, raw, nil
}

// mapOrder converts a raw marketplace order document into the domain entity.
func mapOrder(raw json.RawMessage, retrievedAt time.Time) (*domain.Order, error) {
	var mk mkOrder
	if err := json.Unmarshal(raw, &mk); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}

	lines := make([]domain.OrderLine, 0, len(mk.OrderLines))
	for _, l := range mk.OrderLines {
		lines = append(lines, domain.OrderLine{
			LineID:   l.OrderLineID,
			SKU:      l.OfferSKU,
			Quantity: l.Quantity,
		})
	}

	return &domain.Order{
		ID:    mk.OrderID,
		State: domain.OrderState(mk.OrderState),
		Customer: domain.Customer{
			FirstName: mk.Customer.FirstName,
			LastName:  mk.Customer.LastName,
		},
		ShippingAddress: domain.Address{
			Street1:    mk.Customer.ShippingAddress.Street1,
			Street2:    mk.Customer.ShippingAddress.Street2,
			City:       mk.Customer.ShippingAddress.City,
			Province:   mk.Customer.ShippingAddress.State,
			PostalCode: mk.Customer.ShippingAddress.ZipCode,
			Country:    mk.Customer.ShippingAddress.Country,
		},
		Lines:       lines,
		RetrievedAt: retrievedAt,
	}, nil
}

// internal structs for mapping

// mkOrderListing is the envelope of the order listing endpoint. Orders are
// kept raw so callers can persist the untouched marketplace document.
type mkOrderListing struct {
	// Orders are the raw order documents.
	Orders []json.RawMessage `json:"orders"`
	// TotalCount is the number of orders matching the query.
	TotalCount int `json:"total_count"`
}

// mkOrder is the subset of a marketplace order document the pipeline maps.
type mkOrder struct {
	OrderID    string       `json:"order_id"`
	OrderState string       `json:"order_state"`
	Customer   mkCustomer   `json:"customer"`
	OrderLines []mkOrderLine `json:"order_lines"`
}

// mkCustomer holds buyer identity and destination address.
type mkCustomer struct {
	FirstName       string            `json:"firstname"`
	LastName        string            `json:"lastname"`
	ShippingAddress mkShippingAddress `json:"shipping_address"`
}

// mkShippingAddress is the marketplace address shape.
type mkShippingAddress struct {
	Street1 string `json:"street_1"`
	Street2 string `json:"street_2"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// mkOrderLine is one purchased line in the marketplace document.
type mkOrderLine struct {
	OrderLineID string `json:"order_line_id"`
	OfferSKU    string `json:"offer_sku"`
	Quantity    int    `json:"quantity"`
}

// mkAcceptRequest is the accept call payload.
type mkAcceptRequest struct {
	OrderLines []domain.AcceptanceLine `json:"order_lines"`
}

// mkTrackingRequest is the tracking update payload.
type mkTrackingRequest struct {
	CarrierCode    string `json:"carrier_code"`
	TrackingNumber string `json:"tracking_number"`
}
