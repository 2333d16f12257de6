package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fulfillment-pipeline/internal/core/credentials"
	"fulfillment-pipeline/internal/features/orders/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockListing = `{
	"total_count": 1,
	"orders": [
		{
			"order_id": "BB-1001",
			"order_state": "WAITING_ACCEPTANCE",
			"customer": {
				"firstname": "Jane",
				"lastname": "Doe",
				"shipping_address": {
					"street_1": "12 Maple Ave",
					"city": "Ottawa",
					"state": "ON",
					"zip_code": "K1A 0B1",
					"country": "CA"
				}
			},
			"order_lines": [
				{"order_line_id": "BB-1001-1", "offer_sku": "SKU-42", "quantity": 2}
			]
		}
	]
}`

func testCreds() credentials.Static {
	return credentials.Static{credentials.MarketplaceAPIKey: "test-key"}
}

// TestMiraklAdapter_ListOrders_Success verifies listing, auth and mapping.
func TestMiraklAdapter_ListOrders_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "WAITING_ACCEPTANCE", r.URL.Query().Get("order_state_codes"))
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(mockListing))
	}))
	defer server.Close()

	a := NewMiraklAdapter(server.URL+"/api", testCreds())

	orders, err := a.ListOrders(context.Background(), domain.StateWaitingAcceptance)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	order := orders[0]
	assert.Equal(t, "BB-1001", order.ID)
	assert.Equal(t, domain.StateWaitingAcceptance, order.State)
	assert.Equal(t, "Jane", order.Customer.FirstName)
	assert.Equal(t, "12 Maple Ave", order.ShippingAddress.Street1)
	assert.Equal(t, "Ottawa", order.ShippingAddress.City)
	assert.Equal(t, "ON", order.ShippingAddress.Province)
	assert.Equal(t, "K1A 0B1", order.ShippingAddress.PostalCode)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "SKU-42", order.Lines[0].SKU)
	assert.Equal(t, 2, order.Lines[0].Quantity)
	assert.False(t, order.RetrievedAt.IsZero())
}

// TestMiraklAdapter_MissingAPIKey verifies the absent-credential signal.
func TestMiraklAdapter_MissingAPIKey(t *testing.T) {
	a := NewMiraklAdapter("http://unused", credentials.Static{})

	_, err := a.ListOrders(context.Background(), domain.StateShipping)
	require.Error(t, err)
	assert.ErrorIs(t, err, credentials.ErrMissing)
}

// TestMiraklAdapter_Accept verifies the accept payload and raw journaling.
func TestMiraklAdapter_Accept(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/orders/BB-1001/accept", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var req struct {
			OrderLines []struct {
				ID       string `json:"id"`
				Accepted bool   `json:"accepted"`
			} `json:"order_lines"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		require.Len(t, req.OrderLines, 1)
		assert.Equal(t, "BB-1001-1", req.OrderLines[0].ID)
		assert.True(t, req.OrderLines[0].Accepted)

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	a := NewMiraklAdapter(server.URL+"/api", testCreds())

	raw, err := a.Accept(context.Background(), "BB-1001", []domain.AcceptanceLine{
		{LineID: "BB-1001-1", Accepted: true},
	})
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))
	assert.Contains(t, string(raw), "success")
}

// TestMiraklAdapter_Accept_ErrorKeepsBody verifies the failure body is
// preserved for journaling.
func TestMiraklAdapter_Accept_ErrorKeepsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"order already accepted"}`))
	}))
	defer server.Close()

	a := NewMiraklAdapter(server.URL+"/api", testCreds())

	raw, err := a.Accept(context.Background(), "BB-1001", nil)
	require.Error(t, err)
	assert.Contains(t, string(raw), "already accepted")
}

// TestMiraklAdapter_SetTracking verifies the tracking update call.
func TestMiraklAdapter_SetTracking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/orders/BB-1001/tracking", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"carrier_code":"CPCL","tracking_number":"PIN123"}`, string(body))

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a := NewMiraklAdapter(server.URL+"/api", testCreds())

	err := a.SetTracking(context.Background(), "BB-1001", "CPCL", "PIN123")
	assert.NoError(t, err)
}

// TestMiraklAdapter_MarkShipped verifies the ship call and error mapping.
func TestMiraklAdapter_MarkShipped(t *testing.T) {
	var status = http.StatusNoContent
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/BB-1001/ship", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer server.Close()

	a := NewMiraklAdapter(server.URL+"/api", testCreds())

	require.NoError(t, a.MarkShipped(context.Background(), "BB-1001"))

	status = http.StatusConflict
	err := a.MarkShipped(context.Background(), "BB-1001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BB-1001")
}

// TestMiraklAdapter_GetOrder verifies single-order retrieval with raw doc.
func TestMiraklAdapter_GetOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BB-1001", r.URL.Query().Get("order_ids"))
		w.Write([]byte(mockListing))
	}))
	defer server.Close()

	a := NewMiraklAdapter(server.URL+"/api", testCreds())

	order, raw, err := a.GetOrder(context.Background(), "BB-1001")
	require.NoError(t, err)
	assert.Equal(t, "BB-1001", order.ID)
	assert.Contains(t, string(raw), `"order_id": "BB-1001"`)
}

// TestMiraklAdapter_GetOrder_NotFound verifies the empty listing case.
func TestMiraklAdapter_GetOrder_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orders": [], "total_count": 0}`))
	}))
	defer server.Close()

	a := NewMiraklAdapter(server.URL+"/api", testCreds())

	_, _, err := a.GetOrder(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order not found")
}
