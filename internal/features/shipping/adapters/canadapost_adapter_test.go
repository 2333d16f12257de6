package adapter

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fulfillment-pipeline/internal/core/config"
	"fulfillment-pipeline/internal/core/credentials"
	orderdomain "fulfillment-pipeline/internal/features/orders/domain"
	"fulfillment-pipeline/internal/features/shipping/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockShipmentInfo = `<?xml version="1.0" encoding="UTF-8"?>
<shipment-info xmlns="http://www.canadapost.ca/ws/shipment-v8">
  <shipment-id>340531309186521749</shipment-id>
  <shipment-status>transmitted</shipment-status>
  <tracking-pin>12345678901234</tracking-pin>
  <links>
    <link rel="self" href="https://gw/rs/0007/0007/shipment/340531309186521749" media-type="application/vnd.cpc.shipment-v8+xml"/>
    <link rel="details" href="https://gw/rs/0007/0007/shipment/340531309186521749/details" media-type="application/vnd.cpc.shipment-v8+xml"/>
    <link rel="refund" href="https://gw/rs/0007/0007/shipment/340531309186521749/refund" media-type="application/vnd.cpc.shipment-v8+xml"/>
    <link rel="label" href="https://gw/rs/artifact/label/12345" media-type="application/pdf"/>
  </links>
</shipment-info>`

func testCarrierConfig(url string) config.CarrierConfig {
	return config.CarrierConfig{
		URL:            url,
		CustomerNumber: "0007654321",
		ContractID:     "0043924574",
		PaidBy:         "0007654321",
		ServiceCode:    "DOM.EP",
		ParcelWeightKg: "1.8",
	}
}

func testCarrierCreds() credentials.Static {
	return credentials.Static{
		credentials.CarrierUser:     "user",
		credentials.CarrierPassword: "secret",
	}
}

func testDescriptor() domain.ShipmentDescriptor {
	return domain.ShipmentDescriptor{
		OrderID: "BB-1001",
		Sender: domain.Party{
			Name:    "Acme Fulfillment",
			Company: "Acme Inc.",
			Phone:   "416-555-0100",
			Address: orderdomain.Address{
				Street1:    "1 Warehouse Rd",
				City:       "Toronto",
				Province:   "ON",
				PostalCode: "M2J 4N3",
				Country:    "CA",
			},
		},
		Destination: domain.Party{
			Name:    "Jane Doe",
			Company: "2x SKU-42",
			Address: orderdomain.Address{
				Street1:    "12 Maple Ave",
				City:       "Ottawa",
				Province:   "ON",
				PostalCode: "K1A 0B1",
				Country:    "CA",
			},
		},
	}
}

// TestCreateShipment verifies the request document, auth and link mapping.
func TestCreateShipment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rs/0007654321/0007654321/shipment", r.URL.Path)
		assert.Equal(t, "application/vnd.cpc.shipment-v8+xml", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/vnd.cpc.shipment-v8+xml", r.Header.Get("Accept"))

		user, password, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "secret", password)

		body, _ := io.ReadAll(r.Body)
		var sent cpShipment
		require.NoError(t, xml.Unmarshal(body, &sent))
		assert.True(t, sent.TransmitShipment)
		assert.Equal(t, "M2J4N3", sent.RequestedShippingPoint)
		assert.Equal(t, "DOM.EP", sent.DeliverySpec.ServiceCode)
		assert.Equal(t, "Jane Doe", sent.DeliverySpec.Destination.Name)
		assert.Equal(t, "2x SKU-42", sent.DeliverySpec.Destination.Company)
		assert.Equal(t, "K1A 0B1", sent.DeliverySpec.Destination.AddressDetails.PostalZipCode)
		assert.Equal(t, "1.8", sent.DeliverySpec.ParcelCharacteristics.Weight)
		assert.Equal(t, "BB-1001", sent.DeliverySpec.References.CustomerRef1)
		assert.Equal(t, "0043924574", sent.DeliverySpec.SettlementInfo.ContractID)

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(mockShipmentInfo))
	}))
	defer server.Close()

	a := NewCanadaPostAdapter(testCarrierConfig(server.URL), testCarrierCreds())

	result, err := a.CreateShipment(context.Background(), testDescriptor())
	require.NoError(t, err)
	assert.Equal(t, "12345678901234", result.TrackingID)
	assert.Equal(t, "https://gw/rs/artifact/label/12345", result.LabelURL)
	assert.Equal(t, "https://gw/rs/0007/0007/shipment/340531309186521749/refund", result.VoidURL)
	assert.Equal(t, "https://gw/rs/0007/0007/shipment/340531309186521749/details", result.DetailsURL)
	assert.Contains(t, result.Raw, "tracking-pin")
}

// TestCreateShipment_CarrierErrorKeepsBody verifies the failure body is
// preserved for the label log.
func TestCreateShipment_CarrierErrorKeepsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`<messages><message><code>1234</code><description>postal code invalid</description></message></messages>`))
	}))
	defer server.Close()

	a := NewCanadaPostAdapter(testCarrierConfig(server.URL), testCarrierCreds())

	_, err := a.CreateShipment(context.Background(), testDescriptor())
	require.Error(t, err)

	var carrierErr *domain.CarrierError
	require.ErrorAs(t, err, &carrierErr)
	assert.Equal(t, http.StatusBadRequest, carrierErr.StatusCode)
	assert.Contains(t, carrierErr.Body, "postal code invalid")
}

// TestCreateShipment_MissingCredentials verifies the absent-credential signal.
func TestCreateShipment_MissingCredentials(t *testing.T) {
	a := NewCanadaPostAdapter(testCarrierConfig("http://unused"), credentials.Static{})

	_, err := a.CreateShipment(context.Background(), testDescriptor())
	require.Error(t, err)
	assert.ErrorIs(t, err, credentials.ErrMissing)
}

// TestGetTrackingSummary verifies the tracking index lookup.
func TestGetTrackingSummary(t *testing.T) {
	var status = http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vis/track/pin/12345678901234/summary", r.URL.Path)
		assert.Equal(t, "application/vnd.cpc.track-v2+xml", r.Header.Get("Accept"))
		w.WriteHeader(status)
	}))
	defer server.Close()

	a := NewCanadaPostAdapter(testCarrierConfig(server.URL), testCarrierCreds())

	assert.NoError(t, a.GetTrackingSummary(context.Background(), "12345678901234"))

	status = http.StatusNotFound
	err := a.GetTrackingSummary(context.Background(), "12345678901234")
	require.Error(t, err)

	var carrierErr *domain.CarrierError
	assert.True(t, errors.As(err, &carrierErr))
}

// TestVoidShipment verifies the refund call goes to the provided URL.
func TestVoidShipment(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rs/0007/0007/shipment/340531309186521749/refund", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "shipment-refund-request")

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<shipment-refund-request-info xmlns="http://www.canadapost.ca/ws/shipment-v8"><service-ticket-id>T1</service-ticket-id></shipment-refund-request-info>`))
	}))
	defer server.Close()

	a := NewCanadaPostAdapter(testCarrierConfig(server.URL), testCarrierCreds())

	err := a.VoidShipment(context.Background(), server.URL+"/rs/0007/0007/shipment/340531309186521749/refund")
	require.NoError(t, err)
	assert.True(t, called)
}

// TestDownloadLabel verifies artifact retrieval.
func TestDownloadLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/pdf", r.Header.Get("Accept"))
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer server.Close()

	a := NewCanadaPostAdapter(testCarrierConfig(server.URL), testCarrierCreds())

	data, err := a.DownloadLabel(context.Background(), server.URL+"/rs/artifact/label/12345")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))
}

// TestGetShipmentDetails verifies the raw document passthrough.
func TestGetShipmentDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<shipment-details xmlns="http://www.canadapost.ca/ws/shipment-v8"><tracking-pin>12345678901234</tracking-pin></shipment-details>`))
	}))
	defer server.Close()

	a := NewCanadaPostAdapter(testCarrierConfig(server.URL), testCarrierCreds())

	details, err := a.GetShipmentDetails(context.Background(), server.URL+"/details")
	require.NoError(t, err)
	assert.Contains(t, details, "12345678901234")
}
