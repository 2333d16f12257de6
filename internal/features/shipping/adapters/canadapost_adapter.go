package adapter

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fulfillment-pipeline/internal/core/config"
	"fulfillment-pipeline/internal/core/credentials"
	"fulfillment-pipeline/internal/core/httpclient"
	"fulfillment-pipeline/internal/features/shipping/domain"
)

const (
	shipmentNamespace = "http://www.canadapost.ca/ws/shipment-v8"
	mediaShipment     = "application/vnd.cpc.shipment-v8+xml"
	mediaTrack        = "application/vnd.cpc.track-v2+xml"
	mediaPDF          = "application/pdf"
)

// CanadaPostAdapter implements the CarrierAPI port against the Canada
// Post shipment-v8 XML REST gateway.
type CanadaPostAdapter struct {
	// client is the HTTP client used for API requests.
	client *http.Client
	// baseURL is the gateway root, e.g. https://soa-gw.canadapost.ca.
	baseURL string
	// cfg carries the account, service and parcel defaults stamped on
	// every shipment.
	cfg config.CarrierConfig
	// creds resolves the basic-auth credentials lazily.
	creds credentials.Provider
}

// NewCanadaPostAdapter creates a new CanadaPostAdapter.
func NewCanadaPostAdapter(cfg config.CarrierConfig, creds credentials.Provider) *CanadaPostAdapter {
	return &CanadaPostAdapter{
		client:  httpclient.NewClient(60 * time.Second),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		cfg:     cfg,
		creds:   creds,
	}
}

// basicAuth resolves the carrier credentials or reports them missing.
func (a *CanadaPostAdapter) basicAuth() (user, password string, err error) {
	resolved, err := credentials.Require(a.creds, credentials.CarrierUser, credentials.CarrierPassword)
	if err != nil {
		return "", "", err
	}
	return resolved[credentials.CarrierUser], resolved[credentials.CarrierPassword], nil
}

// do executes an authenticated request and returns the response body.
// Non-2xx statuses become a *CarrierError carrying the body.
func (a *CanadaPostAdapter) do(ctx context.Context, method, url, contentType, accept string, body []byte) ([]byte, error) {
	user, password, err := a.basicAuth()
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(user, password)
	req.Header.Set("Accept", accept)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

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
		return respBody, &domain.CarrierError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// CreateShipment implements CarrierAPI. The shipment is transmitted
// immediately so the returned tracking PIN is final.
func (a *CanadaPostAdapter) CreateShipment(ctx context.Context, desc domain.ShipmentDescriptor) (*domain.ShipmentResult, error) {
	payload, err := xml.MarshalIndent(a.buildShipment(desc), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shipment: %w", err)
	}
	payload = append([]byte(xml.Header), payload...)

	url := fmt.Sprintf("%s/rs/%s/%s/shipment", a.baseURL, a.cfg.CustomerNumber, a.cfg.CustomerNumber)
	body, err := a.do(ctx, http.MethodPost, url, mediaShipment, mediaShipment, payload)
	if err != nil {
		return nil, err
	}

	var info cpShipmentInfo
	if err := xml.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode shipment response: %w", err)
	}

	result := &domain.ShipmentResult{
		TrackingID: info.TrackingPin,
		Raw:        string(body),
	}
	for _, link := range info.Links {
		switch link.Rel {
		case "label":
			result.LabelURL = link.Href
		case "refund":
			result.VoidURL = link.Href
		case "details":
			result.DetailsURL = link.Href
		}
	}
	if result.TrackingID == "" {
		return nil, fmt.Errorf("shipment response has no tracking pin: %s", string(body))
	}
	return result, nil
}

// GetTrackingSummary implements CarrierAPI.
func (a *CanadaPostAdapter) GetTrackingSummary(ctx context.Context, trackingID string) error {
	url := fmt.Sprintf("%s/vis/track/pin/%s/summary", a.baseURL, trackingID)
	if _, err := a.do(ctx, http.MethodGet, url, "", mediaTrack, nil); err != nil {
		return fmt.Errorf("failed to look up tracking pin %s: %w", trackingID, err)
	}
	return nil
}

// VoidShipment implements CarrierAPI via the shipment refund resource.
func (a *CanadaPostAdapter) VoidShipment(ctx context.Context, voidURL string) error {
	payload, err := xml.Marshal(cpRefundRequest{Xmlns: shipmentNamespace})
	if err != nil {
		return fmt.Errorf("failed to marshal refund request: %w", err)
	}
	payload = append([]byte(xml.Header), payload...)

	if _, err := a.do(ctx, http.MethodPost, voidURL, mediaShipment, mediaShipment, payload); err != nil {
		return fmt.Errorf("failed to void shipment: %w", err)
	}
	return nil
}

// DownloadLabel implements CarrierAPI.
func (a *CanadaPostAdapter) DownloadLabel(ctx context.Context, labelURL string) ([]byte, error) {
	body, err := a.do(ctx, http.MethodGet, labelURL, "", mediaPDF, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download label: %w", err)
	}
	return body, nil
}

// GetShipmentDetails implements CarrierAPI. The document is returned as
// received so the history log keeps the carrier's exact wording.
func (a *CanadaPostAdapter) GetShipmentDetails(ctx context.Context, detailsURL string) (string, error) {
	body, err := a.do(ctx, http.MethodGet, detailsURL, "", mediaShipment, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch shipment details: %w", err)
	}
	return string(body), nil
}

// buildShipment assembles the shipment-v8 request document.
func (a *CanadaPostAdapter) buildShipment(desc domain.ShipmentDescriptor) cpShipment {
	sender := desc.Sender
	dest := desc.Destination

	return cpShipment{
		Xmlns:                  shipmentNamespace,
		TransmitShipment:       true,
		RequestedShippingPoint: strings.ReplaceAll(sender.Address.PostalCode, " ", ""),
		DeliverySpec: cpDeliverySpec{
			ServiceCode: a.cfg.ServiceCode,
			Sender: cpSender{
				Name:         sender.Name,
				Company:      sender.Company,
				ContactPhone: sender.Phone,
				AddressDetails: cpAddress{
					AddressLine1:  sender.Address.Street1,
					City:          sender.Address.City,
					ProvState:     sender.Address.Province,
					CountryCode:   sender.Address.Country,
					PostalZipCode: sender.Address.PostalCode,
				},
			},
			Destination: cpDestination{
				Name:    dest.Name,
				Company: dest.Company,
				AddressDetails: cpAddress{
					AddressLine1:  dest.Address.Street1,
					City:          dest.Address.City,
					ProvState:     dest.Address.Province,
					CountryCode:   dest.Address.Country,
					PostalZipCode: dest.Address.PostalCode,
				},
			},
			ParcelCharacteristics: cpParcel{Weight: a.cfg.ParcelWeightKg},
			References:            cpReferences{CustomerRef1: desc.OrderID},
			SettlementInfo: cpSettlement{
				PaidByCustomer: a.cfg.PaidBy,
				ContractID:     a.cfg.ContractID,
			},
		},
	}
}

// wire structs for the shipment-v8 XML documents

// cpShipment is the create-shipment request.
type cpShipment struct {
	XMLName                xml.Name       `xml:"shipment"`
	Xmlns                  string         `xml:"xmlns,attr"`
	TransmitShipment       bool           `xml:"transmit-shipment"`
	RequestedShippingPoint string         `xml:"requested-shipping-point"`
	DeliverySpec           cpDeliverySpec `xml:"delivery-spec"`
}

type cpDeliverySpec struct {
	ServiceCode           string        `xml:"service-code"`
	Sender                cpSender      `xml:"sender"`
	Destination           cpDestination `xml:"destination"`
	ParcelCharacteristics cpParcel      `xml:"parcel-characteristics"`
	PrintPreferences      struct{}      `xml:"print-preferences"`
	References            cpReferences  `xml:"references"`
	SettlementInfo        cpSettlement  `xml:"settlement-info"`
}

type cpSender struct {
	Name           string    `xml:"name"`
	Company        string    `xml:"company"`
	ContactPhone   string    `xml:"contact-phone"`
	AddressDetails cpAddress `xml:"address-details"`
}

type cpDestination struct {
	Name           string    `xml:"name"`
	Company        string    `xml:"company,omitempty"`
	AddressDetails cpAddress `xml:"address-details"`
}

type cpAddress struct {
	AddressLine1  string `xml:"address-line-1"`
	City          string `xml:"city"`
	ProvState     string `xml:"prov-state"`
	CountryCode   string `xml:"country-code"`
	PostalZipCode string `xml:"postal-zip-code"`
}

type cpParcel struct {
	Weight string `xml:"weight"`
}

type cpReferences struct {
	CustomerRef1 string `xml:"customer-ref-1"`
}

type cpSettlement struct {
	PaidByCustomer string `xml:"paid-by-customer,omitempty"`
	ContractID     string `xml:"contract-id,omitempty"`
}

// cpShipmentInfo is the create-shipment response.
type cpShipmentInfo struct {
	XMLName     xml.Name `xml:"shipment-info"`
	ShipmentID  string   `xml:"shipment-id"`
	TrackingPin string   `xml:"tracking-pin"`
	Links       []cpLink `xml:"links>link"`
}

type cpLink struct {
	Rel       string `xml:"rel,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

// cpRefundRequest is the void (refund) request body.
type cpRefundRequest struct {
	XMLName xml.Name `xml:"shipment-refund-request"`
	Xmlns   string   `xml:"xmlns,attr"`
	Email   string   `xml:"email,omitempty"`
}
