package credentials

import (
	"errors"
	"fmt"
	"strings"

	"fulfillment-pipeline/internal/core/config"
)

// ErrMissing signals that a required credential is absent. Phases treat it
// as a clean abort, never a crash.
var ErrMissing = errors.New("missing credential")

// Credential names resolvable through a Provider.
const (
	MarketplaceAPIKey     = "marketplace_api_key"
	CarrierUser           = "carrier_api_user"
	CarrierPassword       = "carrier_api_password"
	CarrierCustomerNumber = "carrier_customer_number"
	CarrierContractID     = "carrier_contract_id"
	CarrierPaidBy         = "carrier_paid_by_customer"
)

// Provider is an opaque credential lookup.
// This is a Secondary Port (Driven Port).
type Provider interface {
	// Get returns the named credential, or false if it is absent.
	Get(name string) (string, bool)
}

// Static is a map-backed Provider. Empty or whitespace-only values count
// as absent.
type Static map[string]string

// Get implements Provider.
func (s Static) Get(name string) (string, bool) {
	v, ok := s[name]
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// FromConfig builds a Static provider from the loaded application config.
func FromConfig(cfg *config.AppConfig) Static {
	return Static{
		MarketplaceAPIKey:     cfg.Marketplace.APIKey,
		CarrierUser:           cfg.Carrier.User,
		CarrierPassword:       cfg.Carrier.Password,
		CarrierCustomerNumber: cfg.Carrier.CustomerNumber,
		CarrierContractID:     cfg.Carrier.ContractID,
		CarrierPaidBy:         cfg.Carrier.PaidBy,
	}
}

// Require resolves every named credential or fails with ErrMissing naming
// the first absent one.
func Require(p Provider, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		v, ok := p.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissing, name)
		}
		out[name] = v
	}
	return out, nil
}
