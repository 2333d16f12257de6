package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the ops HTTP server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`

	// Marketplace holds the marketplace order API configuration.
	Marketplace MarketplaceConfig `mapstructure:",squash"`

	// Carrier holds the shipping carrier API configuration.
	Carrier CarrierConfig `mapstructure:",squash"`

	// Sender holds the fixed sender party stamped on every shipment.
	Sender SenderConfig `mapstructure:",squash"`

	// Storage holds the durable record store configuration.
	Storage StorageConfig `mapstructure:",squash"`

	// Pipeline holds the orchestrator timing and retry configuration.
	Pipeline PipelineConfig `mapstructure:",squash"`
}

// MarketplaceConfig holds the marketplace REST API connection details.
// The API key is intentionally not marked required: a missing key aborts
// the affected phase at runtime instead of refusing to start.
type MarketplaceConfig struct {
	// URL is the base URL of the marketplace API.
	URL string `mapstructure:"MARKETPLACE_URL" required:"true"`
	// APIKey is the Authorization header value for the marketplace API.
	APIKey string `mapstructure:"MARKETPLACE_API_KEY"`
	// CarrierCode is the carrier code reported back on tracking updates.
	CarrierCode string `mapstructure:"MARKETPLACE_CARRIER_CODE" default:"CPCL"`
}

// CarrierConfig holds the shipping carrier API connection details.
// Credentials follow the same lazy policy as the marketplace API key.
type CarrierConfig struct {
	// URL is the base URL of the carrier REST gateway.
	URL string `mapstructure:"CARRIER_URL" required:"true"`
	// User is the carrier API username.
	User string `mapstructure:"CARRIER_API_USER"`
	// Password is the carrier API password.
	Password string `mapstructure:"CARRIER_API_PASSWORD"`
	// CustomerNumber identifies the carrier account in resource paths.
	CustomerNumber string `mapstructure:"CARRIER_CUSTOMER_NUMBER"`
	// ContractID is the negotiated-rates contract applied to shipments.
	ContractID string `mapstructure:"CARRIER_CONTRACT_ID"`
	// PaidBy is the customer number billed for postage.
	PaidBy string `mapstructure:"CARRIER_PAID_BY_CUSTOMER"`
	// ServiceCode is the shipping service used for every parcel.
	ServiceCode string `mapstructure:"CARRIER_SERVICE_CODE" default:"DOM.EP"`
	// ParcelWeightKg is the declared weight for every parcel.
	ParcelWeightKg string `mapstructure:"CARRIER_PARCEL_WEIGHT_KG" default:"1.8"`
}

// SenderConfig holds the origin address printed on shipping labels.
type SenderConfig struct {
	// Name is the sender contact name.
	Name string `mapstructure:"SENDER_NAME" required:"true"`
	// Company is the sender company name.
	Company string `mapstructure:"SENDER_COMPANY"`
	// Phone is the sender contact phone number.
	Phone string `mapstructure:"SENDER_PHONE"`
	// Street is the sender street address.
	Street string `mapstructure:"SENDER_STREET" required:"true"`
	// City is the sender city.
	City string `mapstructure:"SENDER_CITY" required:"true"`
	// Province is the sender province or state code.
	Province string `mapstructure:"SENDER_PROVINCE" required:"true"`
	// PostalCode is the sender postal code.
	PostalCode string `mapstructure:"SENDER_POSTAL_CODE" required:"true"`
	// Country is the sender two-letter country code.
	Country string `mapstructure:"SENDER_COUNTRY" default:"CA"`
}

// StorageConfig holds durable record store settings.
type StorageConfig struct {
	// Driver selects the record store backend: file, redis or sqlite.
	Driver string `mapstructure:"STORE_DRIVER" default:"file"`
	// DataDir is the directory holding file-backed logs and label artifacts.
	DataDir string `mapstructure:"STORE_DATA_DIR" default:"data"`
	// RedisURL is the Redis connection URL for the redis driver.
	RedisURL string `mapstructure:"STORE_REDIS_URL" default:"redis://localhost:6379"`
	// SQLitePath is the database file path for the sqlite driver.
	SQLitePath string `mapstructure:"STORE_SQLITE_PATH" default:"data/records.db"`
}

// PipelineConfig holds orchestrator timing knobs. Durations are seconds.
type PipelineConfig struct {
	// IntervalSeconds is the pause between full pipeline cycles.
	IntervalSeconds int `mapstructure:"PIPELINE_INTERVAL_SECONDS" default:"900"`
	// AcceptanceRetries bounds the acceptance reconcile attempts per cycle.
	AcceptanceRetries int `mapstructure:"PIPELINE_ACCEPTANCE_RETRIES" default:"3"`
	// AcceptanceSettleSeconds is the grace window between issuing accepts
	// and validating them against the marketplace.
	AcceptanceSettleSeconds int `mapstructure:"PIPELINE_ACCEPTANCE_SETTLE_SECONDS" default:"5"`
	// LabelCooldownSeconds is the wait before a fresh label is looked up
	// in the carrier tracking index.
	LabelCooldownSeconds int `mapstructure:"PIPELINE_LABEL_COOLDOWN_SECONDS" default:"30"`
	// TrackingSettleSeconds is the wait between pushing tracking numbers
	// and validating the marketplace order states.
	TrackingSettleSeconds int `mapstructure:"PIPELINE_TRACKING_SETTLE_SECONDS" default:"15"`
}

// Interval returns the cycle interval as a duration.
func (p PipelineConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// AcceptanceSettle returns the acceptance grace window as a duration.
func (p PipelineConfig) AcceptanceSettle() time.Duration {
	return time.Duration(p.AcceptanceSettleSeconds) * time.Second
}

// LabelCooldown returns the label validation cool-down as a duration.
func (p PipelineConfig) LabelCooldown() time.Duration {
	return time.Duration(p.LabelCooldownSeconds) * time.Second
}

// TrackingSettle returns the tracking validation wait as a duration.
func (p PipelineConfig) TrackingSettle() time.Duration {
	return time.Duration(p.TrackingSettleSeconds) * time.Second
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// processTags iterates over the struct fields and sets default values in Viper.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			v.BindEnv(key)
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		required := field.Tag.Get("required")
		if required == "true" {
			value := val.Field(i)
			if isZero(value) {
				key := field.Tag.Get("mapstructure")
				return fmt.Errorf("missing required configuration: %s", key)
			}
		}
	}
	return nil
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
