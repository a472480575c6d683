package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/matrixise/token-ledger/internal/scheduler"
)

// Config represents the application configuration
type Config struct {
	LogLevel          string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	HTTPPort          int    `mapstructure:"http_port" validate:"omitempty,min=1024,max=65535"`
	Interval          string `mapstructure:"interval" validate:"omitempty,duration"`
	Timezone          string `mapstructure:"timezone" validate:"omitempty,timezone"`
	RunImmediately    bool   `mapstructure:"run_immediately"`
	DefaultBlockchain string `mapstructure:"default_blockchain" validate:"omitempty,min=1,max=50"`
	UsdGbpRate        string `mapstructure:"usd_gbp_rate" validate:"omitempty,decimal"`
	AuditBatchSize    int    `mapstructure:"audit_batch_size" validate:"omitempty,min=1,max=10000"`
}

// Location resolves the configured timezone, defaulting to UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Rate parses the configured USD to GBP rate. An empty value returns
// zero, which callers treat as "use the built-in default".
func (c *Config) Rate() decimal.Decimal {
	if c.UsdGbpRate == "" {
		return decimal.Zero
	}
	rate, err := decimal.NewFromString(c.UsdGbpRate)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

// durationValidator validates schedule intervals: a clock-aligned
// duration or a cron expression. Empty is valid (run once mode).
func durationValidator(fl validator.FieldLevel) bool {
	return scheduler.ValidateScheduleInterval(fl.Field().String()) == nil
}

// decimalValidator validates decimal number strings
func decimalValidator(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.Sign() > 0
}

// NewValidator creates a validator with custom validation rules
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterValidation("duration", durationValidator)
	validate.RegisterValidation("decimal", decimalValidator)
	return validate
}
