package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduleValidator(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		interval  string
		wantError bool
	}{
		{
			name:      "valid duration 5m",
			interval:  "5m",
			wantError: false,
		},
		{
			name:      "valid duration 1h",
			interval:  "1h",
			wantError: false,
		},
		{
			name:      "valid cron 5 fields",
			interval:  "*/5 * * * *",
			wantError: false,
		},
		{
			name:      "valid cron 6 fields with seconds",
			interval:  "*/30 * * * * *",
			wantError: false,
		},
		{
			name:      "empty interval is valid (one-shot mode)",
			interval:  "",
			wantError: false,
		},
		{
			name:      "invalid duration 7m (not divisor of 60)",
			interval:  "7m",
			wantError: true,
		},
		{
			name:      "invalid duration 5h (not divisor of 24)",
			interval:  "5h",
			wantError: true,
		},
		{
			name:      "invalid cron too few fields",
			interval:  "*/5 * * *",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Interval: tt.interval}
			err := v.Struct(cfg)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTimezoneValidator(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		timezone  string
		wantError bool
	}{
		{
			name:      "valid UTC",
			timezone:  "UTC",
			wantError: false,
		},
		{
			name:      "valid America/New_York",
			timezone:  "America/New_York",
			wantError: false,
		},
		{
			name:      "valid Europe/Paris",
			timezone:  "Europe/Paris",
			wantError: false,
		},
		{
			name:      "empty timezone is valid (defaults to UTC)",
			timezone:  "",
			wantError: false,
		},
		{
			name:      "invalid timezone",
			timezone:  "Invalid/Timezone",
			wantError: true,
		},
		{
			name:      "random string",
			timezone:  "NotATimezone",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Timezone: tt.timezone}
			err := v.Struct(cfg)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDecimalValidator(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		rate      string
		wantError bool
	}{
		{
			name:      "valid rate",
			rate:      "0.79",
			wantError: false,
		},
		{
			name:      "valid integer rate",
			rate:      "1",
			wantError: false,
		},
		{
			name:      "empty rate is valid (built-in default)",
			rate:      "",
			wantError: false,
		},
		{
			name:      "zero rate is invalid",
			rate:      "0",
			wantError: true,
		},
		{
			name:      "negative rate is invalid",
			rate:      "-0.5",
			wantError: true,
		},
		{
			name:      "not a number",
			rate:      "cheap",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{UsdGbpRate: tt.rate}
			err := v.Struct(cfg)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
