package config

import (
	"github.com/fluxr/airtime-widget/internal/domain"
	apperrors "github.com/fluxr/airtime-widget/internal/errors"
)

// Desktop launcher positions.
const (
	PositionBottomLeft  = "bottom-left"
	PositionBottomRight = "bottom-right"
)

// Gateway binding modes.
const (
	GatewayModeMock = "mock"
	GatewayModeHTTP = "http"
)

// Config holds runtime configuration for the airtime widget.
type Config struct {
	AppEnv   string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	SentryDSN string `mapstructure:"sentry_dsn"`
	HTTPPort  string `mapstructure:"http_port"`

	Widget  WidgetConfig  `mapstructure:"widget" validate:"required"`
	Gateway GatewayConfig `mapstructure:"gateway"`
}

// WidgetConfig is the recognized initialization surface of the widget.
type WidgetConfig struct {
	PublicKey          string           `mapstructure:"public_key" validate:"required"`
	DesktopPosition    string           `mapstructure:"desktop_position" validate:"omitempty,oneof=bottom-left bottom-right"`
	MobileMode         string           `mapstructure:"mobile_mode"`
	Theme              string           `mapstructure:"theme"`
	DefaultCountryCode string           `mapstructure:"default_country_code"`
	SupportedCountries []domain.Country `mapstructure:"supported_countries" validate:"omitempty,dive"`
}

// GatewayConfig selects and parameterizes the gateway binding.
type GatewayConfig struct {
	Mode    string `mapstructure:"mode" validate:"omitempty,oneof=mock http"`
	BaseURL string `mapstructure:"base_url" validate:"required_if=Mode http,omitempty,url"`
}

// applyDefaults fills optional fields the way the embedded widget would.
func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTPPort == "" {
		c.HTTPPort = "8080"
	}

	if c.Widget.DesktopPosition == "" {
		c.Widget.DesktopPosition = PositionBottomRight
	}
	if c.Widget.MobileMode == "" {
		c.Widget.MobileMode = "modal"
	}
	if c.Widget.Theme == "" {
		c.Widget.Theme = "fluxr"
	}
	if len(c.Widget.SupportedCountries) == 0 {
		c.Widget.SupportedCountries = domain.DefaultCountries()
	}
	if c.Widget.DefaultCountryCode == "" {
		c.Widget.DefaultCountryCode = "+263"
	}

	if c.Gateway.Mode == "" {
		c.Gateway.Mode = GatewayModeMock
	}
}

// check enforces the constraints struct tags cannot express. A missing or
// inconsistent widget configuration is fatal: initialization must abort.
func (c *Config) check() error {
	if c.Widget.PublicKey == "" {
		return apperrors.NewConfigurationError("publicKey is required")
	}

	if _, ok := domain.CountryByCode(c.Widget.SupportedCountries, c.Widget.DefaultCountryCode); !ok {
		return apperrors.NewConfigurationError(
			"defaultCountryCode " + c.Widget.DefaultCountryCode + " is not in supportedCountries")
	}

	return nil
}
