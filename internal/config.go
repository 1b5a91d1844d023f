package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env         string
	LogLevel    string
	Port        uint16
	DatabaseUrl string
	NatsUrl     string
	Cart        CartConfig
	Shipping    ShippingConfig
	Tax         TaxConfig
}

// CartConfig holds cart behavior toggles.
type CartConfig struct {
	// InventoryEnabled turns cross-item stock validation on.
	InventoryEnabled bool
}

// ShippingConfig configures the flat-rate shipping estimator.
type ShippingConfig struct {
	// FlatRate is the standard shipping charge.
	FlatRate decimal.Decimal

	// FreeThreshold waives shipping once the order subtotal reaches it.
	// Zero disables free shipping.
	FreeThreshold decimal.Decimal
}

// TaxConfig configures the percentage tax calculator.
type TaxConfig struct {
	// Rate is fractional, e.g. 0.08 for 8%. Zero disables tax.
	Rate decimal.Decimal

	// TaxShipping applies the rate to the shipping charge as well.
	TaxShipping bool
}

func NewConfig() (*Config, error) {
	// Try to load .env from current directory, then walk up to find it (max 2 levels)
	err := godotenv.Load()
	if err != nil {
		dir, _ := os.Getwd()
		found := false
		for i := 0; i < 2; i++ {
			dir = filepath.Join(dir, "..")
			if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
				found = true
				break
			}
		}
		if !found {
			slog.Default().Warn("Warning: .env file not found, using environment variables and defaults")
		}
	}

	cfg := &Config{
		Env:         getEnv("ENV", "dev"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Port:        getEnvInt("PORT", 3000),
		DatabaseUrl: getEnv("DATABASE_URL", ""),
		NatsUrl:     getEnv("NATS_URL", ""),
		Cart: CartConfig{
			InventoryEnabled: getEnvBool("INVENTORY_ENABLED", true),
		},
		Shipping: ShippingConfig{
			FlatRate:      getEnvDecimal("SHIPPING_FLAT_RATE", "7.95"),
			FreeThreshold: getEnvDecimal("FREE_SHIPPING_THRESHOLD", "0"),
		},
		Tax: TaxConfig{
			Rate:        getEnvDecimal("TAX_RATE", "0"),
			TaxShipping: getEnvBool("TAX_SHIPPING", false),
		},
	}

	// Validate env
	validEnv := cfg.Env == "dev" || cfg.Env == "prod"
	if !validEnv {
		slog.Default().Warn("Invalid environment. Using default: prod", slog.String("env", cfg.Env))
		cfg.Env = "prod"
	}

	// Validate log level
	validLevel := cfg.LogLevel == "info" || cfg.LogLevel == "debug" || cfg.LogLevel == "warn" || cfg.LogLevel == "error"
	if !validLevel {
		slog.Default().Warn("Invalid log level. Using default: info", slog.String("value", cfg.LogLevel))
		cfg.LogLevel = "info"
	}

	if cfg.Tax.Rate.IsNegative() || cfg.Tax.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("TAX_RATE must be a fraction between 0 and 1, got %s", cfg.Tax.Rate)
	}
	if cfg.Shipping.FlatRate.IsNegative() {
		return nil, fmt.Errorf("SHIPPING_FLAT_RATE must not be negative, got %s", cfg.Shipping.FlatRate)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue uint16) uint16 {
	if value := os.Getenv(key); value != "" {
		var intValue uint16
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
		slog.Default().Warn("Invalid decimal value. Using default", slog.String("key", key), slog.String("value", value))
	}
	d, _ := decimal.NewFromString(defaultValue)
	return d
}
