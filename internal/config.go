package internal

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Payment       PaymentConfig       `mapstructure:"payment"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	JWTPublicKey string `mapstructure:"jwt_public_key" validate:"required"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

type ProviderConfig struct {
	APIURL        string `mapstructure:"api_url"`
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type PaymentConfig struct {
	ActiveProvider      string                    `mapstructure:"active_provider"`
	PlatformFeePercent  float64                   `mapstructure:"platform_fee_percent"`
	AntiFraudHoldDays   int                       `mapstructure:"anti_fraud_hold_days"`
	MinPayoutAmount     int64                     `mapstructure:"min_payout_amount"`
	ChargeExpiryMinutes int                       `mapstructure:"charge_expiry_minutes"`
	ReleaseInterval     time.Duration             `mapstructure:"release_interval"`
	Providers           map[string]ProviderConfig `mapstructure:"providers"`
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// LoadConfigFromEnv builds a config entirely from environment variables, used
// in containerized deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", "http://localhost:8080"),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       60 * time.Second,
			WriteTimeout:      15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			JWTPublicKey: getEnv("JWT_PUBLIC_KEY", ""),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Payment: PaymentConfig{
			ActiveProvider:      getEnv("PAYMENT_ACTIVE_PROVIDER", "openpix"),
			PlatformFeePercent:  20,
			AntiFraudHoldDays:   getEnvAsInt("ANTI_FRAUD_HOLD_DAYS", 7),
			MinPayoutAmount:     int64(getEnvAsInt("MIN_PAYOUT_AMOUNT", 1000)),
			ChargeExpiryMinutes: getEnvAsInt("CHARGE_EXPIRY_MINUTES", 30),
			ReleaseInterval:     time.Hour,
			Providers: map[string]ProviderConfig{
				"openpix": {
					APIURL:        getEnv("OPENPIX_API_URL", ""),
					APIKey:        getEnv("OPENPIX_API_KEY", ""),
					WebhookSecret: getEnv("OPENPIX_WEBHOOK_SECRET", ""),
				},
				"abacatepay": {
					APIURL:        getEnv("ABACATEPAY_API_URL", ""),
					APIKey:        getEnv("ABACATEPAY_API_KEY", ""),
					WebhookSecret: getEnv("ABACATEPAY_WEBHOOK_SECRET", ""),
				},
				"starkpay": {
					APIURL:        getEnv("STARKPAY_API_URL", ""),
					APIKey:        getEnv("STARKPAY_API_KEY", ""),
					WebhookSecret: getEnv("STARKPAY_WEBHOOK_SECRET", ""),
				},
			},
		},
	}
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payment config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if _, err := c.GetPublicKey(); err != nil {
		return fmt.Errorf("invalid JWT public key: %w", err)
	}
	return nil
}

func (c *SecurityConfig) GetPublicKey() (*rsa.PublicKey, error) {
	keyData, err := base64.StdEncoding.DecodeString(c.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errors.New("failed to parse PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaPub, nil
}

func (c *PaymentConfig) Validate() error {
	if c.ActiveProvider == "" {
		return errors.New("active_provider is required")
	}
	if _, ok := c.Providers[c.ActiveProvider]; !ok {
		return fmt.Errorf("active_provider %q has no provider configuration", c.ActiveProvider)
	}
	if c.PlatformFeePercent < 0 || c.PlatformFeePercent > 100 {
		return errors.New("platform_fee_percent must be between 0 and 100")
	}
	if c.AntiFraudHoldDays < 0 {
		return errors.New("anti_fraud_hold_days cannot be negative")
	}
	if c.MinPayoutAmount <= 0 {
		return errors.New("min_payout_amount must be positive")
	}
	if c.ChargeExpiryMinutes <= 0 {
		return errors.New("charge_expiry_minutes must be positive")
	}
	if c.ReleaseInterval <= 0 {
		return errors.New("release_interval must be positive")
	}
	return nil
}
