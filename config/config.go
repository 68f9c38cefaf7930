// Package config handles loading and managing application configuration.
package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Persistence configuration
	Database DatabaseConfig

	// Gateway configuration; a gateway without credentials is left disabled
	PhonePe PhonePeConfig
	SBIePay SBIePayConfig

	// Thank-you e-mail delivery
	Notification NotificationConfig

	// Security settings
	Security SecurityConfig

	// Deployment values used in redirects and e-mails
	App AppConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `validate:"required,numeric"`
	GinMode         string        `validate:"oneof=debug release test"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// DatabaseConfig selects and configures the store.
type DatabaseConfig struct {
	Driver        string `validate:"oneof=postgres mongo"`
	URL           string `validate:"required_if=Driver postgres"`
	LogLevel      string `validate:"oneof=silent error warn info"`
	MongoURI      string `validate:"required_if=Driver mongo"`
	MongoDatabase string `validate:"required_if=Driver mongo"`
}

// PhonePeConfig holds PhonePe checkout credentials.
type PhonePeConfig struct {
	ClientID      string
	ClientSecret  string `validate:"required_with=ClientID"`
	ClientVersion int    `validate:"gte=1"`
	Env           string `validate:"oneof=sandbox production"`
	ExpirySeconds int    `validate:"gte=300,lte=3600"`
	Timeout       time.Duration
}

// Enabled reports whether PhonePe credentials were provided.
func (c PhonePeConfig) Enabled() bool {
	return c.ClientID != ""
}

// SBIePayConfig holds SBIePay aggregator settings.
type SBIePayConfig struct {
	MerchantID      string
	EncryptionKey   string `validate:"omitempty,len=32"`
	AggregatorID    string
	SuccessURL      string `validate:"omitempty,url"`
	FailURL         string `validate:"omitempty,url"`
	GatewayURL      string `validate:"omitempty,url"`
	DVQueryURL      string `validate:"omitempty,url"`
	Checksum        string `validate:"oneof=none sha256 sha512"`
	Timeout         time.Duration
	VerifyCallbacks bool
}

// Enabled reports whether an SBIePay merchant was configured.
func (c SBIePayConfig) Enabled() bool {
	return c.MerchantID != ""
}

// NotificationConfig holds SES settings. No sender disables e-mail.
type NotificationConfig struct {
	AWSRegion   string `validate:"required_with=SenderEmail"`
	SenderEmail string `validate:"omitempty,email"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	ServiceJWTSecret string // HS256 secret for service-to-service calls (optional)
}

// AppConfig holds public-facing deployment values.
type AppConfig struct {
	BackendDomain    string `validate:"required,url"`
	FrontendDomain   string `validate:"required,url"`
	OrganizationName string `validate:"required"`
	ContactEmail     string `validate:"omitempty,email"`
}

// Load reads configuration from environment variables, after a .env file when one exists.
// Returns a Config struct with all settings populated.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			GinMode:         getEnv("GIN_MODE", "debug"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Driver:        getEnv("STORE_DRIVER", "postgres"),
			URL:           getEnv("DATABASE_URL", ""),
			LogLevel:      getEnv("DB_LOG_LEVEL", "warn"),
			MongoURI:      getEnv("MONGO_URI", ""),
			MongoDatabase: getEnv("MONGO_DATABASE", "donations"),
		},
		PhonePe: PhonePeConfig{
			ClientID:      getEnv("PHONEPE_CLIENT_ID", ""),
			ClientSecret:  getEnv("PHONEPE_CLIENT_SECRET", ""),
			ClientVersion: getEnvInt("PHONEPE_CLIENT_VERSION", 1),
			Env:           strings.ToLower(getEnv("PHONEPE_ENV", "sandbox")),
			ExpirySeconds: getEnvInt("PHONEPE_PAYMENT_EXPIRY_SECONDS", 1200),
			Timeout:       getEnvDuration("PHONEPE_TIMEOUT", 30*time.Second),
		},
		SBIePay: SBIePayConfig{
			MerchantID:      getEnv("SBIEPAY_MERCHANT_ID", ""),
			EncryptionKey:   getEnv("SBIEPAY_ENCRYPTION_KEY", ""),
			AggregatorID:    getEnv("SBIEPAY_AGGREGATOR_ID", "SBIEPAY"),
			SuccessURL:      getEnv("SBIEPAY_SUCCESS_URL", ""),
			FailURL:         getEnv("SBIEPAY_FAIL_URL", ""),
			GatewayURL:      getEnv("SBIEPAY_GATEWAY_URL", ""),
			DVQueryURL:      getEnv("SBIEPAY_DV_QUERY_URL", ""),
			Checksum:        strings.ToLower(getEnv("SBIEPAY_CHECKSUM", "none")),
			Timeout:         getEnvDuration("SBIEPAY_TIMEOUT", 15*time.Second),
			VerifyCallbacks: getEnvBool("SBIEPAY_VERIFY_CALLBACKS", true),
		},
		Notification: NotificationConfig{
			AWSRegion:   getEnv("AWS_REGION", "ap-south-1"),
			SenderEmail: getEnv("SES_SENDER_EMAIL", ""),
		},
		Security: SecurityConfig{
			ServiceJWTSecret: getEnv("SERVICE_JWT_SECRET", ""),
		},
		App: AppConfig{
			BackendDomain:    strings.TrimRight(getEnv("BACKEND_DOMAIN", "http://localhost:8080"), "/"),
			FrontendDomain:   strings.TrimRight(getEnv("FRONTEND_DOMAIN", "http://localhost:3000"), "/"),
			OrganizationName: getEnv("ORGANIZATION_NAME", "Sukrutha Keralam"),
			ContactEmail:     getEnv("CONTACT_EMAIL", ""),
		},
	}
}

var validate = validator.New()

// Validate checks that required configuration values are set and well formed.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !c.PhonePe.Enabled() && !c.SBIePay.Enabled() {
		return fmt.Errorf("invalid configuration: no payment gateway configured")
	}
	if c.SBIePay.Enabled() {
		missing := []string{}
		for name, v := range map[string]string{
			"SBIEPAY_ENCRYPTION_KEY": c.SBIePay.EncryptionKey,
			"SBIEPAY_SUCCESS_URL":    c.SBIePay.SuccessURL,
			"SBIEPAY_FAIL_URL":       c.SBIePay.FailURL,
			"SBIEPAY_GATEWAY_URL":    c.SBIePay.GatewayURL,
			"SBIEPAY_DV_QUERY_URL":   c.SBIePay.DVQueryURL,
		} {
			if v == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("invalid configuration: SBIePay needs %s", strings.Join(missing, ", "))
		}
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer with a fallback.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean with a fallback.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15s") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
