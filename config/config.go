// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server          ServerConfig
	DB              DBConfig
	Storage         StorageConfig
	Session         SessionConfig
	LLM             LLMConfig
	Payment         PaymentConfig
	Stripe          StripeConfig
	Telegram        TelegramConfig
	Admin           AdminConfig
	CORS            CORSConfig
	Log             LogConfig
	ShutdownTimeout time.Duration
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
	ConnRetries  int
}

// StorageConfig selects the store implementation: "postgres" or "memory".
type StorageConfig struct {
	Driver string
}

type SessionConfig struct {
	Secret     string
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// LLMConfig points at any OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	ProModel     string
	MaxTokens    int
	ProMaxTokens int
	Temperature  float32
	Timeout      time.Duration
}

type PaymentConfig struct {
	UPIID           string
	PayeeName       string
	ContactEmail    string
	Currency        string
	ProAmount       int64
	PerExportAmount int64
}

type StripeConfig struct {
	SecretKey  string
	PublicKey  string
	WebhookKey string
	ProductID  string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

type TelegramConfig struct {
	Token       string
	AdminChatID int64
}

// AdminConfig lists emails that receive the admin role when they register.
type AdminConfig struct {
	Emails []string
}

type CORSConfig struct {
	AllowOrigins []string
}

type LogConfig struct {
	Development bool
}

// Load loads the configuration
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.tripplanner")

	setDefaults(v)

	// DB.HOST is overridable by DB_HOST and so on.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Process any ${ENV_VAR} syntax in the config values
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			if envValue := os.Getenv(envVar); envValue != "" {
				v.Set(key, envValue)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ShutdownTimeout", 10*time.Second)

	v.SetDefault("Server.Port", "8080")
	v.SetDefault("Server.ReadTimeout", 10*time.Second)
	v.SetDefault("Server.WriteTimeout", 90*time.Second)
	v.SetDefault("Server.IdleTimeout", 120*time.Second)

	v.SetDefault("DB.Host", "localhost")
	v.SetDefault("DB.Port", "5432")
	v.SetDefault("DB.User", "postgres")
	v.SetDefault("DB.Password", "postgres")
	v.SetDefault("DB.DBName", "tripplanner")
	v.SetDefault("DB.SSLMode", "disable")
	v.SetDefault("DB.MaxOpenConns", 20)
	v.SetDefault("DB.MaxIdleConns", 2)
	v.SetDefault("DB.ConnLifetime", 5*time.Minute)
	v.SetDefault("DB.ConnRetries", 5)

	v.SetDefault("Storage.Driver", "postgres")

	v.SetDefault("Session.Secret", "")
	v.SetDefault("Session.CookieName", "tripplanner_session")
	v.SetDefault("Session.TTL", 7*24*time.Hour)
	v.SetDefault("Session.Secure", false)

	v.SetDefault("LLM.APIKey", "")
	v.SetDefault("LLM.BaseURL", "https://api.groq.com/openai/v1")
	v.SetDefault("LLM.Model", "llama-3.1-8b-instant")
	v.SetDefault("LLM.ProModel", "llama-3.3-70b-versatile")
	v.SetDefault("LLM.MaxTokens", 3000)
	v.SetDefault("LLM.ProMaxTokens", 5500)
	v.SetDefault("LLM.Temperature", 0.7)
	v.SetDefault("LLM.Timeout", 60*time.Second)

	v.SetDefault("Payment.UPIID", "")
	v.SetDefault("Payment.PayeeName", "TripPlanner")
	v.SetDefault("Payment.ContactEmail", "")
	v.SetDefault("Payment.Currency", "INR")
	v.SetDefault("Payment.ProAmount", 499)
	v.SetDefault("Payment.PerExportAmount", 99)

	v.SetDefault("Stripe.SecretKey", "")
	v.SetDefault("Stripe.PublicKey", "")
	v.SetDefault("Stripe.WebhookKey", "")
	v.SetDefault("Stripe.ProductID", "")
	v.SetDefault("Stripe.PriceID", "")
	v.SetDefault("Stripe.SuccessURL", "http://localhost:8080/payment?status=success")
	v.SetDefault("Stripe.CancelURL", "http://localhost:8080/payment?status=cancel")

	v.SetDefault("Telegram.Token", "")
	v.SetDefault("Telegram.AdminChatID", 0)

	v.SetDefault("Admin.Emails", []string{})
	v.SetDefault("CORS.AllowOrigins", []string{"*"})
	v.SetDefault("Log.Development", false)
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return errors.New("SESSION_SECRET is not configured")
	}
	if len(c.Session.Secret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters")
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Payment.UPIID == "" {
		return errors.New("PAYMENT_UPIID is not configured")
	}
	if c.Payment.ProAmount <= 0 || c.Payment.PerExportAmount <= 0 {
		return errors.New("payment amounts must be positive")
	}
	return nil
}

// StripeEnabled reports whether card checkout is configured.
func (c *Config) StripeEnabled() bool {
	return c.Stripe.SecretKey != "" && c.Stripe.WebhookKey != ""
}

// TelegramEnabled reports whether admin alerts go to Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.Token != "" && c.Telegram.AdminChatID != 0
}

// DSN builds the pgx connection string.
func (d DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode, d.MaxOpenConns,
	)
}
