package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"

	"gpu-market/internal/gpumarket"
	"gpu-market/internal/gpumarket/data/database"
	"gpu-market/internal/gpumarket/handlers"
	"gpu-market/internal/gpumarket/notifier"
	"gpu-market/internal/gpumarket/ordersync"
	"gpu-market/internal/gpumarket/partner"
	"gpu-market/internal/gpumarket/payments"
)

const (
	sessionTTL = 7 * 24 * time.Hour
)

type option struct {
	flag  string
	env   string
	def   string
	usage string
}

var (
	serverAddressOption   = option{"address", "RUN_ADDRESS", "localhost:8080", "Server address host:port"}
	dbConnectionOption    = option{"database-uri", "DATABASE_URI", "", "PostgreSQL connection string"}
	partnerAddressOption  = option{"partner-url", "PARTNER_API_URL", "https://celiumcompute.ai", "Partner compute API base URL"}
	partnerKeyOption      = option{"partner-key", "PARTNER_API_KEY", "", "Partner compute API key"}
	stripeKeyOption       = option{"stripe-key", "STRIPE_SECRET_KEY", "", "Stripe secret key"}
	stripeWebhookOption   = option{"stripe-webhook-secret", "STRIPE_WEBHOOK_SECRET", "", "Stripe webhook signing secret"}
	coinbaseKeyOption     = option{"coinbase-key", "COINBASE_COMMERCE_API_KEY", "", "Coinbase Commerce API key"}
	coinbaseWebhookOption = option{"coinbase-webhook-secret", "COINBASE_WEBHOOK_SECRET", "", "Coinbase Commerce webhook secret"}
	jwtSecretOption       = option{"jwt-secret", "JWT_SECRET", "", "Secret used to sign session tokens"}
	publicBaseURLOption   = option{"public-url", "PUBLIC_BASE_URL", "http://localhost:3000", "Public base URL for payment redirects"}
	smtpHostOption        = option{"smtp-host", "SMTP_HOST", "", "SMTP host"}
	smtpPortOption        = option{"smtp-port", "SMTP_PORT", "587", "SMTP port"}
	smtpUserOption        = option{"smtp-user", "SMTP_USER", "", "SMTP user"}
	smtpPasswordOption    = option{"smtp-pass", "SMTP_PASS", "", "SMTP password"}
	smtpFromOption        = option{"smtp-from", "SMTP_FROM", "", "Sender address of notification emails"}
	redisURLOption        = option{"redis-url", "REDIS_URL", "", "Redis URL for the offer cache, empty disables it"}
	logLevelOption        = option{"log-level", "LOG_LEVEL", "info", "Log level"}
	logFormatOption       = option{"log-format", "LOG_FORMAT", "json", "Log encoding, json or console"}
	cookieSecureOption    = option{"cookie-secure", "COOKIE_SECURE", "false", "Set the Secure attribute on the session cookie"}
	allOptions            = []option{
		serverAddressOption,
		dbConnectionOption,
		partnerAddressOption,
		partnerKeyOption,
		stripeKeyOption,
		stripeWebhookOption,
		coinbaseKeyOption,
		coinbaseWebhookOption,
		jwtSecretOption,
		publicBaseURLOption,
		smtpHostOption,
		smtpPortOption,
		smtpUserOption,
		smtpPasswordOption,
		smtpFromOption,
		redisURLOption,
		logLevelOption,
		logFormatOption,
		cookieSecureOption,
	}
)

type Config struct {
	Server        gpumarket.Config
	JWTConfig     JWTConfig
	DB            database.Config
	Partner       partner.Config
	Stripe        payments.StripeConfig
	Coinbase      payments.CoinbaseConfig
	SMTP          notifier.Config
	OrderSync     ordersync.Config
	PublicBaseURL string
	RedisURL      string
	LogLevel      zapcore.Level
	LogFormat     string
}

type JWTConfig struct {
	Algorithm      string
	Secret         string
	ExpirationTime time.Duration
}

// RegisterFlags adds every option to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, o := range allOptions {
		fs.String(o.flag, o.def, fmt.Sprintf("%s (env %s)", o.usage, o.env))
	}
}

// Load reads the flags registered by RegisterFlags. Environment variables
// win over flags.
func Load(fs *pflag.FlagSet) (*Config, error) {
	get := func(o option) string {
		if valStr, ok := os.LookupEnv(o.env); ok {
			return valStr
		}
		val, err := fs.GetString(o.flag)
		if err != nil {
			return o.def
		}
		return val
	}

	smtpPort, err := strconv.Atoi(get(smtpPortOption))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", smtpPortOption.env, err)
	}
	cookieSecure, err := strconv.ParseBool(get(cookieSecureOption))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", cookieSecureOption.env, err)
	}
	logLevel, err := zapcore.ParseLevel(get(logLevelOption))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", logLevelOption.env, err)
	}
	jwtSecret := get(jwtSecretOption)
	if jwtSecret == "" {
		return nil, fmt.Errorf("%s must be set", jwtSecretOption.env)
	}

	return &Config{
		Server: gpumarket.Config{
			ServerAddress:   get(serverAddressOption),
			ShutdownTimeout: time.Second * 5,
			SessionCookie: handlers.SessionCookie{
				TTL:    sessionTTL,
				Secure: cookieSecure,
			},
		},
		JWTConfig: JWTConfig{
			Algorithm:      "HS256",
			Secret:         jwtSecret,
			ExpirationTime: sessionTTL,
		},
		DB: database.Config{
			ConnectionString:   get(dbConnectionOption),
			RetryAttemptDelays: []time.Duration{time.Second, 3 * time.Second, 5 * time.Second},
		},
		Partner: partner.Config{
			ServerAddress: get(partnerAddressOption),
			APIKey:        get(partnerKeyOption),
			Timeout:       15 * time.Second,
		},
		Stripe: payments.StripeConfig{
			SecretKey:     get(stripeKeyOption),
			WebhookSecret: get(stripeWebhookOption),
		},
		Coinbase: payments.CoinbaseConfig{
			APIKey:        get(coinbaseKeyOption),
			WebhookSecret: get(coinbaseWebhookOption),
			Timeout:       15 * time.Second,
		},
		SMTP: notifier.Config{
			Host:     get(smtpHostOption),
			Port:     smtpPort,
			User:     get(smtpUserOption),
			Password: get(smtpPasswordOption),
			From:     get(smtpFromOption),
		},
		OrderSync: ordersync.Config{
			TickPeriod:        30 * time.Second,
			RequestTimeout:    10 * time.Second,
			WorkersCount:      4,
			TasksBufferLength: 32,
		},
		PublicBaseURL: get(publicBaseURLOption),
		RedisURL:      get(redisURLOption),
		LogLevel:      logLevel,
		LogFormat:     get(logFormatOption),
	}, nil
}
