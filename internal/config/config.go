package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// AppName identifies the service in log lines.
const AppName = "paycollect"

const (
	defaultPort          = "3000"
	defaultAPIHost       = "api.tink.com"
	defaultLinkBaseURL   = "https://link.tink.com/1.0"
	defaultCurrency      = "EUR"
	defaultMarket        = "ES"
	defaultPaymentScheme = "SEPA_CREDIT_TRANSFER"
	defaultLocale        = "es_ES"
	defaultInputProvider = "es-demobank-open-banking-embedded"
	defaultSessionTTL    = 24 * time.Hour
	defaultSweepInterval = 10 * time.Minute
	defaultClientTimeout = 30 * time.Second
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port string

	TinkClientID      string
	TinkClientSecret  string
	TinkAPIBaseURL    string
	TinkLinkBaseURL   string
	TinkLocale        string
	TinkInputProvider string
	PaymentScheme     string
	DefaultCurrency   string
	DefaultMarket     string

	SendgridAPIKey string
	MailFromName   string
	MailFromEmail  string

	// PublicBaseURL pins the callback base. Empty means it is derived from the Host header.
	PublicBaseURL string

	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	HTTPClientTimeout    time.Duration

	CORSAllowedOrigins []string
}

var requiredVars = []string{
	"TINK_CLIENT_ID",
	"TINK_CLIENT_SECRET",
	"SENDGRID_API_KEY",
	"MAIL_FROM_NAME",
	"MAIL_FROM_EMAIL",
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv. Every missing required variable
// is reported in a single error.
func LoadFrom(getenv func(string) string) (*Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	var missing []string
	for _, key := range requiredVars {
		if get(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	cfg := &Config{
		Port:              withDefault(get("SERVER_PORT"), defaultPort),
		TinkClientID:      get("TINK_CLIENT_ID"),
		TinkClientSecret:  get("TINK_CLIENT_SECRET"),
		TinkAPIBaseURL:    apiBaseURL(withDefault(get("TINK_API_HOST"), defaultAPIHost)),
		TinkLinkBaseURL:   strings.TrimSuffix(withDefault(get("TINK_LINK_BASE_URL"), defaultLinkBaseURL), "/"),
		TinkLocale:        withDefault(get("TINK_LOCALE"), defaultLocale),
		TinkInputProvider: withDefault(get("TINK_INPUT_PROVIDER"), defaultInputProvider),
		PaymentScheme:     withDefault(get("PAYMENT_SCHEME"), defaultPaymentScheme),
		DefaultCurrency:   withDefault(get("DEFAULT_CURRENCY"), defaultCurrency),
		DefaultMarket:     withDefault(get("DEFAULT_MARKET"), defaultMarket),
		SendgridAPIKey:    get("SENDGRID_API_KEY"),
		MailFromName:      get("MAIL_FROM_NAME"),
		MailFromEmail:     get("MAIL_FROM_EMAIL"),
		PublicBaseURL:     strings.TrimSuffix(get("PUBLIC_BASE_URL"), "/"),
	}

	var err error
	if cfg.SessionTTL, err = durationOr(get("SESSION_TTL"), defaultSessionTTL); err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}
	if cfg.SessionSweepInterval, err = durationOr(get("SESSION_SWEEP_INTERVAL"), defaultSweepInterval); err != nil {
		return nil, fmt.Errorf("SESSION_SWEEP_INTERVAL: %w", err)
	}
	if cfg.HTTPClientTimeout, err = durationOr(get("HTTP_CLIENT_TIMEOUT"), defaultClientTimeout); err != nil {
		return nil, fmt.Errorf("HTTP_CLIENT_TIMEOUT: %w", err)
	}

	for _, origin := range strings.Split(get("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	return cfg, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// apiBaseURL accepts either a bare host or a full URL.
func apiBaseURL(host string) string {
	if strings.Contains(host, "://") {
		return strings.TrimSuffix(host, "/")
	}
	return "https://" + strings.TrimSuffix(host, "/")
}

func durationOr(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", v)
	}
	return d, nil
}
