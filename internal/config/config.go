package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string
	BaseURL  string

	DBDSN     string
	JWTSecret string

	// AdminKey is the shared secret accepted by the invite issuance endpoint.
	// Optional; when empty, only admin sessions can issue invites.
	AdminKey string

	// AdminEmails always resolve to the admin role regardless of stored
	// metadata. AdminDomain, when set, grants admin to any email under it.
	AdminEmails []string
	AdminDomain string

	LogLevel string

	RateLimitRPM int
	SessionDays  int

	InviteTTLDays int
	OTPTTLMinutes int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("VD_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("VD_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("VD_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("VD_HTTP_ADDR", ":8080")

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("VD_BASE_URL")), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("VD_BASE_URL is required")
	}

	cfg.DBDSN = strings.TrimSpace(os.Getenv("VD_DB_DSN"))
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("VD_DB_DSN is required")
	}

	cfg.JWTSecret = os.Getenv("VD_JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("VD_JWT_SECRET is required")
	}
	if cfg.Env == "prod" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("VD_JWT_SECRET must be at least 32 characters (currently %d)", len(cfg.JWTSecret))
	}

	cfg.AdminKey = strings.TrimSpace(os.Getenv("VD_ADMIN_KEY"))
	if cfg.Env == "prod" && cfg.AdminKey != "" && len(cfg.AdminKey) < 32 {
		return nil, fmt.Errorf("VD_ADMIN_KEY must be at least 32 characters (currently %d)", len(cfg.AdminKey))
	}

	for _, email := range strings.Split(os.Getenv("VD_ADMIN_EMAILS"), ",") {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			cfg.AdminEmails = append(cfg.AdminEmails, email)
		}
	}

	cfg.AdminDomain = strings.ToLower(strings.TrimSpace(os.Getenv("VD_ADMIN_DOMAIN")))

	cfg.LogLevel = getEnvOrDefault("VD_LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("VD_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	var err error
	cfg.RateLimitRPM, err = getEnvIntOrDefault("VD_RATE_LIMIT_RPM", 120)
	if err != nil {
		return nil, err
	}

	cfg.SessionDays, err = getEnvIntOrDefault("VD_SESSION_DAYS", 7)
	if err != nil {
		return nil, err
	}

	cfg.InviteTTLDays, err = getEnvIntOrDefault("VD_INVITE_TTL_DAYS", 7)
	if err != nil {
		return nil, err
	}
	if cfg.InviteTTLDays <= 0 {
		return nil, fmt.Errorf("VD_INVITE_TTL_DAYS must be positive (got: %d)", cfg.InviteTTLDays)
	}

	cfg.OTPTTLMinutes, err = getEnvIntOrDefault("VD_OTP_TTL_MINUTES", 10)
	if err != nil {
		return nil, err
	}
	if cfg.OTPTTLMinutes <= 0 {
		return nil, fmt.Errorf("VD_OTP_TTL_MINUTES must be positive (got: %d)", cfg.OTPTTLMinutes)
	}

	return cfg, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	adminKey := "(unset)"
	if c.AdminKey != "" {
		adminKey = "[REDACTED]"
	}
	return map[string]string{
		"VD_ENV":             c.Env,
		"VD_HTTP_ADDR":       c.HTTPAddr,
		"VD_BASE_URL":        c.BaseURL,
		"VD_DB_DSN":          redactDSN(c.DBDSN),
		"VD_JWT_SECRET":      "[REDACTED]",
		"VD_ADMIN_KEY":       adminKey,
		"VD_ADMIN_EMAILS":    strings.Join(c.AdminEmails, ","),
		"VD_ADMIN_DOMAIN":    c.AdminDomain,
		"VD_LOG_LEVEL":       c.LogLevel,
		"VD_RATE_LIMIT_RPM":  fmt.Sprintf("%d", c.RateLimitRPM),
		"VD_SESSION_DAYS":    fmt.Sprintf("%d", c.SessionDays),
		"VD_INVITE_TTL_DAYS": fmt.Sprintf("%d", c.InviteTTLDays),
		"VD_OTP_TTL_MINUTES": fmt.Sprintf("%d", c.OTPTTLMinutes),
	}
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}
