// Package config provides environment-variable-driven configuration
// for the server and client binaries, with fail-fast validation.
// Grounded on
// _examples/rjsadow-sortie/internal/config/config.go's
// Default-constants-plus-Load-plus-ValidationError shape.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ValidationError represents a single configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors holds multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Default values.
const (
	DefaultPort            = 8080
	DefaultMaxConnections  = 1000
	DefaultMaxPending      = 100
	DefaultAuthTimeout     = 3 * time.Second
	DefaultHeartbeat       = 5 * time.Second
	DefaultKeepalive       = 10 * time.Second
	DefaultRateLimitPeriod = 100 * time.Millisecond
	DefaultRateLimitCount  = 10
	DefaultMaxMessageSize  = 1 << 20
	DefaultAuditDBPath     = "simplenet-audit.db"
	DefaultJWTAccessExpiry = 15 * time.Minute
	DefaultAdminUsername   = "admin"
)

// AuthMode selects which Authenticator variant the server enforces.
type AuthMode string

const (
	AuthModeNone   AuthMode = "none"
	AuthModeSecret AuthMode = "secret"
	AuthModeToken  AuthMode = "token"
)

// ServerConfig holds the protocol server's runtime configuration.
type ServerConfig struct {
	Port int

	MaxConnections int
	MaxPending     int
	AuthTimeout    time.Duration
	HeartbeatInterval time.Duration
	KeepaliveTimeout  time.Duration
	RateLimitPeriod   time.Duration
	RateLimitCount    uint32
	MaxMessageSize    int64

	AuthMode      AuthMode
	Secret        string // hex-encoded 16 bytes, required when AuthMode == secret
	TokenPublicKey string // hex-encoded 32 bytes, required when AuthMode == token

	AuditDBPath string

	JWTSecret       string
	JWTAccessExpiry time.Duration
	AdminUsername   string
	AdminPasswordHash string
}

// Load reads ServerConfig from the environment, applying defaults for
// anything unset.
func Load() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Port:              getEnvInt("SIMPLENET_PORT", DefaultPort),
		MaxConnections:    getEnvInt("SIMPLENET_MAX_CONNECTIONS", DefaultMaxConnections),
		MaxPending:        getEnvInt("SIMPLENET_MAX_PENDING", DefaultMaxPending),
		AuthTimeout:       getEnvDuration("SIMPLENET_AUTH_TIMEOUT", DefaultAuthTimeout),
		HeartbeatInterval: getEnvDuration("SIMPLENET_HEARTBEAT_INTERVAL", DefaultHeartbeat),
		KeepaliveTimeout:  getEnvDuration("SIMPLENET_KEEPALIVE_TIMEOUT", DefaultKeepalive),
		RateLimitPeriod:   getEnvDuration("SIMPLENET_RATE_LIMIT_PERIOD", DefaultRateLimitPeriod),
		RateLimitCount:    uint32(getEnvInt("SIMPLENET_RATE_LIMIT_COUNT", DefaultRateLimitCount)),
		MaxMessageSize:    int64(getEnvInt("SIMPLENET_MAX_MESSAGE_SIZE", DefaultMaxMessageSize)),
		AuthMode:          AuthMode(getEnvString("SIMPLENET_AUTH_MODE", string(AuthModeNone))),
		Secret:            os.Getenv("SIMPLENET_AUTH_SECRET"),
		TokenPublicKey:    os.Getenv("SIMPLENET_AUTH_TOKEN_PUBLIC_KEY"),
		AuditDBPath:       getEnvString("SIMPLENET_AUDIT_DB_PATH", DefaultAuditDBPath),
		JWTSecret:         os.Getenv("SIMPLENET_ADMIN_JWT_SECRET"),
		JWTAccessExpiry:   getEnvDuration("SIMPLENET_ADMIN_JWT_EXPIRY", DefaultJWTAccessExpiry),
		AdminUsername:     getEnvString("SIMPLENET_ADMIN_USERNAME", DefaultAdminUsername),
		AdminPasswordHash: os.Getenv("SIMPLENET_ADMIN_PASSWORD_HASH"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate aggregates every configuration problem instead of failing
// on the first one, matching the teacher's ValidationErrors pattern.
func (c *ServerConfig) Validate() error {
	var errs ValidationErrors
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, ValidationError{"Port", "must be between 1 and 65535"})
	}
	if c.MaxConnections <= 0 {
		errs = append(errs, ValidationError{"MaxConnections", "must be positive"})
	}
	switch c.AuthMode {
	case AuthModeNone:
	case AuthModeSecret:
		if c.Secret == "" {
			errs = append(errs, ValidationError{"Secret", "required when AuthMode is secret"})
		}
	case AuthModeToken:
		if c.TokenPublicKey == "" {
			errs = append(errs, ValidationError{"TokenPublicKey", "required when AuthMode is token"})
		}
	default:
		errs = append(errs, ValidationError{"AuthMode", fmt.Sprintf("unknown auth mode %q", c.AuthMode)})
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errs = append(errs, ValidationError{"JWTSecret", "must be at least 32 bytes when set"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ClientConfig holds a protocol client's runtime configuration.
type ClientConfig struct {
	URL               string
	Reconnect         bool
	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration
	KeepaliveTimeout  time.Duration
}

// LoadClient reads ClientConfig from the environment.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{
		URL:               getEnvString("SIMPLENET_CLIENT_URL", "ws://localhost:8080/ws"),
		Reconnect:         getEnvBool("SIMPLENET_CLIENT_RECONNECT", true),
		ReconnectDelay:    getEnvDuration("SIMPLENET_CLIENT_RECONNECT_DELAY", time.Second),
		HeartbeatInterval: getEnvDuration("SIMPLENET_HEARTBEAT_INTERVAL", DefaultHeartbeat),
		KeepaliveTimeout:  getEnvDuration("SIMPLENET_KEEPALIVE_TIMEOUT", DefaultKeepalive),
	}
	if cfg.URL == "" {
		return nil, ValidationErrors{{"URL", "must not be empty"}}
	}
	return cfg, nil
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
