package petchat

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// maxMessageRetries caps how often a queued message is retried during drains.
	maxMessageRetries = 3

	defaultAPIURL     = "http://localhost:5000"
	defaultSocketPath = "/ws"
)

// ReconnectionConfig controls automatic reconnection.
type ReconnectionConfig struct {
	Enabled           bool
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	MaxAttempts       int
	BackoffMultiplier float64
}

// DefaultReconnectionConfig returns the reconnection defaults.
func DefaultReconnectionConfig() ReconnectionConfig {
	return ReconnectionConfig{
		Enabled:           true,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		MaxAttempts:       5,
		BackoffMultiplier: 2,
	}
}

// withDefaults fills zero-valued fields from DefaultReconnectionConfig.
// Enabled is taken as is.
func (rc ReconnectionConfig) withDefaults() ReconnectionConfig {
	def := DefaultReconnectionConfig()
	if rc.InitialDelay <= 0 {
		rc.InitialDelay = def.InitialDelay
	}
	if rc.MaxDelay <= 0 {
		rc.MaxDelay = def.MaxDelay
	}
	if rc.MaxAttempts <= 0 {
		rc.MaxAttempts = def.MaxAttempts
	}
	if rc.BackoffMultiplier <= 0 {
		rc.BackoffMultiplier = def.BackoffMultiplier
	}
	return rc
}

// Delay returns the backoff before the given 1-based attempt:
// min(InitialDelay * BackoffMultiplier^(attempt-1), MaxDelay).
func (rc ReconnectionConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(rc.InitialDelay) * math.Pow(rc.BackoffMultiplier, float64(attempt-1))
	if d > float64(rc.MaxDelay) || math.IsInf(d, 0) || math.IsNaN(d) {
		return rc.MaxDelay
	}
	return time.Duration(d)
}

// Config controls how the SDK talks to the chat backend.
type Config struct {
	APIURL     string
	SocketURL  string // defaults to APIURL
	SocketPath string
	Debug      bool
	Headers    map[string]HeaderValue

	Reconnection       ReconnectionConfig
	EnableMessageQueue bool
	MaxQueueSize       int

	HTTPTimeout      time.Duration
	HandshakeTimeout time.Duration

	// CacheTTL < 0 disables the conversation and message caches.
	CacheTTL  time.Duration
	CacheSize int

	// TypingRateLimit is the minimum spacing between typing_start emits; 0 disables throttling.
	TypingRateLimit time.Duration
}

// DefaultConfig returns sensible defaults.
// Use it as a starting point and modify as needed.
func DefaultConfig() Config {
	return Config{
		APIURL:             defaultAPIURL,
		SocketPath:         defaultSocketPath,
		Reconnection:       DefaultReconnectionConfig(),
		EnableMessageQueue: true,
		MaxQueueSize:       100,
		HTTPTimeout:        30 * time.Second,
		HandshakeTimeout:   10 * time.Second,
		CacheTTL:           5 * time.Minute,
		CacheSize:          256,
		TypingRateLimit:    time.Second,
	}
}

// resolved returns a copy with derived fields and reconnection defaults filled in.
func (c Config) resolved() Config {
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
	if c.SocketURL == "" {
		c.SocketURL = c.APIURL
	}
	if c.SocketPath == "" {
		c.SocketPath = defaultSocketPath
	}
	if c.MaxQueueSize < 0 {
		c.MaxQueueSize = 0
	}
	c.Reconnection = c.Reconnection.withDefaults()
	headers := make(map[string]HeaderValue, len(c.Headers))
	for k, v := range c.Headers {
		headers[k] = v
	}
	c.Headers = headers
	return c
}

// Validate reports every problem found in the configuration.
func (c Config) Validate() error {
	var errs []error

	for name, raw := range map[string]string{"APIURL": c.APIURL, "SocketURL": c.SocketURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}
	if c.MaxQueueSize < 0 {
		errs = append(errs, errors.New("MaxQueueSize must be >= 0"))
	}
	rc := c.Reconnection
	if rc.InitialDelay < 0 || rc.MaxDelay < 0 {
		errs = append(errs, errors.New("reconnection delays must be >= 0"))
	}
	if rc.InitialDelay > 0 && rc.MaxDelay > 0 && rc.InitialDelay > rc.MaxDelay {
		errs = append(errs, fmt.Errorf("reconnection InitialDelay (%s) must be <= MaxDelay (%s)", rc.InitialDelay, rc.MaxDelay))
	}
	if rc.BackoffMultiplier != 0 && rc.BackoffMultiplier < 1 {
		errs = append(errs, fmt.Errorf("reconnection BackoffMultiplier must be >= 1, got %v", rc.BackoffMultiplier))
	}
	if c.HTTPTimeout < 0 || c.HandshakeTimeout < 0 {
		errs = append(errs, errors.New("timeouts must be >= 0"))
	}

	if len(errs) == 0 {
		return nil
	}
	return WrapError(ErrorInvalidConfig, "invalid configuration", errors.Join(errs...))
}

// envConfig mirrors the environment-settable subset of Config.
type envConfig struct {
	APIURL     string `env:"API_URL"`
	SocketURL  string `env:"SOCKET_URL"`
	SocketPath string `env:"SOCKET_PATH"`
	Debug      bool   `env:"DEBUG"`
	AuthToken  string `env:"AUTH_TOKEN"`

	ReconnectEnabled     bool          `env:"RECONNECT_ENABLED"      envDefault:"true"`
	ReconnectInitial     time.Duration `env:"RECONNECT_INITIAL_DELAY"`
	ReconnectMax         time.Duration `env:"RECONNECT_MAX_DELAY"`
	ReconnectMaxAttempts int           `env:"RECONNECT_MAX_ATTEMPTS"`
	ReconnectMultiplier  float64       `env:"RECONNECT_BACKOFF_MULTIPLIER"`

	EnableMessageQueue bool `env:"ENABLE_MESSAGE_QUEUE" envDefault:"true"`
	MaxQueueSize       int  `env:"MAX_QUEUE_SIZE"       envDefault:"100"`

	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT"      envDefault:"30s"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"10s"`
	CacheTTL         time.Duration `env:"CACHE_TTL"         envDefault:"5m"`
	CacheSize        int           `env:"CACHE_SIZE"        envDefault:"256"`
	TypingRateLimit  time.Duration `env:"TYPING_RATE_LIMIT" envDefault:"1s"`
}

// ConfigFromEnv builds a Config from DefaultConfig and PETCHAT_* environment variables.
// PETCHAT_AUTH_TOKEN, when set, becomes a static Authorization bearer header.
func ConfigFromEnv() (Config, error) {
	var ec envConfig
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: "PETCHAT_"}); err != nil {
		return Config{}, WrapError(ErrorInvalidConfig, "parse environment", err)
	}

	cfg := DefaultConfig()
	if ec.APIURL != "" {
		cfg.APIURL = ec.APIURL
	}
	cfg.SocketURL = ec.SocketURL
	if ec.SocketPath != "" {
		cfg.SocketPath = ec.SocketPath
	}
	cfg.Debug = ec.Debug
	if ec.AuthToken != "" {
		cfg.Headers = map[string]HeaderValue{"Authorization": StaticHeader("Bearer " + ec.AuthToken)}
	}
	cfg.Reconnection = ReconnectionConfig{
		Enabled:           ec.ReconnectEnabled,
		InitialDelay:      ec.ReconnectInitial,
		MaxDelay:          ec.ReconnectMax,
		MaxAttempts:       ec.ReconnectMaxAttempts,
		BackoffMultiplier: ec.ReconnectMultiplier,
	}.withDefaults()
	cfg.EnableMessageQueue = ec.EnableMessageQueue
	cfg.MaxQueueSize = ec.MaxQueueSize
	cfg.HTTPTimeout = ec.HTTPTimeout
	cfg.HandshakeTimeout = ec.HandshakeTimeout
	cfg.CacheTTL = ec.CacheTTL
	cfg.CacheSize = ec.CacheSize
	cfg.TypingRateLimit = ec.TypingRateLimit

	return cfg, cfg.Validate()
}
