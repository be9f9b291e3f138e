// Package config loads process configuration from the environment, with an
// optional .env file layered underneath.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "chatter-box-dev-secret"

type Config struct {
	Env  string
	Port string

	JWTSecret string
	TokenTTL  time.Duration

	DatabaseDSN string
	NodeID      int64

	RedisAddr string

	KafkaBrokers []string
	KafkaTopic   string

	ScyllaHosts    []string
	ScyllaKeyspace string
	// ArchiveReads serves the Scylla archive read endpoints from the gateway.
	ArchiveReads bool

	UploadDir      string
	PublicURL      string
	MaxUploadBytes int64
	StaticDir      string
	CORSOrigins    []string

	LogLevel  string
	LogFormat string

	WSRate  float64
	WSBurst int

	ShutdownTimeout time.Duration
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Missing keys take their defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Env:             p.str("APP_ENV", "development"),
		Port:            p.str("PORT", "3000"),
		JWTSecret:       p.str("JWT_SECRET", ""),
		TokenTTL:        p.duration("TOKEN_TTL", 7*24*time.Hour),
		DatabaseDSN:     p.str("DATABASE_DSN", "chatterbox.db"),
		NodeID:          p.num("NODE_ID", 1),
		RedisAddr:       p.str("REDIS_ADDR", ""),
		KafkaBrokers:    p.list("KAFKA_BROKERS"),
		KafkaTopic:      p.str("KAFKA_TOPIC", "chat-messages"),
		ScyllaHosts:     p.list("SCYLLA_HOSTS"),
		ScyllaKeyspace:  p.str("SCYLLA_KEYSPACE", "chat"),
		ArchiveReads:    p.flag("ARCHIVE_READS", false),
		UploadDir:       p.str("UPLOAD_DIR", "uploads"),
		MaxUploadBytes:  p.num("MAX_UPLOAD_BYTES", 10<<20),
		StaticDir:       p.str("STATIC_DIR", ""),
		CORSOrigins:     p.list("CORS_ORIGINS"),
		LogLevel:        p.str("LOG_LEVEL", "info"),
		LogFormat:       p.str("LOG_FORMAT", "json"),
		WSRate:          p.float("WS_RATE", 10),
		WSBurst:         int(p.num("WS_BURST", 20)),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
	cfg.PublicURL = strings.TrimRight(p.str("PUBLIC_URL", "http://localhost:"+cfg.Port), "/")
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if len(cfg.ScyllaHosts) == 0 {
		cfg.ScyllaHosts = []string{"localhost:9042"}
	}
	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = devJWTSecret
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT: %q is not a number", c.Port))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		errs = append(errs, fmt.Errorf("NODE_ID: %d out of range 0-1023", c.NodeID))
	}
	if c.WSRate <= 0 || c.WSBurst <= 0 {
		errs = append(errs, errors.New("WS_RATE and WS_BURST must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT: unknown format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// parser keeps the first conversion error so FromEnv can report it once.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) list(key string) []string {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return d
}

func (p *parser) num(key string, def int64) int64 {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return f
}

func (p *parser) flag(key string, def bool) bool {
	raw := p.str(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return b
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: invalid value %q: %w", key, raw, err)
	}
}
