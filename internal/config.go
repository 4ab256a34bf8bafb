package internal

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix used when configuration is read from the environment.
const EnvPrefix = "PHOCHAT"

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server" envconfig:"HTTP_SERVER"`
	Database      DatabaseConfig      `mapstructure:"database" envconfig:"DATABASE"`
	Redis         RedisConfig         `mapstructure:"redis" envconfig:"REDIS"`
	Security      SecurityConfig      `mapstructure:"security" envconfig:"SECURITY"`
	Payment       PaymentConfig       `mapstructure:"payment" envconfig:"PAYMENT"`
	Reconcile     ReconcileConfig     `mapstructure:"reconcile" envconfig:"RECONCILE"`
	Observability ObservabilityConfig `mapstructure:"observability" envconfig:"OBSERVABILITY"`
}

type ServerConfig struct {
	Env               string        `mapstructure:"env" envconfig:"ENV"`
	Port              int           `mapstructure:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" envconfig:"READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"MAX_OPEN_CONNS" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"MAX_IDLE_CONNS" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" envconfig:"CONN_MAX_IDLE_TIME" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" envconfig:"SOURCE" validate:"required"`
}

type RedisConfig struct {
	URL string `mapstructure:"url" envconfig:"URL"`
}

type SecurityConfig struct {
	JWTPublicKey   string `mapstructure:"jwt_public_key" envconfig:"JWT_PUBLIC_KEY" validate:"required"`
	AdminTokenHash string `mapstructure:"admin_token_hash" envconfig:"ADMIN_TOKEN_HASH" validate:"required"`
}

type PaymentConfig struct {
	APIURL       string        `mapstructure:"api_url" envconfig:"API_URL" validate:"required,url"`
	ClientID     string        `mapstructure:"client_id" envconfig:"CLIENT_ID" validate:"required"`
	APIKey       string        `mapstructure:"api_key" envconfig:"API_KEY" validate:"required"`
	ChecksumKey  string        `mapstructure:"checksum_key" envconfig:"CHECKSUM_KEY" validate:"required"`
	Timeout      time.Duration `mapstructure:"timeout" envconfig:"TIMEOUT"`
	StatusLookup bool          `mapstructure:"status_lookup" envconfig:"STATUS_LOOKUP"`
}

type ReconcileConfig struct {
	Interval  time.Duration `mapstructure:"interval" envconfig:"INTERVAL" validate:"min=1m"`
	OlderThan time.Duration `mapstructure:"older_than" envconfig:"OLDER_THAN" validate:"min=1m"`
	LockKey   string        `mapstructure:"lock_key" envconfig:"LOCK_KEY"`
	LockTTL   time.Duration `mapstructure:"lock_ttl" envconfig:"LOCK_TTL"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics" envconfig:"METRICS"`
	Logging LoggingConfig `mapstructure:"logging" envconfig:"LOGGING"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" envconfig:"ENABLED"`
	Path    string `mapstructure:"path" envconfig:"HANDLER_PATH" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" envconfig:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" envconfig:"FORMAT" validate:"omitempty,oneof=json text"`
}

// LoadConfigFromEnv reads the whole configuration from PHOCHAT_* variables.
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values left by the file or environment loaders.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Database.ConnMaxIdleTime == 0 {
		c.Database.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.Payment.APIURL == "" {
		c.Payment.APIURL = "https://api-merchant.payos.vn"
	}
	if c.Payment.Timeout == 0 {
		c.Payment.Timeout = 10 * time.Second
	}
	if c.Reconcile.Interval == 0 {
		c.Reconcile.Interval = 30 * time.Minute
	}
	if c.Reconcile.OlderThan == 0 {
		c.Reconcile.OlderThan = 15 * time.Minute
	}
	if c.Reconcile.LockKey == "" {
		c.Reconcile.LockKey = "phochat:reconcile:lock"
	}
	if c.Reconcile.LockTTL == 0 {
		c.Reconcile.LockTTL = 10 * time.Minute
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
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

func (c *SecurityConfig) Validate() error {
	if _, err := c.GetPublicKey(); err != nil {
		return fmt.Errorf("invalid JWT public key: %w", err)
	}
	if !strings.HasPrefix(c.AdminTokenHash, "$2") {
		return errors.New("admin_token_hash must be a bcrypt hash")
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

// RequireRedis is checked by commands that cannot run without the sweep lock.
func (c *RedisConfig) RequireRedis() error {
	if c.URL == "" {
		return errors.New("redis.url is required")
	}
	return nil
}
