// Package config loads the process configuration once at startup. The
// resulting struct is passed by reference into the grant engine, token
// codec, and hasher constructors; nothing reads the environment after
// startup.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/nident/identity-server/hashing"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	AppName    string `env:"APP_NAME" envDefault:"identity-server"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// Signing key material. Inline PEM takes precedence over file paths;
	// with neither set an ephemeral key pair is generated at startup.
	SigningKeyID   string `env:"SIGNING_KEY_ID" envDefault:"primary"`
	PrivateKeyPEM  string `env:"JWT_PRIVATE_KEY"`
	PublicKeyPEM   string `env:"JWT_PUBLIC_KEY"`
	PrivateKeyFile string `env:"JWT_PRIVATE_KEY_FILE"`
	PublicKeyFile  string `env:"JWT_PUBLIC_KEY_FILE"`

	AccessTokenLifetime  time.Duration `env:"ACCESS_TOKEN_LIFETIME" envDefault:"15m"`
	RefreshTokenLifetime time.Duration `env:"REFRESH_TOKEN_LIFETIME" envDefault:"720h"`

	// argon2id cost parameters.
	HashTimeCost      uint32 `env:"HASH_TIME_COST" envDefault:"3"`
	HashMemoryKiB     uint32 `env:"HASH_MEMORY_KIB" envDefault:"65536"`
	HashParallelism   uint8  `env:"HASH_PARALLELISM" envDefault:"1"`
	HashMaxConcurrent int64  `env:"HASH_MAX_CONCURRENT" envDefault:"4"`

	// Redis persistence; empty address selects the in-memory stores.
	RedisAddr string `env:"REDIS_ADDR"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Server-wide origin filter for the token endpoint; per-client origins
	// are checked on top of this. Comma-separated patterns, * wildcards.
	AllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`

	ResetTokenLifetime time.Duration `env:"RESET_TOKEN_LIFETIME" envDefault:"1h"`

	// Bootstrap identities, created on startup when missing so the admin
	// API is reachable on a fresh store.
	BootstrapTenantID     string `env:"BOOTSTRAP_TENANT_ID" envDefault:"system"`
	BootstrapClientID     string `env:"BOOTSTRAP_CLIENT_ID" envDefault:"admin-client"`
	BootstrapClientSecret string `env:"BOOTSTRAP_CLIENT_SECRET"`
	BootstrapAdminLogin   string `env:"BOOTSTRAP_ADMIN_LOGIN" envDefault:"admin"`
	BootstrapAdminPass    string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, errors.Wrap(err, "[config.Load] env.ParseAs")
	}
	if cfg.AccessTokenLifetime <= 0 || cfg.RefreshTokenLifetime <= 0 {
		return nil, errors.New("[config.Load] token lifetimes must be positive")
	}
	return &cfg, nil
}

// HashParams assembles the hasher cost parameters.
func (c *Config) HashParams() hashing.Params {
	return hashing.Params{
		Time:        c.HashTimeCost,
		Memory:      c.HashMemoryKiB,
		Parallelism: c.HashParallelism,
		KeyLength:   32,
	}
}

// KeyMaterial resolves the configured PEM strings, reading key files when
// no inline PEM was supplied. Both results may be empty.
func (c *Config) KeyMaterial() (privatePEM, publicPEM string, err error) {
	privatePEM = c.PrivateKeyPEM
	publicPEM = c.PublicKeyPEM

	if privatePEM == "" && c.PrivateKeyFile != "" {
		b, err := os.ReadFile(c.PrivateKeyFile)
		if err != nil {
			return "", "", errors.Wrap(err, "[Config.KeyMaterial] private key file")
		}
		privatePEM = string(b)
	}
	if publicPEM == "" && c.PublicKeyFile != "" {
		b, err := os.ReadFile(c.PublicKeyFile)
		if err != nil {
			return "", "", errors.Wrap(err, "[Config.KeyMaterial] public key file")
		}
		publicPEM = string(b)
	}
	return privatePEM, publicPEM, nil
}
