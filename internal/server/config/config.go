// Package config handles configuration for the server component,
// including defaults, JSON overlay, command-line flags and an
// environment-variable overlay.
package config

import (
	"github.com/caarlos0/env/v11"

	"github.com/dmitrijs2005/passvault/internal/secrets"
)

// Config holds runtime settings for the PassVault server.
//
// The database password is deliberately absent: it is resolved through the
// secret material resolver at startup, never through configuration.
//
// Fields:
//   - EndpointAddr: bind address for the public HTTP endpoint.
//   - DBUser / DBHost / DBPort / DBName: PostgreSQL connection settings.
//   - BcryptCost: work factor for password hashing.
//   - TOTPIssuer: issuer label embedded in provisioning URIs.
//   - SecretsRuntimeDir / SecretsLocalDir: secret file lookup locations.
type Config struct {
	EndpointAddr      string `env:"ADDRESS"`
	DBUser            string `env:"DB_USER"`
	DBHost            string `env:"DB_HOST"`
	DBPort            string `env:"DB_PORT"`
	DBName            string `env:"DB_NAME"`
	BcryptCost        int    `env:"BCRYPT_COST"`
	TOTPIssuer        string `env:"TOTP_ISSUER"`
	SecretsRuntimeDir string `env:"SECRETS_RUNTIME_DIR"`
	SecretsLocalDir   string `env:"SECRETS_LOCAL_DIR"`
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8000"
	c.DBUser = "postgres"
	c.DBHost = "db"
	c.DBPort = "5432"
	c.DBName = "postgres"
	c.BcryptCost = 12
	c.TOTPIssuer = "PassVault"
	c.SecretsRuntimeDir = secrets.DefaultRuntimeDir
	c.SecretsLocalDir = secrets.DefaultLocalDir
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, command-line flags and finally environment
// variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
