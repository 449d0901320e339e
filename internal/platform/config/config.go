// Package config loads wallet settings from defaults, an optional YAML file,
// an optional .env file and WALLET_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const minSigningKeyLength = 32

// Config captures every tunable of the wallet runtime.
type Config struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	Credential struct {
		TTL         time.Duration `yaml:"ttl"`
		RefreshLead time.Duration `yaml:"refresh_lead"`
		SigningKey  string        `yaml:"signing_key"`
		Issuer      string        `yaml:"issuer"`
	} `yaml:"credential"`

	Consent struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"consent"`

	Auth struct {
		PINHash     string        `yaml:"pin_hash"`
		MaxAttempts int           `yaml:"max_attempts"`
		Lockout     time.Duration `yaml:"lockout"`
	} `yaml:"auth"`

	Integrity struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"integrity"`

	Ops struct {
		Addr string `yaml:"addr"`
	} `yaml:"ops"`
}

// Defaults returns the built-in configuration. The signing key is a
// development key and must be replaced outside of dev.
func Defaults() *Config {
	c := &Config{
		Environment: "dev",
		LogLevel:    "info",
	}
	c.Credential.TTL = 5 * time.Minute
	c.Credential.RefreshLead = time.Minute
	c.Credential.SigningKey = "dev-signing-key-change-outside-development"
	c.Credential.Issuer = "idwallet"
	c.Consent.TTL = 5 * time.Minute
	c.Auth.MaxAttempts = 5
	c.Auth.Lockout = 15 * time.Minute
	c.Integrity.Interval = 30 * time.Second
	c.Ops.Addr = ":9090"
	return c
}

// Load builds the configuration. yamlPath and envFile may be empty; a
// missing .env file is not an error.
func Load(yamlPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	c := Defaults()
	if yamlPath != "" {
		b, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	setString("WALLET_ENV", &c.Environment)
	setString("WALLET_LOG_LEVEL", &c.LogLevel)
	setString("WALLET_SIGNING_KEY", &c.Credential.SigningKey)
	setString("WALLET_ISSUER", &c.Credential.Issuer)
	setString("WALLET_PIN_HASH", &c.Auth.PINHash)
	setString("WALLET_OPS_ADDR", &c.Ops.Addr)

	durations := map[string]*time.Duration{
		"WALLET_CREDENTIAL_TTL":     &c.Credential.TTL,
		"WALLET_REFRESH_LEAD":       &c.Credential.RefreshLead,
		"WALLET_CONSENT_TTL":        &c.Consent.TTL,
		"WALLET_PIN_LOCKOUT":        &c.Auth.Lockout,
		"WALLET_INTEGRITY_INTERVAL": &c.Integrity.Interval,
	}
	for key, dst := range durations {
		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	if raw := os.Getenv("WALLET_PIN_MAX_ATTEMPTS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("WALLET_PIN_MAX_ATTEMPTS: %w", err)
		}
		c.Auth.MaxAttempts = n
	}
	return nil
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate checks the loaded values are usable.
func (c *Config) Validate() error {
	switch {
	case c.Credential.TTL <= 0:
		return errors.New("credential ttl must be positive")
	case c.Credential.RefreshLead < 0 || c.Credential.RefreshLead >= c.Credential.TTL:
		return errors.New("refresh lead must be non-negative and shorter than the credential ttl")
	case len(c.Credential.SigningKey) < minSigningKeyLength:
		return fmt.Errorf("signing key must be at least %d bytes", minSigningKeyLength)
	case c.Consent.TTL <= 0:
		return errors.New("consent ttl must be positive")
	case c.Auth.MaxAttempts <= 0:
		return errors.New("pin max attempts must be positive")
	case c.Auth.Lockout <= 0:
		return errors.New("pin lockout must be positive")
	case c.Integrity.Interval <= 0:
		return errors.New("integrity interval must be positive")
	case c.Ops.Addr == "":
		return errors.New("ops address is required")
	}
	return nil
}
