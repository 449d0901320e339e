package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Defaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, 5*time.Minute, c.Credential.TTL)
	assert.Equal(t, time.Minute, c.Credential.RefreshLead)
	assert.Equal(t, 5*time.Minute, c.Consent.TTL)
	assert.Equal(t, 5, c.Auth.MaxAttempts)
	assert.Equal(t, 15*time.Minute, c.Auth.Lockout)
	assert.Equal(t, 30*time.Second, c.Integrity.Interval)
	assert.Equal(t, ":9090", c.Ops.Addr)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "wallet.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
environment: staging
credential:
  ttl: 10m
  refresh_lead: 2m
consent:
  ttl: 1m
ops:
  addr: ":9100"
`), 0o600))

	t.Setenv("WALLET_CONSENT_TTL", "90s")
	t.Setenv("WALLET_PIN_MAX_ATTEMPTS", "3")

	c, err := Load(yamlPath, "")
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, 10*time.Minute, c.Credential.TTL)
	assert.Equal(t, 2*time.Minute, c.Credential.RefreshLead)
	assert.Equal(t, 90*time.Second, c.Consent.TTL)
	assert.Equal(t, 3, c.Auth.MaxAttempts)
	assert.Equal(t, ":9100", c.Ops.Addr)
}

func TestLoad_EnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("WALLET_INTEGRITY_INTERVAL=5s\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("WALLET_INTEGRITY_INTERVAL") })

	c, err := Load("", envPath)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.Integrity.Interval)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing yaml file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("WALLET_CREDENTIAL_TTL", "soon")
		_, err := Load("", "")
		assert.ErrorContains(t, err, "WALLET_CREDENTIAL_TTL")
	})

	t.Run("refresh lead longer than ttl", func(t *testing.T) {
		t.Setenv("WALLET_REFRESH_LEAD", "10m")
		_, err := Load("", "")
		assert.ErrorContains(t, err, "refresh lead")
	})

	t.Run("short signing key", func(t *testing.T) {
		t.Setenv("WALLET_SIGNING_KEY", "short")
		_, err := Load("", "")
		assert.ErrorContains(t, err, "signing key")
	})
}
