package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxops/incontact-adapter/pkg/config"
)

// parseInContactConfig is the unexported function under test.
// These tests exercise it directly since this package is the test subject.

func TestParseInContactConfig_Valid(t *testing.T) {
	cfg, err := parseInContactConfig(fullSecret())
	require.NoError(t, err)
	assert.Equal(t, "reporting-app", cfg.App)
	assert.Equal(t, "acme", cfg.Vendor)
	assert.Equal(t, "4599", cfg.BusinessUnit)
	assert.Equal(t, "svc-reports", cfg.Username)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, "https://auth.example.com/token", cfg.AuthURL)
	assert.Equal(t, "7711", cfg.ReportID)
	assert.Equal(t, "/var/reports/acme.csv", cfg.OutputPath)
}

func TestParseInContactConfig_OptionalFieldsAbsent(t *testing.T) {
	m := map[string]string{
		"app":           "reporting-app",
		"vendor":        "acme",
		"business_unit": "4599",
		"username":      "svc-reports",
		"password":      "hunter2",
	}

	cfg, err := parseInContactConfig(m)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultAuthURL, cfg.AuthURL)
	assert.Empty(t, cfg.ReportID)
	assert.Empty(t, cfg.OutputPath)
}

func TestParseInContactConfig_EmptyMap(t *testing.T) {
	_, err := parseInContactConfig(map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app")
}

func TestParseInContactConfig_ExtraFieldsIgnored(t *testing.T) {
	m := fullSecret()
	m["extra_field"] = "this-is-ignored"

	cfg, err := parseInContactConfig(m)
	require.NoError(t, err)
	assert.Equal(t, "reporting-app", cfg.App)
	assert.Equal(t, "acme", cfg.Vendor)
}

// --- EnvResolver ---

func envBackedConfig() *config.Config {
	return &config.Config{
		App:          "reporting-app",
		Vendor:       "acme",
		BusinessUnit: "4599",
		Username:     "svc-reports",
		Password:     "hunter2",
		AuthURL:      "https://auth.example.com/token",
		ReportID:     "7711",
		OutputPath:   "/var/reports/acme.csv",
	}
}

func TestEnvResolver_Resolve_DefaultProfile(t *testing.T) {
	r := NewEnvResolver(envBackedConfig())

	cfg, err := r.Resolve(context.Background(), DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, cfg.ClientID)
	assert.Equal(t, "reporting-app", cfg.App)
	assert.Equal(t, "acme", cfg.Vendor)
	assert.Equal(t, "4599", cfg.BusinessUnit)
	assert.Equal(t, "svc-reports", cfg.Username)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, "https://auth.example.com/token", cfg.AuthURL)
	assert.Equal(t, "7711", cfg.ReportID)
	assert.Equal(t, "/var/reports/acme.csv", cfg.OutputPath)
}

func TestEnvResolver_Resolve_UnknownClient(t *testing.T) {
	r := NewEnvResolver(envBackedConfig())

	cfg, err := r.Resolve(context.Background(), "client-001")
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client-001")
}

func TestEnvResolver_Resolve_MissingIdentityField(t *testing.T) {
	c := envBackedConfig()
	c.BusinessUnit = ""
	r := NewEnvResolver(c)

	_, err := r.Resolve(context.Background(), DefaultProfile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INCONTACT_BU")
}

func TestEnvResolver_Resolve_AuthURLDefaulted(t *testing.T) {
	c := envBackedConfig()
	c.AuthURL = ""
	r := NewEnvResolver(c)

	cfg, err := r.Resolve(context.Background(), DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultAuthURL, cfg.AuthURL)
}

func TestEnvResolver_DiscoverClients(t *testing.T) {
	r := NewEnvResolver(envBackedConfig())

	clients, err := r.DiscoverClients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultProfile}, clients)
}
