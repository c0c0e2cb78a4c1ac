package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cxops/incontact-adapter/internal/incontact"
	"github.com/cxops/incontact-adapter/pkg/config"
	pkgsecrets "github.com/cxops/incontact-adapter/pkg/secrets"
)

// DefaultProfile is the client ID served by EnvResolver when credentials
// come from the environment instead of AWS Secrets Manager.
const DefaultProfile = "default"

// InContactResolver resolves per-client InContact credentials from AWS
// Secrets Manager. It is a thin wrapper over the generic
// AWSResolver[incontact.InContactClientConfig].
//
// Secret naming convention: {env}/{clientID}/incontact
// Secret JSON format:       {"app": "...", "vendor": "...", "business_unit": "...",
//                            "username": "...", "password": "...",
//                            "auth_url": "...", "report_id": "...", "output_path": "..."}
type InContactResolver struct {
	inner *AWSResolver[incontact.InContactClientConfig]
}

// NewInContactResolver constructs an InContact-specific config resolver.
func NewInContactResolver(
	logger *zap.Logger,
	env string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[incontact.InContactClientConfig],
) *InContactResolver {
	inner := NewAWSResolver(logger, env, "incontact", provider, cache)
	return &InContactResolver{inner: inner}
}

// Resolve fetches or caches the InContactClientConfig for a given client ID.
func (r *InContactResolver) Resolve(ctx context.Context, clientID string) (*incontact.InContactClientConfig, error) {
	cfg, err := r.inner.Resolve(ctx, clientID, parseInContactConfig)
	if err != nil {
		return nil, err
	}
	cfg.ClientID = clientID
	return &cfg, nil
}

// DiscoverClients lists all client IDs that have InContact secrets configured.
func (r *InContactResolver) DiscoverClients(ctx context.Context) ([]string, error) {
	return r.inner.DiscoverClients(ctx)
}

// parseInContactConfig extracts an InContactClientConfig from the raw AWS secret map.
func parseInContactConfig(m map[string]string) (incontact.InContactClientConfig, error) {
	cfg := incontact.InContactClientConfig{
		App:          m["app"],
		Vendor:       m["vendor"],
		BusinessUnit: m["business_unit"],
		Username:     m["username"],
		Password:     m["password"],
		AuthURL:      m["auth_url"],
		ReportID:     m["report_id"],
		OutputPath:   m["output_path"],
	}
	if cfg.App == "" {
		return incontact.InContactClientConfig{}, fmt.Errorf("missing required field 'app'")
	}
	if cfg.Vendor == "" {
		return incontact.InContactClientConfig{}, fmt.Errorf("missing required field 'vendor'")
	}
	if cfg.BusinessUnit == "" {
		return incontact.InContactClientConfig{}, fmt.Errorf("missing required field 'business_unit'")
	}
	if cfg.Username == "" {
		return incontact.InContactClientConfig{}, fmt.Errorf("missing required field 'username'")
	}
	if cfg.Password == "" {
		return incontact.InContactClientConfig{}, fmt.Errorf("missing required field 'password'")
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = config.DefaultAuthURL
	}
	return cfg, nil
}

// EnvResolver serves a single credential profile sourced from the process
// environment. It backs local development and the one-shot CLI, where AWS
// Secrets Manager is overkill.
type EnvResolver struct {
	cfg *config.Config
}

// NewEnvResolver wraps the loaded service configuration as a resolver for
// the DefaultProfile client.
func NewEnvResolver(cfg *config.Config) *EnvResolver {
	return &EnvResolver{cfg: cfg}
}

// Resolve returns the environment-sourced profile. Only DefaultProfile is
// served; any other client ID is an error so misrouted multi-tenant traffic
// fails loudly instead of using the wrong credentials.
func (r *EnvResolver) Resolve(_ context.Context, clientID string) (*incontact.InContactClientConfig, error) {
	if clientID != DefaultProfile {
		return nil, fmt.Errorf("unknown client %q: env backend only serves %q", clientID, DefaultProfile)
	}
	if r.cfg.App == "" {
		return nil, fmt.Errorf("missing required setting INCONTACT_APP")
	}
	if r.cfg.Vendor == "" {
		return nil, fmt.Errorf("missing required setting INCONTACT_VENDOR")
	}
	if r.cfg.BusinessUnit == "" {
		return nil, fmt.Errorf("missing required setting INCONTACT_BU")
	}
	if r.cfg.Username == "" {
		return nil, fmt.Errorf("missing required setting INCONTACT_USERNAME")
	}
	if r.cfg.Password == "" {
		return nil, fmt.Errorf("missing required setting INCONTACT_PASSWORD")
	}
	authURL := r.cfg.AuthURL
	if authURL == "" {
		authURL = config.DefaultAuthURL
	}
	return &incontact.InContactClientConfig{
		ClientID:     DefaultProfile,
		App:          r.cfg.App,
		Vendor:       r.cfg.Vendor,
		BusinessUnit: r.cfg.BusinessUnit,
		Username:     r.cfg.Username,
		Password:     r.cfg.Password,
		AuthURL:      authURL,
		ReportID:     r.cfg.ReportID,
		OutputPath:   r.cfg.OutputPath,
	}, nil
}

// DiscoverClients reports the single environment-backed profile.
func (r *EnvResolver) DiscoverClients(_ context.Context) ([]string, error) {
	return []string{DefaultProfile}, nil
}
