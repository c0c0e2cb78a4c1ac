package api

import (
	"context"

	"github.com/cxops/incontact-adapter/internal/incontact"
)

// ResolverValidator implements ClientValidator by attempting to resolve
// the client's config via ConfigResolver. Resolution succeeds only if
// the client has a valid secret in the configured backend.
type ResolverValidator struct {
	resolver incontact.ConfigResolver
}

// NewResolverValidator creates a ClientValidator backed by a ConfigResolver.
func NewResolverValidator(resolver incontact.ConfigResolver) *ResolverValidator {
	return &ResolverValidator{resolver: resolver}
}

// IsKnownClient returns true if the client has valid config in the secrets backend.
func (v *ResolverValidator) IsKnownClient(ctx context.Context, clientID string) bool {
	_, err := v.resolver.Resolve(ctx, clientID)
	return err == nil
}
