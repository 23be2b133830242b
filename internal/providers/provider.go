package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownProvider indicates no adapter is registered under the requested name.
	ErrUnknownProvider = errors.New("providers.unknown_provider")
	// ErrExchangeFailed indicates the authorization code could not be exchanged.
	ErrExchangeFailed = errors.New("providers.exchange_failed")
	// ErrInvalidProfile indicates the provider profile is missing a usable email or name.
	ErrInvalidProfile = errors.New("providers.invalid_profile")

	errMissingClientID     = errors.New("providers.config.missing_client_id")
	errMissingClientSecret = errors.New("providers.config.missing_client_secret")
	errMissingCallbackURL  = errors.New("providers.config.missing_callback_url")
)

// Identity is a normalized provider profile for the authenticated end user.
type Identity struct {
	Subject     string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Config holds the OAuth2 client settings for a single provider. All fields
// are mandatory and checked by the adapter constructors at startup.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

func (config Config) validate(providerName string) error {
	if strings.TrimSpace(config.ClientID) == "" {
		return fmt.Errorf("%s: %w", providerName, errMissingClientID)
	}
	if strings.TrimSpace(config.ClientSecret) == "" {
		return fmt.Errorf("%s: %w", providerName, errMissingClientSecret)
	}
	if strings.TrimSpace(config.CallbackURL) == "" {
		return fmt.Errorf("%s: %w", providerName, errMissingCallbackURL)
	}
	return nil
}

// Provider drives the OAuth2 authorization-code flow for one identity
// provider and maps the provider profile to an Identity.
type Provider interface {
	// Name returns the provider name used in request paths (e.g. github).
	Name() string

	// AuthCodeURL builds the provider authorize URL carrying the state verbatim.
	AuthCodeURL(state string) string

	// ResolveIdentity exchanges the authorization code and fetches the profile.
	ResolveIdentity(ctx context.Context, code string) (Identity, error)
}

// Registry selects providers by name.
type Registry struct {
	providersByName map[string]Provider
}

// NewRegistry builds a registry from the supplied adapters.
func NewRegistry(adapters ...Provider) *Registry {
	providersByName := make(map[string]Provider, len(adapters))
	for _, adapter := range adapters {
		providersByName[adapter.Name()] = adapter
	}
	return &Registry{providersByName: providersByName}
}

// Lookup resolves a provider by name.
func (registry *Registry) Lookup(name string) (Provider, error) {
	adapter, ok := registry.providersByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownProvider)
	}
	return adapter, nil
}

// Names lists the registered provider names.
func (registry *Registry) Names() []string {
	names := make([]string, 0, len(registry.providersByName))
	for name := range registry.providersByName {
		names = append(names, name)
	}
	return names
}

func validateIdentity(identity Identity) (Identity, error) {
	if strings.TrimSpace(identity.Email) == "" || strings.TrimSpace(identity.DisplayName) == "" {
		return Identity{}, ErrInvalidProfile
	}
	return identity, nil
}
