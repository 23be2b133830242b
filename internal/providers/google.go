package providers

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	googleEndpoint "golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const googleProviderName = "google"

// GoogleProvider resolves identities through the Google OAuth2 code flow.
type GoogleProvider struct {
	oauthConfig *oauth2.Config

	// fetchUserinfo is replaceable in tests.
	fetchUserinfo func(ctx context.Context, token *oauth2.Token) (*oauth2api.Userinfo, error)
}

// NewGoogleProvider constructs the Google adapter. The configuration is
// validated here so a misconfigured provider fails at startup.
func NewGoogleProvider(config Config) (*GoogleProvider, error) {
	if err := config.validate(googleProviderName); err != nil {
		return nil, err
	}
	provider := &GoogleProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.CallbackURL,
			Scopes:       []string{"email", "profile"},
			Endpoint:     googleEndpoint.Endpoint,
		},
	}
	provider.fetchUserinfo = provider.fetchUserinfoFromAPI
	return provider, nil
}

// Name returns the provider path segment.
func (provider *GoogleProvider) Name() string {
	return googleProviderName
}

// AuthCodeURL builds the Google authorize URL with the state verbatim.
// Offline access with forced consent matches the original deployment so a
// provider refresh token is granted on every login.
func (provider *GoogleProvider) AuthCodeURL(state string) string {
	return provider.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ResolveIdentity exchanges the code and maps the Google profile to an Identity.
func (provider *GoogleProvider) ResolveIdentity(ctx context.Context, code string) (Identity, error) {
	token, exchangeErr := provider.oauthConfig.Exchange(ctx, code)
	if exchangeErr != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrExchangeFailed, exchangeErr)
	}

	userinfo, fetchErr := provider.fetchUserinfo(ctx, token)
	if fetchErr != nil {
		return Identity{}, fmt.Errorf("providers.google.userinfo: %w", fetchErr)
	}

	return validateIdentity(Identity{
		Subject:     userinfo.Id,
		Email:       userinfo.Email,
		DisplayName: userinfo.Name,
		AvatarURL:   userinfo.Picture,
	})
}

func (provider *GoogleProvider) fetchUserinfoFromAPI(ctx context.Context, token *oauth2.Token) (*oauth2api.Userinfo, error) {
	service, serviceErr := oauth2api.NewService(ctx, option.WithTokenSource(provider.oauthConfig.TokenSource(ctx, token)))
	if serviceErr != nil {
		return nil, serviceErr
	}
	return service.Userinfo.Get().Context(ctx).Do()
}
