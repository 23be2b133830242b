package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	githubEndpoint "golang.org/x/oauth2/github"
)

const (
	githubProviderName = "github"
	githubUserURL      = "https://api.github.com/user"
	githubEmailsURL    = "https://api.github.com/user/emails"
)

type githubUser struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider resolves identities through the GitHub OAuth2 code flow.
type GitHubProvider struct {
	oauthConfig *oauth2.Config
	userURL     string
	emailsURL   string
}

// NewGitHubProvider constructs the GitHub adapter. The configuration is
// validated here so a misconfigured provider fails at startup.
func NewGitHubProvider(config Config) (*GitHubProvider, error) {
	if err := config.validate(githubProviderName); err != nil {
		return nil, err
	}
	return &GitHubProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.CallbackURL,
			Scopes:       []string{"user:email"},
			Endpoint:     githubEndpoint.Endpoint,
		},
		userURL:   githubUserURL,
		emailsURL: githubEmailsURL,
	}, nil
}

// Name returns the provider path segment.
func (provider *GitHubProvider) Name() string {
	return githubProviderName
}

// AuthCodeURL builds the GitHub authorize URL with the state verbatim.
func (provider *GitHubProvider) AuthCodeURL(state string) string {
	return provider.oauthConfig.AuthCodeURL(state)
}

// ResolveIdentity exchanges the code and maps the GitHub profile to an Identity.
func (provider *GitHubProvider) ResolveIdentity(ctx context.Context, code string) (Identity, error) {
	token, exchangeErr := provider.oauthConfig.Exchange(ctx, code)
	if exchangeErr != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrExchangeFailed, exchangeErr)
	}

	var profile githubUser
	if err := provider.fetch(ctx, token.AccessToken, provider.userURL, &profile); err != nil {
		return Identity{}, err
	}

	email := profile.Email
	if email == "" {
		var emails []githubEmail
		if err := provider.fetch(ctx, token.AccessToken, provider.emailsURL, &emails); err != nil {
			return Identity{}, err
		}
		email = primaryEmail(emails)
	}

	displayName := profile.Name
	if displayName == "" {
		displayName = profile.Login
	}

	return validateIdentity(Identity{
		Subject:     strconv.FormatInt(profile.ID, 10),
		Email:       email,
		DisplayName: displayName,
		AvatarURL:   profile.AvatarURL,
	})
}

func (provider *GitHubProvider) fetch(ctx context.Context, accessToken string, requestURL string, target interface{}) error {
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if requestErr != nil {
		return fmt.Errorf("providers.github.fetch: %w", requestErr)
	}
	request.Header.Set("Authorization", "Bearer "+accessToken)
	request.Header.Set("Accept", "application/vnd.github.v3+json")

	response, doErr := http.DefaultClient.Do(request)
	if doErr != nil {
		return fmt.Errorf("providers.github.fetch: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("providers.github.fetch: status %d", response.StatusCode)
	}
	if decodeErr := json.NewDecoder(response.Body).Decode(target); decodeErr != nil {
		return fmt.Errorf("providers.github.fetch: %w", decodeErr)
	}
	return nil
}

func primaryEmail(emails []githubEmail) string {
	for _, candidate := range emails {
		if candidate.Primary {
			return candidate.Email
		}
	}
	if len(emails) > 0 {
		return emails[0].Email
	}
	return ""
}
