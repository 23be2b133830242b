package authkit

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akenov/fedauth/internal/directory"
)

// TokenKind selects which signing secret a token is bound to.
type TokenKind int

const (
	// TokenKindAccess is the short-lived credential presented on API calls.
	TokenKindAccess TokenKind = iota
	// TokenKindRefresh is the long-lived credential carried in the cookie.
	TokenKindRefresh
)

var (
	// ErrTokenExpired indicates the token signature is valid but the TTL has passed.
	ErrTokenExpired = errors.New("token.expired")
	// ErrTokenInvalid indicates a bad signature, wrong kind, or malformed payload.
	ErrTokenInvalid = errors.New("token.invalid")

	errMissingAccessSecret  = errors.New("token.config.missing_access_secret")
	errMissingRefreshSecret = errors.New("token.config.missing_refresh_secret")
	errSharedSecrets        = errors.New("token.config.shared_secrets")
	errInvalidTTL           = errors.New("token.config.invalid_ttl")
	errEmptySubject         = errors.New("token.mint.empty_subject")
)

// UserClaims is the payload embedded in both token kinds. The kinds differ
// only by signing secret and TTL.
type UserClaims struct {
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair bundles a freshly signed access token with an optional refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService signs and validates the two token kinds with independent
// HS256 secrets.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	clock         Clock
}

// NewTokenService validates the signing configuration once so that a
// misconfigured service fails at startup rather than per request.
func NewTokenService(configuration ServerConfig, clock Clock) (*TokenService, error) {
	if len(bytes.TrimSpace(configuration.AccessSecret)) == 0 {
		return nil, errMissingAccessSecret
	}
	if len(bytes.TrimSpace(configuration.RefreshSecret)) == 0 {
		return nil, errMissingRefreshSecret
	}
	if bytes.Equal(configuration.AccessSecret, configuration.RefreshSecret) {
		return nil, errSharedSecrets
	}
	if configuration.AccessTTL <= 0 || configuration.RefreshTTL <= 0 {
		return nil, errInvalidTTL
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	return &TokenService{
		accessSecret:  configuration.AccessSecret,
		refreshSecret: configuration.RefreshSecret,
		issuer:        configuration.Issuer,
		accessTTL:     configuration.AccessTTL,
		refreshTTL:    configuration.RefreshTTL,
		clock:         clock,
	}, nil
}

// Issue signs an access token for the user and, when rotateRefresh is set,
// a refresh token as well. Tokens carry identity, never authorization: the
// user's role is deliberately absent from the claims.
func (service *TokenService) Issue(user *directory.User, rotateRefresh bool) (TokenPair, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return TokenPair{}, fmt.Errorf("token.mint: %w", errEmptySubject)
	}

	accessToken, accessErr := service.mint(user, service.accessSecret, service.accessTTL)
	if accessErr != nil {
		return TokenPair{}, fmt.Errorf("token.mint.access: %w", accessErr)
	}

	pair := TokenPair{AccessToken: accessToken}
	if rotateRefresh {
		refreshToken, refreshErr := service.mint(user, service.refreshSecret, service.refreshTTL)
		if refreshErr != nil {
			return TokenPair{}, fmt.Errorf("token.mint.refresh: %w", refreshErr)
		}
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

// Validate verifies signature and expiry using the secret bound to the
// kind. A token signed for one kind never validates as the other because
// the secrets are distinct.
func (service *TokenService) Validate(tokenString string, kind TokenKind) (*UserClaims, error) {
	secret := service.accessSecret
	if kind == TokenKindRefresh {
		secret = service.refreshSecret
	}

	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(parsed *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(service.clock.Now),
	)
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, parseErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, parseErr)
	}
	claims, ok := parsedToken.Claims.(*UserClaims)
	if !ok || !parsedToken.Valid || claims.Issuer != service.issuer || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// RefreshTTL exposes the refresh token lifetime for cookie expiry.
func (service *TokenService) RefreshTTL() time.Duration {
	return service.refreshTTL
}

func (service *TokenService) mint(user *directory.User, secret []byte, ttl time.Duration) (string, error) {
	issuedAt := service.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    service.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}
