package authkit

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akenov/fedauth/internal/directory"
	"github.com/akenov/fedauth/internal/providers"
)

// AuthHandler wires the provider registry, directory, token service, and
// redirect allowlist into the /auth HTTP surface.
type AuthHandler struct {
	configuration ServerConfig
	registry      *providers.Registry
	users         directory.Directory
	tokens        *TokenService
	redirects     *RedirectAllowlist
	logger        *zap.Logger
	metrics       MetricsRecorder
}

// NewAuthHandler constructs the handler. Logger and metrics may be nil.
func NewAuthHandler(configuration ServerConfig, registry *providers.Registry, users directory.Directory, tokens *TokenService, redirects *RedirectAllowlist, logger *zap.Logger, metrics MetricsRecorder) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewCounterMetrics()
	}
	return &AuthHandler{
		configuration: configuration,
		registry:      registry,
		users:         users,
		tokens:        tokens,
		redirects:     redirects,
		logger:        logger,
		metrics:       metrics,
	}
}

// Mount registers /auth/:provider, /auth/:provider/callback,
// /auth/authenticateToken, /auth/refresh, and /auth/logout.
func (handler *AuthHandler) Mount(router gin.IRouter) {
	router.GET("/auth/:provider", handler.handleLogin)
	router.GET("/auth/:provider/callback", handler.handleCallback)
	router.POST("/auth/authenticateToken", handler.handleAuthenticateToken)
	router.POST("/auth/refresh", handler.handleRefresh)
	router.POST("/auth/logout", handler.handleLogout)
}

func (handler *AuthHandler) handleLogin(contextGin *gin.Context) {
	adapter, lookupErr := handler.registry.Lookup(contextGin.Param("provider"))
	if lookupErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "providers.unknown_provider"})
		return
	}

	// The desired post-login destination rides through the provider as the
	// opaque state value, unmodified.
	redirectURL := contextGin.Query("redirectUrl")
	handler.metrics.Increment(MetricLoginStarted)
	contextGin.Redirect(http.StatusFound, adapter.AuthCodeURL(redirectURL))
}

func (handler *AuthHandler) handleCallback(contextGin *gin.Context) {
	adapter, lookupErr := handler.registry.Lookup(contextGin.Param("provider"))
	if lookupErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "providers.unknown_provider"})
		return
	}

	code := contextGin.Query("code")
	if strings.TrimSpace(code) == "" {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "auth.missing_code"})
		return
	}

	identity, resolveErr := adapter.ResolveIdentity(contextGin.Request.Context(), code)
	if resolveErr != nil {
		handler.metrics.Increment(MetricLoginDenied)
		handler.logger.Warn("identity resolution failed",
			zap.String("code", "auth.callback.resolve_failed"),
			zap.String("provider", adapter.Name()),
			zap.Error(resolveErr))
		if errors.Is(resolveErr, providers.ErrInvalidProfile) {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "providers.invalid_profile"})
			return
		}
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "providers.exchange_failed"})
		return
	}

	user, upsertErr := handler.resolveUser(contextGin, identity)
	if upsertErr != nil {
		handler.logger.Error("directory upsert failed",
			zap.String("code", "auth.callback.directory_failed"),
			zap.String("provider", adapter.Name()),
			zap.Error(upsertErr))
		contextGin.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	// The allowlist check runs before any token value is produced so a
	// forbidden destination can never leak a token, even transiently.
	target, redirectErr := handler.redirects.Resolve(contextGin.Query("state"))
	if redirectErr != nil {
		handler.metrics.Increment(MetricRedirectForbidden)
		handler.logger.Warn("redirect target rejected",
			zap.String("code", "auth.callback.redirect_rejected"),
			zap.Error(redirectErr))
		if errors.Is(redirectErr, ErrMissingRedirect) {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "redirect.missing"})
			return
		}
		contextGin.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "redirect.forbidden_origin"})
		return
	}

	pair, issueErr := handler.tokens.Issue(user, true)
	if issueErr != nil {
		handler.logger.Error("token issuance failed",
			zap.String("code", "auth.callback.issue_failed"),
			zap.Error(issueErr))
		contextGin.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	handler.writeRefreshCookie(contextGin, pair.RefreshToken)
	handler.metrics.Increment(MetricLoginCompleted)

	query := target.Query()
	query.Set("accessToken", pair.AccessToken)
	target.RawQuery = query.Encode()
	contextGin.Redirect(http.StatusFound, target.String())
}

func (handler *AuthHandler) handleAuthenticateToken(contextGin *gin.Context) {
	var inbound struct {
		Token string `json:"token"`
	}
	if err := contextGin.BindJSON(&inbound); err != nil || strings.TrimSpace(inbound.Token) == "" {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "auth.invalid_json"})
		return
	}

	claims, validateErr := handler.tokens.Validate(inbound.Token, TokenKindAccess)
	if validateErr != nil {
		handler.metrics.Increment(MetricTokenRejected)
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token.invalid"})
		return
	}

	user, lookupErr := handler.users.GetByID(contextGin, claims.Subject)
	if lookupErr != nil {
		handler.metrics.Increment(MetricTokenRejected)
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token.invalid"})
		return
	}

	pair, issueErr := handler.tokens.Issue(user, true)
	if issueErr != nil {
		contextGin.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	handler.writeRefreshCookie(contextGin, pair.RefreshToken)

	// The presented access token is still valid; it is echoed back while
	// only the refresh cookie is renewed.
	contextGin.JSON(http.StatusOK, gin.H{"accessToken": inbound.Token})
}

func (handler *AuthHandler) handleRefresh(contextGin *gin.Context) {
	refreshCookie, cookieErr := contextGin.Request.Cookie(handler.configuration.RefreshCookieName)
	if cookieErr != nil || refreshCookie == nil || strings.TrimSpace(refreshCookie.Value) == "" {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth.missing_refresh_token"})
		return
	}

	claims, validateErr := handler.tokens.Validate(refreshCookie.Value, TokenKindRefresh)
	if validateErr != nil {
		handler.metrics.Increment(MetricTokenRejected)
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token.invalid"})
		return
	}

	user, lookupErr := handler.users.GetByID(contextGin, claims.Subject)
	if lookupErr != nil {
		handler.metrics.Increment(MetricTokenRejected)
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token.invalid"})
		return
	}

	pair, issueErr := handler.tokens.Issue(user, true)
	if issueErr != nil {
		contextGin.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	handler.writeRefreshCookie(contextGin, pair.RefreshToken)
	handler.metrics.Increment(MetricTokenRefreshed)
	contextGin.JSON(http.StatusOK, gin.H{"accessToken": pair.AccessToken})
}

func (handler *AuthHandler) handleLogout(contextGin *gin.Context) {
	// Stateless design: tokens are self-contained, so logout only clears
	// the cookie. A previously issued refresh token stays valid until its
	// own expiry.
	handler.clearRefreshCookie(contextGin)
	handler.metrics.Increment(MetricLogout)
	contextGin.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (handler *AuthHandler) resolveUser(contextGin *gin.Context, identity providers.Identity) (*directory.User, error) {
	existing, findErr := handler.users.FindByEmail(contextGin, identity.Email)
	if findErr == nil {
		return existing, nil
	}
	if !errors.Is(findErr, directory.ErrUserNotFound) {
		return nil, findErr
	}
	return handler.users.Create(contextGin, directory.CreateUser{
		Name:      identity.DisplayName,
		FirstName: "",
		LastName:  "",
		Email:     identity.Email,
		AvatarURL: identity.AvatarURL,
	})
}

func (handler *AuthHandler) writeRefreshCookie(contextGin *gin.Context, refreshToken string) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     handler.configuration.RefreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		Domain:   handler.configuration.CookieDomain,
		MaxAge:   int(handler.configuration.RefreshTTL.Seconds()),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

func (handler *AuthHandler) clearRefreshCookie(contextGin *gin.Context) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     handler.configuration.RefreshCookieName,
		Value:    "",
		Path:     "/",
		Domain:   handler.configuration.CookieDomain,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}
