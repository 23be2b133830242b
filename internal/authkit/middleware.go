package authkit

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/akenov/fedauth/internal/directory"
)

// ContextClaimsKey is the gin context key under which validated access
// token claims are stored.
const ContextClaimsKey = "auth_claims"

// RequireAccessToken validates the bearer access token and injects its
// claims into the request context.
func RequireAccessToken(tokens *TokenService) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		tokenString := bearerToken(contextGin.Request)
		if tokenString == "" {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth.unauthenticated"})
			return
		}
		claims, validateErr := tokens.Validate(tokenString, TokenKindAccess)
		if validateErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth.unauthenticated"})
			return
		}
		contextGin.Set(ContextClaimsKey, claims)
		contextGin.Next()
	}
}

// RequireRoles gates a route on the caller's live role. The role is
// re-fetched from the directory on every call: roles change after tokens
// are issued, so a role embedded in a token claim is never trusted.
// An empty required set allows every authenticated caller.
func RequireRoles(users directory.Directory, requiredRoles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(requiredRoles))
	for _, role := range requiredRoles {
		allowed[role] = struct{}{}
	}

	return func(contextGin *gin.Context) {
		if len(allowed) == 0 {
			contextGin.Next()
			return
		}

		claims := ClaimsFromContext(contextGin)
		if claims == nil || claims.Subject == "" {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth.unauthenticated"})
			return
		}

		caller, lookupErr := users.GetByID(contextGin, claims.Subject)
		if lookupErr != nil {
			if errors.Is(lookupErr, directory.ErrUserNotFound) {
				contextGin.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "auth.forbidden_role"})
				return
			}
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if _, ok := allowed[caller.Role]; !ok {
			contextGin.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "auth.forbidden_role"})
			return
		}
		contextGin.Next()
	}
}

// ClaimsFromContext returns the validated claims set by RequireAccessToken,
// or nil when absent.
func ClaimsFromContext(contextGin *gin.Context) *UserClaims {
	claimsValue, found := contextGin.Get(ContextClaimsKey)
	if !found {
		return nil
	}
	claims, ok := claimsValue.(*UserClaims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(request *http.Request) string {
	headerValue := request.Header.Get("Authorization")
	if headerValue == "" {
		return ""
	}
	parts := strings.SplitN(headerValue, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
