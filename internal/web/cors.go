package web

import (
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var errEmptyAllowedOrigins = errors.New("cors.empty_allowed_origins")

// ConfigureCORS enables credentialed cross-origin requests for the supplied
// origins. The origin set is expected to be sanitized already (the redirect
// allowlist normalizes it); the same set doubles as the CORS allowlist so
// the two trust boundaries cannot drift apart.
func ConfigureCORS(allowedOrigins []string) (gin.HandlerFunc, error) {
	if len(allowedOrigins) == 0 {
		return nil, errEmptyAllowedOrigins
	}
	config := cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	return cors.New(config), nil
}
