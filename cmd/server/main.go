package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/akenov/fedauth/internal/authkit"
	"github.com/akenov/fedauth/internal/directory"
	"github.com/akenov/fedauth/internal/providers"
	"github.com/akenov/fedauth/internal/web"
	webassets "github.com/akenov/fedauth/web"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	// Deployment environments ship configuration through a dotenv file;
	// absence is fine.
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "fedauth",
		Short:   "Federated OAuth2 auth service with dual JWT tokens, a redirect allowlist, and role-gated user APIs",
		PreRunE: prepareAppConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":3000", "HTTP listen address")
	rootCmd.Flags().String("cookie_domain", "", "Cookie domain; empty for host-only")
	rootCmd.Flags().Duration("access_ttl", 15*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_ttl", 7*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().String("database_url", "", "Database URL for the user directory (postgres:// or sqlite://; leave empty for in-memory store)")

	_ = viper.BindPFlag("listen_addr", rootCmd.Flags().Lookup("listen_addr"))
	_ = viper.BindPFlag("cookie_domain", rootCmd.Flags().Lookup("cookie_domain"))
	_ = viper.BindPFlag("access_ttl", rootCmd.Flags().Lookup("access_ttl"))
	_ = viper.BindPFlag("refresh_ttl", rootCmd.Flags().Lookup("refresh_ttl"))
	_ = viper.BindPFlag("database_url", rootCmd.Flags().Lookup("database_url"))

	// Secrets and provider credentials come exclusively from the
	// environment, under their conventional names.
	_ = viper.BindEnv("jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt_refresh_secret", "JWT_REFRESH_SECRET")
	_ = viper.BindEnv("cors", "CORS")
	_ = viper.BindEnv("github_client_id", "GITHUB_CLIENT_ID")
	_ = viper.BindEnv("github_client_secret", "GITHUB_CLIENT_SECRET")
	_ = viper.BindEnv("github_callback_url", "GITHUB_CALLBACK_URL")
	_ = viper.BindEnv("google_client_id", "GOOGLE_CLIENT_ID")
	_ = viper.BindEnv("google_client_secret", "GOOGLE_CLIENT_SECRET")
	_ = viper.BindEnv("google_callback_url", "GOOGLE_CALLBACK_URL")

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	refreshCookieName = "refresh_token"
	tokenIssuer       = "fedauth"

	configCodeMissingJWTSecret        = "config.missing_jwt_secret"
	configCodeMissingJWTRefreshSecret = "config.missing_jwt_refresh_secret"
	configCodeSharedJWTSecrets        = "config.shared_jwt_secrets"
	configCodeMissingCORS             = "config.missing_cors"
	configCodeInvalidAccessTTL        = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_ttl"
	configCodeUninitializedAppConf    = "config.uninitialized_app_config"
)

type contextKey string

const appConfigContextKey contextKey = "appConfig"

// AppConfig aggregates everything loaded at startup. Components receive it
// explicitly; nothing else reads the environment.
type AppConfig struct {
	Server         authkit.ServerConfig
	GitHub         providers.Config
	Google         providers.Config
	AllowedOrigins []string
	ListenAddr     string
	DatabaseURL    string
}

func prepareAppConfig(command *cobra.Command, arguments []string) error {
	appConfig, loadErr := LoadAppConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, appConfigContextKey, appConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadAppConfig assembles the immutable startup configuration. Any missing
// secret, provider credential, or allowlist entry is fatal here; the
// service never runs half-configured.
func LoadAppConfig() (AppConfig, error) {
	jwtSecret := viper.GetString("jwt_secret")
	if jwtSecret == "" {
		return AppConfig{}, configError(configCodeMissingJWTSecret, "JWT_SECRET must be provided")
	}
	jwtRefreshSecret := viper.GetString("jwt_refresh_secret")
	if jwtRefreshSecret == "" {
		return AppConfig{}, configError(configCodeMissingJWTRefreshSecret, "JWT_REFRESH_SECRET must be provided")
	}
	if jwtSecret == jwtRefreshSecret {
		return AppConfig{}, configError(configCodeSharedJWTSecrets, "JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}

	corsValue := viper.GetString("cors")
	if strings.TrimSpace(corsValue) == "" {
		return AppConfig{}, configError(configCodeMissingCORS, "CORS must list at least one allowed origin")
	}
	allowedOrigins := strings.Split(corsValue, ",")

	accessTTL := viper.GetDuration("access_ttl")
	if accessTTL <= 0 {
		return AppConfig{}, configError(configCodeInvalidAccessTTL, "access_ttl must be greater than zero")
	}
	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return AppConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	return AppConfig{
		Server: authkit.ServerConfig{
			Issuer:            tokenIssuer,
			AccessSecret:      []byte(jwtSecret),
			RefreshSecret:     []byte(jwtRefreshSecret),
			AccessTTL:         accessTTL,
			RefreshTTL:        refreshTTL,
			RefreshCookieName: refreshCookieName,
			CookieDomain:      viper.GetString("cookie_domain"),
		},
		GitHub: providers.Config{
			ClientID:     viper.GetString("github_client_id"),
			ClientSecret: viper.GetString("github_client_secret"),
			CallbackURL:  viper.GetString("github_callback_url"),
		},
		Google: providers.Config{
			ClientID:     viper.GetString("google_client_id"),
			ClientSecret: viper.GetString("google_client_secret"),
			CallbackURL:  viper.GetString("google_callback_url"),
		},
		AllowedOrigins: allowedOrigins,
		ListenAddr:     viper.GetString("listen_addr"),
		DatabaseURL:    viper.GetString("database_url"),
	}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(appConfigContextKey)
	}
	appConfig, ok := contextValue.(AppConfig)
	if !ok {
		return configError(configCodeUninitializedAppConf, "app configuration not prepared; PreRunE must execute before RunE")
	}

	redirectAllowlist, allowlistErr := authkit.NewRedirectAllowlist(appConfig.AllowedOrigins)
	if allowlistErr != nil {
		return allowlistErr
	}

	githubProvider, githubErr := providers.NewGitHubProvider(appConfig.GitHub)
	if githubErr != nil {
		return githubErr
	}
	googleProvider, googleErr := providers.NewGoogleProvider(appConfig.Google)
	if googleErr != nil {
		return googleErr
	}
	registry := providers.NewRegistry(githubProvider, googleProvider)

	tokenService, tokenErr := authkit.NewTokenService(appConfig.Server, authkit.NewSystemClock())
	if tokenErr != nil {
		return tokenErr
	}

	var userStore directory.Store
	if appConfig.DatabaseURL != "" {
		databaseStore, storeErr := directory.NewDatabaseStore(context.Background(), appConfig.DatabaseURL)
		if storeErr != nil {
			return storeErr
		}
		userStore = databaseStore
		logger.Info("using persistent user directory", zap.String("driver", databaseStore.Driver()))
	} else {
		userStore = directory.NewMemoryStore()
		logger.Info("using in-memory user directory")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	corsMiddleware, corsErr := web.ConfigureCORS(redirectAllowlist.Origins())
	if corsErr != nil {
		return corsErr
	}
	router.Use(corsMiddleware)

	metricsRecorder := authkit.NewCounterMetrics()
	authHandler := authkit.NewAuthHandler(appConfig.Server, registry, userStore, tokenService, redirectAllowlist, logger, metricsRecorder)
	authHandler.Mount(router)

	router.GET("/demo", func(contextGin *gin.Context) {
		web.ServeEmbeddedHTML(contextGin, webassets.FS, "demo.html")
	})

	protected := router.Group("/api")
	protected.Use(authkit.RequireAccessToken(tokenService))
	protected.GET("/users", web.HandleListUsers(logger, userStore))
	protected.GET("/users/me", web.HandleCurrentUser(logger, userStore))
	protected.GET("/users/:id", authkit.RequireRoles(userStore, "admin"), web.HandleGetUser(logger, userStore))
	protected.PUT("/users/:id", authkit.RequireRoles(userStore, "admin"), web.HandleUpdateUser(logger, userStore))
	protected.DELETE("/users/:id", authkit.RequireRoles(userStore, "admin"), web.HandleDeleteUser(logger, userStore))

	server := &http.Server{
		Addr:              appConfig.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening",
		zap.String("addr", appConfig.ListenAddr),
		zap.Strings("providers", registry.Names()))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
