package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func setRequiredConfig() {
	viper.Set("jwt_secret", "access-secret")
	viper.Set("jwt_refresh_secret", "refresh-secret")
	viper.Set("cors", "https://app.example.com")
	viper.Set("access_ttl", 15*time.Minute)
	viper.Set("refresh_ttl", 7*24*time.Hour)
	viper.Set("github_client_id", "github-client")
	viper.Set("github_client_secret", "github-secret")
	viper.Set("github_callback_url", "https://auth.example.com/auth/github/callback")
	viper.Set("google_client_id", "google-client")
	viper.Set("google_client_secret", "google-secret")
	viper.Set("google_callback_url", "https://auth.example.com/auth/google/callback")
}

func TestZapLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	logger, err := zap.NewProduction()
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	router := gin.New()
	router.Use(zapLoggerMiddleware(logger))
	router.GET("/ping", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
}

func TestRunServerMissingConfig(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	err := runServer(&cobra.Command{}, nil)
	if err == nil {
		t.Fatalf("expected configuration error")
	}

	expectedMessage := "config.uninitialized_app_config: app configuration not prepared; PreRunE must execute before RunE"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadAppConfigRequiresJWTSecret(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	_, err := LoadAppConfig()
	if err == nil {
		t.Fatalf("expected error when jwt_secret is missing")
	}
	expectedMessage := "config.missing_jwt_secret: JWT_SECRET must be provided"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadAppConfigRequiresDistinctSecrets(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("jwt_secret", "shared-secret")
	viper.Set("jwt_refresh_secret", "shared-secret")

	_, err := LoadAppConfig()
	if err == nil {
		t.Fatalf("expected error when the two secrets match")
	}
	expectedMessage := "config.shared_jwt_secrets: JWT_SECRET and JWT_REFRESH_SECRET must differ"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadAppConfigRequiresCORS(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("jwt_secret", "access-secret")
	viper.Set("jwt_refresh_secret", "refresh-secret")

	_, err := LoadAppConfig()
	if err == nil {
		t.Fatalf("expected error when cors is missing")
	}
	expectedMessage := "config.missing_cors: CORS must list at least one allowed origin"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadAppConfigRequiresPositiveAccessTTL(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setRequiredConfig()
	viper.Set("access_ttl", 0)

	_, err := LoadAppConfig()
	if err == nil {
		t.Fatalf("expected error when access_ttl is non-positive")
	}
	expectedMessage := "config.invalid_access_ttl: access_ttl must be greater than zero"
	if err.Error() != expectedMessage {
		t.Fatalf("expected error %q, got %q", expectedMessage, err.Error())
	}
}

func TestLoadAppConfigSplitsOrigins(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setRequiredConfig()
	viper.Set("cors", "https://app.example.com,https://admin.example.com")

	config, err := LoadAppConfig()
	if err != nil {
		t.Fatalf("expected configuration load to succeed, got %v", err)
	}
	if len(config.AllowedOrigins) != 2 {
		t.Fatalf("expected two origins, got %d", len(config.AllowedOrigins))
	}
}

func TestRunServerSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	restoreServe := withServeHTTPStub(func(server *http.Server) error {
		if server.Handler == nil {
			t.Fatalf("expected handler to be configured")
		}
		return http.ErrServerClosed
	})
	defer restoreServe()

	setRequiredConfig()
	viper.Set("listen_addr", ":0")
	viper.Set("database_url", "sqlite://file:main_success?mode=memory&cache=shared")

	config, err := LoadAppConfig()
	if err != nil {
		t.Fatalf("expected configuration load to succeed, got %v", err)
	}

	command := &cobra.Command{}
	command.SetContext(context.WithValue(context.Background(), appConfigContextKey, config))

	if err := runServer(command, nil); err != nil {
		t.Fatalf("expected runServer to succeed, got %v", err)
	}
}

func TestRunServerInMemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	restoreServe := withServeHTTPStub(func(server *http.Server) error {
		return http.ErrServerClosed
	})
	defer restoreServe()

	setRequiredConfig()
	viper.Set("listen_addr", ":0")

	config, err := LoadAppConfig()
	if err != nil {
		t.Fatalf("expected configuration load to succeed, got %v", err)
	}

	command := &cobra.Command{}
	command.SetContext(context.WithValue(context.Background(), appConfigContextKey, config))

	if err := runServer(command, nil); err != nil {
		t.Fatalf("expected runServer to succeed with in-memory store, got %v", err)
	}
}

func TestRunServerRejectsMissingProviderCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)

	viper.Reset()
	defer viper.Reset()

	setRequiredConfig()
	viper.Set("github_client_id", "")

	config, err := LoadAppConfig()
	if err != nil {
		t.Fatalf("expected configuration load to succeed, got %v", err)
	}

	command := &cobra.Command{}
	command.SetContext(context.WithValue(context.Background(), appConfigContextKey, config))

	if err := runServer(command, nil); err == nil {
		t.Fatalf("expected provider configuration error")
	}
}

func TestNewRootCommandHelp(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected help execution to succeed: %v", err)
	}
}

func withServeHTTPStub(stub func(server *http.Server) error) func() {
	previous := serveHTTP
	serveHTTP = stub
	return func() {
		serveHTTP = previous
	}
}
