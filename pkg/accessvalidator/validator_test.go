package accessvalidator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type fixedClock struct {
	instant time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.instant
}

var testSigningKey = []byte("access-signing-key")

const testIssuer = "fedauth"

func mintToken(t *testing.T, issuer string, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		Email: "a@b.com",
		Name:  "A B",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "user-123",
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	signed, signErr := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	if signErr != nil {
		t.Fatalf("sign error: %v", signErr)
	}
	return signed
}

func newTestValidator(t *testing.T, now time.Time) *Validator {
	t.Helper()
	validator, newErr := New(Config{
		SigningKey: testSigningKey,
		Issuer:     testIssuer,
		Clock:      fixedClock{instant: now},
	})
	if newErr != nil {
		t.Fatalf("validator error: %v", newErr)
	}
	return validator
}

func TestNewValidatesConfig(t *testing.T) {
	if _, newErr := New(Config{Issuer: testIssuer}); !errors.Is(newErr, ErrMissingSigningKey) {
		t.Fatalf("expected ErrMissingSigningKey, got %v", newErr)
	}
	if _, newErr := New(Config{SigningKey: testSigningKey, Issuer: " "}); !errors.Is(newErr, ErrMissingIssuer) {
		t.Fatalf("expected ErrMissingIssuer, got %v", newErr)
	}
}

func TestValidateTokenRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	validator := newTestValidator(t, now)
	tokenString := mintToken(t, testIssuer, now, 15*time.Minute)

	claims, validateErr := validator.ValidateToken(tokenString)
	if validateErr != nil {
		t.Fatalf("validate error: %v", validateErr)
	}
	if claims.GetUserID() != "user-123" {
		t.Fatalf("expected user-123, got %s", claims.GetUserID())
	}
	if claims.GetEmail() != "a@b.com" {
		t.Fatalf("unexpected email %s", claims.GetEmail())
	}
	if claims.GetDisplayName() != "A B" {
		t.Fatalf("unexpected name %s", claims.GetDisplayName())
	}
	if claims.GetExpiresAt().IsZero() {
		t.Fatalf("expected expiry to be carried")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	now := time.Now().UTC()
	validator := newTestValidator(t, now.Add(16*time.Minute))
	tokenString := mintToken(t, testIssuer, now, 15*time.Minute)

	if _, validateErr := validator.ValidateToken(tokenString); !errors.Is(validateErr, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", validateErr)
	}
}

func TestValidateTokenRejectsForeignIssuer(t *testing.T) {
	now := time.Now().UTC()
	validator := newTestValidator(t, now)
	tokenString := mintToken(t, "someone-else", now, 15*time.Minute)

	if _, validateErr := validator.ValidateToken(tokenString); !errors.Is(validateErr, ErrInvalidIssuer) {
		t.Fatalf("expected ErrInvalidIssuer, got %v", validateErr)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	validator := newTestValidator(t, time.Now().UTC())

	if _, validateErr := validator.ValidateToken(""); !errors.Is(validateErr, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", validateErr)
	}
	if _, validateErr := validator.ValidateToken("not-a-jwt"); !errors.Is(validateErr, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", validateErr)
	}
}

func TestValidateRequestReadsBearerHeader(t *testing.T) {
	now := time.Now().UTC()
	validator := newTestValidator(t, now)
	tokenString := mintToken(t, testIssuer, now, 15*time.Minute)

	request := httptest.NewRequest(http.MethodGet, "/resource", nil)
	request.Header.Set("Authorization", "Bearer "+tokenString)
	claims, validateErr := validator.ValidateRequest(request)
	if validateErr != nil {
		t.Fatalf("validate error: %v", validateErr)
	}
	if claims.GetUserID() != "user-123" {
		t.Fatalf("expected user-123, got %s", claims.GetUserID())
	}

	bare := httptest.NewRequest(http.MethodGet, "/resource", nil)
	if _, missingErr := validator.ValidateRequest(bare); !errors.Is(missingErr, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", missingErr)
	}

	malformed := httptest.NewRequest(http.MethodGet, "/resource", nil)
	malformed.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if _, schemeErr := validator.ValidateRequest(malformed); !errors.Is(schemeErr, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken for non-bearer scheme, got %v", schemeErr)
	}
}

func TestGinMiddleware(t *testing.T) {
	now := time.Now().UTC()
	validator := newTestValidator(t, now)
	tokenString := mintToken(t, testIssuer, now, 15*time.Minute)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(validator.GinMiddleware(""))
	router.GET("/resource", func(contextGin *gin.Context) {
		claimsValue, found := contextGin.Get(DefaultContextKey)
		if !found {
			contextGin.Status(http.StatusInternalServerError)
			return
		}
		claims, ok := claimsValue.(*Claims)
		if !ok || claims.GetUserID() != "user-123" {
			contextGin.Status(http.StatusInternalServerError)
			return
		}
		contextGin.Status(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodGet, "/resource", nil)
	request.Header.Set("Authorization", "Bearer "+tokenString)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/resource", nil))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", recorder.Code)
	}
}
