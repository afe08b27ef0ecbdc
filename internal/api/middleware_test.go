package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func TestParseBearerToken(t *testing.T) {
	tok, ok := parseBearerToken("Bearer abc.def.ghi")
	if !ok || tok != "abc.def.ghi" {
		t.Fatalf("want token abc.def.ghi, got %q ok=%v", tok, ok)
	}
	if _, ok := parseBearerToken("Basic 123"); ok {
		t.Fatal("Basic scheme must not parse")
	}
	if _, ok := parseBearerToken(""); ok {
		t.Fatal("empty header must not parse")
	}
	if _, ok := parseBearerToken("bearer abc"); ok {
		t.Fatal("prefix match is case-sensitive")
	}
	if _, ok := parseBearerToken("Bearer "); ok {
		t.Fatal("empty token must not parse")
	}
}

func TestIsOwner(t *testing.T) {
	if !isOwner("", "user-1") {
		t.Fatal("absent requested id means the caller themselves")
	}
	if !isOwner("user-1", "user-1") {
		t.Fatal("matching ids are owner")
	}
	if isOwner("user-2", "user-1") {
		t.Fatal("foreign id is not owner")
	}
}

func signTestToken(t *testing.T, secret, sub, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestAuthMiddleware(t *testing.T) {
	os.Setenv("JWT_SECRET", "test_secret")
	t.Cleanup(func() { os.Unsetenv("JWT_SECRET") })
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware(), AuthMiddleware())
	r.GET("/whoami", func(c *gin.Context) {
		Success(c, 200, gin.H{"id": c.GetString("userID"), "email": c.GetString("userEmail")}, nil)
	})

	// valid token
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "test_secret", "user-1", "a@b.co"))
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("valid token: want 200, got %d: %s", w.Code, w.Body.String())
	}

	// missing header
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if w.Code != 401 {
		t.Fatalf("missing header: want 401, got %d", w.Code)
	}

	// wrong secret
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "other_secret", "user-1", "a@b.co"))
	r.ServeHTTP(w, req)
	if w.Code != 401 {
		t.Fatalf("wrong secret: want 401, got %d", w.Code)
	}

	// wrong scheme
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Basic abc")
	r.ServeHTTP(w, req)
	if w.Code != 401 {
		t.Fatalf("basic scheme: want 401, got %d", w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { Success(c, 200, nil, nil) })

	// echoes an inbound id
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "rid-123")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "rid-123" {
		t.Fatalf("want echoed rid-123, got %q", got)
	}

	// generates one when absent
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestRateLimitPerIP(t *testing.T) {
	Limiter().Local().Reset()
	t.Cleanup(func() { Limiter().Local().Reset() })
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", RateLimitPerIP("test:verify", 2, time.Minute), func(c *gin.Context) {
		Success(c, 200, nil, nil)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != 200 {
			t.Fatalf("call %d: want 200, got %d", i+1, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "2" {
			t.Fatalf("call %d: missing limit header", i+1)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != 429 {
		t.Fatalf("third call: want 429, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("rejection must floor remaining at 0, got %q", w.Header().Get("X-RateLimit-Remaining"))
	}
	if w.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatal("reset header must be present on rejections")
	}
}
