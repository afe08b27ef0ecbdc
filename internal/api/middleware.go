package api

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/portfoliopilot/backend/internal/ratelimit"
)

// getJwtSecret retrieves the JWT secret used to validate bearer tokens.
func getJwtSecret() ([]byte, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable not set")
	}
	return []byte(secret), nil
}

// parseBearerToken extracts the token from an Authorization header value.
// Only the exact "Bearer " prefix is accepted.
func parseBearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := header[len("Bearer "):]
	if token == "" {
		return "", false
	}
	return token, true
}

// isOwner reports whether the caller may act for the requested user id.
// An absent requested id means "the caller themselves".
func isOwner(requestedUserID, currentUserID string) bool {
	if requestedUserID == "" {
		return true
	}
	return requestedUserID == currentUserID
}

// AuthMiddleware resolves the bearer token into a verified user identity.
// On success userID and userEmail are set in the context; otherwise the
// request fails with UNAUTHORIZED. There is no anonymous fallback.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := parseBearerToken(c.GetHeader("Authorization"))
		if !ok {
			Failure(c, 401, CodeUnauthorized, "Unauthorized", nil)
			return
		}

		jwtSecret, err := getJwtSecret()
		if err != nil {
			Failure(c, 500, "AUTH_CONFIG_ERROR", "JWT secret configuration error", nil)
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			Failure(c, 401, CodeUnauthorized, "Unauthorized", nil)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			Failure(c, 401, CodeUnauthorized, "Unauthorized", nil)
			return
		}
		userID, _ := claims["sub"].(string)
		email, _ := claims["email"].(string)
		if userID == "" {
			Failure(c, 401, CodeUnauthorized, "Unauthorized", nil)
			return
		}
		c.Set("userID", userID)
		c.Set("userEmail", email)
		c.Next()
	}
}

// RequestIDMiddleware ensures every request has an X-Request-ID. If absent, generate one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Set("requestID", rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

// clientIP normalizes the caller's network address for rate-limit keys.
func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if net.ParseIP(ip) == nil {
		return "unknown"
	}
	return ip
}

// --- Rate limiting ---

// limiter is the process-wide smart limiter. Constructed without Redis by
// default; InitRateLimiterFromEnv upgrades it when PILOT_REDIS_ADDR is set.
var limiter = ratelimit.NewSmartLimiter(ratelimit.NewLimiter(), nil)

// Limiter exposes the active limiter for the prune job and for tests.
func Limiter() *ratelimit.SmartLimiter { return limiter }

// InitRateLimiterFromEnv attaches the optional Redis backend. Absence of the
// address keeps the purely local limiter; any later Redis failure falls back
// per check.
func InitRateLimiterFromEnv() {
	addr := os.Getenv("PILOT_REDIS_ADDR")
	if addr == "" {
		return
	}
	rc := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("PILOT_REDIS_PASSWORD"),
		DB:       parseEnvInt("PILOT_REDIS_DB", 0),
	})
	limiter = ratelimit.NewSmartLimiter(limiter.Local(), rc)
}

func applyRateLimitHeaders(c *gin.Context, limit int, r ratelimit.Result) {
	remaining := r.Remaining
	if remaining < 0 {
		remaining = 0
	}
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(r.ResetAt.Unix(), 10))
}

// RateLimitPerUser applies the smart (Redis-or-local) fixed-window limit keyed
// by action:userID:ip. It must run after AuthMiddleware. The X-RateLimit-*
// headers are attached on every response path, allowed or not.
func RateLimitPerUser(action string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := clientIP(c)
		key := fmt.Sprintf("%s:%s:%s", action, c.GetString("userID"), ip)
		r := limiter.CheckSmart(c.Request.Context(), key, limit, window)
		applyRateLimitHeaders(c, limit, r)
		if !r.Allowed {
			logEvent(action+"_rate_limited", RequestID(c)).
				WithFields(logrus.Fields{"user_id": c.GetString("userID"), "ip": ip}).
				Warn("rate limit exceeded")
			rateLimitRejectTotal.WithLabelValues(action).Inc()
			Failure(c, 429, CodeRateLimited, "Too many requests", nil)
			return
		}
		c.Next()
	}
}

// RateLimitPerIP applies the local fixed-window limit keyed by network address
// only. Used on endpoints that run before any identity exists.
func RateLimitPerIP(action string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := clientIP(c)
		key := fmt.Sprintf("%s:%s", action, ip)
		r := limiter.Local().Check(key, limit, window, time.Now())
		applyRateLimitHeaders(c, limit, r)
		if !r.Allowed {
			rateLimitRejectTotal.WithLabelValues(action).Inc()
			Failure(c, 429, CodeRateLimited, "Too many requests", nil)
			return
		}
		c.Next()
	}
}

// helpers
func parseEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
