package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	database "github.com/portfoliopilot/backend/internal"
	"github.com/portfoliopilot/backend/internal/api"
	"github.com/portfoliopilot/backend/internal/eventbus"
)

func main() {
	database.Connect()
	api.InitRateLimiterFromEnv()
	api.InitBlobStoreFromEnv()

	// Lifecycle events stay in-process unless a NATS URL is configured (and
	// the binary was built with -tags nats).
	if natsURL := os.Getenv("PILOT_NATS_URL"); natsURL != "" {
		if bus, err := eventbus.NewNatsBus(natsURL); err != nil {
			log.Printf("warning: nats bus unavailable, using local bus: %v", err)
		} else {
			api.SetEventBus(bus)
			defer bus.Close()
		}
	}

	// Expired local rate-limit buckets accumulate from one-off keys; prune
	// them on a schedule.
	pruner := cron.New()
	if _, err := pruner.AddFunc("@every 5m", func() {
		api.Limiter().Local().Prune(time.Now())
	}); err != nil {
		log.Printf("warning: failed to schedule limiter prune: %v", err)
	}
	pruner.Start()
	defer pruner.Stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = os.Getenv("PILOT_PORT")
	}
	if port == "" {
		port = "8080"
	}
	log.Println("Starting PortfolioPilot backend server on :" + port + "...")

	router := gin.Default()
	router.Use(api.MetricsMiddleware())
	// Assign a Request ID to every request for tracing
	router.Use(api.RequestIDMiddleware())

	config := cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:   []string{"Content-Length", "X-Request-ID"},
		MaxAge:          12 * time.Hour,
	}
	// Override allowed origins via env (comma-separated)
	if origins := os.Getenv("PILOT_CORS_ORIGINS"); origins != "" {
		config.AllowAllOrigins = false
		parts := strings.Split(origins, ",")
		allow := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				allow = append(allow, s)
			}
		}
		if len(allow) > 0 {
			config.AllowOrigins = allow
		}
	}
	router.Use(cors.New(config))

	// Optionally configure trusted proxies (comma-separated CIDRs or IPs)
	if tp := os.Getenv("PILOT_TRUSTED_PROXIES"); tp != "" {
		parts := strings.Split(tp, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := router.SetTrustedProxies(parts); err != nil {
			log.Printf("warning: failed to set trusted proxies: %v", err)
		}
	}

	// Health and readiness
	router.GET("/healthz", func(c *gin.Context) { c.Status(200) })
	router.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 300*time.Millisecond)
		defer cancel()
		if err := database.DB.DB.PingContext(ctx); err != nil {
			c.JSON(503, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// --- Public routes ---
	router.GET("/profile/:id", api.GetProfile)
	router.GET("/verification/verify",
		api.RateLimitPerIP("verification:verify", 60, time.Minute),
		api.ViewVerificationRequest)

	// --- Protected routes (require user bearer auth) ---
	protected := router.Group("/")
	protected.Use(api.AuthMiddleware())
	{
		achievements := protected.Group("/achievements")
		{
			achievements.GET("", api.ListAchievements)
			achievements.POST("", api.CreateAchievement)
			achievements.GET("/:id", api.GetAchievement)
			achievements.PATCH("/:id", api.UpdateAchievement)
			achievements.DELETE("/:id", api.DeleteAchievement)
		}

		upload := protected.Group("/upload")
		upload.Use(api.RateLimitPerUser("upload", 20, 10*time.Minute))
		{
			upload.POST("", api.UploadFile)
			upload.DELETE("", api.DeleteFile)
		}

		verification := protected.Group("/verification")
		{
			verification.POST("/request",
				api.RateLimitPerUser("verification:request", 10, 10*time.Minute),
				api.CreateVerificationRequest)
			verification.POST("/respond",
				api.RateLimitPerUser("verification:respond", 30, 10*time.Minute),
				api.RespondVerification)
		}
	}

	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
