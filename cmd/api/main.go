package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"zkbridge/internal/agent"
	"zkbridge/internal/auth"
	"zkbridge/internal/config"
	"zkbridge/internal/device"
	"zkbridge/internal/httpmiddleware"
	"zkbridge/internal/migrate"
	"zkbridge/internal/queue"
	"zkbridge/internal/records"
	"zkbridge/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger, _ := zap.NewProduction()
	if cfg.Env == "dev" {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx := context.Background()

	if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
		logger.Warn("migrations not applied", zap.Error(err))
	}

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		if db == nil {
			return fmt.Errorf("db open: %w", err)
		}
		// Pool opened but the ping failed; keep serving and let healthz report it.
		logger.Warn("db not reachable", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "zkbridge:sync")
	}

	dialer := agent.New(cfg.AgentURL)
	guard := device.NewGuard(dialer, cfg.DevicePort, cfg.ConnectTimeout)
	dev := device.NewService(guard, cfg.Retention())

	repo := records.NewRepository(db.Client)
	syncSvc := records.NewService(repo, dev, cfg.Retention())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/operators/register", func(c *gin.Context) {
		var req struct {
			OperatorID string `json:"operator_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.OperatorID, "operator", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "token issue failed"})
			return
		}

		_ = repo.SaveRefreshToken(c.Request.Context(), req.OperatorID, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"success":       true,
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.OperatorAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// Live terminal reads.
	authGroup.GET("/terminals/:addr/users", func(c *gin.Context) {
		res := dev.GetUsers(c.Request.Context(), c.Param("addr"))
		c.JSON(res.HTTPStatus(), res)
	})

	authGroup.GET("/terminals/:addr/attendance", func(c *gin.Context) {
		retention := cfg.Retention()
		if v := c.Query("days"); v != "" {
			if days, err := strconv.Atoi(v); err == nil && days > 0 {
				retention = time.Duration(days) * 24 * time.Hour
			}
		}
		res := dev.GetRecentAttendance(c.Request.Context(), c.Param("addr"), retention)
		c.JSON(res.HTTPStatus(), res)
	})

	// Provisioning. Writes disable the terminal for their duration, so these
	// are slower than reads and must not be issued concurrently per device.
	authGroup.POST("/terminals/:addr/users", func(c *gin.Context) {
		var req struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		res := dev.AddUser(c.Request.Context(), c.Param("addr"), req.Name)
		status := res.HTTPStatus()
		if res.Success {
			status = http.StatusCreated
		}
		c.JSON(status, res)
	})

	authGroup.PUT("/terminals/:addr/users/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid user id"})
			return
		}
		var req struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		res := dev.EditUser(c.Request.Context(), c.Param("addr"), id, req.Name)
		c.JSON(res.HTTPStatus(), res)
	})

	authGroup.DELETE("/terminals/:addr/users/:id", func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid user id"})
			return
		}
		res := dev.DeleteUser(c.Request.Context(), c.Param("addr"), id)
		c.JSON(res.HTTPStatus(), res)
	})

	// Queue a background sync for one terminal.
	authGroup.POST("/terminals/:addr/sync", func(c *gin.Context) {
		addr := c.Param("addr")
		if err := q.Publish(c.Request.Context(), queue.Message{Type: "sync", Body: []byte(addr)}); err != nil {
			logger.Error("queue publish failed", zap.String("terminal", addr), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "sync queue unavailable"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"success": true, "data": gin.H{"terminal": addr, "queued": true}})
	})

	// Stored history.
	authGroup.GET("/logs", func(c *gin.Context) {
		page, pageSize := 1, 100
		if v := c.Query("page"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				page = parsed
			}
		}
		if v := c.Query("page_size"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				pageSize = parsed
			}
		}
		entries, total, err := repo.ListLogs(c.Request.Context(), c.Query("terminal"), page, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"total":   total,
			"page":    page,
			"count":   len(entries),
			"data":    entries,
		})
	})

	authGroup.GET("/logs/late", func(c *gin.Context) {
		cutoff, err := cutoffQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "cutoff must be HH:MM"})
			return
		}
		late, err := syncSvc.LateReport(c.Request.Context(), c.Query("terminal"), time.Now(), cutoff)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(late), "data": late})
	})

	authGroup.GET("/logs/late/weekly", func(c *gin.Context) {
		cutoff, err := cutoffQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "cutoff must be HH:MM"})
			return
		}
		days, err := syncSvc.WeeklyLateReport(c.Request.Context(), c.Query("terminal"), time.Now(), cutoff)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(days), "data": days})
	})

	authGroup.GET("/logs/workhours", func(c *gin.Context) {
		day := time.Now()
		if v := c.Query("date"); v != "" {
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "date must be YYYY-MM-DD"})
				return
			}
			day = parsed
		}
		hours, err := syncSvc.WorkHours(c.Request.Context(), c.Query("terminal"), day)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(hours), "data": hours})
	})

	authGroup.GET("/directory", func(c *gin.Context) {
		users, err := repo.ListUsers(c.Request.Context(), c.Query("terminal"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(users), "data": users})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // live device reads can be slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}

// cutoffQuery reads the optional ?cutoff=HH:MM parameter, defaulting to 08:30.
func cutoffQuery(c *gin.Context) (time.Duration, error) {
	v := c.Query("cutoff")
	if v == "" {
		return 8*time.Hour + 30*time.Minute, nil
	}
	parsed, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
