package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rubberband/rubberband/handlers"
	"github.com/rubberband/rubberband/internal/archive"
	"github.com/rubberband/rubberband/internal/config"
	"github.com/rubberband/rubberband/internal/database"
	"github.com/rubberband/rubberband/internal/index"
	"github.com/rubberband/rubberband/internal/ingest"
	"github.com/rubberband/rubberband/internal/oidc"
	"github.com/rubberband/rubberband/internal/query"
	"github.com/rubberband/rubberband/internal/sessions"
	"github.com/rubberband/rubberband/internal/tenant"
	"github.com/rubberband/rubberband/internal/users"
	"github.com/rubberband/rubberband/pkg/logger"
	"github.com/rubberband/rubberband/pkg/metrics"
	"github.com/rubberband/rubberband/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging first (LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v minio=%v index_dir=%q",
		cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "", cfg.Index.Dir)

	ctx := context.Background()
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS middleware: the search API is meant to be called from
	// customer pages on arbitrary origins.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// Redis: sessions, token blacklist, distributed rate limiting. All
	// features degrade gracefully without it.
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			rdb = nil
		} else {
			sessions.SetBlacklistClient(rdb)
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Document index backend. One bleve index per site under Index.Dir.
	store := index.NewBleveStore(cfg.Index.Dir)
	defer func() { _ = store.Close() }()

	// Tenant registry: Mongo when configured, in-memory otherwise.
	var mongoClient *mongo.Client
	var tenantRepo tenant.Repository
	var userSvc *users.Service
	var sessionsSvc *sessions.Service

	if rdb != nil {
		sessionsSvc = sessions.NewService(sessions.NewRedisRepository(rdb, "session:"))
	}

	if cfg.MongoDB.URI != "" {
		mongoClient, err = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			logger.Warnf("could not connect to MongoDB: %v", err)
		} else {
			defer func() { _ = mongoClient.Disconnect(ctx) }()
			db := mongoClient.Database(cfg.MongoDB.Database)

			tenantRepo = tenant.NewMongoRepository(db.Collection("sites"))
			userSvc = users.NewService(users.NewMongoUserRepository(db.Collection("users")))
			if sessionsSvc == nil {
				sessionsSvc = sessions.NewService(sessions.NewMongoRepository(db.Collection("sessions")))
			}
		}
	}
	if tenantRepo == nil {
		logger.Warnf("site registry running in-memory; registered sites are lost on restart")
		tenantRepo = tenant.NewMemoryRepository()
	}
	tenants := tenant.NewService(tenantRepo, store)

	// Optional raw-content archive.
	var arc archive.Archive
	if cfg.MinIO.Endpoint != "" {
		a, err := archive.NewMinIOArchive(&archive.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warnf("raw-content archive disabled: %v", err)
		} else {
			arc = a
			logger.Infof("archiving raw content to bucket %q", cfg.MinIO.Bucket)
		}
	}

	// OIDC verifier for the owner console. The insecure variant is an
	// explicit opt-in for integration tests.
	var verifier middleware.Verifier
	if cfg.OIDC.Issuer != "" && cfg.OIDC.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = ver
		}
	}
	if verifier == nil && strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_INSECURE_TOKEN")), "true") {
		logger.Warn("enabling insecure OIDC verifier (integration mode)")
		verifier = oidc.NewInsecureVerifier()
	}

	// Core services.
	ingestSvc := ingest.NewService(tenants, store, arc)
	querySvc := query.NewService(tenants, store, cfg.Platform.Host)

	// Public write + read surface.
	handlers.NewIngestHandler(ingestSvc, cfg.Server.MaxBodyBytes).Register(r)
	searchHandler := handlers.NewSearchHandler(querySvc)
	if verifier != nil {
		auth := middleware.OptionalAuthMiddleware(verifier)
		r.GET("/search", auth, searchHandler.ContextSearch)
		r.POST("/search", auth, searchHandler.ContextSearch)
		r.GET("/:slug", searchHandler.SiteSearch)
	} else {
		searchHandler.Register(r)
	}

	// Owner console.
	if verifier != nil {
		handlers.NewSitesHandler(tenants).Register(r.Group("/"), verifier)
		if userSvc != nil && sessionsSvc != nil {
			handlers.NewAuthHandler(cfg, userSvc, sessionsSvc, verifier).Register(r.Group("/"))
		} else {
			logger.Warnf("auth endpoints not registered; user/session services unavailable")
		}
	} else {
		logger.Warnf("console endpoints not registered; no OIDC verifier configured")
	}

	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// Readiness: the index store is mandatory, everything else reports its
	// configured/connected state.
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{
			"index":    true,
			"registry": tenantRepo != nil,
		}
		if cfg.MongoDB.URI != "" {
			deps["mongo"] = mongoClient != nil
			if !deps["mongo"] {
				ready = false
			}
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = rdb != nil
			if cfg.RateLimit.UseRedis && !deps["redis"] {
				ready = false
			}
		}
		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting rubberband on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
