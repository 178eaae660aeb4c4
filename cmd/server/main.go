// Package main runs the event marketplace HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventmarket/backend/config"
	"github.com/eventmarket/backend/internal/auth"
	"github.com/eventmarket/backend/internal/emaillogs"
	"github.com/eventmarket/backend/internal/invites"
	"github.com/eventmarket/backend/internal/membership"
	"github.com/eventmarket/backend/internal/memstore"
	"github.com/eventmarket/backend/internal/middleware"
	"github.com/eventmarket/backend/internal/notify"
	"github.com/eventmarket/backend/internal/organizations"
	"github.com/eventmarket/backend/internal/profiles"
	"github.com/eventmarket/backend/internal/quotations"
	"github.com/eventmarket/backend/internal/rfqs"
	"github.com/eventmarket/backend/pkg/database"
	"github.com/eventmarket/backend/pkg/queue"
	"github.com/eventmarket/backend/pkg/redis"
	"github.com/eventmarket/backend/pkg/response"
	"github.com/eventmarket/backend/pkg/storage"
)

// stores groups the persistence behind every service.
type stores struct {
	profiles   membership.ProfileStore
	orgs       organizations.Store
	invites    invites.Store
	rfqs       rfqs.Store
	quotations quotations.Store
	emailLogs  emaillogs.Lister
	close      func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory storage; data is lost on restart")
		mem := memstore.New()
		return &stores{
			profiles: mem, orgs: mem, invites: mem, rfqs: mem, quotations: mem, emailLogs: mem,
			close: func() {},
		}, nil
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(),
		database.PoolOptions{MaxConns: int32(cfg.Database.MaxConns)}, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return &stores{
		profiles:   profiles.NewRepository(pool),
		orgs:       organizations.NewRepository(pool),
		invites:    invites.NewRepository(pool),
		rfqs:       rfqs.NewRepository(pool),
		quotations: quotations.NewRepository(pool),
		emailLogs:  emaillogs.NewRepository(pool),
		close:      pool.Close,
	}, nil
}

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.JWT.Secret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	ctx := context.Background()
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer st.close()

	// Notifications go through the Redis queue when configured.
	var notifier notify.Dispatcher = notify.NewLogDispatcher(logger)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		notifier = notify.NewQueueDispatcher(queue.NewQueue(rdb.Client, logger), logger)
	} else {
		logger.Warn("REDIS_ADDR not set, notification emails will only be logged")
	}

	var files rfqs.Presigner
	if cfg.AWS.AttachmentsBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Bucket:               cfg.AWS.AttachmentsBucket,
			Endpoint:             cfg.AWS.Endpoint,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			files = s3Client
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
	guard := membership.NewGuard(st.profiles, logger)

	profileHandler := profiles.NewHandler(guard, st.orgs, logger)

	orgService := organizations.NewService(guard, st.orgs, logger)
	orgHandler := organizations.NewHandler(orgService, logger)

	inviteService := invites.NewService(guard, st.invites, st.profiles, st.orgs, notifier,
		invites.Config{AppURL: cfg.App.PublicURL, TTL: cfg.App.InviteTTL}, logger)
	inviteHandler := invites.NewHandler(inviteService, logger)

	rfqService := rfqs.NewService(guard, st.rfqs, st.orgs, notifier, files, rfqs.Config{
		AppURL:        cfg.App.PublicURL,
		SupplierScope: rfqs.SupplierScope(cfg.App.RfqInviteSupplierScope),
	}, logger)
	rfqHandler := rfqs.NewHandler(rfqService, logger)

	quotationService := quotations.NewService(guard, st.quotations, st.rfqs, st.orgs, notifier, files, cfg.App.PublicURL, logger)
	quotationHandler := quotations.NewHandler(quotationService, logger)

	emailLogsHandler := emaillogs.NewHandler(guard, st.emailLogs, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		response.Internal(c, "Internal server error")
		c.Abort()
	}))
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(logger))
	newPrometheus().Use(router)

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, "", gin.H{"status": "ok"}) })

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/me", profileHandler.Me)

		// Organizations (:type is agencies or suppliers)
		api.POST("/organizations/:type", orgHandler.Create)
		api.GET("/organizations/:type", orgHandler.ListPublished)
		api.GET("/organizations/:type/all", orgHandler.ListAll)
		api.GET("/organizations/:type/:id", orgHandler.Get)
		api.PATCH("/organizations/:type/:id", orgHandler.Update)
		api.PUT("/organizations/:type/:id/published", orgHandler.SetPublished)
		api.GET("/organizations/:type/:id/members", orgHandler.Members)

		// Team invites
		api.POST("/organizations/:type/:id/invites", inviteHandler.Send)
		api.GET("/organizations/:type/:id/invites", inviteHandler.List)
		api.POST("/invites/accept", inviteHandler.Accept)

		// RFQs
		api.POST("/rfqs", rfqHandler.Create)
		api.GET("/rfqs", rfqHandler.List)
		api.GET("/rfqs/:id", rfqHandler.Get)
		api.PATCH("/rfqs/:id", rfqHandler.Update)
		api.DELETE("/rfqs/:id", rfqHandler.Delete)
		api.POST("/rfqs/:id/send", rfqHandler.Send)
		api.GET("/rfqs/:id/invites", rfqHandler.Invites)
		api.PUT("/rfqs/:id/attachments", rfqHandler.UpdateAttachments)
		api.POST("/rfqs/:id/attachments/upload-url", rfqHandler.AttachmentUploadURL)

		// Supplier side of RFQ invites
		api.GET("/rfq-invites", rfqHandler.SupplierInvites)
		api.PATCH("/rfq-invites/:id/status", rfqHandler.UpdateInviteStatus)
		api.POST("/rfq-invites/:id/quotations", quotationHandler.Submit)
		api.GET("/rfq-invites/:id/quotations", quotationHandler.List)
		api.POST("/rfq-invites/:id/quotations/upload-url", quotationHandler.UploadURL)

		// Platform admin
		api.GET("/admin/email-logs", emailLogsHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("database", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// newPrometheus collapses :id path values so metrics keep a bounded label set.
func newPrometheus() *ginprometheus.Prometheus {
	p := ginprometheus.NewPrometheus("eventmarket")
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		url := c.Request.URL.Path
		for _, param := range c.Params {
			if param.Key == "id" {
				url = strings.Replace(url, param.Value, ":id", 1)
				break
			}
		}
		return url
	}
	return p
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
