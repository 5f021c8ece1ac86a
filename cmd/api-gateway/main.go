package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/DiegoCE21/ApprovalFlow-sub000/api/swagger"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/handler"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/middleware"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/repository"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/service"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/cache"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/config"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/database"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/jobs"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/logger"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/mailer"
	corsmiddleware "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/middleware/requestid"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/pdfstamp"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/storage"
)

// @title ApprovalFlow API
// @version 1.0.0
// @description Multi-party PDF approval workflow with stamped signatures, group delegation and reminders.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type handlers struct {
	documents *handler.DocumentHandler
	approvals *handler.ApprovalHandler
	groups    *handler.GroupHandler
	files     *handler.FileHandler
	metrics   *handler.MetricsHandler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	blobs, err := newBlobStore(ctx, cfg.Storage)
	if err != nil {
		logr.Fatal("failed to init storage", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}

	documentRepo := repository.NewDocumentRepository(db)
	slotRepo := repository.NewApproverSlotRepository(db)
	signatureRepo := repository.NewSignatureRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	userRepo := repository.NewUserRepository(db)
	receiptRepo := repository.NewNotificationReceiptRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	metrics := service.NewMetricsService()
	validate := validator.New()

	windows := service.GateWindows{Reminder: cfg.Workflow.ReminderWindow, Default: cfg.Workflow.DefaultWindow}
	var gate service.NotificationGate = service.NewPostgresGate(receiptRepo, windows)
	if cfg.Workflow.DedupBackend == config.DedupBackendRedis {
		if redisClient == nil {
			logr.Fatal("redis dedup backend requires REDIS_ENABLED=true")
		}
		gate = service.NewRedisGate(redisClient, windows)
	}

	notifier := service.NewNotificationService(gate, mailer.New(cfg.Mail, logr), metrics, logr, service.NotificationConfig{
		PublicBaseURL:  cfg.Workflow.PublicBaseURL,
		OversightEmail: cfg.Workflow.OversightEmail,
	})
	mailQueue := jobs.NewQueue("mail", notifier.Deliver, jobs.QueueConfig{
		Workers:    cfg.Workflow.MailWorkers,
		MaxRetries: cfg.Workflow.MailRetries,
		OnGiveUp:   notifier.GiveUp,
		Logger:     logr,
	})
	mailQueue.Start(ctx)
	notifier.UseQueue(mailQueue)

	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	workflow := service.NewWorkflowService(service.WorkflowDeps{
		Tx:         db,
		Documents:  documentRepo,
		Slots:      slotRepo,
		Signatures: signatureRepo,
		Groups:     groupRepo,
		Users:      userRepo,
		Blobs:      blobs,
		Renderer:   pdfstamp.NewStamper(nil),
		Signer:     signer,
		Notifier:   notifier,
		Audit:      auditRepo,
		Metrics:    metrics,
		Validator:  validate,
		Logger:     logr,
	}, service.WorkflowConfig{
		MaxFileSizeBytes:  cfg.Storage.MaxFileSizeBytes,
		DefaultLimitHours: cfg.Workflow.DefaultLimitHours,
		DownloadBaseURL:   cfg.Workflow.PublicBaseURL + cfg.APIPrefix + "/files",
	})

	groups := service.NewGroupService(groupRepo, auditRepo, validate, logr)
	if _, err := groups.LoadCatalogue(ctx, cfg.Workflow.GroupsFile); err != nil {
		logr.Fatal("failed to load group catalogue", zap.Error(err), zap.String("path", cfg.Workflow.GroupsFile))
	}

	if cfg.Workflow.SweepersEnabled {
		sweepers := service.NewSweeperService(service.SweeperDeps{
			Tx:        db,
			Documents: documentRepo,
			Slots:     slotRepo,
			Users:     userRepo,
			Receipts:  receiptRepo,
			Notifier:  notifier,
			Audit:     auditRepo,
			Metrics:   metrics,
			Logger:    logr,
		}, service.SweeperConfig{Interval: cfg.Workflow.SweepInterval})
		sweepers.Start(ctx)
	}

	auth := service.NewAuthService(logr, service.AuthConfig{
		Secret:      cfg.JWT.Secret,
		Issuer:      cfg.JWT.Issuer,
		AdminEmails: cfg.Workflow.AdminEmails,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	registerRoutes(r, cfg, auth, handlers{
		documents: handler.NewDocumentHandler(workflow, cfg.Storage.MaxFileSizeBytes),
		approvals: handler.NewApprovalHandler(workflow),
		groups:    handler.NewGroupHandler(groups),
		files:     handler.NewFileHandler(signer, blobs, logr),
		metrics:   handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient)),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server shutdown incomplete", zap.Error(err))
	}
	mailQueue.Stop()
}

func registerRoutes(r *gin.Engine, cfg *config.Config, auth *service.AuthService, h handlers) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/files/:token", h.files.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(auth))

	documents := secured.Group("/documents")
	documents.POST("", h.documents.Create)
	documents.GET("/mine", h.documents.ListMine)
	documents.GET("/pending", h.documents.ListPending)
	documents.GET("/access/:token", h.documents.GetByAccessToken)
	documents.GET("/:id", h.documents.Get)
	documents.GET("/:id/history", h.documents.History)
	documents.PATCH("/:id", h.documents.Update)
	documents.DELETE("/:id", h.documents.Delete)
	documents.POST("/:id/versions", h.documents.NewVersion)
	documents.POST("/:id/resend", h.documents.Resend)
	documents.PUT("/:id/positions", middleware.RequireAdmin(), h.documents.Reposition)

	approvals := secured.Group("/approvals")
	approvals.GET("/:token", h.approvals.Get)
	approvals.POST("/:token/sign", h.approvals.Sign)
	approvals.POST("/:token/reject", h.approvals.Reject)

	admin := secured.Group("")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/groups", h.groups.List)
	admin.GET("/groups/:alias/members", h.groups.ListMembers)
	admin.POST("/groups/:alias/members", h.groups.AddMember)
	admin.PATCH("/groups/:alias/members/:id", h.groups.UpdateMember)
	admin.DELETE("/groups/:alias/members/:id", h.groups.DeactivateMember)
	admin.GET("/metrics/summary", h.metrics.Snapshot)
}

func newBlobStore(ctx context.Context, cfg config.StorageConfig) (storage.BlobStore, error) {
	switch cfg.Driver {
	case config.StorageDriverS3:
		store, err := storage.NewS3Storage(ctx, storage.S3Options{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageDriverLocal, "":
		store, err := storage.NewLocalStorage(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
