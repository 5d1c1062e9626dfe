package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "github.com/vynious/finOS/cmd/api"
	authdomain "github.com/vynious/finOS/internal/auth/domain"
	authRepo "github.com/vynious/finOS/internal/auth/repository"
	authUsecase "github.com/vynious/finOS/internal/auth/usecase"
	emaildomain "github.com/vynious/finOS/internal/email/domain"
	emailRepo "github.com/vynious/finOS/internal/email/repository"
	emailUsecase "github.com/vynious/finOS/internal/email/usecase"
	"github.com/vynious/finOS/internal/ingestor/scheduler"
	ingestorUsecase "github.com/vynious/finOS/internal/ingestor/usecase"
	"github.com/vynious/finOS/internal/notification"
	receiptdomain "github.com/vynious/finOS/internal/receipt/domain"
	receiptDelivery "github.com/vynious/finOS/internal/receipt/delivery"
	receiptRepo "github.com/vynious/finOS/internal/receipt/repository"
	receiptUsecase "github.com/vynious/finOS/internal/receipt/usecase"
	userdomain "github.com/vynious/finOS/internal/user/domain"
	userRepo "github.com/vynious/finOS/internal/user/repository"
	"github.com/vynious/finOS/pkg/ai"
	"github.com/vynious/finOS/pkg/cache"
	"github.com/vynious/finOS/pkg/config"
	"github.com/vynious/finOS/pkg/database"
	"github.com/vynious/finOS/pkg/gmail"
	"github.com/vynious/finOS/pkg/logger"
	"github.com/vynious/finOS/pkg/relevance"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&userdomain.User{}, &authdomain.OAuthToken{}, &emaildomain.TrackedMessageSet{}, &receiptdomain.Receipt{}); err != nil {
		zl.Fatal("failed to migrate database", zap.Error(err))
	}

	// Initialize repositories (dependency injection)
	users := userRepo.NewUserRepository(db)
	tokens := authRepo.NewTokenRepository(db)
	receipts := receiptRepo.NewReceiptRepository(db)

	var trackedRepo emailRepo.TrackedMessageRepository
	switch cfg.TrackedStore {
	case "redis":
		rdb, err := cache.NewRedisClient(ctx, cfg)
		if err != nil {
			zl.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		trackedRepo = emailRepo.NewRedisTrackedMessageRepository(rdb)
	default:
		trackedRepo = emailRepo.NewTrackedMessageRepository(db)
	}

	var gmailOpts []option.ClientOption
	if cfg.GmailEndpoint != "" {
		gmailOpts = append(gmailOpts, option.WithEndpoint(cfg.GmailEndpoint))
	}
	gmailService := gmail.NewService(cfg.SyncCallTimeout, zl, gmailOpts...)

	extractor, err := ai.NewReceiptExtractor(ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:  cfg.GeminiApiKey,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
		CallTimeout:   cfg.ModelCallTimeout,
	}, zl)
	if err != nil {
		zl.Fatal("failed to initialize AI extractor", zap.Error(err))
	}
	zl.Info("AI extractor initialized", zap.String("provider", cfg.AIProvider))

	filter, err := relevance.New(cfg.RelevanceKeywords)
	if err != nil {
		zl.Fatal("invalid relevance keywords", zap.Error(err))
	}

	tokenProvider := authUsecase.NewTokenProvider(tokens, &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
	}, cfg.SyncCallTimeout, zl)

	worker := ingestorUsecase.NewUserSyncWorker(
		tokenProvider,
		gmailService,
		emailUsecase.NewDedupTracker(trackedRepo),
		filter,
		extractor,
		cfg.SyncMessageConcurrency,
		cfg.SyncCallTimeout,
		zl,
	)
	orchestrator := ingestorUsecase.NewOrchestrator(
		users,
		receipts,
		worker,
		cfg.IssuerEmails,
		cfg.SyncUserConcurrency,
		cfg.SyncUserTimeout,
		cfg.SyncCallTimeout,
		zl,
	)

	syncScheduler := scheduler.NewSyncScheduler(orchestrator, cfg.SyncInterval, zl)
	syncScheduler.Start()

	// Initialize Notification Service (Pub/Sub)
	// Only start if project ID is configured
	if cfg.GoogleProjectID != "" {
		// Extract short topic name from full resource name if necessary
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		if topicName == "" {
			topicName = "gmail-updates"
		}

		watcher := notification.NewMailboxWatcher(users, tokenProvider, gmailService, cfg.GoogleProjectID, topicName, zl)
		notifService, err := notification.NewService(cfg.GoogleProjectID, topicName, cfg.GoogleCredentials, notification.NewHandler(orchestrator, zl), watcher, zl)
		if err != nil {
			zl.Error("failed to initialize notification service", zap.Error(err))
		} else {
			defer notifService.Close()
			go notifService.Start(ctx)
		}
	} else {
		zl.Warn("GOOGLE_PROJECT_ID not configured, push sync disabled")
	}

	authUc := authUsecase.NewAuthUsecase(users, cfg.JWTSecret)
	receiptHandler := receiptDelivery.NewReceiptHandler(receiptUsecase.NewReceiptUsecase(receipts))

	handler := api.NewHandler(authUc, orchestrator, receiptHandler, zl)
	srv := handler.Server(":" + cfg.Port)

	go func() {
		zl.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown failed", zap.Error(err))
	}
	syncScheduler.Stop()
}
