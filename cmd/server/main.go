package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"together.backend/internal/config"
	"together.backend/internal/infrastructure/jobs"
	"together.backend/internal/infrastructure/repositories"
	"together.backend/internal/interfaces/http/handlers"
	"together.backend/internal/interfaces/http/middleware"
	"together.backend/internal/usecases"
	"together.backend/pkg/logger"
	"together.backend/pkg/redis"
)

const strengthCacheTTL = 30 * time.Second

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Redis only backs the strength read cache; the API works without it.
	var strengthCache *redis.StrengthCache
	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Warn(context.Background(), "Redis unavailable, strength cache disabled", zap.Error(err))
	} else {
		strengthCache = redis.NewStrengthCache(strengthCacheTTL)
		logger.Info(context.Background(), "Redis initialized")
		defer redis.Close()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("Database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("Connected to PostgreSQL via GORM")
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	pendingRepo := repositories.NewPendingConnectionRepository(db)
	optimisticRepo := repositories.NewOptimisticConnectionRepository(db)
	attestationRepo := repositories.NewAttestationRepository(db)
	strengthRepo := repositories.NewPairStrengthRepository(db)
	uow := repositories.NewUnitOfWork(db)

	// Usecases
	connectionUsecase := usecases.NewConnectionUsecase(userRepo, pendingRepo, optimisticRepo, uow)
	attestationUsecase := usecases.NewAttestationUsecase(attestationRepo, strengthRepo, strengthCache)

	// Handlers
	connectionHandler := handlers.NewConnectionHandler(connectionUsecase)
	attestationHandler := handlers.NewAttestationHandler(attestationUsecase)

	// The reaper runs inside the API process; matcher and watcher are
	// separate binaries.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reaperJob := jobs.NewConnectionReaperJob(pendingRepo, cfg.Matcher.ReaperInterval)
	go reaperJob.Start(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	registerHealthRoute(r, sqlDB)
	registerMetricsRoute(r)
	registerAPIV1Routes(r, routeDeps{
		connectionHandler:  connectionHandler,
		attestationHandler: attestationHandler,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")
		reaperJob.Stop()
		cancel()
	}()

	logger.Info(ctx, "together backend starting", zap.String("port", cfg.Server.Port))
	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
