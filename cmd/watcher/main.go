package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"together.backend/internal/config"
	"together.backend/internal/infrastructure/blockchain"
	"together.backend/internal/infrastructure/jobs"
	"together.backend/internal/infrastructure/repositories"
	"together.backend/pkg/logger"
)

func main() {
	reset := flag.Bool("reset", false, "drop the persisted cursor and start over from WATCHER_START_BLOCK")
	flag.Parse()

	if err := run(*reset); err != nil {
		log.Fatal(err)
	}
}

func run(reset bool) error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	logger.Init(cfg.Server.Env)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.Database.URL(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{PrepareStmt: false})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	contract, err := blockchain.NewTogetherContract(cfg.Chain.ContractAddress)
	if err != nil {
		return err
	}
	client, err := blockchain.NewEVMClient(cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to dial chain RPC: %w", err)
	}
	defer client.Close()

	userRepo := repositories.NewUserRepository(db)
	optimisticRepo := repositories.NewOptimisticConnectionRepository(db)
	attestationRepo := repositories.NewAttestationRepository(db)
	strengthRepo := repositories.NewPairStrengthRepository(db)
	cursorRepo := repositories.NewWatcherCursorRepository(db)
	uow := repositories.NewUnitOfWork(db)

	if reset {
		if err := cursorRepo.Delete(ctx, cfg.Watcher.WatcherID); err != nil {
			return fmt.Errorf("failed to reset cursor: %w", err)
		}
		logger.Info(ctx, "watcher cursor reset", zap.String("watcher_id", cfg.Watcher.WatcherID))
	}

	watcherJob := jobs.NewAttestationWatcherJob(
		client, contract,
		cursorRepo, attestationRepo, strengthRepo, optimisticRepo, userRepo,
		uow, cfg.Watcher,
	)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.Server.Port, nil); err != nil {
			logger.Error(ctx, "metrics server stopped", zap.Error(err))
		}
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down watcher...")
		watcherJob.Stop()
		cancel()
	}()

	return watcherJob.Start(ctx)
}
