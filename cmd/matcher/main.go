package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
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
	"together.backend/internal/usecases"
	"together.backend/pkg/eip712"
	"together.backend/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
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

	signer, err := eip712.NewSigner(cfg.Chain.SignerPrivateKey, cfg.Chain.ChainID)
	if err != nil {
		return fmt.Errorf("invalid signer key: %w", err)
	}
	contract, err := blockchain.NewTogetherContract(cfg.Chain.ContractAddress)
	if err != nil {
		return err
	}
	client, err := blockchain.NewEVMClient(cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to dial chain RPC: %w", err)
	}
	defer client.Close()

	// A signer with no funds cannot broadcast; surface that at startup.
	balance, err := client.GetBalance(ctx, signer.Address().Hex())
	if err != nil {
		logger.Warn(ctx, "could not read signer balance", zap.Error(err))
		balance = big.NewInt(0)
	}
	logger.Info(ctx, "matcher signer ready",
		zap.String("signer", signer.Address().Hex()),
		zap.String("contract", contract.Address().Hex()),
		zap.String("balance_wei", balance.String()))

	pendingRepo := repositories.NewPendingConnectionRepository(db)
	optimisticRepo := repositories.NewOptimisticConnectionRepository(db)
	uow := repositories.NewUnitOfWork(db)

	rules := blockchain.NewAuthorizationRules(
		big.NewInt(cfg.Chain.ChainID),
		contract.Address(),
		[]common.Address{signer.Address()},
		func() uint64 { return uint64(time.Now().Unix()) },
	)
	submitter := usecases.NewAttestationSubmitterUsecase(client, contract, signer, rules, cfg.Chain)
	matcherJob := jobs.NewConnectionMatcherJob(pendingRepo, optimisticRepo, uow, submitter, cfg.Matcher.Interval)

	// Metrics endpoint for scraping; the matcher serves no API.
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
		log.Println("Shutting down matcher...")
		matcherJob.Stop()
		cancel()
	}()

	matcherJob.Start(ctx)
	return nil
}
