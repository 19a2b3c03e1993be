package jobs

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"together.backend/internal/config"
	"together.backend/internal/domain/entities"
	domainerrors "together.backend/internal/domain/errors"
	"together.backend/internal/domain/repositories"
	"together.backend/internal/infrastructure/blockchain"
	"together.backend/internal/metrics"
	"together.backend/pkg/logger"
)

const filterRetryMax = 3

type chainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// AttestationWatcherJob scans the chain for Together events, records
// them as attestations and confirms the matching optimistic connection.
//
// The scan position is a persisted cursor; after a restart the watcher
// resumes from the block after last_processed_block and re-processing a
// range is harmless because (tx_hash, log_index) deduplicates events.
// The chunk size adapts: it doubles after a clean range and halves when
// the RPC rejects one, staying within the configured bounds.
type AttestationWatcherJob struct {
	client     chainReader
	contract   *blockchain.TogetherContract
	cursors    repositories.WatcherCursorRepository
	atts       repositories.AttestationRepository
	strengths  repositories.PairStrengthRepository
	optimistic repositories.OptimisticConnectionRepository
	users      repositories.UserRepository
	uow        unitOfWork
	cfg        config.WatcherConfig

	chunkSize uint64
	cursor    uint64
	stop      chan struct{}
}

func NewAttestationWatcherJob(
	client chainReader,
	contract *blockchain.TogetherContract,
	cursors repositories.WatcherCursorRepository,
	atts repositories.AttestationRepository,
	strengths repositories.PairStrengthRepository,
	optimistic repositories.OptimisticConnectionRepository,
	users repositories.UserRepository,
	uow unitOfWork,
	cfg config.WatcherConfig,
) *AttestationWatcherJob {
	return &AttestationWatcherJob{
		client:     client,
		contract:   contract,
		cursors:    cursors,
		atts:       atts,
		strengths:  strengths,
		optimistic: optimistic,
		users:      users,
		uow:        uow,
		cfg:        cfg,
		stop:       make(chan struct{}),
	}
}

// Start resolves the cursor and runs the scan loop. A missing cursor is
// fatal unless WATCHER_START_BLOCK seeds the very first run; guessing a
// start position would silently skip events.
func (j *AttestationWatcherJob) Start(ctx context.Context) error {
	if err := j.loadCursor(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "starting attestation watcher",
		zap.String("watcher_id", j.cfg.WatcherID),
		zap.Uint64("cursor", j.cursor),
		zap.Uint64("chunk_size", j.chunkSize))

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "attestation watcher stopped (context cancelled)")
			return nil
		case <-j.stop:
			logger.Info(ctx, "attestation watcher stopped")
			return nil
		case <-ticker.C:
			j.scanOnce(ctx)
		}
	}
}

func (j *AttestationWatcherJob) Stop() {
	close(j.stop)
}

func (j *AttestationWatcherJob) loadCursor(ctx context.Context) error {
	cursor, err := j.cursors.Get(ctx, j.cfg.WatcherID)
	if err == nil {
		j.cursor = cursor.LastProcessedBlock
		j.chunkSize = clampChunk(cursor.ChunkSize, j.cfg)
		return nil
	}
	if err != domainerrors.ErrCursorMissing {
		return fmt.Errorf("load watcher cursor: %w", err)
	}

	if j.cfg.StartBlock == 0 {
		return fmt.Errorf("no cursor for watcher %q and WATCHER_START_BLOCK unset: %w",
			j.cfg.WatcherID, domainerrors.ErrCursorMissing)
	}

	j.cursor = j.cfg.StartBlock - 1
	j.chunkSize = j.cfg.InitialChunk
	if err := j.saveCursor(ctx); err != nil {
		return fmt.Errorf("seed watcher cursor: %w", err)
	}
	logger.Info(ctx, "seeded watcher cursor from start block",
		zap.Uint64("start_block", j.cfg.StartBlock))
	return nil
}

func (j *AttestationWatcherJob) saveCursor(ctx context.Context) error {
	err := j.cursors.Save(ctx, &entities.WatcherCursor{
		WatcherID:          j.cfg.WatcherID,
		LastProcessedBlock: j.cursor,
		ChunkSize:          j.chunkSize,
	})
	if err == nil {
		metrics.WatcherCursorBlock.Set(float64(j.cursor))
		metrics.WatcherChunkSize.Set(float64(j.chunkSize))
	}
	return err
}

// scanOnce walks [cursor+1, head] in chunks. The cursor is persisted
// only after a chunk is fully processed, so a crash mid-chunk replays
// it on restart.
func (j *AttestationWatcherJob) scanOnce(ctx context.Context) {
	head, err := j.client.BlockNumber(ctx)
	if err != nil {
		logger.Error(ctx, "failed to fetch chain head", zap.Error(err))
		return
	}
	if head <= j.cursor {
		return
	}

	for from := j.cursor + 1; from <= head; {
		to := from + j.chunkSize - 1
		if to > head {
			to = head
		}

		logs, err := j.fetchLogs(ctx, from, to)
		if err != nil {
			metrics.WatcherChunkErrorsTotal.Inc()
			j.chunkSize = clampChunk(j.chunkSize/2, j.cfg)
			logger.Warn(ctx, "log fetch failed, shrinking chunk",
				zap.Uint64("from", from),
				zap.Uint64("to", to),
				zap.Uint64("chunk_size", j.chunkSize),
				zap.Error(err))
			return
		}

		for _, raw := range logs {
			if err := j.processLog(ctx, raw); err != nil {
				// Holding the cursor keeps the failed event inside the
				// next scan; the dedup key makes the replay safe.
				return
			}
		}

		j.cursor = to
		j.chunkSize = clampChunk(j.chunkSize*2, j.cfg)
		if err := j.saveCursor(ctx); err != nil {
			logger.Error(ctx, "failed to persist watcher cursor", zap.Error(err))
			return
		}

		from = to + 1
	}
}

func (j *AttestationWatcherJob) fetchLogs(ctx context.Context, from, to uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{j.contract.Address()},
		Topics:    [][]common.Hash{{j.contract.EventTopic()}},
	}

	var logs []types.Log
	operation := func() error {
		var err error
		logs, err = j.client.FilterLogs(ctx, query)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), filterRetryMax), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return logs, nil
}

// processLog records one event and, when possible, confirms the oldest
// unconfirmed optimistic connection near the event timestamp. All
// writes for one event share a transaction. A transaction error is
// returned so the caller aborts the chunk before the cursor advances;
// an unparseable log is skipped, since rescanning cannot fix it.
func (j *AttestationWatcherJob) processLog(ctx context.Context, raw types.Log) error {
	event, err := j.contract.ParseTogetherLog(raw)
	if err != nil {
		metrics.WatcherEventsTotal.WithLabelValues("unparseable").Inc()
		logger.Warn(ctx, "skipping unparseable log",
			zap.String("tx_hash", raw.TxHash.Hex()),
			zap.Uint("log_index", raw.Index),
			zap.Error(err))
		return nil
	}

	addressA := strings.ToLower(event.UserA.Hex())
	addressB := strings.ToLower(event.UserB.Hex())
	eventTime := time.Unix(event.Timestamp.Int64(), 0).UTC()

	outcome := "confirmed"
	err = j.uow.Do(ctx, func(txCtx context.Context) error {
		inserted, err := j.atts.Insert(txCtx, &entities.Attestation{
			AddressA:       addressA,
			AddressB:       addressB,
			EventTimestamp: eventTime,
			TxHash:         event.TxHash.Hex(),
			LogIndex:       event.LogIndex,
			BlockNumber:    event.BlockNumber,
		})
		if err != nil {
			return err
		}
		if !inserted {
			outcome = "duplicate"
			return nil
		}

		if err := j.strengths.IncrementBoth(txCtx, addressA, addressB); err != nil {
			return err
		}

		return j.confirmConnection(txCtx, addressA, addressB, eventTime, event.TxHash.Hex(), &outcome)
	})
	if err != nil {
		metrics.WatcherEventsTotal.WithLabelValues("error").Inc()
		logger.Error(ctx, "failed to record attestation",
			zap.String("tx_hash", event.TxHash.Hex()),
			zap.Uint("log_index", event.LogIndex),
			zap.Error(err))
		return err
	}

	metrics.WatcherEventsTotal.WithLabelValues(outcome).Inc()
	if outcome != "duplicate" {
		logger.Info(ctx, "recorded attestation",
			zap.String("address_a", addressA),
			zap.String("address_b", addressB),
			zap.String("tx_hash", event.TxHash.Hex()),
			zap.Uint64("block", event.BlockNumber),
			zap.String("outcome", outcome))
	}
	return nil
}

// confirmConnection flips the oldest unconfirmed optimistic row for the
// pair whose creation time falls within the confirmation window around
// the event. Events for unknown identities or with no candidate row
// still count as attestations.
func (j *AttestationWatcherJob) confirmConnection(ctx context.Context, addressA, addressB string, eventTime time.Time, txHash string, outcome *string) error {
	userA, err := j.users.GetByWalletAddress(ctx, addressA)
	if err == domainerrors.ErrNotFound {
		*outcome = "recorded_unknown_identity"
		return nil
	}
	if err != nil {
		return err
	}
	userB, err := j.users.GetByWalletAddress(ctx, addressB)
	if err == domainerrors.ErrNotFound {
		*outcome = "recorded_unknown_identity"
		return nil
	}
	if err != nil {
		return err
	}

	a, b := entities.OrderedUserIDs(userA.ID, userB.ID)
	confirmed, err := j.optimistic.ConfirmOldest(ctx, a, b,
		eventTime.Add(-j.cfg.ConfirmWindow),
		eventTime.Add(j.cfg.ConfirmWindow),
		txHash)
	if err != nil {
		return err
	}
	if !confirmed {
		*outcome = "recorded_no_candidate"
	}
	return nil
}

func clampChunk(size uint64, cfg config.WatcherConfig) uint64 {
	if size < cfg.MinChunk {
		return cfg.MinChunk
	}
	if size > cfg.MaxChunk {
		return cfg.MaxChunk
	}
	return size
}
