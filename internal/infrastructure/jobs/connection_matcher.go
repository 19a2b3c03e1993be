package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"together.backend/internal/domain/entities"
	"together.backend/internal/metrics"
	"together.backend/pkg/logger"
)

// backlogLogEvery reports the unconfirmed backlog once per this many ticks.
const backlogLogEvery = 60

var errIntentClaimed = errors.New("pending intent already claimed")

type matcherPendingRepo interface {
	FindMatches(ctx context.Context) ([]*entities.ConnectionMatch, error)
	DeleteByID(ctx context.Context, id uuid.UUID) (bool, error)
}

type matcherOptimisticRepo interface {
	Create(ctx context.Context, userA, userB int64) (*entities.OptimisticConnection, error)
	CountUnconfirmedBetween(ctx context.Context, userA, userB int64) (int64, error)
	CountUnconfirmed(ctx context.Context) (int64, error)
}

type unitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// AttestationSubmitter pushes one matched pair on-chain. Implementations
// must not block on confirmation.
type AttestationSubmitter interface {
	Submit(ctx context.Context, addressA, addressB string, matchedAt time.Time) (string, error)
}

// ConnectionMatcherJob promotes reciprocal pending intents into
// optimistic connections and hands each new pair to the submitter.
//
// A match commits in one transaction: both pending rows are deleted and
// the optimistic row inserted, so two matcher instances can never claim
// the same intents twice. Submission happens after commit and is fire
// and forget; a failed transaction only means the pair stays unconfirmed.
type ConnectionMatcherJob struct {
	pending    matcherPendingRepo
	optimistic matcherOptimisticRepo
	uow        unitOfWork
	submitter  AttestationSubmitter
	interval   time.Duration
	stop       chan struct{}
	tickCount  uint64
}

func NewConnectionMatcherJob(pending matcherPendingRepo, optimistic matcherOptimisticRepo, uow unitOfWork, submitter AttestationSubmitter, interval time.Duration) *ConnectionMatcherJob {
	return &ConnectionMatcherJob{
		pending:    pending,
		optimistic: optimistic,
		uow:        uow,
		submitter:  submitter,
		interval:   interval,
		stop:       make(chan struct{}),
	}
}

func (j *ConnectionMatcherJob) Start(ctx context.Context) {
	logger.Info(ctx, "starting connection matcher", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "connection matcher stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "connection matcher stopped")
			return
		case <-ticker.C:
			j.processMatches(ctx)
		}
	}
}

func (j *ConnectionMatcherJob) Stop() {
	close(j.stop)
}

func (j *ConnectionMatcherJob) processMatches(ctx context.Context) {
	j.tickCount++
	metrics.MatcherTicksTotal.Inc()

	matches, err := j.pending.FindMatches(ctx)
	if err != nil {
		logger.Error(ctx, "failed to scan for reciprocal intents", zap.Error(err))
		return
	}

	for _, match := range matches {
		j.promoteMatch(ctx, match)
	}

	if j.tickCount%backlogLogEvery == 0 {
		if backlog, err := j.optimistic.CountUnconfirmed(ctx); err == nil && backlog > 0 {
			logger.Info(ctx, "unconfirmed optimistic connections awaiting attestation",
				zap.Int64("backlog", backlog))
		}
	}
}

// promoteMatch claims both intents and inserts the optimistic row in a
// single transaction. When the unconfirmed cap for the pair is reached
// the intents are left untouched; the pair retries on later ticks until
// the intents expire or confirmations bring the pair back under the cap.
func (j *ConnectionMatcherJob) promoteMatch(ctx context.Context, match *entities.ConnectionMatch) {
	capReached := false

	err := j.uow.Do(ctx, func(txCtx context.Context) error {
		userA, userB := entities.OrderedUserIDs(match.UserA.ID, match.UserB.ID)
		count, err := j.optimistic.CountUnconfirmedBetween(txCtx, userA, userB)
		if err != nil {
			return err
		}
		if count >= entities.MaxUnconfirmedPerPair {
			capReached = true
			return nil
		}

		existed, err := j.pending.DeleteByID(txCtx, match.PendingA.ID)
		if err != nil {
			return err
		}
		if !existed {
			return errIntentClaimed
		}

		existed, err = j.pending.DeleteByID(txCtx, match.PendingB.ID)
		if err != nil {
			return err
		}
		if !existed {
			return errIntentClaimed
		}

		_, err = j.optimistic.Create(txCtx, userA, userB)
		return err
	})

	switch {
	case errors.Is(err, errIntentClaimed):
		// Another instance won the pair; nothing to do.
		return
	case err != nil:
		logger.Error(ctx, "failed to promote match",
			zap.Int64("user_a", match.UserA.ID),
			zap.Int64("user_b", match.UserB.ID),
			zap.Error(err))
		return
	case capReached:
		metrics.MatcherSkippedCapTotal.Inc()
		logger.Warn(ctx, "unconfirmed cap reached for pair, leaving intents for a later tick",
			zap.Int64("user_a", match.UserA.ID),
			zap.Int64("user_b", match.UserB.ID))
		return
	}

	metrics.MatcherMatchesTotal.Inc()
	logger.Info(ctx, "promoted reciprocal match",
		zap.Int64("user_a", match.UserA.ID),
		zap.Int64("user_b", match.UserB.ID))

	go j.submitAttestation(match.UserA.WalletAddress, match.UserB.WalletAddress)
}

func (j *ConnectionMatcherJob) submitAttestation(addressA, addressB string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	txHash, err := j.submitter.Submit(ctx, addressA, addressB, time.Now().UTC())
	if err != nil {
		metrics.MatcherSubmissionsTotal.WithLabelValues("failed").Inc()
		logger.Error(ctx, "attestation submission failed",
			zap.String("address_a", addressA),
			zap.String("address_b", addressB),
			zap.Error(err))
		return
	}

	metrics.MatcherSubmissionsTotal.WithLabelValues("sent").Inc()
	logger.Info(ctx, "attestation submitted",
		zap.String("address_a", addressA),
		zap.String("address_b", addressB),
		zap.String("tx_hash", txHash))
}
