package usecases

import (
	"context"

	"together.backend/internal/domain/entities"
	domainerrors "together.backend/internal/domain/errors"
	"together.backend/internal/domain/repositories"
	"together.backend/pkg/redis"
	"together.backend/pkg/utils"
)

// AttestationUsecase serves the confirmed-event read model
type AttestationUsecase struct {
	attRepo       repositories.AttestationRepository
	strengthRepo  repositories.PairStrengthRepository
	strengthCache *redis.StrengthCache
}

// NewAttestationUsecase creates a new attestation usecase. The cache
// may be nil when Redis is not configured.
func NewAttestationUsecase(
	attRepo repositories.AttestationRepository,
	strengthRepo repositories.PairStrengthRepository,
	strengthCache *redis.StrengthCache,
) *AttestationUsecase {
	return &AttestationUsecase{
		attRepo:       attRepo,
		strengthRepo:  strengthRepo,
		strengthCache: strengthCache,
	}
}

// ListByAddress returns attestations containing the address, newest
// first, plus pagination metadata.
func (u *AttestationUsecase) ListByAddress(ctx context.Context, address string, page, limit int) ([]*entities.Attestation, utils.PaginationMeta, error) {
	normalized, err := NormalizeAddress(address)
	if err != nil {
		return nil, utils.PaginationMeta{}, domainerrors.BadRequest("invalid wallet address")
	}

	if limit > 100 {
		limit = utils.DefaultPageLimit
	}
	params := utils.GetPaginationParams(page, limit)

	attestations, total, err := u.attRepo.ListByAddress(ctx, normalized, params.Limit, params.CalculateOffset())
	if err != nil {
		return nil, utils.PaginationMeta{}, err
	}

	return attestations, utils.CalculateMeta(int64(total), params.Page, params.Limit), nil
}

// GetStrengths returns the pair strengths for an address, read through
// the cache when one is configured.
func (u *AttestationUsecase) GetStrengths(ctx context.Context, address string) ([]*entities.PairStrength, error) {
	normalized, err := NormalizeAddress(address)
	if err != nil {
		return nil, domainerrors.BadRequest("invalid wallet address")
	}

	if u.strengthCache != nil {
		if cached, ok := u.strengthCache.Get(ctx, normalized); ok {
			return cached, nil
		}
	}

	strengths, err := u.strengthRepo.ListByAddress(ctx, normalized)
	if err != nil {
		return nil, err
	}

	if u.strengthCache != nil {
		u.strengthCache.Set(ctx, normalized, strengths)
	}
	return strengths, nil
}
