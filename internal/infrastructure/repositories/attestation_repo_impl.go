package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"together.backend/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"together.backend/internal/domain/entities"
	"together.backend/internal/infrastructure/models"
)

// AttestationRepositoryImpl implements AttestationRepository
type AttestationRepositoryImpl struct {
	db *gorm.DB
}

func NewAttestationRepository(db *gorm.DB) *AttestationRepositoryImpl {
	return &AttestationRepositoryImpl{db: db}
}

// Insert writes the attestation row unless the (tx_hash, log_index)
// event is already recorded. Rescanned chunks replay events; the
// returning bool tells the watcher whether the aggregates should move.
func (r *AttestationRepositoryImpl) Insert(ctx context.Context, att *entities.Attestation) (bool, error) {
	m := &models.Attestation{
		ID:             att.ID,
		AddressA:       att.AddressA,
		AddressB:       att.AddressB,
		EventTimestamp: att.EventTimestamp,
		TxHash:         att.TxHash,
		LogIndex:       att.LogIndex,
		BlockNumber:    att.BlockNumber,
		CreatedAt:      time.Now(),
	}
	if m.ID == uuid.Nil {
		m.ID = utils.GenerateUUIDv7()
	}
	res := GetDB(ctx, r.db).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tx_hash"}, {Name: "log_index"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *AttestationRepositoryImpl) Exists(ctx context.Context, txHash string, logIndex uint) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).WithContext(ctx).Model(&models.Attestation{}).
		Where("tx_hash = ? AND log_index = ?", txHash, logIndex).
		Count(&count).Error
	return count > 0, err
}

func (r *AttestationRepositoryImpl) ListByAddress(ctx context.Context, address string, limit, offset int) ([]*entities.Attestation, int, error) {
	db := GetDB(ctx, r.db).WithContext(ctx)

	var total int64
	if err := db.Model(&models.Attestation{}).
		Where("address_a = ? OR address_b = ?", address, address).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.Attestation
	if err := db.
		Where("address_a = ? OR address_b = ?", address, address).
		Order("event_timestamp DESC").
		Limit(limit).Offset(offset).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	atts := make([]*entities.Attestation, 0, len(ms))
	for _, m := range ms {
		model := m
		atts = append(atts, &entities.Attestation{
			ID:             model.ID,
			AddressA:       model.AddressA,
			AddressB:       model.AddressB,
			EventTimestamp: model.EventTimestamp,
			TxHash:         model.TxHash,
			LogIndex:       model.LogIndex,
			BlockNumber:    model.BlockNumber,
			CreatedAt:      model.CreatedAt,
		})
	}
	return atts, int(total), nil
}

// PairStrengthRepositoryImpl implements PairStrengthRepository
type PairStrengthRepositoryImpl struct {
	db *gorm.DB
}

func NewPairStrengthRepository(db *gorm.DB) *PairStrengthRepositoryImpl {
	return &PairStrengthRepositoryImpl{db: db}
}

// IncrementBoth bumps both directional rows so either side's profile
// query is a single indexed lookup.
func (r *PairStrengthRepositoryImpl) IncrementBoth(ctx context.Context, addressA, addressB string) error {
	db := GetDB(ctx, r.db).WithContext(ctx)
	for _, pair := range [][2]string{{addressA, addressB}, {addressB, addressA}} {
		err := db.
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "address"}, {Name: "partner_address"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"count":      gorm.Expr("pair_strengths.count + 1"),
					"updated_at": time.Now(),
				}),
			}).
			Create(&models.PairStrength{
				Address:        pair[0],
				PartnerAddress: pair[1],
				Count:          1,
				UpdatedAt:      time.Now(),
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PairStrengthRepositoryImpl) ListByAddress(ctx context.Context, address string) ([]*entities.PairStrength, error) {
	var ms []models.PairStrength
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("address = ?", address).
		Order("count DESC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	strengths := make([]*entities.PairStrength, 0, len(ms))
	for _, m := range ms {
		strengths = append(strengths, &entities.PairStrength{
			Address:        m.Address,
			PartnerAddress: m.PartnerAddress,
			Count:          m.Count,
		})
	}
	return strengths, nil
}

func (r *PairStrengthRepositoryImpl) GetCount(ctx context.Context, address, partner string) (int64, error) {
	var m models.PairStrength
	err := GetDB(ctx, r.db).WithContext(ctx).
		Where("address = ? AND partner_address = ?", address, partner).
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return m.Count, nil
}
