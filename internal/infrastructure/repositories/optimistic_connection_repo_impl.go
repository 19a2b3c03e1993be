package repositories

import (
	"context"
	"time"

	"together.backend/pkg/utils"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"together.backend/internal/domain/entities"
	"together.backend/internal/infrastructure/models"
)

// OptimisticConnectionRepositoryImpl implements OptimisticConnectionRepository
type OptimisticConnectionRepositoryImpl struct {
	db *gorm.DB
}

func NewOptimisticConnectionRepository(db *gorm.DB) *OptimisticConnectionRepositoryImpl {
	return &OptimisticConnectionRepositoryImpl{db: db}
}

// Create inserts an unconfirmed row with the pair in canonical order.
func (r *OptimisticConnectionRepositoryImpl) Create(ctx context.Context, userA, userB int64) (*entities.OptimisticConnection, error) {
	a, b := entities.OrderedUserIDs(userA, userB)
	m := &models.OptimisticConnection{
		ID:        utils.GenerateUUIDv7(),
		UserAID:   a,
		UserBID:   b,
		Confirmed: false,
		CreatedAt: time.Now(),
	}
	if err := GetDB(ctx, r.db).WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toEntity(m), nil
}

func (r *OptimisticConnectionRepositoryImpl) CountUnconfirmedBetween(ctx context.Context, userA, userB int64) (int64, error) {
	a, b := entities.OrderedUserIDs(userA, userB)
	var count int64
	err := GetDB(ctx, r.db).WithContext(ctx).Model(&models.OptimisticConnection{}).
		Where("user_a_id = ? AND user_b_id = ? AND confirmed = ?", a, b, false).
		Count(&count).Error
	return count, err
}

func (r *OptimisticConnectionRepositoryImpl) CountUnconfirmed(ctx context.Context) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).WithContext(ctx).Model(&models.OptimisticConnection{}).
		Where("confirmed = ?", false).
		Count(&count).Error
	return count, err
}

// ConfirmOldest flips the oldest unconfirmed row for the pair whose
// created_at lies inside the window. The one-way transition: confirmed
// rows are never candidates again, so a rescanned event cannot revert
// or double-confirm anything.
func (r *OptimisticConnectionRepositoryImpl) ConfirmOldest(ctx context.Context, userA, userB int64, windowStart, windowEnd time.Time, txHash string) (bool, error) {
	a, b := entities.OrderedUserIDs(userA, userB)
	db := GetDB(ctx, r.db).WithContext(ctx)

	var m models.OptimisticConnection
	err := db.
		Where("user_a_id = ? AND user_b_id = ? AND confirmed = ? AND created_at >= ? AND created_at <= ?",
			a, b, false, windowStart, windowEnd).
		Order("created_at ASC").
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}

	now := time.Now()
	res := db.Model(&models.OptimisticConnection{}).
		Where("id = ? AND confirmed = ?", m.ID, false).
		Updates(map[string]interface{}{
			"confirmed":         true,
			"confirmed_tx_hash": txHash,
			"confirmed_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OptimisticConnectionRepositoryImpl) ListByUser(ctx context.Context, userID int64) ([]*entities.OptimisticConnection, error) {
	var ms []models.OptimisticConnection
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	conns := make([]*entities.OptimisticConnection, 0, len(ms))
	for _, m := range ms {
		model := m
		conns = append(conns, r.toEntity(&model))
	}
	return conns, nil
}

func (r *OptimisticConnectionRepositoryImpl) toEntity(m *models.OptimisticConnection) *entities.OptimisticConnection {
	return &entities.OptimisticConnection{
		ID:              m.ID,
		UserAID:         m.UserAID,
		UserBID:         m.UserBID,
		Confirmed:       m.Confirmed,
		ConfirmedTxHash: null.StringFromPtr(m.ConfirmedTxHash),
		ConfirmedAt:     null.TimeFromPtr(m.ConfirmedAt),
		CreatedAt:       m.CreatedAt,
	}
}
