package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"together.backend/pkg/utils"
	"gorm.io/gorm"
	"together.backend/internal/domain/entities"
	"together.backend/internal/infrastructure/models"
)

// PendingConnectionRepositoryImpl implements PendingConnectionRepository
type PendingConnectionRepositoryImpl struct {
	db *gorm.DB
}

func NewPendingConnectionRepository(db *gorm.DB) *PendingConnectionRepositoryImpl {
	return &PendingConnectionRepositoryImpl{db: db}
}

func (r *PendingConnectionRepositoryImpl) Create(ctx context.Context, fromUserID, toUserID int64, expiresAt time.Time) (*entities.PendingConnection, error) {
	m := &models.PendingConnection{
		ID:         utils.GenerateUUIDv7(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		CreatedAt:  time.Now(),
		ExpiresAt:  expiresAt,
	}
	if err := GetDB(ctx, r.db).WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toEntity(m), nil
}

func (r *PendingConnectionRepositoryImpl) CountUnresolvedBetween(ctx context.Context, userA, userB int64) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).WithContext(ctx).Model(&models.PendingConnection{}).
		Where("((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)) AND expires_at > ?",
			userA, userB, userB, userA, time.Now()).
		Count(&count).Error
	return count, err
}

// matchRow is the flattened result of the reciprocal-intent join.
type matchRow struct {
	P1ID        uuid.UUID `gorm:"column:p1_id"`
	P1From      int64     `gorm:"column:p1_from"`
	P1To        int64     `gorm:"column:p1_to"`
	P1CreatedAt time.Time `gorm:"column:p1_created_at"`
	P1ExpiresAt time.Time `gorm:"column:p1_expires_at"`
	P2ID        uuid.UUID `gorm:"column:p2_id"`
	P2From      int64     `gorm:"column:p2_from"`
	P2To        int64     `gorm:"column:p2_to"`
	P2CreatedAt time.Time `gorm:"column:p2_created_at"`
	P2ExpiresAt time.Time `gorm:"column:p2_expires_at"`
	U1ID        int64     `gorm:"column:u1_id"`
	U1Address   string    `gorm:"column:u1_address"`
	U2ID        int64     `gorm:"column:u2_id"`
	U2Address   string    `gorm:"column:u2_address"`
}

// FindMatches detects reciprocal unexpired intents. The expiry check
// is part of the predicate: an expired row can never match. from < to
// halves the symmetric join. Oldest intent first.
func (r *PendingConnectionRepositoryImpl) FindMatches(ctx context.Context) ([]*entities.ConnectionMatch, error) {
	now := time.Now()
	var rows []matchRow
	err := GetDB(ctx, r.db).WithContext(ctx).Raw(`
		SELECT
			p1.id AS p1_id, p1.from_user_id AS p1_from, p1.to_user_id AS p1_to,
			p1.created_at AS p1_created_at, p1.expires_at AS p1_expires_at,
			p2.id AS p2_id, p2.from_user_id AS p2_from, p2.to_user_id AS p2_to,
			p2.created_at AS p2_created_at, p2.expires_at AS p2_expires_at,
			u1.id AS u1_id, u1.wallet_address AS u1_address,
			u2.id AS u2_id, u2.wallet_address AS u2_address
		FROM pending_connections p1
		JOIN pending_connections p2
			ON p1.from_user_id = p2.to_user_id AND p1.to_user_id = p2.from_user_id
		JOIN users u1 ON u1.id = p1.from_user_id
		JOIN users u2 ON u2.id = p1.to_user_id
		WHERE p1.expires_at > ? AND p2.expires_at > ?
			AND p1.from_user_id < p1.to_user_id
		ORDER BY CASE WHEN p1.created_at < p2.created_at THEN p1.created_at ELSE p2.created_at END ASC`,
		now, now).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	matches := make([]*entities.ConnectionMatch, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, &entities.ConnectionMatch{
			UserA: &entities.User{ID: row.U1ID, WalletAddress: row.U1Address},
			UserB: &entities.User{ID: row.U2ID, WalletAddress: row.U2Address},
			PendingA: &entities.PendingConnection{
				ID: row.P1ID, FromUserID: row.P1From, ToUserID: row.P1To,
				CreatedAt: row.P1CreatedAt, ExpiresAt: row.P1ExpiresAt,
			},
			PendingB: &entities.PendingConnection{
				ID: row.P2ID, FromUserID: row.P2From, ToUserID: row.P2To,
				CreatedAt: row.P2CreatedAt, ExpiresAt: row.P2ExpiresAt,
			},
		})
	}
	return matches, nil
}

// DeleteByID removes one pending row. Delete-if-exists: reporting a
// vanished row lets the matcher abort a pair someone else resolved.
func (r *PendingConnectionRepositoryImpl) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	res := GetDB(ctx, r.db).WithContext(ctx).Where("id = ?", id).Delete(&models.PendingConnection{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PendingConnectionRepositoryImpl) DeleteExpired(ctx context.Context) (int64, error) {
	res := GetDB(ctx, r.db).WithContext(ctx).
		Where("expires_at <= ?", time.Now()).
		Delete(&models.PendingConnection{})
	return res.RowsAffected, res.Error
}

func (r *PendingConnectionRepositoryImpl) ListByUser(ctx context.Context, userID int64) (outgoing, incoming []*entities.PendingConnection, err error) {
	now := time.Now()
	var ms []models.PendingConnection
	if err = GetDB(ctx, r.db).WithContext(ctx).
		Where("(from_user_id = ? OR to_user_id = ?) AND expires_at > ?", userID, userID, now).
		Order("created_at ASC").
		Find(&ms).Error; err != nil {
		return nil, nil, err
	}
	for _, m := range ms {
		model := m
		if model.FromUserID == userID {
			outgoing = append(outgoing, r.toEntity(&model))
		} else {
			incoming = append(incoming, r.toEntity(&model))
		}
	}
	return outgoing, incoming, nil
}

func (r *PendingConnectionRepositoryImpl) toEntity(m *models.PendingConnection) *entities.PendingConnection {
	return &entities.PendingConnection{
		ID:         m.ID,
		FromUserID: m.FromUserID,
		ToUserID:   m.ToUserID,
		CreatedAt:  m.CreatedAt,
		ExpiresAt:  m.ExpiresAt,
	}
}
