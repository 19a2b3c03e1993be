package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"together.backend/internal/domain/entities"
	domainerrors "together.backend/internal/domain/errors"
	"together.backend/internal/infrastructure/models"
)

// UserRepositoryImpl implements the identity registry over GORM.
type UserRepositoryImpl struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

// Resolve returns the user for walletAddress, allocating the next id on
// first contact. The unique index on wallet_address plus DO NOTHING
// turns a concurrent duplicate insert into a plain lookup.
func (r *UserRepositoryImpl) Resolve(ctx context.Context, walletAddress string) (*entities.User, error) {
	db := GetDB(ctx, r.db)

	now := time.Now()
	m := &models.User{
		WalletAddress: walletAddress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "wallet_address"}},
			DoNothing: true,
		}).
		Create(m).Error; err != nil {
		return nil, err
	}

	// Read back regardless: on conflict the insert assigned no id.
	var found models.User
	if err := db.WithContext(ctx).Where("wallet_address = ?", walletAddress).First(&found).Error; err != nil {
		return nil, err
	}
	return r.toEntity(&found), nil
}

// GetByID gets a user by id
func (r *UserRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	var m models.User
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

// GetByWalletAddress gets a user by wallet address
func (r *UserRepositoryImpl) GetByWalletAddress(ctx context.Context, walletAddress string) (*entities.User, error) {
	var m models.User
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("wallet_address = ?", walletAddress).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

func (r *UserRepositoryImpl) toEntity(m *models.User) *entities.User {
	return &entities.User{
		ID:            m.ID,
		WalletAddress: m.WalletAddress,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
