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

// WatcherCursorRepositoryImpl implements WatcherCursorRepository
type WatcherCursorRepositoryImpl struct {
	db *gorm.DB
}

func NewWatcherCursorRepository(db *gorm.DB) *WatcherCursorRepositoryImpl {
	return &WatcherCursorRepositoryImpl{db: db}
}

func (r *WatcherCursorRepositoryImpl) Get(ctx context.Context, watcherID string) (*entities.WatcherCursor, error) {
	var m models.WatcherCursor
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("watcher_id = ?", watcherID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrCursorMissing
		}
		return nil, err
	}
	return &entities.WatcherCursor{
		WatcherID:          m.WatcherID,
		LastProcessedBlock: m.LastProcessedBlock,
		ChunkSize:          m.ChunkSize,
		UpdatedAt:          m.UpdatedAt,
	}, nil
}

func (r *WatcherCursorRepositoryImpl) Save(ctx context.Context, cursor *entities.WatcherCursor) error {
	m := &models.WatcherCursor{
		WatcherID:          cursor.WatcherID,
		LastProcessedBlock: cursor.LastProcessedBlock,
		ChunkSize:          cursor.ChunkSize,
		UpdatedAt:          time.Now(),
	}
	return GetDB(ctx, r.db).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "watcher_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"last_processed_block", "chunk_size", "updated_at",
			}),
		}).
		Create(m).Error
}

func (r *WatcherCursorRepositoryImpl) Delete(ctx context.Context, watcherID string) error {
	return GetDB(ctx, r.db).WithContext(ctx).
		Where("watcher_id = ?", watcherID).
		Delete(&models.WatcherCursor{}).Error
}
