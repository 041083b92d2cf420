package repository

import (
	"context"

	"dex-backend/internal/models"

	"gorm.io/gorm"
)

// takerRepository implements TakerRepository
type takerRepository struct {
	db *gorm.DB
}

// NewTakerRepository creates a new TakerRepository instance
func NewTakerRepository(db *gorm.DB) TakerRepository {
	return &takerRepository{db: db}
}

func (r *takerRepository) CreateBatch(ctx context.Context, takers []*models.Taker) error {
	if len(takers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&takers).Error
}

func (r *takerRepository) FindByMaker(ctx context.Context, makerID uint) ([]*models.Taker, error) {
	var takers []*models.Taker
	err := r.db.WithContext(ctx).
		Where("maker_id = ?", makerID).
		Order("block ASC, id ASC").
		Find(&takers).Error
	if err != nil {
		return nil, err
	}
	return takers, nil
}
