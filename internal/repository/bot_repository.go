package repository

import (
	"context"
	"math/big"

	"dex-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// botRepository implements BotRepository
type botRepository struct {
	db *gorm.DB
}

// NewBotRepository creates a new BotRepository instance
func NewBotRepository(db *gorm.DB) BotRepository {
	return &botRepository{db: db}
}

func (r *botRepository) Create(ctx context.Context, bot *models.Bot) error {
	return r.db.WithContext(ctx).Create(bot).Error
}

func (r *botRepository) GetByID(ctx context.Context, id uint) (*models.Bot, error) {
	var bot models.Bot
	err := r.db.WithContext(ctx).First(&bot, id).Error
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

func (r *botRepository) FindByIDs(ctx context.Context, ids []uint) ([]*models.Bot, error) {
	var bots []*models.Bot
	if len(ids) == 0 {
		return bots, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&bots).Error
	if err != nil {
		return nil, err
	}
	return bots, nil
}

func (r *botRepository) FindByOwner(ctx context.Context, owner string) ([]*models.Bot, error) {
	var bots []*models.Bot
	err := r.db.WithContext(ctx).Where("owner = ?", owner).Order("id ASC").Find(&bots).Error
	if err != nil {
		return nil, err
	}
	return bots, nil
}

func (r *botRepository) AddFeesEarned(ctx context.Context, id uint, delta *big.Int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Bot{}).
		Where("id = ?", id).
		Update("fees_earned", gorm.Expr("fees_earned + ?", decimal.NewFromBigInt(delta, 0)))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
