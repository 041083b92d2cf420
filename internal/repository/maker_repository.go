package repository

import (
	"context"
	"math/big"
	"time"

	"dex-backend/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// makerRepository implements MakerRepository
type makerRepository struct {
	db *gorm.DB
}

// NewMakerRepository creates a new MakerRepository instance
func NewMakerRepository(db *gorm.DB) MakerRepository {
	return &makerRepository{db: db}
}

func (r *makerRepository) Create(ctx context.Context, maker *models.Maker) error {
	return r.db.WithContext(ctx).Create(maker).Error
}

func (r *makerRepository) CreateBatch(ctx context.Context, makers []*models.Maker) error {
	if len(makers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&makers).Error
}

func (r *makerRepository) GetByHash(ctx context.Context, orderHash string) (*models.Maker, error) {
	var maker models.Maker
	err := r.db.WithContext(ctx).Where("order_hash = ?", orderHash).First(&maker).Error
	if err != nil {
		return nil, err
	}
	return &maker, nil
}

func (r *makerRepository) LockByHashes(ctx context.Context, orderHashes []string) ([]*models.Maker, error) {
	var makers []*models.Maker
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_hash = ANY(?)", pq.Array(orderHashes)).
		Order("id ASC").
		Find(&makers).Error
	if err != nil {
		return nil, err
	}
	return makers, nil
}

func (r *makerRepository) ExistingHashes(ctx context.Context, orderHashes []string) ([]string, error) {
	var hashes []string
	err := r.db.WithContext(ctx).
		Model(&models.Maker{}).
		Where("order_hash = ANY(?)", pq.Array(orderHashes)).
		Pluck("order_hash", &hashes).Error
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

func (r *makerRepository) FindByPair(ctx context.Context, chainID uint64, base, quote string) ([]*models.Maker, error) {
	var makers []*models.Maker
	err := r.db.WithContext(ctx).
		Where("chain_id = ? AND base_token = ? AND quote_token = ?", chainID, base, quote).
		Order("id ASC").
		Find(&makers).Error
	if err != nil {
		return nil, err
	}
	return makers, nil
}

func (r *makerRepository) FindByPairAndOwner(ctx context.Context, chainID uint64, base, quote, owner string) ([]*models.Maker, error) {
	var makers []*models.Maker
	err := r.db.WithContext(ctx).
		Where("chain_id = ? AND base_token = ? AND quote_token = ? AND owner = ?", chainID, base, quote, owner).
		Order("id ASC").
		Find(&makers).Error
	if err != nil {
		return nil, err
	}
	return makers, nil
}

func (r *makerRepository) FindByOwner(ctx context.Context, owner string) ([]*models.Maker, error) {
	var makers []*models.Maker
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("id ASC").
		Find(&makers).Error
	if err != nil {
		return nil, err
	}
	return makers, nil
}

func (r *makerRepository) FindByBots(ctx context.Context, botIDs []uint) ([]*models.Maker, error) {
	var makers []*models.Maker
	if len(botIDs) == 0 {
		return makers, nil
	}
	err := r.db.WithContext(ctx).
		Where("bot_id IN ?", botIDs).
		Order("id ASC").
		Find(&makers).Error
	if err != nil {
		return nil, err
	}
	return makers, nil
}

func (r *makerRepository) AddFilled(ctx context.Context, id uint, amount *big.Int) (*models.Maker, error) {
	delta := decimal.NewFromBigInt(amount, 0)
	// SET expressions read the pre-update row, so both CASE and the guard see the old filled
	result := r.db.WithContext(ctx).
		Model(&models.Maker{}).
		Where("id = ? AND filled + ? <= amount", id, delta).
		Updates(map[string]interface{}{
			"filled":     gorm.Expr("filled + ?", delta),
			"status":     gorm.Expr("CASE WHEN filled + ? = amount THEN ? ELSE status END", delta, string(models.MakerStatusFilled)),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrFillExceedsAmount
	}

	var maker models.Maker
	if err := r.db.WithContext(ctx).First(&maker, id).Error; err != nil {
		return nil, err
	}
	return &maker, nil
}

func (r *makerRepository) Cancel(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Maker{}).
		Where("id = ? AND status = ?", id, string(models.MakerStatusOpen)).
		Updates(map[string]interface{}{
			"status":     string(models.MakerStatusCancelled),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *makerRepository) DeleteExpired(ctx context.Context, now int64, limit int) ([]*models.Maker, error) {
	var makers []*models.Maker
	err := r.db.WithContext(ctx).
		Where("expiry < ?", now).
		Where("NOT EXISTS (SELECT 1 FROM takers WHERE takers.maker_id = makers.id)").
		Order("id ASC").
		Limit(limit).
		Find(&makers).Error
	if err != nil {
		return nil, err
	}
	if len(makers) == 0 {
		return makers, nil
	}

	ids := make([]uint, len(makers))
	for i, m := range makers {
		ids[i] = m.ID
	}
	var deleted []*models.Maker
	err = r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("id IN ?", ids).
		Where("NOT EXISTS (SELECT 1 FROM takers WHERE takers.maker_id = makers.id)").
		Delete(&deleted).Error
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
