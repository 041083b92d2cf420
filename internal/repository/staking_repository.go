package repository

import (
	"context"
	"math/big"

	"dex-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// stakingRepository implements StakingRepository
type stakingRepository struct {
	db *gorm.DB
}

// NewStakingRepository creates a new StakingRepository instance
func NewStakingRepository(db *gorm.DB) StakingRepository {
	return &stakingRepository{db: db}
}

func (r *stakingRepository) AddStake(ctx context.Context, user string, slot, chainID uint64, delta *big.Int) (*models.StakingEntry, error) {
	entry := models.StakingEntry{User: user, Slot: slot, ChainID: chainID, Amount: decimal.NewFromBigInt(delta, 0)}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_address"}, {Name: "slot"}, {Name: "chain_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"amount": gorm.Expr("staking_entries.amount + excluded.amount")}),
		}).
		Create(&entry).Error
	if err != nil {
		return nil, err
	}

	var stored models.StakingEntry
	err = r.db.WithContext(ctx).
		Where("user_address = ? AND slot = ? AND chain_id = ?", user, slot, chainID).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *stakingRepository) AddFees(ctx context.Context, token string, slot, chainID uint64, delta *big.Int) (*models.StakingFeesEntry, error) {
	entry := models.StakingFeesEntry{Token: token, Slot: slot, ChainID: chainID, Amount: decimal.NewFromBigInt(delta, 0)}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}, {Name: "slot"}, {Name: "chain_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"amount": gorm.Expr("staking_fees_entries.amount + excluded.amount")}),
		}).
		Create(&entry).Error
	if err != nil {
		return nil, err
	}

	var stored models.StakingFeesEntry
	err = r.db.WithContext(ctx).
		Where("token = ? AND slot = ? AND chain_id = ?", token, slot, chainID).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *stakingRepository) MarkWithdrawal(ctx context.Context, user, token string, slot, chainID uint64) (*models.StakingFeesWithdrawal, bool, error) {
	marker := models.StakingFeesWithdrawal{User: user, Token: token, Slot: slot, ChainID: chainID}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&marker)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return &marker, true, nil
	}

	var stored models.StakingFeesWithdrawal
	err := r.db.WithContext(ctx).
		Where("user_address = ? AND token = ? AND slot = ? AND chain_id = ?", user, token, slot, chainID).
		First(&stored).Error
	if err != nil {
		return nil, false, err
	}
	return &stored, false, nil
}

func (r *stakingRepository) FindStakes(ctx context.Context, user string, chainID uint64) ([]*models.StakingEntry, error) {
	var entries []*models.StakingEntry
	err := r.db.WithContext(ctx).
		Where("user_address = ? AND chain_id = ?", user, chainID).
		Order("slot DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *stakingRepository) FindFees(ctx context.Context, chainID uint64) ([]*models.StakingFeesEntry, error) {
	var entries []*models.StakingFeesEntry
	err := r.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		Order("slot DESC, token ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *stakingRepository) FindWithdrawals(ctx context.Context, user string, chainID uint64) ([]*models.StakingFeesWithdrawal, error) {
	var markers []*models.StakingFeesWithdrawal
	err := r.db.WithContext(ctx).
		Where("user_address = ? AND chain_id = ?", user, chainID).
		Order("slot DESC, token ASC").
		Find(&markers).Error
	if err != nil {
		return nil, err
	}
	return markers, nil
}

func (r *stakingRepository) GlobalStakes(ctx context.Context, chainID uint64) ([]models.SlotStake, error) {
	var rows []models.SlotStake
	err := r.db.WithContext(ctx).
		Model(&models.StakingEntry{}).
		Select("slot, SUM(amount) AS amount").
		Where("chain_id = ?", chainID).
		Group("slot").
		Order("slot DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
