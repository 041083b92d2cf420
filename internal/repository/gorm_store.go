package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// gormStore implements Store on top of gorm/postgres
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Store backed by db
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Users() UserRepository { return &userRepository{db: s.db} }
func (s *gormStore) Makers() MakerRepository { return &makerRepository{db: s.db} }
func (s *gormStore) Bots() BotRepository { return &botRepository{db: s.db} }
func (s *gormStore) Takers() TakerRepository { return &takerRepository{db: s.db} }
func (s *gormStore) Staking() StakingRepository { return &stakingRepository{db: s.db} }

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
