package repository

import (
	"context"
	"errors"
	"math/big"

	"dex-backend/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is shared by every implementation so callers test one sentinel.
	ErrNotFound = gorm.ErrRecordNotFound
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = gorm.ErrDuplicatedKey
	// ErrFillExceedsAmount is returned when filled + amount would pass the maker amount.
	ErrFillExceedsAmount = errors.New("fill exceeds maker amount")
)

// UserRepository defines the interface for User data access
type UserRepository interface {
	// Ensure creates the user if missing and reports whether it was created
	Ensure(ctx context.Context, address string) (bool, error)
	Get(ctx context.Context, address string) (*models.User, error)
}

// MakerRepository defines the interface for Maker data access
type MakerRepository interface {
	Create(ctx context.Context, maker *models.Maker) error
	CreateBatch(ctx context.Context, makers []*models.Maker) error
	GetByHash(ctx context.Context, orderHash string) (*models.Maker, error)

	// LockByHashes loads makers by hash for update, ordered by id
	LockByHashes(ctx context.Context, orderHashes []string) ([]*models.Maker, error)
	ExistingHashes(ctx context.Context, orderHashes []string) ([]string, error)

	FindByPair(ctx context.Context, chainID uint64, base, quote string) ([]*models.Maker, error)
	FindByPairAndOwner(ctx context.Context, chainID uint64, base, quote, owner string) ([]*models.Maker, error)
	FindByOwner(ctx context.Context, owner string) ([]*models.Maker, error)
	FindByBots(ctx context.Context, botIDs []uint) ([]*models.Maker, error)

	// AddFilled increments filled, marking the maker FILLED when it reaches amount.
	// Returns ErrFillExceedsAmount and leaves the row untouched when it would overshoot.
	AddFilled(ctx context.Context, id uint, amount *big.Int) (*models.Maker, error)
	// Cancel moves an OPEN maker to CANCELLED and reports false for any other status.
	Cancel(ctx context.Context, id uint) (bool, error)
	// DeleteExpired removes makers with expiry < now that have no takers.
	DeleteExpired(ctx context.Context, now int64, limit int) ([]*models.Maker, error)
}

// BotRepository defines the interface for Bot data access
type BotRepository interface {
	Create(ctx context.Context, bot *models.Bot) error
	GetByID(ctx context.Context, id uint) (*models.Bot, error)
	FindByIDs(ctx context.Context, ids []uint) ([]*models.Bot, error)
	FindByOwner(ctx context.Context, owner string) ([]*models.Bot, error)
	// AddFeesEarned applies fees_earned := fees_earned + delta server-side
	AddFeesEarned(ctx context.Context, id uint, delta *big.Int) error
}

// TakerRepository defines the interface for Taker data access
type TakerRepository interface {
	CreateBatch(ctx context.Context, takers []*models.Taker) error
	FindByMaker(ctx context.Context, makerID uint) ([]*models.Taker, error)
}

// StakingRepository defines the interface for the staking ledger
type StakingRepository interface {
	AddStake(ctx context.Context, user string, slot, chainID uint64, delta *big.Int) (*models.StakingEntry, error)
	AddFees(ctx context.Context, token string, slot, chainID uint64, delta *big.Int) (*models.StakingFeesEntry, error)
	// MarkWithdrawal is idempotent per (user, token, slot, chain) and reports whether a marker was created
	MarkWithdrawal(ctx context.Context, user, token string, slot, chainID uint64) (*models.StakingFeesWithdrawal, bool, error)

	FindStakes(ctx context.Context, user string, chainID uint64) ([]*models.StakingEntry, error)
	FindFees(ctx context.Context, chainID uint64) ([]*models.StakingFeesEntry, error)
	FindWithdrawals(ctx context.Context, user string, chainID uint64) ([]*models.StakingFeesWithdrawal, error)
	// GlobalStakes sums stake per slot, ordered by slot descending
	GlobalStakes(ctx context.Context, chainID uint64) ([]models.SlotStake, error)
}

// Store groups the repositories and runs them atomically
type Store interface {
	Users() UserRepository
	Makers() MakerRepository
	Bots() BotRepository
	Takers() TakerRepository
	Staking() StakingRepository

	// Transaction runs fn against a transactional view; any error rolls everything back
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
