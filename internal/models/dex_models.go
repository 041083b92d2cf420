package models

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// MakerStatus is the lifecycle state of a signed limit order
type MakerStatus string

const (
	MakerStatusOpen      MakerStatus = "OPEN"
	MakerStatusCancelled MakerStatus = "CANCELLED" // terminal
	MakerStatusFilled    MakerStatus = "FILLED"    // filled == amount
)

// User is identified solely by its checksum address
type User struct {
	Address   string    `json:"address" gorm:"primaryKey;size:42"`
	CreatedAt time.Time `json:"created_at"`
}

// Maker is a signed limit order. BotID links grid makers to the bot that emitted them.
type Maker struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	Owner      string          `json:"owner" gorm:"size:42;not null;index"`
	BotID      *uint           `json:"bot,omitempty" gorm:"index"`
	ChainID    uint64          `json:"chain_id" gorm:"not null;index:idx_makers_pair,priority:1"`
	BaseToken  string          `json:"base_token" gorm:"size:42;not null;index:idx_makers_pair,priority:2"`
	QuoteToken string          `json:"quote_token" gorm:"size:42;not null;index:idx_makers_pair,priority:3"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric(78,0);not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:numeric(78,0);not null"`
	Filled     decimal.Decimal `json:"filled" gorm:"type:numeric(78,0);not null;default:0"`
	IsBuyer    bool            `json:"is_buyer"`
	Expiry     int64           `json:"expiry" gorm:"not null;index"`
	Status     MakerStatus     `json:"status" gorm:"size:16;not null;default:'OPEN'"`
	OrderHash  string          `json:"order_hash" gorm:"size:66;not null;uniqueIndex"`
	Signature  string          `json:"signature" gorm:"size:132;not null"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Remaining returns amount - filled
func (m *Maker) Remaining() *big.Int {
	return new(big.Int).Sub(m.Amount.BigInt(), m.Filled.BigInt())
}

// Bot is a grid strategy record; its makers live in the makers table.
type Bot struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	Owner      string          `json:"owner" gorm:"size:42;not null;index"`
	ChainID    uint64          `json:"chain_id" gorm:"not null"`
	BaseToken  string          `json:"base_token" gorm:"size:42;not null"`
	QuoteToken string          `json:"quote_token" gorm:"size:42;not null"`
	Step       decimal.Decimal `json:"step" gorm:"type:numeric(78,0);not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:numeric(78,0);not null"`
	MakerFees  decimal.Decimal `json:"maker_fees" gorm:"type:numeric(78,0);not null"`
	UpperBound decimal.Decimal `json:"upper_bound" gorm:"type:numeric(78,0);not null"`
	LowerBound decimal.Decimal `json:"lower_bound" gorm:"type:numeric(78,0);not null"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric(78,0);not null"`
	FeesEarned decimal.Decimal `json:"fees_earned" gorm:"type:numeric(80,0);not null;default:0"` // signed
	IsBuyer    bool            `json:"is_buyer"`
	Timestamp  int64           `json:"timestamp" gorm:"not null"`
	Expiry     int64           `json:"expiry" gorm:"not null"`
	Signature  string          `json:"signature" gorm:"size:132;not null"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Taker is one append-only fill leg reported by the watch tower
type Taker struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	MakerID     uint            `json:"maker" gorm:"not null;index"`
	Taker       string          `json:"taker" gorm:"size:42;not null;index"`
	Block       uint64          `json:"block" gorm:"not null"`
	TakerAmount decimal.Decimal `json:"taker_amount" gorm:"type:numeric(78,0);not null"`
	Fees        decimal.Decimal `json:"fees" gorm:"type:numeric(78,0);not null"`
	BaseFees    bool            `json:"base_fees"`
	IsBuyer     bool            `json:"is_buyer"`
	ChainID     uint64          `json:"chain_id" gorm:"not null"`
	CreatedAt   time.Time       `json:"created_at"`
}

// StakingEntry accumulates signed staking deltas per (user, slot, chain)
type StakingEntry struct {
	ID      uint            `json:"-" gorm:"primaryKey"`
	User    string          `json:"address" gorm:"column:user_address;size:42;not null;uniqueIndex:idx_staking_key,priority:1"`
	Slot    uint64          `json:"slot" gorm:"not null;uniqueIndex:idx_staking_key,priority:2"`
	ChainID uint64          `json:"chain_id" gorm:"not null;uniqueIndex:idx_staking_key,priority:3"`
	Amount  decimal.Decimal `json:"amount" gorm:"type:numeric(80,0);not null;default:0"`
}

// StakingFeesEntry accumulates fees per (token, slot, chain)
type StakingFeesEntry struct {
	ID      uint            `json:"-" gorm:"primaryKey"`
	Token   string          `json:"token" gorm:"size:42;not null;uniqueIndex:idx_staking_fees_key,priority:1"`
	Slot    uint64          `json:"slot" gorm:"not null;uniqueIndex:idx_staking_fees_key,priority:2"`
	ChainID uint64          `json:"chain_id" gorm:"not null;uniqueIndex:idx_staking_fees_key,priority:3"`
	Amount  decimal.Decimal `json:"amount" gorm:"type:numeric(80,0);not null;default:0"`
}

// StakingFeesWithdrawal marks that a user already withdrew a token's fees for a slot
type StakingFeesWithdrawal struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	User      string    `json:"address" gorm:"column:user_address;size:42;not null;uniqueIndex:idx_fees_withdrawal_key,priority:1"`
	Token     string    `json:"token" gorm:"size:42;not null;uniqueIndex:idx_fees_withdrawal_key,priority:2"`
	Slot      uint64    `json:"slot" gorm:"not null;uniqueIndex:idx_fees_withdrawal_key,priority:3"`
	ChainID   uint64    `json:"chain_id" gorm:"not null;uniqueIndex:idx_fees_withdrawal_key,priority:4"`
	CreatedAt time.Time `json:"created_at"`
}

// SlotStake is one row of the global staking aggregate
type SlotStake struct {
	Slot   uint64
	Amount decimal.Decimal
}
