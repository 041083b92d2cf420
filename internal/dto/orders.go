package dto

import "dex-backend/internal/models"

// ==================== Order DTOs ====================

// MakerRequest is a signed single limit order. Decimals are base-10 strings.
type MakerRequest struct {
	Address    string  `json:"address"`
	ChainID    *uint64 `json:"chain_id"`
	BaseToken  string  `json:"base_token"`
	QuoteToken string  `json:"quote_token"`
	Amount     string  `json:"amount"`
	Price      string  `json:"price"`
	IsBuyer    *bool   `json:"is_buyer"`
	Expiry     *uint64 `json:"expiry"`
	OrderHash  string  `json:"order_hash"`
	Signature  string  `json:"signature"`
}

// BotRequest is a signed grid descriptor. OrderHash is optional and, when
// present, must equal the descriptor hash.
type BotRequest struct {
	Address    string  `json:"address"`
	ChainID    *uint64 `json:"chain_id"`
	BaseToken  string  `json:"base_token"`
	QuoteToken string  `json:"quote_token"`
	Amount     string  `json:"amount"`
	Price      string  `json:"price"`
	Step       string  `json:"step"`
	MakerFees  string  `json:"maker_fees"`
	UpperBound string  `json:"upper_bound"`
	LowerBound string  `json:"lower_bound"`
	IsBuyer    *bool   `json:"is_buyer"`
	Expiry     *uint64 `json:"expiry"`
	OrderHash  string  `json:"order_hash,omitempty"`
	Signature  string  `json:"signature"`
}

// BotCreated is the NEW_BOT payload and the POST /bot response
type BotCreated struct {
	Bot    *models.Bot     `json:"bot"`
	Makers []*models.Maker `json:"makers"`
}

// BotView is one bot of GET /bot with its derived remaining amounts
type BotView struct {
	*models.Bot
	BaseTokenAmount  string `json:"base_token_amount"`
	QuoteTokenAmount string `json:"quote_token_amount"`
}

// PairQuery selects makers of one trading pair
type PairQuery struct {
	ChainID *uint64 `form:"chain_id"`
	Base    string  `form:"base"`
	Quote   string  `form:"quote"`
	All     string  `form:"all"`
}
