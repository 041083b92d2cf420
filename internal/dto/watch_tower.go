package dto

import "encoding/json"

// ==================== Watch tower DTOs ====================

// FillRequest is a batch of on-chain fills for one taker at one block.
// Trades stays raw so a malformed mapping maps to TRADE_FIELD_FORMAT.
type FillRequest struct {
	Taker   string          `json:"taker"`
	Block   *uint64         `json:"block"`
	ChainID *uint64         `json:"chain_id"`
	Trades  json.RawMessage `json:"trades"`
}

// TradeLeg is one fill against the maker named by its map key
type TradeLeg struct {
	TakerAmount string `json:"taker_amount"`
	Fees        string `json:"fees"`
	BaseFees    *bool  `json:"base_fees"`
	IsBuyer     *bool  `json:"is_buyer"`
}

// CancelRequest cancels one maker
type CancelRequest struct {
	OrderHash string `json:"order_hash"`
}

// FillResult is returned by POST /wt-orders
type FillResult struct {
	Makers int `json:"makers"`
	Takers int `json:"takers"`
}
