package dto

// ==================== Staking DTOs ====================

// StakingRequest is a signed stake delta; Withdraw is 0 or 1
type StakingRequest struct {
	Address  string  `json:"address"`
	Amount   string  `json:"amount"`
	Slot     *uint64 `json:"slot"`
	ChainID  *uint64 `json:"chain_id"`
	Withdraw *int    `json:"withdraw"`
}

// StakingFeesRequest adds fees collected for a token in a slot
type StakingFeesRequest struct {
	Token   string  `json:"token"`
	Amount  string  `json:"amount"`
	Slot    *uint64 `json:"slot"`
	ChainID *uint64 `json:"chain_id"`
}

// FeesWithdrawalRequest marks a user's fees for (token, slot) as withdrawn
type FeesWithdrawalRequest struct {
	Token   string  `json:"token"`
	Address string  `json:"address"`
	Slot    *uint64 `json:"slot"`
	ChainID *uint64 `json:"chain_id"`
}

// ChainQuery is the ?chain_id= filter of the staking read views
type ChainQuery struct {
	ChainID *uint64 `form:"chain_id"`
}
