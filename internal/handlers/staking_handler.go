package handlers

import (
	"net/http"

	"dex-backend/internal/dto"
	"dex-backend/internal/middleware"
	"dex-backend/internal/services"
	"dex-backend/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StakingHandler serves the staking read views
type StakingHandler struct {
	staking *services.StakingService
	logger  *logrus.Logger
}

// NewStakingHandler creates a StakingHandler
func NewStakingHandler(staking *services.StakingService, logger *logrus.Logger) *StakingHandler {
	return &StakingHandler{staking: staking, logger: logger}
}

func chainFromQuery(c *gin.Context) (uint64, error) {
	var q dto.ChainQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return 0, queryError("chain_id")
	}
	if q.ChainID == nil {
		return 0, types.NewFieldError("chain_id", types.ErrMissingField)
	}
	return *q.ChainID, nil
}

// UserStakes GET /stacking
func (h *StakingHandler) UserStakes(c *gin.Context) {
	chainID, err := chainFromQuery(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	entries, err := h.staking.UserStakes(c.Request.Context(), middleware.SessionAddress(c), chainID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Fees GET /stacking-fees
func (h *StakingHandler) Fees(c *gin.Context) {
	chainID, err := chainFromQuery(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	entries, err := h.staking.Fees(c.Request.Context(), chainID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// UserWithdrawals GET /fees-withdrawal
func (h *StakingHandler) UserWithdrawals(c *gin.Context) {
	chainID, err := chainFromQuery(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	markers, err := h.staking.UserWithdrawals(c.Request.Context(), middleware.SessionAddress(c), chainID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, markers)
}

// GlobalStakes GET /global-stacking
func (h *StakingHandler) GlobalStakes(c *gin.Context) {
	chainID, err := chainFromQuery(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	rows, err := h.staking.GlobalStakes(c.Request.Context(), chainID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
