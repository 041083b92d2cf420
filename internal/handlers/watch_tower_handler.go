package handlers

import (
	"net/http"

	"dex-backend/internal/dto"
	"dex-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WatchTowerHandler serves the HMAC-authenticated endpoints of the on-chain observer
type WatchTowerHandler struct {
	fills   *services.FillService
	staking *services.StakingService
	logger  *logrus.Logger
}

// NewWatchTowerHandler creates a WatchTowerHandler
func NewWatchTowerHandler(fills *services.FillService, staking *services.StakingService, logger *logrus.Logger) *WatchTowerHandler {
	return &WatchTowerHandler{fills: fills, staking: staking, logger: logger}
}

// ApplyFills POST /wt-orders
func (h *WatchTowerHandler) ApplyFills(c *gin.Context) {
	var req dto.FillRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	outcome, err := h.fills.ApplyFills(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FillResult{Makers: len(outcome.Makers), Takers: len(outcome.Takers)})
}

// CancelMaker DELETE /wt-orders
func (h *WatchTowerHandler) CancelMaker(c *gin.Context) {
	var req dto.CancelRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	maker, err := h.fills.Cancel(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, maker)
}

// ApplyStake POST /stacking
func (h *WatchTowerHandler) ApplyStake(c *gin.Context) {
	var req dto.StakingRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	entry, err := h.staking.ApplyStake(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ApplyFees POST /stacking-fees
func (h *WatchTowerHandler) ApplyFees(c *gin.Context) {
	var req dto.StakingFeesRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	entry, err := h.staking.ApplyFees(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// MarkWithdrawal POST /fees-withdrawal
func (h *WatchTowerHandler) MarkWithdrawal(c *gin.Context) {
	var req dto.FeesWithdrawalRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	marker, err := h.staking.MarkWithdrawal(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, marker)
}
