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

// OrderHandler serves maker and bot admission and the order book views
type OrderHandler struct {
	orders *services.OrderService
	logger *logrus.Logger
}

// NewOrderHandler creates an OrderHandler
func NewOrderHandler(orders *services.OrderService, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// CreateMaker POST /order
func (h *OrderHandler) CreateMaker(c *gin.Context) {
	var req dto.MakerRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	maker, err := h.orders.AdmitMaker(c.Request.Context(), &req, middleware.SessionAddress(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, maker)
}

// CreateBot POST /bot
func (h *OrderHandler) CreateBot(c *gin.Context) {
	var req dto.BotRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	created, err := h.orders.AdmitBot(c.Request.Context(), &req, middleware.SessionAddress(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

func bindPair(c *gin.Context) (*dto.PairQuery, error) {
	var q dto.PairQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return nil, queryError("chain_id")
	}
	return &q, nil
}

func requireChain(q *dto.PairQuery) (uint64, error) {
	if q.ChainID == nil {
		return 0, types.NewFieldError("chain_id", types.ErrMissingField)
	}
	return *q.ChainID, nil
}

// ListPairMakers GET /orders?chain_id&base&quote
func (h *OrderHandler) ListPairMakers(c *gin.Context) {
	q, err := bindPair(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	chainID, err := requireChain(q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	makers, err := h.orders.PairMakers(c.Request.Context(), chainID, q.Base, q.Quote)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, makers)
}

// ListUserMakers GET /order?chain_id&base&quote or ?all=1
func (h *OrderHandler) ListUserMakers(c *gin.Context) {
	q, err := bindPair(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	all := q.All == "1" || q.All == "true"
	var chainID uint64
	if !all {
		if chainID, err = requireChain(q); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}
	makers, err := h.orders.UserMakers(c.Request.Context(), middleware.SessionAddress(c), all, chainID, q.Base, q.Quote)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, makers)
}

// ListUserBots GET /bot
func (h *OrderHandler) ListUserBots(c *gin.Context) {
	bots, err := h.orders.UserBots(c.Request.Context(), middleware.SessionAddress(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, bots)
}
