package handlers

import (
	"net/http"

	"dex-backend/internal/dto"
	"dex-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AccountHandler serves account creation and login
type AccountHandler struct {
	accounts *services.AccountService
	logger   *logrus.Logger
}

// NewAccountHandler creates an AccountHandler
func NewAccountHandler(accounts *services.AccountService, logger *logrus.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// CreateAccount POST /account
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req dto.AccountRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	resp, err := h.accounts.CreateAccount(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Login POST /auth
func (h *AccountHandler) Login(c *gin.Context) {
	var req dto.AccountRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	resp, err := h.accounts.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
