package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bankroll/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type registerRequest struct {
	UserID  int64  `json:"user_id" binding:"required"`
	Address string `json:"address" binding:"required"`
}

type wagerRequest struct {
	Stake decimal.Decimal `json:"stake" binding:"required"`
}

type withdrawRequest struct {
	Asset     models.Asset    `json:"asset" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	ToAddress string          `json:"to_address" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := s.accounts.Register(c.Request.Context(), req.UserID, req.Address)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) handleGetAccount(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	account, err := s.accounts.GetAccount(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) handleRecordLogin(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	account, err := s.accounts.RecordLogin(c.Request.Context(), userID, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) handlePlaceWager(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var req wagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.wagers.PlaceWager(c.Request.Context(), userID, req.Stake)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handlePlayJackpot(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	result, err := s.jackpots.PlayJackpot(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleWithdraw(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.withdrawals.RequestWithdrawal(c.Request.Context(), userID, req.Asset, req.Amount, req.ToAddress)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return 0, false
	}
	return userID, true
}

// writeError maps the service error taxonomy onto HTTP statuses
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrNotRegistered):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidStake),
		errors.Is(err, models.ErrWithdrawalLimitExceeded):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrAddressInUse):
		status = http.StatusConflict
	case errors.Is(err, models.ErrTransferDispatchFailed):
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
