package server

import (
	"errors"
	"net/http"

	"colorgame/service"

	"github.com/gin-gonic/gin"
)

// Error codes returned alongside the message
const (
	codeInvalidRequest      = "invalid_request"
	codeBettingClosed       = "betting_closed"
	codeInsufficientBalance = "insufficient_balance"
	codeUserNotFound        = "user_not_found"
	codeRoundNotFound       = "round_not_found"
	codeAlreadySettled      = "already_settled"
	codeStoreUnavailable    = "store_unavailable"
	codeInternal            = "internal_error"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// respondError maps a service error to a status and writes it
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: ve.Error(), Code: codeInvalidRequest})
	case errors.Is(err, service.ErrBettingClosed):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Betting is closed for this period", Code: codeBettingClosed})
	case errors.Is(err, service.ErrInsufficientBalance):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Insufficient balance", Code: codeInsufficientBalance})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "User not found", Code: codeUserNotFound})
	case errors.Is(err, service.ErrRoundNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Period not found", Code: codeRoundNotFound})
	case errors.Is(err, service.ErrDuplicateSettlement):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Period already settled", Code: codeAlreadySettled})
	case errors.Is(err, service.ErrStoreUnavailable):
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Service temporarily unavailable", Code: codeStoreUnavailable})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Server error", Code: codeInternal})
	}
}

func abortWithError(c *gin.Context, status int, message, code string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Message: message, Code: code})
}
