package server

import (
	"net/http"
	"strconv"

	"colorgame/models"
	"colorgame/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PlaceBetRequest is the body of POST /api/bets
type PlaceBetRequest struct {
	Type   models.BetType  `json:"type"`
	Value  string          `json:"value"`
	Amount decimal.Decimal `json:"amount"`
}

// TransactionRequest is the body of POST /api/transactions
type TransactionRequest struct {
	Type   models.TransactionKind `json:"type"`
	Amount decimal.Decimal        `json:"amount"`
}

func (s *Server) getCurrentPeriod(c *gin.Context) {
	c.JSON(http.StatusOK, s.services.Rounds.State())
}

func (s *Server) getPeriodHistory(c *gin.Context) {
	page, limit := pagination(c)
	rounds, err := s.services.Rounds.GetHistory(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(rounds))
}

func (s *Server) getUser(c *gin.Context) {
	user, err := s.services.Users.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) placeBet(c *gin.Context) {
	var req PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// a closed round rejects every bet, even one that does not parse
		if s.services.Rounds.State().Phase != models.PhaseOpen {
			respondError(c, service.ErrBettingClosed)
			return
		}
		abortWithError(c, http.StatusBadRequest, "Invalid bet data", codeInvalidRequest)
		return
	}

	bet, err := s.services.Betting.PlaceBet(c.Request.Context(), service.PlaceBetRequest{
		UserID: currentUserID(c),
		Type:   req.Type,
		Value:  req.Value,
		Amount: req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bet)
}

func (s *Server) getBetHistory(c *gin.Context) {
	page, limit := pagination(c)
	bets, err := s.services.Betting.GetBetHistory(c.Request.Context(), currentUserID(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(bets))
}

func (s *Server) createTransaction(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid transaction data", codeInvalidRequest)
		return
	}

	var (
		tx  *models.Transaction
		err error
	)
	switch req.Type {
	case models.TransactionKindDeposit:
		tx, err = s.services.Wallet.Deposit(c.Request.Context(), currentUserID(c), req.Amount)
	case models.TransactionKindWithdrawal:
		tx, err = s.services.Wallet.Withdraw(c.Request.Context(), currentUserID(c), req.Amount)
	default:
		err = &service.ValidationError{Field: "type", Message: "must be deposit or withdrawal"}
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (s *Server) getTransactionHistory(c *gin.Context) {
	page, limit := pagination(c)
	txs, err := s.services.Wallet.GetTransactionHistory(c.Request.Context(), currentUserID(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(txs))
}

func (s *Server) settlePeriod(c *gin.Context) {
	summary, err := s.services.Rounds.CloseRound(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) openPeriod(c *gin.Context) {
	if _, err := s.services.Rounds.OpenNextRound(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.services.Rounds.State())
}

// pagination reads page and limit, falling back to 1 and 10 like the UI expects
func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		limit = 10
	}
	return page, limit
}

// nonNil keeps empty lists encoding as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
