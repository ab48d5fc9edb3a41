package service

import (
	"context"
	"time"

	"colorgame/events"
	"colorgame/models"

	"github.com/shopspring/decimal"
)

// RoundRepository defines the interface for round data access
type RoundRepository interface {
	// GetActive returns the active round, or nil if none exists
	GetActive(ctx context.Context) (*models.Round, error)

	// GetActiveForShare returns the active round and holds a shared lock on
	// it for the rest of the unit of work, so the round cannot be settled
	// concurrently
	GetActiveForShare(ctx context.Context) (*models.Round, error)

	// GetByID retrieves a round by its period id, or nil if none exists
	GetByID(ctx context.Context, id string) (*models.Round, error)

	// GetByIDForUpdate retrieves a round and locks it exclusively
	GetByIDForUpdate(ctx context.Context, id string) (*models.Round, error)

	// Create creates a new active round. The id is derived from startTime.
	Create(ctx context.Context, startTime, endTime time.Time) (*models.Round, error)

	// SetOutcome records the outcome and marks the round inactive.
	// Returns ErrRoundNotFound or ErrDuplicateSettlement.
	SetOutcome(ctx context.Context, id string, outcome models.Outcome) (*models.Round, error)

	// GetHistory returns settled rounds, newest first
	GetHistory(ctx context.Context, limit, offset int) ([]*models.Round, error)
}

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create creates a new bet record and fills in its id and creation time
	Create(ctx context.Context, bet *models.Bet) error

	// GetByRound returns every bet placed on a round, oldest first
	GetByRound(ctx context.Context, periodID string) ([]*models.Bet, error)

	// SetResult records a bet's result and payout. Returns
	// ErrDuplicateSettlement if the bet already has a result.
	SetResult(ctx context.Context, betID int64, result models.BetResult, payout decimal.Decimal) error

	// GetByUser returns bets for a specific user, newest first
	GetByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Bet, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user, or nil if none exists
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// Create creates a new user with the initial balance. Returns nil without
	// error if a user with that id already exists.
	Create(ctx context.Context, id int64, username string, initialBalance decimal.Decimal) (*models.User, error)

	// AdjustBalance applies a signed delta atomically and returns the updated
	// user. A delta that would make the balance negative fails with
	// ErrInsufficientBalance and leaves the balance untouched.
	AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (*models.User, error)
}

// TransactionRepository defines the interface for the wallet ledger
type TransactionRepository interface {
	// Create appends a ledger entry
	Create(ctx context.Context, tx *models.Transaction) error

	// GetByUser returns ledger entries for a user, newest first
	GetByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns balance history for a specific user, newest first
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.BalanceHistory, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes queued events
	Commit() error

	// Rollback rolls back the transaction. It is a no-op after Commit.
	Rollback() error

	// Repository getters
	RoundRepository() RoundRepository
	BetRepository() BetRepository
	UserRepository() UserRepository
	TransactionRepository() TransactionRepository
	BalanceHistoryRepository() BalanceHistoryRepository

	// EventBus returns the transactional event publisher
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// UserService defines the interface for user operations
type UserService interface {
	// GetOrCreateUser retrieves an existing user or creates one with the starting balance
	GetOrCreateUser(ctx context.Context, userID int64, username string) (*models.User, error)

	// GetUser retrieves a user. Returns ErrUserNotFound if absent.
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}

// PlaceBetRequest carries an unvalidated bet from the boundary
type PlaceBetRequest struct {
	UserID int64
	Type   models.BetType
	Value  string
	Amount decimal.Decimal
}

// BettingService defines the interface for bet placement
type BettingService interface {
	// PlaceBet validates and records a bet on the active round, debiting the stake
	PlaceBet(ctx context.Context, req PlaceBetRequest) (*models.Bet, error)

	// GetBetHistory returns a page of the user's bets, newest first
	GetBetHistory(ctx context.Context, userID int64, page, limit int) ([]*models.Bet, error)
}

// WalletService defines the interface for deposits and withdrawals
type WalletService interface {
	// Deposit credits the user and appends a deposit transaction
	Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*models.Transaction, error)

	// Withdraw debits the user and appends a withdrawal transaction
	Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (*models.Transaction, error)

	// GetTransactionHistory returns a page of the user's ledger, newest first
	GetTransactionHistory(ctx context.Context, userID int64, page, limit int) ([]*models.Transaction, error)
}

// RoundState is the current round as exposed to clients
type RoundState struct {
	Period      *models.Round     `json:"period"`
	Phase       models.RoundPhase `json:"phase"`
	RemainingMs int64             `json:"remainingMs"`
}

// RoundService defines the read side of the lifecycle plus operator actions
type RoundService interface {
	// Snapshot returns the latest round known to the coordinator
	Snapshot() *models.Round

	// State returns the current round with its phase
	State() RoundState

	// GetHistory returns a page of settled rounds, newest first
	GetHistory(ctx context.Context, page, limit int) ([]*models.Round, error)

	// CloseRound draws and settles a round. A second call is a no-op
	// returning ErrDuplicateSettlement.
	CloseRound(ctx context.Context, roundID string) (*models.SettlementSummary, error)

	// OpenNextRound opens the next round without waiting out the cooldown.
	// It returns the active round if there already is one.
	OpenNextRound(ctx context.Context) (*models.Round, error)
}

// RoundObserver receives lifecycle notifications from the coordinator
type RoundObserver interface {
	Broadcast(messageType models.LifecycleMessage, round *models.Round)
}

// OutcomeSource is the random source the outcome generator draws from
type OutcomeSource interface {
	IntN(n int) int
	Float64() float64
}
