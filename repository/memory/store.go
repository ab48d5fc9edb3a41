// Package memory is an in-process Round Store. A unit of work holds the store
// exclusively from Begin until Commit or Rollback; Rollback replays an undo
// journal so partial work never becomes visible.
package memory

import (
	"context"
	"fmt"

	"colorgame/models"

	"github.com/benbjohnson/clock"
)

// Store holds all rows of the in-memory backend
type Store struct {
	sem   chan struct{}
	clock clock.Clock

	rounds   map[string]*models.Round
	activeID string

	bets        map[int64]*models.Bet
	betsByRound map[string][]int64
	betsByUser  map[int64][]int64
	nextBetID   int64

	users map[int64]*models.User

	transactions []*models.Transaction
	nextTxID     int64

	history       []*models.BalanceHistory
	nextHistoryID int64
}

// NewStore creates an empty store timestamping rows with clk
func NewStore(clk clock.Clock) *Store {
	return &Store{
		sem:         make(chan struct{}, 1),
		clock:       clk,
		rounds:      make(map[string]*models.Round),
		bets:        make(map[int64]*models.Bet),
		betsByRound: make(map[string][]int64),
		betsByUser:  make(map[int64][]int64),
		users:       make(map[int64]*models.User),
	}
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to acquire store: %w", ctx.Err())
	}
}

func (s *Store) release() {
	<-s.sem
}

func cloneRound(r *models.Round) *models.Round {
	if r == nil {
		return nil
	}
	out := *r
	if r.Number != nil {
		n := *r.Number
		out.Number = &n
	}
	if r.Price != nil {
		p := *r.Price
		out.Price = &p
	}
	if r.SettledAt != nil {
		t := *r.SettledAt
		out.SettledAt = &t
	}
	out.Color = append(models.ColorSet(nil), r.Color...)
	return &out
}

func cloneBet(b *models.Bet) *models.Bet {
	out := *b
	if b.Result != nil {
		r := *b.Result
		out.Result = &r
	}
	if b.Payout != nil {
		p := *b.Payout
		out.Payout = &p
	}
	if b.SettledAt != nil {
		t := *b.SettledAt
		out.SettledAt = &t
	}
	return &out
}

func cloneUser(u *models.User) *models.User {
	out := *u
	return &out
}

// page applies limit/offset to n items, returning the index range
func page(n, limit, offset int) (int, int) {
	if offset >= n {
		return n, n
	}
	end := offset + limit
	if limit <= 0 || end > n {
		end = n
	}
	return offset, end
}
