package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"colorgame/models"
	"colorgame/service"
)

type roundRepository struct {
	uow *unitOfWork
}

func (r *roundRepository) GetActive(ctx context.Context) (*models.Round, error) {
	s := r.uow.store
	if s.activeID == "" {
		return nil, nil
	}
	return cloneRound(s.rounds[s.activeID]), nil
}

// GetActiveForShare needs no extra locking: the unit of work already holds
// the store exclusively.
func (r *roundRepository) GetActiveForShare(ctx context.Context) (*models.Round, error) {
	return r.GetActive(ctx)
}

func (r *roundRepository) GetByID(ctx context.Context, id string) (*models.Round, error) {
	return cloneRound(r.uow.store.rounds[id]), nil
}

func (r *roundRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Round, error) {
	return r.GetByID(ctx, id)
}

func (r *roundRepository) Create(ctx context.Context, startTime, endTime time.Time) (*models.Round, error) {
	s := r.uow.store
	id := models.PeriodID(startTime)

	if _, exists := s.rounds[id]; exists {
		return nil, fmt.Errorf("round %s already exists", id)
	}
	if s.activeID != "" {
		return nil, fmt.Errorf("round %s is still active", s.activeID)
	}

	round := &models.Round{
		ID:        id,
		StartTime: startTime.UTC(),
		EndTime:   endTime.UTC(),
		IsActive:  true,
	}
	s.rounds[id] = round
	s.activeID = id
	r.uow.record(func() {
		delete(s.rounds, id)
		s.activeID = ""
	})

	return cloneRound(round), nil
}

func (r *roundRepository) SetOutcome(ctx context.Context, id string, outcome models.Outcome) (*models.Round, error) {
	s := r.uow.store
	round, ok := s.rounds[id]
	if !ok {
		return nil, fmt.Errorf("round %s: %w", id, service.ErrRoundNotFound)
	}
	if round.IsSettled() {
		return nil, fmt.Errorf("round %s: %w", id, service.ErrDuplicateSettlement)
	}

	previous := cloneRound(round)
	previousActive := s.activeID

	round.ApplyOutcome(outcome, s.clock.Now().UTC())
	if s.activeID == id {
		s.activeID = ""
	}
	r.uow.record(func() {
		s.rounds[id] = previous
		s.activeID = previousActive
	})

	return cloneRound(round), nil
}

func (r *roundRepository) GetHistory(ctx context.Context, limit, offset int) ([]*models.Round, error) {
	var settled []*models.Round
	for _, round := range r.uow.store.rounds {
		if round.IsSettled() {
			settled = append(settled, round)
		}
	}
	sort.Slice(settled, func(i, j int) bool {
		return settled[i].StartTime.After(settled[j].StartTime)
	})

	from, to := page(len(settled), limit, offset)
	out := make([]*models.Round, 0, to-from)
	for _, round := range settled[from:to] {
		out = append(out, cloneRound(round))
	}
	return out, nil
}
