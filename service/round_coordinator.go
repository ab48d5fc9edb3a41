package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"colorgame/models"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
)

// openRetryDelay is how long to wait before retrying a failed round creation
const openRetryDelay = 5 * time.Second

// LifecycleConfig holds the round timing parameters
type LifecycleConfig struct {
	RoundDuration time.Duration
	LockWindow    time.Duration
	Cooldown      time.Duration
	// SettlementRetryInterval re-arms a failed close transition after the
	// given delay. Zero leaves the round unsettled until an operator re-drives it.
	SettlementRetryInterval time.Duration
}

// DefaultLifecycleConfig returns the standard 3 minute round timings
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		RoundDuration: 180 * time.Second,
		LockWindow:    30 * time.Second,
		Cooldown:      30 * time.Second,
	}
}

// RoundCoordinator owns the round lifecycle: it opens rounds, closes them when
// their timer fires, settles their bets and notifies observers.
type RoundCoordinator struct {
	uowFactory UnitOfWorkFactory
	generator  *OutcomeGenerator
	settlement *SettlementService
	clock      clock.Clock
	timer      *RoundTimer
	config     LifecycleConfig
	metrics    Metrics

	observerMu sync.RWMutex
	observers  []RoundObserver

	// mu serialises lifecycle transitions
	mu        sync.Mutex
	runCtx    context.Context
	lastStart time.Time

	// current is read without mu so snapshot readers never wait on a transition
	current atomic.Pointer[models.Round]
}

// NewRoundCoordinator creates a coordinator. Call Start to begin the lifecycle.
func NewRoundCoordinator(uowFactory UnitOfWorkFactory, generator *OutcomeGenerator, settlement *SettlementService, clk clock.Clock, cfg LifecycleConfig, metrics Metrics) *RoundCoordinator {
	return &RoundCoordinator{
		uowFactory: uowFactory,
		generator:  generator,
		settlement: settlement,
		clock:      clk,
		timer:      NewRoundTimer(clk),
		config:     cfg,
		metrics:    metricsOrNoop(metrics),
		runCtx:     context.Background(),
	}
}

// AddObserver registers an observer for periodStart and periodEnd notifications
func (c *RoundCoordinator) AddObserver(o RoundObserver) {
	c.observerMu.Lock()
	defer c.observerMu.Unlock()
	c.observers = append(c.observers, o)
}

// Start loads the active round, or opens one, and arms its close timer. An
// active round whose end already passed is closed immediately.
func (c *RoundCoordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runCtx = ctx

	active, latest, err := c.loadRounds(ctx)
	if err != nil {
		return err
	}

	if active != nil {
		c.current.Store(active)
		c.lastStart = active.StartTime
		c.armClose(active)

		log.WithFields(log.Fields{
			"period_id": active.ID,
			"end_time":  active.EndTime,
			"remaining": active.Remaining(c.clock.Now()),
		}).Info("Resuming active round")
		return nil
	}

	if latest != nil {
		c.current.Store(latest)
		c.lastStart = latest.StartTime
	}
	return c.openNextRoundLocked(ctx)
}

// Stop disarms any pending transition
func (c *RoundCoordinator) Stop() {
	c.timer.Stop()
	log.Info("Round coordinator stopped")
}

// Snapshot returns the latest round: the active one, or during cooldown the
// one that was just settled.
func (c *RoundCoordinator) Snapshot() *models.Round {
	return c.current.Load()
}

// State returns the current round and its phase
func (c *RoundCoordinator) State() RoundState {
	round := c.current.Load()
	if round == nil {
		return RoundState{}
	}
	now := c.clock.Now()
	return RoundState{
		Period:      round,
		Phase:       round.Phase(now, c.config.LockWindow),
		RemainingMs: round.Remaining(now).Milliseconds(),
	}
}

// GetHistory returns a page of settled rounds, newest first
func (c *RoundCoordinator) GetHistory(ctx context.Context, page, limit int) ([]*models.Round, error) {
	limit, offset := pageBounds(page, limit)

	uow := c.uowFactory.Create()
	if err := beginWork(ctx, uow); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	rounds, err := uow.RoundRepository().GetHistory(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get round history: %w", err)
	}

	if err := commitWork(uow); err != nil {
		return nil, err
	}
	return rounds, nil
}

// CloseRound draws the outcome for roundID, persists it and settles the
// round's bets in one unit of work. Calling it for a round that is already
// settled returns ErrDuplicateSettlement without side effects. On any other
// failure nothing is persisted and the round stays unsettled.
func (c *RoundCoordinator) CloseRound(ctx context.Context, roundID string) (*models.SettlementSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeRoundLocked(ctx, roundID)
}

func (c *RoundCoordinator) closeRoundLocked(ctx context.Context, roundID string) (*models.SettlementSummary, error) {
	started := c.clock.Now()

	uow := c.uowFactory.Create()
	if err := beginWork(ctx, uow); err != nil {
		c.metrics.RecordSettlementFailure("begin")
		return nil, err
	}
	defer uow.Rollback()

	round, err := uow.RoundRepository().GetByIDForUpdate(ctx, roundID)
	if err != nil {
		c.metrics.RecordSettlementFailure("load")
		return nil, fmt.Errorf("failed to load round %s: %w", roundID, err)
	}
	if round == nil {
		return nil, fmt.Errorf("round %s: %w", roundID, ErrRoundNotFound)
	}
	if round.IsSettled() {
		return nil, fmt.Errorf("round %s: %w", roundID, ErrDuplicateSettlement)
	}

	outcome := c.generator.Draw()
	settled, err := uow.RoundRepository().SetOutcome(ctx, roundID, outcome)
	if err != nil {
		c.metrics.RecordSettlementFailure("persist_outcome")
		return nil, fmt.Errorf("failed to persist outcome for round %s: %w", roundID, err)
	}

	summary, err := c.settlement.Settle(ctx, uow, settled)
	if err != nil {
		c.metrics.RecordSettlementFailure("settle")
		return nil, fmt.Errorf("failed to settle round %s: %w", roundID, err)
	}

	if err := commitWork(uow); err != nil {
		c.metrics.RecordSettlementFailure("commit")
		return nil, err
	}

	c.metrics.RecordRoundSettled(summary, c.clock.Since(started))

	log.WithFields(log.Fields{
		"period_id": settled.ID,
		"number":    outcome.Number,
		"color":     outcome.Colors.String(),
		"price":     outcome.Price.String(),
		"bets":      summary.BetCount,
		"winners":   summary.Winners,
	}).Info("Round closed")

	if cur := c.current.Load(); cur == nil || cur.ID == settled.ID {
		c.current.Store(settled)
		c.timer.Arm(c.config.Cooldown, c.onOpenTimer)
	}

	c.broadcast(models.MessagePeriodEnd, settled)
	return summary, nil
}

// OpenNextRound creates the next round unless one is already active, cutting
// the cooldown short. The open is deferred when the previous round started
// less than a period ago; the returned round is then the settled one.
func (c *RoundCoordinator) OpenNextRound(ctx context.Context) (*models.Round, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.current.Load(); cur != nil && cur.IsActive {
		return cur, nil
	}
	if err := c.openNextRoundLocked(ctx); err != nil {
		return nil, err
	}
	return c.current.Load(), nil
}

// openNextRoundLocked opens a round whose id cannot collide with the previous
// one. If that start lies in the future the open is deferred.
func (c *RoundCoordinator) openNextRoundLocked(ctx context.Context) error {
	now := c.clock.Now()
	start := models.NextPeriodStart(c.lastStart, now)
	if start.After(now) {
		c.timer.Arm(start.Sub(now), c.onOpenTimer)
		return nil
	}

	round, err := c.createRound(ctx, start)
	if err != nil {
		return err
	}

	c.current.Store(round)
	c.lastStart = round.StartTime
	c.armClose(round)
	c.metrics.RecordRoundOpened(round.ID)

	log.WithFields(log.Fields{
		"period_id":  round.ID,
		"start_time": round.StartTime,
		"end_time":   round.EndTime,
	}).Info("Round opened")

	c.broadcast(models.MessagePeriodStart, round)
	return nil
}

// createRound returns the active round, creating it if absent, so a retry
// after an ambiguous failure does not open a second round.
func (c *RoundCoordinator) createRound(ctx context.Context, start time.Time) (*models.Round, error) {
	uow := c.uowFactory.Create()
	if err := beginWork(ctx, uow); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	round, err := uow.RoundRepository().GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check active round: %w", err)
	}
	if round == nil {
		round, err = uow.RoundRepository().Create(ctx, start, start.Add(c.config.RoundDuration))
		if err != nil {
			return nil, fmt.Errorf("failed to create round: %w", err)
		}
	}

	if err := commitWork(uow); err != nil {
		return nil, err
	}
	return round, nil
}

// loadRounds returns the active round and the most recently settled one
func (c *RoundCoordinator) loadRounds(ctx context.Context) (*models.Round, *models.Round, error) {
	uow := c.uowFactory.Create()
	if err := beginWork(ctx, uow); err != nil {
		return nil, nil, err
	}
	defer uow.Rollback()

	active, err := uow.RoundRepository().GetActive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get active round: %w", err)
	}

	var latest *models.Round
	if active == nil {
		history, err := uow.RoundRepository().GetHistory(ctx, 1, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get latest round: %w", err)
		}
		if len(history) > 0 {
			latest = history[0]
		}
	}

	if err := commitWork(uow); err != nil {
		return nil, nil, err
	}
	return active, latest, nil
}

func (c *RoundCoordinator) armClose(round *models.Round) {
	roundID := round.ID
	c.timer.Arm(round.Remaining(c.clock.Now()), func() {
		c.onCloseTimer(roundID)
	})
}

func (c *RoundCoordinator) onCloseTimer(roundID string) {
	ctx := c.runContext()
	if ctx.Err() != nil {
		return
	}

	// mu stays held until the retry is armed; an operator close that lands
	// after a failure must keep the cooldown it arms
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.closeRoundLocked(ctx, roundID)
	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateSettlement):
		log.WithField("period_id", roundID).Debug("Round already settled, ignoring close")
		if cur := c.current.Load(); cur != nil && !cur.IsActive && !c.timer.Pending() {
			c.timer.Arm(c.config.Cooldown, c.onOpenTimer)
		}
	default:
		fields := log.Fields{
			"period_id": roundID,
			"error":     err,
		}
		if cur := c.current.Load(); c.config.SettlementRetryInterval > 0 && cur != nil && cur.ID == roundID && !cur.IsSettled() {
			fields["retry_in"] = c.config.SettlementRetryInterval
			c.timer.Arm(c.config.SettlementRetryInterval, func() {
				c.onCloseTimer(roundID)
			})
		}
		log.WithFields(fields).Error("Failed to close round")
	}
}

func (c *RoundCoordinator) onOpenTimer() {
	ctx := c.runContext()
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.current.Load(); cur != nil && cur.IsActive {
		return
	}
	if err := c.openNextRoundLocked(ctx); err != nil {
		log.WithFields(log.Fields{
			"error":    err,
			"retry_in": openRetryDelay,
		}).Error("Failed to open next round")
		c.timer.Arm(openRetryDelay, c.onOpenTimer)
	}
}

func (c *RoundCoordinator) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runCtx
}

func (c *RoundCoordinator) broadcast(messageType models.LifecycleMessage, round *models.Round) {
	c.observerMu.RLock()
	observers := make([]RoundObserver, len(c.observers))
	copy(observers, c.observers)
	c.observerMu.RUnlock()

	for _, o := range observers {
		o.Broadcast(messageType, round)
	}
}
