package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/domain/invoicing"
	"go.uber.org/zap"
)

// DueSource lists templates that are due
type DueSource interface {
	DueTemplates(ctx context.Context, asOf time.Time, limit int) ([]invoicing.RecurringTemplate, error)
}

// TenantProvider lists tenants that may have overdue invoices
type TenantProvider interface {
	TenantsWithOpenInvoices(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
}

// OverdueSweeper moves past-due invoices of one tenant to OVERDUE
type OverdueSweeper interface {
	MarkOverdue(ctx context.Context, scope uuid.UUID, asOf time.Time) (*appinvoicing.OverdueSweepResult, error)
}

// CronTriggerConfig holds configuration for the cron trigger
type CronTriggerConfig struct {
	// Interval is how often due templates are collected
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// DefaultCronTriggerConfig returns default cron trigger configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		Interval:   15 * time.Minute,
		BatchSize:  500,
		MaxRetries: 2,
	}
}

// CronTrigger feeds due recurring templates into the Scheduler on every
// tick and runs the overdue sweep once per day.
type CronTrigger struct {
	config    CronTriggerConfig
	scheduler *Scheduler
	source    DueSource
	tenants   TenantProvider
	sweeper   OverdueSweeper
	logger    *zap.Logger
	now       func() time.Time

	cancel        context.CancelFunc
	wg            sync.WaitGroup
	mu            sync.Mutex
	isRunning     bool
	lastSweepDate string
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(config CronTriggerConfig, scheduler *Scheduler, source DueSource, logger *zap.Logger) *CronTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronTrigger{
		config:    config,
		scheduler: scheduler,
		source:    source,
		logger:    logger,
		now:       time.Now,
	}
}

// SetOverdueSweep enables the daily overdue sweep
func (c *CronTrigger) SetOverdueSweep(tenants TenantProvider, sweeper OverdueSweeper) {
	c.tenants = tenants
	c.sweeper = sweeper
}

// Start runs one collection immediately and then on every interval
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Recurring trigger started", zap.Duration("interval", c.config.Interval))
	return nil
}

// Stop stops the cron trigger
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Recurring trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	c.Tick(ctx)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick collects due templates and submits one job per template. It returns
// the number of jobs submitted.
func (c *CronTrigger) Tick(ctx context.Context) int {
	now := c.now()
	asOf := invoicing.DateOnly(now)

	c.sweepOnce(ctx, asOf)

	due, err := c.source.DueTemplates(ctx, asOf, c.config.BatchSize)
	if err != nil {
		c.logger.Error("Failed to load due recurring templates", zap.Error(err))
		return 0
	}

	submitted := 0
	for _, t := range due {
		err := c.scheduler.SubmitJob(NewJob(t.TenantID, t.ID, asOf, c.config.MaxRetries))
		switch {
		case err == nil:
			submitted++
		case errors.Is(err, ErrJobAlreadyQueued):
		case errors.Is(err, ErrJobQueueFull):
			// the rest is picked up by the next tick
			c.logger.Warn("Recurring queue full", zap.Int("due", len(due)), zap.Int("submitted", submitted))
			return submitted
		default:
			c.logger.Error("Failed to submit recurring job",
				zap.String("template_id", t.ID.String()),
				zap.Error(err),
			)
			return submitted
		}
	}

	if len(due) > 0 {
		c.logger.Info("Recurring templates queued", zap.Int("due", len(due)), zap.Int("submitted", submitted))
	}
	return submitted
}

func (c *CronTrigger) sweepOnce(ctx context.Context, asOf time.Time) {
	if c.tenants == nil || c.sweeper == nil {
		return
	}
	date := asOf.Format("2006-01-02")
	c.mu.Lock()
	if c.lastSweepDate == date {
		c.mu.Unlock()
		return
	}
	c.lastSweepDate = date
	c.mu.Unlock()

	tenantIDs, err := c.tenants.TenantsWithOpenInvoices(ctx, asOf)
	if err != nil {
		c.logger.Error("Failed to list tenants for overdue sweep", zap.Error(err))
		return
	}
	for _, tenantID := range tenantIDs {
		result, err := c.sweeper.MarkOverdue(ctx, tenantID, asOf)
		if err != nil {
			c.logger.Error("Overdue sweep failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		if len(result.MarkedIDs) > 0 {
			c.logger.Info("Invoices marked overdue",
				zap.String("tenant_id", tenantID.String()),
				zap.Int("count", len(result.MarkedIDs)),
			)
		}
	}
}
