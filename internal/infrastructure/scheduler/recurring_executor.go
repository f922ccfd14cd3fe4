package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/infrastructure/logger"
	"github.com/tilver/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TemplateRunner runs all due dates of one template
type TemplateRunner interface {
	RunTemplate(ctx context.Context, tenantID, templateID uuid.UUID, asOf time.Time) (*appinvoicing.RunResult, error)
}

// RecurringExecutor executes scheduler jobs through the recurring service
type RecurringExecutor struct {
	runner TemplateRunner
	logger *zap.Logger
}

// NewRecurringExecutor creates an executor
func NewRecurringExecutor(runner TemplateRunner, log *zap.Logger) *RecurringExecutor {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecurringExecutor{runner: runner, logger: log}
}

// Execute runs the job's template
func (e *RecurringExecutor) Execute(ctx context.Context, job *Job) error {
	ctx, log := logger.WithTenantID(ctx, e.logger, job.TenantID)

	var (
		result *appinvoicing.RunResult
		err    error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("recurring_run", job.TenantID.String()), func(ctx context.Context) {
		result, err = e.runner.RunTemplate(ctx, job.TenantID, job.TemplateID, job.AsOf)
	})
	if err != nil {
		return err
	}
	log.Debug("recurring template run",
		zap.String("template_id", job.TemplateID.String()),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("invoices", len(result.InvoiceIDs)),
	)
	return nil
}

var _ JobExecutor = (*RecurringExecutor)(nil)
