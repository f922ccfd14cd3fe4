package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dbStartKey = "telemetry:query_start"

// DBConfig configures database instrumentation
type DBConfig struct {
	// Trace registers otelgorm so every statement gets a span
	Trace bool
	// FullSQL keeps bound variables in span statements
	FullSQL       bool
	SlowThreshold time.Duration
}

// DBPlugin records query latency per operation and table, and flags slow
// statements on the active span.
type DBPlugin struct {
	cfg      DBConfig
	duration *Histogram
	errors   *Counter
	logger   *zap.Logger
}

// NewDBPlugin creates the plugin; register it with db.Use
func NewDBPlugin(meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBPlugin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = 200 * time.Millisecond
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "ledger_db_query_duration_seconds",
		Description: "Database statement latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	errs, err := NewCounter(meter, "ledger_db_query_errors_total", "Failed database statements", "{statements}")
	if err != nil {
		return nil, err
	}
	return &DBPlugin{cfg: cfg, duration: duration, errors: errs, logger: logger}, nil
}

// Name implements gorm.Plugin
func (p *DBPlugin) Name() string {
	return "ledger:telemetry"
}

// Initialize implements gorm.Plugin
func (p *DBPlugin) Initialize(db *gorm.DB) error {
	if p.cfg.Trace {
		opts := []otelgorm.Option{otelgorm.WithDBName("ledger")}
		if !p.cfg.FullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return fmt.Errorf("register otelgorm: %w", err)
		}
	}

	cb := db.Callback()
	hooks := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.before("ledger_telemetry:before_"+h.op, p.before); err != nil {
			return err
		}
		if err := h.after("ledger_telemetry:after_"+h.op, p.afterFor(h.op)); err != nil {
			return err
		}
	}
	return nil
}

func (p *DBPlugin) before(db *gorm.DB) {
	db.InstanceSet(dbStartKey, time.Now())
}

func (p *DBPlugin) afterFor(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(dbStartKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(start)
		ctx := db.Statement.Context

		attrs := []attribute.KeyValue{AttrDBOperation.String(op), AttrDBTable.String(db.Statement.Table)}
		p.duration.RecordDuration(ctx, elapsed, attrs...)
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			p.errors.Inc(ctx, attrs...)
		}

		if elapsed < p.cfg.SlowThreshold {
			return
		}
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(attribute.Bool("db.slow_query", true))
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.cfg.SlowThreshold.Milliseconds()),
			))
		}
		p.logger.Warn("Slow query",
			zap.String("operation", op),
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed),
		)
	}
}

var _ gorm.Plugin = (*DBPlugin)(nil)
