// Package invoicing holds the document facade: invoice, expense, payment and
// recurring template services over the generic tenant repositories.
package invoicing

import (
	"context"

	"github.com/tilver/backend/internal/domain/shared"
	"go.uber.org/zap"
)

type eventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// publishEvents hands pending events of each aggregate to the publisher. The
// state change is already committed, so a publish failure is only logged.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, sources ...eventSource) {
	for _, src := range sources {
		events := src.GetDomainEvents()
		if publisher != nil && len(events) > 0 {
			if err := publisher.Publish(ctx, events...); err != nil {
				logger.Warn("failed to publish domain events",
					zap.Int("count", len(events)),
					zap.Error(err),
				)
			}
		}
		src.ClearDomainEvents()
	}
}

func (f ListFilter) toFilter() shared.Filter {
	filter := shared.DefaultFilter()
	filter.Search = f.Search
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 {
		filter.PageSize = f.PageSize
	}
	if f.OrderBy != "" {
		filter.OrderBy = f.OrderBy
	}
	if f.OrderDir != "" {
		filter.OrderDir = f.OrderDir
	}
	if f.Status != "" {
		filter.Filters["status"] = f.Status
	}
	return filter.Normalize()
}

func mapPage[T, R any](page shared.Paginated[T], conv func(*T) R) shared.Paginated[R] {
	items := make([]R, len(page.Items))
	for i := range page.Items {
		items[i] = conv(&page.Items[i])
	}
	return shared.NewPaginated(items, page.Total, page.Page, page.PageSize)
}
