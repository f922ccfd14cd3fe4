package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tilver/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// listSpec describes how a document table is filtered, searched and sorted
type listSpec struct {
	sortFields   map[string]bool
	searchFields []string
	// filterColumns maps Filter.Filters keys to columns compared by equality
	filterColumns map[string]string
}

func (s listSpec) apply(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if search := strings.TrimSpace(filter.Search); search != "" && len(s.searchFields) > 0 {
		pattern := "%" + strings.ToLower(search) + "%"
		conds := make([]string, len(s.searchFields))
		args := make([]any, len(s.searchFields))
		for i, field := range s.searchFields {
			conds[i] = "LOWER(" + field + ") LIKE ?"
			args[i] = pattern
		}
		query = query.Where(strings.Join(conds, " OR "), args...)
	}
	for key, value := range filter.Filters {
		column, ok := s.filterColumns[key]
		if !ok || value == nil || value == "" {
			continue
		}
		query = query.Where(column+" = ?", value)
	}
	return query
}

// findScoped loads one row of the tenant. Rows of other tenants are reported
// as not found so their existence does not leak.
func findScoped[M any](ctx context.Context, db *gorm.DB, scope, id uuid.UUID) (*M, error) {
	var model M
	err := db.WithContext(ctx).Where("tenant_id = ? AND id = ?", scope, id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find by id: %w", err)
	}
	return &model, nil
}

// findUnscoped loads one row of any tenant
func findUnscoped[M any](ctx context.Context, db *gorm.DB, id uuid.UUID) (*M, error) {
	var model M
	err := db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find by id: %w", err)
	}
	return &model, nil
}

// listScoped returns one page of the tenant's rows
func listScoped[M any, T any](
	ctx context.Context,
	db *gorm.DB,
	scope uuid.UUID,
	filter shared.Filter,
	spec listSpec,
	toDomain func(*M) *T,
) (shared.Paginated[T], error) {
	filter = filter.Normalize()
	base := func() *gorm.DB {
		return spec.apply(db.WithContext(ctx).Model(new(M)).Where("tenant_id = ?", scope), filter)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return shared.Paginated[T]{}, fmt.Errorf("count: %w", err)
	}

	sortField := ValidateSortField(filter.OrderBy, spec.sortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	var rows []M
	if err := base().
		Order(sortField + " " + sortOrder).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return shared.Paginated[T]{}, fmt.Errorf("list: %w", err)
	}

	items := make([]T, len(rows))
	for i := range rows {
		items[i] = *toDomain(&rows[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// saveVersioned writes every column of model when the stored row still has
// version-1; otherwise someone else saved first and ErrVersionConflict is
// returned. Aggregates bump their version in Touch before they are saved.
func saveVersioned(ctx context.Context, db *gorm.DB, model any, id uuid.UUID, version int) error {
	result := db.WithContext(ctx).
		Model(model).
		Select("*").
		Omit("id", "tenant_id", "created_at", "created_by").
		Where("id = ? AND version = ?", id, version-1).
		Updates(model)
	if result.Error != nil {
		return fmt.Errorf("save: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrVersionConflict
	}
	return nil
}

// nextDocumentNumber returns prefix followed by the next sequence found under
// column for the tenant, e.g. INV-202401-00007. Sequences are padded to five
// digits and keep growing past 99999, so rows are ordered by length first.
func nextDocumentNumber(ctx context.Context, db *gorm.DB, model any, column string, scope uuid.UUID, prefix string) (string, error) {
	var numbers []string
	if err := db.WithContext(ctx).
		Model(model).
		Where("tenant_id = ? AND "+column+" LIKE ?", scope, prefix+"%").
		Order("LENGTH(" + column + ") DESC, " + column + " DESC").
		Limit(1).
		Pluck(column, &numbers).Error; err != nil {
		return "", fmt.Errorf("generate number: %w", err)
	}

	var next int
	if len(numbers) > 0 {
		seq, err := strconv.Atoi(strings.TrimPrefix(numbers[0], prefix))
		if err != nil {
			return "", fmt.Errorf("generate number: unparsable sequence in %q: %w", numbers[0], err)
		}
		next = seq
	}
	next++
	return fmt.Sprintf("%s%05d", prefix, next), nil
}

// isUniqueViolation reports a unique index conflict on postgres or sqlite
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "UNIQUE constraint failed")
}

// stampCreate records actor on a new aggregate
func stampCreate(root *shared.TenantAggregateRoot, actor shared.Actor) {
	if root.CreatedBy == nil {
		root.CreatedBy = actor.RecordID()
	}
	root.LastModifiedBy = actor.RecordID()
}
