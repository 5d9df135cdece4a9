package sqlite

import (
	"context"

	"github.com/finbook/finbook/internal/domain"
)

// The three catalog tables share one shape, so one set of helpers serves all
// of them. Table names are compile-time constants, never caller input.

func (s *Store) createCatalogRow(ctx context.Context, table, id, name, userID, orgID, createdAt string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO "+table+" (id, name, user_id, organization_id, created_at) VALUES (?, ?, ?, ?, ?)",
		id, name, userID, orgID, createdAt,
	)
	if err != nil {
		return &domain.ErrStorage{Op: "create " + table, Err: err}
	}
	return nil
}

type catalogRow struct {
	id, name, userID, orgID, createdAt string
}

func (s *Store) listCatalogRows(ctx context.Context, table string, scope domain.CallerScope) ([]catalogRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, user_id, organization_id, created_at FROM "+table+
			" WHERE "+scopeClause+" ORDER BY name",
		scope.UserID, scope.OrganizationID,
	)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list " + table, Err: err}
	}
	defer rows.Close()

	var out []catalogRow
	for rows.Next() {
		var r catalogRow
		if err := rows.Scan(&r.id, &r.name, &r.userID, &r.orgID, &r.createdAt); err != nil {
			return nil, &domain.ErrStorage{Op: "scan " + table, Err: err}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorage{Op: "list " + table, Err: err}
	}
	return out, nil
}

func (s *Store) deleteCatalogRow(ctx context.Context, table, resource string, scope domain.CallerScope, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE id = ? AND "+scopeClause,
		id, scope.UserID, scope.OrganizationID,
	)
	if err != nil {
		return &domain.ErrStorage{Op: "delete " + table, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.ErrStorage{Op: "delete " + table, Err: err}
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return nil
}

// CreateCategory inserts a category.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	return s.createCatalogRow(ctx, "categories", c.ID, c.Name, c.UserID, c.OrganizationID, fmtTime(c.CreatedAt))
}

// ListCategories returns the caller's categories sorted by name.
func (s *Store) ListCategories(ctx context.Context, scope domain.CallerScope) ([]domain.Category, error) {
	rows, err := s.listCatalogRows(ctx, "categories", scope)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Category, len(rows))
	for i, r := range rows {
		out[i] = domain.Category{ID: r.id, Name: r.name, UserID: r.userID, OrganizationID: r.orgID, CreatedAt: parseTime(r.createdAt)}
	}
	return out, nil
}

// DeleteCategory removes a category within the caller's scope.
func (s *Store) DeleteCategory(ctx context.Context, scope domain.CallerScope, id string) error {
	return s.deleteCatalogRow(ctx, "categories", "category", scope, id)
}

// CreatePayee inserts a payee.
func (s *Store) CreatePayee(ctx context.Context, p *domain.Payee) error {
	return s.createCatalogRow(ctx, "payees", p.ID, p.Name, p.UserID, p.OrganizationID, fmtTime(p.CreatedAt))
}

// ListPayees returns the caller's payees sorted by name.
func (s *Store) ListPayees(ctx context.Context, scope domain.CallerScope) ([]domain.Payee, error) {
	rows, err := s.listCatalogRows(ctx, "payees", scope)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Payee, len(rows))
	for i, r := range rows {
		out[i] = domain.Payee{ID: r.id, Name: r.name, UserID: r.userID, OrganizationID: r.orgID, CreatedAt: parseTime(r.createdAt)}
	}
	return out, nil
}

// DeletePayee removes a payee within the caller's scope.
func (s *Store) DeletePayee(ctx context.Context, scope domain.CallerScope, id string) error {
	return s.deleteCatalogRow(ctx, "payees", "payee", scope, id)
}

// CreateTag inserts a tag.
func (s *Store) CreateTag(ctx context.Context, t *domain.Tag) error {
	return s.createCatalogRow(ctx, "tags", t.ID, t.Name, t.UserID, t.OrganizationID, fmtTime(t.CreatedAt))
}

// ListTags returns the caller's tags sorted by name.
func (s *Store) ListTags(ctx context.Context, scope domain.CallerScope) ([]domain.Tag, error) {
	rows, err := s.listCatalogRows(ctx, "tags", scope)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Tag, len(rows))
	for i, r := range rows {
		out[i] = domain.Tag{ID: r.id, Name: r.name, UserID: r.userID, OrganizationID: r.orgID, CreatedAt: parseTime(r.createdAt)}
	}
	return out, nil
}

// DeleteTag removes a tag within the caller's scope.
func (s *Store) DeleteTag(ctx context.Context, scope domain.CallerScope, id string) error {
	return s.deleteCatalogRow(ctx, "tags", "tag", scope, id)
}
