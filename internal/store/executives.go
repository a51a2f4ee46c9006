package store

import (
	"context"
	"fmt"
)

// InsertExecutive records a discovered person at a company. Duplicate
// profile URLs within a tenant are skipped.
func (s *PostgresStore) InsertExecutive(ctx context.Context, exec Executive) error {
	if exec.ID == "" {
		exec.ID = newRowID()
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, tenant_id, company_id, name, role, profile_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, profile_url) DO NOTHING
	`, s.tables.Executives)
	if _, err := s.db.ExecContext(ctx, query,
		exec.ID,
		exec.TenantID,
		exec.CompanyID,
		exec.Name,
		exec.Role,
		exec.ProfileURL,
	); err != nil {
		return fmt.Errorf("insert executive: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListExecutives(ctx context.Context, tenantID, companyID string) ([]Executive, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, company_id, name, role, profile_url, created_at
		FROM %s
		WHERE tenant_id=$1 AND company_id=$2
		ORDER BY created_at DESC
	`, s.tables.Executives)
	rows, err := s.db.QueryContext(ctx, query, tenantID, companyID)
	if err != nil {
		return nil, fmt.Errorf("list executives: %w", err)
	}
	defer rows.Close()

	items := make([]Executive, 0)
	for rows.Next() {
		var item Executive
		if err := rows.Scan(&item.ID, &item.TenantID, &item.CompanyID, &item.Name, &item.Role, &item.ProfileURL, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan executive: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executives: %w", err)
	}
	return items, nil
}
