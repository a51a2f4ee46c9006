package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

func (s *PostgresStore) ListLeads(ctx context.Context, tenantID string, filter LeadFilter) ([]Lead, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, company_name, contact_person, contact_email, role, status, tier, created_at, updated_at
		FROM %s
		WHERE tenant_id=$1
	`, s.tables.Leads)
	args := []any{tenantID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if filter.Tier != "" {
		args = append(args, filter.Tier)
		query += fmt.Sprintf(" AND tier=$%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		var item Lead
		if err := rows.Scan(
			&item.ID,
			&item.TenantID,
			&item.CompanyName,
			&item.ContactPerson,
			&item.ContactEmail,
			&item.Role,
			&item.Status,
			&item.Tier,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, tenantID, leadID string) (Lead, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, company_name, contact_person, contact_email, role, status, tier, created_at, updated_at
		FROM %s
		WHERE tenant_id=$1 AND id=$2
	`, s.tables.Leads)
	var item Lead
	err := s.db.QueryRowContext(ctx, query, tenantID, leadID).Scan(
		&item.ID,
		&item.TenantID,
		&item.CompanyName,
		&item.ContactPerson,
		&item.ContactEmail,
		&item.Role,
		&item.Status,
		&item.Tier,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	return item, nil
}

// InsertLead skips duplicates by (tenant, company, contact person) and returns
// whether a row was created.
func (s *PostgresStore) InsertLead(ctx context.Context, lead Lead) (bool, error) {
	if strings.TrimSpace(lead.ContactPerson) != "" {
		existsQuery := fmt.Sprintf(`
			SELECT EXISTS(SELECT 1 FROM %s WHERE tenant_id=$1 AND company_name=$2 AND contact_person=$3)
		`, s.tables.Leads)
		var exists bool
		if err := s.db.QueryRowContext(ctx, existsQuery, lead.TenantID, lead.CompanyName, lead.ContactPerson).Scan(&exists); err != nil {
			return false, fmt.Errorf("check lead exists: %w", err)
		}
		if exists {
			return false, nil
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, tenant_id, company_name, contact_person, contact_email, role, status, tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.tables.Leads)
	_, err := s.db.ExecContext(ctx, query,
		lead.ID,
		lead.TenantID,
		lead.CompanyName,
		lead.ContactPerson,
		lead.ContactEmail,
		lead.Role,
		lead.Status,
		lead.Tier,
	)
	if err != nil {
		return false, fmt.Errorf("insert lead: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, tenantID, leadID, status string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2
	`, s.tables.Leads)
	result, err := s.db.ExecContext(ctx, query, tenantID, leadID, status)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lead status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateLeadTier(ctx context.Context, tenantID, leadID, tier string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET tier=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2
	`, s.tables.Leads)
	result, err := s.db.ExecContext(ctx, query, tenantID, leadID, tier)
	if err != nil {
		return fmt.Errorf("update lead tier: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lead tier rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, tenantID, leadID string) ([]Comment, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, lead_id, author_id, author_name, text, created_at
		FROM %s
		WHERE tenant_id=$1 AND lead_id=$2
		ORDER BY created_at ASC
	`, s.tables.Comments)
	rows, err := s.db.QueryContext(ctx, query, tenantID, leadID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.TenantID, &item.LeadID, &item.AuthorID, &item.AuthorName, &item.Text, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// ListCommentsForLeads loads comments for a set of leads in one round trip,
// keyed by lead id, ordered by creation time within each lead.
func (s *PostgresStore) ListCommentsForLeads(ctx context.Context, tenantID string, leadIDs []string) (map[string][]Comment, error) {
	result := make(map[string][]Comment, len(leadIDs))
	if len(leadIDs) == 0 {
		return result, nil
	}
	placeholders, args := inList(leadIDs, 2)
	query := fmt.Sprintf(`
		SELECT id, tenant_id, lead_id, author_id, author_name, text, created_at
		FROM %s
		WHERE tenant_id=$1 AND lead_id IN (%s)
		ORDER BY created_at ASC
	`, s.tables.Comments, placeholders)
	rows, err := s.db.QueryContext(ctx, query, append([]any{tenantID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list comments for leads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.TenantID, &item.LeadID, &item.AuthorID, &item.AuthorName, &item.Text, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		result[item.LeadID] = append(result[item.LeadID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, tenant_id, lead_id, author_id, author_name, text)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.tables.Comments)
	if _, err := s.db.ExecContext(ctx, query, comment.ID, comment.TenantID, comment.LeadID, comment.AuthorID, comment.AuthorName, comment.Text); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateComment(ctx context.Context, tenantID, commentID, authorID, text string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET text=$4 WHERE tenant_id=$1 AND id=$2 AND author_id=$3
	`, s.tables.Comments)
	result, err := s.db.ExecContext(ctx, query, tenantID, commentID, authorID, text)
	if err != nil {
		return false, fmt.Errorf("update comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, tenantID, commentID, authorID string) (bool, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s WHERE tenant_id=$1 AND id=$2 AND author_id=$3
	`, s.tables.Comments)
	result, err := s.db.ExecContext(ctx, query, tenantID, commentID, authorID)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment rows: %w", err)
	}
	return affected > 0, nil
}

// GetOrCreateCompany looks a company up by (tenant, name) and creates it when
// absent, returning the company id.
func (s *PostgresStore) GetOrCreateCompany(ctx context.Context, tenantID, name, location, industry string) (string, error) {
	findQuery := fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id=$1 AND name=$2 LIMIT 1`, s.tables.Companies)
	var id string
	err := s.db.QueryRowContext(ctx, findQuery, tenantID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup company: %w", err)
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, tenant_id, name, location, industry)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, s.tables.Companies)
	if err := s.db.QueryRowContext(ctx, insertQuery, newRowID(), tenantID, name, location, industry).Scan(&id); err != nil {
		return "", fmt.Errorf("insert company: %w", err)
	}
	return id, nil
}

// inList builds $n placeholders starting at `start` plus the matching args.
func inList(values []string, start int) (string, []any) {
	placeholders := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for i, value := range values {
		placeholders = append(placeholders, fmt.Sprintf("$%d", start+i))
		args = append(args, value)
	}
	return strings.Join(placeholders, ", "), args
}
