package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) ListActivityLogs(ctx context.Context, tenantID string, limit int) ([]ActivityLogEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, lead_id, user_id, action_type, description, created_at
		FROM %s
		WHERE tenant_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, s.tables.ActivityLogs)
	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	defer rows.Close()

	items := make([]ActivityLogEntry, 0, limit)
	for rows.Next() {
		var item ActivityLogEntry
		if err := rows.Scan(&item.ID, &item.TenantID, &item.LeadID, &item.UserID, &item.ActionType, &item.Description, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity logs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertActivityLog(ctx context.Context, entry ActivityLogEntry) (ActivityLogEntry, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, tenant_id, lead_id, user_id, action_type, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, s.tables.ActivityLogs)
	if entry.ID == "" {
		entry.ID = newRowID()
	}
	err := s.db.QueryRowContext(ctx, query,
		entry.ID,
		entry.TenantID,
		entry.LeadID,
		entry.UserID,
		entry.ActionType,
		entry.Description,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return ActivityLogEntry{}, fmt.Errorf("insert activity log: %w", err)
	}
	return entry, nil
}

// GetUserNames resolves display names for a set of user ids in one round trip.
func (s *PostgresStore) GetUserNames(ctx context.Context, tenantID string, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}
	placeholders, args := inList(userIDs, 2)
	query := fmt.Sprintf(`
		SELECT id, display_name FROM %s
		WHERE tenant_id=$1 AND id IN (%s)
	`, s.tables.UserProfiles, placeholders)
	rows, err := s.db.QueryContext(ctx, query, append([]any{tenantID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("get user names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan user name: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user names: %w", err)
	}
	return names, nil
}

// GetLeadRefs resolves {company, contact} pairs for a set of lead ids in one round trip.
func (s *PostgresStore) GetLeadRefs(ctx context.Context, tenantID string, leadIDs []string) (map[string]LeadRef, error) {
	refs := make(map[string]LeadRef, len(leadIDs))
	if len(leadIDs) == 0 {
		return refs, nil
	}
	placeholders, args := inList(leadIDs, 2)
	query := fmt.Sprintf(`
		SELECT id, company_name, contact_person FROM %s
		WHERE tenant_id=$1 AND id IN (%s)
	`, s.tables.Leads, placeholders)
	rows, err := s.db.QueryContext(ctx, query, append([]any{tenantID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("get lead refs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var ref LeadRef
		if err := rows.Scan(&id, &ref.CompanyName, &ref.ContactPerson); err != nil {
			return nil, fmt.Errorf("scan lead ref: %w", err)
		}
		refs[id] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lead refs: %w", err)
	}
	return refs, nil
}

func (s *PostgresStore) GetUserName(ctx context.Context, tenantID, userID string) (string, error) {
	query := fmt.Sprintf(`SELECT display_name FROM %s WHERE tenant_id=$1 AND id=$2`, s.tables.UserProfiles)
	var name string
	if err := s.db.QueryRowContext(ctx, query, tenantID, userID).Scan(&name); err != nil {
		return "", err
	}
	return name, nil
}

func (s *PostgresStore) GetLeadRef(ctx context.Context, tenantID, leadID string) (LeadRef, error) {
	query := fmt.Sprintf(`SELECT company_name, contact_person FROM %s WHERE tenant_id=$1 AND id=$2`, s.tables.Leads)
	var ref LeadRef
	if err := s.db.QueryRowContext(ctx, query, tenantID, leadID).Scan(&ref.CompanyName, &ref.ContactPerson); err != nil {
		return LeadRef{}, err
	}
	return ref, nil
}
