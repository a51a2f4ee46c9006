package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"leadlens/api/internal/store"
)

// PgFTS implements lead search using PostgreSQL full-text search as a
// fallback when Meilisearch is unavailable.
type PgFTS struct {
	db     *sql.DB
	tables store.Tables
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB, tables store.Tables) *PgFTS {
	return &PgFTS{db: db, tables: tables}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery against the leads fts column with
// ts_headline snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $2)"
	where := "l.tenant_id = $1 AND l.fts @@ " + tsQuery
	args := []any{q.TenantID, q.Text}
	if q.Status != "" {
		args = append(args, q.Status)
		where += fmt.Sprintf(" AND l.status = $%d", len(args))
	}
	if q.Tier != "" {
		args = append(args, q.Tier)
		where += fmt.Sprintf(" AND l.tier = $%d", len(args))
	}

	countSQL := fmt.Sprintf(`SELECT count(*) FROM %s l WHERE %s`, p.tables.Leads, where)

	dataSQL := fmt.Sprintf(`
		SELECT l.id, l.company_name, l.contact_person, l.contact_email, l.role, l.status, l.tier,
			ts_headline('english', l.company_name || ' ' || l.contact_person, %s, 'MaxFragments=1,MaxWords=30') AS snippet
		FROM %s l
		WHERE %s
		ORDER BY ts_rank(l.fts, %s) DESC
		LIMIT %d OFFSET %d`,
		tsQuery, p.tables.Leads, where, tsQuery, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.CompanyName, &r.ContactPerson, &r.ContactEmail, &r.Role, &r.Status, &r.Tier, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every lead for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]LeadRecord, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, tenant_id, company_name, contact_person, contact_email, role, status, tier
		FROM %s
	`, p.tables.Leads))
	if err != nil {
		return nil, fmt.Errorf("load leads: %w", err)
	}
	defer rows.Close()

	records := make([]LeadRecord, 0)
	for rows.Next() {
		var r LeadRecord
		if err := rows.Scan(&r.ID, &r.TenantID, &r.CompanyName, &r.ContactPerson, &r.ContactEmail, &r.Role, &r.Status, &r.Tier); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return records, nil
}
