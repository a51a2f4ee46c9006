package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *PostgresStore) GetPreferences(ctx context.Context, tenantID string) (TenantPreferences, error) {
	query := fmt.Sprintf(`
		SELECT tenant_id, target_industry, company_size, geographic_region, target_roles,
			revenue_range, keywords, notes, linkedin_locations, linkedin_positions,
			linkedin_experience_operator, linkedin_experience_years, updated_at
		FROM %s
		WHERE tenant_id=$1
	`, s.tables.TenantPreferences)
	var prefs TenantPreferences
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(
		&prefs.TenantID,
		&prefs.TargetIndustry,
		&prefs.CompanySize,
		&prefs.GeographicRegion,
		&prefs.TargetRoles,
		&prefs.RevenueRange,
		&prefs.Keywords,
		&prefs.Notes,
		&prefs.LinkedInLocations,
		&prefs.LinkedInPositions,
		&prefs.LinkedInExperienceOperator,
		&prefs.LinkedInExperienceYears,
		&prefs.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return TenantPreferences{TenantID: tenantID, LinkedInExperienceOperator: "="}, nil
	}
	if err != nil {
		return TenantPreferences{}, fmt.Errorf("get preferences: %w", err)
	}
	return prefs, nil
}

func (s *PostgresStore) UpsertPreferences(ctx context.Context, prefs TenantPreferences) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (tenant_id, target_industry, company_size, geographic_region, target_roles,
			revenue_range, keywords, notes, linkedin_locations, linkedin_positions,
			linkedin_experience_operator, linkedin_experience_years, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			target_industry=EXCLUDED.target_industry,
			company_size=EXCLUDED.company_size,
			geographic_region=EXCLUDED.geographic_region,
			target_roles=EXCLUDED.target_roles,
			revenue_range=EXCLUDED.revenue_range,
			keywords=EXCLUDED.keywords,
			notes=EXCLUDED.notes,
			linkedin_locations=EXCLUDED.linkedin_locations,
			linkedin_positions=EXCLUDED.linkedin_positions,
			linkedin_experience_operator=EXCLUDED.linkedin_experience_operator,
			linkedin_experience_years=EXCLUDED.linkedin_experience_years,
			updated_at=NOW()
	`, s.tables.TenantPreferences)
	_, err := s.db.ExecContext(ctx, query,
		prefs.TenantID,
		prefs.TargetIndustry,
		prefs.CompanySize,
		prefs.GeographicRegion,
		prefs.TargetRoles,
		prefs.RevenueRange,
		prefs.Keywords,
		prefs.Notes,
		prefs.LinkedInLocations,
		prefs.LinkedInPositions,
		prefs.LinkedInExperienceOperator,
		prefs.LinkedInExperienceYears,
	)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}
