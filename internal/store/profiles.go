package store

import (
	"context"
	"fmt"
	"time"
)

func (s *PostgresStore) GetProfileByID(ctx context.Context, userID string) (UserProfile, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, display_name, email, password_hash, role, is_email_verified, created_at, updated_at
		FROM %s
		WHERE id=$1
	`, s.tables.UserProfiles)
	var profile UserProfile
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID,
		&profile.TenantID,
		&profile.DisplayName,
		&profile.Email,
		&profile.PasswordHash,
		&profile.Role,
		&profile.IsEmailVerified,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return UserProfile{}, err
	}
	if profile.Role == "" {
		profile.Role = "viewer"
	}
	return profile, nil
}

func (s *PostgresStore) GetProfileByEmail(ctx context.Context, email string) (UserProfile, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, display_name, email, password_hash, role, is_email_verified, created_at, updated_at
		FROM %s
		WHERE email=$1
	`, s.tables.UserProfiles)
	var profile UserProfile
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&profile.ID,
		&profile.TenantID,
		&profile.DisplayName,
		&profile.Email,
		&profile.PasswordHash,
		&profile.Role,
		&profile.IsEmailVerified,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return UserProfile{}, err
	}
	return profile, nil
}

func (s *PostgresStore) CreateProfile(ctx context.Context, profile UserProfile) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, tenant_id, display_name, email, password_hash, role, is_email_verified, verification_token, verification_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.tables.UserProfiles)
	_, err := s.db.ExecContext(ctx, query,
		profile.ID,
		profile.TenantID,
		profile.DisplayName,
		profile.Email,
		profile.PasswordHash,
		profile.Role,
		profile.IsEmailVerified,
		profile.VerificationToken,
		profile.VerificationExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET verification_token=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, s.tables.UserProfiles)
	if _, err := s.db.ExecContext(ctx, query, userID, token, expiresAt); err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyEmail(ctx context.Context, token string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET is_email_verified=TRUE, verification_token='', updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, s.tables.UserProfiles)
	result, err := s.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("verification token not found or expired")
	}
	return nil
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET password_hash=$2, updated_at=NOW() WHERE id=$1`, s.tables.UserProfiles)
	if _, err := s.db.ExecContext(ctx, query, userID, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, s.tables.PasswordResets)
	if _, err := s.db.ExecContext(ctx, query, token, userID, expiresAt); err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	query := fmt.Sprintf(`
		SELECT user_id FROM %s
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, s.tables.PasswordResets)
	var userID string
	if err := s.db.QueryRowContext(ctx, query, token).Scan(&userID); err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	query := fmt.Sprintf(`UPDATE %s SET used_at=NOW() WHERE token=$1`, s.tables.PasswordResets)
	if _, err := s.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

func (s *PostgresStore) EnsureTenant(ctx context.Context, id, name string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, s.tables.Tenants)
	if _, err := s.db.ExecContext(ctx, query, id, name); err != nil {
		return fmt.Errorf("ensure tenant: %w", err)
	}
	return nil
}
