package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"leadlens/api/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	rs, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return rs, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	rs, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer rs.Close()

	ctx := context.Background()
	if err := rs.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	ctx := context.Background()
	tokenHash := "test-token-hash"
	profile := store.UserProfile{
		ID:          "user-123",
		TenantID:    "tenant-1",
		DisplayName: "Ada",
		Role:        "member",
	}
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := rs.SaveRefreshSession(ctx, tokenHash, profile, expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	got, err := rs.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}

	if got.ID != profile.ID {
		t.Errorf("expected user ID %s, got %s", profile.ID, got.ID)
	}
	if got.TenantID != profile.TenantID {
		t.Errorf("expected tenant ID %s, got %s", profile.TenantID, got.TenantID)
	}
	if got.Role != "member" {
		t.Errorf("expected role member, got %s", got.Role)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	ctx := context.Background()
	expiresAt := time.Now().Add(1 * time.Millisecond)
	if err := rs.SaveRefreshSession(ctx, "expired-token", store.UserProfile{ID: "user-456"}, expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	s.FastForward(2 * time.Millisecond)

	if _, err := rs.LookupRefreshSession(ctx, "expired-token"); err == nil {
		t.Error("expected error for expired token, got nil")
	}
}

func TestLookupNonExistentSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	if _, err := rs.LookupRefreshSession(context.Background(), "non-existent-token"); err == nil {
		t.Error("expected error for non-existent token, got nil")
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := rs.SaveRefreshSession(ctx, "token-to-revoke", store.UserProfile{ID: "user-789"}, expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if _, err := rs.LookupRefreshSession(ctx, "token-to-revoke"); err != nil {
		t.Fatalf("Lookup before revoke failed: %v", err)
	}

	if err := rs.RevokeRefreshSession(ctx, "token-to-revoke"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}

	if _, err := rs.LookupRefreshSession(ctx, "token-to-revoke"); err == nil {
		t.Error("expected error for revoked token, got nil")
	}
}

func TestRevokeAccessToken(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	ctx := context.Background()

	revoked, err := rs.IsAccessTokenRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsAccessTokenRevoked failed: %v", err)
	}
	if revoked {
		t.Error("expected jti-1 not revoked before revocation")
	}

	if err := rs.RevokeAccessToken(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeAccessToken failed: %v", err)
	}

	revoked, err = rs.IsAccessTokenRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsAccessTokenRevoked after revoke failed: %v", err)
	}
	if !revoked {
		t.Error("expected jti-1 revoked after revocation")
	}

	// Revocation entries expire with the token itself.
	s.FastForward(2 * time.Hour)
	revoked, err = rs.IsAccessTokenRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsAccessTokenRevoked after expiry failed: %v", err)
	}
	if revoked {
		t.Error("expected revocation entry to expire with the token")
	}
}

func TestRevokeExpiredAccessTokenIsNoop(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	if err := rs.RevokeAccessToken(context.Background(), "jti-old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("RevokeAccessToken for expired token failed: %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	rs, s := setupTestRedis(t)
	defer rs.Close()
	defer s.Close()

	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := rs.SaveRefreshSession(ctx, "token-1", store.UserProfile{ID: "user-1", TenantID: "t1"}, expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession 1 failed: %v", err)
	}
	if err := rs.SaveRefreshSession(ctx, "token-2", store.UserProfile{ID: "user-2", TenantID: "t2"}, expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession 2 failed: %v", err)
	}

	if err := rs.RevokeRefreshSession(ctx, "token-1"); err != nil {
		t.Fatalf("Revoke token-1 failed: %v", err)
	}

	if _, err := rs.LookupRefreshSession(ctx, "token-1"); err == nil {
		t.Error("expected error for revoked token-1, got nil")
	}

	got, err := rs.LookupRefreshSession(ctx, "token-2")
	if err != nil {
		t.Fatalf("Lookup token-2 after revoke failed: %v", err)
	}
	if got.ID != "user-2" || got.TenantID != "t2" {
		t.Errorf("expected user-2/t2 after revoke, got %s/%s", got.ID, got.TenantID)
	}
}
