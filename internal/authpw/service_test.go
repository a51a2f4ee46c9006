package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"leadlens/api/internal/store"
)

type fakeProfileStore struct {
	profiles map[string]store.UserProfile
	resets   map[string]string
	tenants  map[string]string
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{
		profiles: make(map[string]store.UserProfile),
		resets:   make(map[string]string),
		tenants:  make(map[string]string),
	}
}

func (f *fakeProfileStore) GetProfileByEmail(ctx context.Context, email string) (store.UserProfile, error) {
	for _, p := range f.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return store.UserProfile{}, errors.New("not found")
}

func (f *fakeProfileStore) GetProfileByID(ctx context.Context, id string) (store.UserProfile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return store.UserProfile{}, errors.New("not found")
	}
	return p, nil
}

func (f *fakeProfileStore) CreateProfile(ctx context.Context, profile store.UserProfile) error {
	f.profiles[profile.ID] = profile
	return nil
}

func (f *fakeProfileStore) UpdateVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	p := f.profiles[userID]
	p.VerificationToken = token
	f.profiles[userID] = p
	return nil
}

func (f *fakeProfileStore) VerifyEmail(ctx context.Context, token string) error {
	for id, p := range f.profiles {
		if p.VerificationToken == token && token != "" {
			p.IsEmailVerified = true
			p.VerificationToken = ""
			f.profiles[id] = p
			return nil
		}
	}
	return errors.New("token not found")
}

func (f *fakeProfileStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	p := f.profiles[userID]
	p.PasswordHash = passwordHash
	f.profiles[userID] = p
	return nil
}

func (f *fakeProfileStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	f.resets[token] = userID
	return nil
}

func (f *fakeProfileStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	userID, ok := f.resets[token]
	if !ok {
		return "", errors.New("not found")
	}
	return userID, nil
}

func (f *fakeProfileStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	delete(f.resets, token)
	return nil
}

func (f *fakeProfileStore) EnsureTenant(ctx context.Context, id, name string) error {
	f.tenants[id] = name
	return nil
}

func TestSignUpCreatesTenantAndProfile(t *testing.T) {
	fs := newFakeProfileStore()
	s := NewService(fs)

	resp, err := s.SignUp(context.Background(), SignUpRequest{
		Email:       "ada@example.com",
		Password:    "correct horse",
		DisplayName: "Ada",
		TenantName:  "Ada's Team",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if !resp.RequiresEmailVerify {
		t.Error("expected email verification to be required")
	}
	if resp.TenantID == "" {
		t.Error("expected a tenant to be created")
	}
	if fs.tenants[resp.TenantID] != "Ada's Team" {
		t.Errorf("expected tenant name recorded, got %q", fs.tenants[resp.TenantID])
	}

	profile := fs.profiles[resp.UserID]
	if profile.Role != "admin" {
		t.Errorf("expected first tenant user to be admin, got %s", profile.Role)
	}
	if profile.PasswordHash == "correct horse" {
		t.Error("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte("correct horse")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestSignUpJoinsExistingTenantAsMember(t *testing.T) {
	fs := newFakeProfileStore()
	s := NewService(fs)

	resp, err := s.SignUp(context.Background(), SignUpRequest{
		Email:       "grace@example.com",
		Password:    "hopper1234",
		DisplayName: "Grace",
		TenantID:    "tenant-existing",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if resp.TenantID != "tenant-existing" {
		t.Errorf("expected existing tenant id, got %s", resp.TenantID)
	}
	if fs.profiles[resp.UserID].Role != "member" {
		t.Errorf("expected member role when joining, got %s", fs.profiles[resp.UserID].Role)
	}
}

func TestSignUpValidation(t *testing.T) {
	s := NewService(newFakeProfileStore())

	if _, err := s.SignUp(context.Background(), SignUpRequest{Email: "a@b.c", Password: "x"}); err == nil {
		t.Error("expected error for missing display name")
	}
	if _, err := s.SignUp(context.Background(), SignUpRequest{Email: "a@b.c", Password: "short", DisplayName: "A"}); err == nil {
		t.Error("expected error for short password")
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	fs := newFakeProfileStore()
	s := NewService(fs)

	req := SignUpRequest{Email: "ada@example.com", Password: "longenough", DisplayName: "Ada"}
	if _, err := s.SignUp(context.Background(), req); err != nil {
		t.Fatalf("first SignUp failed: %v", err)
	}
	if _, err := s.SignUp(context.Background(), req); err == nil {
		t.Error("expected error for duplicate email")
	}
}

func TestSignInRequiresVerification(t *testing.T) {
	fs := newFakeProfileStore()
	s := NewService(fs)

	resp, err := s.SignUp(context.Background(), SignUpRequest{
		Email: "ada@example.com", Password: "longenough", DisplayName: "Ada",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	signIn, err := s.SignIn(context.Background(), SignInRequest{Email: "ada@example.com", Password: "longenough"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if !signIn.RequiresVerify {
		t.Error("expected RequiresVerify before email verification")
	}

	if err := s.VerifyEmail(context.Background(), resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	signIn, err = s.SignIn(context.Background(), SignInRequest{Email: "ada@example.com", Password: "longenough"})
	if err != nil {
		t.Fatalf("SignIn after verify failed: %v", err)
	}
	if signIn.RequiresVerify {
		t.Error("expected verified sign-in")
	}
}

func TestSignInWrongPassword(t *testing.T) {
	fs := newFakeProfileStore()
	s := NewService(fs)

	if _, err := s.SignUp(context.Background(), SignUpRequest{
		Email: "ada@example.com", Password: "longenough", DisplayName: "Ada",
	}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	if _, err := s.SignIn(context.Background(), SignInRequest{Email: "ada@example.com", Password: "wrong password"}); err == nil {
		t.Error("expected error for wrong password")
	}
	if _, err := s.SignIn(context.Background(), SignInRequest{Email: "ghost@example.com", Password: "whatever123"}); err == nil {
		t.Error("expected error for unknown email")
	}
}

func TestVerifyEmailInvalidToken(t *testing.T) {
	s := NewService(newFakeProfileStore())

	if err := s.VerifyEmail(context.Background(), ""); err == nil {
		t.Error("expected error for empty token")
	}
	if err := s.VerifyEmail(context.Background(), "bogus"); err == nil {
		t.Error("expected error for unknown token")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	fs := newFakeProfileStore()
	s := NewService(fs)

	signUp, err := s.SignUp(context.Background(), SignUpRequest{
		Email: "ada@example.com", Password: "longenough", DisplayName: "Ada",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := s.VerifyEmail(context.Background(), signUp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	token, err := s.RequestPasswordReset(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a reset token for a known email")
	}

	if err := s.ResetPassword(context.Background(), ResetPasswordRequest{Token: token, NewPassword: "brandnewpass"}); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if _, err := s.SignIn(context.Background(), SignInRequest{Email: "ada@example.com", Password: "brandnewpass"}); err != nil {
		t.Errorf("SignIn with new password failed: %v", err)
	}
	if _, err := s.SignIn(context.Background(), SignInRequest{Email: "ada@example.com", Password: "longenough"}); err == nil {
		t.Error("expected old password to be rejected")
	}

	// Token is single use.
	if err := s.ResetPassword(context.Background(), ResetPasswordRequest{Token: token, NewPassword: "anotherpass1"}); err == nil {
		t.Error("expected error reusing a reset token")
	}
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	s := NewService(newFakeProfileStore())

	token, err := s.RequestPasswordReset(context.Background(), "ghost@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if token != "" {
		t.Error("expected empty token for unknown email")
	}
}
