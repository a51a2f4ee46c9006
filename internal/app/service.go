package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"leadlens/api/internal/auth"
	"leadlens/api/internal/authpw"
	"leadlens/api/internal/config"
	"leadlens/api/internal/email"
	"leadlens/api/internal/export"
	"leadlens/api/internal/feed"
	"leadlens/api/internal/feedback"
	"leadlens/api/internal/linkedin"
	"leadlens/api/internal/llm"
	"leadlens/api/internal/rbac"
	"leadlens/api/internal/search"
	"leadlens/api/internal/session"
	"leadlens/api/internal/store"
	"leadlens/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	TenantID     string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

var allowedLeadStatuses = map[string]struct{}{
	"not_contacted": {},
	"contacted":     {},
	"responded":     {},
	"meeting":       {},
	"won":           {},
	"lost":          {},
}

var allowedLeadTiers = map[string]struct{}{
	"good":   {},
	"medium": {},
	"bad":    {},
}

var allowedExperienceOperators = map[string]struct{}{
	"":   {},
	"=":  {},
	"<":  {},
	">":  {},
	"<=": {},
	">=": {},
}

type dataStore interface {
	GetProfileByID(ctx context.Context, userID string) (store.UserProfile, error)
	ListLeads(ctx context.Context, tenantID string, filter store.LeadFilter) ([]store.Lead, error)
	GetLead(ctx context.Context, tenantID, leadID string) (store.Lead, error)
	InsertLead(ctx context.Context, lead store.Lead) (bool, error)
	UpdateLeadStatus(ctx context.Context, tenantID, leadID, status string) error
	UpdateLeadTier(ctx context.Context, tenantID, leadID, tier string) error
	ListComments(ctx context.Context, tenantID, leadID string) ([]store.Comment, error)
	InsertComment(ctx context.Context, comment store.Comment) error
	UpdateComment(ctx context.Context, tenantID, commentID, authorID, text string) (bool, error)
	DeleteComment(ctx context.Context, tenantID, commentID, authorID string) (bool, error)
	GetOrCreateCompany(ctx context.Context, tenantID, name, location, industry string) (string, error)
	InsertExecutive(ctx context.Context, exec store.Executive) error
	ListExecutives(ctx context.Context, tenantID, companyID string) ([]store.Executive, error)
	ListActivityLogs(ctx context.Context, tenantID string, limit int) ([]store.ActivityLogEntry, error)
	InsertActivityLog(ctx context.Context, entry store.ActivityLogEntry) (store.ActivityLogEntry, error)
	GetUserNames(ctx context.Context, tenantID string, userIDs []string) (map[string]string, error)
	GetLeadRefs(ctx context.Context, tenantID string, leadIDs []string) (map[string]store.LeadRef, error)
	GetUserName(ctx context.Context, tenantID, userID string) (string, error)
	GetLeadRef(ctx context.Context, tenantID, leadID string) (store.LeadRef, error)
	GetPreferences(ctx context.Context, tenantID string) (store.TenantPreferences, error)
	UpsertPreferences(ctx context.Context, prefs store.TenantPreferences) error
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, profile store.UserProfile, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.UserProfile, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type activityBus interface {
	Publish(ctx context.Context, entry store.ActivityLogEntry) error
	Subscribe(ctx context.Context, tenantID string) (<-chan store.ActivityLogEntry, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	bootstrap *session.Bootstrap
	bus       activityBus
	search    *search.Service
	exporter  *export.Service
	artifacts *export.Storage
	authpw    *authpw.Service
	email     *email.Service
	feedback  *feedback.Service
	linkedin  *linkedin.Client
	llm       *llm.Client
}

// Deps bundles the optional collaborators; nil members disable the
// corresponding feature rather than failing startup.
type Deps struct {
	Sessions  sessionStore
	Bus       activityBus
	Search    *search.Service
	Exporter  *export.Service
	Artifacts *export.Storage
	AuthPW    *authpw.Service
	Email     *email.Service
	LinkedIn  *linkedin.Client
	LLM       *llm.Client
}

func New(cfg config.Config, dataStore dataStore, deps Deps) *Service {
	s := &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  deps.Sessions,
		bus:       deps.Bus,
		search:    deps.Search,
		exporter:  deps.Exporter,
		artifacts: deps.Artifacts,
		authpw:    deps.AuthPW,
		email:     deps.Email,
		linkedin:  deps.LinkedIn,
		llm:       deps.LLM,
	}
	s.bootstrap = session.NewBootstrap(
		session.ProfileFetcherFunc(func(ctx context.Context, userID string) (store.UserProfile, error) {
			return dataStore.GetProfileByID(ctx, userID)
		}),
		cfg.ProfileFetchTimeout,
	)
	s.feedback = feedback.NewService(feedbackSinkFunc(s.saveFeedback))
	return s
}

type feedbackSinkFunc func(ctx context.Context, sub feedback.Submission) error

func (f feedbackSinkFunc) SaveFeedback(ctx context.Context, sub feedback.Submission) error {
	return f(ctx, sub)
}

// Bootstrap runs startup work: a full search reindex when Meilisearch is
// reachable.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search != nil {
		s.search.ReindexAllFromPG(ctx)
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// SendVerificationEmail mails a verification link. Failures are logged,
// not surfaced; the dev token path covers unconfigured setups.
func (s *Service) SendVerificationEmail(to, name, token string) {
	if !s.SMTPConfigured() {
		return
	}
	link := fmt.Sprintf("%s/verify-email?token=%s", strings.TrimRight(s.cfg.AppBaseURL, "/"), token)
	if err := s.email.SendVerificationEmail(to, name, link); err != nil {
		log.Printf("app: send verification email to %s: %v", to, err)
	}
}

func (s *Service) SendPasswordResetEmail(to, token string) {
	if !s.SMTPConfigured() {
		return
	}
	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(s.cfg.AppBaseURL, "/"), token)
	if err := s.email.SendPasswordResetEmail(to, "", link); err != nil {
		log.Printf("app: send password reset email to %s: %v", to, err)
	}
}

// SignIn authenticates and issues a session. Unverified accounts are
// rejected before any token is minted.
func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (Session, error) {
	if s.authpw == nil {
		return Session{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication service not configured", nil)
	}

	resp, err := s.authpw.SignIn(ctx, authpw.SignInRequest{Email: emailAddr, Password: password})
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "AUTH_ERROR", "Invalid email or password", nil)
	}
	if resp.RequiresVerify {
		return Session{}, domainError(http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Verify your email address before signing in", nil)
	}

	profile, err := s.bootstrap.HandleSignIn(ctx, resp.Profile.ID)
	if err != nil {
		return Session{}, fmt.Errorf("load profile: %w", err)
	}

	return s.issueSession(ctx, profile)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	profile, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}

	// A refresh never refetches the profile; it only clears stale
	// loading state.
	s.bootstrap.HandleTokenRefresh(profile.ID)

	return s.issueSession(ctx, profile)
}

func (s *Service) issueSession(ctx context.Context, profile store.UserProfile) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:    profile.ID,
		Tenant: profile.TenantID,
		Name:   profile.DisplayName,
		Role:   profile.Role,
		JTI:    jti,
		Exp:    expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), profile, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       profile.ID,
		TenantID:     profile.TenantID,
		UserName:     profile.DisplayName,
		Role:         profile.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	// Serve from the bootstrap cache when warm; fall back to the store.
	profile, ok := s.bootstrap.CachedProfile(claims.Sub)
	if !ok {
		profile, err = s.bootstrap.HandleRestore(ctx, claims.Sub)
		if err != nil {
			return Session{}, err
		}
	}

	return Session{
		Token:     token,
		UserID:    profile.ID,
		TenantID:  profile.TenantID,
		UserName:  profile.DisplayName,
		Role:      profile.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// Logout tears the session down synchronously: refresh token gone,
// access token revoked, cached profile cleared.
func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) error {
	if sess.JTI != "" {
		_ = s.sessions.RevokeAccessToken(ctx, sess.JTI, sess.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	if sess.UserID != "" {
		s.bootstrap.HandleSignOut(sess.UserID)
	}
	return nil
}

// Leads

func (s *Service) ListLeads(ctx context.Context, sess Session, status, tier string) (map[string]any, error) {
	leads, err := s.store.ListLeads(ctx, sess.TenantID, store.LeadFilter{Status: status, Tier: tier})
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(leads))
	for _, lead := range leads {
		items = append(items, leadPayload(lead))
	}
	return map[string]any{"leads": items}, nil
}

func (s *Service) GetLead(ctx context.Context, sess Session, leadID string) (map[string]any, error) {
	lead, err := s.store.GetLead(ctx, sess.TenantID, leadID)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, sess.TenantID, leadID)
	if err != nil {
		return nil, err
	}

	payload := leadPayload(lead)
	commentItems := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		commentItems = append(commentItems, map[string]any{
			"id":         comment.ID,
			"authorId":   comment.AuthorID,
			"authorName": comment.AuthorName,
			"text":       comment.Text,
			"createdAt":  comment.CreatedAt,
			"timeAgo":    relative(comment.CreatedAt),
		})
	}
	payload["comments"] = commentItems
	return map[string]any{"lead": payload}, nil
}

func (s *Service) CreateLead(ctx context.Context, sess Session, companyName, contactPerson, contactEmail, role string) (map[string]any, error) {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "companyName is required", nil)
	}

	if _, err := s.store.GetOrCreateCompany(ctx, sess.TenantID, companyName, "", ""); err != nil {
		return nil, err
	}

	lead := store.Lead{
		ID:            util.NewID("lead"),
		TenantID:      sess.TenantID,
		CompanyName:   companyName,
		ContactPerson: strings.TrimSpace(contactPerson),
		ContactEmail:  strings.TrimSpace(contactEmail),
		Role:          strings.TrimSpace(role),
		Status:        "not_contacted",
	}
	created, err := s.store.InsertLead(ctx, lead)
	if err != nil {
		return nil, err
	}
	if !created {
		return map[string]any{"created": false, "reason": "duplicate"}, nil
	}

	s.indexLead(lead)
	s.recordActivity(ctx, sess, lead.ID, "lead_created", fmt.Sprintf("added %s as a lead", companyName))

	return map[string]any{"created": true, "lead": leadPayload(lead)}, nil
}

func (s *Service) UpdateLeadStatus(ctx context.Context, sess Session, leadID, status string) (map[string]any, error) {
	if _, ok := allowedLeadStatuses[status]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid lead status", nil)
	}
	if err := s.store.UpdateLeadStatus(ctx, sess.TenantID, leadID, status); err != nil {
		return nil, err
	}

	if lead, err := s.store.GetLead(ctx, sess.TenantID, leadID); err == nil {
		s.indexLead(lead)
		s.recordActivity(ctx, sess, leadID, "status_changed", fmt.Sprintf("moved %s to %s", lead.CompanyName, status))
	}
	return map[string]any{"ok": true, "status": status}, nil
}

func (s *Service) UpdateLeadTier(ctx context.Context, sess Session, leadID, tier string) (map[string]any, error) {
	if _, ok := allowedLeadTiers[tier]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "tier must be good, medium or bad", nil)
	}
	if err := s.store.UpdateLeadTier(ctx, sess.TenantID, leadID, tier); err != nil {
		return nil, err
	}

	if lead, err := s.store.GetLead(ctx, sess.TenantID, leadID); err == nil {
		s.indexLead(lead)
		s.recordActivity(ctx, sess, leadID, "tier_changed", fmt.Sprintf("rated %s as tier %s", lead.CompanyName, tier))
	}
	return map[string]any{"ok": true, "tier": tier}, nil
}

// Comments

func (s *Service) AddComment(ctx context.Context, sess Session, leadID, text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "comment text is required", nil)
	}

	lead, err := s.store.GetLead(ctx, sess.TenantID, leadID)
	if err != nil {
		return nil, err
	}

	comment := store.Comment{
		ID:         util.NewID("cmt"),
		TenantID:   sess.TenantID,
		LeadID:     leadID,
		AuthorID:   sess.UserID,
		AuthorName: sess.UserName,
		Text:       text,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, sess, leadID, "comment_added", fmt.Sprintf("commented on %s", lead.CompanyName))

	return map[string]any{"comment": map[string]any{
		"id":         comment.ID,
		"authorId":   comment.AuthorID,
		"authorName": comment.AuthorName,
		"text":       comment.Text,
	}}, nil
}

func (s *Service) EditComment(ctx context.Context, sess Session, leadID, commentID, text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "comment text is required", nil)
	}

	updated, err := s.store.UpdateComment(ctx, sess.TenantID, commentID, sess.UserID, text)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Only the author can edit a comment", nil)
	}

	if ref, err := s.store.GetLeadRef(ctx, sess.TenantID, leadID); err == nil {
		s.recordActivity(ctx, sess, leadID, "comment_edited", fmt.Sprintf("edited a comment on %s", ref.CompanyName))
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) RemoveComment(ctx context.Context, sess Session, leadID, commentID string) (map[string]any, error) {
	deleted, err := s.store.DeleteComment(ctx, sess.TenantID, commentID, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Only the author can delete a comment", nil)
	}

	if ref, err := s.store.GetLeadRef(ctx, sess.TenantID, leadID); err == nil {
		s.recordActivity(ctx, sess, leadID, "comment_deleted", fmt.Sprintf("deleted a comment on %s", ref.CompanyName))
	}
	return map[string]any{"ok": true}, nil
}

// Activity feed

// ActivityFeed returns the enriched feed for the session's tenant in two
// batched queries.
func (s *Service) ActivityFeed(ctx context.Context, sess Session, limit int) (map[string]any, error) {
	sync := feed.NewSynchronizer(s.store, s.bus, sess.TenantID, limit)
	entries, err := sync.Load(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, activityPayload(entry))
	}
	return map[string]any{"activities": items}, nil
}

// FeedSynchronizer builds a live synchronizer for one stream connection.
func (s *Service) FeedSynchronizer(sess Session, limit int) *feed.Synchronizer {
	return feed.NewSynchronizer(s.store, s.bus, sess.TenantID, limit)
}

func (s *Service) recordActivity(ctx context.Context, sess Session, leadID, actionType, description string) {
	entry, err := s.store.InsertActivityLog(ctx, store.ActivityLogEntry{
		TenantID:    sess.TenantID,
		LeadID:      leadID,
		UserID:      sess.UserID,
		ActionType:  actionType,
		Description: description,
	})
	if err != nil {
		log.Printf("app: record activity %s: %v", actionType, err)
		return
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, entry); err != nil {
			log.Printf("app: publish activity %s: %v", actionType, err)
		}
	}
}

func (s *Service) indexLead(lead store.Lead) {
	if s.search == nil {
		return
	}
	s.search.IndexLead(search.LeadRecord{
		ID:            lead.ID,
		TenantID:      lead.TenantID,
		CompanyName:   lead.CompanyName,
		ContactPerson: lead.ContactPerson,
		ContactEmail:  lead.ContactEmail,
		Role:          lead.Role,
		Status:        lead.Status,
		Tier:          lead.Tier,
	})
}

// Export

func (s *Service) ExportLeads(ctx context.Context, sess Session, format, status, tier string, asLink bool) (*export.Result, string, error) {
	result, err := s.exporter.Export(ctx, export.Request{
		TenantID: sess.TenantID,
		Format:   export.Format(format),
		Status:   status,
		Tier:     tier,
	})
	if err != nil {
		if errors.Is(err, export.ErrEmptyInput) {
			return nil, "", domainError(http.StatusUnprocessableEntity, "EMPTY_EXPORT", "There are no leads to export", nil)
		}
		if errors.Is(err, export.ErrUnsupportedFormat) {
			return nil, "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be 'csv' or 'xlsx'", nil)
		}
		return nil, "", err
	}

	s.recordActivity(ctx, sess, "", "export_created", fmt.Sprintf("exported leads as %s", format))

	if asLink && s.artifacts != nil {
		link, err := s.artifacts.Upload(ctx, sess.TenantID, result)
		if err != nil {
			return nil, "", fmt.Errorf("upload export: %w", err)
		}
		return result, link, nil
	}
	return result, "", nil
}

// Feedback

func (s *Service) SubmitFeedback(ctx context.Context, sess Session, subjectID, quality, reason string) error {
	err := s.feedback.Submit(ctx, feedback.Submission{
		TenantID:  sess.TenantID,
		UserID:    sess.UserID,
		SubjectID: subjectID,
		Quality:   feedback.Quality(quality),
		Reason:    reason,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, feedback.ErrInvalidQuality), errors.Is(err, feedback.ErrEmptyReason):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, feedback.ErrAlreadySubmitting):
		return domainError(http.StatusConflict, "ALREADY_SUBMITTING", "Feedback for this item is already being submitted", nil)
	default:
		return err
	}
}

func (s *Service) saveFeedback(ctx context.Context, sub feedback.Submission) error {
	description := fmt.Sprintf("rated generated content %s", sub.Quality)
	if sub.Reason != "" {
		description += ": " + sub.Reason
	}
	entry, err := s.store.InsertActivityLog(ctx, store.ActivityLogEntry{
		TenantID:    sub.TenantID,
		UserID:      sub.UserID,
		ActionType:  "feedback_given",
		Description: description,
	})
	if err != nil {
		return err
	}
	if s.bus != nil {
		_ = s.bus.Publish(ctx, entry)
	}
	return nil
}

// LinkedIn search

// SearchLinkedIn fans out one query per location/position combination.
// Lists left empty by the caller fall back to the tenant's saved search
// preferences.
func (s *Service) SearchLinkedIn(ctx context.Context, sess Session, locations, positions []string, operator string, years, limit int) (map[string]any, error) {
	if s.linkedin == nil {
		return nil, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "LinkedIn search not configured", nil)
	}
	if _, ok := allowedExperienceOperators[operator]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "experience operator must be one of =, <, >, <=, >=", nil)
	}
	if years < 0 || years > 30 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "experience years must be between 0 and 30", nil)
	}

	if len(locations) == 0 || len(positions) == 0 {
		if prefs, err := s.store.GetPreferences(ctx, sess.TenantID); err == nil {
			if len(locations) == 0 {
				locations = splitList(prefs.LinkedInLocations)
			}
			if len(positions) == 0 {
				positions = splitList(prefs.LinkedInPositions)
			}
			if operator == "" {
				operator = prefs.LinkedInExperienceOperator
			}
			if years == 0 {
				years = prefs.LinkedInExperienceYears
			}
		}
	}
	if len(locations) == 0 || len(positions) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "at least one location and one position are required", nil)
	}

	profiles, err := s.linkedin.Search(ctx, linkedin.Params{
		Locations:          locations,
		Positions:          positions,
		ExperienceOperator: operator,
		ExperienceYears:    years,
		Limit:              limit,
	})
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "REMOTE_FETCH_ERROR", "LinkedIn search failed", nil)
	}
	return map[string]any{"profiles": profiles, "count": len(profiles)}, nil
}

// ImportLinkedInProfiles creates leads from selected search results,
// skipping duplicates. Each profile is also recorded as an executive at
// its company.
func (s *Service) ImportLinkedInProfiles(ctx context.Context, sess Session, profiles []linkedin.Profile) (map[string]any, error) {
	imported := 0
	skipped := 0
	for _, profile := range profiles {
		if profile.Company == "" || profile.Name == "" {
			skipped++
			continue
		}

		companyID, err := s.store.GetOrCreateCompany(ctx, sess.TenantID, profile.Company, "", "")
		if err != nil {
			return nil, err
		}
		if profile.ProfileURL != "" {
			if err := s.store.InsertExecutive(ctx, store.Executive{
				TenantID:   sess.TenantID,
				CompanyID:  companyID,
				Name:       profile.Name,
				Role:       profile.Role,
				ProfileURL: profile.ProfileURL,
			}); err != nil {
				log.Printf("app: record executive %s: %v", profile.Name, err)
			}
		}

		payload, err := s.CreateLead(ctx, sess, profile.Company, profile.Name, "", profile.Role)
		if err != nil {
			return nil, err
		}
		if created, _ := payload["created"].(bool); created {
			imported++
		} else {
			skipped++
		}
	}
	return map[string]any{"imported": imported, "skipped": skipped}, nil
}

// ListLeadExecutives returns known people at the lead's company.
func (s *Service) ListLeadExecutives(ctx context.Context, sess Session, leadID string) (map[string]any, error) {
	lead, err := s.store.GetLead(ctx, sess.TenantID, leadID)
	if err != nil {
		return nil, err
	}
	companyID, err := s.store.GetOrCreateCompany(ctx, sess.TenantID, lead.CompanyName, "", "")
	if err != nil {
		return nil, err
	}
	executives, err := s.store.ListExecutives(ctx, sess.TenantID, companyID)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(executives))
	for _, exec := range executives {
		items = append(items, map[string]any{
			"id":         exec.ID,
			"name":       exec.Name,
			"role":       exec.Role,
			"profileUrl": exec.ProfileURL,
		})
	}
	return map[string]any{"executives": items, "company": lead.CompanyName}, nil
}

// AI generation

func (s *Service) GenerateEmail(ctx context.Context, sess Session, leadID, emailType string) (map[string]any, error) {
	if s.llm == nil {
		return nil, domainError(http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI generation not configured", nil)
	}
	lead, err := s.store.GetLead(ctx, sess.TenantID, leadID)
	if err != nil {
		return nil, err
	}

	body, err := s.llm.GenerateEmail(ctx, llm.EmailRequest{
		CompanyName:   lead.CompanyName,
		ContactPerson: lead.ContactPerson,
		Role:          lead.Role,
		EmailType:     emailType,
	})
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "REMOTE_FETCH_ERROR", "Email generation failed", nil)
	}
	return map[string]any{"email": body, "leadId": leadID}, nil
}

func (s *Service) GetNews(ctx context.Context, sess Session, leadID string) (map[string]any, error) {
	if s.llm == nil {
		return nil, domainError(http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI generation not configured", nil)
	}
	lead, err := s.store.GetLead(ctx, sess.TenantID, leadID)
	if err != nil {
		return nil, err
	}

	items, err := s.llm.GetNews(ctx, lead.CompanyName)
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "REMOTE_FETCH_ERROR", "News lookup failed", nil)
	}
	return map[string]any{"news": items, "company": lead.CompanyName}, nil
}

// GenerateLeads asks the model for leads matching the tenant preferences
// and stores the non-duplicate ones.
func (s *Service) GenerateLeads(ctx context.Context, sess Session, count int) (map[string]any, error) {
	if s.llm == nil {
		return nil, domainError(http.StatusServiceUnavailable, "AI_UNAVAILABLE", "AI generation not configured", nil)
	}
	prefs, err := s.store.GetPreferences(ctx, sess.TenantID)
	if err != nil {
		return nil, err
	}

	proposed, err := s.llm.GenerateLeads(ctx, prefs, count)
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "REMOTE_FETCH_ERROR", "Lead generation failed", nil)
	}

	created := 0
	for _, p := range proposed {
		payload, err := s.CreateLead(ctx, sess, p.CompanyName, p.ContactPerson, "", p.Role)
		if err != nil {
			log.Printf("app: store generated lead %s: %v", p.CompanyName, err)
			continue
		}
		if ok, _ := payload["created"].(bool); ok {
			created++
		}
	}
	return map[string]any{"proposed": len(proposed), "created": created}, nil
}

// SendLeadEmail sends a drafted outreach email to a lead contact and
// records the activity.
func (s *Service) SendLeadEmail(ctx context.Context, sess Session, leadID, subject, body string) (map[string]any, error) {
	if s.email == nil || !s.email.IsConfigured() {
		return nil, domainError(http.StatusServiceUnavailable, "EMAIL_UNAVAILABLE", "Email sending not configured", nil)
	}
	lead, err := s.store.GetLead(ctx, sess.TenantID, leadID)
	if err != nil {
		return nil, err
	}
	if lead.ContactEmail == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "lead has no contact email", nil)
	}
	if strings.TrimSpace(body) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "email body is required", nil)
	}

	if err := s.email.SendLeadEmail(lead.ContactEmail, subject, body); err != nil {
		return nil, fmt.Errorf("send lead email: %w", err)
	}

	s.recordActivity(ctx, sess, leadID, "email_sent", fmt.Sprintf("sent an email to %s at %s", lead.ContactPerson, lead.CompanyName))
	return map[string]any{"ok": true, "to": lead.ContactEmail}, nil
}

// Preferences

func (s *Service) GetPreferences(ctx context.Context, sess Session) (map[string]any, error) {
	prefs, err := s.store.GetPreferences(ctx, sess.TenantID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"preferences": preferencesPayload(prefs)}, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, sess Session, prefs store.TenantPreferences) (map[string]any, error) {
	if _, ok := allowedExperienceOperators[prefs.LinkedInExperienceOperator]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "experience operator must be one of =, <, >, <=, >=", nil)
	}
	if prefs.LinkedInExperienceYears < 0 || prefs.LinkedInExperienceYears > 30 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "experience years must be between 0 and 30", nil)
	}

	prefs.TenantID = sess.TenantID
	if err := s.store.UpsertPreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "preferences": preferencesPayload(prefs)}, nil
}

// Lead search

func (s *Service) SearchLeads(ctx context.Context, sess Session, text, status, tier string, limit, offset int) (map[string]any, error) {
	if s.search == nil {
		return nil, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search not configured", nil)
	}
	response := s.search.Search(search.Query{
		TenantID: sess.TenantID,
		Text:     text,
		Status:   status,
		Tier:     tier,
		Limit:    limit,
		Offset:   offset,
	})
	return map[string]any{
		"results": response.Results,
		"total":   response.Total,
		"query":   response.Query,
	}, nil
}

// Payload helpers

func leadPayload(lead store.Lead) map[string]any {
	return map[string]any{
		"id":            lead.ID,
		"companyName":   lead.CompanyName,
		"contactPerson": lead.ContactPerson,
		"contactEmail":  lead.ContactEmail,
		"role":          lead.Role,
		"status":        lead.Status,
		"tier":          lead.Tier,
		"createdAt":     lead.CreatedAt,
		"updatedAt":     lead.UpdatedAt,
	}
}

func activityPayload(entry feed.Entry) map[string]any {
	payload := map[string]any{
		"id":          entry.ID,
		"leadId":      entry.LeadID,
		"userId":      entry.UserID,
		"userName":    entry.UserName,
		"actionType":  entry.ActionType,
		"description": entry.Description,
		"createdAt":   entry.CreatedAt,
		"timeAgo":     relative(entry.CreatedAt),
	}
	if entry.LeadCompany != "" {
		payload["leadCompany"] = entry.LeadCompany
		payload["leadContact"] = entry.LeadContact
	}
	return payload
}

func preferencesPayload(prefs store.TenantPreferences) map[string]any {
	return map[string]any{
		"targetIndustry":             prefs.TargetIndustry,
		"companySize":                prefs.CompanySize,
		"geographicRegion":           prefs.GeographicRegion,
		"targetRoles":                prefs.TargetRoles,
		"revenueRange":               prefs.RevenueRange,
		"keywords":                   prefs.Keywords,
		"notes":                      prefs.Notes,
		"linkedinLocations":          prefs.LinkedInLocations,
		"linkedinPositions":          prefs.LinkedInPositions,
		"linkedinExperienceOperator": prefs.LinkedInExperienceOperator,
		"linkedinExperienceYears":    prefs.LinkedInExperienceYears,
	}
}

// splitList turns a comma-separated preference string into trimmed,
// non-empty items.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func relative(value time.Time) string {
	minutes := int(time.Since(value).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm ago", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}
	days := hours / 24
	return fmt.Sprintf("%dd ago", days)
}
