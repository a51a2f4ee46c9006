package store

import "time"

type UserProfile struct {
	ID                    string
	TenantID              string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Lead struct {
	ID            string
	TenantID      string
	CompanyName   string
	ContactPerson string
	ContactEmail  string
	Role          string
	Status        string
	Tier          string
	Comments      []Comment
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Comment struct {
	ID         string
	TenantID   string
	LeadID     string
	AuthorID   string
	AuthorName string
	Text       string
	CreatedAt  time.Time
}

type Company struct {
	ID        string
	TenantID  string
	Name      string
	Location  string
	Industry  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Executive is a person discovered at a company, usually via LinkedIn
// profile search.
type Executive struct {
	ID         string
	TenantID   string
	CompanyID  string
	Name       string
	Role       string
	ProfileURL string
	CreatedAt  time.Time
}

type ActivityLogEntry struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	LeadID      string    `json:"leadId"`
	UserID      string    `json:"userId"`
	ActionType  string    `json:"actionType"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LeadRef is the display projection joined onto activity rows.
type LeadRef struct {
	CompanyName   string
	ContactPerson string
}

type TenantPreferences struct {
	TenantID                   string
	TargetIndustry             string
	CompanySize                string
	GeographicRegion           string
	TargetRoles                string
	RevenueRange               string
	Keywords                   string
	Notes                      string
	LinkedInLocations          string
	LinkedInPositions          string
	LinkedInExperienceOperator string
	LinkedInExperienceYears    int
	UpdatedAt                  time.Time
}

type LeadFilter struct {
	Status string
	Tier   string
}
