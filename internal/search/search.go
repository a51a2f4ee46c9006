// Package search provides lead search backed by Meilisearch with a
// PostgreSQL full-text fallback.
package search

// Query describes one lead search.
type Query struct {
	TenantID string
	Text     string
	Status   string
	Tier     string
	Limit    int
	Offset   int
}

// Result is one search hit.
type Result struct {
	ID            string `json:"id"`
	CompanyName   string `json:"companyName"`
	ContactPerson string `json:"contactPerson"`
	ContactEmail  string `json:"contactEmail,omitempty"`
	Role          string `json:"role,omitempty"`
	Status        string `json:"status"`
	Tier          string `json:"tier,omitempty"`
	Snippet       string `json:"snippet,omitempty"`
}

// Response is the full search reply.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// LeadRecord is the document shape pushed into the search index.
type LeadRecord struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenantId"`
	CompanyName   string `json:"companyName"`
	ContactPerson string `json:"contactPerson"`
	ContactEmail  string `json:"contactEmail"`
	Role          string `json:"role"`
	Status        string `json:"status"`
	Tier          string `json:"tier"`
}
