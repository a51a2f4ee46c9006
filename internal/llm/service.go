// Package llm wraps a chat-completions API for outreach email drafting,
// company news lookups and lead generation.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"leadlens/api/internal/store"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

// EmailRequest describes the lead an outreach email is drafted for.
type EmailRequest struct {
	CompanyName   string `json:"companyName"`
	ContactPerson string `json:"contactPerson"`
	Role          string `json:"role"`
	EmailType     string `json:"emailType"`
}

// NewsItem is one summarized news result for a company.
type NewsItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Date    string `json:"date"`
	Source  string `json:"source"`
	Summary string `json:"summary"`
}

// GeneratedLead is one model-proposed lead.
type GeneratedLead struct {
	CompanyName   string `json:"companyName"`
	ContactPerson string `json:"contactPerson"`
	Role          string `json:"role"`
	Reason        string `json:"reason"`
}

// Client talks to a chat-completions endpoint.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

// NewClient creates an LLM client. baseURL and model fall back to the
// OpenAI defaults when empty.
func NewClient(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateEmail drafts an outreach email for the given lead.
func (c *Client) GenerateEmail(ctx context.Context, req EmailRequest) (string, error) {
	emailType := req.EmailType
	if emailType == "" {
		emailType = "introduction"
	}
	prompt := fmt.Sprintf(
		"Write a concise %s email to %s, %s at %s. Keep it under 150 words, professional tone, no placeholders left unfilled except the sender signature.",
		emailType, req.ContactPerson, req.Role, req.CompanyName,
	)
	return c.complete(ctx, "You are an assistant that writes B2B outreach emails.", prompt)
}

// GetNews asks for recent news about a company and parses the JSON reply.
func (c *Client) GetNews(ctx context.Context, companyName string) ([]NewsItem, error) {
	prompt := fmt.Sprintf(
		`List up to 5 recent news items about the company %q as a JSON array. Each element must have the keys "id", "title", "date", "source" and "summary". Reply with JSON only.`,
		companyName,
	)
	raw, err := c.complete(ctx, "You are a business research assistant. You reply with valid JSON only.", prompt)
	if err != nil {
		return nil, err
	}

	var items []NewsItem
	if err := json.Unmarshal([]byte(stripFences(raw)), &items); err != nil {
		return nil, fmt.Errorf("parse news response: %w", err)
	}
	return items, nil
}

// GenerateLeads proposes leads matching the tenant's stored preferences.
func (c *Client) GenerateLeads(ctx context.Context, prefs store.TenantPreferences, count int) ([]GeneratedLead, error) {
	if count <= 0 {
		count = 5
	}
	prompt := fmt.Sprintf(
		`Propose %d B2B leads as a JSON array. Each element must have the keys "companyName", "contactPerson", "role" and "reason". Target profile: industry %q, company size %q, region %q, roles %q, keywords %q. Reply with JSON only.`,
		count, prefs.TargetIndustry, prefs.CompanySize, prefs.GeographicRegion, prefs.TargetRoles, prefs.Keywords,
	)
	raw, err := c.complete(ctx, "You are a lead generation assistant. You reply with valid JSON only.", prompt)
	if err != nil {
		return nil, err
	}

	var leads []GeneratedLead
	if err := json.Unmarshal([]byte(stripFences(raw)), &leads); err != nil {
		return nil, fmt.Errorf("parse leads response: %w", err)
	}
	return leads, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("llm client is not configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat request: unexpected status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response contains no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// stripFences removes a surrounding markdown code fence, which models
// add despite instructions to reply with bare JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
