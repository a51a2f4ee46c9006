// Package linkedin finds candidate profiles through Google Custom Search
// restricted to linkedin.com/in pages.
package linkedin

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// Profile is one extracted search hit.
type Profile struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Company    string `json:"company"`
	ProfileURL string `json:"profileUrl"`
	Snippet    string `json:"snippet,omitempty"`
}

// Params describes one profile search. Locations and Positions fan out
// as a cross product; each combination becomes its own query.
type Params struct {
	Locations          []string
	Positions          []string
	ExperienceOperator string
	ExperienceYears    int
	Limit              int
}

// Client queries the Google Custom Search API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	cseID      string
	baseURL    string
	queryDelay time.Duration
}

// NewClient creates a search client. Empty apiKey disables the client;
// Search then returns an error instead of making requests.
func NewClient(apiKey, cseID string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
		cseID:      cseID,
		baseURL:    defaultBaseURL,
		queryDelay: 200 * time.Millisecond,
	}
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// LinkedIn titles follow "Name - Role - Company | LinkedIn" with some
// variation; the trailing marker is stripped before splitting.
var (
	linkedinSuffix = regexp.MustCompile(`\s*[|-]\s*LinkedIn\s*$`)
	profilePath    = regexp.MustCompile(`linkedin\.com/in/[^/?#]+`)
)

// BuildQuery assembles the site-restricted query for one
// position/location combination, with an optional experience clause.
func BuildQuery(position, location, operator string, years int) string {
	parts := []string{"site:linkedin.com/in"}
	if position != "" {
		parts = append(parts, fmt.Sprintf("%q", position))
	}
	if location != "" {
		parts = append(parts, fmt.Sprintf("%q", location))
	}
	if years > 0 {
		switch operator {
		case ">", ">=":
			parts = append(parts, fmt.Sprintf(`"%d years" OR "%d+ years"`, years, years))
		case "<", "<=":
			parts = append(parts, fmt.Sprintf(`"less than %d years" OR "junior" OR "entry level"`, years))
		default:
			parts = append(parts, fmt.Sprintf(`"%d years"`, years))
		}
	}
	return strings.Join(parts, " ")
}

// Search queries every location/position combination and returns
// deduplicated profiles, at most p.Limit of them. A failed combination
// is logged and skipped; the remaining combinations still run.
func (c *Client) Search(ctx context.Context, p Params) ([]Profile, error) {
	if c.apiKey == "" || c.cseID == "" {
		return nil, fmt.Errorf("linkedin search is not configured")
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	locations := cleanList(p.Locations)
	positions := cleanList(p.Positions)

	seen := make(map[string]bool)
	profiles := make([]Profile, 0, limit)

	for _, location := range locations {
		for _, position := range positions {
			if len(profiles) >= limit {
				return profiles[:limit], nil
			}

			query := BuildQuery(position, location, p.ExperienceOperator, p.ExperienceYears)
			items, err := c.fetchResults(ctx, query)
			if err != nil {
				if ctx.Err() != nil {
					return profiles, ctx.Err()
				}
				log.Printf("linkedin: search %q in %q: %v", position, location, err)
				continue
			}

			for _, item := range items {
				if len(profiles) >= limit {
					break
				}
				profile, ok := extractProfile(item)
				if !ok || seen[profile.ProfileURL] {
					continue
				}
				seen[profile.ProfileURL] = true
				profiles = append(profiles, profile)
			}

			// Rate limiting between combinations.
			select {
			case <-ctx.Done():
				return profiles, ctx.Err()
			case <-time.After(c.queryDelay):
			}
		}
	}

	return profiles, nil
}

func (c *Client) fetchResults(ctx context.Context, query string) ([]searchItem, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.cseID)
	params.Set("q", query)
	params.Set("num", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: unexpected status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return body.Items, nil
}

// extractProfile parses name, role and company out of a result title.
// Hits that do not point at a profile page are skipped.
func extractProfile(item searchItem) (Profile, bool) {
	match := profilePath.FindString(item.Link)
	if match == "" {
		return Profile{}, false
	}

	title := linkedinSuffix.ReplaceAllString(item.Title, "")
	fields := strings.Split(title, " - ")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	profile := Profile{
		ProfileURL: "https://www." + match,
		Snippet:    item.Snippet,
	}
	if len(fields) > 0 {
		profile.Name = fields[0]
	}
	if len(fields) > 1 {
		profile.Role = fields[1]
	}
	if len(fields) > 2 {
		profile.Company = strings.Join(fields[2:], " - ")
	}
	if profile.Name == "" {
		return Profile{}, false
	}
	return profile, true
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
