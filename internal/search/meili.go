package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxLeads = "leadlens_leads"

// Meili implements lead search via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the leads index.
// The client starts unhealthy if the initial connection fails; a
// background loop keeps retrying.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxLeads,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxLeads, err)
	}

	index := m.client.Index(idxLeads)
	filterable := []interface{}{"tenantId", "status", "tier"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxLeads, err)
	}
	searchable := []string{"companyName", "contactPerson", "contactEmail", "role"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxLeads, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the leads index, always scoped to one tenant.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	filters := []string{fmt.Sprintf("tenantId = %q", q.TenantID)}
	if q.Status != "" {
		filters = append(filters, fmt.Sprintf("status = %q", q.Status))
	}
	if q.Tier != "" {
		filters = append(filters, fmt.Sprintf("tier = %q", q.Tier))
	}

	resp, err := m.client.Index(idxLeads).Search(q.Text, &meili.SearchRequest{
		Limit:                 limit,
		Offset:                int64(q.Offset),
		Filter:                filters,
		AttributesToHighlight: []string{"*"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func hitToResult(hit meili.Hit) Result {
	return Result{
		ID:            decodeString(hit, "id"),
		CompanyName:   decodeString(hit, "companyName"),
		ContactPerson: decodeString(hit, "contactPerson"),
		ContactEmail:  decodeString(hit, "contactEmail"),
		Role:          decodeString(hit, "role"),
		Status:        decodeString(hit, "status"),
		Tier:          decodeString(hit, "tier"),
		Snippet:       decodeFormattedString(hit, "companyName"),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

// IndexLead adds or updates a lead in the search index.
func (m *Meili) IndexLead(record LeadRecord) error {
	_, err := m.client.Index(idxLeads).AddDocuments([]LeadRecord{record}, nil)
	return err
}

// IndexLeads bulk-indexes leads.
func (m *Meili) IndexLeads(records []LeadRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxLeads).AddDocuments(records, nil)
	return err
}

// DeleteLead removes a lead from the search index.
func (m *Meili) DeleteLead(id string) error {
	_, err := m.client.Index(idxLeads).DeleteDocument(id, nil)
	return err
}
