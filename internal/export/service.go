package export

import (
	"context"
	"fmt"
	"time"

	"leadlens/api/internal/store"
)

// DataStore defines the interface for data access
type DataStore interface {
	ListLeads(ctx context.Context, tenantID string, filter store.LeadFilter) ([]store.Lead, error)
	ListCommentsForLeads(ctx context.Context, tenantID string, leadIDs []string) (map[string][]store.Comment, error)
}

// Service provides lead export functionality
type Service struct {
	store DataStore
	nowFn func() time.Time
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store, nowFn: time.Now}
}

// Export generates an export in the requested format. Leads are exported
// in the order the store returns them, so repeated exports of unchanged
// data yield identical files.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	filter := store.LeadFilter{Status: req.Status, Tier: req.Tier}
	leads, err := s.store.ListLeads(ctx, req.TenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	if len(leads) == 0 {
		return nil, ErrEmptyInput
	}

	leadIDs := make([]string, 0, len(leads))
	for _, lead := range leads {
		leadIDs = append(leadIDs, lead.ID)
	}
	comments, err := s.store.ListCommentsForLeads(ctx, req.TenantID, leadIDs)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	for i := range leads {
		leads[i].Comments = comments[leads[i].ID]
	}

	scope := req.Scope
	if scope == "" {
		scope = ScopeAll
		if req.Status != "" || req.Tier != "" {
			scope = ScopeFiltered
		}
	}
	date := s.nowFn().UTC().Format("2006-01-02")

	switch req.Format {
	case FormatCSV:
		data, err := writeCSV(leads)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: fmt.Sprintf("leads_%s_%s.csv", scope, date),
			MimeType: "text/csv",
		}, nil
	case FormatXLSX:
		data, err := writeXLSX(leads)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: fmt.Sprintf("leads_%s_%s.xlsx", scope, date),
			MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}
