package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"leadlens/api/internal/store"
)

type fakeDataStore struct {
	listLeadsFn    func(ctx context.Context, tenantID string, filter store.LeadFilter) ([]store.Lead, error)
	listCommentsFn func(ctx context.Context, tenantID string, leadIDs []string) (map[string][]store.Comment, error)
}

func (f *fakeDataStore) ListLeads(ctx context.Context, tenantID string, filter store.LeadFilter) ([]store.Lead, error) {
	return f.listLeadsFn(ctx, tenantID, filter)
}

func (f *fakeDataStore) ListCommentsForLeads(ctx context.Context, tenantID string, leadIDs []string) (map[string][]store.Comment, error) {
	return f.listCommentsFn(ctx, tenantID, leadIDs)
}

func testLeads() []store.Lead {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return []store.Lead{
		{
			ID:            "l1",
			TenantID:      "t1",
			CompanyName:   "Acme",
			ContactPerson: "Bob Smith",
			ContactEmail:  "bob@acme.test",
			Role:          "CTO",
			Status:        "contacted",
			Tier:          "good",
			CreatedAt:     created,
			UpdatedAt:     created.Add(time.Hour),
		},
		{
			ID:            "l2",
			TenantID:      "t1",
			CompanyName:   "Initech",
			ContactPerson: "Carol Jones",
			ContactEmail:  "carol@initech.test",
			Role:          "VP Sales",
			Status:        "not_contacted",
			Tier:          "medium",
			CreatedAt:     created.Add(time.Minute),
			UpdatedAt:     created.Add(time.Minute),
		},
	}
}

func testComments() map[string][]store.Comment {
	return map[string][]store.Comment{
		"l1": {
			{ID: "c1", LeadID: "l1", AuthorName: "Ada", Text: "Met at the expo", CreatedAt: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)},
			{ID: "c2", LeadID: "l1", AuthorName: "Grace", Text: "Followed up by phone", CreatedAt: time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)},
		},
	}
}

func newTestService(leads []store.Lead, comments map[string][]store.Comment) *Service {
	s := NewService(&fakeDataStore{
		listLeadsFn: func(ctx context.Context, tenantID string, filter store.LeadFilter) ([]store.Lead, error) {
			return leads, nil
		},
		listCommentsFn: func(ctx context.Context, tenantID string, leadIDs []string) (map[string][]store.Comment, error) {
			return comments, nil
		},
	})
	s.nowFn = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestExportEmptyInput(t *testing.T) {
	s := newTestService(nil, nil)

	_, err := s.Export(context.Background(), Request{TenantID: "t1", Format: FormatCSV})
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	s := newTestService(testLeads(), testComments())

	_, err := s.Export(context.Background(), Request{TenantID: "t1", Format: "pdf"})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExportCSV(t *testing.T) {
	s := newTestService(testLeads(), testComments())

	result, err := s.Export(context.Background(), Request{TenantID: "t1", Format: FormatCSV})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if result.Filename != "leads_all_2026-04-01.csv" {
		t.Errorf("unexpected filename: %s", result.Filename)
	}
	if result.MimeType != "text/csv" {
		t.Errorf("unexpected mime type: %s", result.MimeType)
	}

	records, err := csv.NewReader(bytes.NewReader(result.Data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if len(records[0]) != 9 {
		t.Errorf("expected 9 columns, got %d", len(records[0]))
	}
	if records[0][0] != "Company Name" || records[0][8] != "Updated At" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[1][0] != "Acme" || records[1][6] != "2" {
		t.Errorf("unexpected first row: %v", records[1])
	}
	if records[2][0] != "Initech" || records[2][6] != "0" {
		t.Errorf("unexpected second row: %v", records[2])
	}
	if records[1][7] != "2026-03-14 09:30" {
		t.Errorf("unexpected created at format: %s", records[1][7])
	}
}

func TestExportCSVFilteredScope(t *testing.T) {
	s := newTestService(testLeads()[:1], nil)

	result, err := s.Export(context.Background(), Request{TenantID: "t1", Format: FormatCSV, Status: "contacted"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Filename != "leads_filtered_2026-04-01.csv" {
		t.Errorf("expected filtered scope in filename, got %s", result.Filename)
	}
}

func TestExportCSVDeterministic(t *testing.T) {
	s := newTestService(testLeads(), testComments())
	req := Request{TenantID: "t1", Format: FormatCSV}

	first, err := s.Export(context.Background(), req)
	if err != nil {
		t.Fatalf("first export failed: %v", err)
	}
	second, err := s.Export(context.Background(), req)
	if err != nil {
		t.Fatalf("second export failed: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Error("expected identical bytes for identical input")
	}
}

func TestExportXLSX(t *testing.T) {
	s := newTestService(testLeads(), testComments())

	result, err := s.Export(context.Background(), Request{TenantID: "t1", Format: FormatXLSX})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Filename != "leads_all_2026-04-01.xlsx" {
		t.Errorf("unexpected filename: %s", result.Filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if len(rows[0]) != 10 {
		t.Errorf("expected 10 columns, got %d", len(rows[0]))
	}
	if rows[0][9] != "Comments" {
		t.Errorf("expected Comments header in column J, got %s", rows[0][9])
	}

	wantComments := "Ada (2026-03-15): Met at the expo | Grace (2026-03-16): Followed up by phone"
	if rows[1][9] != wantComments {
		t.Errorf("unexpected comments cell:\n got %q\nwant %q", rows[1][9], wantComments)
	}
	// Leads without comments get an empty cell, not a placeholder.
	if len(rows[2]) > 9 && rows[2][9] != "" {
		t.Errorf("expected empty comments cell, got %q", rows[2][9])
	}

	for col, want := range map[string]float64{"A": 22, "F": 22, "G": 14, "H": 18, "I": 18, "J": 60} {
		width, err := f.GetColWidth(sheetName, col)
		if err != nil {
			t.Fatalf("read width of column %s: %v", col, err)
		}
		if width != want {
			t.Errorf("column %s: expected width %v, got %v", col, want, width)
		}
	}
}

func TestFormatComments(t *testing.T) {
	comments := []store.Comment{
		{AuthorName: "", Text: "orphaned note", CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	got := formatComments(comments)
	if !strings.HasPrefix(got, "Unknown User (2026-01-02):") {
		t.Errorf("expected unknown author fallback, got %q", got)
	}
	if formatComments(nil) != "" {
		t.Error("expected empty string for no comments")
	}
}
