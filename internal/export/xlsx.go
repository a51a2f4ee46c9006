package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"leadlens/api/internal/store"
)

const sheetName = "Leads"

// writeXLSX renders the lead rows as a workbook with a single Leads
// sheet. The XLSX format carries one extra column over CSV: the full
// comment history per lead.
func writeXLSX(leads []store.Lead) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	header := append(append([]string{}, csvHeader...), "Comments")
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	for i, lead := range leads {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row coordinates: %w", err)
		}
		row := []any{
			lead.CompanyName,
			lead.ContactPerson,
			lead.ContactEmail,
			lead.Role,
			lead.Status,
			lead.Tier,
			len(lead.Comments),
			lead.CreatedAt.Format(timeLayout),
			lead.UpdatedAt.Format(timeLayout),
			formatComments(lead.Comments),
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "F", 22); err != nil {
		return nil, fmt.Errorf("set column widths: %w", err)
	}
	if err := f.SetColWidth(sheetName, "G", "G", 14); err != nil {
		return nil, fmt.Errorf("set comment count width: %w", err)
	}
	if err := f.SetColWidth(sheetName, "H", "I", 18); err != nil {
		return nil, fmt.Errorf("set timestamp widths: %w", err)
	}
	if err := f.SetColWidth(sheetName, "J", "J", 60); err != nil {
		return nil, fmt.Errorf("set comments width: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// formatComments flattens a lead's comment history into one cell.
func formatComments(comments []store.Comment) string {
	if len(comments) == 0 {
		return ""
	}
	parts := make([]string, 0, len(comments))
	for _, c := range comments {
		author := c.AuthorName
		if author == "" {
			author = "Unknown User"
		}
		parts = append(parts, fmt.Sprintf("%s (%s): %s", author, c.CreatedAt.Format("2006-01-02"), c.Text))
	}
	return strings.Join(parts, " | ")
}
