package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"leadlens/api/internal/store"
)

const timeLayout = "2006-01-02 15:04"

var csvHeader = []string{
	"Company Name",
	"Contact Person",
	"Contact Email",
	"Role",
	"Status",
	"Tier",
	"Comment Count",
	"Created At",
	"Updated At",
}

// writeCSV renders the lead rows as CSV. Row order follows the input, so
// identical input produces identical bytes.
func writeCSV(leads []store.Lead) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, lead := range leads {
		record := []string{
			lead.CompanyName,
			lead.ContactPerson,
			lead.ContactEmail,
			lead.Role,
			lead.Status,
			lead.Tier,
			strconv.Itoa(len(lead.Comments)),
			lead.CreatedAt.Format(timeLayout),
			lead.UpdatedAt.Format(timeLayout),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
