// Package dataset reads raw applicant CSV exports, cleans them for one of
// the two models, and writes the cleaned training files.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"credit-scoring/internal/features"

	"github.com/rs/zerolog/log"
)

// Schema names the columns a model needs and any extra per-row check.
type Schema struct {
	Name     string
	Required []string
	Validate func(features.ApplicantRecord) error
}

// CreditSchema keeps rows the credit model can derive features from.
var CreditSchema = Schema{
	Name:     "credit",
	Required: append(append([]string(nil), features.CreditRequiredFields...), features.ColCreditScore),
	Validate: func(r features.ApplicantRecord) error {
		_, err := features.Derive(r)
		return err
	},
}

// ApprovalSchema keeps rows with every approval-model column and a label.
var ApprovalSchema = Schema{
	Name:     "approval",
	Required: append(append([]string(nil), features.ApprovalRequiredFields...), features.ColLoanApprovalStatus),
}

// Report counts what cleaning did to a file.
type Report struct {
	Source     string         `json:"source"`
	Schema     string         `json:"schema"`
	TotalRows  int            `json:"total_rows"`
	Duplicates int            `json:"duplicates"`
	Invalid    int            `json:"invalid"`
	Kept       int            `json:"kept"`
	ByReason   map[string]int `json:"invalid_by_reason,omitempty"`
}

// Dataset is a cleaned set of applicant records.
type Dataset struct {
	Records []features.ApplicantRecord
	Report  Report
}

// Load opens path and reads it with Read.
func Load(path string, schema Schema) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	ds, err := Read(file, schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ds.Report.Source = path

	log.Info().
		Str("file", path).
		Str("schema", schema.Name).
		Int("rows", ds.Report.TotalRows).
		Int("duplicates", ds.Report.Duplicates).
		Int("invalid", ds.Report.Invalid).
		Int("kept", ds.Report.Kept).
		Msg("CSV data loaded")

	return ds, nil
}

// Read parses a CSV with a header row. Columns are matched by name and
// columns outside the applicant record are ignored. Exact duplicate rows are
// dropped, as are rows with an empty or unparseable required value or that
// fail schema validation.
func Read(r io.Reader, schema Schema) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]string, len(header))
	indices := make(map[string]int, len(header))
	for i, col := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		indices[columns[i]] = i
	}
	required := make(map[string]bool, len(schema.Required))
	for _, col := range schema.Required {
		if _, ok := indices[col]; !ok {
			return nil, fmt.Errorf("missing required column %s", col)
		}
		required[col] = true
	}

	ds := &Dataset{Report: Report{Schema: schema.Name, ByReason: make(map[string]int)}}
	seen := make(map[string]struct{})

	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ds.Report.TotalRows++

		key := strings.Join(row, "\x1f")
		if _, dup := seen[key]; dup {
			ds.Report.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		rec, reason := parseRow(row, columns, required, schema)
		if reason != "" {
			ds.Report.Invalid++
			ds.Report.ByReason[reason]++
			log.Debug().Int("line", line).Str("reason", reason).Msg("dropping row")
			continue
		}
		ds.Records = append(ds.Records, rec)
	}

	ds.Report.Kept = len(ds.Records)
	return ds, nil
}

// parseRow returns the record or a short reason it was rejected.
func parseRow(row, columns []string, required map[string]bool, schema Schema) (features.ApplicantRecord, string) {
	var rec features.ApplicantRecord

	for idx, col := range columns {
		if !features.Known(col) {
			continue
		}
		value := ""
		if idx < len(row) {
			value = strings.TrimSpace(row[idx])
		}
		if value == "" {
			if required[col] {
				return rec, "missing " + col
			}
			continue
		}
		if err := rec.Assign(col, value); err != nil {
			if required[col] {
				return rec, "invalid " + col
			}
		}
	}

	if schema.Validate != nil {
		if err := schema.Validate(rec); err != nil {
			var catErr *features.InvalidCategoryError
			if errors.As(err, &catErr) {
				return rec, "invalid " + catErr.Field
			}
			return rec, err.Error()
		}
	}
	return rec, ""
}
