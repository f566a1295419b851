package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"credit-scoring/internal/features"
)

// CreditCleanColumns is the header of the cleaned credit CSV: the credit
// model's inputs followed by the target.
var CreditCleanColumns = append(append(append([]string(nil),
	features.CreditNumericColumns...),
	features.CreditCategoricalColumns...),
	features.ColCreditScore)

// ApprovalCleanColumns is the header of the cleaned approval CSV.
var ApprovalCleanColumns = []string{
	features.ColAge,
	features.ColMaritalStatus,
	features.ColDependents,
	features.ColEducation,
	features.ColAnnualIncome,
	features.ColTotalExistingLoanAmount,
	features.ColCreditScore,
	features.ColOutstandingDebt,
	features.ColResidentialStatus,
	features.ColLoanApprovalStatus,
}

// WriteCreditCSV writes derived credit features and the score. Categorical
// columns hold their integer codes.
func WriteCreditCSV(w io.Writer, records []features.ApplicantRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CreditCleanColumns); err != nil {
		return err
	}

	row := make([]string, len(CreditCleanColumns))
	for i, rec := range records {
		fv, err := features.Derive(rec)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		for j, col := range CreditCleanColumns {
			if v, ok := fv.Numeric[col]; ok {
				row[j] = formatFloat(v)
			} else if c, ok := fv.Categorical[col]; ok {
				row[j] = strconv.Itoa(c)
			}
		}
		row[len(row)-1] = formatFloat(rec.CreditScore)
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteApprovalCSV writes the approval columns with lower-cased categories.
func WriteApprovalCSV(w io.Writer, records []features.ApplicantRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ApprovalCleanColumns); err != nil {
		return err
	}

	for _, r := range records {
		err := cw.Write([]string{
			formatFloat(r.Age),
			features.NormalizeCategory(r.MaritalStatus),
			formatFloat(r.Dependents),
			features.NormalizeCategory(r.Education),
			formatFloat(r.AnnualIncome),
			formatFloat(r.TotalExistingLoanAmount),
			formatFloat(r.CreditScore),
			formatFloat(r.OutstandingDebt),
			features.NormalizeCategory(r.ResidentialStatus),
			strconv.Itoa(r.LoanApprovalStatus),
		})
		if err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV creates path and fills it with write.
func SaveCSV(path string, records []features.ApplicantRecord, write func(io.Writer, []features.ApplicantRecord) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	if err := write(file, records); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
