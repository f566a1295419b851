// Package features turns raw loan/credit applicant records into the feature
// vectors the trained pipelines consume.
//
// Derivation is a pure per-record function: every call builds a fresh
// FeatureVector and never touches shared state, so the same code serves
// batch training and single-request scoring.
package features

import (
	"math"
	"strconv"
	"strings"
)

// Raw column names as they appear in the applicant CSV and in request bodies.
const (
	ColAge                     = "Age"
	ColMaritalStatus           = "Marital_Status"
	ColDependents              = "Dependents"
	ColEducation               = "Education"
	ColEmploymentStatus        = "Employment_Status"
	ColAnnualIncome            = "Annual_Income"
	ColMonthlyExpenses         = "Monthly_Expenses"
	ColTotalExistingLoanAmount = "Total_Existing_Loan_Amount"
	ColOutstandingDebt         = "Outstanding_Debt"
	ColBankAccountHistory      = "Bank_Account_History"
	ColExistingLoans           = "Existing_Loans"
	ColResidentialStatus       = "Residential_Status"
	ColLoanHistory             = "Loan_History"
	ColCreditScore             = "Credit_Score"
	ColLoanApprovalStatus      = "Loan_Approval_Status"
)

// Derived column names.
const (
	ColDebtToIncomeRatio    = "Debt_to_Income_Ratio"
	ColExpenseToIncomeRatio = "Expense_to_Income_Ratio"
	ColAverageLength        = "Average_Length"
)

// ApplicantRecord is one loan/credit applicant as read from the dataset or
// from a prediction request.
type ApplicantRecord struct {
	Age                     float64 `json:"Age"`
	MaritalStatus           string  `json:"Marital_Status"`
	Dependents              float64 `json:"Dependents"`
	Education               string  `json:"Education,omitempty"`
	EmploymentStatus        string  `json:"Employment_Status,omitempty"`
	AnnualIncome            float64 `json:"Annual_Income"`
	MonthlyExpenses         float64 `json:"Monthly_Expenses,omitempty"`
	TotalExistingLoanAmount float64 `json:"Total_Existing_Loan_Amount"`
	OutstandingDebt         float64 `json:"Outstanding_Debt"`
	BankAccountHistory      float64 `json:"Bank_Account_History,omitempty"`
	ExistingLoans           float64 `json:"Existing_Loans,omitempty"`
	ResidentialStatus       string  `json:"Residential_Status"`
	LoanHistory             int     `json:"Loan_History,omitempty"`
	CreditScore             float64 `json:"Credit_Score,omitempty"`
	LoanApprovalStatus      int     `json:"Loan_Approval_Status,omitempty"`
}

type fieldKind int

const (
	kindNumeric fieldKind = iota
	kindText
	kindFlag
)

var fieldKinds = map[string]fieldKind{
	ColAge:                     kindNumeric,
	ColMaritalStatus:           kindText,
	ColDependents:              kindNumeric,
	ColEducation:               kindText,
	ColEmploymentStatus:        kindText,
	ColAnnualIncome:            kindNumeric,
	ColMonthlyExpenses:         kindNumeric,
	ColTotalExistingLoanAmount: kindNumeric,
	ColOutstandingDebt:         kindNumeric,
	ColBankAccountHistory:      kindNumeric,
	ColExistingLoans:           kindNumeric,
	ColResidentialStatus:       kindText,
	ColLoanHistory:             kindFlag,
	ColCreditScore:             kindNumeric,
	ColLoanApprovalStatus:      kindFlag,
}

// Known reports whether field is a recognised raw column.
func Known(field string) bool {
	_, ok := fieldKinds[field]
	return ok
}

// IsNumeric reports whether field carries a number (flags included).
func IsNumeric(field string) bool {
	k, ok := fieldKinds[field]
	return ok && k != kindText
}

// Assign parses a textual value into the named field. It is used for CSV
// cells and for string-typed JSON values.
func (r *ApplicantRecord) Assign(field, value string) error {
	kind, ok := fieldKinds[field]
	if !ok {
		return nil
	}
	value = strings.TrimSpace(value)

	switch kind {
	case kindText:
		if value == "" {
			return &InvalidValueError{Field: field, Value: value}
		}
		r.setText(field, value)
		return nil
	case kindFlag:
		flag, err := ParseFlag(value)
		if err != nil {
			return &InvalidValueError{Field: field, Value: value}
		}
		r.setNumber(field, float64(flag))
		return nil
	default:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return &InvalidValueError{Field: field, Value: value}
		}
		r.setNumber(field, f)
		return nil
	}
}

// AssignNumber stores a numeric value into the named field. Text fields
// reject numbers.
func (r *ApplicantRecord) AssignNumber(field string, v float64) error {
	kind, ok := fieldKinds[field]
	if !ok {
		return nil
	}
	if kind == kindText || math.IsNaN(v) || math.IsInf(v, 0) {
		return &InvalidValueError{Field: field, Value: strconv.FormatFloat(v, 'g', -1, 64)}
	}
	if kind == kindFlag && v != 0 && v != 1 {
		return &InvalidValueError{Field: field, Value: strconv.FormatFloat(v, 'g', -1, 64)}
	}
	r.setNumber(field, v)
	return nil
}

func (r *ApplicantRecord) setText(field, v string) {
	switch field {
	case ColMaritalStatus:
		r.MaritalStatus = v
	case ColEducation:
		r.Education = v
	case ColEmploymentStatus:
		r.EmploymentStatus = v
	case ColResidentialStatus:
		r.ResidentialStatus = v
	}
}

func (r *ApplicantRecord) setNumber(field string, v float64) {
	switch field {
	case ColAge:
		r.Age = v
	case ColDependents:
		r.Dependents = v
	case ColAnnualIncome:
		r.AnnualIncome = v
	case ColMonthlyExpenses:
		r.MonthlyExpenses = v
	case ColTotalExistingLoanAmount:
		r.TotalExistingLoanAmount = v
	case ColOutstandingDebt:
		r.OutstandingDebt = v
	case ColBankAccountHistory:
		r.BankAccountHistory = v
	case ColExistingLoans:
		r.ExistingLoans = v
	case ColCreditScore:
		r.CreditScore = v
	case ColLoanHistory:
		r.LoanHistory = int(v)
	case ColLoanApprovalStatus:
		r.LoanApprovalStatus = int(v)
	}
}

// ParseFlag reads a 0/1 indicator. Besides digits it accepts the yes/no,
// true/false and approved/rejected spellings found in exported datasets.
func ParseFlag(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "yes", "y", "true", "approved":
		return 1, nil
	case "0", "0.0", "no", "n", "false", "rejected", "denied", "not approved":
		return 0, nil
	}
	return 0, &InvalidValueError{Value: s}
}
