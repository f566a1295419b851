package features

import "math"

// Column layouts of the two models. Order is significant: it fixes the
// layout of the transformed design matrix.
var (
	CreditNumericColumns = []string{
		ColAge,
		ColDependents,
		ColTotalExistingLoanAmount,
		ColOutstandingDebt,
		ColBankAccountHistory,
		ColDebtToIncomeRatio,
		ColExpenseToIncomeRatio,
		ColAverageLength,
	}
	CreditCategoricalColumns = []string{
		ColMaritalStatus,
		ColEmploymentStatus,
		ColResidentialStatus,
		ColLoanHistory,
	}

	ApprovalNumericColumns = []string{
		ColAge,
		ColDependents,
		ColAnnualIncome,
		ColTotalExistingLoanAmount,
		ColCreditScore,
		ColOutstandingDebt,
	}
	ApprovalCategoricalColumns = []string{
		ColMaritalStatus,
		ColEducation,
		ColResidentialStatus,
	}
)

// Request fields each model needs before derivation can run.
var (
	CreditRequiredFields = []string{
		ColAge,
		ColMaritalStatus,
		ColDependents,
		ColEmploymentStatus,
		ColAnnualIncome,
		ColMonthlyExpenses,
		ColTotalExistingLoanAmount,
		ColOutstandingDebt,
		ColExistingLoans,
		ColBankAccountHistory,
		ColResidentialStatus,
		ColLoanHistory,
	}
	ApprovalRequiredFields = []string{
		ColAge,
		ColMaritalStatus,
		ColDependents,
		ColEducation,
		ColAnnualIncome,
		ColTotalExistingLoanAmount,
		ColCreditScore,
		ColOutstandingDebt,
		ColResidentialStatus,
	}
)

// FeatureVector is the model-ready form of an applicant: numeric inputs by
// column name and categorical inputs by integer code.
type FeatureVector struct {
	Numeric     map[string]float64 `json:"numeric"`
	Categorical map[string]int     `json:"categorical"`
}

// SafeRatio divides num by den, returning 0 when den is zero or the result
// is not finite.
func SafeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// Derive builds the credit-model feature vector. Annual_Income,
// Monthly_Expenses and Existing_Loans only feed the ratios and are not part
// of the result.
func Derive(rec ApplicantRecord) (FeatureVector, error) {
	marital, err := EncodeCategory(ColMaritalStatus, rec.MaritalStatus)
	if err != nil {
		return FeatureVector{}, err
	}
	employment, err := EncodeCategory(ColEmploymentStatus, rec.EmploymentStatus)
	if err != nil {
		return FeatureVector{}, err
	}
	residential, err := EncodeCategory(ColResidentialStatus, rec.ResidentialStatus)
	if err != nil {
		return FeatureVector{}, err
	}

	return FeatureVector{
		Numeric: map[string]float64{
			ColAge:                     rec.Age,
			ColDependents:              rec.Dependents,
			ColTotalExistingLoanAmount: rec.TotalExistingLoanAmount,
			ColOutstandingDebt:         rec.OutstandingDebt,
			ColBankAccountHistory:      rec.BankAccountHistory,
			ColDebtToIncomeRatio:       SafeRatio(rec.OutstandingDebt, rec.AnnualIncome),
			ColExpenseToIncomeRatio:    SafeRatio(rec.MonthlyExpenses*12, rec.AnnualIncome),
			ColAverageLength:           SafeRatio(rec.BankAccountHistory, rec.ExistingLoans),
		},
		Categorical: map[string]int{
			ColMaritalStatus:     marital,
			ColEmploymentStatus:  employment,
			ColResidentialStatus: residential,
			ColLoanHistory:       rec.LoanHistory,
		},
	}, nil
}

// DeriveApproval builds the approval-model feature vector, encoding the
// categorical fields through the vocabulary learned at training time.
func DeriveApproval(rec ApplicantRecord, vocab Vocabulary) (FeatureVector, error) {
	fv := FeatureVector{
		Numeric: map[string]float64{
			ColAge:                     rec.Age,
			ColDependents:              rec.Dependents,
			ColAnnualIncome:            rec.AnnualIncome,
			ColTotalExistingLoanAmount: rec.TotalExistingLoanAmount,
			ColCreditScore:             rec.CreditScore,
			ColOutstandingDebt:         rec.OutstandingDebt,
		},
		Categorical: make(map[string]int, len(ApprovalCategoricalColumns)),
	}

	values := map[string]string{
		ColMaritalStatus:     rec.MaritalStatus,
		ColEducation:         rec.Education,
		ColResidentialStatus: rec.ResidentialStatus,
	}
	for _, col := range ApprovalCategoricalColumns {
		code, err := vocab.Encode(col, values[col])
		if err != nil {
			return FeatureVector{}, err
		}
		fv.Categorical[col] = code
	}
	return fv, nil
}
