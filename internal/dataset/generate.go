package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"math/rand"
	"strconv"

	"credit-scoring/internal/features"
)

// RawColumns is the header of the applicant CSV the models are trained from.
var RawColumns = []string{
	"Applicant_ID",
	features.ColAge,
	"Gender",
	features.ColMaritalStatus,
	features.ColDependents,
	features.ColEducation,
	features.ColEmploymentStatus,
	features.ColAnnualIncome,
	features.ColMonthlyExpenses,
	features.ColCreditScore,
	features.ColExistingLoans,
	features.ColTotalExistingLoanAmount,
	features.ColOutstandingDebt,
	features.ColLoanHistory,
	features.ColBankAccountHistory,
	features.ColResidentialStatus,
	features.ColLoanApprovalStatus,
}

// Generate simulates n applicants. Scores follow account history, repayment
// history and the debt and expense ratios with gaussian noise; approval
// requires a score above 660 and a debt-to-income ratio under 0.3. The same
// seed always yields the same applicants.
func Generate(n int, seed int64) []features.ApplicantRecord {
	rng := rand.New(rand.NewSource(seed))

	marital := []string{"Married", "Single"}
	education := []string{"High School", "Bachelor", "Master", "PhD"}
	employment := []string{"Employed", "Self-Employed", "Unemployed"}
	residential := []string{"Own", "Rent", "Other"}

	out := make([]features.ApplicantRecord, n)
	for i := range out {
		income := 20000 + rng.Float64()*130000
		expenses := 500 + rng.Float64()*4500
		debt := rng.Float64() * 40000
		history := float64(1 + rng.Intn(20))
		loanHistory := rng.Intn(2)

		dti := debt / income
		score := 640 + 8*history + 60*float64(loanHistory) - 250*dti - 120*expenses*12/income
		score += rng.NormFloat64() * 15
		score = math.Round(math.Max(300, math.Min(850, score)))

		approved := 0
		if score > 660 && dti < 0.3 {
			approved = 1
		}

		out[i] = features.ApplicantRecord{
			Age:                     float64(21 + rng.Intn(45)),
			MaritalStatus:           marital[rng.Intn(len(marital))],
			Dependents:              float64(rng.Intn(4)),
			Education:               education[rng.Intn(len(education))],
			EmploymentStatus:        employment[rng.Intn(len(employment))],
			AnnualIncome:            math.Round(income),
			MonthlyExpenses:         math.Round(expenses),
			TotalExistingLoanAmount: math.Round(rng.Float64() * 50000),
			OutstandingDebt:         math.Round(debt),
			BankAccountHistory:      history,
			ExistingLoans:           float64(rng.Intn(5)),
			ResidentialStatus:       residential[rng.Intn(len(residential))],
			LoanHistory:             loanHistory,
			CreditScore:             score,
			LoanApprovalStatus:      approved,
		}
	}
	return out
}

// WriteRawCSV writes records in the raw applicant layout with sequential
// IDs and the Approved/Rejected label text.
func WriteRawCSV(w io.Writer, records []features.ApplicantRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RawColumns); err != nil {
		return err
	}

	genders := []string{"Male", "Female"}
	for i, r := range records {
		status := "Rejected"
		if r.LoanApprovalStatus == 1 {
			status = "Approved"
		}
		err := cw.Write([]string{
			strconv.Itoa(i + 1),
			formatFloat(r.Age),
			genders[i%2],
			r.MaritalStatus,
			formatFloat(r.Dependents),
			r.Education,
			r.EmploymentStatus,
			formatFloat(r.AnnualIncome),
			formatFloat(r.MonthlyExpenses),
			formatFloat(r.CreditScore),
			formatFloat(r.ExistingLoans),
			formatFloat(r.TotalExistingLoanAmount),
			formatFloat(r.OutstandingDebt),
			strconv.Itoa(r.LoanHistory),
			formatFloat(r.BankAccountHistory),
			r.ResidentialStatus,
			status,
		})
		if err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
