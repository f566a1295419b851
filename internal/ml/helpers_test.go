package ml

import (
	"math"
	"math/rand"
	"testing"

	"credit-scoring/internal/features"

	"github.com/stretchr/testify/require"
)

var (
	testMarital     = []string{"Married", "Single"}
	testEmployment  = []string{"Employed", "Self-Employed", "Unemployed"}
	testResidential = []string{"Own", "Rent", "Other"}
	testEducation   = []string{"high school", "bachelor", "master"}
)

// syntheticApplicants generates applicants whose credit score and approval
// status are smooth functions of their ratios plus a little noise.
func syntheticApplicants(n int, seed int64) []features.ApplicantRecord {
	rng := rand.New(rand.NewSource(seed))
	out := make([]features.ApplicantRecord, n)
	for i := range out {
		r := features.ApplicantRecord{
			Age:                     float64(21 + rng.Intn(45)),
			MaritalStatus:           testMarital[rng.Intn(len(testMarital))],
			Dependents:              float64(rng.Intn(4)),
			Education:               testEducation[rng.Intn(len(testEducation))],
			EmploymentStatus:        testEmployment[rng.Intn(len(testEmployment))],
			AnnualIncome:            20000 + rng.Float64()*130000,
			MonthlyExpenses:         500 + rng.Float64()*4500,
			TotalExistingLoanAmount: rng.Float64() * 50000,
			OutstandingDebt:         rng.Float64() * 40000,
			BankAccountHistory:      float64(1 + rng.Intn(20)),
			ExistingLoans:           float64(rng.Intn(5)),
			ResidentialStatus:       testResidential[rng.Intn(len(testResidential))],
			LoanHistory:             rng.Intn(2),
		}

		dti := r.OutstandingDebt / r.AnnualIncome
		eti := r.MonthlyExpenses * 12 / r.AnnualIncome
		score := 640 + 8*r.BankAccountHistory + 60*float64(r.LoanHistory) - 250*dti - 120*eti + rng.NormFloat64()*15
		r.CreditScore = math.Max(300, math.Min(850, score))
		if r.CreditScore > 660 && dti < 0.3 {
			r.LoanApprovalStatus = 1
		}
		out[i] = r
	}
	return out
}

func creditTrainingSet(t *testing.T, n int) ([]features.FeatureVector, []float64) {
	t.Helper()
	recs := syntheticApplicants(n, 7)
	rows := make([]features.FeatureVector, len(recs))
	targets := make([]float64, len(recs))
	for i, r := range recs {
		fv, err := features.Derive(r)
		require.NoError(t, err)
		rows[i] = fv
		targets[i] = r.CreditScore
	}
	return rows, targets
}

func approvalTrainingSet(t *testing.T, n int) ([]features.FeatureVector, []int, features.Vocabulary) {
	t.Helper()
	recs := syntheticApplicants(n, 11)
	vocab := features.FitVocabulary(recs)
	rows := make([]features.FeatureVector, len(recs))
	labels := make([]int, len(recs))
	for i, r := range recs {
		fv, err := features.DeriveApproval(r, vocab)
		require.NoError(t, err)
		rows[i] = fv
		labels[i] = r.LoanApprovalStatus
	}
	return rows, labels, vocab
}

func fastTrainConfig() TrainConfig {
	cfg := DefaultTrainConfig()
	cfg.Booster.NEstimators = 80
	cfg.Booster.LearningRate = 0.2
	cfg.Booster.EarlyStoppingRounds = 10
	return cfg
}
