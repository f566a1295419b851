package features

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssign(t *testing.T) {
	var rec ApplicantRecord

	require.NoError(t, rec.Assign(ColAge, " 41 "))
	require.NoError(t, rec.Assign(ColMaritalStatus, "Married"))
	require.NoError(t, rec.Assign(ColLoanHistory, "Yes"))
	require.NoError(t, rec.Assign(ColLoanApprovalStatus, "Rejected"))
	require.NoError(t, rec.Assign("Applicant_ID", "A-17"), "unknown columns are ignored")

	assert.Equal(t, 41.0, rec.Age)
	assert.Equal(t, "Married", rec.MaritalStatus)
	assert.Equal(t, 1, rec.LoanHistory)
	assert.Equal(t, 0, rec.LoanApprovalStatus)
}

func TestAssign_Invalid(t *testing.T) {
	tests := []struct {
		field string
		value string
	}{
		{ColAnnualIncome, "lots"},
		{ColAnnualIncome, "NaN"},
		{ColLoanHistory, "maybe"},
		{ColResidentialStatus, "  "},
	}
	for _, tc := range tests {
		t.Run(tc.field+"="+tc.value, func(t *testing.T) {
			var rec ApplicantRecord
			err := rec.Assign(tc.field, tc.value)
			var valErr *InvalidValueError
			require.True(t, errors.As(err, &valErr))
			assert.Equal(t, tc.field, valErr.Field)
		})
	}
}

func TestAssignNumber(t *testing.T) {
	var rec ApplicantRecord
	require.NoError(t, rec.AssignNumber(ColOutstandingDebt, 1200))
	require.NoError(t, rec.AssignNumber(ColLoanHistory, 1))
	assert.Equal(t, 1200.0, rec.OutstandingDebt)
	assert.Equal(t, 1, rec.LoanHistory)

	assert.Error(t, rec.AssignNumber(ColMaritalStatus, 1))
	assert.Error(t, rec.AssignNumber(ColLoanHistory, 3))
}

func TestKnownAndNumeric(t *testing.T) {
	assert.True(t, Known(ColEducation))
	assert.False(t, Known("Gender"))
	assert.True(t, IsNumeric(ColLoanHistory))
	assert.False(t, IsNumeric(ColEducation))
}
