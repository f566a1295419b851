package main

import (
	"os"
	"path/filepath"
	"testing"

	"credit-scoring/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldArgs(t *testing.T) {
	fields := map[string]any{}
	err := parseFieldArgs([]string{"Age=35", "Marital_Status=Married", "Annual_Income=60000.5", "Note=a=b"}, fields)
	require.NoError(t, err)

	assert.Equal(t, 35.0, fields["Age"])
	assert.Equal(t, "Married", fields["Marital_Status"])
	assert.Equal(t, 60000.5, fields["Annual_Income"])
	assert.Equal(t, "a=b", fields["Note"])

	assert.Error(t, parseFieldArgs([]string{"Age"}, fields))
	assert.Error(t, parseFieldArgs([]string{"=35"}, fields))
}

func TestReadFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "applicant.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Age": 41, "Education": "Master"}`), 0o600))

	fields := map[string]any{"Age": 30.0, "Dependents": 2.0}
	require.NoError(t, readFields(path, fields))
	assert.Equal(t, "41", fields["Age"].(interface{ String() string }).String())
	assert.Equal(t, "Master", fields["Education"])
	assert.Equal(t, 2.0, fields["Dependents"])

	require.NoError(t, os.WriteFile(path, []byte(`[1,2]`), 0o600))
	assert.Error(t, readFields(path, fields))
}

func TestParseTrainKinds(t *testing.T) {
	kinds, err := parseTrainKinds("all")
	require.NoError(t, err)
	assert.Equal(t, []ml.Kind{ml.KindCredit, ml.KindApproval}, kinds)

	kinds, err = parseTrainKinds("approval")
	require.NoError(t, err)
	assert.Equal(t, []ml.Kind{ml.KindApproval}, kinds)

	_, err = parseTrainKinds("fraud")
	assert.Error(t, err)
}

func TestAppRejectsUnknownFormat(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	err := newApp().Run([]string{"creditctl", "--format", "xml", "models", "list"})
	assert.ErrorContains(t, err, "unsupported format")
}
