package features

import (
	"fmt"
	"sort"
	"strings"
)

// InvalidCategoryError reports a categorical value outside the field's domain.
type InvalidCategoryError struct {
	Field string
	Value string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Value)
}

// InvalidValueError reports a value that cannot be parsed for its field.
type InvalidValueError struct {
	Field string
	Value string
}

func (e *InvalidValueError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid value: %q", e.Value)
	}
	return fmt.Sprintf("invalid value for %s: %q", e.Field, e.Value)
}

// Fixed category codes used by the credit model.
var categoryCodes = map[string]map[string]int{
	ColMaritalStatus: {
		"Married": 0,
		"Single":  1,
	},
	ColEmploymentStatus: {
		"Employed":      0,
		"Self-Employed": 1,
		"Unemployed":    2,
	},
	ColResidentialStatus: {
		"Own":   0,
		"Rent":  1,
		"Other": 2,
	},
}

// EncodeCategory maps a credit-model categorical value to its fixed code.
func EncodeCategory(field, value string) (int, error) {
	codes, ok := categoryCodes[field]
	if !ok {
		return 0, fmt.Errorf("field %s has no category mapping", field)
	}
	code, ok := codes[strings.TrimSpace(value)]
	if !ok {
		return 0, &InvalidCategoryError{Field: field, Value: value}
	}
	return code, nil
}

// Vocabulary is the per-field category list learned from training data for
// the approval model. Values are normalised to lower case and sorted, and a
// value's code is its index (label-encoder semantics).
type Vocabulary map[string][]string

// NormalizeCategory is the canonical form of an approval-model category.
func NormalizeCategory(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// FitVocabulary collects the approval categorical domains from records.
func FitVocabulary(records []ApplicantRecord) Vocabulary {
	seen := make(map[string]map[string]struct{}, len(ApprovalCategoricalColumns))
	for _, col := range ApprovalCategoricalColumns {
		seen[col] = make(map[string]struct{})
	}
	for _, r := range records {
		seen[ColMaritalStatus][NormalizeCategory(r.MaritalStatus)] = struct{}{}
		seen[ColEducation][NormalizeCategory(r.Education)] = struct{}{}
		seen[ColResidentialStatus][NormalizeCategory(r.ResidentialStatus)] = struct{}{}
	}

	vocab := make(Vocabulary, len(seen))
	for col, values := range seen {
		list := make([]string, 0, len(values))
		for v := range values {
			if v != "" {
				list = append(list, v)
			}
		}
		sort.Strings(list)
		vocab[col] = list
	}
	return vocab
}

// Encode returns the code of value within field's learned domain.
func (v Vocabulary) Encode(field, value string) (int, error) {
	list, ok := v[field]
	if !ok {
		return 0, fmt.Errorf("vocabulary has no field %s", field)
	}
	norm := NormalizeCategory(value)
	i := sort.SearchStrings(list, norm)
	if i == len(list) || list[i] != norm {
		return 0, &InvalidCategoryError{Field: field, Value: value}
	}
	return i, nil
}
