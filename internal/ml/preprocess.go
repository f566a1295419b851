package ml

import (
	"fmt"
	"sort"
	"strconv"

	"credit-scoring/internal/features"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centres numeric columns to zero mean and unit variance
// using population statistics of the rows it was fitted on.
type StandardScaler struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

// FitStandardScaler computes per-column mean and standard deviation. A
// constant column keeps a scale of 1 so it transforms to zero.
func FitStandardScaler(columns []string, rows []features.FeatureVector) (*StandardScaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty data")
	}

	s := &StandardScaler{
		Columns: append([]string(nil), columns...),
		Mean:    make([]float64, len(columns)),
		Scale:   make([]float64, len(columns)),
	}

	values := make([]float64, len(rows))
	for j, col := range columns {
		for i, row := range rows {
			v, ok := row.Numeric[col]
			if !ok {
				return nil, fmt.Errorf("row %d missing numeric column %s", i, col)
			}
			values[i] = v
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		s.Mean[j] = mean
		if std == 0 {
			std = 1
		}
		s.Scale[j] = std
	}
	return s, nil
}

// OneHotEncoder expands integer-coded categorical columns into indicator
// columns. Codes unseen during fitting encode as all zeros.
type OneHotEncoder struct {
	Columns    []string `json:"columns"`
	Categories [][]int  `json:"categories"`
}

// FitOneHotEncoder records the sorted set of codes seen per column.
func FitOneHotEncoder(columns []string, rows []features.FeatureVector) (*OneHotEncoder, error) {
	e := &OneHotEncoder{
		Columns:    append([]string(nil), columns...),
		Categories: make([][]int, len(columns)),
	}
	for j, col := range columns {
		seen := make(map[int]struct{})
		for i, row := range rows {
			v, ok := row.Categorical[col]
			if !ok {
				return nil, fmt.Errorf("row %d missing categorical column %s", i, col)
			}
			seen[v] = struct{}{}
		}
		cats := make([]int, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Ints(cats)
		e.Categories[j] = cats
	}
	return e, nil
}

// Width is the number of indicator columns produced.
func (e *OneHotEncoder) Width() int {
	n := 0
	for _, cats := range e.Categories {
		n += len(cats)
	}
	return n
}

// ColumnTransformer applies the scaler to numeric columns and the encoder to
// categorical columns, concatenating the results. Columns it was not fitted
// on are dropped.
type ColumnTransformer struct {
	Scaler  *StandardScaler `json:"scaler"`
	Encoder *OneHotEncoder  `json:"encoder"`
}

// FitColumnTransformer fits both stages on rows.
func FitColumnTransformer(numeric, categorical []string, rows []features.FeatureVector) (*ColumnTransformer, error) {
	scaler, err := FitStandardScaler(numeric, rows)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	encoder, err := FitOneHotEncoder(categorical, rows)
	if err != nil {
		return nil, fmt.Errorf("fit encoder: %w", err)
	}
	return &ColumnTransformer{Scaler: scaler, Encoder: encoder}, nil
}

// Width is the length of a transformed row.
func (ct *ColumnTransformer) Width() int {
	return len(ct.Scaler.Columns) + ct.Encoder.Width()
}

// Transform maps one feature vector to a dense model row.
func (ct *ColumnTransformer) Transform(fv features.FeatureVector) ([]float64, error) {
	out := make([]float64, ct.Width())

	for j, col := range ct.Scaler.Columns {
		v, ok := fv.Numeric[col]
		if !ok {
			return nil, fmt.Errorf("feature vector missing numeric column %s", col)
		}
		out[j] = (v - ct.Scaler.Mean[j]) / ct.Scaler.Scale[j]
	}

	offset := len(ct.Scaler.Columns)
	for j, col := range ct.Encoder.Columns {
		v, ok := fv.Categorical[col]
		if !ok {
			return nil, fmt.Errorf("feature vector missing categorical column %s", col)
		}
		cats := ct.Encoder.Categories[j]
		if k := sort.SearchInts(cats, v); k < len(cats) && cats[k] == v {
			out[offset+k] = 1
		}
		offset += len(cats)
	}
	return out, nil
}

// TransformAll transforms a batch of rows.
func (ct *ColumnTransformer) TransformAll(rows []features.FeatureVector) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		x, err := ct.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = x
	}
	return out, nil
}

// OutputNames labels every transformed column, e.g. "num__Age" or
// "cat__Marital_Status_1".
func (ct *ColumnTransformer) OutputNames() []string {
	names := make([]string, 0, ct.Width())
	for _, col := range ct.Scaler.Columns {
		names = append(names, "num__"+col)
	}
	for j, col := range ct.Encoder.Columns {
		for _, c := range ct.Encoder.Categories[j] {
			names = append(names, "cat__"+col+"_"+strconv.Itoa(c))
		}
	}
	return names
}

func (ct *ColumnTransformer) validate() error {
	s := ct.Scaler
	if len(s.Mean) != len(s.Columns) || len(s.Scale) != len(s.Columns) {
		return fmt.Errorf("scaler has %d columns, %d means and %d scales", len(s.Columns), len(s.Mean), len(s.Scale))
	}
	for j, sc := range s.Scale {
		if sc == 0 {
			return fmt.Errorf("scaler column %s has zero scale", s.Columns[j])
		}
	}
	if len(ct.Encoder.Categories) != len(ct.Encoder.Columns) {
		return fmt.Errorf("encoder has %d columns and %d category lists", len(ct.Encoder.Columns), len(ct.Encoder.Categories))
	}
	for j, cats := range ct.Encoder.Categories {
		if !sort.IntsAreSorted(cats) {
			return fmt.Errorf("encoder categories for %s are not sorted", ct.Encoder.Columns[j])
		}
	}
	return nil
}
