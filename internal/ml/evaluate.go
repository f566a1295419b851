package ml

import (
	"math"
	"sort"
	"strconv"
)

// ClassReport holds per-class precision, recall and F1.
type ClassReport struct {
	Class     int     `json:"class"`
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation summarises held-out performance of a trained pipeline.
type Evaluation struct {
	TestRows      int           `json:"test_rows"`
	MAE           float64       `json:"mae,omitempty"`
	Accuracy      float64       `json:"accuracy"`
	MacroF1       float64       `json:"macro_f1"`
	ROCAUC        float64       `json:"roc_auc,omitempty"`
	BestIteration int           `json:"best_iteration,omitempty"`
	Classes       []ClassReport `json:"classes"`
}

// MeanAbsoluteError of pred against truth.
func MeanAbsoluteError(truth, pred []float64) float64 {
	if len(truth) == 0 {
		return 0
	}
	var sum float64
	for i := range truth {
		sum += math.Abs(truth[i] - pred[i])
	}
	return sum / float64(len(truth))
}

// Classification computes accuracy, macro-averaged F1 and a per-class report
// over every class present in truth or pred. labels names classes by index
// when available.
func Classification(truth, pred []int, labels []string) (accuracy, macroF1 float64, report []ClassReport) {
	if len(truth) == 0 {
		return 0, 0, nil
	}

	classes := make(map[int]struct{})
	tp := make(map[int]int)
	fp := make(map[int]int)
	fn := make(map[int]int)
	support := make(map[int]int)

	var correct int
	for i := range truth {
		t, p := truth[i], pred[i]
		classes[t] = struct{}{}
		classes[p] = struct{}{}
		support[t]++
		if t == p {
			correct++
			tp[t]++
		} else {
			fp[p]++
			fn[t]++
		}
	}

	keys := make([]int, 0, len(classes))
	for c := range classes {
		keys = append(keys, c)
	}
	sort.Ints(keys)

	var f1Sum float64
	for _, c := range keys {
		cr := ClassReport{Class: c, Label: strconv.Itoa(c), Support: support[c]}
		if c >= 0 && c < len(labels) {
			cr.Label = labels[c]
		}
		if d := tp[c] + fp[c]; d > 0 {
			cr.Precision = float64(tp[c]) / float64(d)
		}
		if d := tp[c] + fn[c]; d > 0 {
			cr.Recall = float64(tp[c]) / float64(d)
		}
		if s := cr.Precision + cr.Recall; s > 0 {
			cr.F1 = 2 * cr.Precision * cr.Recall / s
		}
		f1Sum += cr.F1
		report = append(report, cr)
	}

	return float64(correct) / float64(len(truth)), f1Sum / float64(len(keys)), report
}

// ROCAUC is the area under the ROC curve, computed as the normalised
// Mann-Whitney U statistic with tied scores sharing their average rank.
// It is 0 when only one class is present.
func ROCAUC(truth []int, scores []float64) float64 {
	n := len(truth)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && scores[idx[j+1]] == scores[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var nPos, nNeg int
	var rankSum float64
	for i, t := range truth {
		if t == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0
	}
	u := rankSum - float64(nPos*(nPos+1))/2
	return u / float64(nPos*nNeg)
}
