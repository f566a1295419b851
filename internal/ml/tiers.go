package ml

// Credit tier upper edges; each band is closed on its upper edge.
var CreditTierEdges = []float64{579, 669, 739, 799}

// CreditTierNames labels the five ordinal bands.
var CreditTierNames = []string{"Poor", "Fair", "Good", "Very Good", "Excellent"}

// CreditTier bins a continuous score into 0..4:
// (-inf,579]=0, (579,669]=1, (669,739]=2, (739,799]=3, (799,inf)=4.
func CreditTier(score float64) int {
	for i, edge := range CreditTierEdges {
		if score <= edge {
			return i
		}
	}
	return len(CreditTierEdges)
}

// CreditTiers bins a slice of scores.
func CreditTiers(scores []float64) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		out[i] = CreditTier(s)
	}
	return out
}

// ApprovalBand describes where an approval probability falls on the
// front-end gauge.
type ApprovalBand struct {
	Label string  `json:"label"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Tip   string  `json:"tip"`
}

var approvalBands = []ApprovalBand{
	{"Poor", 0, 0.25, "Loan approval probability is poor. Consider reducing outstanding debt or improving your credit score."},
	{"Fair", 0.25, 0.5, "Loan approval probability is fair. Paying off credit card debt can help improve your chances."},
	{"Good", 0.5, 0.75, "Loan approval probability is good. Maintain your financial profile to keep improving."},
	{"Excellent", 0.75, 1, "Loan approval probability is excellent. Great job keeping a strong credit history!"},
}

// BandFor returns the gauge band for probability p. Bands are closed on the
// lower edge; 1.0 belongs to Excellent.
func BandFor(p float64) ApprovalBand {
	for _, b := range approvalBands[:len(approvalBands)-1] {
		if p < b.High {
			return b
		}
	}
	return approvalBands[len(approvalBands)-1]
}
