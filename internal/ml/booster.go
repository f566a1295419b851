package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"
)

// BoosterConfig holds gradient boosting hyperparameters. Field meanings
// follow the usual XGBoost names.
type BoosterConfig struct {
	NEstimators         int     `json:"n_estimators" yaml:"nEstimators"`
	LearningRate        float64 `json:"learning_rate" yaml:"learningRate"`
	MaxDepth            int     `json:"max_depth" yaml:"maxDepth"`
	Subsample           float64 `json:"subsample" yaml:"subsample"`
	ColSampleByTree     float64 `json:"colsample_bytree" yaml:"colsampleByTree"`
	Lambda              float64 `json:"lambda" yaml:"lambda"`
	MinChildWeight      float64 `json:"min_child_weight" yaml:"minChildWeight"`
	MaxBins             int     `json:"max_bins" yaml:"maxBins"`
	EarlyStoppingRounds int     `json:"early_stopping_rounds" yaml:"earlyStoppingRounds"`
	Seed                int64   `json:"seed" yaml:"seed"`
}

// DefaultBoosterConfig mirrors the hyperparameters the credit model has
// always been trained with.
func DefaultBoosterConfig() BoosterConfig {
	return BoosterConfig{
		NEstimators:         1500,
		LearningRate:        0.05,
		MaxDepth:            5,
		Subsample:           0.85,
		ColSampleByTree:     0.8,
		Lambda:              1,
		MinChildWeight:      1,
		MaxBins:             256,
		EarlyStoppingRounds: 50,
		Seed:                42,
	}
}

func (c BoosterConfig) validate() error {
	switch {
	case c.NEstimators <= 0:
		return fmt.Errorf("n_estimators must be positive, got %d", c.NEstimators)
	case c.LearningRate <= 0 || c.LearningRate > 1:
		return fmt.Errorf("learning rate must be in (0, 1], got %f", c.LearningRate)
	case c.MaxDepth <= 0:
		return fmt.Errorf("max depth must be positive, got %d", c.MaxDepth)
	case c.Subsample <= 0 || c.Subsample > 1:
		return fmt.Errorf("subsample must be in (0, 1], got %f", c.Subsample)
	case c.ColSampleByTree <= 0 || c.ColSampleByTree > 1:
		return fmt.Errorf("colsample_bytree must be in (0, 1], got %f", c.ColSampleByTree)
	case c.MaxBins < 2 || c.MaxBins > math.MaxUint16:
		return fmt.Errorf("max bins must be in [2, %d], got %d", math.MaxUint16, c.MaxBins)
	case c.Lambda < 0 || c.MinChildWeight < 0:
		return fmt.Errorf("lambda and min_child_weight must be non-negative")
	}
	return nil
}

// GradientBoostedRegressor is an additive ensemble of regression trees
// trained on squared error.
type GradientBoostedRegressor struct {
	BaseScore     float64          `json:"base_score"`
	Trees         []RegressionTree `json:"trees"`
	BestIteration int              `json:"best_iteration"`
	BestScore     float64          `json:"best_score"`
	NumFeatures   int              `json:"num_features"`
}

// BoostingRound is the validation error after one round.
type BoostingRound struct {
	Round int     `json:"round"`
	MAE   float64 `json:"mae"`
}

// FitBooster trains on (x, y). When xVal is non-empty the validation MAE is
// tracked each round, training stops after EarlyStoppingRounds rounds
// without improvement, and the ensemble is cut back to the best round.
func FitBooster(cfg BoosterConfig, x [][]float64, y []float64, xVal [][]float64, yVal []float64) (*GradientBoostedRegressor, []BoostingRound, error) {
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	if len(x) == 0 || len(x) != len(y) {
		return nil, nil, fmt.Errorf("training data has %d rows and %d targets", len(x), len(y))
	}
	if len(xVal) != len(yVal) {
		return nil, nil, fmt.Errorf("validation data has %d rows and %d targets", len(xVal), len(yVal))
	}

	nf := len(x[0])
	var base float64
	for _, v := range y {
		base += v
	}
	base /= float64(len(y))

	model := &GradientBoostedRegressor{
		BaseScore:   base,
		NumFeatures: nf,
		BestScore:   math.Inf(1),
	}

	data := newBinnedMatrix(x, cfg.MaxBins)
	rng := rand.New(rand.NewSource(cfg.Seed))

	pred := make([]float64, len(x))
	for i := range pred {
		pred[i] = base
	}
	valPred := make([]float64, len(xVal))
	for i := range valPred {
		valPred[i] = base
	}

	builder := &treeBuilder{
		params: treeParams{
			maxDepth:       cfg.MaxDepth,
			lambda:         cfg.Lambda,
			minChildWeight: cfg.MinChildWeight,
			learningRate:   cfg.LearningRate,
		},
		data: data,
		grad: make([]float64, len(x)),
		hess: make([]float64, len(x)),
	}

	nCols := int(math.Round(cfg.ColSampleByTree * float64(nf)))
	if nCols < 1 {
		nCols = 1
	}

	var history []BoostingRound
	rows := make([]int, 0, len(x))

	for round := 0; round < cfg.NEstimators; round++ {
		for i := range x {
			builder.grad[i] = pred[i] - y[i]
			builder.hess[i] = 1
		}

		rows = rows[:0]
		for i := range x {
			if cfg.Subsample >= 1 || rng.Float64() < cfg.Subsample {
				rows = append(rows, i)
			}
		}
		if len(rows) == 0 {
			rows = append(rows, rng.Intn(len(x)))
		}

		cols := rng.Perm(nf)[:nCols]
		sort.Ints(cols)
		builder.features = cols

		tree := builder.build(rows)
		model.Trees = append(model.Trees, tree)

		for i := range x {
			pred[i] += tree.predict(x[i])
		}

		if len(xVal) == 0 {
			model.BestIteration = round
			continue
		}

		for i := range xVal {
			valPred[i] += tree.predict(xVal[i])
		}
		mae := MeanAbsoluteError(yVal, valPred)
		history = append(history, BoostingRound{Round: round, MAE: mae})

		if mae < model.BestScore {
			model.BestScore = mae
			model.BestIteration = round
		}
		if round%100 == 0 {
			log.Debug().Int("round", round).Float64("validation_mae", mae).Msg("boosting progress")
		}
		if cfg.EarlyStoppingRounds > 0 && round-model.BestIteration >= cfg.EarlyStoppingRounds {
			log.Info().
				Int("round", round).
				Int("best_iteration", model.BestIteration).
				Float64("best_mae", model.BestScore).
				Msg("early stopping")
			break
		}
	}

	if len(xVal) == 0 {
		model.BestScore = 0
	}
	model.Trees = model.Trees[:model.BestIteration+1]
	return model, history, nil
}

// Predict scores one transformed row.
func (m *GradientBoostedRegressor) Predict(x []float64) float64 {
	score := m.BaseScore
	for i := range m.Trees {
		score += m.Trees[i].predict(x)
	}
	return score
}

// FeatureGain sums split gain per input column across all trees.
func (m *GradientBoostedRegressor) FeatureGain() []float64 {
	gain := make([]float64, m.NumFeatures)
	for _, t := range m.Trees {
		for _, n := range t.Nodes {
			if !n.Leaf {
				gain[n.Feature] += n.Gain
			}
		}
	}
	return gain
}

func (m *GradientBoostedRegressor) validate(width int) error {
	if m.NumFeatures != width {
		return fmt.Errorf("booster expects %d features, transform yields %d", m.NumFeatures, width)
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("booster has no trees")
	}
	for i := range m.Trees {
		if err := m.Trees[i].validate(width); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
