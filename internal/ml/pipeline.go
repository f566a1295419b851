package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"credit-scoring/internal/features"

	"github.com/rs/zerolog/log"
)

// Kind names the model a pipeline serves.
type Kind string

const (
	KindCredit   Kind = "credit"
	KindApproval Kind = "approval"
)

// ParseKind accepts "credit" or "approval".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCredit, KindApproval:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown model kind %q", s)
}

const artifactFormat = 1

// approvalLabels names the classes of Loan_Approval_Status.
var approvalLabels = []string{"Rejected", "Approved"}

// TrainConfig controls splitting and model hyperparameters.
type TrainConfig struct {
	Seed            int64         `json:"seed"`
	TestSize        float64       `json:"test_size"`
	ValidationSize  float64       `json:"validation_size"`
	Booster         BoosterConfig `json:"booster"`
	LogisticC       float64       `json:"logistic_c"`
	LogisticMaxIter int           `json:"logistic_max_iter"`
}

// DefaultTrainConfig returns the settings both models are trained with
// unless overridden.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Seed:            42,
		TestSize:        0.2,
		ValidationSize:  0.1,
		Booster:         DefaultBoosterConfig(),
		LogisticC:       1,
		LogisticMaxIter: 1000,
	}
}

// Metadata describes how an artifact was produced.
type Metadata struct {
	Kind           Kind            `json:"kind"`
	CreatedAt      time.Time       `json:"created_at"`
	TrainRows      int             `json:"train_rows"`
	ValidationRows int             `json:"validation_rows"`
	TestRows       int             `json:"test_rows"`
	Config         TrainConfig     `json:"config"`
	Evaluation     *Evaluation     `json:"evaluation,omitempty"`
	Features       []string        `json:"features"`
	Importance     []FeatureWeight `json:"importance"`
	History        []BoostingRound `json:"history,omitempty"`
}

type artifact struct {
	Format     int                       `json:"format"`
	Metadata   Metadata                  `json:"metadata"`
	Transform  *ColumnTransformer        `json:"transform"`
	Vocabulary features.Vocabulary       `json:"vocabulary,omitempty"`
	Booster    *GradientBoostedRegressor `json:"booster,omitempty"`
	Classifier *LogisticRegression       `json:"classifier,omitempty"`
}

// TrainedPipeline bundles a fitted transform with its model. It is never
// modified after fit or load, so one value may serve concurrent requests.
type TrainedPipeline struct {
	a artifact
}

// ArtifactError reports a pipeline file that is missing, unreadable or
// internally inconsistent.
type ArtifactError struct {
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("model artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// FitCredit trains the credit-score regressor. Rows are split by credit tier
// of the target into train and test, and the train part is split again to
// hold out an early-stopping validation slice. Transform statistics come
// from the remaining fit rows only.
func FitCredit(rows []features.FeatureVector, targets []float64, cfg TrainConfig) (*TrainedPipeline, *Evaluation, error) {
	if len(rows) != len(targets) {
		return nil, nil, fmt.Errorf("have %d rows and %d targets", len(rows), len(targets))
	}

	strata := CreditTiers(targets)
	trainIdx, testIdx, err := StratifiedSplit(strata, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, nil, fmt.Errorf("train/test split: %w", err)
	}

	fitIdx, valIdx := trainIdx, []int(nil)
	if cfg.ValidationSize > 0 {
		fitLocal, valLocal, err := StratifiedSplit(pick(strata, trainIdx), cfg.ValidationSize, cfg.Seed)
		if err != nil {
			return nil, nil, fmt.Errorf("validation split: %w", err)
		}
		fitIdx, valIdx = pick(trainIdx, fitLocal), pick(trainIdx, valLocal)
	}

	transform, err := FitColumnTransformer(features.CreditNumericColumns, features.CreditCategoricalColumns, pick(rows, fitIdx))
	if err != nil {
		return nil, nil, err
	}

	xFit, err := transform.TransformAll(pick(rows, fitIdx))
	if err != nil {
		return nil, nil, err
	}
	xVal, err := transform.TransformAll(pick(rows, valIdx))
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Int("fit_rows", len(fitIdx)).
		Int("validation_rows", len(valIdx)).
		Int("test_rows", len(testIdx)).
		Int("width", transform.Width()).
		Msg("training credit model")

	booster, history, err := FitBooster(cfg.Booster, xFit, pick(targets, fitIdx), xVal, pick(targets, valIdx))
	if err != nil {
		return nil, nil, fmt.Errorf("fit booster: %w", err)
	}

	p := &TrainedPipeline{a: artifact{
		Format:    artifactFormat,
		Transform: transform,
		Booster:   booster,
		Metadata: Metadata{
			Kind:           KindCredit,
			CreatedAt:      time.Now().UTC(),
			TrainRows:      len(fitIdx),
			ValidationRows: len(valIdx),
			TestRows:       len(testIdx),
			Config:         cfg,
			Features:       transform.OutputNames(),
			History:        history,
		},
	}}
	p.a.Metadata.Importance = rankImportance(p.a.Metadata.Features, booster.FeatureGain())

	eval, err := p.evaluateCredit(pick(rows, testIdx), pick(targets, testIdx))
	if err != nil {
		return nil, nil, err
	}
	p.a.Metadata.Evaluation = eval
	return p, eval, nil
}

func (p *TrainedPipeline) evaluateCredit(rows []features.FeatureVector, targets []float64) (*Evaluation, error) {
	pred := make([]float64, len(rows))
	for i, row := range rows {
		v, err := p.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("evaluate row %d: %w", i, err)
		}
		pred[i] = v
	}

	acc, f1, report := Classification(CreditTiers(targets), CreditTiers(pred), CreditTierNames)
	return &Evaluation{
		TestRows:      len(rows),
		MAE:           MeanAbsoluteError(targets, pred),
		Accuracy:      acc,
		MacroF1:       f1,
		BestIteration: p.a.Booster.BestIteration,
		Classes:       report,
	}, nil
}

// FitApproval trains the loan-approval classifier. vocab must be the
// vocabulary rows were derived with; it is stored in the artifact so serving
// encodes categories identically.
func FitApproval(rows []features.FeatureVector, labels []int, vocab features.Vocabulary, cfg TrainConfig) (*TrainedPipeline, *Evaluation, error) {
	if len(rows) != len(labels) {
		return nil, nil, fmt.Errorf("have %d rows and %d labels", len(rows), len(labels))
	}
	if err := checkVocabulary(vocab); err != nil {
		return nil, nil, err
	}

	trainIdx, testIdx, err := StratifiedSplit(labels, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, nil, fmt.Errorf("train/test split: %w", err)
	}

	transform, err := FitColumnTransformer(features.ApprovalNumericColumns, features.ApprovalCategoricalColumns, pick(rows, trainIdx))
	if err != nil {
		return nil, nil, err
	}
	xTrain, err := transform.TransformAll(pick(rows, trainIdx))
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Int("train_rows", len(trainIdx)).
		Int("test_rows", len(testIdx)).
		Int("width", transform.Width()).
		Msg("training approval model")

	clf, err := FitLogistic(xTrain, pick(labels, trainIdx), cfg.LogisticC, cfg.LogisticMaxIter)
	if err != nil {
		return nil, nil, fmt.Errorf("fit classifier: %w", err)
	}

	p := &TrainedPipeline{a: artifact{
		Format:     artifactFormat,
		Transform:  transform,
		Vocabulary: copyVocabulary(vocab),
		Classifier: clf,
		Metadata: Metadata{
			Kind:      KindApproval,
			CreatedAt: time.Now().UTC(),
			TrainRows: len(trainIdx),
			TestRows:  len(testIdx),
			Config:    cfg,
			Features:  transform.OutputNames(),
		},
	}}
	p.a.Metadata.Importance = rankImportance(p.a.Metadata.Features, clf.Coef)

	eval, err := p.evaluateApproval(pick(rows, testIdx), pick(labels, testIdx))
	if err != nil {
		return nil, nil, err
	}
	p.a.Metadata.Evaluation = eval
	return p, eval, nil
}

func (p *TrainedPipeline) evaluateApproval(rows []features.FeatureVector, labels []int) (*Evaluation, error) {
	probs := make([]float64, len(rows))
	pred := make([]int, len(rows))
	for i, row := range rows {
		v, err := p.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("evaluate row %d: %w", i, err)
		}
		probs[i] = v
		if v >= 0.5 {
			pred[i] = 1
		}
	}

	acc, f1, report := Classification(labels, pred, approvalLabels)
	return &Evaluation{
		TestRows: len(rows),
		Accuracy: acc,
		MacroF1:  f1,
		ROCAUC:   ROCAUC(labels, probs),
		Classes:  report,
	}, nil
}

// Kind reports which model the pipeline serves.
func (p *TrainedPipeline) Kind() Kind { return p.a.Metadata.Kind }

// Metadata returns the training metadata recorded in the artifact.
func (p *TrainedPipeline) Metadata() Metadata { return p.a.Metadata }

// Vocabulary returns a copy of the category vocabulary of an approval
// pipeline; nil for credit.
func (p *TrainedPipeline) Vocabulary() features.Vocabulary {
	return copyVocabulary(p.a.Vocabulary)
}

// RequiredFields lists the request fields this pipeline derives from.
func (p *TrainedPipeline) RequiredFields() []string {
	if p.a.Metadata.Kind == KindApproval {
		return features.ApprovalRequiredFields
	}
	return features.CreditRequiredFields
}

// Derive builds the feature vector this pipeline expects from a raw record.
func (p *TrainedPipeline) Derive(rec features.ApplicantRecord) (features.FeatureVector, error) {
	if p.a.Metadata.Kind == KindApproval {
		return features.DeriveApproval(rec, p.a.Vocabulary)
	}
	return features.Derive(rec)
}

// Predict transforms fv and runs the model: a credit score for credit
// pipelines, the approval probability for approval pipelines.
func (p *TrainedPipeline) Predict(fv features.FeatureVector) (float64, error) {
	x, err := p.a.Transform.Transform(fv)
	if err != nil {
		return 0, err
	}
	if p.a.Metadata.Kind == KindApproval {
		return p.a.Classifier.PredictProba(x), nil
	}
	return p.a.Booster.Predict(x), nil
}

// Save writes the pipeline as JSON. The file is replaced atomically.
func (p *TrainedPipeline) Save(path string) error {
	data, err := json.Marshal(p.a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install artifact: %w", err)
	}
	return nil
}

// LoadPipeline reads and checks a saved pipeline. Every failure is an
// *ArtifactError.
func LoadPipeline(path string) (*TrainedPipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &ArtifactError{Path: path, Err: fmt.Errorf("decode: %w", err)}
	}
	p := &TrainedPipeline{a: a}
	if err := p.validate(); err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	return p, nil
}

func (p *TrainedPipeline) validate() error {
	a := p.a
	if a.Format != artifactFormat {
		return fmt.Errorf("unsupported artifact format %d", a.Format)
	}
	if a.Transform == nil || a.Transform.Scaler == nil || a.Transform.Encoder == nil {
		return errors.New("artifact has no transform")
	}
	if err := a.Transform.validate(); err != nil {
		return err
	}

	width := a.Transform.Width()
	switch a.Metadata.Kind {
	case KindCredit:
		if a.Booster == nil {
			return errors.New("credit artifact has no booster")
		}
		return a.Booster.validate(width)
	case KindApproval:
		if a.Classifier == nil {
			return errors.New("approval artifact has no classifier")
		}
		if err := checkVocabulary(a.Vocabulary); err != nil {
			return err
		}
		return a.Classifier.validate(width)
	default:
		return fmt.Errorf("unknown model kind %q", a.Metadata.Kind)
	}
}

func checkVocabulary(vocab features.Vocabulary) error {
	for _, col := range features.ApprovalCategoricalColumns {
		if len(vocab[col]) == 0 {
			return fmt.Errorf("vocabulary has no categories for %s", col)
		}
		if !sort.StringsAreSorted(vocab[col]) {
			return fmt.Errorf("vocabulary categories for %s are not sorted", col)
		}
	}
	return nil
}

func copyVocabulary(v features.Vocabulary) features.Vocabulary {
	if v == nil {
		return nil
	}
	out := make(features.Vocabulary, len(v))
	for k, cats := range v {
		out[k] = append([]string(nil), cats...)
	}
	return out
}
