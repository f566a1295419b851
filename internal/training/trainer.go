// Package training runs the offline pipeline: load and clean a CSV, fit a
// model, report on it and register the artifact.
package training

import (
	"context"
	"fmt"
	"time"

	"credit-scoring/internal/dataset"
	"credit-scoring/internal/features"
	"credit-scoring/internal/ml"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ApplicantStore receives the cleaned approval applicants for the scatter
// endpoint.
type ApplicantStore interface {
	ReplaceApplicants(records []features.ApplicantRecord) error
}

// Options describes one training run.
type Options struct {
	Kind ml.Kind
	// DataPath is the raw applicant CSV.
	DataPath string
	// CleanPath, when set, receives the cleaned CSV.
	CleanPath string
	// ReportDir, when set, receives the summary and JSON report.
	ReportDir string
	// OutputPath, when set, receives a copy of the artifact outside the
	// registry (the path the server loads). With a registry it is only
	// written for activated runs.
	OutputPath string
	// Activate makes the registered version the active one.
	Activate bool
}

// Outcome is everything a run produced.
type Outcome struct {
	Kind         ml.Kind             `json:"kind"`
	Source       string              `json:"source"`
	StartedAt    time.Time           `json:"started_at"`
	Duration     time.Duration       `json:"duration"`
	Cleaning     dataset.Report      `json:"cleaning"`
	Metadata     ml.Metadata         `json:"metadata"`
	Version      *ml.ModelVersion    `json:"version,omitempty"`
	ArtifactPath string              `json:"artifact_path,omitempty"`
	CleanPath    string              `json:"clean_path,omitempty"`
	Pipeline     *ml.TrainedPipeline `json:"-"`
}

// Trainer fits pipelines with a fixed configuration. models and store are
// optional.
type Trainer struct {
	cfg    ml.TrainConfig
	models *ml.ModelManager
	store  ApplicantStore
}

// NewTrainer creates a trainer.
func NewTrainer(cfg ml.TrainConfig, models *ml.ModelManager, store ApplicantStore) *Trainer {
	return &Trainer{cfg: cfg, models: models, store: store}
}

// Run executes one training run. Cancellation is checked between stages;
// fitting itself is not interrupted.
func (t *Trainer) Run(ctx context.Context, opts Options) (*Outcome, error) {
	started := time.Now()

	schema := dataset.CreditSchema
	if opts.Kind == ml.KindApproval {
		schema = dataset.ApprovalSchema
	} else if opts.Kind != ml.KindCredit {
		return nil, fmt.Errorf("unknown model kind %q", opts.Kind)
	}

	ds, err := dataset.Load(opts.DataPath, schema)
	if err != nil {
		return nil, err
	}
	if len(ds.Records) == 0 {
		return nil, fmt.Errorf("%s: no usable rows after cleaning", opts.DataPath)
	}

	out := &Outcome{
		Kind:      opts.Kind,
		Source:    opts.DataPath,
		StartedAt: started.UTC(),
		Cleaning:  ds.Report,
	}

	if opts.CleanPath != "" {
		write := dataset.WriteCreditCSV
		if opts.Kind == ml.KindApproval {
			write = dataset.WriteApprovalCSV
		}
		if err := dataset.SaveCSV(opts.CleanPath, ds.Records, write); err != nil {
			return nil, err
		}
		out.CleanPath = opts.CleanPath
		log.Info().Str("file", opts.CleanPath).Int("rows", len(ds.Records)).Msg("cleaned CSV written")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		pipeline *ml.TrainedPipeline
		eval     *ml.Evaluation
	)
	if opts.Kind == ml.KindCredit {
		pipeline, eval, err = t.fitCredit(ds.Records)
	} else {
		pipeline, eval, err = t.fitApproval(ds.Records)
	}
	if err != nil {
		return nil, fmt.Errorf("fit %s model: %w", opts.Kind, err)
	}
	out.Pipeline = pipeline
	out.Metadata = pipeline.Metadata()

	log.Info().
		Str("kind", string(opts.Kind)).
		Int("test_rows", eval.TestRows).
		Float64("mae", eval.MAE).
		Float64("accuracy", eval.Accuracy).
		Float64("macro_f1", eval.MacroF1).
		Float64("roc_auc", eval.ROCAUC).
		Msg("model evaluated")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// an unactivated version must not replace the served artifact
	if opts.OutputPath != "" && (t.models == nil || opts.Activate) {
		if err := pipeline.Save(opts.OutputPath); err != nil {
			return nil, err
		}
		out.ArtifactPath = opts.OutputPath
	}

	if t.models != nil {
		v, err := t.models.Register(pipeline)
		if err != nil {
			return nil, fmt.Errorf("register model: %w", err)
		}
		if opts.Activate {
			if err := t.models.ActivateVersion(v.Version); err != nil {
				return nil, err
			}
			v.IsActive = true
		}
		out.Version = &v
		if out.ArtifactPath == "" {
			out.ArtifactPath = v.Path
		}
	}

	if t.store != nil && opts.Kind == ml.KindApproval {
		if err := t.store.ReplaceApplicants(ds.Records); err != nil {
			return nil, fmt.Errorf("store applicants: %w", err)
		}
		log.Info().Int("rows", len(ds.Records)).Msg("applicants stored for scatter sampling")
	}

	out.Duration = time.Since(started)

	if opts.ReportDir != "" {
		if err := NewReporter(out, opts.ReportDir).GenerateReport(); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// RunAll trains several models concurrently and stops at the first failure.
func (t *Trainer) RunAll(ctx context.Context, runs []Options) ([]*Outcome, error) {
	outcomes := make([]*Outcome, len(runs))
	g, ctx := errgroup.WithContext(ctx)
	for i, opts := range runs {
		i, opts := i, opts
		g.Go(func() error {
			o, err := t.Run(ctx, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", opts.Kind, err)
			}
			outcomes[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (t *Trainer) fitCredit(records []features.ApplicantRecord) (*ml.TrainedPipeline, *ml.Evaluation, error) {
	rows := make([]features.FeatureVector, 0, len(records))
	targets := make([]float64, 0, len(records))
	for _, rec := range records {
		fv, err := features.Derive(rec)
		if err != nil {
			// rows were validated during cleaning
			return nil, nil, err
		}
		rows = append(rows, fv)
		targets = append(targets, rec.CreditScore)
	}
	return ml.FitCredit(rows, targets, t.cfg)
}

func (t *Trainer) fitApproval(records []features.ApplicantRecord) (*ml.TrainedPipeline, *ml.Evaluation, error) {
	vocab := features.FitVocabulary(records)

	rows := make([]features.FeatureVector, 0, len(records))
	labels := make([]int, 0, len(records))
	for _, rec := range records {
		fv, err := features.DeriveApproval(rec, vocab)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, fv)
		labels = append(labels, rec.LoanApprovalStatus)
	}
	return ml.FitApproval(rows, labels, vocab, t.cfg)
}
