package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"credit-scoring/internal/cfg"
	"credit-scoring/internal/ml"
	"credit-scoring/internal/storage"
	"credit-scoring/internal/training"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const kindAll = "all"

var (
	trainKindFlag = &cli.StringFlag{
		Name:  "kind",
		Usage: "Model to train [credit, approval, all]",
		Value: kindAll,
	}

	dataFlag = &cli.StringFlag{
		Name:  "data",
		Usage: "Raw applicant CSV (single kind only; defaults to CREDIT_DATA_CSV or APPROVAL_DATA_CSV)",
	}

	cleanFlag = &cli.StringFlag{
		Name:  "clean",
		Usage: "Write the cleaned CSV here (single kind only; defaults to CLEAN_DATA_DIR/<kind>_clean.csv)",
	}

	reportFlag = &cli.StringFlag{
		Name:  "report",
		Usage: "Directory for the training summary and JSON report",
	}

	outputFlag = &cli.StringFlag{
		Name:  "output",
		Usage: "Artifact path (single kind only; defaults to CREDIT_MODEL_PATH or APPROVAL_MODEL_PATH)",
	}

	activateFlag = &cli.BoolFlag{
		Name:  "activate",
		Usage: "Activate the new version in the model registry",
		Value: true,
	}

	trainCmd = &cli.Command{
		Name:  "train",
		Usage: "Clean the applicant CSV, fit a model and register the artifact",
		UsageText: `creditctl train                                  # train both models from the configured CSVs
   creditctl train --kind credit --data credit.csv  # train only the credit model
   creditctl train --report reports --activate=false`,
		Action: cmdTrain,
		Flags: []cli.Flag{
			trainKindFlag,
			dataFlag,
			cleanFlag,
			reportFlag,
			outputFlag,
			activateFlag,
		},
	}
)

func cmdTrain(c *cli.Context) error {
	s := getSettings(c)

	kinds, err := parseTrainKinds(c.String(trainKindFlag.Name))
	if err != nil {
		return err
	}
	if len(kinds) > 1 {
		for _, name := range []string{dataFlag.Name, cleanFlag.Name, outputFlag.Name} {
			if c.IsSet(name) {
				return fmt.Errorf("--%s needs a single --kind", name)
			}
		}
	}

	models, err := ml.NewModelManager(s.ModelsDir)
	if err != nil {
		return fmt.Errorf("opening model registry: %w", err)
	}

	var store training.ApplicantStore
	if s.DataPath != "" && slices.Contains(kinds, ml.KindApproval) {
		if err := os.MkdirAll(s.DataPath, 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		st, err := storage.New(s.DataPath)
		if err != nil {
			return err
		}
		defer st.Close()
		store = st
	}

	runs := make([]training.Options, 0, len(kinds))
	for _, kind := range kinds {
		runs = append(runs, trainOptions(c, s, kind))
	}

	trainer := training.NewTrainer(s.Training.TrainConfig(), models, store)
	outcomes, err := trainer.RunAll(c.Context, runs)
	if err != nil {
		return err
	}

	if ok, err := printStructured(c, c.App.Writer, outcomes); ok || err != nil {
		return err
	}
	for _, o := range outcomes {
		training.NewReporter(o, "").PrintSummary(c.App.Writer)
		fmt.Fprintln(c.App.Writer)
	}
	return nil
}

func trainOptions(c *cli.Context, s *cfg.Settings, kind ml.Kind) training.Options {
	opts := training.Options{
		Kind:      kind,
		ReportDir: c.String(reportFlag.Name),
		Activate:  c.Bool(activateFlag.Name),
	}

	switch kind {
	case ml.KindCredit:
		opts.DataPath = s.Training.CreditCSV
		opts.OutputPath = s.CreditModelPath
	case ml.KindApproval:
		opts.DataPath = s.Training.ApprovalCSV
		opts.OutputPath = s.ApprovalModelPath
	}
	if s.Training.CleanDir != "" {
		opts.CleanPath = filepath.Join(s.Training.CleanDir, fmt.Sprintf("%s_clean.csv", kind))
	}

	if v := c.String(dataFlag.Name); v != "" {
		opts.DataPath = v
	}
	if v := c.String(cleanFlag.Name); v != "" {
		opts.CleanPath = v
	}
	if v := c.String(outputFlag.Name); v != "" {
		opts.OutputPath = v
	}

	log.Debug().
		Str("kind", string(kind)).
		Str("data", opts.DataPath).
		Str("output", opts.OutputPath).
		Msg("training run configured")
	return opts
}

func parseTrainKinds(v string) ([]ml.Kind, error) {
	switch v {
	case kindAll:
		return []ml.Kind{ml.KindCredit, ml.KindApproval}, nil
	case string(ml.KindCredit), string(ml.KindApproval):
		return []ml.Kind{ml.Kind(v)}, nil
	}
	return nil, fmt.Errorf("unknown model kind %q", v)
}
