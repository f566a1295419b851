package main

import (
	"fmt"
	"text/tabwriter"

	"credit-scoring/internal/ml"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var (
	modelsKindFlag = &cli.StringFlag{
		Name:  "kind",
		Usage: "Limit to one model kind [credit, approval]",
	}

	modelsCmd = &cli.Command{
		Name:  "models",
		Usage: "Inspect and manage registered model versions",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List registered versions, newest first",
				Action: cmdModelsList,
				Flags:  []cli.Flag{modelsKindFlag},
			},
			{
				Name:      "activate",
				Usage:     "Make a version the active one for its kind",
				ArgsUsage: "VERSION",
				Action:    cmdModelsActivate,
			},
			{
				Name:      "rollback",
				Usage:     "Re-activate the version registered before the active one",
				ArgsUsage: "KIND",
				Action:    cmdModelsRollback,
			},
		},
	}
)

func openRegistry(c *cli.Context) (*ml.ModelManager, error) {
	mm, err := ml.NewModelManager(getSettings(c).ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("opening model registry: %w", err)
	}
	return mm, nil
}

func cmdModelsList(c *cli.Context) error {
	mm, err := openRegistry(c)
	if err != nil {
		return err
	}
	versions := mm.ListVersions(ml.Kind(c.String(modelsKindFlag.Name)))

	if ok, err := printStructured(c, c.App.Writer, versions); ok || err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(c.App.Writer, "no registered models")
		return nil
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tKIND\tCREATED\tSAMPLES\tMAE\tACCURACY\tMACRO F1\tACTIVE")
	for _, v := range versions {
		active := ""
		if v.IsActive {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.4f\t%.4f\t%s\n",
			v.Version, v.Kind, v.CreatedAt.Format("2006-01-02 15:04:05"),
			v.Metrics.TrainingSamples, v.Metrics.MAE, v.Metrics.Accuracy, v.Metrics.MacroF1, active)
	}
	return w.Flush()
}

func cmdModelsActivate(c *cli.Context) error {
	version := c.Args().First()
	if version == "" {
		return fmt.Errorf("missing VERSION argument")
	}
	mm, err := openRegistry(c)
	if err != nil {
		return err
	}
	if err := mm.ActivateVersion(version); err != nil {
		return err
	}
	log.Info().Str("version", version).Msg("model version activated")
	return nil
}

func cmdModelsRollback(c *cli.Context) error {
	kind := ml.Kind(c.Args().First())
	if kind != ml.KindCredit && kind != ml.KindApproval {
		return fmt.Errorf("expected KIND credit or approval, got %q", kind)
	}
	mm, err := openRegistry(c)
	if err != nil {
		return err
	}
	v, err := mm.Rollback(kind)
	if err != nil {
		return err
	}
	log.Info().Str("version", v.Version).Str("path", v.Path).Msg("rolled back")
	fmt.Fprintf(c.App.Writer, "active %s model: %s (%s)\n", kind, v.Version, v.Path)
	return nil
}
