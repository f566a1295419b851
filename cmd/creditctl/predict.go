package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"credit-scoring/internal/client"
	"credit-scoring/internal/ml"
	"credit-scoring/internal/service"

	"github.com/urfave/cli/v2"
)

var (
	serverFlag = &cli.StringFlag{
		Name:  "server",
		Usage: "Base URL of the scoring API (defaults to http://localhost:PORT)",
	}

	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Request timeout",
		Value: 5 * time.Second,
	}

	predictKindFlag = &cli.StringFlag{
		Name:  "kind",
		Usage: "Model to query [credit, approval]",
		Value: string(ml.KindApproval),
	}

	fileFlag = &cli.StringFlag{
		Name:  "file",
		Usage: "JSON object with applicant fields ('-' reads stdin)",
	}

	predictCmd = &cli.Command{
		Name:      "predict",
		Usage:     "Score one applicant against the running API",
		ArgsUsage: "[Field=value ...]",
		UsageText: `creditctl predict --kind credit --file applicant.json
   creditctl predict Age=35 Marital_Status=Married Annual_Income=60000 ...`,
		Action: cmdPredict,
		Flags: []cli.Flag{
			serverFlag,
			timeoutFlag,
			predictKindFlag,
			fileFlag,
		},
	}

	sampleCmd = &cli.Command{
		Name:   "sample",
		Usage:  "Fetch a random sample of stored applicants",
		Action: cmdSample,
		Flags:  []cli.Flag{serverFlag, timeoutFlag},
	}

	statusCmd = &cli.Command{
		Name:   "status",
		Usage:  "Show API health and the loaded models",
		Action: cmdStatus,
		Flags:  []cli.Flag{serverFlag, timeoutFlag},
	}
)

func newClient(c *cli.Context) *client.Client {
	base := c.String(serverFlag.Name)
	if base == "" {
		base = "http://localhost" + getSettings(c).Addr()
	}
	return client.New(base, c.Duration(timeoutFlag.Name))
}

func cmdPredict(c *cli.Context) error {
	kind := ml.Kind(c.String(predictKindFlag.Name))
	if kind != ml.KindCredit && kind != ml.KindApproval {
		return fmt.Errorf("unknown model kind %q", kind)
	}

	fields := map[string]any{}
	if path := c.String(fileFlag.Name); path != "" {
		if err := readFields(path, fields); err != nil {
			return err
		}
	}
	if err := parseFieldArgs(c.Args().Slice(), fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("no applicant fields given")
	}

	value, err := newClient(c).Predict(c.Context, kind, fields)
	if err != nil {
		return err
	}
	res := service.Result{Kind: kind, Value: value}

	out := struct {
		Kind  ml.Kind          `json:"kind" yaml:"kind"`
		Value float64          `json:"value" yaml:"value"`
		Tier  string           `json:"tier,omitempty" yaml:"tier,omitempty"`
		Band  *ml.ApprovalBand `json:"band,omitempty" yaml:"band,omitempty"`
	}{Kind: kind, Value: value, Tier: res.Tier()}
	if band, ok := res.Band(); ok {
		out.Band = &band
	}

	if ok, err := printStructured(c, c.App.Writer, out); ok || err != nil {
		return err
	}
	if kind == ml.KindCredit {
		fmt.Fprintf(c.App.Writer, "Credit score: %.0f (%s)\n", value, out.Tier)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "Approval probability: %.1f%% (%s)\n", value*100, out.Band.Label)
	fmt.Fprintln(c.App.Writer, out.Band.Tip)
	return nil
}

func readFields(path string, into map[string]any) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&into); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// parseFieldArgs reads Field=value pairs. Values that parse as numbers are
// sent as numbers.
func parseFieldArgs(args []string, into map[string]any) error {
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return fmt.Errorf("expected Field=value, got %q", arg)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			into[name] = f
			continue
		}
		into[name] = value
	}
	return nil
}

func cmdSample(c *cli.Context) error {
	points, err := newClient(c).Scatter(c.Context)
	if err != nil {
		return err
	}
	if ok, err := printStructured(c, c.App.Writer, points); ok || err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREDIT SCORE\tANNUAL INCOME\tAPPROVED")
	for _, p := range points {
		fmt.Fprintf(w, "%.0f\t%.2f\t%t\n", p.CreditScore, p.AnnualIncome, p.LoanApprovalStatus == 1)
	}
	return w.Flush()
}

func cmdStatus(c *cli.Context) error {
	cl := newClient(c)
	health, err := cl.Health(c.Context)
	if err != nil {
		return err
	}
	info, err := cl.ModelInfo(c.Context)
	if err != nil {
		return err
	}

	status := struct {
		Health service.HealthStatus `json:"health" yaml:"health"`
		Models []service.ModelInfo  `json:"models" yaml:"models"`
	}{health, info}
	if ok, err := printStructured(c, c.App.Writer, status); ok || err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Healthy: %t (up %.0fs, %d predictions, %d errors, cache hit rate %.1f%%)\n",
		health.Healthy, health.UptimeSeconds, health.PredictionCount, health.ErrorCount, health.CacheHitRate*100)
	if health.LastError != "" {
		fmt.Fprintf(c.App.Writer, "Last error: %s\n", health.LastError)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tCREATED\tAGE\tTRAIN ROWS\tTEST ROWS\tTOP FEATURE")
	for _, m := range info {
		top := "-"
		if len(m.TopFeatures) > 0 {
			top = m.TopFeatures[0].Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			m.Kind, m.CreatedAt.Format(time.RFC3339),
			(time.Duration(m.AgeSeconds) * time.Second).String(),
			m.TrainRows, m.TestRows, top)
	}
	return w.Flush()
}
