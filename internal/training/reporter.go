package training

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"credit-scoring/internal/ml"

	"github.com/rs/zerolog/log"
)

// Reporter writes training reports
type Reporter struct {
	outcome    *Outcome
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(outcome *Outcome, outputPath string) *Reporter {
	return &Reporter{
		outcome:    outcome,
		outputPath: outputPath,
	}
}

// GenerateReport generates all report formats
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}

	if err := r.generateImportance(); err != nil {
		return err
	}

	return r.generateJSONReport()
}

func (r *Reporter) path(suffix string) string {
	return filepath.Join(r.outputPath, fmt.Sprintf("%s_%s", r.outcome.Kind, suffix))
}

// generateSummary generates a human-readable summary
func (r *Reporter) generateSummary() error {
	summaryPath := r.path("training_summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	r.writeSummary(file)

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

func (r *Reporter) writeSummary(w io.Writer) {
	o := r.outcome
	meta := o.Metadata

	fmt.Fprintf(w, "TRAINING SUMMARY: %s model\n", o.Kind)
	fmt.Fprintf(w, "==========================\n\n")

	fmt.Fprintf(w, "Source: %s\n", o.Source)
	fmt.Fprintf(w, "Started: %s\n", o.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration: %s\n\n", o.Duration.Round(time.Millisecond))

	fmt.Fprintf(w, "DATA\n")
	fmt.Fprintf(w, "----\n")
	fmt.Fprintf(w, "Rows read: %d\n", o.Cleaning.TotalRows)
	fmt.Fprintf(w, "Duplicates dropped: %d\n", o.Cleaning.Duplicates)
	fmt.Fprintf(w, "Invalid dropped: %d\n", o.Cleaning.Invalid)
	reasons := make([]string, 0, len(o.Cleaning.ByReason))
	for reason := range o.Cleaning.ByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(w, "  %s: %d\n", reason, o.Cleaning.ByReason[reason])
	}
	fmt.Fprintf(w, "Train / validation / test: %d / %d / %d\n\n", meta.TrainRows, meta.ValidationRows, meta.TestRows)

	if e := meta.Evaluation; e != nil {
		fmt.Fprintf(w, "EVALUATION\n")
		fmt.Fprintf(w, "----------\n")
		if o.Kind == ml.KindCredit {
			fmt.Fprintf(w, "MAE: %.2f\n", e.MAE)
			fmt.Fprintf(w, "Best iteration: %d\n", e.BestIteration)
			fmt.Fprintf(w, "Tier accuracy: %.2f%%\n", e.Accuracy*100)
		} else {
			fmt.Fprintf(w, "Accuracy: %.2f%%\n", e.Accuracy*100)
			fmt.Fprintf(w, "ROC AUC: %.4f\n", e.ROCAUC)
		}
		fmt.Fprintf(w, "Macro F1: %.4f\n", e.MacroF1)
		for _, c := range e.Classes {
			fmt.Fprintf(w, "  %-10s precision %.2f  recall %.2f  f1 %.2f  support %d\n",
				c.Label, c.Precision, c.Recall, c.F1, c.Support)
		}
		fmt.Fprintln(w)
	}

	if len(meta.Importance) > 0 {
		fmt.Fprintf(w, "TOP FEATURES\n")
		fmt.Fprintf(w, "------------\n")
		for i, fw := range meta.Importance {
			if i == 10 {
				break
			}
			fmt.Fprintf(w, "%2d. %s (%.4f)\n", i+1, fw.Name, fw.Importance)
		}
		fmt.Fprintln(w)
	}

	if o.Version != nil {
		fmt.Fprintf(w, "Registered version: %s (active: %t)\n", o.Version.Version, o.Version.IsActive)
	}
	if o.ArtifactPath != "" {
		fmt.Fprintf(w, "Artifact: %s\n", o.ArtifactPath)
	}
}

// generateImportance writes the ranked feature weights as CSV
func (r *Reporter) generateImportance() error {
	csvPath := r.path("feature_importance.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create importance report: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Rank", "Feature", "Importance"}); err != nil {
		return err
	}
	for i, fw := range r.outcome.Metadata.Importance {
		record := []string{
			strconv.Itoa(i + 1),
			fw.Name,
			strconv.FormatFloat(fw.Importance, 'f', 6, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	log.Info().Str("file", csvPath).Msg("Feature importance report generated")
	return nil
}

// generateJSONReport generates a JSON report with all data
func (r *Reporter) generateJSONReport() error {
	jsonPath := r.path("training_report.json")

	report := struct {
		*Outcome
		GeneratedAt time.Time `json:"generated_at"`
	}{r.outcome, time.Now().UTC()}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// PrintSummary writes the summary to w
func (r *Reporter) PrintSummary(w io.Writer) {
	r.writeSummary(w)
}
