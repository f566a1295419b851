package cfg

import (
	"strings"
	"testing"
	"time"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	s := defaultSettings()
	return &s
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	settings := createValidSettings()

	err := validateSettings(settings)
	if err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_Server(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"port zero", func(s *Settings) { s.Port = 0 }, "port"},
		{"port too large", func(s *Settings) { s.Port = 70000 }, "port"},
		{"empty credit model path", func(s *Settings) { s.CreditModelPath = "" }, "model paths"},
		{"empty approval model path", func(s *Settings) { s.ApprovalModelPath = "" }, "model paths"},
		{"empty models dir", func(s *Settings) { s.ModelsDir = "" }, "models directory"},
		{"zero scatter sample", func(s *Settings) { s.ScatterSampleSize = 0 }, "scatter"},
		{"negative cache size", func(s *Settings) { s.CacheSize = -1 }, "cache size"},
		{"short cache ttl", func(s *Settings) { s.CacheTTL = time.Millisecond }, "cache TTL"},
		{"long shutdown timeout", func(s *Settings) { s.ShutdownTimeout = time.Hour }, "shutdown"},
		{"bad log level", func(s *Settings) { s.LogLevel = "verbose" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.mutate(settings)

			err := validateSettings(settings)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateSettings_Training(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(tr *TrainingSettings)
		wantErr string
	}{
		{"test size zero", func(tr *TrainingSettings) { tr.TestSize = 0 }, "test size"},
		{"test size one", func(tr *TrainingSettings) { tr.TestSize = 1 }, "test size"},
		{"negative validation size", func(tr *TrainingSettings) { tr.ValidationSize = -0.1 }, "validation size"},
		{"no estimators", func(tr *TrainingSettings) { tr.NEstimators = 0 }, "n_estimators"},
		{"learning rate above one", func(tr *TrainingSettings) { tr.LearningRate = 1.5 }, "learning rate"},
		{"deep trees", func(tr *TrainingSettings) { tr.MaxDepth = 32 }, "max depth"},
		{"zero subsample", func(tr *TrainingSettings) { tr.Subsample = 0 }, "subsample"},
		{"colsample above one", func(tr *TrainingSettings) { tr.ColSampleByTree = 1.1 }, "colsample"},
		{"negative early stopping", func(tr *TrainingSettings) { tr.EarlyStoppingRounds = -1 }, "early stopping"},
		{"one bin", func(tr *TrainingSettings) { tr.MaxBins = 1 }, "max bins"},
		{"no logistic iterations", func(tr *TrainingSettings) { tr.LogisticMaxIter = 0 }, "logistic max"},
		{"zero C", func(tr *TrainingSettings) { tr.LogisticC = 0 }, "logistic C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.mutate(&settings.Training)

			err := validateSettings(settings)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateSettings_ZeroValidationSizeAllowed(t *testing.T) {
	settings := createValidSettings()
	settings.Training.ValidationSize = 0
	settings.Training.EarlyStoppingRounds = 0

	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected no validation split to be valid, got %v", err)
	}
}
