package service

import (
	"time"

	"credit-scoring/internal/ml"
)

// HealthStatus summarises how the service has been doing since start-up.
type HealthStatus struct {
	Healthy         bool      `json:"healthy"`
	CheckedAt       time.Time `json:"checked_at"`
	Models          []ml.Kind `json:"models"`
	PredictionCount int64     `json:"prediction_count"`
	ErrorCount      int64     `json:"error_count"`
	CacheHitRate    float64   `json:"cache_hit_rate"`
	LastError       string    `json:"last_error,omitempty"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
}

// ModelInfo describes one loaded model.
type ModelInfo struct {
	Kind        ml.Kind            `json:"kind"`
	CreatedAt   time.Time          `json:"created_at"`
	AgeSeconds  float64            `json:"age_seconds"`
	TrainRows   int                `json:"train_rows"`
	TestRows    int                `json:"test_rows"`
	Fields      []string           `json:"required_fields"`
	Evaluation  *ml.Evaluation     `json:"evaluation,omitempty"`
	TopFeatures []ml.FeatureWeight `json:"top_features,omitempty"`
}

const topFeatureCount = 10

// Health reports the service's counters. Rejected requests are the
// caller's fault and do not make the service unhealthy.
func (s *Service) Health() HealthStatus {
	s.stats.mu.Lock()
	predictions := s.stats.predictions
	errCount := s.stats.errors
	hits := s.stats.cacheHits
	misses := s.stats.cacheMisses
	lastError := s.stats.lastError
	s.stats.mu.Unlock()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return HealthStatus{
		Healthy:         len(s.scorers) > 0,
		CheckedAt:       time.Now().UTC(),
		Models:          s.Kinds(),
		PredictionCount: predictions,
		ErrorCount:      errCount,
		CacheHitRate:    hitRate,
		LastError:       lastError,
		UptimeSeconds:   time.Since(s.started).Seconds(),
	}
}

// ModelInfo describes every loaded model, credit first.
func (s *Service) ModelInfo() []ModelInfo {
	out := make([]ModelInfo, 0, len(s.scorers))
	for _, kind := range s.Kinds() {
		sc := s.scorers[kind]
		meta := sc.Metadata()

		top := meta.Importance
		if len(top) > topFeatureCount {
			top = top[:topFeatureCount]
		}

		info := ModelInfo{
			Kind:        kind,
			CreatedAt:   meta.CreatedAt,
			TrainRows:   meta.TrainRows,
			TestRows:    meta.TestRows,
			Fields:      sc.RequiredFields(),
			Evaluation:  meta.Evaluation,
			TopFeatures: top,
		}
		if !meta.CreatedAt.IsZero() {
			info.AgeSeconds = time.Since(meta.CreatedAt).Seconds()
		}
		out = append(out, info)
	}
	return out
}
