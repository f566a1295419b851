// Package service validates raw prediction requests and runs them through
// the loaded pipelines.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"credit-scoring/internal/cache"
	"credit-scoring/internal/features"
	"credit-scoring/internal/ml"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines metrics methods needed by the service
type MetricsInterface interface {
	PredictionInc(model string)
	PredictionFailureInc(model, reason string)
	PredictionLatencyObserve(model string, seconds float64)
	PredictionValueObserve(model string, v float64)
	ModelAgeSet(model string, seconds float64)
	CacheHitInc()
	CacheMissInc()
}

// MissingFieldError reports a required request field that was absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Field
}

// UnknownModelError reports a request for a model the service does not hold.
type UnknownModelError struct {
	Kind ml.Kind
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("model %q is not loaded", e.Kind)
}

// IsValidation reports whether err was caused by the request itself rather
// than by the service.
func IsValidation(err error) bool {
	var (
		missing  *MissingFieldError
		value    *features.InvalidValueError
		category *features.InvalidCategoryError
		unknown  *UnknownModelError
	)
	return errors.As(err, &missing) || errors.As(err, &value) ||
		errors.As(err, &category) || errors.As(err, &unknown)
}

// Result is one prediction. Value is the raw model output: a score for the
// credit model, a probability for the approval model.
type Result struct {
	Kind   ml.Kind
	Value  float64
	Cached bool
}

// Tier names the credit tier of a credit score.
func (r Result) Tier() string {
	if r.Kind != ml.KindCredit {
		return ""
	}
	return ml.CreditTierNames[ml.CreditTier(r.Value)]
}

// Band returns the approval band of an approval probability.
func (r Result) Band() (ml.ApprovalBand, bool) {
	if r.Kind != ml.KindApproval {
		return ml.ApprovalBand{}, false
	}
	return ml.BandFor(r.Value), true
}

// Service holds the loaded pipelines. It is built once at start-up and is
// safe for concurrent use; pipelines are never modified after load.
type Service struct {
	scorers map[ml.Kind]ml.Scorer
	cache   cache.Cache
	metrics MetricsInterface
	started time.Time
	stats   *stats
}

type stats struct {
	mu          sync.Mutex
	predictions int64
	errors      int64
	cacheHits   int64
	cacheMisses int64
	lastError   string
}

// Option configures a Service.
type Option func(*Service)

// WithCache caches predictions by feature vector.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMetrics reports predictions to m.
func WithMetrics(m MetricsInterface) Option {
	return func(s *Service) { s.metrics = m }
}

// New builds a Service over the given pipelines, one per kind.
func New(scorers []ml.Scorer, opts ...Option) (*Service, error) {
	if len(scorers) == 0 {
		return nil, errors.New("at least one model is required")
	}

	s := &Service{
		scorers: make(map[ml.Kind]ml.Scorer, len(scorers)),
		metrics: noopMetrics{},
		started: time.Now(),
		stats:   &stats{},
	}
	for _, sc := range scorers {
		if _, dup := s.scorers[sc.Kind()]; dup {
			return nil, fmt.Errorf("duplicate %s model", sc.Kind())
		}
		s.scorers[sc.Kind()] = sc
	}
	for _, opt := range opts {
		opt(s)
	}

	s.UpdateModelAge()
	return s, nil
}

// Handle validates raw, derives features and runs the model of the given
// kind. Request errors come back as *MissingFieldError,
// *features.InvalidValueError or *features.InvalidCategoryError.
func (s *Service) Handle(ctx context.Context, kind ml.Kind, raw map[string]any) (Result, error) {
	start := time.Now()
	model := string(kind)

	scorer, ok := s.scorers[kind]
	if !ok {
		return Result{}, &UnknownModelError{Kind: kind}
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	rec, err := ParseRecord(raw, scorer.RequiredFields())
	if err != nil {
		s.recordError(model, "invalid_request", err)
		return Result{}, err
	}

	fv, err := scorer.Derive(rec)
	if err != nil {
		s.recordError(model, "invalid_request", err)
		return Result{}, err
	}

	key := cache.Key(cacheNamespace(scorer), fv)
	if s.cache != nil {
		v, hit, err := s.cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("model", model).Msg("prediction cache lookup failed")
		}
		if hit {
			s.recordCache(true)
			s.recordPrediction(model, v, time.Since(start))
			return Result{Kind: kind, Value: v, Cached: true}, nil
		}
		s.recordCache(false)
	}

	v, err := scorer.Predict(fv)
	if err != nil {
		s.recordError(model, "model", err)
		return Result{}, fmt.Errorf("%s prediction failed: %w", kind, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, v); err != nil {
			log.Warn().Err(err).Str("model", model).Msg("prediction cache store failed")
		}
	}

	s.recordPrediction(model, v, time.Since(start))
	return Result{Kind: kind, Value: v}, nil
}

// ParseRecord copies the required fields out of a decoded JSON body. Numbers
// may arrive as JSON numbers or as numeric strings; fields outside required
// are ignored.
func ParseRecord(raw map[string]any, required []string) (features.ApplicantRecord, error) {
	var rec features.ApplicantRecord

	for _, field := range required {
		v, ok := raw[field]
		if !ok || v == nil {
			return rec, &MissingFieldError{Field: field}
		}

		var err error
		switch val := v.(type) {
		case float64:
			err = rec.AssignNumber(field, val)
		case int:
			err = rec.AssignNumber(field, float64(val))
		case json.Number:
			f, perr := val.Float64()
			if perr != nil {
				return rec, &features.InvalidValueError{Field: field, Value: val.String()}
			}
			err = rec.AssignNumber(field, f)
		case string:
			err = rec.Assign(field, val)
		case bool:
			if !features.IsNumeric(field) {
				return rec, &features.InvalidValueError{Field: field, Value: strconv.FormatBool(val)}
			}
			err = rec.Assign(field, strconv.FormatBool(val))
		default:
			return rec, &features.InvalidValueError{Field: field, Value: fmt.Sprint(val)}
		}
		if err != nil {
			var ive *features.InvalidValueError
			if errors.As(err, &ive) && ive.Field == "" {
				ive.Field = field
			}
			return rec, err
		}
	}

	return rec, nil
}

// Scorer returns the loaded pipeline of kind.
func (s *Service) Scorer(kind ml.Kind) (ml.Scorer, bool) {
	sc, ok := s.scorers[kind]
	return sc, ok
}

// Kinds lists the loaded models in a fixed order.
func (s *Service) Kinds() []ml.Kind {
	out := make([]ml.Kind, 0, len(s.scorers))
	for _, k := range []ml.Kind{ml.KindCredit, ml.KindApproval} {
		if _, ok := s.scorers[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// UpdateModelAge publishes the age of every loaded model.
func (s *Service) UpdateModelAge() {
	for kind, sc := range s.scorers {
		created := sc.Metadata().CreatedAt
		if created.IsZero() {
			continue
		}
		s.metrics.ModelAgeSet(string(kind), time.Since(created).Seconds())
	}
}

// cacheNamespace keys cached predictions by model and training time so a
// redeployed model never serves its predecessor's results.
func cacheNamespace(sc ml.Scorer) string {
	return fmt.Sprintf("%s-%d", sc.Kind(), sc.Metadata().CreatedAt.UnixNano())
}

func (s *Service) recordPrediction(model string, v float64, took time.Duration) {
	s.stats.mu.Lock()
	s.stats.predictions++
	s.stats.mu.Unlock()

	s.metrics.PredictionInc(model)
	s.metrics.PredictionValueObserve(model, v)
	s.metrics.PredictionLatencyObserve(model, took.Seconds())
}

func (s *Service) recordError(model, reason string, err error) {
	s.stats.mu.Lock()
	s.stats.errors++
	s.stats.lastError = err.Error()
	s.stats.mu.Unlock()

	s.metrics.PredictionFailureInc(model, reason)
	log.Debug().Err(err).Str("model", model).Str("reason", reason).Msg("prediction rejected")
}

func (s *Service) recordCache(hit bool) {
	s.stats.mu.Lock()
	if hit {
		s.stats.cacheHits++
	} else {
		s.stats.cacheMisses++
	}
	s.stats.mu.Unlock()

	if hit {
		s.metrics.CacheHitInc()
	} else {
		s.metrics.CacheMissInc()
	}
}

type noopMetrics struct{}

func (noopMetrics) PredictionInc(string)                     {}
func (noopMetrics) PredictionFailureInc(string, string)      {}
func (noopMetrics) PredictionLatencyObserve(string, float64) {}
func (noopMetrics) PredictionValueObserve(string, float64)   {}
func (noopMetrics) ModelAgeSet(string, float64)              {}
func (noopMetrics) CacheHitInc()                             {}
func (noopMetrics) CacheMissInc()                            {}
