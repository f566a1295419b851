// Package server exposes the prediction service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"credit-scoring/internal/metrics"
	"credit-scoring/internal/ml"
	"credit-scoring/internal/service"
	"credit-scoring/internal/storage"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// ScatterSource samples stored applicants for the scatter plot.
type ScatterSource interface {
	SampleScatter(n int, rng *rand.Rand) ([]storage.ScatterPoint, error)
}

// Metrics is what the HTTP layer reports.
type Metrics interface {
	HTTPRequestInc(route string, code int)
	ScatterRequests() metrics.MetricsCounter
	ErrorsTotal() metrics.MetricsCounter
}

// Config holds the HTTP-level settings.
type Config struct {
	Addr              string
	CORSOrigin        string
	ScatterSampleSize int
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Server provides the HTTP API for predictions
type Server struct {
	svc     *service.Service
	scatter ScatterSource
	metrics Metrics
	cfg     Config
	server  *http.Server

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New builds the router and the underlying http.Server. scatter and m may
// be nil.
func New(svc *service.Service, scatter ScatterSource, m Metrics, cfg Config) *Server {
	if cfg.ScatterSampleSize <= 0 {
		cfg.ScatterSampleSize = 30
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}

	s := &Server{
		svc:     svc,
		scatter: scatter,
		metrics: m,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the routed API with CORS applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/predict", s.handlePredict(ml.KindApproval)).Methods(http.MethodPost)
	r.HandleFunc("/predict/approval", s.handlePredict(ml.KindApproval)).Methods(http.MethodPost)
	r.HandleFunc("/predict/credit", s.handlePredict(ml.KindCredit)).Methods(http.MethodPost)
	r.HandleFunc("/scatter", s.handleScatter).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/model/info", s.handleModelInfo).Methods(http.MethodGet)

	if s.cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	} else {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	return s.cors(r)
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction server")
	return s.server.ListenAndServe()
}

// Serve accepts connections on l.
func (s *Server) Serve(l net.Listener) error {
	log.Info().Str("addr", l.Addr().String()).Msg("starting prediction server")
	return s.server.Serve(l)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type predictionResponse struct {
	Probability *float64 `json:"probability,omitempty"`
	Score       *float64 `json:"score,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handlePredict(kind ml.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if raw == nil {
			writeError(w, http.StatusBadRequest, "request body must be a JSON object")
			return
		}

		res, err := s.svc.Handle(r.Context(), kind, raw)
		if err != nil {
			if service.IsValidation(err) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			s.countError()
			log.Error().Err(err).Str("model", string(kind)).Msg("prediction failed")
			writeError(w, http.StatusInternalServerError, "prediction failed")
			return
		}

		v := res.Value
		resp := predictionResponse{}
		if kind == ml.KindCredit {
			resp.Score = &v
		} else {
			resp.Probability = &v
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleScatter(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.ScatterRequests().Inc()
	}
	if s.scatter == nil {
		writeError(w, http.StatusServiceUnavailable, "no applicant data loaded")
		return
	}

	s.rngMu.Lock()
	points, err := s.scatter.SampleScatter(s.cfg.ScatterSampleSize, s.rng)
	s.rngMu.Unlock()
	if err != nil {
		s.countError()
		log.Error().Err(err).Msg("scatter sample failed")
		writeError(w, http.StatusInternalServerError, "failed to sample applicants")
		return
	}

	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.svc.Health()

	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	s.svc.UpdateModelAge()
	writeJSON(w, http.StatusOK, s.svc.ModelInfo())
}

func (s *Server) countError() {
	if s.metrics != nil {
		s.metrics.ErrorsTotal().Inc()
	}
}

// cors answers preflight requests and tags every response for the browser
// front end.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.cfg.CORSOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if s.cfg.CORSOrigin != "*" {
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests by route template and status code.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		if s.metrics != nil {
			s.metrics.HTTPRequestInc(route, rec.status)
		}

		log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request served")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
