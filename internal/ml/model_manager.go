package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ModelVersion represents a versioned model artifact
type ModelVersion struct {
	Version   string       `json:"version"`
	Kind      Kind         `json:"kind"`
	Path      string       `json:"path"`
	CreatedAt time.Time    `json:"created_at"`
	Metrics   ModelMetrics `json:"metrics"`
	IsActive  bool         `json:"is_active"`
}

// ModelMetrics contains held-out performance for a model
type ModelMetrics struct {
	MAE             float64 `json:"mae,omitempty"`
	Accuracy        float64 `json:"accuracy"`
	MacroF1         float64 `json:"macro_f1"`
	ROCAUC          float64 `json:"roc_auc,omitempty"`
	TrainingSamples int     `json:"training_samples"`
}

// MetricsFromMetadata summarises a pipeline's evaluation for the registry.
func MetricsFromMetadata(meta Metadata) ModelMetrics {
	m := ModelMetrics{TrainingSamples: meta.TrainRows + meta.ValidationRows}
	if e := meta.Evaluation; e != nil {
		m.MAE = e.MAE
		m.Accuracy = e.Accuracy
		m.MacroF1 = e.MacroF1
		m.ROCAUC = e.ROCAUC
	}
	return m
}

// ModelManager handles model versioning and rollback. Versions are kept
// newest first; at most one version per kind is active.
type ModelManager struct {
	mu           sync.Mutex
	modelsDir    string
	versionsFile string
	versions     []ModelVersion
	now          func() time.Time
}

// NewModelManager creates a new model manager rooted at modelsDir
func NewModelManager(modelsDir string) (*ModelManager, error) {
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models directory: %w", err)
	}

	mm := &ModelManager{
		modelsDir:    modelsDir,
		versionsFile: filepath.Join(modelsDir, "model_versions.json"),
		versions:     make([]ModelVersion, 0),
		now:          time.Now,
	}

	if err := mm.loadVersions(); err != nil {
		log.Warn().Err(err).Msg("Failed to load model versions, starting fresh")
	}

	return mm, nil
}

// Register saves p under the models directory and records it as a new,
// inactive version.
func (mm *ModelManager) Register(p *TrainedPipeline) (ModelVersion, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	meta := p.Metadata()
	version := mm.nextVersionName(meta.Kind)
	path := filepath.Join(mm.modelsDir, version+".json")
	if err := p.Save(path); err != nil {
		return ModelVersion{}, err
	}
	return mm.addVersion(version, meta.Kind, path, MetricsFromMetadata(meta))
}

// AddVersion records an artifact that already exists at path.
func (mm *ModelManager) AddVersion(kind Kind, path string, metrics ModelMetrics) (ModelVersion, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.addVersion(mm.nextVersionName(kind), kind, path, metrics)
}

func (mm *ModelManager) addVersion(version string, kind Kind, path string, metrics ModelMetrics) (ModelVersion, error) {
	v := ModelVersion{
		Version:   version,
		Kind:      kind,
		Path:      path,
		CreatedAt: mm.now().UTC(),
		Metrics:   metrics,
	}
	mm.versions = append([]ModelVersion{v}, mm.versions...)

	log.Info().Str("version", version).Str("kind", string(kind)).Str("path", path).Msg("Registered model version")
	return v, mm.saveVersions()
}

func (mm *ModelManager) nextVersionName(kind Kind) string {
	base := fmt.Sprintf("%s-%s", kind, mm.now().UTC().Format("20060102-150405"))
	name := base
	for n := 2; mm.find(name) >= 0; n++ {
		name = fmt.Sprintf("%s-%d", base, n)
	}
	return name
}

func (mm *ModelManager) find(version string) int {
	for i := range mm.versions {
		if mm.versions[i].Version == version {
			return i
		}
	}
	return -1
}

// ActivateVersion activates a specific model version, deactivating any
// other version of the same kind
func (mm *ModelManager) ActivateVersion(version string) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.activate(version)
}

func (mm *ModelManager) activate(version string) error {
	idx := mm.find(version)
	if idx < 0 {
		return fmt.Errorf("version %s not found", version)
	}

	kind := mm.versions[idx].Kind
	for i := range mm.versions {
		if mm.versions[i].Kind == kind {
			mm.versions[i].IsActive = i == idx
		}
	}

	log.Info().Str("version", version).Str("kind", string(kind)).Msg("Activated model version")
	return mm.saveVersions()
}

// Rollback activates the version of kind registered just before the active
// one.
func (mm *ModelManager) Rollback(kind Kind) (ModelVersion, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	currentIdx := -1
	for i, v := range mm.versions {
		if v.Kind == kind && v.IsActive {
			currentIdx = i
			break
		}
	}
	if currentIdx == -1 {
		return ModelVersion{}, fmt.Errorf("no active %s version found", kind)
	}

	for i := currentIdx + 1; i < len(mm.versions); i++ {
		if mm.versions[i].Kind == kind {
			if err := mm.activate(mm.versions[i].Version); err != nil {
				return ModelVersion{}, err
			}
			return mm.versions[i], nil
		}
	}

	return ModelVersion{}, fmt.Errorf("no previous %s version available for rollback", kind)
}

// CurrentVersion returns the active version of kind.
func (mm *ModelManager) CurrentVersion(kind Kind) (ModelVersion, bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	for _, v := range mm.versions {
		if v.Kind == kind && v.IsActive {
			return v, true
		}
	}
	return ModelVersion{}, false
}

// ServedPath returns the artifact path of the active version of kind, or
// fallback when no version of kind is active.
func (mm *ModelManager) ServedPath(kind Kind, fallback string) string {
	if v, ok := mm.CurrentVersion(kind); ok {
		return v.Path
	}
	return fallback
}

// ListVersions returns versions of kind, newest first. An empty kind lists
// every version.
func (mm *ModelManager) ListVersions(kind Kind) []ModelVersion {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	out := make([]ModelVersion, 0, len(mm.versions))
	for _, v := range mm.versions {
		if kind == "" || v.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}

// loadVersions loads model versions from file
func (mm *ModelManager) loadVersions() error {
	data, err := os.ReadFile(mm.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return json.Unmarshal(data, &mm.versions)
}

// saveVersions saves model versions to file
func (mm *ModelManager) saveVersions() error {
	data, err := json.MarshalIndent(mm.versions, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(mm.versionsFile, data, 0o600)
}
