package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"credit-scoring/internal/ml"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Port              int
	CreditModelPath   string
	ApprovalModelPath string
	ModelsDir         string
	DataPath          string
	CORSOrigin        string
	ScatterSampleSize int
	CacheSize         int
	CacheTTL          time.Duration
	RedisAddr         string
	LogLevel          string
	ShutdownTimeout   time.Duration
	Training          TrainingSettings
}

// TrainingSettings holds the dataset locations and hyperparameters used by
// the train command.
type TrainingSettings struct {
	CreditCSV           string  `yaml:"creditCSV"`
	ApprovalCSV         string  `yaml:"approvalCSV"`
	CleanDir            string  `yaml:"cleanDir"`
	Seed                int64   `yaml:"seed"`
	TestSize            float64 `yaml:"testSize"`
	ValidationSize      float64 `yaml:"validationSize"`
	NEstimators         int     `yaml:"nEstimators"`
	LearningRate        float64 `yaml:"learningRate"`
	MaxDepth            int     `yaml:"maxDepth"`
	Subsample           float64 `yaml:"subsample"`
	ColSampleByTree     float64 `yaml:"colsampleByTree"`
	EarlyStoppingRounds int     `yaml:"earlyStoppingRounds"`
	MaxBins             int     `yaml:"maxBins"`
	LogisticMaxIter     int     `yaml:"logisticMaxIter"`
	LogisticC           float64 `yaml:"logisticC"`
}

type ConfigFile struct {
	Server struct {
		Port              int    `yaml:"port"`
		CORSOrigin        string `yaml:"corsOrigin"`
		ScatterSampleSize int    `yaml:"scatterSampleSize"`
		ShutdownTimeout   string `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Models struct {
		CreditPath   string `yaml:"creditPath"`
		ApprovalPath string `yaml:"approvalPath"`
		Dir          string `yaml:"dir"`
	} `yaml:"models"`

	Cache struct {
		Size      int    `yaml:"size"`
		TTL       string `yaml:"ttl"`
		RedisAddr string `yaml:"redisAddr"`
	} `yaml:"cache"`

	Training TrainingSettings `yaml:"training"`

	System struct {
		DataPath string `yaml:"dataPath"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"system"`
}

// Load reads a .env file if one is present, then builds Settings from the
// YAML file named by CONFIG_FILE or from the environment alone.
func Load() (Settings, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	cacheTTL, err := time.ParseDuration(config.Cache.TTL)
	if err != nil {
		cacheTTL = 10 * time.Minute
	}

	shutdownTimeout, err := time.ParseDuration(config.Server.ShutdownTimeout)
	if err != nil {
		shutdownTimeout = 15 * time.Second
	}

	defaults := defaultSettings()
	t := config.Training

	settings := Settings{
		Port:              getIntFromEnvOrConfig("PORT", config.Server.Port, defaults.Port),
		CreditModelPath:   getEnvOrDefault("CREDIT_MODEL_PATH", orString(config.Models.CreditPath, defaults.CreditModelPath)),
		ApprovalModelPath: getEnvOrDefault("APPROVAL_MODEL_PATH", orString(config.Models.ApprovalPath, defaults.ApprovalModelPath)),
		ModelsDir:         getEnvOrDefault("MODELS_DIR", orString(config.Models.Dir, defaults.ModelsDir)),
		DataPath:          getEnvOrDefault("DATA_PATH", config.System.DataPath),
		CORSOrigin:        getEnvOrDefault("CORS_ORIGIN", orString(config.Server.CORSOrigin, defaults.CORSOrigin)),
		ScatterSampleSize: getIntFromEnvOrConfig("SCATTER_SAMPLE_SIZE", config.Server.ScatterSampleSize, defaults.ScatterSampleSize),
		CacheSize:         getIntFromEnvOrConfig("CACHE_SIZE", config.Cache.Size, defaults.CacheSize),
		CacheTTL:          getDurationOrDefault("CACHE_TTL", cacheTTL),
		RedisAddr:         getEnvOrDefault("REDIS_ADDR", config.Cache.RedisAddr),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", orString(config.System.LogLevel, defaults.LogLevel)),
		ShutdownTimeout:   getDurationOrDefault("SHUTDOWN_TIMEOUT", shutdownTimeout),
		Training: TrainingSettings{
			CreditCSV:           getEnvOrDefault("CREDIT_DATA_CSV", orString(t.CreditCSV, defaults.Training.CreditCSV)),
			ApprovalCSV:         getEnvOrDefault("APPROVAL_DATA_CSV", orString(t.ApprovalCSV, defaults.Training.ApprovalCSV)),
			CleanDir:            getEnvOrDefault("CLEAN_DATA_DIR", t.CleanDir),
			Seed:                int64(getIntFromEnvOrConfig("SEED", int(t.Seed), int(defaults.Training.Seed))),
			TestSize:            getFloatFromEnvOrConfig("TEST_SIZE", t.TestSize, defaults.Training.TestSize),
			ValidationSize:      getFloatFromEnvOrConfig("VALIDATION_SIZE", t.ValidationSize, defaults.Training.ValidationSize),
			NEstimators:         getIntFromEnvOrConfig("N_ESTIMATORS", t.NEstimators, defaults.Training.NEstimators),
			LearningRate:        getFloatFromEnvOrConfig("LEARNING_RATE", t.LearningRate, defaults.Training.LearningRate),
			MaxDepth:            getIntFromEnvOrConfig("MAX_DEPTH", t.MaxDepth, defaults.Training.MaxDepth),
			Subsample:           getFloatFromEnvOrConfig("SUBSAMPLE", t.Subsample, defaults.Training.Subsample),
			ColSampleByTree:     getFloatFromEnvOrConfig("COLSAMPLE_BYTREE", t.ColSampleByTree, defaults.Training.ColSampleByTree),
			EarlyStoppingRounds: getIntFromEnvOrConfig("EARLY_STOPPING_ROUNDS", t.EarlyStoppingRounds, defaults.Training.EarlyStoppingRounds),
			MaxBins:             getIntFromEnvOrConfig("MAX_BINS", t.MaxBins, defaults.Training.MaxBins),
			LogisticMaxIter:     getIntFromEnvOrConfig("LOGISTIC_MAX_ITER", t.LogisticMaxIter, defaults.Training.LogisticMaxIter),
			LogisticC:           getFloatFromEnvOrConfig("LOGISTIC_C", t.LogisticC, defaults.Training.LogisticC),
		},
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	d := defaultSettings()

	settings := Settings{
		Port:              getIntOrDefault("PORT", d.Port),
		CreditModelPath:   getEnvOrDefault("CREDIT_MODEL_PATH", d.CreditModelPath),
		ApprovalModelPath: getEnvOrDefault("APPROVAL_MODEL_PATH", d.ApprovalModelPath),
		ModelsDir:         getEnvOrDefault("MODELS_DIR", d.ModelsDir),
		DataPath:          os.Getenv("DATA_PATH"), // optional
		CORSOrigin:        getEnvOrDefault("CORS_ORIGIN", d.CORSOrigin),
		ScatterSampleSize: getIntOrDefault("SCATTER_SAMPLE_SIZE", d.ScatterSampleSize),
		CacheSize:         getIntOrDefault("CACHE_SIZE", d.CacheSize),
		CacheTTL:          getDurationOrDefault("CACHE_TTL", d.CacheTTL),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", d.LogLevel),
		ShutdownTimeout:   getDurationOrDefault("SHUTDOWN_TIMEOUT", d.ShutdownTimeout),
		Training: TrainingSettings{
			CreditCSV:           getEnvOrDefault("CREDIT_DATA_CSV", d.Training.CreditCSV),
			ApprovalCSV:         getEnvOrDefault("APPROVAL_DATA_CSV", d.Training.ApprovalCSV),
			CleanDir:            os.Getenv("CLEAN_DATA_DIR"),
			Seed:                int64(getIntOrDefault("SEED", int(d.Training.Seed))),
			TestSize:            getFloatOrDefault("TEST_SIZE", d.Training.TestSize),
			ValidationSize:      getFloatOrDefault("VALIDATION_SIZE", d.Training.ValidationSize),
			NEstimators:         getIntOrDefault("N_ESTIMATORS", d.Training.NEstimators),
			LearningRate:        getFloatOrDefault("LEARNING_RATE", d.Training.LearningRate),
			MaxDepth:            getIntOrDefault("MAX_DEPTH", d.Training.MaxDepth),
			Subsample:           getFloatOrDefault("SUBSAMPLE", d.Training.Subsample),
			ColSampleByTree:     getFloatOrDefault("COLSAMPLE_BYTREE", d.Training.ColSampleByTree),
			EarlyStoppingRounds: getIntOrDefault("EARLY_STOPPING_ROUNDS", d.Training.EarlyStoppingRounds),
			MaxBins:             getIntOrDefault("MAX_BINS", d.Training.MaxBins),
			LogisticMaxIter:     getIntOrDefault("LOGISTIC_MAX_ITER", d.Training.LogisticMaxIter),
			LogisticC:           getFloatOrDefault("LOGISTIC_C", d.Training.LogisticC),
		},
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func defaultSettings() Settings {
	tc := ml.DefaultTrainConfig()
	return Settings{
		Port:              8080,
		CreditModelPath:   "models/credit.json",
		ApprovalModelPath: "models/approval.json",
		ModelsDir:         "models",
		CORSOrigin:        "*",
		ScatterSampleSize: 30,
		CacheSize:         10000,
		CacheTTL:          10 * time.Minute,
		LogLevel:          "info",
		ShutdownTimeout:   15 * time.Second,
		Training: TrainingSettings{
			CreditCSV:           "data/credit_data.csv",
			ApprovalCSV:         "data/loan_data.csv",
			Seed:                tc.Seed,
			TestSize:            tc.TestSize,
			ValidationSize:      tc.ValidationSize,
			NEstimators:         tc.Booster.NEstimators,
			LearningRate:        tc.Booster.LearningRate,
			MaxDepth:            tc.Booster.MaxDepth,
			Subsample:           tc.Booster.Subsample,
			ColSampleByTree:     tc.Booster.ColSampleByTree,
			EarlyStoppingRounds: tc.Booster.EarlyStoppingRounds,
			MaxBins:             tc.Booster.MaxBins,
			LogisticMaxIter:     tc.LogisticMaxIter,
			LogisticC:           tc.LogisticC,
		},
	}
}

// TrainConfig converts the training settings into the pipeline's config.
// Booster parameters without a setting keep their defaults.
func (t TrainingSettings) TrainConfig() ml.TrainConfig {
	tc := ml.DefaultTrainConfig()
	tc.Seed = t.Seed
	tc.TestSize = t.TestSize
	tc.ValidationSize = t.ValidationSize
	tc.LogisticC = t.LogisticC
	tc.LogisticMaxIter = t.LogisticMaxIter

	tc.Booster.Seed = t.Seed
	tc.Booster.NEstimators = t.NEstimators
	tc.Booster.LearningRate = t.LearningRate
	tc.Booster.MaxDepth = t.MaxDepth
	tc.Booster.Subsample = t.Subsample
	tc.Booster.ColSampleByTree = t.ColSampleByTree
	tc.Booster.EarlyStoppingRounds = t.EarlyStoppingRounds
	tc.Booster.MaxBins = t.MaxBins
	return tc
}

// Addr is the listen address for the HTTP server.
func (s *Settings) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.Port < 1 || settings.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", settings.Port)
	}
	if settings.CreditModelPath == "" || settings.ApprovalModelPath == "" {
		return fmt.Errorf("credit and approval model paths are required")
	}
	if settings.ModelsDir == "" {
		return fmt.Errorf("models directory cannot be empty")
	}
	if settings.ScatterSampleSize <= 0 || settings.ScatterSampleSize > 10000 {
		return fmt.Errorf("scatter sample size must be between 1 and 10000, got %d", settings.ScatterSampleSize)
	}
	if settings.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative, got %d", settings.CacheSize)
	}
	if settings.CacheTTL < time.Second || settings.CacheTTL > 24*time.Hour {
		return fmt.Errorf("cache TTL must be between 1s and 24h, got %v", settings.CacheTTL)
	}
	if settings.ShutdownTimeout < time.Second || settings.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("shutdown timeout must be between 1s and 5m, got %v", settings.ShutdownTimeout)
	}
	switch settings.LogLevel {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", settings.LogLevel)
	}

	return validateTraining(&settings.Training)
}

func validateTraining(t *TrainingSettings) error {
	if t.TestSize <= 0 || t.TestSize >= 1 {
		return fmt.Errorf("test size must be between 0 and 1, got %f", t.TestSize)
	}
	if t.ValidationSize < 0 || t.ValidationSize >= 1 {
		return fmt.Errorf("validation size must be in [0, 1), got %f", t.ValidationSize)
	}
	if t.NEstimators <= 0 || t.NEstimators > 100000 {
		return fmt.Errorf("n_estimators must be between 1 and 100000, got %d", t.NEstimators)
	}
	if t.LearningRate <= 0 || t.LearningRate > 1 {
		return fmt.Errorf("learning rate must be in (0, 1], got %f", t.LearningRate)
	}
	if t.MaxDepth <= 0 || t.MaxDepth > 16 {
		return fmt.Errorf("max depth must be between 1 and 16, got %d", t.MaxDepth)
	}
	if t.Subsample <= 0 || t.Subsample > 1 {
		return fmt.Errorf("subsample must be in (0, 1], got %f", t.Subsample)
	}
	if t.ColSampleByTree <= 0 || t.ColSampleByTree > 1 {
		return fmt.Errorf("colsample_bytree must be in (0, 1], got %f", t.ColSampleByTree)
	}
	if t.EarlyStoppingRounds < 0 {
		return fmt.Errorf("early stopping rounds cannot be negative, got %d", t.EarlyStoppingRounds)
	}
	if t.MaxBins < 2 || t.MaxBins > 65535 {
		return fmt.Errorf("max bins must be between 2 and 65535, got %d", t.MaxBins)
	}
	if t.LogisticMaxIter <= 0 {
		return fmt.Errorf("logistic max iterations must be positive, got %d", t.LogisticMaxIter)
	}
	if t.LogisticC <= 0 {
		return fmt.Errorf("logistic C must be positive, got %f", t.LogisticC)
	}
	return nil
}
