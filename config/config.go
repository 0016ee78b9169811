package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del motor.
type Config struct {
	Scanner  ScannerConfig  `yaml:"scanner"`
	Selector SelectorConfig `yaml:"selector"`
	Scenario ScenarioConfig `yaml:"scenario"`
	Signals  SignalsConfig  `yaml:"signals"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ScannerConfig controla el loop de análisis.
type ScannerConfig struct {
	IntervalSeconds      int      `yaml:"interval_seconds"`
	PriceIntervalSeconds int      `yaml:"price_interval_seconds"`
	Symbols              []string `yaml:"symbols"`
	RequestsPerSecond    float64  `yaml:"requests_per_second"`
	TrackMinSuitability  float64  `yaml:"track_min_suitability"` // mínimo para abrir una señal
	TrackMaxPerSymbol    int      `yaml:"track_max_per_symbol"`
	AllowCounterTrend    bool     `yaml:"allow_counter_trend"`
}

// SelectorConfig controla el ranking de estrategias.
type SelectorConfig struct {
	MinSuitability  float64 `yaml:"min_suitability"`
	TopPerDirection int     `yaml:"top_per_direction"`
	JitterPct       float64 `yaml:"jitter_pct"` // 0 = determinista
	JitterSeed      int64   `yaml:"jitter_seed"`
}

// ScenarioConfig controla la resolución de sesgo.
type ScenarioConfig struct {
	ViabilityThreshold float64 `yaml:"viability_threshold"`
	MaxAlternatives    int     `yaml:"max_alternatives"`
}

// SignalsConfig controla el gestor de señales.
type SignalsConfig struct {
	PersistQueue     int `yaml:"persist_queue"`
	CompletedHistory int `yaml:"completed_history"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// MetricsConfig controla el endpoint de Prometheus.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// ScanInterval devuelve el intervalo de análisis como time.Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Scanner.IntervalSeconds) * time.Second
}

// PriceInterval devuelve el intervalo del feed de precios como time.Duration.
func (c *Config) PriceInterval() time.Duration {
	return time.Duration(c.Scanner.PriceIntervalSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SCAN_SYMBOLS"); v != "" {
		cfg.Scanner.Symbols = splitSymbols(v)
	}
}

// splitSymbols parsea una lista separada por comas, normalizada a mayúsculas.
func splitSymbols(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Scanner.IntervalSeconds <= 0 {
		cfg.Scanner.IntervalSeconds = 300
	}
	if cfg.Scanner.PriceIntervalSeconds <= 0 {
		cfg.Scanner.PriceIntervalSeconds = 15
	}
	if cfg.Scanner.RequestsPerSecond <= 0 {
		cfg.Scanner.RequestsPerSecond = 5
	}
	if cfg.Scanner.TrackMinSuitability <= 0 {
		cfg.Scanner.TrackMinSuitability = 0.6
	}
	if cfg.Scanner.TrackMaxPerSymbol <= 0 {
		cfg.Scanner.TrackMaxPerSymbol = 1
	}
	if cfg.Selector.MinSuitability <= 0 {
		cfg.Selector.MinSuitability = 0.35
	}
	if cfg.Selector.TopPerDirection <= 0 {
		cfg.Selector.TopPerDirection = 2
	}
	if cfg.Scenario.ViabilityThreshold <= 0 {
		cfg.Scenario.ViabilityThreshold = 50
	}
	if cfg.Scenario.MaxAlternatives <= 0 {
		cfg.Scenario.MaxAlternatives = 2
	}
	if cfg.Signals.PersistQueue <= 0 {
		cfg.Signals.PersistQueue = 256
	}
	if cfg.Signals.CompletedHistory <= 0 {
		cfg.Signals.CompletedHistory = 500
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "stratdesk.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
}
