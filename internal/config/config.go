// Package config materialises the operator-facing configuration surface:
// per-regime threshold tables, strategy flags, and the dedup window, all
// hot-reloadable while the coordinator keeps running.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Ensemble  EnsembleConfig  `mapstructure:"ensemble"`
	Consensus ConsensusConfig `mapstructure:"consensus"`
	Matcher   MatcherConfig   `mapstructure:"matcher"`
	Gate      GateConfig      `mapstructure:"gate"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Learner   LearnerConfig   `mapstructure:"learner"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig covers the read-only observability server.
type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. Empty DSN selects the
// in-memory store (offline mode, tests).
type DatabaseConfig struct {
	DSN          string        `mapstructure:"dsn"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
}

// CacheConfig selects the shared cache backend.
type CacheConfig struct {
	RedisAddr    string        `mapstructure:"redis_addr"`
	IndicatorTTL time.Duration `mapstructure:"indicator_ttl"`
}

// PublishConfig enables the optional Kafka relay for published signals.
type PublishConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ScanConfig governs the coordinator loop cadence.
type ScanConfig struct {
	Interval     time.Duration `mapstructure:"interval"`      // per-instrument cadence
	Stagger      time.Duration `mapstructure:"stagger"`       // offset between instruments
	WarmInterval time.Duration `mapstructure:"warm_interval"` // indicator pre-computation
}

// EnsembleConfig controls the strategy runner.
type EnsembleConfig struct {
	StrategyTimeout      time.Duration      `mapstructure:"strategy_timeout"`
	MaxConsecutiveErrors uint32             `mapstructure:"max_consecutive_errors"`
	Disabled             []string           `mapstructure:"disabled"`
	MinConfidence        map[string]float64 `mapstructure:"min_confidence"` // per-strategy abstain floor
}

// ConsensusConfig holds the regime-dependent agreement bars.
type ConsensusConfig struct {
	MinAgreement        map[string]float64 `mapstructure:"min_agreement"` // keyed by regime
	DefaultMinAgreement float64            `mapstructure:"default_min_agreement"`
}

// MatcherConfig holds the admission rule thresholds.
type MatcherConfig struct {
	MinRegimeConfidence float64 `mapstructure:"min_regime_confidence"`
	LowVolMax           float64 `mapstructure:"low_vol_max"`
	StrongTrendMin      float64 `mapstructure:"strong_trend_min"`
	MediumConfidenceMin float64 `mapstructure:"medium_confidence_min"`
	QueueCapacity       int     `mapstructure:"queue_capacity"`
}

// GateConfig holds the quality gate bars.
type GateConfig struct {
	WinProbBar        map[string]float64 `mapstructure:"win_prob_bar"` // keyed by regime, 0-1
	DefaultWinProbBar float64            `mapstructure:"default_win_prob_bar"`
	MinQualityScore   float64            `mapstructure:"min_quality_score"`
	MinReputation     float64            `mapstructure:"min_reputation"` // 0 allows cold start
}

// LifecycleConfig holds dedup and expiry behavior.
type LifecycleConfig struct {
	DedupWindow          time.Duration  `mapstructure:"dedup_window"`
	ExpiryMinutes        map[string]int `mapstructure:"expiry_minutes"` // keyed by regime
	DefaultExpiryMinutes int            `mapstructure:"default_expiry_minutes"`
	MonitorInterval      time.Duration  `mapstructure:"monitor_interval"`
}

// LearnerConfig controls the continuous learner.
type LearnerConfig struct {
	Heartbeat    time.Duration `mapstructure:"heartbeat"`
	LearningRate float64       `mapstructure:"learning_rate"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Store, error) {
	v := viper.New()
	v.SetEnvPrefix("IGNITEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	store := &Store{v: v}
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	store.current = cfg

	if path != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			next, err := unmarshal(v)
			if err != nil {
				log.Error().Err(err).Str("file", e.Name).Msg("config reload rejected")
				return
			}
			store.swap(next)
			log.Info().Str("file", e.Name).Msg("config hot-reloaded")
		})
		v.WatchConfig()
	}

	return store, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	for regime, bar := range cfg.Gate.WinProbBar {
		if bar < 0 || bar > 1 {
			return fmt.Errorf("gate.win_prob_bar[%s] out of range: %f", regime, bar)
		}
	}
	for regime, bar := range cfg.Consensus.MinAgreement {
		if bar < 0 || bar > 1 {
			return fmt.Errorf("consensus.min_agreement[%s] out of range: %f", regime, bar)
		}
	}
	if cfg.Lifecycle.MonitorInterval <= 0 {
		return fmt.Errorf("lifecycle.monitor_interval must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ignitex")
	v.SetDefault("app.environment", "dev")
	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 8090)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("database.query_timeout", 5*time.Second)
	v.SetDefault("database.max_open_conns", 16)
	v.SetDefault("cache.indicator_ttl", 5*time.Second)
	v.SetDefault("scan.interval", 5*time.Second)
	v.SetDefault("scan.stagger", 250*time.Millisecond)
	v.SetDefault("scan.warm_interval", 30*time.Second)
	v.SetDefault("ensemble.strategy_timeout", 5*time.Second)
	v.SetDefault("ensemble.max_consecutive_errors", 5)
	v.SetDefault("consensus.default_min_agreement", 0.50)
	v.SetDefault("consensus.min_agreement", map[string]float64{
		"trending_up":       0.42,
		"trending_down":     0.42,
		"volatile_breakout": 0.42,
		"choppy":            0.58,
		"ranging_high_vol":  0.58,
	})
	v.SetDefault("matcher.min_regime_confidence", 60.0)
	v.SetDefault("matcher.low_vol_max", 0.60)
	v.SetDefault("matcher.strong_trend_min", 25.0)
	v.SetDefault("matcher.medium_confidence_min", 55.0)
	v.SetDefault("matcher.queue_capacity", 256)
	v.SetDefault("gate.default_win_prob_bar", 0.52)
	v.SetDefault("gate.win_prob_bar", map[string]float64{
		"trending_up":      0.45,
		"trending_down":    0.45,
		"choppy":           0.58,
		"ranging_high_vol": 0.58,
	})
	v.SetDefault("gate.min_quality_score", 55.0)
	v.SetDefault("gate.min_reputation", 0.0)
	v.SetDefault("lifecycle.dedup_window", 2*time.Hour)
	v.SetDefault("lifecycle.default_expiry_minutes", 30)
	v.SetDefault("lifecycle.expiry_minutes", map[string]int{
		"trending_up":       20,
		"trending_down":     20,
		"volatile_breakout": 8,
		"ranging_low_vol":   45,
		"accumulation":      45,
	})
	v.SetDefault("lifecycle.monitor_interval", 5*time.Second)
	v.SetDefault("learner.heartbeat", time.Second)
	v.SetDefault("learner.learning_rate", 0.05)
}

// Store hands out the live configuration snapshot. Stages read through the
// store every scan, so a hot reload takes effect on the next cycle without
// restarting the coordinator.
type Store struct {
	v       *viper.Viper
	mu      sync.RWMutex
	current *Config
}

// Get returns the current configuration snapshot.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) swap(cfg *Config) {
	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
}

// NewStatic wraps a fixed configuration, used by tests and offline mode.
func NewStatic(cfg *Config) *Store {
	return &Store{current: cfg}
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		panic(err) // defaults are compile-time constants, cannot fail
	}
	return cfg
}
