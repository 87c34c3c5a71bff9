package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
// All engine thresholds live in Engine so tests can run the computer and
// classifier with alternate parameters without touching process state.
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Sources SourcesConfig `yaml:"sources" envconfig:"SOURCES"`
	Engine  EngineConfig  `yaml:"engine" envconfig:"ENGINE"`
}

// ServerConfig contains HTTP server configuration for the report server.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths.
type PathsConfig struct {
	StateFile   string `yaml:"state_file" envconfig:"STATE_FILE" validate:"required"`
	ReportsDir  string `yaml:"reports_dir" envconfig:"REPORTS_DIR" validate:"required"`
	HolidayFile string `yaml:"holiday_file" envconfig:"HOLIDAY_FILE"`
}

// SourcesConfig contains upstream data source endpoints and tickers.
type SourcesConfig struct {
	ArbitrageURL    string        `yaml:"arbitrage_url" envconfig:"ARBITRAGE_URL" validate:"required,url"`
	TurnoverURL     string        `yaml:"turnover_url" envconfig:"TURNOVER_URL" validate:"required,url"`
	ChartBaseURL    string        `yaml:"chart_base_url" envconfig:"CHART_BASE_URL" validate:"required,url"`
	PrimaryTicker   string        `yaml:"primary_ticker" envconfig:"PRIMARY_TICKER" validate:"required"`
	SecondaryTicker string        `yaml:"secondary_ticker" envconfig:"SECONDARY_TICKER" validate:"required"`
	FuturesTicker   string        `yaml:"futures_ticker" envconfig:"FUTURES_TICKER" validate:"required"`
	UserAgent       string        `yaml:"user_agent" envconfig:"USER_AGENT" validate:"required"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT" validate:"gt=0"`
	RequestsPerSec  float64       `yaml:"requests_per_sec" envconfig:"REQUESTS_PER_SEC" validate:"gt=0"`

	// Chart API lookback ranges.
	PositionLookback string `yaml:"position_lookback" envconfig:"POSITION_LOOKBACK" validate:"required"`
	MoveLookback     string `yaml:"move_lookback" envconfig:"MOVE_LOOKBACK" validate:"required"`
	BasisLookback    string `yaml:"basis_lookback" envconfig:"BASIS_LOOKBACK" validate:"required"`
}

// EngineConfig contains every threshold and window used by the signal
// computer and the risk classifier.
type EngineConfig struct {
	// History retention. Sized to comfortably exceed five years of
	// business days, the longest lookback used by any statistic.
	MaxHistoryRecords int `yaml:"max_history_records" envconfig:"MAX_HISTORY_RECORDS" validate:"gte=100"`

	// Arbitrage statistics windows (trading days).
	ArbWindowPrimary  int `yaml:"arb_window_primary" envconfig:"ARB_WINDOW_PRIMARY" validate:"gt=0"`
	ArbWindowFallback int `yaml:"arb_window_fallback" envconfig:"ARB_WINDOW_FALLBACK" validate:"gt=0"`

	// Percentile above which the net balance counts as historically high.
	ArbHighPercentile float64 `yaml:"arb_high_percentile" envconfig:"ARB_HIGH_PERCENTILE" validate:"gt=0,lt=1"`

	// Adaptive margin parameters. margin_k scales with both the latest
	// balance magnitude and the median absolute balance so a near-zero
	// balance never produces a degenerate zero margin.
	Margin5Ratio  float64 `yaml:"margin5_ratio" envconfig:"MARGIN5_RATIO" validate:"gt=0"`
	Margin5Floor  float64 `yaml:"margin5_floor" envconfig:"MARGIN5_FLOOR" validate:"gt=0"`
	Margin25Ratio float64 `yaml:"margin25_ratio" envconfig:"MARGIN25_RATIO" validate:"gt=0"`
	Margin25Floor float64 `yaml:"margin25_floor" envconfig:"MARGIN25_FLOOR" validate:"gt=0"`

	// Liquidity mismatch.
	VolumeMAWindow    int     `yaml:"volume_ma_window" envconfig:"VOLUME_MA_WINDOW" validate:"gt=1"`
	VolumeRatioThin   float64 `yaml:"volume_ratio_thin" envconfig:"VOLUME_RATIO_THIN" validate:"gt=0"`
	MoveThresholdPct  float64 `yaml:"move_threshold_pct" envconfig:"MOVE_THRESHOLD_PCT" validate:"gt=0"`
	SpikeThresholdPct float64 `yaml:"spike_threshold_pct" envconfig:"SPIKE_THRESHOLD_PCT" validate:"gt=0"`

	// Index price position.
	IndexMinPoints   int     `yaml:"index_min_points" envconfig:"INDEX_MIN_POINTS" validate:"gt=0"`
	IndexMA          int     `yaml:"index_ma" envconfig:"INDEX_MA" validate:"gt=0"`
	IndexPctlHigh    float64 `yaml:"index_pctl_high" envconfig:"INDEX_PCTL_HIGH" validate:"gt=0,lt=1"`
	IndexDev200High  float64 `yaml:"index_dev200_high" envconfig:"INDEX_DEV200_HIGH" validate:"gt=0"`
	IndexPctlLow     float64 `yaml:"index_pctl_low" envconfig:"INDEX_PCTL_LOW" validate:"gt=0,lt=1"`
	IndexDev200Low   float64 `yaml:"index_dev200_low" envconfig:"INDEX_DEV200_LOW" validate:"lt=0"`

	// Futures-minus-spot basis.
	BasisLag int `yaml:"basis_lag" envconfig:"BASIS_LAG" validate:"gt=0"`

	// Emergency move threshold: empirical quantile of trailing absolute
	// daily moves, floored at a fixed percentage.
	EmergencyQuantile  float64 `yaml:"emergency_quantile" envconfig:"EMERGENCY_QUANTILE" validate:"gt=0,lt=1"`
	EmergencyMinPoints int     `yaml:"emergency_min_points" envconfig:"EMERGENCY_MIN_POINTS" validate:"gt=0"`
	EmergencyFloorPct  float64 `yaml:"emergency_floor_pct" envconfig:"EMERGENCY_FLOOR_PCT" validate:"gt=0"`

	// Settlement schedule.
	SettlementNearDays int `yaml:"settlement_near_days" envconfig:"SETTLEMENT_NEAR_DAYS" validate:"gt=0"`
}

// Load loads configuration from defaults, an optional YAML file, and
// environment variables, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := overlayFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process("JPX", cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// overlayFromFile merges YAML file values over the current config.
func overlayFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// findConfigFile returns the first config file found in common locations.
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "both",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			StateFile:   "data/state.json",
			ReportsDir:  "data/reports",
			HolidayFile: "configs/holidays.yaml",
		},
		Sources: SourcesConfig{
			ArbitrageURL:    "https://irbank.net/market/arbitrage",
			TurnoverURL:     "https://www.nikkei.com/markets/kabu/japanidx/",
			ChartBaseURL:    "https://query1.finance.yahoo.com/v8/finance/chart",
			PrimaryTicker:   "^TOPX",
			SecondaryTicker: "^N225",
			FuturesTicker:   "NK=F",
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			FetchTimeout:    20 * time.Second,
			RequestsPerSec:  1,

			PositionLookback: "3y",
			MoveLookback:     "5d",
			BasisLookback:    "1mo",
		},
		Engine: DefaultEngine(),
	}
}

// DefaultEngine returns the baseline engine thresholds.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		MaxHistoryRecords: 245 * 5,

		ArbWindowPrimary:  245,
		ArbWindowFallback: 126,
		ArbHighPercentile: 0.80,

		Margin5Ratio:  0.02,
		Margin5Floor:  0.05,
		Margin25Ratio: 0.05,
		Margin25Floor: 0.10,

		VolumeMAWindow:    20,
		VolumeRatioThin:   0.85,
		MoveThresholdPct:  1.0,
		SpikeThresholdPct: 2.0,

		IndexMinPoints:  500,
		IndexMA:         200,
		IndexPctlHigh:   0.90,
		IndexDev200High: 0.08,
		IndexPctlLow:    0.10,
		IndexDev200Low:  -0.08,

		BasisLag: 5,

		EmergencyQuantile:  0.99,
		EmergencyMinPoints: 60,
		EmergencyFloorPct:  3.0,

		SettlementNearDays: 5,
	}
}
