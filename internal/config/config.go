package config

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"github.com/rewired-gh/rulesweep/internal/miner"
)

// Config represents the complete application configuration
type Config struct {
	Data        DataConfig        `mapstructure:"data"`
	Miner       MinerConfig       `mapstructure:"miner"`
	Grid        GridConfig        `mapstructure:"grid"`
	Sensitivity SensitivityConfig `mapstructure:"sensitivity"`
	Sweep       SweepConfig       `mapstructure:"sweep"`
	Output      OutputConfig      `mapstructure:"output"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// DataConfig locates the cleaned transaction dataset and its columns
type DataConfig struct {
	Path           string   `mapstructure:"path"`
	InvoiceColumn  string   `mapstructure:"invoice_column"`
	ItemColumn     string   `mapstructure:"item_column"`
	QuantityColumn string   `mapstructure:"quantity_column"`
	DateColumn     string   `mapstructure:"date_column"`
	DateLayouts    []string `mapstructure:"date_layouts"`
}

// MinerConfig holds rule generation settings
type MinerConfig struct {
	Metric              string  `mapstructure:"metric"`
	GenerationThreshold float64 `mapstructure:"generation_threshold"`
	MaxLen              int     `mapstructure:"max_len"`
}

// GridConfig holds the threshold lists of the grid sweep
type GridConfig struct {
	Supports    []float64 `mapstructure:"supports"`
	Confidences []float64 `mapstructure:"confidences"`
	Lifts       []float64 `mapstructure:"lifts"`
	TopN        int       `mapstructure:"top_n"`
}

// SensitivityConfig holds the support axis and fixed thresholds of the sensitivity sweep
type SensitivityConfig struct {
	Supports      []float64 `mapstructure:"supports"`
	MinConfidence float64   `mapstructure:"min_confidence"`
	MinLift       float64   `mapstructure:"min_lift"`
	TopN          int       `mapstructure:"top_n"`
}

// SweepConfig holds execution settings shared by both drivers
type SweepConfig struct {
	Workers int `mapstructure:"workers"`
}

// OutputConfig holds artifact output configuration
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	XLSX     bool   `mapstructure:"xlsx"`
	Manifest bool   `mapstructure:"manifest"`
}

// StorageConfig holds run history configuration. An empty DBPath disables history.
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. An empty
// path skips the file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. RULESWEEP_OUTPUT_DIR
	v.SetEnvPrefix("RULESWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, eris.Wrapf(err, "config: read %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Data defaults
	v.SetDefault("data.path", "data/processed/cleaned_uk_data.csv")
	v.SetDefault("data.invoice_column", "InvoiceNo")
	v.SetDefault("data.item_column", "Description")
	v.SetDefault("data.quantity_column", "Quantity")
	v.SetDefault("data.date_column", "InvoiceDate")
	v.SetDefault("data.date_layouts", []string{})

	// Miner defaults
	v.SetDefault("miner.metric", string(miner.MetricLift))
	v.SetDefault("miner.generation_threshold", 0.0)
	v.SetDefault("miner.max_len", 0)

	// Grid defaults
	v.SetDefault("grid.supports", []float64{0.025, 0.03, 0.02})
	v.SetDefault("grid.confidences", []float64{0.2, 0.4, 0.6})
	v.SetDefault("grid.lifts", []float64{1.0, 1.5, 2.0})
	v.SetDefault("grid.top_n", 20)

	// Sensitivity defaults
	v.SetDefault("sensitivity.supports", []float64{0.015, 0.02, 0.025, 0.03, 0.04, 0.05})
	v.SetDefault("sensitivity.min_confidence", 0.3)
	v.SetDefault("sensitivity.min_lift", 1.2)
	v.SetDefault("sensitivity.top_n", 50)

	v.SetDefault("sweep.workers", 1)

	// Output defaults
	v.SetDefault("output.dir", "data/processed/apriori_experiments")
	v.SetDefault("output.xlsx", false)
	v.SetDefault("output.manifest", true)

	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.max_runs", 100)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Data config
	if c.Data.Path == "" {
		return eris.New("data.path is required")
	}
	if c.Data.InvoiceColumn == "" || c.Data.ItemColumn == "" || c.Data.DateColumn == "" {
		return eris.New("data.invoice_column, data.item_column and data.date_column are required")
	}

	// Validate Miner config
	if _, err := miner.ParseMetric(c.Miner.Metric); err != nil {
		return eris.New("miner.metric must be one of: support, confidence, lift, leverage, conviction")
	}
	if math.IsNaN(c.Miner.GenerationThreshold) {
		return eris.New("miner.generation_threshold must be a number")
	}
	if c.Miner.MaxLen < 0 {
		return eris.New("miner.max_len must not be negative")
	}

	// Validate Grid config
	if err := checkList("grid.supports", c.Grid.Supports, supportRange); err != nil {
		return err
	}
	if err := checkList("grid.confidences", c.Grid.Confidences, unitRange); err != nil {
		return err
	}
	if err := checkList("grid.lifts", c.Grid.Lifts, liftRange); err != nil {
		return err
	}
	if c.Grid.TopN < 1 {
		return eris.New("grid.top_n must be at least 1")
	}

	// Validate Sensitivity config
	if err := checkList("sensitivity.supports", c.Sensitivity.Supports, supportRange); err != nil {
		return err
	}
	if !unitRange(c.Sensitivity.MinConfidence) {
		return eris.New("sensitivity.min_confidence must be between 0.0 and 1.0")
	}
	if !liftRange(c.Sensitivity.MinLift) {
		return eris.New("sensitivity.min_lift must not be negative")
	}
	if c.Sensitivity.TopN < 1 {
		return eris.New("sensitivity.top_n must be at least 1")
	}

	if c.Sweep.Workers < 1 {
		return eris.New("sweep.workers must be at least 1")
	}

	if c.Output.Dir == "" {
		return eris.New("output.dir is required")
	}
	if c.Storage.MaxRuns < 0 {
		return eris.New("storage.max_runs must not be negative")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return eris.New("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return eris.New("telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Telegram.MaxRetries < 1 {
		return eris.New("telegram.max_retries must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return eris.New("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return eris.New("logging.format must be one of: json, text, console")
	}

	return nil
}

// support must be in (0, 1]: a zero support would make every itemset frequent
func supportRange(v float64) bool { return v > 0 && v <= 1 }

func unitRange(v float64) bool { return v >= 0 && v <= 1 }

func liftRange(v float64) bool { return v >= 0 && !math.IsInf(v, 1) }

func checkList(key string, values []float64, ok func(float64) bool) error {
	if len(values) == 0 {
		return eris.Errorf("%s must contain at least one value", key)
	}
	for _, v := range values {
		if math.IsNaN(v) || !ok(v) {
			return eris.Errorf("%s contains out-of-range value %v", key, v)
		}
	}
	return nil
}
