// Package config loads appraisal settings: YAML file, then environment,
// on top of built-in defaults.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"property_appraisal/pkg/core/method"
	"property_appraisal/pkg/core/survey"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Environment variables.
const (
	EnvConfigPath  = "APPRAISAL_CONFIG"
	EnvDatabaseURL = "DATABASE_URL"
	EnvOfferingPct = "APPRAISAL_DEFAULT_OFFERING_PCT"
	EnvStrictReads = "APPRAISAL_STRICT_READS"
)

// DefaultPath is read when neither a path nor APPRAISAL_CONFIG is given.
const DefaultPath = "config/appraisal.yaml"

// Config is the full settings file.
type Config struct {
	Defaults        Defaults           `yaml:"defaults"`
	Levels          map[string]float64 `yaml:"levels" validate:"min=1"`
	Granularity     map[string]float64 `yaml:"granularity" validate:"dive,keys,oneof=grid direct wqs,endkeys,gte=0"`
	QualitativeRows []Row              `yaml:"qualitative_rows" validate:"dive"`
	Database        Database           `yaml:"database"`
	// StrictReads turns on the engine's undeclared-read audit.
	StrictReads bool `yaml:"strict_reads"`
}

// Defaults are the values seeded into untouched cells.
type Defaults struct {
	OfferingAdjustPct float64 `yaml:"offering_adjust_pct" validate:"gte=0,lte=100"`
	Level             string  `yaml:"level" validate:"required"`
}

// Row configures one qualitative factor row.
type Row struct {
	Code  string `yaml:"code" validate:"required"`
	Label string `yaml:"label"`
}

// Database locates the survey repository.
type Database struct {
	URL string `yaml:"url"`
	// MaxConns caps the pool; 0 keeps the driver default.
	MaxConns int32 `yaml:"max_conns" validate:"gte=0"`
}

var configValidate = validator.New()

// Default returns the built-in configuration.
func Default() Config {
	s := method.DefaultSettings()
	levels := make(map[string]float64, len(s.Levels))
	for k, v := range s.Levels {
		levels[k] = v
	}
	return Config{
		Defaults: Defaults{
			OfferingAdjustPct: s.DefaultOfferingAdjustPct,
			Level:             s.DefaultLevel,
		},
		Levels: levels,
		Granularity: map[string]float64{
			string(method.KindSaleGrid): s.Granularity,
			string(method.KindDirect):   s.Granularity,
			string(method.KindWQS):      s.Granularity,
		},
	}
}

// LoadEnv loads .env files into the process environment. A missing file is
// not an error.
func LoadEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		log.Println("[config] .env file not found, assuming environment variables are set")
	}
}

// Load reads configuration with priority env > file > defaults. An empty
// path falls back to APPRAISAL_CONFIG, then DefaultPath. A missing file is
// not an error; an unreadable or invalid one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultPath
	}

	// Level codes are case-insensitive, so file entries are normalized
	// before the defaults fill the gaps.
	defaultLevels := cfg.Levels
	cfg.Levels = nil
	if err := loadFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.normalize()
	for code, pct := range defaultLevels {
		if _, ok := cfg.Levels[code]; !ok {
			cfg.Levels[code] = pct
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv(EnvOfferingPct); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Defaults.OfferingAdjustPct = f
		} else {
			log.Printf("[config] ignoring %s=%q: %v", EnvOfferingPct, v, err)
		}
	}
	if v := os.Getenv(EnvStrictReads); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.StrictReads = b
		}
	}
}

// normalize upper-cases level codes so lookups match method.LevelTable.
func (c *Config) normalize() {
	levels := make(map[string]float64, len(c.Levels))
	for k, v := range c.Levels {
		levels[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	c.Levels = levels
	c.Defaults.Level = strings.ToUpper(strings.TrimSpace(c.Defaults.Level))
}

// Validate checks field ranges and that the default level is defined.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, ok := c.Levels[c.Defaults.Level]; !ok {
		return fmt.Errorf("invalid config: default level %q is not in the level table", c.Defaults.Level)
	}
	return nil
}

// Settings returns the rule-builder settings for a method.
func (c Config) Settings(k method.Kind) method.Settings {
	levels := make(method.LevelTable, len(c.Levels))
	for code, pct := range c.Levels {
		levels[code] = pct
	}
	return method.Settings{
		DefaultOfferingAdjustPct: c.Defaults.OfferingAdjustPct,
		DefaultLevel:             c.Defaults.Level,
		Levels:                   levels,
		Granularity:              c.Granularity[string(k)],
	}
}

// Rows returns the configured qualitative rows.
func (c Config) Rows() []method.QualitativeRow {
	rows := make([]method.QualitativeRow, len(c.QualitativeRows))
	for i, r := range c.QualitativeRows {
		label := r.Label
		if label == "" {
			label = r.Code
		}
		rows[i] = method.QualitativeRow{Code: survey.Code(r.Code), Label: label}
	}
	return rows
}
