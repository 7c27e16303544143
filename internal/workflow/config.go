package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codescope/codescope/internal/decision"
	"github.com/codescope/codescope/internal/types"
)

// Config holds resolved settings for one run.
type Config struct {
	// Root is the directory or file to analyze.
	Root string

	// ExcludePaths are gitignore-style patterns applied on top of the
	// repository's own ignore rules.
	ExcludePaths []string

	// Workers is the analysis worker count per language branch.
	Workers int

	// MaxInFlight caps files being processed across all branches.
	MaxInFlight int64

	// ParallelThreshold is the minimum total file count before a
	// multi-category manifest gets parallel branches.
	ParallelThreshold int

	// RunTimeout bounds the whole run. Zero means no limit. A run that
	// hits the limit keeps its partial results and finishes degraded.
	RunTimeout time.Duration

	// Enhancement thresholds.
	Decision decision.Config

	// EnhancementEnabled turns the costly per-file call on or off.
	EnhancementEnabled bool

	// Model overrides the enhancement model.
	Model string

	// DBPath is where index chunks persist. Empty disables persistence.
	DBPath string

	// IndexWorkers and IndexQueueSize size the background indexer.
	IndexWorkers   int
	IndexQueueSize int
}

// DefaultConfig returns the default run configuration.
func DefaultConfig() *Config {
	return &Config{
		Root:               ".",
		Workers:            4,
		MaxInFlight:        8,
		ParallelThreshold:  2,
		RunTimeout:         10 * time.Minute,
		Decision:           decision.DefaultConfig(),
		EnhancementEnabled: true,
		IndexWorkers:       2,
		IndexQueueSize:     64,
	}
}

// ConfigFile represents the structure of .codescope.yaml
type ConfigFile struct {
	ExcludePaths      []string `yaml:"exclude_paths"`
	Workers           int      `yaml:"workers"`
	MaxInFlight       int64    `yaml:"max_in_flight"`
	ParallelThreshold int      `yaml:"parallel_threshold"`
	RunTimeout        string   `yaml:"run_timeout"` // Duration string like "5m", "1h"

	Enhancement EnhancementConfig `yaml:"enhancement"`
	Index       IndexConfig       `yaml:"index"`
}

// EnhancementConfig defines enhancement settings in the config file.
type EnhancementConfig struct {
	Enabled         *bool  `yaml:"enabled"`
	Model           string `yaml:"model"`
	MaxIssues       int    `yaml:"max_issues"`
	MaxSeverity     string `yaml:"max_severity"`
	MaxFileChars    int    `yaml:"max_file_chars"`
	MaxDependencies int    `yaml:"max_dependencies"`
}

// IndexConfig defines index settings in the config file.
type IndexConfig struct {
	DBPath    string `yaml:"db_path"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

// LoadConfigFile loads configuration from .codescope.yaml under projectRoot,
// returning defaults if the file does not exist.
func LoadConfigFile(projectRoot string) (*Config, error) {
	configPath := filepath.Join(projectRoot, ".codescope.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Root = projectRoot
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var configFile ConfigFile
	if err := yaml.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg, err := configFile.ToConfig()
	if err != nil {
		return nil, err
	}
	cfg.Root = projectRoot
	return cfg, nil
}

// ToConfig converts a ConfigFile to a Config, starting from defaults.
func (cf *ConfigFile) ToConfig() (*Config, error) {
	config := DefaultConfig()

	if len(cf.ExcludePaths) > 0 {
		config.ExcludePaths = cf.ExcludePaths
	}
	if cf.Workers > 0 {
		config.Workers = cf.Workers
	}
	if cf.MaxInFlight > 0 {
		config.MaxInFlight = cf.MaxInFlight
	}
	if cf.ParallelThreshold > 0 {
		config.ParallelThreshold = cf.ParallelThreshold
	}
	if cf.RunTimeout != "" {
		duration, err := parseDuration(cf.RunTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid run_timeout: %w", err)
		}
		config.RunTimeout = duration
	}

	if cf.Enhancement.Enabled != nil {
		config.EnhancementEnabled = *cf.Enhancement.Enabled
	}
	if cf.Enhancement.Model != "" {
		config.Model = cf.Enhancement.Model
	}
	if cf.Enhancement.MaxIssues > 0 {
		config.Decision.MaxIssues = cf.Enhancement.MaxIssues
	}
	if cf.Enhancement.MaxSeverity != "" {
		severity := types.Severity(cf.Enhancement.MaxSeverity)
		if severity.Rank() == 0 {
			return nil, fmt.Errorf("invalid max_severity: %q", cf.Enhancement.MaxSeverity)
		}
		config.Decision.MaxSeverity = severity
	}
	if cf.Enhancement.MaxFileChars > 0 {
		config.Decision.MaxFileChars = cf.Enhancement.MaxFileChars
	}
	if cf.Enhancement.MaxDependencies > 0 {
		config.Decision.MaxDependencies = cf.Enhancement.MaxDependencies
	}

	if cf.Index.DBPath != "" {
		config.DBPath = cf.Index.DBPath
	}
	if cf.Index.Workers > 0 {
		config.IndexWorkers = cf.Index.Workers
	}
	if cf.Index.QueueSize > 0 {
		config.IndexQueueSize = cf.Index.QueueSize
	}

	return config, nil
}

// parseDuration parses duration strings like "5m", "1h", "7d"
func parseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days := s[:len(s)-1]
		var d int
		if _, err := fmt.Sscanf(days, "%d", &d); err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
