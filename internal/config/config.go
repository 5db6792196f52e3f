package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// StateDirName is the per-user state directory created under the home directory.
const StateDirName = ".prefixhider"

// Config holds all prefixhider configuration.
type Config struct {
	Selectors SelectorsConfig `yaml:"selectors"`
	Engine    EngineConfig    `yaml:"engine"`
	Browser   BrowserConfig   `yaml:"browser"`
	Store     StoreConfig     `yaml:"store"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// SelectorsConfig names the nodes the engine works on.
type SelectorsConfig struct {
	Root  string `yaml:"root"`  // containers to observe
	Label string `yaml:"label"` // text nodes to rewrite
}

// EngineConfig tunes the synchronization engine.
type EngineConfig struct {
	FrameInterval  string `yaml:"frame_interval"`
	DiscoveryRetry string `yaml:"discovery_retry"`
	FetchTimeout   string `yaml:"fetch_timeout"`
}

// StoreConfig selects where the prefix list lives.
type StoreConfig struct {
	Source       string `yaml:"source"` // sqlite, file
	DatabasePath string `yaml:"database_path"`
	FilePath     string `yaml:"file_path"`
}

// NotifyConfig configures the cross-process "recompute now" signal.
type NotifyConfig struct {
	RunDir  string `yaml:"run_dir"`
	Timeout string `yaml:"timeout"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Source names.
const (
	SourceSQLite = "sqlite"
	SourceFile   = "file"
)

// DefaultStateDir returns ~/.prefixhider, or ./.prefixhider when the home directory is unknown.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return StateDirName
	}
	return filepath.Join(home, StateDirName)
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(DefaultStateDir(), "config.yaml")
}

// DefaultConfig returns the default configuration rooted at DefaultStateDir.
func DefaultConfig() *Config {
	return DefaultConfigIn(DefaultStateDir())
}

// DefaultConfigIn returns the default configuration with all paths under stateDir.
func DefaultConfigIn(stateDir string) *Config {
	return &Config{
		Selectors: SelectorsConfig{
			Root:  ".p-channel_sidebar",
			Label: ".p-channel_sidebar__name",
		},
		Engine: EngineConfig{
			FrameInterval:  "16ms",
			DiscoveryRetry: "500ms",
			FetchTimeout:   "5s",
		},
		Browser: DefaultBrowserConfig(),
		Store: StoreConfig{
			Source:       SourceSQLite,
			DatabasePath: filepath.Join(stateDir, "prefixes.db"),
			FilePath:     filepath.Join(stateDir, "prefixes.yaml"),
		},
		Notify: NotifyConfig{
			RunDir:  filepath.Join(stateDir, "run"),
			Timeout: "2s",
		},
		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
		},
	}
}

// StateDir returns the directory holding the store, logs and run files: the parent
// of the configured database path.
func (c *Config) StateDir() string {
	return filepath.Dir(c.Store.DatabasePath)
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("PREFIXHIDER_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
	if path := os.Getenv("PREFIXHIDER_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if src := os.Getenv("PREFIXHIDER_SOURCE"); src != "" {
		c.Store.Source = src
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetFrameInterval returns the scheduler frame interval.
func (c *Config) GetFrameInterval() time.Duration {
	return parseDuration(c.Engine.FrameInterval, 16*time.Millisecond)
}

// GetDiscoveryRetry returns the root discovery retry interval.
func (c *Config) GetDiscoveryRetry() time.Duration {
	return parseDuration(c.Engine.DiscoveryRetry, 500*time.Millisecond)
}

// GetFetchTimeout returns the prefix fetch timeout.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDuration(c.Engine.FetchTimeout, 5*time.Second)
}

// GetNotifyTimeout returns the per-observer notification timeout.
func (c *Config) GetNotifyTimeout() time.Duration {
	return parseDuration(c.Notify.Timeout, 2*time.Second)
}

// ValidSources lists the supported prefix sources.
var ValidSources = []string{SourceSQLite, SourceFile}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Selectors.Root == "" || c.Selectors.Label == "" {
		return fmt.Errorf("selectors.root and selectors.label are required")
	}

	valid := false
	for _, s := range ValidSources {
		if c.Store.Source == s {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid store source: %s (valid: %v)", c.Store.Source, ValidSources)
	}
	if c.Store.Source == SourceSQLite && c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path is required for the sqlite source")
	}
	if c.Store.Source == SourceFile && c.Store.FilePath == "" {
		return fmt.Errorf("store.file_path is required for the file source")
	}
	if c.Notify.RunDir == "" {
		return fmt.Errorf("notify.run_dir is required")
	}
	return nil
}
