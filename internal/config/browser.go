package config

import "time"

// BrowserConfig configures the Chrome connection used by `prefixhider run`.
type BrowserConfig struct {
	DebuggerURL       string   `yaml:"debugger_url"` // attach to a running Chrome; empty launches one
	Launch            []string `yaml:"launch"`       // binary followed by flags
	Headless          bool     `yaml:"headless"`
	TargetURL         string   `yaml:"target_url"`  // opened when no page matches URLPattern
	URLPattern        string   `yaml:"url_pattern"` // substring identifying pages to attach to
	PollInterval      string   `yaml:"poll_interval"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
}

// DefaultBrowserConfig returns defaults aimed at the Slack web client.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:          false,
		TargetURL:         "https://app.slack.com/client",
		URLPattern:        "app.slack.com",
		PollInterval:      "100ms",
		NavigationTimeout: "30s",
	}
}

// GetPollInterval returns how often the page mutation buffer is drained.
func (b BrowserConfig) GetPollInterval() time.Duration {
	return parseDuration(b.PollInterval, 100*time.Millisecond)
}

// GetNavigationTimeout returns the navigation timeout.
func (b BrowserConfig) GetNavigationTimeout() time.Duration {
	return parseDuration(b.NavigationTimeout, 30*time.Second)
}
