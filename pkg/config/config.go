package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig                 `mapstructure:"app" yaml:"app"`
	Logger     LoggerConfig              `mapstructure:"logger" yaml:"logger"`
	Browser    BrowserConfig             `mapstructure:"browser" yaml:"browser"`
	Agent      AgentConfig               `mapstructure:"agent" yaml:"agent"`
	Providers  map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
	Governance GovernanceConfig          `mapstructure:"governance" yaml:"governance"`
	Gateways   GatewaysConfig            `mapstructure:"gateways" yaml:"gateways"`
}

type AppConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	// Provider names the preferred entry of Providers.
	Provider string `mapstructure:"provider" yaml:"provider"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	EventsFile string `mapstructure:"events_file" yaml:"events_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
}

type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	NoSandbox         bool          `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	DefaultTimeout    time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
}

type AgentConfig struct {
	MaxSteps           int           `mapstructure:"max_steps" yaml:"max_steps"`
	MaxElements        int           `mapstructure:"max_elements" yaml:"max_elements"`
	SummaryChars       int           `mapstructure:"summary_chars" yaml:"summary_chars"`
	MaxWait            time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
	SnapshotRetries    int           `mapstructure:"snapshot_retries" yaml:"snapshot_retries"`
	SnapshotRetryDelay time.Duration `mapstructure:"snapshot_retry_delay" yaml:"snapshot_retry_delay"`
	StepDelay          time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	Temperature        float64       `mapstructure:"temperature" yaml:"temperature"`
	PromptsDir         string        `mapstructure:"prompts_dir" yaml:"prompts_dir"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	Model   string `mapstructure:"model" yaml:"model"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

type GovernanceConfig struct {
	DeniedActions     []string `mapstructure:"denied_actions" yaml:"denied_actions"`
	DeniedURLPatterns []string `mapstructure:"denied_url_patterns" yaml:"denied_url_patterns"`
}

type GatewaysConfig struct {
	HTTP     HTTPConfig    `mapstructure:"http" yaml:"http"`
	Telegram GatewayConfig `mapstructure:"telegram" yaml:"telegram"`
	Discord  GatewayConfig `mapstructure:"discord" yaml:"discord"`
}

type HTTPConfig struct {
	Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr              string `mapstructure:"addr" yaml:"addr"`
	MaxConcurrentRuns int    `mapstructure:"max_concurrent_runs" yaml:"max_concurrent_runs"`
	DefaultMaxSteps   int    `mapstructure:"default_max_steps" yaml:"default_max_steps"`
	MaxStepsLimit     int    `mapstructure:"max_steps_limit" yaml:"max_steps_limit"`
}

type GatewayConfig struct {
	Token   string `mapstructure:"token" yaml:"token"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "robodriver")
	v.SetDefault("app.provider", "googleai")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.events_file", "logs/events.jsonl")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.default_timeout", "30s")
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.element_timeout", "10s")

	v.SetDefault("agent.max_steps", 20)
	v.SetDefault("agent.max_elements", 40)
	v.SetDefault("agent.summary_chars", 600)
	v.SetDefault("agent.max_wait", "10s")
	v.SetDefault("agent.snapshot_retries", 3)
	v.SetDefault("agent.snapshot_retry_delay", "500ms")
	v.SetDefault("agent.step_delay", "1s")
	v.SetDefault("agent.temperature", 0.2)
	v.SetDefault("agent.prompts_dir", "./prompts")

	v.SetDefault("providers.googleai.model", "gemini-2.5-flash")
	v.SetDefault("providers.googleai.enabled", true)
	v.SetDefault("providers.openai.model", "gpt-4o-mini")
	v.SetDefault("providers.openai.enabled", false)
	v.SetDefault("providers.openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("providers.openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("providers.openrouter.enabled", false)

	v.SetDefault("governance.denied_actions", []string{})
	v.SetDefault("governance.denied_url_patterns", []string{`^(file|chrome|javascript|data):`})

	v.SetDefault("gateways.http.enabled", true)
	v.SetDefault("gateways.http.addr", ":8000")
	v.SetDefault("gateways.http.max_concurrent_runs", 2)
	v.SetDefault("gateways.http.default_max_steps", 15)
	v.SetDefault("gateways.http.max_steps_limit", 50)
	v.SetDefault("gateways.telegram.enabled", false)
	v.SetDefault("gateways.discord.enabled", false)
}

// Load reads path (or ./config.yaml when path is empty), applies ROBODRIVER_*
// environment overrides and the conventional provider key variables, and
// validates the result. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ROBODRIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("providers.googleai.api_key", "ROBODRIVER_PROVIDERS_GOOGLEAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("providers.openai.api_key", "ROBODRIVER_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("providers.openrouter.api_key", "ROBODRIVER_PROVIDERS_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("gateways.telegram.token", "ROBODRIVER_GATEWAYS_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("gateways.discord.token", "ROBODRIVER_GATEWAYS_DISCORD_TOKEN", "DISCORD_BOT_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration made of defaults only.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to decode default config: %v", err))
	}
	return &cfg
}

func (c *Config) Validate() error {
	if c.Agent.MaxSteps <= 0 {
		return errors.New("agent.max_steps must be positive")
	}
	if c.Agent.MaxElements <= 0 {
		return errors.New("agent.max_elements must be positive")
	}
	if c.Agent.SnapshotRetries < 0 {
		return errors.New("agent.snapshot_retries must not be negative")
	}
	if c.Agent.MaxWait <= 0 {
		return errors.New("agent.max_wait must be positive")
	}
	if c.Browser.NavigationTimeout <= 0 || c.Browser.ElementTimeout <= 0 {
		return errors.New("browser timeouts must be positive")
	}
	if c.Gateways.HTTP.MaxStepsLimit <= 0 {
		return errors.New("gateways.http.max_steps_limit must be positive")
	}
	return nil
}

// GetDefaultProvider returns app.provider when it is enabled, otherwise the
// first enabled provider in name order.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	if p, ok := c.Providers[c.App.Provider]; ok && p.Enabled {
		return c.App.Provider, p
	}
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// DefaultYAML renders the defaults as a YAML document.
func DefaultYAML() ([]byte, error) {
	v := viper.New()
	SetDefaults(v)
	return yaml.Marshal(v.AllSettings())
}

// WriteDefault writes the default configuration to path as YAML. Existing
// files are left untouched.
func WriteDefault(path string) error {
	data, err := DefaultYAML()
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
