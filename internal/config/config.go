package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
}

// LoggerConfig controls the zap logger construction.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ResolverConfig tunes element resolution. The scoring weights and confidence
// thresholds are fixed constants in production use but remain overridable
// here so tests and experiments can pin them.
type ResolverConfig struct {
	Weights    ScoringWeights       `mapstructure:"weights" yaml:"weights"`
	Thresholds ConfidenceThresholds `mapstructure:"thresholds" yaml:"thresholds"`

	// Timeout bounds one FindElement call, polling included.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// PollInterval is the pause between re-scoring passes while waiting for
	// dynamically rendered content.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// ScrollSettleWait is the pause after scrolling a candidate into view
	// before re-checking its visibility.
	ScrollSettleWait time.Duration `mapstructure:"scroll_settle_wait" yaml:"scroll_settle_wait"`
	// NearbyTextRadius is the maximum center-to-center distance (px) at which
	// a text fragment still contributes proximity score.
	NearbyTextRadius float64 `mapstructure:"nearby_text_radius" yaml:"nearby_text_radius"`
}

// ScoringWeights are the per-signal contributions to a candidate's score.
type ScoringWeights struct {
	LabelExact    float64 `mapstructure:"label_exact" yaml:"label_exact"`
	LabelContains float64 `mapstructure:"label_contains" yaml:"label_contains"`
	NameContains  float64 `mapstructure:"name_contains" yaml:"name_contains"`
	IDContains    float64 `mapstructure:"id_contains" yaml:"id_contains"`
	RoleBias      float64 `mapstructure:"role_bias" yaml:"role_bias"`
	NearbyText    float64 `mapstructure:"nearby_text" yaml:"nearby_text"`
}

// ConfidenceThresholds map a numeric score onto coarse confidence tiers.
// Anything below Low is discarded entirely.
type ConfidenceThresholds struct {
	High   float64 `mapstructure:"high" yaml:"high"`
	Medium float64 `mapstructure:"medium" yaml:"medium"`
	Low    float64 `mapstructure:"low" yaml:"low"`
}

// EngineConfig tunes the interaction engine's timing behavior.
type EngineConfig struct {
	// StepPacing is the delay inserted between successfully completed plan
	// steps so the page is not flooded with synthetic events.
	StepPacing time.Duration `mapstructure:"step_pacing" yaml:"step_pacing"`
	// DefaultWait applies to wait actions that carry no explicit waitMs.
	DefaultWait time.Duration `mapstructure:"default_wait" yaml:"default_wait"`

	// Per-character delay bounds for character-by-character typing.
	CharDelayMin time.Duration `mapstructure:"char_delay_min" yaml:"char_delay_min"`
	CharDelayMax time.Duration `mapstructure:"char_delay_max" yaml:"char_delay_max"`
	// Per-character and inter-word delay bounds for word-by-word typing.
	WordCharDelayMin time.Duration `mapstructure:"word_char_delay_min" yaml:"word_char_delay_min"`
	WordCharDelayMax time.Duration `mapstructure:"word_char_delay_max" yaml:"word_char_delay_max"`
	WordPauseMin     time.Duration `mapstructure:"word_pause_min" yaml:"word_pause_min"`
	WordPauseMax     time.Duration `mapstructure:"word_pause_max" yaml:"word_pause_max"`

	// Mouse button hold bounds between mousedown and mouseup.
	ClickHoldMin time.Duration `mapstructure:"click_hold_min" yaml:"click_hold_min"`
	ClickHoldMax time.Duration `mapstructure:"click_hold_max" yaml:"click_hold_max"`

	// Scroll settle detection: scrolling counts as finished once the scroll
	// position has been stable for ScrollQuiet, with ScrollCeiling as the
	// hard upper bound.
	ScrollQuiet   time.Duration `mapstructure:"scroll_quiet" yaml:"scroll_quiet"`
	ScrollCeiling time.Duration `mapstructure:"scroll_ceiling" yaml:"scroll_ceiling"`

	// TabSettle is the pause after dispatching a Tab key before reading the
	// new active element.
	TabSettle time.Duration `mapstructure:"tab_settle" yaml:"tab_settle"`
}

// BrowserConfig controls the headless browser used by the live page adapter.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth       int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight      int           `mapstructure:"window_height" yaml:"window_height"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagepilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Resolver --
	v.SetDefault("resolver.weights.label_exact", 3.0)
	v.SetDefault("resolver.weights.label_contains", 2.0)
	v.SetDefault("resolver.weights.name_contains", 1.5)
	v.SetDefault("resolver.weights.id_contains", 1.0)
	v.SetDefault("resolver.weights.role_bias", 0.8)
	v.SetDefault("resolver.weights.nearby_text", 0.6)
	v.SetDefault("resolver.thresholds.high", 4.0)
	v.SetDefault("resolver.thresholds.medium", 2.5)
	v.SetDefault("resolver.thresholds.low", 1.0)
	v.SetDefault("resolver.timeout", "5s")
	v.SetDefault("resolver.poll_interval", "100ms")
	v.SetDefault("resolver.scroll_settle_wait", "300ms")
	v.SetDefault("resolver.nearby_text_radius", 120.0)

	// -- Engine --
	v.SetDefault("engine.step_pacing", "100ms")
	v.SetDefault("engine.default_wait", "1s")
	v.SetDefault("engine.char_delay_min", "15ms")
	v.SetDefault("engine.char_delay_max", "40ms")
	v.SetDefault("engine.word_char_delay_min", "5ms")
	v.SetDefault("engine.word_char_delay_max", "15ms")
	v.SetDefault("engine.word_pause_min", "50ms")
	v.SetDefault("engine.word_pause_max", "150ms")
	v.SetDefault("engine.click_hold_min", "50ms")
	v.SetDefault("engine.click_hold_max", "100ms")
	v.SetDefault("engine.scroll_quiet", "150ms")
	v.SetDefault("engine.scroll_ceiling", "1s")
	v.SetDefault("engine.tab_settle", "50ms")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
}

// NewDefaultConfig returns a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only; fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper builds and validates a configuration from a viper
// instance that has already read its sources (file, env, flags).
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// BindEnvironment wires the PAGEPILOT_* environment namespace into v.
func BindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix("PAGEPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if err := c.Resolver.Validate(); err != nil {
		return fmt.Errorf("resolver configuration invalid: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine configuration invalid: %w", err)
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser.window_width and browser.window_height must be positive")
	}
	return nil
}

// Validate checks resolver parameters.
func (r *ResolverConfig) Validate() error {
	t := r.Thresholds
	if !(t.High > t.Medium && t.Medium > t.Low && t.Low > 0) {
		return fmt.Errorf("thresholds must satisfy high > medium > low > 0 (got %.2f/%.2f/%.2f)", t.High, t.Medium, t.Low)
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if r.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if r.NearbyTextRadius <= 0 {
		return fmt.Errorf("nearby_text_radius must be positive")
	}
	return nil
}

// Validate checks engine timing parameters.
func (e *EngineConfig) Validate() error {
	ranges := []struct {
		name     string
		min, max time.Duration
	}{
		{"char_delay", e.CharDelayMin, e.CharDelayMax},
		{"word_char_delay", e.WordCharDelayMin, e.WordCharDelayMax},
		{"word_pause", e.WordPauseMin, e.WordPauseMax},
		{"click_hold", e.ClickHoldMin, e.ClickHoldMax},
	}
	for _, r := range ranges {
		if r.min < 0 || r.max < r.min {
			return fmt.Errorf("engine.%s range is invalid (min %v, max %v)", r.name, r.min, r.max)
		}
	}
	if e.ScrollQuiet <= 0 || e.ScrollCeiling < e.ScrollQuiet {
		return fmt.Errorf("scroll_quiet must be positive and no larger than scroll_ceiling")
	}
	return nil
}
