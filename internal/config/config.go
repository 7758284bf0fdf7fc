// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Portal     PortalConfig     `mapstructure:"portal" yaml:"portal"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Automation AutomationConfig `mapstructure:"automation" yaml:"automation"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// PortalConfig describes the target portal and the account used against it.
// Credentials are opaque strings resolved once per run and never logged.
type PortalConfig struct {
	Username string   `mapstructure:"username" yaml:"-"`
	Password string   `mapstructure:"password" yaml:"-"`
	LoginURL string   `mapstructure:"login_url" yaml:"login_url"`
	HomeURL  string   `mapstructure:"home_url" yaml:"home_url"`
	Devices  []string `mapstructure:"devices" yaml:"devices"`
	Modes    []string `mapstructure:"modes" yaml:"modes"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	NoSandbox       bool          `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	DisableGPU      bool          `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	WindowWidth     int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int           `mapstructure:"window_height" yaml:"window_height"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	ImplicitWait    time.Duration `mapstructure:"implicit_wait" yaml:"implicit_wait"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout" yaml:"page_load_timeout"`
}

// AutomationConfig tunes run pacing and failure capture.
type AutomationConfig struct {
	Delay             time.Duration `mapstructure:"delay" yaml:"delay"`
	GraceWait         time.Duration `mapstructure:"grace_wait" yaml:"grace_wait"`
	RunTimeout        time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
	ScreenshotOnError bool          `mapstructure:"screenshot_on_error" yaml:"screenshot_on_error"`
	ScreenshotsDir    string        `mapstructure:"screenshots_dir" yaml:"screenshots_dir"`
}

// ServerConfig holds the REST wrapper listen settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ecobeectl")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Portal --
	v.SetDefault("portal.login_url", "https://www.ecobee.com/consumerportal/index.html")
	v.SetDefault("portal.home_url", "https://www.ecobee.com/home/index.html")
	v.SetDefault("portal.devices", []string{"Main Floor", "Upstairs"})
	v.SetDefault("portal.modes", []string{"aux", "heat"})

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	v.SetDefault("browser.implicit_wait", 10*time.Second)
	v.SetDefault("browser.page_load_timeout", 30*time.Second)

	// -- Automation --
	v.SetDefault("automation.delay", 2*time.Second)
	v.SetDefault("automation.grace_wait", 10*time.Second)
	v.SetDefault("automation.run_timeout", 2*time.Minute)
	v.SetDefault("automation.screenshot_on_error", true)
	v.SetDefault("automation.screenshots_dir", "screenshots")

	// -- Server --
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind the environment variables the deployment scripts have always used.
	// These take precedence over any config file value.
	v.BindEnv("portal.username", "ECOBEE_USERNAME")
	v.BindEnv("portal.password", "ECOBEE_PASSWORD")
	v.BindEnv("browser.headless", "WEBDRIVER_HEADLESS")
	v.BindEnv("browser.implicit_wait", "WEBDRIVER_IMPLICIT_WAIT")
	v.BindEnv("browser.page_load_timeout", "WEBDRIVER_PAGE_LOAD_TIMEOUT")
	v.BindEnv("automation.delay", "AUTOMATION_DELAY")
	v.BindEnv("automation.screenshot_on_error", "SCREENSHOT_ON_ERROR")
	v.BindEnv("server.port", "API_PORT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig creates a configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for required fields and sane values.
// Credentials are checked separately so commands that never touch the portal
// can still run (see RequireCredentials).
func (c *Config) Validate() error {
	if c.Portal.LoginURL == "" || c.Portal.HomeURL == "" {
		return fmt.Errorf("portal.login_url and portal.home_url are required")
	}
	if len(c.Portal.Devices) == 0 {
		return fmt.Errorf("portal.devices must list at least one device name")
	}
	if len(c.Portal.Modes) == 0 {
		return fmt.Errorf("portal.modes must list at least one mode label")
	}
	if c.Automation.RunTimeout <= 0 {
		return fmt.Errorf("automation.run_timeout must be a positive duration")
	}
	if c.Browser.ImplicitWait <= 0 {
		return fmt.Errorf("browser.implicit_wait must be a positive duration")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port")
	}
	return nil
}

// RequireCredentials verifies that a credential pair has been configured.
func (c *Config) RequireCredentials() error {
	if c.Portal.Username == "" || c.Portal.Password == "" {
		return fmt.Errorf("no credentials configured: set ECOBEE_USERNAME and ECOBEE_PASSWORD")
	}
	return nil
}

// KnownDevice reports whether name is one of the configured device names.
func (c *Config) KnownDevice(name string) bool {
	for _, d := range c.Portal.Devices {
		if d == name {
			return true
		}
	}
	return false
}

// KnownMode reports whether mode is a member of the configured mode set.
func (c *Config) KnownMode(mode string) bool {
	for _, m := range c.Portal.Modes {
		if m == mode {
			return true
		}
	}
	return false
}
