package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig            `yaml:"app"`
	Monitor       MonitorConfig        `yaml:"monitor"`
	Source        SourceConfig         `yaml:"source"`
	Telegram      TelegramConfig       `yaml:"telegram"`
	Email         EmailConfig          `yaml:"email"`
	Redis         RedisConfig          `yaml:"redis"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
}

type AppConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsAddr string `yaml:"metrics_addr"`
}

type MonitorConfig struct {
	CheckInterval    int           `yaml:"check_interval"`
	Throttle         time.Duration `yaml:"throttle"`
	StopTimeout      time.Duration `yaml:"stop_timeout"`
	OfferingInterval time.Duration `yaml:"offering_interval"`
	SaveInterval     time.Duration `yaml:"save_interval"`
}

type SourceConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Subsidiary        string        `yaml:"subsidiary"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Proxies           []string      `yaml:"proxies"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

type EmailConfig struct {
	SMTPHost  string `yaml:"smtp_host"`
	SMTPPort  int    `yaml:"smtp_port"`
	SMTPUser  string `yaml:"smtp_user"`
	SMTPPass  string `yaml:"smtp_pass"`
	FromEmail string `yaml:"from_email"`
	ToEmail   string `yaml:"to_email"`
}

// RedisConfig is optional; an empty Addr disables state persistence.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type SubscriptionConfig struct {
	PlanCode          string   `yaml:"plan_code"`
	Datacenters       []string `yaml:"datacenters"`
	Name              string   `yaml:"name"`
	NotifyAvailable   *bool    `yaml:"notify_available"`
	NotifyUnavailable bool     `yaml:"notify_unavailable"`
}

// WantsAvailable defaults to true when the field is omitted.
func (s SubscriptionConfig) WantsAvailable() bool {
	return s.NotifyAvailable == nil || *s.NotifyAvailable
}

func Default() Config {
	return Config{
		App: AppConfig{
			LogLevel:    "info",
			LogFormat:   "text",
			MetricsAddr: ":9102",
		},
		Monitor: MonitorConfig{
			CheckInterval:    60,
			Throttle:         time.Second,
			StopTimeout:      3 * time.Second,
			OfferingInterval: 10 * time.Minute,
			SaveInterval:     time.Minute,
		},
		Source: SourceConfig{
			BaseURL:           "https://eu.api.ovh.com",
			Subsidiary:        "FR",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
			Burst:             2,
		},
		Email: EmailConfig{SMTPPort: 587},
		Redis: RedisConfig{Key: "servermon:state"},
	}
}

// Load reads the YAML file at path, fills missing fields with defaults and
// applies SERVERMON_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	defaults := Default()

	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.LogFormat == "" {
		cfg.App.LogFormat = defaults.App.LogFormat
	}
	if cfg.App.MetricsAddr == "" {
		cfg.App.MetricsAddr = defaults.App.MetricsAddr
	}
	if cfg.Monitor.CheckInterval == 0 {
		cfg.Monitor.CheckInterval = defaults.Monitor.CheckInterval
	}
	if cfg.Monitor.Throttle == 0 {
		cfg.Monitor.Throttle = defaults.Monitor.Throttle
	}
	if cfg.Monitor.StopTimeout == 0 {
		cfg.Monitor.StopTimeout = defaults.Monitor.StopTimeout
	}
	if cfg.Monitor.OfferingInterval == 0 {
		cfg.Monitor.OfferingInterval = defaults.Monitor.OfferingInterval
	}
	if cfg.Monitor.SaveInterval == 0 {
		cfg.Monitor.SaveInterval = defaults.Monitor.SaveInterval
	}
	if cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = defaults.Source.BaseURL
	}
	if cfg.Source.Subsidiary == "" {
		cfg.Source.Subsidiary = defaults.Source.Subsidiary
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = defaults.Source.Timeout
	}
	if cfg.Source.RequestsPerSecond == 0 {
		cfg.Source.RequestsPerSecond = defaults.Source.RequestsPerSecond
	}
	if cfg.Source.Burst == 0 {
		cfg.Source.Burst = defaults.Source.Burst
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if cfg.Redis.Key == "" {
		cfg.Redis.Key = defaults.Redis.Key
	}
}

func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("SERVERMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if s := v.GetString("app.log_level"); s != "" {
		cfg.App.LogLevel = s
	}
	if s := v.GetString("app.log_format"); s != "" {
		cfg.App.LogFormat = s
	}
	if s := v.GetString("app.metrics_addr"); s != "" {
		cfg.App.MetricsAddr = s
	}
	if i := v.GetInt("monitor.check_interval"); i != 0 {
		cfg.Monitor.CheckInterval = i
	}
	if d := v.GetDuration("monitor.offering_interval"); d > 0 {
		cfg.Monitor.OfferingInterval = d
	}
	if s := v.GetString("source.base_url"); s != "" {
		cfg.Source.BaseURL = s
	}
	if s := v.GetString("source.subsidiary"); s != "" {
		cfg.Source.Subsidiary = s
	}
	if s := v.GetString("source.proxies"); s != "" {
		cfg.Source.Proxies = splitList(s)
	}
	if s := v.GetString("telegram.token"); s != "" {
		cfg.Telegram.Token = s
	}
	if s := v.GetString("telegram.chat_id"); s != "" {
		cfg.Telegram.ChatID = s
	}
	if s := v.GetString("email.smtp_pass"); s != "" {
		cfg.Email.SMTPPass = s
	}
	if s := v.GetString("redis.addr"); s != "" {
		cfg.Redis.Addr = s
	}
	if s := v.GetString("redis.password"); s != "" {
		cfg.Redis.Password = s
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Monitor.CheckInterval < 60 {
		errs = append(errs, fmt.Errorf("monitor.check_interval must be at least 60 seconds, got %d", c.Monitor.CheckInterval))
	}
	if c.Source.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("source.requests_per_second must not be negative"))
	}
	seen := make(map[string]bool, len(c.Subscriptions))
	for i, s := range c.Subscriptions {
		code := strings.TrimSpace(s.PlanCode)
		if code == "" {
			errs = append(errs, fmt.Errorf("subscriptions[%d]: plan_code is required", i))
			continue
		}
		if seen[code] {
			errs = append(errs, fmt.Errorf("subscriptions[%d]: duplicate plan_code %q", i, code))
		}
		seen[code] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
