package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"adbridge/internal/domain"
)

// Config represents application configuration. Values come from the
// environment, then an optional config.yaml, then defaults.
type Config struct {
	AppEnv           string
	Port             string
	JobRootPath      string
	PollInterval     time.Duration
	ResultSettle     time.Duration
	Timeouts         map[domain.Mode]time.Duration
	WatchResults     bool
	MaxBodyBytes     int64
	MaxInflightJobs  int
	RateLimitPerMin  int
	AllowedOrigins   []string
	DefaultLocale    string
	GeoIPDBPath      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// timeoutKeys maps each mode to its configuration key.
var timeoutKeys = map[domain.Mode]string{
	domain.ModeTextToImage:  "timeouts.text_to_image",
	domain.ModeImageToImage: "timeouts.image_to_image",
	domain.ModeImageToText:  "timeouts.image_to_text",
	domain.ModePrice:        "timeouts.price",
}

// LoadConfig loads configuration and applies defaults where needed.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if path := strings.TrimSpace(os.Getenv("ADBRIDGE_CONFIG")); path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_env", "development")
	v.SetDefault("port", "5000")
	v.SetDefault("job_root_path", "./ai_ad_generator")
	v.SetDefault("poll_interval", "2s")
	v.SetDefault("result_settle", "500ms")
	for mode, key := range timeoutKeys {
		v.SetDefault(key, mode.DefaultTimeout().String())
	}
	v.SetDefault("watch_results", true)
	v.SetDefault("max_body_bytes", 20<<20)
	v.SetDefault("max_inflight_jobs", 32)
	v.SetDefault("rate_limit_per_min", 30)
	v.SetDefault("allowed_origins", "")
	v.SetDefault("default_locale", "en")
	v.SetDefault("geoip_db_path", "")
	v.SetDefault("http_read_timeout", "15s")
	v.SetDefault("http_write_timeout", "")
	v.SetDefault("http_idle_timeout", "60s")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		AppEnv:          v.GetString("app_env"),
		Port:            v.GetString("port"),
		JobRootPath:     strings.TrimSpace(v.GetString("job_root_path")),
		WatchResults:    v.GetBool("watch_results"),
		MaxBodyBytes:    v.GetInt64("max_body_bytes"),
		MaxInflightJobs: v.GetInt("max_inflight_jobs"),
		RateLimitPerMin: v.GetInt("rate_limit_per_min"),
		AllowedOrigins:  splitList(v.Get("allowed_origins")),
		DefaultLocale:   v.GetString("default_locale"),
		GeoIPDBPath:     strings.TrimSpace(v.GetString("geoip_db_path")),
		Timeouts:        make(map[domain.Mode]time.Duration, len(timeoutKeys)),
	}

	var err error
	if cfg.PollInterval, err = getDuration(v, "poll_interval"); err != nil {
		return nil, err
	}
	if cfg.ResultSettle, err = getDuration(v, "result_settle"); err != nil {
		return nil, err
	}
	for mode, key := range timeoutKeys {
		if cfg.Timeouts[mode], err = getDuration(v, key); err != nil {
			return nil, err
		}
	}
	if cfg.HTTPReadTimeout, err = getDuration(v, "http_read_timeout"); err != nil {
		return nil, err
	}
	if cfg.HTTPIdleTimeout, err = getDuration(v, "http_idle_timeout"); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getDuration(v, "http_write_timeout"); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout == 0 {
		cfg.HTTPWriteTimeout = cfg.LongestTimeout() + 30*time.Second
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Timeout returns the wait budget for a mode.
func (c *Config) Timeout(m domain.Mode) time.Duration {
	if d, ok := c.Timeouts[m]; ok && d > 0 {
		return d
	}
	return m.DefaultTimeout()
}

// LongestTimeout is the largest per-mode wait budget.
func (c *Config) LongestTimeout() time.Duration {
	var longest time.Duration
	for _, m := range domain.Modes {
		if d := c.Timeout(m); d > longest {
			longest = d
		}
	}
	return longest
}

func (c *Config) validate() error {
	if c.JobRootPath == "" {
		return fmt.Errorf("JOB_ROOT_PATH is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.ResultSettle < 0 {
		return fmt.Errorf("result_settle must not be negative")
	}
	for mode, key := range timeoutKeys {
		if c.Timeouts[mode] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if c.HTTPWriteTimeout <= c.LongestTimeout() {
		return fmt.Errorf("http_write_timeout (%s) must exceed the longest job timeout (%s)", c.HTTPWriteTimeout, c.LongestTimeout())
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	return nil
}

// getDuration accepts Go durations ("90s", "2m") or bare integers, which
// are read as seconds.
func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func splitList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case string:
		parts = strings.Split(val, ",")
	case []string:
		parts = val
	case []any:
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
