package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. VODFETCH_AUTH_SECRET for auth.secret
const EnvPrefix = "VODFETCH"

// Config represents the entire application configuration
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Assemble    AssembleConfig    `mapstructure:"assemble"`
	Output      OutputConfig      `mapstructure:"output"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// APIConfig contains the remote service endpoints and session settings
type APIConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	TokenPath     string `mapstructure:"token_path"`
	VideoURL      string `mapstructure:"video_url"`
	ClientType    int    `mapstructure:"client_type"`
	Referer       string `mapstructure:"referer"`
	UserAgent     string `mapstructure:"user_agent"`
	CookiesFile   string `mapstructure:"cookies_file"`
	Timeout       string `mapstructure:"timeout"`
	MinInterval   string `mapstructure:"min_interval"`
	SkipTLSVerify bool   `mapstructure:"skip_tls_verify"`
}

// AuthConfig contains token signing settings
type AuthConfig struct {
	Secret      string `mapstructure:"secret"`
	Scope       string `mapstructure:"scope"`
	ContentType string `mapstructure:"content_type"`
	CSRFCookie  string `mapstructure:"csrf_cookie"`
}

// FetchConfig contains segment download settings
type FetchConfig struct {
	SegmentExt            string `mapstructure:"segment_ext"`
	BufferSizeKB          int    `mapstructure:"buffer_size_kb"`
	ProgressInterval      string `mapstructure:"progress_interval"`
	ResponseHeaderTimeout string `mapstructure:"response_header_timeout"`
	RequestTimeout        string `mapstructure:"request_timeout"`
}

// AssembleConfig contains remux settings
type AssembleConfig struct {
	FfmpegPath           string `mapstructure:"ffmpeg_path"`
	FinalExt             string `mapstructure:"final_ext"`
	AudioBitstreamFilter string `mapstructure:"audio_bitstream_filter"`
}

// OutputConfig contains destination store settings
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// RetryConfig contains round and attempt settings
type RetryConfig struct {
	Rounds     int     `mapstructure:"rounds"`
	Workers    int     `mapstructure:"workers"`
	Attempts   int     `mapstructure:"attempts"`
	BaseDelay  string  `mapstructure:"base_delay"`
	Multiplier float64 `mapstructure:"multiplier"`
	MaxDelay   string  `mapstructure:"max_delay"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains run history settings
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// HTTPConfig contains status server configuration
type HTTPConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	BindAddr     string `mapstructure:"bind_addr"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`
}

// MaintenanceConfig contains startup cleanup settings
type MaintenanceConfig struct {
	PartialMaxAge string `mapstructure:"partial_max_age"`
	HistoryMaxAge string `mapstructure:"history_max_age"`
}

// Load loads configuration from the specified file path.
// A .env file in the working directory, if present, is loaded into the
// environment first; VODFETCH_* variables override file values.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://www.icourse163.org")
	v.SetDefault("api.token_path", "/web/j/resourceRpcBean.getResourceTokenV2.rpc")
	v.SetDefault("api.video_url", "https://vod.study.163.com/eds/api/v1/vod/video")
	v.SetDefault("api.client_type", 1)
	v.SetDefault("api.referer", "")
	v.SetDefault("api.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:146.0) Gecko/20100101 Firefox/146.0")
	v.SetDefault("api.cookies_file", "cookies.json")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.min_interval", "0s")
	v.SetDefault("api.skip_tls_verify", false)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.scope", "1")
	v.SetDefault("auth.content_type", "1")
	v.SetDefault("auth.csrf_cookie", "NTESSTUDYSI")
	v.SetDefault("fetch.segment_ext", ".ts")
	v.SetDefault("fetch.buffer_size_kb", 256)
	v.SetDefault("fetch.progress_interval", "10s")
	v.SetDefault("fetch.response_header_timeout", "30s")
	v.SetDefault("fetch.request_timeout", "2m")
	v.SetDefault("assemble.ffmpeg_path", "ffmpeg")
	v.SetDefault("assemble.final_ext", "mp4")
	v.SetDefault("assemble.audio_bitstream_filter", "aac_adtstoasc")
	v.SetDefault("output.dir", "./downloads")
	v.SetDefault("retry.rounds", 3)
	v.SetDefault("retry.workers", 5)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.base_delay", "2s")
	v.SetDefault("retry.multiplier", 1.0)
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("database.enabled", true)
	v.SetDefault("database.path", "")
	v.SetDefault("http.enabled", false)
	v.SetDefault("http.bind_addr", "127.0.0.1:8090")
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("maintenance.partial_max_age", "24h")
	v.SetDefault("maintenance.history_max_age", "720h")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate API config
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.VideoURL == "" {
		return errors.New("api.video_url is required")
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}
	if c.Auth.Scope == "" {
		return errors.New("auth.scope is required")
	}

	// Validate fetch and assemble config
	if !strings.HasPrefix(c.Fetch.SegmentExt, ".") {
		return fmt.Errorf("fetch.segment_ext must start with a dot: %q", c.Fetch.SegmentExt)
	}
	if c.Assemble.FinalExt == "" || strings.Contains(c.Assemble.FinalExt, ".") {
		return fmt.Errorf("assemble.final_ext must be an extension without dot: %q", c.Assemble.FinalExt)
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir is required")
	}

	// Validate retry config
	if c.Retry.Rounds < 1 || c.Retry.Rounds > 20 {
		return errors.New("retry.rounds must be between 1 and 20")
	}
	if c.Retry.Workers < 1 || c.Retry.Workers > 32 {
		return errors.New("retry.workers must be between 1 and 32")
	}
	if c.Retry.Attempts < 1 || c.Retry.Attempts > 10 {
		return errors.New("retry.attempts must be between 1 and 10")
	}
	if c.Retry.Multiplier < 0 {
		return errors.New("retry.multiplier must not be negative")
	}

	// Validate durations
	durations := map[string]string{
		"api.timeout":                   c.API.Timeout,
		"api.min_interval":              c.API.MinInterval,
		"fetch.progress_interval":       c.Fetch.ProgressInterval,
		"fetch.response_header_timeout": c.Fetch.ResponseHeaderTimeout,
		"fetch.request_timeout":         c.Fetch.RequestTimeout,
		"retry.base_delay":              c.Retry.BaseDelay,
		"retry.max_delay":               c.Retry.MaxDelay,
		"maintenance.partial_max_age":   c.Maintenance.PartialMaxAge,
		"maintenance.history_max_age":   c.Maintenance.HistoryMaxAge,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, _ := time.ParseDuration(value)
	if d == 0 {
		return fallback
	}
	return d
}

// GetTimeout returns the API call timeout as time.Duration
func (c *APIConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// GetMinInterval returns the minimum spacing between API calls
// A zero value disables pacing
func (c *APIConfig) GetMinInterval() time.Duration {
	d, _ := time.ParseDuration(c.MinInterval)
	return d
}

// GetBufferSize returns the segment copy buffer size in bytes
func (c *FetchConfig) GetBufferSize() int {
	if c.BufferSizeKB <= 0 {
		return 256 * 1024
	}
	return c.BufferSizeKB * 1024
}

// GetProgressInterval returns the progress log interval as time.Duration
func (c *FetchConfig) GetProgressInterval() time.Duration {
	return parseDuration(c.ProgressInterval, 10*time.Second)
}

// GetResponseHeaderTimeout returns the segment response header timeout
func (c *FetchConfig) GetResponseHeaderTimeout() time.Duration {
	return parseDuration(c.ResponseHeaderTimeout, 30*time.Second)
}

// GetRequestTimeout bounds one manifest or segment request, body included
func (c *FetchConfig) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, 2*time.Minute)
}

// Policy returns the in-round retry policy
func (c *RetryConfig) Policy() domain.RetryPolicy {
	// An explicit "0s" disables the pause; only an empty value falls back
	baseDelay := 2 * time.Second
	if c.BaseDelay != "" {
		if d, err := time.ParseDuration(c.BaseDelay); err == nil {
			baseDelay = d
		}
	}
	maxDelay, _ := time.ParseDuration(c.MaxDelay)
	return domain.RetryPolicy{
		MaxAttempts: c.Attempts,
		BaseDelay:   baseDelay,
		Multiplier:  c.Multiplier,
		MaxDelay:    maxDelay,
	}
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *HTTPConfig) GetReadTimeout() time.Duration {
	return parseDuration(c.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *HTTPConfig) GetWriteTimeout() time.Duration {
	return parseDuration(c.WriteTimeout, 30*time.Second)
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *HTTPConfig) GetIdleTimeout() time.Duration {
	return parseDuration(c.IdleTimeout, 60*time.Second)
}

// GetPartialMaxAge returns the age after which partial files are swept
func (c *MaintenanceConfig) GetPartialMaxAge() time.Duration {
	return parseDuration(c.PartialMaxAge, 24*time.Hour)
}

// GetHistoryMaxAge returns the age after which run history is pruned
func (c *MaintenanceConfig) GetHistoryMaxAge() time.Duration {
	return parseDuration(c.HistoryMaxAge, 30*24*time.Hour)
}
