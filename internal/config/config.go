package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tagarr/tagarr/internal/analyzer"
	"github.com/tagarr/tagarr/internal/classify"
	"github.com/tagarr/tagarr/internal/notification"
	"github.com/tagarr/tagarr/internal/registry"
	"github.com/tagarr/tagarr/internal/tagging"
)

// ErrConfiguration is wrapped by every load and validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config holds all application configuration.
type Config struct {
	Primary       RegistryConfig      `mapstructure:"primary"`
	Secondary     SecondaryConfig     `mapstructure:"secondary"`
	RulesFile     string              `mapstructure:"rules_file"`
	Classifiers   ClassifiersConfig   `mapstructure:"classifiers"`
	Filters       FiltersConfig       `mapstructure:"filters"`
	Discovery     ToggleConfig        `mapstructure:"discovery"`
	Cleanup       ToggleConfig        `mapstructure:"cleanup"`
	DryRun        bool                `mapstructure:"dry_run"`
	Debug         bool                `mapstructure:"debug"`
	BatchSize     int                 `mapstructure:"batch_size"`
	Analyzer      AnalyzerConfig      `mapstructure:"analyzer"`
	Notifications notification.Config `mapstructure:"notifications"`
	Server        ServerConfig        `mapstructure:"server"`
	Schedule      ScheduleConfig      `mapstructure:"schedule"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	LockFile      string              `mapstructure:"lock_file"`
}

// RegistryConfig holds the connection parameters of one Radarr instance.
type RegistryConfig struct {
	Name               string        `mapstructure:"name"`
	URL                string        `mapstructure:"url"`
	APIKey             string        `mapstructure:"api_key"`
	Timeout            time.Duration `mapstructure:"timeout"`
	RequestsPerSecond  float64       `mapstructure:"requests_per_second"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// SecondaryConfig is the optional mirror registry.
type SecondaryConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	RegistryConfig `mapstructure:",squash"`
}

// ClassifiersConfig switches the classifiers.
type ClassifiersConfig struct {
	HDR           HDRConfig    `mapstructure:"hdr"`
	ReleaseGroups ToggleConfig `mapstructure:"release_groups"`
}

// HDRConfig configures the HDR/DV classifier and its label groups.
type HDRConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Groups  GroupsConfig `mapstructure:"groups"`
}

// GroupsConfig holds the taxonomy group switches.
type GroupsConfig struct {
	DynamicRange bool `mapstructure:"dynamic_range"`
	NoDV         bool `mapstructure:"no_dv"`
	Profile7     bool `mapstructure:"profile7"`
	Profile8     bool `mapstructure:"profile8"`
	CM           bool `mapstructure:"cm"`
}

// ToggleConfig is a feature with only an enable switch.
type ToggleConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// FiltersConfig holds the quality and audio predicates.
type FiltersConfig struct {
	Quality []QualityConfig `mapstructure:"quality"`
	Audio   AudioConfig     `mapstructure:"audio"`
}

// QualityConfig is one quality indicator.
type QualityConfig struct {
	Name    string `mapstructure:"name"`
	Pattern string `mapstructure:"pattern"`
	Enabled bool   `mapstructure:"enabled"`
}

// AudioConfig configures the audio predicate. VetoTokens are literal
// tokens; when empty the built-in veto patterns apply.
type AudioConfig struct {
	VetoTokens []string       `mapstructure:"veto_tokens"`
	Lossless   LosslessConfig `mapstructure:"lossless"`
}

// LosslessConfig switches the lossless audio indicators.
type LosslessConfig struct {
	TrueHDAtmos bool `mapstructure:"truehd_atmos"`
	TrueHD      bool `mapstructure:"truehd"`
	DTSX        bool `mapstructure:"dts_x"`
	DTSHDMA     bool `mapstructure:"dts_hd_ma"`
	FLAC        bool `mapstructure:"flac"`
	PCM         bool `mapstructure:"pcm"`
}

// AnalyzerConfig configures the dovi_tool pipeline.
type AnalyzerConfig struct {
	FFmpegPath     string                 `mapstructure:"ffmpeg_path"`
	DoviToolPath   string                 `mapstructure:"dovi_tool_path"`
	ExtractTimeout time.Duration          `mapstructure:"extract_timeout"`
	SummaryTimeout time.Duration          `mapstructure:"summary_timeout"`
	Frames         int                    `mapstructure:"frames"`
	PathMappings   []analyzer.PathMapping `mapstructure:"path_mappings"`
	WorkDir        string                 `mapstructure:"work_dir"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	WebhookToken string `mapstructure:"webhook_token"`
}

// ScheduleConfig controls scheduled batch runs in serve mode.
type ScheduleConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Cron       string `mapstructure:"cron"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults. A .env file in
// the working directory or next to the config file is loaded first; it
// never overrides variables already set.
func Load(configPath string) (*Config, error) {
	loadDotEnv(configPath)

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.tagarr")
	}

	v.SetEnvPrefix("TAGARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read config file: %w", ErrConfiguration, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", ErrConfiguration, err)
	}

	if cfg.LockFile == "" {
		cfg.LockFile = filepath.Join(filepath.Dir(cfg.RulesFile), ".tagarr.lock")
	}
	if len(cfg.Filters.Quality) == 0 {
		for _, q := range classify.DefaultQualityIndicators() {
			cfg.Filters.Quality = append(cfg.Filters.Quality, QualityConfig{Name: q.Name, Pattern: q.Pattern, Enabled: q.Enabled})
		}
	}

	return cfg, nil
}

func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// setDefaults sets default values in viper. Every key is registered so
// AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("primary.name", "radarr")
	v.SetDefault("primary.url", "")
	v.SetDefault("primary.api_key", "")
	v.SetDefault("primary.timeout", registry.DefaultTimeout)
	v.SetDefault("primary.requests_per_second", 0)
	v.SetDefault("primary.insecure_skip_verify", false)

	v.SetDefault("secondary.enabled", false)
	v.SetDefault("secondary.name", "radarr-secondary")
	v.SetDefault("secondary.url", "")
	v.SetDefault("secondary.api_key", "")
	v.SetDefault("secondary.timeout", registry.DefaultTimeout)
	v.SetDefault("secondary.requests_per_second", 0)
	v.SetDefault("secondary.insecure_skip_verify", false)

	v.SetDefault("rules_file", "./rules.yaml")

	v.SetDefault("classifiers.hdr.enabled", true)
	v.SetDefault("classifiers.hdr.groups.dynamic_range", true)
	v.SetDefault("classifiers.hdr.groups.no_dv", true)
	v.SetDefault("classifiers.hdr.groups.profile7", true)
	v.SetDefault("classifiers.hdr.groups.profile8", true)
	v.SetDefault("classifiers.hdr.groups.cm", true)
	v.SetDefault("classifiers.release_groups.enabled", true)

	v.SetDefault("filters.audio.veto_tokens", []string{})
	v.SetDefault("filters.audio.lossless.truehd_atmos", true)
	v.SetDefault("filters.audio.lossless.truehd", true)
	v.SetDefault("filters.audio.lossless.dts_x", true)
	v.SetDefault("filters.audio.lossless.dts_hd_ma", true)
	v.SetDefault("filters.audio.lossless.flac", true)
	v.SetDefault("filters.audio.lossless.pcm", true)

	v.SetDefault("discovery.enabled", true)
	v.SetDefault("cleanup.enabled", false)
	v.SetDefault("dry_run", false)
	v.SetDefault("debug", false)
	v.SetDefault("batch_size", 250)

	ad := analyzer.DefaultConfig()
	v.SetDefault("analyzer.ffmpeg_path", "")
	v.SetDefault("analyzer.dovi_tool_path", "")
	v.SetDefault("analyzer.extract_timeout", ad.ExtractTimeout)
	v.SetDefault("analyzer.summary_timeout", ad.SummaryTimeout)
	v.SetDefault("analyzer.frames", ad.Frames)
	v.SetDefault("analyzer.work_dir", "")

	v.SetDefault("notifications.discord.enabled", false)
	v.SetDefault("notifications.discord.webhook_url", "")
	v.SetDefault("notifications.discord.username", "tagarr")
	v.SetDefault("notifications.discord.avatar_url", "")
	v.SetDefault("notifications.webhook.enabled", false)
	v.SetDefault("notifications.webhook.url", "")
	v.SetDefault("notifications.webhook.method", "POST")
	v.SetDefault("notifications.webhook.username", "")
	v.SetDefault("notifications.webhook.password", "")
	v.SetDefault("notifications.notify_on.run_summary", true)
	v.SetDefault("notifications.notify_on.discovered", true)
	v.SetDefault("notifications.notify_on.item_tagged", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.webhook_token", "")

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.cron", "0 3 * * *")
	v.SetDefault("schedule.run_on_start", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("lock_file", "")
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ClientConfig converts the section to registry client settings.
func (c *RegistryConfig) ClientConfig() registry.Config {
	return registry.Config{
		Name:               c.Name,
		URL:                c.URL,
		APIKey:             c.APIKey,
		Timeout:            c.Timeout,
		RequestsPerSecond:  c.RequestsPerSecond,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
}

// GroupFlags converts the group switches for the HDR classifier.
func (c *GroupsConfig) GroupFlags() classify.GroupFlags {
	return classify.GroupFlags{
		DynamicRange: c.DynamicRange,
		NoDV:         c.NoDV,
		Profile7:     c.Profile7,
		Profile8:     c.Profile8,
		ColorMapping: c.CM,
	}
}

// ClassifyFilters converts the filter section to classifier predicates.
func (c *FiltersConfig) ClassifyFilters() classify.Filters {
	f := classify.Filters{
		Audio: classify.AudioFilter{
			Lossless: classify.LosslessFlags{
				TrueHDAtmos: c.Audio.Lossless.TrueHDAtmos,
				TrueHD:      c.Audio.Lossless.TrueHD,
				DTSX:        c.Audio.Lossless.DTSX,
				DTSHDMA:     c.Audio.Lossless.DTSHDMA,
				FLAC:        c.Audio.Lossless.FLAC,
				PCM:         c.Audio.Lossless.PCM,
			},
		},
	}
	for _, q := range c.Quality {
		f.Quality = append(f.Quality, classify.QualityIndicator{Name: q.Name, Pattern: q.Pattern, Enabled: q.Enabled})
	}
	if len(c.Audio.VetoTokens) == 0 {
		f.Audio.VetoPatterns = classify.DefaultVetoPatterns()
	} else {
		for _, t := range c.Audio.VetoTokens {
			f.Audio.VetoPatterns = append(f.Audio.VetoPatterns, regexp.QuoteMeta(strings.ToLower(t)))
		}
	}
	return f
}

// AnalyzerSettings converts the section to dovi_tool pipeline settings.
func (c *AnalyzerConfig) AnalyzerSettings() analyzer.Config {
	return analyzer.Config{
		FFmpegPath:     c.FFmpegPath,
		DoviToolPath:   c.DoviToolPath,
		ExtractTimeout: c.ExtractTimeout,
		SummaryTimeout: c.SummaryTimeout,
		Frames:         c.Frames,
		PathMappings:   c.PathMappings,
		WorkDir:        c.WorkDir,
	}
}

// TaggingSettings collects the run settings for the tagging service.
func (c *Config) TaggingSettings() tagging.Settings {
	return tagging.Settings{
		DryRun:               c.DryRun,
		Debug:                c.Debug,
		HDREnabled:           c.Classifiers.HDR.Enabled,
		Groups:               c.Classifiers.HDR.Groups.GroupFlags(),
		ReleaseGroupsEnabled: c.Classifiers.ReleaseGroups.Enabled,
		DiscoveryEnabled:     c.Discovery.Enabled,
		CleanupEnabled:       c.Cleanup.Enabled,
		BatchSize:            c.BatchSize,
		Filters:              c.Filters.ClassifyFilters(),
	}
}
