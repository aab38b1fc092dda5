package common

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cuihairu/gamebrowser/internal/dirtree"
	"github.com/cuihairu/gamebrowser/internal/telemetry"
)

// EnvPrefix prefixes environment overrides, e.g. GAMEBROWSER_LIBRARY_SAVE_DIR.
const EnvPrefix = "GAMEBROWSER"

// Config is the effective gamebrowser configuration.
type Config struct {
	DataDir   string           `mapstructure:"data_dir"`
	Library   LibraryConfig    `mapstructure:"library"`
	Layouts   LayoutsConfig    `mapstructure:"layouts"`
	Settings  SettingsConfig   `mapstructure:"settings"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Telemetry telemetry.Config `mapstructure:"telemetry"`
	Log       LogConfig        `mapstructure:"log"`
}

type LibraryConfig struct {
	Roots []string `mapstructure:"roots"`
	// Backend is local or blob.
	Backend   string `mapstructure:"backend"`
	BucketURL string `mapstructure:"bucket_url"`
	// Bucket is used when BucketURL is empty.
	Bucket    dirtree.BucketConfig `mapstructure:"bucket"`
	SaveDir   string `mapstructure:"save_dir"`
	PrefsName string `mapstructure:"prefs_name"`
	Watch     bool   `mapstructure:"watch"`
	Locale    string `mapstructure:"locale"`
	SoundFont string `mapstructure:"soundfont"`
	NoAudio   bool   `mapstructure:"disable_audio"`
}

type LayoutsConfig struct {
	File string `mapstructure:"file"`
}

type SettingsConfig struct {
	DSN string `mapstructure:"dsn"`
}

type CacheConfig struct {
	// Backend is none, db or redis.
	Backend  string        `mapstructure:"backend"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	// every key gets a default so AutomaticEnv can override it
	v.SetDefault("data_dir", "data")
	v.SetDefault("library.roots", []string{})
	v.SetDefault("library.backend", "local")
	v.SetDefault("library.bucket_url", "")
	v.SetDefault("library.save_dir", "")
	v.SetDefault("library.watch", false)
	v.SetDefault("library.soundfont", "")
	v.SetDefault("library.disable_audio", false)
	v.SetDefault("layouts.file", "")
	v.SetDefault("settings.dsn", "")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.collector_url", "")
	v.SetDefault("log.file", "")
	v.SetDefault("library.locale", "en")
	v.SetDefault("library.prefs_name", "easyrpg.json")
	v.SetDefault("cache.backend", "db")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("telemetry.service_name", "gamebrowser")
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
}

// BindEnv enables GAMEBROWSER_* overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the config file (optional), includes and the profile overlay,
// then applies defaults and environment overrides.
func Load(file string, includes []string, profile string) (*viper.Viper, error) {
	v, err := LoadWithIncludes(file, includes)
	if err != nil {
		return nil, err
	}
	v, err = ApplySectionAndProfile(v, "", profile)
	if err != nil {
		return nil, err
	}
	SetDefaults(v)
	BindEnv(v)
	MergeLogSection(v)
	return v, nil
}

// Decode unmarshals v into a Config and fills derived paths.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// AutomaticEnv is not consulted by Unmarshal for slices
	if roots := v.GetStringSlice("library.roots"); len(roots) > 0 {
		cfg.Library.Roots = roots
	}
	if cfg.Layouts.File == "" {
		cfg.Layouts.File = filepath.Join(cfg.DataDir, "button_mapping.json")
	}
	if cfg.Library.SaveDir == "" {
		cfg.Library.SaveDir = filepath.Join(cfg.DataDir, "saves")
	}
	return &cfg, nil
}

// LoadWithIncludes reads base config and merges includes in order.
func LoadWithIncludes(base string, includes []string) (*viper.Viper, error) {
	v := viper.New()
	if base != "" {
		v.SetConfigFile(base)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	for _, inc := range includes {
		iv := viper.New()
		iv.SetConfigFile(inc)
		if err := iv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("include %s: %w", inc, err)
		}
		if err := v.MergeConfigMap(iv.AllSettings()); err != nil {
			return nil, fmt.Errorf("include %s: %w", inc, err)
		}
	}
	return v, nil
}

// mergeMaps recursively merges b into a.
func mergeMaps(a, b map[string]any) map[string]any {
	for k, vb := range b {
		if ma, ok := a[k].(map[string]any); ok {
			if mb, ok2 := vb.(map[string]any); ok2 {
				a[k] = mergeMaps(ma, mb)
				continue
			}
		}
		a[k] = vb
	}
	return a
}

// ApplySectionAndProfile extracts a section and overlays profiles.<name> if present.
func ApplySectionAndProfile(v *viper.Viper, section, profile string) (*viper.Viper, error) {
	if section != "" {
		sub := v.Sub(section)
		if sub == nil {
			return nil, fmt.Errorf("section %s not found", section)
		}
		v = sub
	}
	if profile != "" {
		prof := v.Sub("profiles")
		if prof == nil {
			return nil, fmt.Errorf("profiles not found in section")
		}
		p := prof.Sub(profile)
		if p == nil {
			return nil, fmt.Errorf("profile %s not found", profile)
		}
		merged := mergeMaps(v.AllSettings(), p.AllSettings())
		delete(merged, "profiles")
		nv := viper.New()
		if err := nv.MergeConfigMap(merged); err != nil {
			return nil, err
		}
		v = nv
	}
	return v, nil
}
