package common

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/cuihairu/gamebrowser/internal/dirtree"
	"github.com/cuihairu/gamebrowser/internal/i18n"
	"github.com/cuihairu/gamebrowser/internal/validation"
)

// configSchema checks the shape of the effective settings before the
// semantic checks below run.
var configSchema = validation.MustCompile([]byte(`{
  "type": "object",
  "properties": {
    "library": {
      "type": "object",
      "properties": {
        "roots": {"type": "array", "items": {"type": "string"}},
        "backend": {"enum": ["local", "blob"]},
        "watch": {"type": "boolean"}
      }
    },
    "cache": {
      "type": "object",
      "properties": {"backend": {"enum": ["none", "db", "redis"]}}
    },
    "log": {
      "type": "object",
      "properties": {
        "level": {"enum": ["debug", "info", "warn", "error"]},
        "format": {"enum": ["console", "json"]}
      }
    }
  }
}`))

func dirExists(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// ValidateLibraryConfig checks the effective configuration. Strict mode
// also requires every local root to exist.
func ValidateLibraryConfig(v *viper.Viper, strict bool) error {
	if err := configSchema.ValidateValue(normalize(v.AllSettings())); err != nil {
		return err
	}
	roots := v.GetStringSlice("library.roots")
	if len(roots) == 0 && strict {
		return fmt.Errorf("library.roots: at least one root required")
	}
	switch v.GetString("library.backend") {
	case "blob":
		if u := v.GetString("library.bucket_url"); u != "" || v.Sub("library.bucket") == nil {
			if err := validateURL(u); err != nil {
				return fmt.Errorf("library.bucket_url: %w", err)
			}
		} else {
			var bc dirtree.BucketConfig
			if err := v.UnmarshalKey("library.bucket", &bc); err != nil {
				return fmt.Errorf("library.bucket: %w", err)
			}
			if err := bc.Validate(); err != nil {
				return fmt.Errorf("library.bucket: %w", err)
			}
		}
	default:
		if strict {
			for _, r := range roots {
				if err := dirExists(r); err != nil {
					return fmt.Errorf("library.roots: %w", err)
				}
			}
		}
	}
	if v.GetString("cache.backend") == "redis" {
		if err := validateURL(v.GetString("cache.redis_url")); err != nil {
			return fmt.Errorf("cache.redis_url: %w", err)
		}
	}
	if v.GetBool("telemetry.enabled") && v.GetString("telemetry.collector_url") == "" {
		return fmt.Errorf("telemetry.collector_url: required when telemetry is enabled")
	}
	if l := v.GetString("library.locale"); strict && l != "" {
		if i18n.New(l).Locale() == i18n.DefaultLocale && !strings.HasPrefix(strings.ToLower(l), i18n.DefaultLocale) {
			return fmt.Errorf("library.locale: %q not available (have %v)", l, i18n.Locales())
		}
	}
	return nil
}

func validateURL(s string) error {
	if s == "" {
		return fmt.Errorf("empty url")
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme == "" {
		return fmt.Errorf("%q has no scheme", s)
	}
	return nil
}

// normalize converts viper's nested maps into JSON-friendly values.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	}
	return v
}
