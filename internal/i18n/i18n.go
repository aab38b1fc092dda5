// Package i18n localizes user-facing diagnostics. Catalogs are YAML files
// embedded at build time; "$PATH" in a message is replaced by the subject.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Message keys.
const (
	RootMissing     = "root_missing"
	RootNotDir      = "root_not_dir"
	RootNotReadable = "root_not_readable"
	RootNotWritable = "root_not_writable"
	RootListFailed  = "root_list_failed"
	NoGamesFound    = "no_games_found"
	NotValidGame    = "not_valid_game"
	UnsupportedGame = "unsupported_game"

	// DefaultLocale is used for unknown locales and missing keys.
	DefaultLocale = "en"
	placeholder   = "$PATH"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Catalog resolves message keys for one locale with English fallback.
type Catalog struct {
	locale   string
	messages map[string]string
	fallback map[string]string
}

var catalogs = mustLoadAll()

func mustLoadAll() map[string]map[string]string {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		panic(err)
	}
	out := make(map[string]map[string]string, len(entries))
	for _, e := range entries {
		b, err := localeFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			panic(err)
		}
		m := map[string]string{}
		if err := yaml.Unmarshal(b, &m); err != nil {
			panic(fmt.Errorf("locale %s: %w", e.Name(), err))
		}
		out[strings.TrimSuffix(e.Name(), path.Ext(e.Name()))] = m
	}
	return out
}

// Locales lists the available locale codes.
func Locales() []string {
	out := make([]string, 0, len(catalogs))
	for k := range catalogs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New returns the catalog for locale. Region suffixes ("de_DE", "ja-JP")
// are ignored; unknown locales fall back to English.
func New(locale string) *Catalog {
	l := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(l, "_-."); i > 0 {
		l = l[:i]
	}
	m, ok := catalogs[l]
	if !ok {
		l, m = DefaultLocale, catalogs[DefaultLocale]
	}
	return &Catalog{locale: l, messages: m, fallback: catalogs[DefaultLocale]}
}

func (c *Catalog) Locale() string { return c.locale }

// Format returns the message for key with $PATH replaced by subject.
// Unknown keys return the key itself.
func (c *Catalog) Format(key, subject string) string {
	msg, ok := c.messages[key]
	if !ok {
		if msg, ok = c.fallback[key]; !ok {
			return key
		}
	}
	return strings.ReplaceAll(msg, placeholder, subject)
}
