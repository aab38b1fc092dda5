// Package cache persists scan results between runs so the browser can show
// the library before the first rescan finishes.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Entry is one persisted scan: the games in discovery order together with
// the diagnostics and soundfont of the same pass.
type Entry struct {
	Records   []Record `json:"records"`
	Errors    []string `json:"errors,omitempty"`
	SoundFont string   `json:"soundfont,omitempty"`
}

// Record is one cached game. Thumbnail holds PNG bytes, nil when absent.
// For a game inside a zip, Archive is the archive and Folder the path of
// the game inside it.
type Record struct {
	Title       string `json:"title"`
	Folder      string `json:"folder"`
	Archive     string `json:"archive,omitempty"`
	SavePath    string `json:"save_path"`
	ProjectType string `json:"project_type"`
	IniName     string `json:"ini_name,omitempty"`
	Thumbnail   []byte `json:"thumbnail,omitempty"`
}

// Store loads and saves scan entries under a key derived from the roots.
type Store interface {
	Load(ctx context.Context, key string) (Entry, bool, error)
	Save(ctx context.Context, key string, entry Entry) error
	Clear(ctx context.Context, key string) error
}

// Key derives a stable cache key from an ordered root list.
func Key(roots []string) string {
	h := sha1.Sum([]byte(strings.Join(roots, "\x00")))
	return hex.EncodeToString(h[:])
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Load(context.Context, string) (Entry, bool, error) { return Entry{}, false, nil }
func (Nop) Save(context.Context, string, Entry) error         { return nil }
func (Nop) Clear(context.Context, string) error               { return nil }

// encode normalizes nil slices so a stored entry always decodes with a
// records list.
func encode(entry Entry) ([]byte, error) {
	if entry.Records == nil {
		entry.Records = []Record{}
	}
	return json.Marshal(entry)
}

func decode(b []byte) (Entry, error) {
	var out Entry
	if err := json.Unmarshal(b, &out); err != nil {
		return Entry{}, fmt.Errorf("decode scan cache: %w", err)
	}
	return out, nil
}
