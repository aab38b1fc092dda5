package games

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cuihairu/gamebrowser/internal/dirtree"
)

// DefaultPrefsName is the per-game preferences file stored with the saves.
const DefaultPrefsName = "easyrpg.json"

// NoLayout is the input layout id meaning "use the catalog default".
const NoLayout = -1

// Prefs is the per-game preferences document. Every field is optional.
type Prefs struct {
	LayoutID    *int   `json:"layout_id,omitempty"`
	Encoding    string `json:"encoding,omitempty"`
	CustomTitle string `json:"custom_title,omitempty"`
}

// LoadPrefs reads the document at ref. Absence yields empty Prefs; an
// unreadable or malformed document is reported so the caller can log it.
func LoadPrefs(ctx context.Context, p dirtree.Provider, ref dirtree.Ref) (Prefs, error) {
	var prefs Prefs
	data, err := dirtree.ReadAll(ctx, p, ref)
	if err != nil {
		if errors.Is(err, dirtree.ErrNotExist) {
			return prefs, nil
		}
		return prefs, err
	}
	if len(data) == 0 {
		return prefs, nil
	}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return Prefs{}, fmt.Errorf("decode %s: %w", ref, err)
	}
	return prefs, nil
}

// SavePrefs writes the whole document.
func SavePrefs(ctx context.Context, p dirtree.Provider, ref dirtree.Ref, prefs Prefs) error {
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	return p.WriteFile(ctx, ref, data)
}
