package layout

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cuihairu/gamebrowser/internal/validation"
)

// DocumentVersion is written to every persisted catalog.
const DocumentVersion = 1

// documentSchema checks the outer shape only. Individual presets and
// buttons are decoded leniently so one bad entry does not discard the rest.
var documentSchema = validation.MustCompile([]byte(`{
  "type": "object",
  "properties": {
    "version": {"type": "integer"},
    "default": {"type": "integer"},
    "presets": {
      "type": "array",
      "items": {"type": "object"}
    }
  },
  "required": ["presets"]
}`))

// ErrEmptyDocument is returned when a document holds no usable preset.
var ErrEmptyDocument = errors.New("layout: document has no usable presets")

// Document is the persisted catalog.
type Document struct {
	Version int      `json:"version"`
	Default int      `json:"default"`
	Presets []Layout `json:"presets"`
}

type rawDocument struct {
	Version int               `json:"version"`
	Default *int              `json:"default"`
	Presets []json.RawMessage `json:"presets"`
}

type rawLayout struct {
	ID      *int              `json:"id"`
	Name    string            `json:"name"`
	Buttons []json.RawMessage `json:"buttons"`
}

type rawButton struct {
	KeyCode *int     `json:"keycode"`
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Size    *float64 `json:"size"`
}

// ParseDocument decodes and validates a persisted catalog. Presets without
// an id and buttons without a keycode are skipped; coordinates are clamped
// to [0,1]. hasDefault is false when the "default" field is absent.
func ParseDocument(data []byte) (doc Document, hasDefault bool, err error) {
	if err := documentSchema.Validate(data); err != nil {
		return Document{}, false, err
	}
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, false, fmt.Errorf("decode catalog: %w", err)
	}
	doc.Version = raw.Version
	if raw.Default != nil {
		doc.Default, hasDefault = *raw.Default, true
	}
	for _, rp := range raw.Presets {
		var rl rawLayout
		if err := json.Unmarshal(rp, &rl); err != nil || rl.ID == nil {
			continue
		}
		l := Layout{ID: *rl.ID, Name: rl.Name, Buttons: []Button{}}
		for _, rb := range rl.Buttons {
			var b rawButton
			if err := json.Unmarshal(rb, &b); err != nil || b.KeyCode == nil {
				continue
			}
			btn := Button{KeyCode: *b.KeyCode, X: b.X, Y: b.Y}
			if b.Size != nil {
				btn.Size = int(*b.Size)
			}
			l.Buttons = append(l.Buttons, btn.normalized())
		}
		doc.Presets = append(doc.Presets, l)
	}
	if len(doc.Presets) == 0 {
		return Document{}, hasDefault, ErrEmptyDocument
	}
	return doc, hasDefault, nil
}

// MarshalDocument renders doc with two-space indentation.
func MarshalDocument(doc Document) ([]byte, error) {
	if doc.Version == 0 {
		doc.Version = DocumentVersion
	}
	for i := range doc.Presets {
		if doc.Presets[i].Buttons == nil {
			doc.Presets[i].Buttons = []Button{}
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}
