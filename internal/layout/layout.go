// Package layout manages the catalog of virtual input layouts: named sets of
// on-screen buttons, one of which is the default.
package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// Reserved key codes for buttons that are not physical keys.
const (
	KeyDPad        = -1
	KeyMenu        = -2
	KeyFastForward = -3
)

// Physical key codes (Android KeyEvent values) understood by the engine.
const (
	Key0         = 7
	Key1         = 8
	Key2         = 9
	Key3         = 10
	Key4         = 11
	Key5         = 12
	Key6         = 13
	Key7         = 14
	Key8         = 15
	Key9         = 16
	KeyCancel    = 30
	KeyShift     = 59
	KeyEnter     = 62
	KeyDebugThru = 113
	KeyDebugMenu = 139
	KeyDivide    = 154
	KeyMultiply  = 155
	KeyMinus     = 156
	KeyPlus      = 157
)

const (
	// DefaultName names the canonical layout.
	DefaultName = "RPG Maker 2000"
	DefaultSize = 100

	minButtonSize  = 10
	maxButtonSize  = 400
	compactSep     = ";"
	compactItemSep = ":"
)

var keyLabels = map[int]string{
	KeyDPad: "DPad", KeyMenu: "Menu", KeyFastForward: "Fast forward",
	KeyEnter: "Enter", KeyCancel: "Cancel", KeyShift: "Shift",
	Key0: "0", Key1: "1", Key2: "2", Key3: "3", Key4: "4",
	Key5: "5", Key6: "6", Key7: "7", Key8: "8", Key9: "9",
	KeyPlus: "+", KeyMinus: "-", KeyMultiply: "*", KeyDivide: "/",
	KeyDebugThru: "Debug walk-through", KeyDebugMenu: "Debug menu",
}

// KeyLabel names a key code for display.
func KeyLabel(code int) string {
	if s, ok := keyLabels[code]; ok {
		return s
	}
	return "Key " + strconv.Itoa(code)
}

// Button is one on-screen control. X and Y are screen fractions anchored at
// the top-left corner; Size scales the base button size in percent.
type Button struct {
	KeyCode int     `json:"keycode"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Size    int     `json:"size"`
}

// Layout is a named button set.
type Layout struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Buttons []Button `json:"buttons"`
}

// Clone returns a deep copy.
func (l Layout) Clone() Layout {
	c := l
	c.Buttons = append([]Button(nil), l.Buttons...)
	return c
}

// normalized returns a copy with every button clamped into range.
func (l Layout) normalized() Layout {
	c := l
	c.Buttons = make([]Button, len(l.Buttons))
	for i, b := range l.Buttons {
		c.Buttons[i] = b.normalized()
	}
	return c
}

func (b Button) normalized() Button {
	b.X = clamp01(b.X)
	b.Y = clamp01(b.Y)
	if b.Size <= 0 {
		b.Size = DefaultSize
	}
	if b.Size < minButtonSize {
		b.Size = minButtonSize
	}
	if b.Size > maxButtonSize {
		b.Size = maxButtonSize
	}
	return b
}

func clamp01(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Default is the canonical layout synthesized for empty catalogs.
func Default() Layout {
	return Layout{ID: 0, Name: DefaultName, Buttons: []Button{
		{KeyCode: KeyDPad, X: 0.0, Y: 0.5, Size: 100},
		{KeyCode: KeyEnter, X: 0.80, Y: 0.7, Size: 100},
		{KeyCode: KeyCancel, X: 0.90, Y: 0.6, Size: 100},
		{KeyCode: KeyMenu, X: 0, Y: 0, Size: 90},
	}}
}

// DefaultHorizontal is the landscape preset offered by the editor.
func DefaultHorizontal() []Button {
	return []Button{
		{KeyCode: KeyMenu, X: 0.01, Y: 0.01, Size: 90},
		{KeyCode: KeyFastForward, X: 0.9, Y: 0.01, Size: 90},
		{KeyCode: KeyDPad, X: 0.01, Y: 0.4, Size: 100},
		{KeyCode: KeyEnter, X: 0.80, Y: 0.55, Size: 100},
		{KeyCode: KeyCancel, X: 0.90, Y: 0.45, Size: 100},
	}
}

// DefaultVertical is the portrait preset offered by the editor.
func DefaultVertical() []Button {
	return []Button{
		{KeyCode: KeyMenu, X: 0.01, Y: 0.5, Size: 90},
		{KeyCode: KeyFastForward, X: 0.70, Y: 0.5, Size: 90},
		{KeyCode: KeyDPad, X: 0.05, Y: 0.65, Size: 100},
		{KeyCode: KeyEnter, X: 0.60, Y: 0.75, Size: 100},
		{KeyCode: KeyCancel, X: 0.70, Y: 0.65, Size: 100},
	}
}

// FormatCompact renders buttons in the legacy "keycode:size:x:y;" form.
func FormatCompact(buttons []Button) string {
	var sb strings.Builder
	for _, b := range buttons {
		sb.WriteString(strconv.Itoa(b.KeyCode))
		sb.WriteString(compactItemSep)
		sb.WriteString(strconv.Itoa(b.Size))
		sb.WriteString(compactItemSep)
		sb.WriteString(strconv.FormatFloat(b.X, 'g', -1, 64))
		sb.WriteString(compactItemSep)
		sb.WriteString(strconv.FormatFloat(b.Y, 'g', -1, 64))
		sb.WriteString(compactSep)
	}
	return sb.String()
}

// ParseCompact reads the legacy "keycode:size:x:y;" form. Any malformed
// item rejects the whole string.
func ParseCompact(s string) ([]Button, error) {
	var out []Button
	for _, item := range strings.Split(s, compactSep) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		f := strings.Split(item, compactItemSep)
		if len(f) < 4 {
			return nil, fmt.Errorf("button %q: want keycode:size:x:y", item)
		}
		code, err1 := strconv.Atoi(f[0])
		size, err2 := strconv.Atoi(f[1])
		x, err3 := strconv.ParseFloat(f[2], 64)
		y, err4 := strconv.ParseFloat(f[3], 64)
		for _, err := range []error{err1, err2, err3, err4} {
			if err != nil {
				return nil, fmt.Errorf("button %q: %w", item, err)
			}
		}
		out = append(out, Button{KeyCode: code, X: x, Y: y, Size: size}.normalized())
	}
	return out, nil
}
