package games

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/cuihairu/gamebrowser/internal/dirtree"
)

const (
	iniSectionEasyRPG = "EasyRPG"
	iniSectionRPGRT   = "RPG_RT"
	iniKeyEncoding    = "Encoding"
	iniKeyGameTitle   = "GameTitle"
)

// IniInfo is what the shell reads from a game's RPG_RT.ini.
type IniInfo struct {
	Encoding Encoding
	// GameTitle is decoded with Encoding (raw when Auto).
	GameTitle string
}

// ReadIni parses the ini at ref. A missing file yields a zero IniInfo.
func ReadIni(ctx context.Context, p dirtree.Provider, ref dirtree.Ref) (IniInfo, error) {
	data, err := dirtree.ReadAll(ctx, p, ref)
	if err != nil {
		if errors.Is(err, dirtree.ErrNotExist) {
			return IniInfo{}, nil
		}
		return IniInfo{}, err
	}
	return ParseIni(data)
}

// ParseIni reads [EasyRPG] Encoding and [RPG_RT] GameTitle, matching
// section and key names without regard to case.
func ParseIni(data []byte) (IniInfo, error) {
	f, err := loadIni(data)
	if err != nil {
		return IniInfo{}, fmt.Errorf("parse ini: %w", err)
	}
	var info IniInfo
	if k := lookup(f, iniSectionEasyRPG, iniKeyEncoding); k != nil {
		info.Encoding = ParseEncoding(k.String())
	}
	if k := lookup(f, iniSectionRPGRT, iniKeyGameTitle); k != nil {
		info.GameTitle = strings.TrimSpace(info.Encoding.DecodeString(k.String()))
	}
	return info, nil
}

// WriteIniEncoding sets [EasyRPG] Encoding in the ini at ref, creating the
// section or the file when missing. Other content is kept.
func WriteIniEncoding(ctx context.Context, p dirtree.Provider, ref dirtree.Ref, enc Encoding) error {
	data, err := dirtree.ReadAll(ctx, p, ref)
	if err != nil && !errors.Is(err, dirtree.ErrNotExist) {
		return err
	}
	f, err := loadIni(data)
	if err != nil {
		return fmt.Errorf("parse ini: %w", err)
	}
	if k := lookup(f, iniSectionEasyRPG, iniKeyEncoding); k != nil {
		k.SetValue(enc.RegionCode())
	} else {
		sec := section(f, iniSectionEasyRPG)
		if sec == nil {
			sec, err = f.NewSection(iniSectionEasyRPG)
			if err != nil {
				return err
			}
		}
		if _, err := sec.NewKey(iniKeyEncoding, enc.RegionCode()); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return err
	}
	return p.WriteFile(ctx, ref, buf.Bytes())
}

func loadIni(data []byte) (*ini.File, error) {
	if data == nil {
		data = []byte{}
	}
	return ini.LoadSources(ini.LoadOptions{
		SkipUnrecognizableLines: true,
		IgnoreInlineComment:     true,
		AllowBooleanKeys:        true,
	}, data)
}

func section(f *ini.File, name string) *ini.Section {
	for _, s := range f.Sections() {
		if strings.EqualFold(s.Name(), name) {
			return s
		}
	}
	return nil
}

func lookup(f *ini.File, sec, key string) *ini.Key {
	s := section(f, sec)
	if s == nil {
		return nil
	}
	for _, k := range s.Keys() {
		if strings.EqualFold(k.Name(), key) {
			return k
		}
	}
	return nil
}
