package games

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// Encoding is the code page used to read a game's text.
type Encoding int

const (
	EncodingAuto Encoding = iota
	EncodingWestEurope
	EncodingCentralEasternEurope
	EncodingJapanese
	EncodingCyrillic
	EncodingKorean
	EncodingChineseSimple
	EncodingChineseTraditional
	EncodingGreek
	EncodingTurkish
	EncodingBaltic
)

type encodingInfo struct {
	code  string
	label string
	enc   encoding.Encoding
}

var encodings = []encodingInfo{
	EncodingAuto:                 {"auto", "Auto-detect", nil},
	EncodingWestEurope:           {"1252", "Western European", charmap.Windows1252},
	EncodingCentralEasternEurope: {"1250", "Central/Eastern European", charmap.Windows1250},
	EncodingJapanese:             {"932", "Japanese (Shift JIS)", japanese.ShiftJIS},
	EncodingCyrillic:             {"1251", "Cyrillic", charmap.Windows1251},
	EncodingKorean:               {"949", "Korean", korean.EUCKR},
	EncodingChineseSimple:        {"936", "Chinese (Simplified)", simplifiedchinese.GBK},
	EncodingChineseTraditional:   {"950", "Chinese (Traditional)", traditionalchinese.Big5},
	EncodingGreek:                {"1253", "Greek", charmap.Windows1253},
	EncodingTurkish:              {"1254", "Turkish", charmap.Windows1254},
	EncodingBaltic:               {"1257", "Baltic", charmap.Windows1257},
}

// Encodings lists every value in menu order, Auto first.
func Encodings() []Encoding {
	out := make([]Encoding, len(encodings))
	for i := range encodings {
		out[i] = Encoding(i)
	}
	return out
}

func (e Encoding) valid() bool { return e >= 0 && int(e) < len(encodings) }

// RegionCode is the value written to preference documents and passed to
// the engine.
func (e Encoding) RegionCode() string {
	if !e.valid() {
		return encodings[EncodingAuto].code
	}
	return encodings[e].code
}

func (e Encoding) String() string {
	if !e.valid() {
		return encodings[EncodingAuto].label
	}
	return encodings[e].label
}

// Decoder returns the text codec, nil for Auto.
func (e Encoding) Decoder() encoding.Encoding {
	if !e.valid() {
		return nil
	}
	return encodings[e].enc
}

// ParseEncoding maps a region code to an Encoding. Unknown codes are Auto.
func ParseEncoding(code string) Encoding {
	code = strings.ToLower(strings.TrimSpace(code))
	for i, info := range encodings {
		if info.code == code {
			return Encoding(i)
		}
	}
	return EncodingAuto
}

// DecodeString converts s from e. Auto and decode failures return s as is.
func (e Encoding) DecodeString(s string) string {
	enc := e.Decoder()
	if enc == nil {
		return s
	}
	out, err := enc.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}
