package mov

import (
	"encoding/binary"

	"golang.org/x/text/language"
)

// quicktimeLangTable maps the legacy Macintosh language codes (used when the
// 16-bit language field is below 0x400) to ISO-639-2 codes, covering the
// common cases; anything else falls back to "und".
var quicktimeLangTable = map[uint16]string{
	0:  "eng",
	1:  "fra",
	2:  "deu",
	3:  "ita",
	4:  "nld",
	5:  "swe",
	6:  "spa",
	7:  "dan",
	8:  "por",
	9:  "nor",
	10: "heb",
	11: "jpn",
	12: "ara",
	13: "fin",
	14: "ell",
	15: "isl",
	18: "tur",
	19: "hrv",
	32: "kor",
	33: "zho",
}

// decodeMdhd extracts the per-track timescale and language from a media
// header box. The 16-bit packed field is a legacy Macintosh language code
// when below 0x400, "und" when 0x7fff, and otherwise an ISO-639-2/T code
// (three 5-bit letter offsets from 'a'-1).
func decodeMdhd(payload []byte, fb *FullBox) (timescale uint32, lang string, err error) {
	p := payload
	var langField uint16
	if fb.Version == 1 {
		if len(p) < 30 {
			return 0, "", ErrMovParse
		}
		timescale = binary.BigEndian.Uint32(p[16:])
		langField = binary.BigEndian.Uint16(p[28:])
	} else {
		if len(p) < 18 {
			return 0, "", ErrMovParse
		}
		timescale = binary.BigEndian.Uint32(p[8:])
		langField = binary.BigEndian.Uint16(p[16:])
	}

	var raw string
	switch {
	case langField < 0x400:
		if code, ok := quicktimeLangTable[langField]; ok {
			raw = code
		} else {
			raw = "und"
		}
	case langField == 0x7fff:
		raw = "und"
	default:
		c1 := byte((langField>>10)&0x1f) + 0x60
		c2 := byte((langField>>5)&0x1f) + 0x60
		c3 := byte(langField&0x1f) + 0x60
		raw = string([]byte{c1, c2, c3})
	}

	// Canonicalise through golang.org/x/text/language so callers always see
	// a recognized language even when the packed field carries a deprecated
	// or malformed ISO-639-2 code, but stay on the 3-letter form: Tag.String
	// prefers the 2-letter ISO-639-1 alias where one exists (e.g. "eng" ->
	// "en"), which would violate the track model's 3-letter invariant. A
	// code without an exact base language ("und" included) yields "und".
	if tag, tagErr := language.Parse(raw); tagErr == nil {
		if base, conf := tag.Base(); conf == language.Exact {
			return timescale, base.ISO3(), nil
		}
	}
	return timescale, "und", nil
}
