package mov

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// utf8Sanitizer normalises a TX3G text run: malformed byte sequences (a
// muxer bug or a truncated sample) are replaced rather than left to corrupt
// the cue, using the UTF-8 decoder from golang.org/x/text, the module this
// package's mdhd language handling also draws on.
var utf8Sanitizer = unicode.UTF8.NewDecoder()

func sanitizeUTF8(s string) string {
	out, _, err := transform.String(utf8Sanitizer, s)
	if err != nil {
		return s
	}
	return out
}

const stylBoxType = 0x7374796c // "styl"

// styleRange is one entry of a styl modifier box: a half-open [startChar,
// endChar) run and the face-style bits to apply to it.
type styleRange struct {
	startChar, endChar uint16
	faceStyle          byte
}

// TX3GFramer converts QuickTime TX3G text-track samples into numbered SRT
// cues. Every output frame is prefixed by "packet_number\nHH:MM:SS,mmm -->
// HH:MM:SS,mmm\n"; the very first frame additionally carries a UTF-8 BOM.
// Cue timing consumes the owning track's stts durations, one per sample.
type TX3GFramer struct {
	track       *Track
	packetNum   int
	wroteFirst  bool
	cueStartMs  int64
}

func (f *TX3GFramer) bindTrack(t *Track) { f.track = t }

func (f *TX3GFramer) setPrivData(extra []byte) error { return nil }

// parseTX3GSample splits a TX3G sample into its text and any styl modifier.
func parseTX3GSample(data []byte) (text string, styles []styleRange, err error) {
	if len(data) < 2 {
		return "", nil, ErrMovParse
	}
	textLen := int(binary.BigEndian.Uint16(data))
	if 2+textLen > len(data) {
		return "", nil, ErrMovParse
	}
	text = sanitizeUTF8(string(data[2 : 2+textLen]))
	off := 2 + textLen
	for off+8 <= len(data) {
		modSize := int(binary.BigEndian.Uint32(data[off:]))
		modType := binary.BigEndian.Uint32(data[off+4:])
		if modSize < 8 || off+modSize > len(data) {
			break
		}
		if modType == stylBoxType && off+10 <= len(data) {
			count := int(binary.BigEndian.Uint16(data[off+8:]))
			entryOff := off + 10
			for i := 0; i < count && entryOff+12 <= len(data); i++ {
				startChar := binary.BigEndian.Uint16(data[entryOff:])
				endChar := binary.BigEndian.Uint16(data[entryOff+2:])
				faceStyle := data[entryOff+6]
				styles = append(styles, styleRange{startChar, endChar, faceStyle})
				entryOff += 12
			}
		}
		off += modSize
	}
	return text, styles, nil
}

// applyStyles inserts <b>/<i>/<u> tags around each styl range, processing
// ranges in descending start position so earlier insertions do not shift
// the character offsets later ranges reference.
func applyStyles(text string, styles []styleRange) string {
	if len(styles) == 0 {
		return text
	}
	runes := []rune(text)
	sorted := append([]styleRange{}, styles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].startChar > sorted[j].startChar })

	for _, s := range sorted {
		var openTag, closeTag string
		if s.faceStyle&0x01 != 0 {
			openTag += "<b>"
			closeTag = "</b>" + closeTag
		}
		if s.faceStyle&0x02 != 0 {
			openTag += "<i>"
			closeTag = "</i>" + closeTag
		}
		if s.faceStyle&0x04 != 0 {
			openTag += "<u>"
			closeTag = "</u>" + closeTag
		}
		if openTag == "" {
			continue
		}
		start := int(s.startChar)
		end := int(s.endChar)
		if start < 0 || end > len(runes) || start > end {
			continue
		}
		var b []rune
		b = append(b, runes[:start]...)
		b = append(b, []rune(openTag)...)
		b = append(b, runes[start:end]...)
		b = append(b, []rune(closeTag)...)
		b = append(b, runes[end:]...)
		runes = b
	}
	return string(runes)
}

func srtTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func (f *TX3GFramer) newBufferSize(data []byte) (int, error) {
	return f.frame(data)
}

func (f *TX3GFramer) extractData(dst, data []byte) (int, error) {
	n, err := f.frame(data)
	if err != nil {
		return 0, err
	}
	if n > len(dst) {
		return 0, ErrBufferTooSmall
	}
	f.write(dst, data)
	return n, nil
}

// frame computes the byte length of one framed SRT cue without consuming
// the track's stts cursor; the actual consumption happens in write, once
// extractData has confirmed the destination buffer is large enough.
func (f *TX3GFramer) frame(data []byte) (int, error) {
	text, styles, err := parseTX3GSample(data)
	if err != nil {
		return 0, err
	}
	body := applyStyles(text, styles)
	durationMs := f.track.peekSttsDurationMs()
	startMs := f.cueStartMs
	endMs := startMs + durationMs

	header := fmt.Sprintf("%d\n%s --> %s\n", f.packetNum+1, srtTimestamp(startMs), srtTimestamp(endMs))
	n := len(header) + len(body) + len(srtCueTerminator)
	if !f.wroteFirst {
		n += len(utf8BOM)
	}
	return n, nil
}

// srtCueTerminator is the blank line separating consecutive SRT cues.
var srtCueTerminator = []byte("\n\n")

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

func (f *TX3GFramer) write(dst, data []byte) {
	text, styles, _ := parseTX3GSample(data)
	body := applyStyles(text, styles)
	durationMs := f.track.nextSttsDurationMs()
	startMs := f.cueStartMs
	endMs := startMs + durationMs
	f.cueStartMs = endMs
	f.packetNum++

	var sb strings.Builder
	if !f.wroteFirst {
		sb.Write(utf8BOM)
		f.wroteFirst = true
	}
	fmt.Fprintf(&sb, "%d\n%s --> %s\n", f.packetNum, srtTimestamp(startMs), srtTimestamp(endMs))
	sb.WriteString(body)
	sb.Write(srtCueTerminator)
	copy(dst, sb.String())
}
