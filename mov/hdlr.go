package mov

import "encoding/binary"

// decodeHdlr reads the component subtype (video/sound/text) to classify
// the track, and sets isom when the pre-QuickTime component type field is
// non-zero (a signal this package treats the same way the source does:
// "looks like an isom-family file, not bare QuickTime").
func decodeHdlr(payload []byte, kind *TrackKind, isom *bool) error {
	if len(payload) < 12 {
		return ErrMovParse
	}
	componentType := binary.BigEndian.Uint32(payload[0:])
	if componentType != 0 {
		*isom = true
	}
	subtype := payload[4:8]
	switch string(subtype) {
	case "vide":
		*kind = TrackVideo
	case "soun":
		*kind = TrackAudio
	case "text", "sbtl", "subp":
		*kind = TrackSubtitle
	default:
		*kind = TrackUnknown
	}
	return nil
}
