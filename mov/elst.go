package mov

import "encoding/binary"

// decodeElst implements "edit-list application beyond recording the first
// timecode": a (duration, -1) entry (media_time == -1, i.e. an empty edit)
// sets the track's first presentation timecode to duration*1000/timescale
// milliseconds, matching a leading-silence or leading-black edit.
func decodeElst(payload []byte, fb *FullBox, timescale uint32, firstTimecodeMs *int64) error {
	if len(payload) < 4 {
		return ErrMovParse
	}
	entryCount := binary.BigEndian.Uint32(payload)
	p := payload[4:]
	entrySize := 12
	if fb.Version == 1 {
		entrySize = 20
	}
	for i := uint32(0); i < entryCount; i++ {
		if len(p) < entrySize {
			return ErrMovParse
		}
		var duration uint64
		var mediaTime int64
		if fb.Version == 1 {
			duration = binary.BigEndian.Uint64(p)
			mediaTime = int64(binary.BigEndian.Uint64(p[8:]))
		} else {
			duration = uint64(binary.BigEndian.Uint32(p))
			mediaTime = int64(int32(binary.BigEndian.Uint32(p[4:])))
		}
		if mediaTime == -1 && timescale != 0 {
			*firstTimecodeMs = int64(duration) * 1000 / int64(timescale)
		}
		p = p[entrySize:]
	}
	return nil
}
