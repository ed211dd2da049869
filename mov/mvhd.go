package mov

import "encoding/binary"

// decodeMvhd extracts the movie header's global timescale and duration,
// returning the duration normalised to nanoseconds.
func decodeMvhd(payload []byte, fb *FullBox) (timescale uint32, durationNs int64, err error) {
	p := payload
	if fb.Version == 1 {
		if len(p) < 28 {
			return 0, 0, ErrMovParse
		}
		timescale = binary.BigEndian.Uint32(p[16:])
		duration := binary.BigEndian.Uint64(p[20:])
		durationNs = int64(duration) * 1_000_000_000 / int64(timescale)
		return timescale, durationNs, nil
	}
	if len(p) < 16 {
		return 0, 0, ErrMovParse
	}
	timescale = binary.BigEndian.Uint32(p[8:])
	duration := binary.BigEndian.Uint32(p[12:])
	if timescale != 0 {
		durationNs = int64(duration) * 1_000_000_000 / int64(timescale)
	}
	return timescale, durationNs, nil
}
