package mov

import "encoding/binary"

func decodeStts(payload []byte, t *Track) error {
	if len(payload) < 4 {
		return ErrMovParse
	}
	count := binary.BigEndian.Uint32(payload)
	p := payload[4:]
	t.Stts = make([]SttsEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(p) < 8 {
			return ErrMovParse
		}
		t.Stts = append(t.Stts, SttsEntry{
			SampleCount: binary.BigEndian.Uint32(p),
			SampleDelta: binary.BigEndian.Uint32(p[4:]),
		})
		p = p[8:]
	}
	return nil
}
