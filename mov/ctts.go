package mov

import "encoding/binary"

func decodeCtts(payload []byte, t *Track) error {
	if len(payload) < 4 {
		return ErrMovParse
	}
	count := binary.BigEndian.Uint32(payload)
	p := payload[4:]
	t.Ctts = make([]CttsEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(p) < 8 {
			return ErrMovParse
		}
		t.Ctts = append(t.Ctts, CttsEntry{
			SampleCount:  binary.BigEndian.Uint32(p),
			SampleOffset: int32(binary.BigEndian.Uint32(p[4:])),
		})
		p = p[8:]
	}
	return nil
}
