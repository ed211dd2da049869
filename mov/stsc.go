package mov

import "encoding/binary"

func decodeStsc(payload []byte, t *Track) error {
	if len(payload) < 4 {
		return ErrMovParse
	}
	count := binary.BigEndian.Uint32(payload)
	p := payload[4:]
	t.Stsc = make([]StscEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(p) < 12 {
			return ErrMovParse
		}
		t.Stsc = append(t.Stsc, StscEntry{
			FirstChunk:      binary.BigEndian.Uint32(p),
			SamplesPerChunk: binary.BigEndian.Uint32(p[4:]),
			SampleDescIndex: binary.BigEndian.Uint32(p[8:]),
		})
		p = p[12:]
	}
	return nil
}
