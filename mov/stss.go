package mov

import "encoding/binary"

func decodeStss(payload []byte, t *Track) error {
	if len(payload) < 4 {
		return ErrMovParse
	}
	count := binary.BigEndian.Uint32(payload)
	p := payload[4:]
	t.SyncSamples = make(map[uint32]bool, count)
	for i := uint32(0); i < count; i++ {
		if len(p) < 4 {
			return ErrMovParse
		}
		t.SyncSamples[binary.BigEndian.Uint32(p)] = true
		p = p[4:]
	}
	return nil
}
