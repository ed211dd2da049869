package mov

import "encoding/binary"

func decodeStco(payload []byte, t *Track) error {
	if len(payload) < 4 {
		return ErrMovParse
	}
	count := binary.BigEndian.Uint32(payload)
	p := payload[4:]
	t.ChunkOffsets = make([]uint64, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(p) < 4 {
			return ErrMovParse
		}
		t.ChunkOffsets = append(t.ChunkOffsets, uint64(binary.BigEndian.Uint32(p)))
		p = p[4:]
	}
	return nil
}

func decodeCo64(payload []byte, t *Track) error {
	if len(payload) < 4 {
		return ErrMovParse
	}
	count := binary.BigEndian.Uint32(payload)
	p := payload[4:]
	t.ChunkOffsets = make([]uint64, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(p) < 8 {
			return ErrMovParse
		}
		t.ChunkOffsets = append(t.ChunkOffsets, binary.BigEndian.Uint64(p))
		p = p[8:]
	}
	return nil
}
