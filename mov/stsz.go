package mov

import "encoding/binary"

// decodeStsz reads either a uniform sample size (sample_size != 0, table
// omitted) or a per-sample size table.
func decodeStsz(payload []byte, t *Track) error {
	if len(payload) < 8 {
		return ErrMovParse
	}
	uniform := binary.BigEndian.Uint32(payload)
	count := binary.BigEndian.Uint32(payload[4:])
	if uniform != 0 {
		t.UniformSampleSize = uniform
		return nil
	}
	p := payload[8:]
	t.SampleSizes = make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(p) < 4 {
			return ErrMovParse
		}
		t.SampleSizes = append(t.SampleSizes, binary.BigEndian.Uint32(p))
		p = p[4:]
	}
	return nil
}

// decodeStz2 reads the compact 'stz2' variant: a fixed field_size (4, 8, or
// 16 bits) packs the per-sample table more tightly than stsz's 32-bit
// entries. QuickTime rarely writes it, but readers must not treat it as an
// unknown box.
func decodeStz2(payload []byte, t *Track) error {
	if len(payload) < 8 {
		return ErrMovParse
	}
	fieldSize := payload[3]
	count := binary.BigEndian.Uint32(payload[4:])
	p := payload[8:]
	t.SampleSizes = make([]uint32, 0, count)
	switch fieldSize {
	case 16:
		for i := uint32(0); i < count; i++ {
			if len(p) < 2 {
				return ErrMovParse
			}
			t.SampleSizes = append(t.SampleSizes, uint32(binary.BigEndian.Uint16(p)))
			p = p[2:]
		}
	case 8:
		for i := uint32(0); i < count; i++ {
			if len(p) < 1 {
				return ErrMovParse
			}
			t.SampleSizes = append(t.SampleSizes, uint32(p[0]))
			p = p[1:]
		}
	case 4:
		for i := uint32(0); i < count; i += 2 {
			if len(p) < 1 {
				return ErrMovParse
			}
			t.SampleSizes = append(t.SampleSizes, uint32(p[0]>>4))
			if i+1 < count {
				t.SampleSizes = append(t.SampleSizes, uint32(p[0]&0x0f))
			}
			p = p[1:]
		}
	default:
		return ErrUnsupported
	}
	return nil
}
