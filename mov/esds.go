package mov

const (
	esDescrTag             = 0x03
	decoderConfigDescrTag  = 0x04
	decSpecificInfoTag     = 0x05
	mpeg4AudioObjectTypeID = 0x40 // decoder config's objectTypeIndication for MPEG-4 audio
)

// readDescrHeader reads a base descriptor's {tag, sizeOfInstance} pair,
// where the size is a 1-4 byte, MSB-continuation-bit varint, and returns
// the offset of the descriptor's payload plus its declared length.
func readDescrHeader(p []byte) (tag uint8, size, payloadOff int, err error) {
	if len(p) < 2 {
		return 0, 0, 0, ErrMovParse
	}
	tag = p[0]
	off := 1
	var sz uint32
	for i := 0; i < 4; i++ {
		if off >= len(p) {
			return 0, 0, 0, ErrMovParse
		}
		b := p[off]
		off++
		sz = sz<<7 | uint32(b&0x7f)
		if b&0x80 == 0 {
			break
		}
	}
	return tag, int(sz), off, nil
}

// decodeEsds walks ESDescr -> DecoderConfigDescr -> DecSpecificInfo to
// recover the raw MPEG-4 audio-specific config bytes, which the AAC framer
// parses for object type, sample rate and channel count.
func decodeEsds(payload []byte) (audioSpecificConfig []byte, isAAC bool, err error) {
	p := payload
	tag, size, off, err := readDescrHeader(p)
	if err != nil {
		return nil, false, err
	}
	if tag != esDescrTag || off+size > len(p) {
		return nil, false, ErrMovParse
	}
	es := p[off : off+size]
	if len(es) < 3 {
		return nil, false, ErrMovParse
	}
	// ES_ID(16) + flags(8), then optional dependsOn/URL/OCR fields this
	// package never reads, followed directly by the DecoderConfigDescr.
	flags := es[2]
	cursor := 3
	if flags&0x80 != 0 { // streamDependenceFlag
		cursor += 2
	}
	if flags&0x40 != 0 { // URL_Flag
		if cursor >= len(es) {
			return nil, false, ErrMovParse
		}
		urlLen := int(es[cursor])
		cursor += 1 + urlLen
	}
	if flags&0x20 != 0 { // OCRstreamFlag
		cursor += 2
	}
	if cursor >= len(es) {
		return nil, false, ErrMovParse
	}
	tag, size, off, err = readDescrHeader(es[cursor:])
	if err != nil {
		return nil, false, err
	}
	if tag != decoderConfigDescrTag || cursor+off+size > len(es) {
		return nil, false, ErrMovParse
	}
	dc := es[cursor+off : cursor+off+size]
	if len(dc) < 13 {
		return nil, false, ErrMovParse
	}
	objectTypeIndication := dc[0]
	isAAC = objectTypeIndication == mpeg4AudioObjectTypeID

	tag, size, off, err = readDescrHeader(dc[13:])
	if err != nil {
		return nil, isAAC, nil // absent DecSpecificInfo is not fatal
	}
	if tag != decSpecificInfoTag || 13+off+size > len(dc) {
		return nil, isAAC, nil
	}
	return dc[13+off : 13+off+size], isAAC, nil
}
