package mov

import "encoding/binary"

// sampleEntryHeaderLen is the fixed SampleEntry prefix common to every stsd
// child: 6 reserved bytes, then a 16-bit data_reference_index.
const sampleEntryHeaderLen = 8

// decodeStsdEntry reads one sample entry's geometry (for video) or nothing
// further (for audio/subtitle, whose rate/channel count this package
// recovers from esds instead), attaching the matching framer to the track.
// payload is the entry's bytes after its own 8-byte box header; format is
// that header's type field, already decoded by the caller. Child boxes
// (avcC/hvcC/mvcC/glbl/esds) are dispatched separately by the box walker
// once this returns, since they need the track's Framer already in place
// to call setPrivData.
func decodeStsdEntry(payload []byte, format [4]byte, t *Track) (childrenOff int, err error) {
	t.Format = format

	switch t.Kind {
	case TrackVideo:
		if len(payload) < sampleEntryHeaderLen+70 {
			return 0, ErrMovParse
		}
		base := sampleEntryHeaderLen
		// VisualSampleEntry: pre_defined(16)+reserved(16)+pre_defined[3](32
		// each) = 16 bytes, then width(16), height(16), then
		// horizresolution/vertresolution/reserved/frame_count/
		// compressorname/depth/pre_defined fields this package does not need.
		widthOff := base + 16
		t.Width = uint32(binary.BigEndian.Uint16(payload[widthOff:]))
		t.Height = uint32(binary.BigEndian.Uint16(payload[widthOff+2:]))
		childrenOff = base + 70
		attachVideoFramer(t, format)
	case TrackAudio:
		if len(payload) < sampleEntryHeaderLen+20 {
			return 0, ErrMovParse
		}
		childrenOff = sampleEntryHeaderLen + 20
		if tagEq(format, "mp4a") {
			t.Framer = &AACFramer{}
		}
	default:
		childrenOff = sampleEntryHeaderLen
		if tagEq(format, "tx3g") {
			f := &TX3GFramer{}
			f.bindTrack(t)
			t.Framer = f
		}
	}
	return childrenOff, nil
}

func attachVideoFramer(t *Track, format [4]byte) {
	switch {
	case tagEq(format, "avc1") || tagEq(format, "avc3"):
		t.Framer = &AVCFramer{}
	case tagEq(format, "hvc1") || tagEq(format, "hev1"):
		t.Framer = &HEVCFramer{}
	case tagEq(format, "vvc1") || tagEq(format, "vvi1"):
		t.Framer = &VVCFramer{}
	}
}

// appendExtra appends a codec-private child box's raw bytes to the track's
// extradata blob and re-primes the framer, matching avcC/hvcC/mvcC/glbl all
// being treated as "the codec-private data changed" events.
func appendExtra(t *Track, data []byte) error {
	t.Extra = append(t.Extra, data...)
	if t.Framer == nil {
		return nil
	}
	return t.Framer.setPrivData(t.Extra)
}
