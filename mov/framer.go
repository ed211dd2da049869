package mov

import "encoding/binary"

// SampleFramer converts one track's stored sample bytes (length-prefixed NAL
// units for video, raw frames for audio/subtitle) into the framing a
// consumer expects: Annex-B for video, ADTS-wrapped for AAC, SRT cues for
// TX3G. Every call sequence is setPrivData (whenever codec-private data
// changes) then, per sample, newBufferSize followed by extractData.
type SampleFramer interface {
	setPrivData(extra []byte) error
	newBufferSize(data []byte) (int, error)
	extractData(dst, data []byte) (int, error)
}

var annexBPrefix = []byte{0x00, 0x00, 0x00, 0x01}

// avcExtractPrivData parses an AVCDecoderConfigurationRecord: header byte
// 0x01, 3 profile/level bytes, lengthSizeMinusOne in the low 2 bits of byte
// 4, then a count-prefixed SPS list and a count-prefixed PPS list, each
// entry a 16-bit length followed by the raw NAL.
func avcExtractPrivData(extra []byte) (lengthSize int, spss, ppss [][]byte, err error) {
	if len(extra) < 6 || extra[0] != 0x01 {
		return 0, nil, nil, ErrMovParse
	}
	lengthSize = int(extra[4]&0x03) + 1
	off := 5
	spsCount := int(extra[off] & 0x1f)
	off++
	for i := 0; i < spsCount; i++ {
		if off+2 > len(extra) {
			return 0, nil, nil, ErrMovParse
		}
		n := int(binary.BigEndian.Uint16(extra[off:]))
		off += 2
		if off+n > len(extra) {
			return 0, nil, nil, ErrMovParse
		}
		spss = append(spss, extra[off:off+n])
		off += n
	}
	if off >= len(extra) {
		return 0, nil, nil, ErrMovParse
	}
	ppsCount := int(extra[off])
	off++
	for i := 0; i < ppsCount; i++ {
		if off+2 > len(extra) {
			return 0, nil, nil, ErrMovParse
		}
		n := int(binary.BigEndian.Uint16(extra[off:]))
		off += 2
		if off+n > len(extra) {
			return 0, nil, nil, ErrMovParse
		}
		ppss = append(ppss, extra[off:off+n])
		off += n
	}
	return lengthSize, spss, ppss, nil
}

// hevcExtractPrivData parses an HEVCDecoderConfigurationRecord's arrayed
// NAL layout: after a fixed 22-byte header and numOfArrays count, each array
// is {array_completeness/reserved/NAL_unit_type byte, 16-bit numNalus, then
// numNalus length-prefixed NALs}.
func hevcExtractPrivData(extra []byte) (lengthSize int, nals [][]byte, err error) {
	if len(extra) < 23 {
		return 0, nil, ErrMovParse
	}
	lengthSize = int(extra[21]&0x03) + 1
	numArrays := int(extra[22])
	off := 23
	for a := 0; a < numArrays; a++ {
		if off+3 > len(extra) {
			return 0, nil, ErrMovParse
		}
		numNalus := int(binary.BigEndian.Uint16(extra[off+1:]))
		off += 3
		for i := 0; i < numNalus; i++ {
			if off+2 > len(extra) {
				return 0, nil, ErrMovParse
			}
			n := int(binary.BigEndian.Uint16(extra[off:]))
			off += 2
			if off+n > len(extra) {
				return 0, nil, ErrMovParse
			}
			nals = append(nals, extra[off:off+n])
			off += n
		}
	}
	return lengthSize, nals, nil
}

// vvcExtractPrivData follows the same arrayed layout as hvcC; the VVC
// decoder configuration record only differs in fields this package does not
// need (ptl records, chroma format), so it is parsed with the same walk.
func vvcExtractPrivData(extra []byte) (lengthSize int, nals [][]byte, err error) {
	return hevcExtractPrivData(extra)
}

// lengthPrefixedFramer is shared by AVC/HEVC/VVC: it caches the cached
// parameter sets as Annex-B NALs and the length-field width, and prepends
// the parameter sets once after every setPrivData call.
type lengthPrefixedFramer struct {
	lengthSize     int
	paramSets      [][]byte // Annex-B framed, prepended on the next extract
	pending        bool     // parameter sets not yet emitted since last setPrivData
	wroteParamSets bool     // true if the most recent extractData prepended them
}

// WroteParamSets reports whether the most recent extractData call prepended
// the cached SPS/PPS (or VPS/SPS/PPS) NALs, so a caller re-muxing into
// MPEG-TS can set FlagSpsPpsInGop and skip its own insertion.
func (f *lengthPrefixedFramer) WroteParamSets() bool { return f.wroteParamSets }

func (f *lengthPrefixedFramer) prependedSize() int {
	if !f.pending {
		return 0
	}
	var n int
	for _, ps := range f.paramSets {
		n += 4 + len(ps)
	}
	return n
}

func (f *lengthPrefixedFramer) newBufferSize(data []byte) (int, error) {
	n := f.prependedSize()
	off := 0
	for off+f.lengthSize <= len(data) {
		nalLen := readLength(data[off:], f.lengthSize)
		off += f.lengthSize
		if off+nalLen > len(data) {
			return 0, ErrMovParse
		}
		n += 4 + nalLen
		off += nalLen
	}
	return n, nil
}

func (f *lengthPrefixedFramer) extractData(dst, data []byte) (int, error) {
	need, err := f.newBufferSize(data)
	if err != nil {
		return 0, err
	}
	if len(dst) < need {
		return 0, ErrBufferTooSmall
	}
	n := 0
	f.wroteParamSets = f.pending
	if f.pending {
		for _, ps := range f.paramSets {
			n += copy(dst[n:], annexBPrefix)
			n += copy(dst[n:], ps)
		}
		f.pending = false
	}
	off := 0
	for off+f.lengthSize <= len(data) {
		nalLen := readLength(data[off:], f.lengthSize)
		off += f.lengthSize
		n += copy(dst[n:], annexBPrefix)
		n += copy(dst[n:], data[off:off+nalLen])
		off += nalLen
	}
	return n, nil
}

func readLength(b []byte, size int) int {
	switch size {
	case 1:
		return int(b[0])
	case 2:
		return int(binary.BigEndian.Uint16(b))
	case 3:
		return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
	default:
		return int(binary.BigEndian.Uint32(b))
	}
}

// AVCFramer converts avcC-length-prefixed H.264 access units to Annex-B.
type AVCFramer struct{ lengthPrefixedFramer }

func (f *AVCFramer) setPrivData(extra []byte) error {
	lengthSize, spss, ppss, err := avcExtractPrivData(extra)
	if err != nil {
		return err
	}
	f.lengthSize = lengthSize
	f.paramSets = append(append([][]byte{}, spss...), ppss...)
	f.pending = true
	return nil
}

// HEVCFramer converts hvcC-length-prefixed H.265 access units to Annex-B.
type HEVCFramer struct{ lengthPrefixedFramer }

func (f *HEVCFramer) setPrivData(extra []byte) error {
	lengthSize, nals, err := hevcExtractPrivData(extra)
	if err != nil {
		return err
	}
	f.lengthSize = lengthSize
	f.paramSets = nals
	f.pending = true
	return nil
}

// VVCFramer converts vvcC-length-prefixed H.266 access units to Annex-B.
type VVCFramer struct{ lengthPrefixedFramer }

func (f *VVCFramer) setPrivData(extra []byte) error {
	lengthSize, nals, err := vvcExtractPrivData(extra)
	if err != nil {
		return err
	}
	f.lengthSize = lengthSize
	f.paramSets = nals
	f.pending = true
	return nil
}

const adtsHeaderLen = 7

// aacSampleRates is the MPEG-4 sampling_frequency_index table used to pack
// the ADTS header's 4-bit rate field.
var aacSampleRates = []int{96000, 88200, 64000, 48000, 44100, 32000, 24000,
	22050, 16000, 12000, 11025, 8000, 7350}

func aacSampleRateIndex(rate int) int {
	for i, r := range aacSampleRates {
		if r == rate {
			return i
		}
	}
	return 4 // 44100, a reasonable default if the rate is unrecognised
}

// AACFramer prefixes every AAC raw-data-block sample with a 7-byte ADTS
// header derived from the esds-parsed audio-specific config. Non-AAC audio
// (isAAC == false) passes samples through unchanged. A chunk handed to this
// framer may pack several consecutive samples; newBufferSize/extractData
// walk the track's sample-size table starting at indexCur to find how many
// whole samples the chunk holds, stopping once fewer than 4 bytes remain
// (the smallest plausible raw AAC frame).
type AACFramer struct {
	isAAC      bool
	channels   int
	sampleRate int
	profile    int // MPEG-4 audio object type, ADTS profile = objectType-1

	track    *Track
	indexCur uint32
}

// bindTrack attaches the sample-size table this framer walks; called once
// the owning track's stsz has been fully parsed.
func (f *AACFramer) bindTrack(t *Track) { f.track = t }

func (f *AACFramer) setPrivData(extra []byte) error {
	if len(extra) < 2 {
		return nil
	}
	objectType := int(extra[0] >> 3)
	freqIdx := int(extra[0]&0x07)<<1 | int(extra[1]>>7)
	chanCfg := int(extra[1]>>3) & 0x0f
	f.profile = objectType
	if freqIdx < len(aacSampleRates) {
		f.sampleRate = aacSampleRates[freqIdx]
	}
	f.channels = chanCfg
	f.isAAC = true
	return nil
}

// walkSamples counts whole samples starting at indexCur that fit within
// len(data), stopping once fewer than 4 bytes of the chunk remain. It does
// not mutate indexCur; callers restore or commit it explicitly.
func (f *AACFramer) walkSamples(dataLen int) (sampleCount int, consumed int, err error) {
	idx := f.indexCur
	remain := dataLen
	for remain >= 4 {
		if f.track == nil {
			return 0, 0, ErrInvalidSample
		}
		size, sizeErr := f.track.SampleSize(idx)
		if sizeErr != nil {
			return 0, 0, sizeErr
		}
		if int(size) > remain {
			break
		}
		remain -= int(size)
		consumed += int(size)
		idx++
		sampleCount++
	}
	return sampleCount, consumed, nil
}

func (f *AACFramer) newBufferSize(data []byte) (int, error) {
	if !f.isAAC {
		sampleCount, consumed, err := f.walkSamples(len(data))
		if err != nil {
			return 0, err
		}
		_ = sampleCount
		return consumed, nil
	}
	sampleCount, consumed, err := f.walkSamples(len(data))
	if err != nil {
		return 0, err
	}
	return consumed + sampleCount*adtsHeaderLen, nil
}

func (f *AACFramer) extractData(dst, data []byte) (int, error) {
	sampleCount, consumed, err := f.walkSamples(len(data))
	if err != nil {
		return 0, err
	}
	need := consumed
	if f.isAAC {
		need += sampleCount * adtsHeaderLen
	}
	if len(dst) < need {
		return 0, ErrBufferTooSmall
	}
	n := 0
	off := 0
	rateIdx := aacSampleRateIndex(f.sampleRate)
	for i := 0; i < sampleCount; i++ {
		size, _ := f.track.SampleSize(f.indexCur)
		if f.isAAC {
			writeADTSHeader(dst[n:], int(size)+adtsHeaderLen, f.profile, rateIdx, f.channels)
			n += adtsHeaderLen
		}
		n += copy(dst[n:], data[off:off+int(size)])
		off += int(size)
		f.indexCur++
	}
	return n, nil
}

func writeADTSHeader(dst []byte, frameLen, profile, sampleRateIdx, channels int) {
	adtsProfile := profile - 1
	if adtsProfile < 0 {
		adtsProfile = 1 // LC, the common fallback
	}
	dst[0] = 0xff
	dst[1] = 0xf1 // MPEG-4, no CRC
	dst[2] = byte(adtsProfile<<6) | byte(sampleRateIdx<<2) | byte((channels>>2)&0x01)
	dst[3] = byte((channels&0x03)<<6) | byte((frameLen>>11)&0x03)
	dst[4] = byte((frameLen >> 3) & 0xff)
	dst[5] = byte((frameLen&0x07)<<5) | 0x1f
	dst[6] = 0xfc
}
