package hevc

import (
	"github.com/tsflow/hevcmux/nal"
)

// DefaultWorkingBufferSize is the recommended spare capacity a caller should
// leave on the buffer passed to DecodeNAL so an in-place VPS framerate
// rewrite never fails with ErrBufferExhausted.
const DefaultWorkingBufferSize = 512 * 1024

const maxSliceHeaderBytes = 64

// Logger is the trace sink this package reports parse warnings to. It is
// satisfied by *internal/xlog.Logger's zerolog-backed implementation.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// ReaderOption configures a Reader at construction time.
type ReaderOption func(*Reader)

// WithLogger attaches a trace sink; the default is a no-op logger.
func WithLogger(l Logger) ReaderOption {
	return func(r *Reader) { r.log = l }
}

// WithBlurayDescriptor selects Blu-ray-mode TS descriptor emission (omits
// the Dolby Vision descriptor even when DV is detected).
func WithBlurayDescriptor(bluray bool) ReaderOption {
	return func(r *Reader) { r.blurayMode = bluray }
}

// CodecInfo summarizes the decoded stream for a CheckStream probe.
type CodecInfo struct {
	Width  uint32
	Height uint32
	FPS    float64
	HDR    HDR
}

// CheckResult is the outcome of a best-effort stream probe.
type CheckResult struct {
	CodecInfo        CodecInfo
	StreamDescription string
}

// Reader forward-scans an Annex-B HEVC elementary stream, detecting access
// unit boundaries and deriving timing, resolution and HDR signalling as it
// goes. A Reader is single-use per stream; construct a new one per file.
type Reader struct {
	log        Logger
	blurayMode bool

	vps *VPS
	sps *SPS
	pps *PPS
	hdr HDR

	vpsBuffer []byte
	spsBuffer []byte
	ppsBuffer []byte

	paramSetsPending bool

	fpsOverride    float64
	hasFPSOverride bool

	firstFrame    bool
	lastIFrame    bool
	totalFrameNum uint64

	frameNum     uint64
	fullPicOrder uint64
	frameDepth   int

	picOrderMsb     int64
	prevPicOrderLsb uint32
	picOrderBase    uint64

	curDts, curPts   int64
	pcrIncPerFrame   int64

	lastDecodedPos int
}

// NewReader constructs a Reader ready to decode an elementary stream from
// its beginning.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{
		log:              nopLogger{},
		firstFrame:       true,
		paramSetsPending: true,
		frameDepth:       1,
		pcrIncPerFrame:   27000000 / 25, // overwritten once FPS is known via SetPcrIncPerFrame
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetPcrIncPerFrame sets the 27MHz-clock PCR increment per frame used by
// incTimings; callers derive this from the stream's detected FPS.
func (r *Reader) SetPcrIncPerFrame(v int64) { r.pcrIncPerFrame = v }

// SetFrameRateOverride arms an in-place VPS rewrite: the next VPS NAL
// DecodeNAL encounters with timing info present is rewritten to encode fps
// instead of its original timing pair.
func (r *Reader) SetFrameRateOverride(fps float64) {
	r.fpsOverride = fps
	r.hasFPSOverride = true
}

// VPS, SPS, PPS, HDR expose the reader's current parameter-set cache.
func (r *Reader) VPS() *VPS { return r.vps }
func (r *Reader) SPS() *SPS { return r.sps }
func (r *Reader) PPS() *PPS { return r.pps }
func (r *Reader) HDR() HDR  { return r.hdr }

// StreamWidth, StreamHeight return the active SPS resolution, or 0 before
// one has been seen.
func (r *Reader) StreamWidth() uint32 {
	if r.sps == nil {
		return 0
	}
	return r.sps.PicWidthInLumaSamples
}

func (r *Reader) StreamHeight() uint32 {
	if r.sps == nil {
		return 0
	}
	return r.sps.PicHeightInLumaSamples
}

// StreamFPS prefers the VPS timing pair, falling back to the SPS VUI timing
// pair when the VPS carries none.
func (r *Reader) StreamFPS() float64 {
	if r.vps != nil {
		if fps := r.vps.FPS(); fps != 0 {
			return fps
		}
	}
	if r.sps != nil {
		return r.sps.FPS()
	}
	return 0
}

func scLenBefore(buf []byte, pos int) int {
	if pos >= 4 && buf[pos-4] == 0 {
		return 4
	}
	return 3
}

// CheckStream is a best-effort, stateless-ish probe: it scans every NAL in
// buf, populates the reader's VPS/SPS/PPS/HDR cache, and reports the
// resulting codec description. It returns a zero CheckResult (not an error)
// on any malformed NAL, matching the source's "give up quietly" behaviour.
func (r *Reader) CheckStream(buf []byte) (CheckResult, error) {
	end := len(buf)
	pos, ok := nal.FindNextStartCode(buf, 0)

	// A NAL whose header starts in the last 4 bytes of buf is not examined;
	// this bound is kept as the source has it.
	for ok && pos < end-4 {
		if buf[pos]&0x80 != 0 {
			return CheckResult{}, nil
		}
		nt := nalType(buf[pos])
		prefixStart, scLen, found := nal.FindStartCodeWithPrefix(buf, pos)
		payloadEnd := end
		nextPos := end
		if found {
			payloadEnd = prefixStart
			nextPos = prefixStart + scLen
		}

		switch nt {
		case NalVps:
			v := &VPS{}
			if err := v.DecodeBuffer(buf[pos:payloadEnd]); err != nil {
				return CheckResult{}, nil
			}
			if err := v.Deserialize(); err != nil {
				return CheckResult{}, nil
			}
			r.vps = v
		case NalSps:
			s := &SPS{}
			if err := s.DecodeBuffer(buf[pos:payloadEnd]); err != nil {
				return CheckResult{}, nil
			}
			if err := s.Deserialize(); err != nil {
				return CheckResult{}, nil
			}
			r.sps = s
		case NalPps:
			p := &PPS{}
			if err := p.DecodeBuffer(buf[pos:payloadEnd]); err != nil {
				return CheckResult{}, nil
			}
			if err := p.Deserialize(); err != nil {
				return CheckResult{}, nil
			}
			r.pps = p
		case NalSeiPrefix:
			s := &SEI{}
			if err := s.DecodeBuffer(buf[pos:payloadEnd]); err == nil {
				if err := s.Deserialize(); err == nil && s.HasHDR10Plus {
					r.hdr.IsHDR10Plus = true
				}
			}
		case NalDvrpu, NalDvel:
			if payloadEnd > pos+1 && buf[pos+1] == 1 {
				if nt == NalDvel {
					r.hdr.IsDVEL = true
				} else {
					r.hdr.IsDVRPU = true
				}
			}
		}

		if !found {
			break
		}
		pos, ok = nal.FindNextStartCode(buf, nextPos)
	}

	if r.vps != nil && r.sps != nil && r.pps != nil &&
		r.sps.VpsID == r.vps.VpsID && r.pps.SpsID == r.sps.SpsID {
		r.hdr.deriveFromSPS(r.sps)
		return CheckResult{
			CodecInfo: CodecInfo{
				Width:  r.sps.PicWidthInLumaSamples,
				Height: r.sps.PicHeightInLumaSamples,
				FPS:    r.StreamFPS(),
				HDR:    r.hdr,
			},
			StreamDescription: "HEVC",
		}, nil
	}
	return CheckResult{}, nil
}

// storeParamSetBuffer trims trailing zero bytes (a common Annex-B trailing
// padding artifact) before caching a parameter set's raw bytes for
// re-insertion ahead of the first frame of a file.
func storeParamSetBuffer(data []byte) []byte {
	end := len(data)
	for end > 0 && data[end-1] == 0 {
		end--
	}
	if end == 0 {
		return nil
	}
	out := make([]byte, end)
	copy(out, data[:end])
	return out
}

// PendingParamSets returns the concatenated, start-code-prefixed VPS/SPS/PPS
// bytes cached from the most recently decoded parameter sets, for a caller
// to prepend ahead of the stream's first frame. spsPpsInGop should be the
// mov.FlagSpsPpsInGop bit already observed on that frame's packet: when
// set, the container has already carried the parameter sets out of band,
// so PendingParamSets returns nil without writing them again. Every call
// after the stream's first consumes the pending state and returns nil,
// mirroring HEVCStreamReader::writeAdditionData's
// m_firstFileFrame/IS_SPS_PPS_IN_GOP gate against duplicate insertion.
func (r *Reader) PendingParamSets(spsPpsInGop bool) []byte {
	if !r.paramSetsPending {
		return nil
	}
	r.paramSetsPending = false
	if spsPpsInGop {
		return nil
	}
	var out []byte
	out = appendParamSetNAL(out, r.vpsBuffer)
	out = appendParamSetNAL(out, r.spsBuffer)
	out = appendParamSetNAL(out, r.ppsBuffer)
	return out
}

func appendParamSetNAL(dst, nalBytes []byte) []byte {
	if len(nalBytes) == 0 {
		return dst
	}
	dst = append(dst, 0, 0, 0, 1)
	return append(dst, nalBytes...)
}

// DecodeNAL scans forward from the start of buf, classifying each NAL as
// slice, suffix, or prefix, until an access unit closes or the buffer is
// exhausted. On success it returns the number of bytes consumed by the
// closed access unit (auLen); the caller re-invokes DecodeNAL on
// buf[auLen:] (or its successor, after ingesting more data) for the next
// one. buf must have spare capacity (cap(buf) > len(buf)) if a framerate
// override is armed and the active VPS carries timing info, since the
// rewritten VPS may grow past its original length; ErrBufferExhausted is
// returned if that growth does not fit.
func (r *Reader) DecodeNAL(buf []byte, eof bool) (int, error) {
	full := buf[:cap(buf)]
	bufEnd := len(buf)

	sliceFound := false
	r.lastIFrame = false

	curPos := 0
	nextNal, found := nal.FindNextStartCode(full[:bufEnd], curPos)
	if !eof && !found {
		return 0, ErrNeedMoreData
	}

	var prevPos int
	for curPos < bufEnd {
		nt := nalType(full[curPos])

		if isSlice(nt) {
			if curPos+2 < bufEnd && full[curPos+2]&0x80 != 0 {
				if sliceFound {
					r.lastDecodedPos = prevPos
					r.incTimings()
					return prevPos, nil
				}
				sh := &SliceHeader{}
				headerEnd := curPos + maxSliceHeaderBytes
				if headerEnd > nextNal {
					headerEnd = nextNal
				}
				if err := sh.DecodeBuffer(full[curPos:headerEnd]); err != nil {
					return 0, err
				}
				if err := sh.Deserialize(r.sps, r.pps); err != nil {
					return 0, err
				}
				if nt >= NalBlaWLp {
					r.lastIFrame = true
				}
				if r.sps != nil {
					r.fullPicOrder = r.toFullPicOrder(sh, int(r.sps.Log2MaxPicOrderCntLsb))
				}
			}
			sliceFound = true
		} else if !isSuffix(nt) {
			if sliceFound {
				r.incTimings()
				r.lastDecodedPos = prevPos
				return prevPos, nil
			}

			nextNalWithStartCode := nextNal - scLenBefore(full[:bufEnd], nextNal)

			switch nt {
			case NalVps:
				v := &VPS{}
				if err := v.DecodeBuffer(full[curPos:nextNalWithStartCode]); err != nil {
					return 0, err
				}
				if err := v.Deserialize(); err != nil {
					return 0, err
				}
				r.vps = v
				if v.TimingInfoPresentFlag && r.hasFPSOverride {
					newEnd, delta, err := r.rewriteVPS(full, bufEnd, curPos, nextNalWithStartCode)
					if err != nil {
						return 0, err
					}
					bufEnd = newEnd
					nextNal += delta
					nextNalWithStartCode += delta
				}
				r.vpsBuffer = storeParamSetBuffer(full[curPos:nextNalWithStartCode])
			case NalSps:
				s := &SPS{}
				if err := s.DecodeBuffer(full[curPos:nextNalWithStartCode]); err != nil {
					return 0, err
				}
				if err := s.Deserialize(); err != nil {
					return 0, err
				}
				r.sps = s
				r.spsBuffer = storeParamSetBuffer(full[curPos:nextNalWithStartCode])
			case NalPps:
				p := &PPS{}
				if err := p.DecodeBuffer(full[curPos:nextNalWithStartCode]); err != nil {
					return 0, err
				}
				if err := p.Deserialize(); err != nil {
					return 0, err
				}
				r.pps = p
				r.ppsBuffer = storeParamSetBuffer(full[curPos:nextNalWithStartCode])
			case NalSeiPrefix:
				s := &SEI{}
				if err := s.DecodeBuffer(full[curPos:nextNal]); err != nil {
					return 0, err
				}
				if err := s.Deserialize(); err != nil {
					return 0, err
				}
				if s.HasHDR10Plus {
					r.hdr.IsHDR10Plus = true
				}
			}
		}

		prevPos = curPos
		curPos = nextNal
		next, ok := nal.FindNextStartCode(full[:bufEnd], curPos)
		if !eof && !ok {
			return 0, ErrNeedMoreData
		}
		nextNal = next
	}

	if eof {
		r.lastDecodedPos = bufEnd
		return bufEnd, nil
	}
	return 0, ErrNeedMoreData
}

// rewriteVPS re-serializes r.vps with the armed framerate override and
// shifts the remainder of full[:bufEnd] by the resulting size delta.
// Returns the new bufEnd and the delta applied.
func (r *Reader) rewriteVPS(full []byte, bufEnd, nalStart, nalEnd int) (int, int, error) {
	oldLen := nalEnd - nalStart
	r.vps.SetFPS(r.fpsOverride)

	tmp := make([]byte, r.vps.NalBufferLen())
	newLen, err := r.vps.SerializeBuffer(tmp)
	if err != nil {
		return bufEnd, 0, ErrBufferExhausted
	}

	delta := newLen - oldLen
	if delta != 0 {
		newEnd := bufEnd + delta
		if newEnd > len(full) {
			return bufEnd, 0, ErrBufferExhausted
		}
		copy(full[nalEnd+delta:newEnd], full[nalEnd:bufEnd])
		bufEnd = newEnd
	}
	copy(full[nalStart:nalStart+newLen], tmp[:newLen])
	return bufEnd, delta, nil
}

// incTimings advances the DTS/PTS timeline and B-pyramid depth estimate for
// the access unit that has just closed.
func (r *Reader) incTimings() {
	if r.totalFrameNum > 0 {
		r.curDts += r.pcrIncPerFrame
	}
	r.totalFrameNum++

	delta := int64(r.frameNum) - int64(r.fullPicOrder)
	r.curPts = r.curDts - delta*r.pcrIncPerFrame
	r.frameNum++
	r.firstFrame = false

	if delta > int64(r.frameDepth) {
		newDepth := delta
		if newDepth > 4 {
			newDepth = 4
		}
		r.frameDepth = int(newDepth)
		r.log.Debugf("B-pyramid level %d detected, shifting DTS by %d frames", r.frameDepth-1, r.frameDepth)
	}
}

// CurDts, CurPts return the timeline state as of the most recently closed
// access unit, in 27MHz clock units.
func (r *Reader) CurDts() int64 { return r.curDts }
func (r *Reader) CurPts() int64 { return r.curPts }

// toFullPicOrder implements the HEVC POC LSB-to-full conversion (Rec.
// ITU-T H.265 §8.3.1), tracking MSB wraparound across calls.
func (r *Reader) toFullPicOrder(slice *SliceHeader, picBits int) uint64 {
	if slice.IsIDR() {
		r.picOrderBase = r.frameNum
		r.picOrderMsb = 0
		r.prevPicOrderLsb = 0
	} else {
		rng := int64(1) << uint(picBits)
		lsb := int64(slice.SlicePicOrderCntLsb)
		prev := int64(r.prevPicOrderLsb)

		if lsb < prev && prev-lsb >= rng/2 {
			r.picOrderMsb += rng
		} else if lsb > prev && lsb-prev >= rng/2 {
			r.picOrderMsb -= rng
		}
		r.prevPicOrderLsb = slice.SlicePicOrderCntLsb
	}
	return uint64(int64(slice.SlicePicOrderCntLsb) + r.picOrderMsb + int64(r.picOrderBase))
}
