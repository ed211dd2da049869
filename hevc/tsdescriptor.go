package hevc

// TSDescriptor emits the registration and Blu-ray stream-info descriptor
// bytes that accompany an HEVC elementary stream in an MPEG-TS PMT entry:
// an HDMV registration descriptor, a Blu-ray video-format/frame-rate/
// aspect-ratio byte pair, and (unless blurayMode forces it off) a Dolby
// Vision registration + descriptor block when DV RPU/EL NALs were seen.
// Returns the number of bytes written to dst.
func (r *Reader) TSDescriptor(dst []byte) (int, error) {
	if len(dst) < 10 {
		return 0, ErrBufferTooSmall
	}

	n := 0
	n += copy(dst[n:], []byte{0x05, 0x08, 'H', 'D', 'M', 'V', 0xff, 0x24})

	videoFormat, frameRateIndex, aspectRatioIndex := blurayStreamParams(
		r.StreamFPS(), r.StreamWidth(), r.StreamHeight())
	dst[n] = byte(videoFormat<<4) | byte(frameRateIndex)
	n++
	dst[n] = byte(aspectRatioIndex<<4) | 0x0f
	n++

	if !r.blurayMode && (r.hdr.IsDVEL || r.hdr.IsDVRPU) {
		dvLen, err := r.setDoViDescriptor(dst[n:])
		if err != nil {
			return 0, err
		}
		n += dvLen
	}
	return n, nil
}

// blurayStreamParams maps a resolution/frame-rate pair onto the Blu-ray
// PMT registration descriptor's video_format and frame_rate_index fields,
// and the aspect_ratio_index field (always 16:9 here; this module never
// tracks SAR/PAR beyond luma sample dimensions).
func blurayStreamParams(fps float64, width, height uint32) (videoFormat, frameRateIndex, aspectRatioIndex int) {
	switch {
	case height >= 2160:
		videoFormat = 8 // 2160p
	case height >= 1080:
		videoFormat = 7 // 1080p/i
	case height >= 720:
		videoFormat = 4 // 720p
	case height >= 576:
		videoFormat = 2 // 576i/p
	default:
		videoFormat = 1 // 480i/p
	}

	switch {
	case fps >= 23.9 && fps <= 24.1:
		frameRateIndex = 1
	case fps >= 24.9 && fps <= 25.1:
		frameRateIndex = 2
	case fps >= 29.9 && fps <= 30.1:
		frameRateIndex = 3
	case fps >= 49.9 && fps <= 50.1:
		frameRateIndex = 6
	case fps >= 59.8 && fps <= 60.1:
		frameRateIndex = 7
	default:
		frameRateIndex = 3
	}

	aspectRatioIndex = 3 // 16:9
	return videoFormat, frameRateIndex, aspectRatioIndex
}

// doViLevelThresholds is the fixed (max_width, max_pixel_rate) -> level
// table used by setDoViDescriptor; the first entry whose bounds admit the
// stream's width and pixel rate is selected.
var doViLevelThresholds = []struct {
	level           uint8
	maxWidth        uint32
	maxPixelRate    float64
}{
	{1, 1280, 22118400},
	{2, 1280, 27648000},
	{3, 1920, 49766400},
	{4, 2560, 62208000},
	{5, 3840, 124416000},
	{6, 3840, 199065600},
	{7, 3840, 248832000},
	{8, 3840, 398131200},
	{9, 3840, 497664000},
	{10, 3840, 995328000},
	{11, 7680, 995328000},
	{12, 7680, 1990656000},
	{13, 7680, 3981312000},
}

func doViLevel(width uint32, pixelRate float64) uint8 {
	for _, t := range doViLevelThresholds {
		if width <= t.maxWidth && pixelRate <= t.maxPixelRate {
			return t.level
		}
	}
	return 13
}

// setDoViDescriptor writes the Dolby Vision registration descriptor (tag
// 0x05, 'DOVI') followed by the DOVI video stream descriptor (tag 0xb0) to
// dst, deriving dv_profile and dv_level from the stream's resolution, frame
// rate, and the reader's IsDVRPU/IsDVEL/DVCompatibility flags.
func (r *Reader) setDoViDescriptor(dst []byte) (int, error) {
	// The source keys base-layer presence off an external track-association
	// flag this module has no equivalent of, since it never associates
	// separate BL/EL elementary streams. Approximate it from the NAL types
	// actually observed in this stream: a single-track RPU-only or plain
	// stream is base-layer; a stream carrying enhancement-layer NALs without
	// its own RPU is presumed to depend on a base layer decoded elsewhere.
	isDVEL := r.hdr.IsDVEL
	isDVBL := !isDVEL || r.hdr.IsDVRPU

	width := uint64(r.StreamWidth())
	pixelRate := float64(width) * float64(r.StreamHeight()) * r.StreamFPS()

	level := doViLevel(r.StreamWidth(), pixelRate)

	descLen := 5
	if !isDVBL {
		descLen = 7
	}
	total := 6 + 2 + descLen
	if len(dst) < total {
		return 0, ErrBufferTooSmall
	}

	n := 0
	n += copy(dst[n:], []byte{0x05, 0x04, 'D', 'O', 'V', 'I'})

	dst[n] = 0xb0
	n++
	dst[n] = byte(descLen)
	n++
	dst[n] = 1 // dv_version_major
	n++
	dst[n] = 0 // dv_version_minor
	n++

	var dvProfile uint8
	switch {
	case isDVEL && isDVBL:
		dvProfile = 4
	case isDVEL && !isDVBL:
		dvProfile = 7
	case r.hdr.DVCompatibility == 1 || r.hdr.DVCompatibility == 2 || r.hdr.DVCompatibility == 4:
		dvProfile = 8
	default:
		dvProfile = 5
	}

	// dv_profile(7) | dv_level(6) | rpu_present_flag(1) | el_present_flag(1)
	// | bl_present_flag(1), packed MSB-first across two bytes.
	dst[n] = (dvProfile&0x7f)<<1 | (level >> 5)
	n++
	dst[n] = (level&0x1f)<<3 | boolBit(r.hdr.IsDVRPU)<<2 | boolBit(isDVEL)<<1 | boolBit(isDVBL)
	n++

	if !isDVBL {
		dependencyPID := uint16(0x1011) // 13 bits
		dst[n] = byte(dependencyPID >> 5)
		n++
		dst[n] = byte(dependencyPID<<3) | 0x07 // + 3 reserved bits
		n++
	}

	dst[n] = (r.hdr.DVCompatibility&0x0f)<<4 | 0x0f
	n++

	return n, nil
}

func boolBit(b bool) byte {
	if b {
		return 1
	}
	return 0
}
