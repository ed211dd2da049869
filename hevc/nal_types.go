// Package hevc decodes HEVC VPS/SPS/PPS/slice-header/SEI syntax enough to
// derive frame rate, resolution, aspect ratio and HDR/Dolby-Vision
// signalling, and forward-scans an Annex-B elementary stream to emit
// access-unit boundaries and MPEG-TS descriptor bytes.
package hevc

// HEVC NAL unit types (Rec. ITU-T H.265, Table 7-1).
const (
	NalTrailN  = 0
	NalTrailR  = 1
	NalTsaN    = 2
	NalTsaR    = 3
	NalStsaN   = 4
	NalStsaR   = 5
	NalRadlN   = 6
	NalRadlR   = 7
	NalRaslN   = 8
	NalRaslR   = 9

	NalBlaWLp      = 16
	NalBlaWRadl    = 17
	NalBlaNLp      = 18
	NalIdrWRadl    = 19
	NalIdrNLp      = 20
	NalCraNut      = 21
	NalRsvIrapVcl23 = 23

	NalVps  = 32
	NalSps  = 33
	NalPps  = 34
	NalAud  = 35
	NalEos  = 36
	NalEob  = 37
	NalFd   = 38

	NalSeiPrefix = 39
	NalSeiSuffix = 40

	NalRsvNvcl45 = 45
	NalRsvNvcl47 = 47

	NalUnspec56 = 56
	NalDvrpu    = 62
	NalDvel     = 63
)

// isSlice reports whether nalType carries VCL (coded-slice) data.
func isSlice(nalType int) bool {
	return (nalType >= NalTrailN && nalType <= NalRaslR) ||
		(nalType >= NalBlaWLp && nalType <= NalRsvIrapVcl23)
}

// isSuffix reports whether nalType is a non-VCL unit that trails the current
// access unit rather than opening the next one. The first disjunct
// (nalType == NalRsvNvcl45) is subsumed by the following range check; kept
// verbatim per the source this is ported from.
func isSuffix(nalType int) bool {
	return nalType == NalFd || nalType == NalSeiSuffix || nalType == NalRsvNvcl45 ||
		(nalType >= NalRsvNvcl45 && nalType <= NalRsvNvcl47) ||
		(nalType >= NalUnspec56 && nalType <= NalDvel)
}

func isIDR(nalType int) bool {
	return nalType >= NalBlaWLp && nalType <= NalRsvIrapVcl23
}

func nalType(header0 byte) int {
	return int((header0 >> 1) & 0x3f)
}
