package hevc

import (
	"github.com/tsflow/hevcmux/bitstream"
)

// SliceHeader decodes only the prefix of a slice_segment_header needed to
// derive picture order: whether this is the first slice segment of the
// picture, and (for non-IRAP pictures) the POC LSB.
type SliceHeader struct {
	NalType int

	FirstSliceSegmentInPicFlag bool
	SlicePicOrderCntLsb        uint32

	raw []byte
}

// DecodeBuffer captures up to the first few dozen bytes of the slice NAL;
// the header prefix this package decodes never needs more.
func (s *SliceHeader) DecodeBuffer(buf []byte) error {
	if len(buf) < 2 {
		return ErrParse
	}
	s.raw = append(s.raw[:0], buf...)
	s.NalType = nalType(buf[0])
	return nil
}

// IsIDR reports whether the slice's NAL type falls in the IRAP range, used
// by the picture-order reset rule.
func (s *SliceHeader) IsIDR() bool {
	return isIDR(s.NalType)
}

// Deserialize decodes the header prefix using the active SPS/PPS to resolve
// field widths (num_extra_slice_header_bits, output_flag_present_flag,
// log2_max_pic_order_cnt_lsb).
func (s *SliceHeader) Deserialize(sps *SPS, pps *PPS) error {
	if sps == nil || pps == nil {
		return ErrParse
	}
	if len(s.raw) < 2 {
		return ErrParse
	}
	// Slice headers are read straight off Annex-B bytes (no RBSP extraction
	// here: the header prefix this package needs never straddles an
	// emulation-prevention byte in practice, and re-scanning the whole NAL
	// for one would cost more than it buys on this hot path).
	br := bitstream.NewReader(s.raw[2:])

	s.FirstSliceSegmentInPicFlag = br.GetBit() == 1
	if isIDR(s.NalType) {
		br.SkipBits(1) // no_output_of_prior_pics_flag
	}
	br.ReadUE() // slice_pic_parameter_set_id

	dependentSliceSegmentFlag := false
	if !s.FirstSliceSegmentInPicFlag {
		if pps.DependentSliceSegmentsEnabledFlag {
			dependentSliceSegmentFlag = br.GetBit() == 1
		}
		// slice_segment_address width depends on picture size in CTBs,
		// which this package never computes; non-first slice segments are
		// skipped entirely by the caller before reaching here.
		return ErrParse
	}
	if dependentSliceSegmentFlag {
		return nil
	}

	br.SkipBits(int(pps.NumExtraSliceHeaderBits))
	br.ReadUE() // slice_type
	if pps.OutputFlagPresentFlag {
		br.SkipBits(1) // pic_output_flag
	}
	if sps.SeparateColourPlaneFlag {
		br.SkipBits(2) // colour_plane_id
	}
	if !isIDR(s.NalType) {
		if br.RemainBits() < int(sps.Log2MaxPicOrderCntLsb) {
			return ErrParse
		}
		s.SlicePicOrderCntLsb = uint32(br.GetBits(int(sps.Log2MaxPicOrderCntLsb)))
	}
	return nil
}
