package hevc

import (
	"github.com/tsflow/hevcmux/bitstream"
	"github.com/tsflow/hevcmux/nal"
)

// SPS holds the seq_parameter_set_rbsp fields needed for timing, resolution,
// and HDR/colour signalling derivation.
type SPS struct {
	VpsID                  uint8
	SpsID                  uint8
	PicWidthInLumaSamples  uint32
	PicHeightInLumaSamples uint32
	Log2MaxPicOrderCntLsb  uint8

	ColourPrimaries              uint8
	TransferCharacteristics      uint8
	MatrixCoeffs                 uint8
	ChromaSampleLocTypeTopField  uint8

	SubPicHrdParamsPresentFlag bool
	SeparateColourPlaneFlag    bool

	NumUnitsInTick uint32
	TimeScale      uint32
	TimingInfoPresentFlag bool

	raw []byte
}

// FPS returns the frame rate encoded by the VUI timing pair, or 0 if the SPS
// carries no timing information.
func (s *SPS) FPS() float64 {
	if !s.TimingInfoPresentFlag || s.NumUnitsInTick == 0 {
		return 0
	}
	return float64(s.TimeScale) / float64(s.NumUnitsInTick)
}

// DecodeBuffer captures the raw NAL (header bytes included).
func (s *SPS) DecodeBuffer(buf []byte) error {
	if len(buf) < 2 {
		return ErrParse
	}
	s.raw = append(s.raw[:0], buf...)
	return nil
}

// Deserialize performs RBSP extraction and a full bit-level walk of the SPS
// syntax, since every field this package needs (colour description,
// sub_pic_hrd_params_present_flag) sits behind the scaling-list and
// short-term-reference-picture-set structures.
func (s *SPS) Deserialize() error {
	if len(s.raw) < 2 {
		return ErrParse
	}
	rbsp := make([]byte, len(s.raw)-2)
	n, err := nal.DecodeRBSP(rbsp, s.raw[2:])
	if err != nil {
		return err
	}
	rbsp = rbsp[:n]

	br := bitstream.NewReader(rbsp)
	s.VpsID = br.Uint8(4)
	maxSubLayersMinus1 := int(br.Uint8(3))
	br.SkipBits(1) // sps_temporal_id_nesting_flag

	skipProfileTierLevel(br, true, maxSubLayersMinus1)

	s.SpsID = uint8(br.ReadUE())
	chromaFormatIdc := br.ReadUE()
	if chromaFormatIdc == 3 {
		s.SeparateColourPlaneFlag = br.GetBit() == 1
	}
	s.PicWidthInLumaSamples = uint32(br.ReadUE())
	s.PicHeightInLumaSamples = uint32(br.ReadUE())
	if br.GetBit() == 1 { // conformance_window_flag
		br.ReadUE() // conf_win_left_offset
		br.ReadUE() // conf_win_right_offset
		br.ReadUE() // conf_win_top_offset
		br.ReadUE() // conf_win_bottom_offset
	}
	br.ReadUE() // bit_depth_luma_minus8
	br.ReadUE() // bit_depth_chroma_minus8
	s.Log2MaxPicOrderCntLsb = uint8(br.ReadUE()) + 4

	spsSubLayerOrderingInfoPresent := br.GetBit() == 1
	start := maxSubLayersMinus1
	if spsSubLayerOrderingInfoPresent {
		start = 0
	}
	for i := start; i <= maxSubLayersMinus1; i++ {
		br.ReadUE() // sps_max_dec_pic_buffering_minus1
		br.ReadUE() // sps_max_num_reorder_pics
		br.ReadUE() // sps_max_latency_increase_plus1
	}

	br.ReadUE() // log2_min_luma_coding_block_size_minus3
	br.ReadUE() // log2_diff_max_min_luma_coding_block_size
	br.ReadUE() // log2_min_luma_transform_block_size_minus2
	br.ReadUE() // log2_diff_max_min_luma_transform_block_size
	br.ReadUE() // max_transform_hierarchy_depth_inter
	br.ReadUE() // max_transform_hierarchy_depth_intra

	if br.GetBit() == 1 { // scaling_list_enabled_flag
		if br.GetBit() == 1 { // sps_scaling_list_data_present_flag
			skipScalingListData(br)
		}
	}

	br.SkipBits(1) // amp_enabled_flag
	br.SkipBits(1) // sample_adaptive_offset_enabled_flag
	if br.GetBit() == 1 { // pcm_enabled_flag
		br.SkipBits(4) // pcm_sample_bit_depth_luma_minus1
		br.SkipBits(4) // pcm_sample_bit_depth_chroma_minus1
		br.ReadUE()    // log2_min_pcm_luma_coding_block_size_minus3
		br.ReadUE()    // log2_diff_max_min_pcm_luma_coding_block_size
		br.SkipBits(1) // pcm_loop_filter_disabled_flag
	}

	numShortTermRefPicSets := int(br.ReadUE())
	numDeltaPocs := make([]int, numShortTermRefPicSets)
	for i := 0; i < numShortTermRefPicSets; i++ {
		numDeltaPocs[i] = skipShortTermRefPicSet(br, i, numShortTermRefPicSets, numDeltaPocs)
	}

	if br.GetBit() == 1 { // long_term_ref_pics_present_flag
		numLongTermRefPicsSps := int(br.ReadUE())
		for i := 0; i < numLongTermRefPicsSps; i++ {
			br.SkipBits(int(s.Log2MaxPicOrderCntLsb)) // lt_ref_pic_poc_lsb_sps
			br.SkipBits(1)                            // used_by_curr_pic_lt_sps_flag
		}
	}

	br.SkipBits(1) // sps_temporal_mvp_enabled_flag
	br.SkipBits(1) // strong_intra_smoothing_enabled_flag

	if br.GetBit() == 1 { // vui_parameters_present_flag
		s.decodeVUI(br, maxSubLayersMinus1)
	}
	return nil
}

func (s *SPS) decodeVUI(br *bitstream.Reader, maxSubLayersMinus1 int) {
	if br.GetBit() == 1 { // aspect_ratio_info_present_flag
		aspectRatioIdc := br.Uint8(8)
		if aspectRatioIdc == 255 {
			br.SkipBits(16) // sar_width
			br.SkipBits(16) // sar_height
		}
	}
	if br.GetBit() == 1 { // overscan_info_present_flag
		br.SkipBits(1) // overscan_appropriate_flag
	}
	if br.GetBit() == 1 { // video_signal_type_present_flag
		br.SkipBits(3) // video_format
		br.SkipBits(1) // video_full_range_flag
		if br.GetBit() == 1 { // colour_description_present_flag
			s.ColourPrimaries = br.Uint8(8)
			s.TransferCharacteristics = br.Uint8(8)
			s.MatrixCoeffs = br.Uint8(8)
		}
	}
	if br.GetBit() == 1 { // chroma_loc_info_present_flag
		s.ChromaSampleLocTypeTopField = uint8(br.ReadUE())
		br.ReadUE() // chroma_sample_loc_type_bottom_field
	}
	br.SkipBits(1) // neutral_chroma_indication_flag
	br.SkipBits(1) // field_seq_flag
	br.SkipBits(1) // frame_field_info_present_flag
	if br.GetBit() == 1 { // default_display_window_flag
		br.ReadUE()
		br.ReadUE()
		br.ReadUE()
		br.ReadUE()
	}
	if br.GetBit() == 1 { // vui_timing_info_present_flag
		s.TimingInfoPresentFlag = true
		s.NumUnitsInTick = uint32(br.GetBits(32))
		s.TimeScale = uint32(br.GetBits(32))
		if br.GetBit() == 1 { // vui_poc_proportional_to_timing_flag
			br.ReadUE()
		}
		if br.GetBit() == 1 { // vui_hrd_parameters_present_flag
			s.decodeHRD(br, true, maxSubLayersMinus1)
		}
	}
	// bitstream_restriction_flag and beyond are not needed by this module.
}

func (s *SPS) decodeHRD(br *bitstream.Reader, commonInfPresentFlag bool, maxNumSubLayersMinus1 int) {
	nalHrd := false
	vclHrd := false
	if commonInfPresentFlag {
		nalHrd = br.GetBit() == 1
		vclHrd = br.GetBit() == 1
		if nalHrd || vclHrd {
			s.SubPicHrdParamsPresentFlag = br.GetBit() == 1
			if s.SubPicHrdParamsPresentFlag {
				br.SkipBits(8) // tick_divisor_minus2
				br.SkipBits(5) // du_cpb_removal_delay_increment_length_minus1
				br.SkipBits(1) // sub_pic_cpb_params_in_pic_timing_sei_flag
				br.SkipBits(5) // dpb_output_delay_du_length_minus1
			}
			br.SkipBits(4) // bit_rate_scale
			br.SkipBits(4) // cpb_size_scale
			if s.SubPicHrdParamsPresentFlag {
				br.SkipBits(4) // cpb_size_du_scale
			}
			br.SkipBits(5) // initial_cpb_removal_delay_length_minus1
			br.SkipBits(5) // au_cpb_removal_delay_length_minus1
			br.SkipBits(5) // dpb_output_delay_length_minus1
		}
	}
	for i := 0; i <= maxNumSubLayersMinus1; i++ {
		fixedPicRateGeneral := br.GetBit() == 1
		fixedPicRateWithinCvs := fixedPicRateGeneral
		if !fixedPicRateGeneral {
			fixedPicRateWithinCvs = br.GetBit() == 1
		}
		lowDelayHrd := false
		if fixedPicRateWithinCvs {
			br.ReadUE() // elemental_duration_in_tc_minus1
		} else {
			lowDelayHrd = br.GetBit() == 1
		}
		cpbCntMinus1 := 0
		if !lowDelayHrd {
			cpbCntMinus1 = int(br.ReadUE())
		}
		if nalHrd {
			skipSubLayerHRD(br, cpbCntMinus1, s.SubPicHrdParamsPresentFlag)
		}
		if vclHrd {
			skipSubLayerHRD(br, cpbCntMinus1, s.SubPicHrdParamsPresentFlag)
		}
	}
}

func skipSubLayerHRD(br *bitstream.Reader, cpbCntMinus1 int, subPicHrd bool) {
	for i := 0; i <= cpbCntMinus1; i++ {
		br.ReadUE() // bit_rate_value_minus1
		br.ReadUE() // cpb_size_value_minus1
		if subPicHrd {
			br.ReadUE() // cpb_size_du_value_minus1
			br.ReadUE() // bit_rate_du_value_minus1
		}
		br.SkipBits(1) // cbr_flag
	}
}

func skipScalingListData(br *bitstream.Reader) {
	for sizeID := 0; sizeID < 4; sizeID++ {
		step := 1
		if sizeID == 3 {
			step = 3
		}
		for matrixID := 0; matrixID < 6; matrixID += step {
			if br.GetBit() == 0 { // scaling_list_pred_mode_flag
				br.ReadUE() // scaling_list_pred_matrix_id_delta
				continue
			}
			coefNum := 64
			if n := 1 << (4 + (sizeID << 1)); n < coefNum {
				coefNum = n
			}
			if sizeID > 1 {
				br.ReadSE() // scaling_list_dc_coef_minus8
			}
			for i := 0; i < coefNum; i++ {
				br.ReadSE() // scaling_list_delta_coef
			}
		}
	}
}

// skipShortTermRefPicSet walks one short_term_ref_pic_set() entry and
// returns its NumDeltaPocs, needed by later entries that predict from it.
func skipShortTermRefPicSet(br *bitstream.Reader, idx, numShortTermRefPicSets int, numDeltaPocs []int) int {
	interPred := false
	if idx != 0 {
		interPred = br.GetBit() == 1
	}
	if interPred {
		deltaIdxMinus1 := 0
		if idx == numShortTermRefPicSets {
			deltaIdxMinus1 = int(br.ReadUE())
		}
		br.SkipBits(1) // delta_rps_sign
		br.ReadUE()    // abs_delta_rps_minus1
		refIdx := idx - (deltaIdxMinus1 + 1)
		count := 0
		if refIdx >= 0 && refIdx < len(numDeltaPocs) {
			count = numDeltaPocs[refIdx]
		}
		for j := 0; j <= count; j++ {
			usedByCurrPicFlag := br.GetBit() == 1
			if !usedByCurrPicFlag {
				br.SkipBits(1) // use_delta_flag
			}
		}
		return count
	}

	numNegativePics := int(br.ReadUE())
	numPositivePics := int(br.ReadUE())
	for i := 0; i < numNegativePics; i++ {
		br.ReadUE()    // delta_poc_s0_minus1
		br.SkipBits(1) // used_by_curr_pic_s0_flag
	}
	for i := 0; i < numPositivePics; i++ {
		br.ReadUE()    // delta_poc_s1_minus1
		br.SkipBits(1) // used_by_curr_pic_s1_flag
	}
	return numNegativePics + numPositivePics
}
