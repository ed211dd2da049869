package hevc

import (
	"github.com/tsflow/hevcmux/bitstream"
	"github.com/tsflow/hevcmux/nal"
)

// PPS holds the pic_parameter_set_rbsp fields the slice-header prefix decode
// needs: which SPS it refers to, and the dependent-slice/tiles flags that
// shift the bit position of slice_pic_order_cnt_lsb.
type PPS struct {
	PpsID uint8
	SpsID uint8

	DependentSliceSegmentsEnabledFlag bool
	OutputFlagPresentFlag             bool
	NumExtraSliceHeaderBits           uint8
	TilesEnabledFlag                  bool

	raw []byte
}

// DecodeBuffer captures the raw NAL (header bytes included).
func (p *PPS) DecodeBuffer(buf []byte) error {
	if len(buf) < 2 {
		return ErrParse
	}
	p.raw = append(p.raw[:0], buf...)
	return nil
}

// Deserialize performs RBSP extraction and decodes the PPS prefix fields.
func (p *PPS) Deserialize() error {
	if len(p.raw) < 2 {
		return ErrParse
	}
	rbsp := make([]byte, len(p.raw)-2)
	n, err := nal.DecodeRBSP(rbsp, p.raw[2:])
	if err != nil {
		return err
	}
	rbsp = rbsp[:n]

	br := bitstream.NewReader(rbsp)
	p.PpsID = uint8(br.ReadUE())
	p.SpsID = uint8(br.ReadUE())
	p.DependentSliceSegmentsEnabledFlag = br.GetBit() == 1
	p.OutputFlagPresentFlag = br.GetBit() == 1
	p.NumExtraSliceHeaderBits = br.Uint8(3)
	br.SkipBits(1) // sign_data_hiding_enabled_flag
	br.SkipBits(1) // cabac_init_present_flag
	br.ReadUE()    // num_ref_idx_l0_default_active_minus1
	br.ReadUE()    // num_ref_idx_l1_default_active_minus1
	br.ReadSE()    // init_qp_minus26
	br.SkipBits(1) // constrained_intra_pred_flag
	br.SkipBits(1) // transform_skip_enabled_flag
	if br.GetBit() == 1 { // cu_qp_delta_enabled_flag
		br.ReadUE() // diff_cu_qp_delta_depth
	}
	br.ReadSE()    // pps_cb_qp_offset
	br.ReadSE()    // pps_cr_qp_offset
	br.SkipBits(1) // pps_slice_chroma_qp_offsets_present_flag
	br.SkipBits(1) // weighted_pred_flag
	br.SkipBits(1) // weighted_bipred_flag
	br.SkipBits(1) // transquant_bypass_enabled_flag
	p.TilesEnabledFlag = br.GetBit() == 1
	br.SkipBits(1) // entropy_coding_sync_enabled_flag
	return nil
}
