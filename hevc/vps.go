package hevc

import (
	"math"

	"github.com/tsflow/hevcmux/bitstream"
	"github.com/tsflow/hevcmux/nal"
)

// VPS holds the fields of a video_parameter_set_rbsp needed to derive and
// override the stream frame rate. Every other syntax element is retained
// only as opaque RBSP bytes so SerializeBuffer can patch the timing pair in
// place and re-emit a byte-identical NAL otherwise.
type VPS struct {
	VpsID uint8

	TimingInfoPresentFlag bool
	NumUnitsInTick        uint32
	TimeScale             uint32

	header      [2]byte
	rbsp        []byte
	timingBitPos int // valid only if TimingInfoPresentFlag
	raw          []byte
}

// DecodeBuffer captures the raw NAL (header bytes included, no start code).
func (v *VPS) DecodeBuffer(buf []byte) error {
	if len(buf) < 2 {
		return ErrParse
	}
	v.raw = append(v.raw[:0], buf...)
	return nil
}

// Deserialize performs RBSP extraction and a bit-level parse of the fields
// this package needs, stopping immediately after vps_time_scale so the
// remainder of the VPS (HRD parameters, extensions) never needs to be
// modeled.
func (v *VPS) Deserialize() error {
	if len(v.raw) < 2 {
		return ErrParse
	}
	v.header[0], v.header[1] = v.raw[0], v.raw[1]

	rbsp := make([]byte, len(v.raw)-2)
	n, err := nal.DecodeRBSP(rbsp, v.raw[2:])
	if err != nil {
		return err
	}
	rbsp = rbsp[:n]
	v.rbsp = rbsp

	br := bitstream.NewReader(rbsp)
	if br.RemainBits() < 4+1+1+6+3+1+16 {
		return ErrParse
	}
	v.VpsID = br.Uint8(4)
	br.SkipBits(1) // vps_base_layer_internal_flag
	br.SkipBits(1) // vps_base_layer_available_flag
	br.SkipBits(6) // vps_max_layers_minus1
	maxSubLayersMinus1 := int(br.Uint8(3))
	br.SkipBits(1)  // vps_temporal_id_nesting_flag
	br.SkipBits(16) // vps_reserved_0xffff_16bits

	skipProfileTierLevel(br, true, maxSubLayersMinus1)

	maxLayerID := int(br.Uint8(6))
	numLayerSetsMinus1 := int(br.ReadUE())
	for i := 1; i <= numLayerSetsMinus1; i++ {
		br.SkipBits(maxLayerID + 1)
	}

	v.TimingInfoPresentFlag = br.GetBit() == 1
	if v.TimingInfoPresentFlag {
		if br.RemainBits() < 64 {
			return ErrParse
		}
		v.timingBitPos = br.BitPos()
		v.NumUnitsInTick = uint32(br.GetBits(32))
		v.TimeScale = uint32(br.GetBits(32))
	}
	return nil
}

// FPS returns the frame rate encoded by the timing pair, or 0 if timing
// information is not present.
func (v *VPS) FPS() float64 {
	if !v.TimingInfoPresentFlag || v.NumUnitsInTick == 0 {
		return 0
	}
	return float64(v.TimeScale) / float64(v.NumUnitsInTick)
}

// SetFPS chooses the canonical (num_units_in_tick, time_scale) pair for fps:
// (1001, round(1001*fps)) when round(1001*fps) is a multiple of 1000, as for
// the NTSC-style rates 23.976 and 29.97, and (1000, round(1000*fps))
// otherwise.
func (v *VPS) SetFPS(fps float64) {
	n := math.Round(1001 * fps)
	if math.Mod(n, 1000) == 0 {
		v.NumUnitsInTick = 1001
		v.TimeScale = uint32(n)
		return
	}
	v.NumUnitsInTick = 1000
	v.TimeScale = uint32(math.Round(1000 * fps))
}

// SerializeBuffer re-emits the VPS into dst with the current
// NumUnitsInTick/TimeScale substituted at their original bit position,
// leaving every other field untouched. Returns the number of bytes written.
func (v *VPS) SerializeBuffer(dst []byte) (int, error) {
	if v.rbsp == nil {
		return 0, ErrParse
	}
	patched := append([]byte(nil), v.rbsp...)
	if v.TimingInfoPresentFlag {
		bitstream.OverwriteBits(patched, v.timingBitPos, 32, uint64(v.NumUnitsInTick))
		bitstream.OverwriteBits(patched, v.timingBitPos+32, 32, uint64(v.TimeScale))
	}

	if len(dst) < 2 {
		return 0, ErrBufferTooSmall
	}
	dst[0], dst[1] = v.header[0], v.header[1]
	n, err := nal.EncodeRBSP(dst[2:], patched)
	if err != nil {
		return 0, ErrBufferTooSmall
	}
	return n + 2, nil
}

// NalBufferLen returns an upper bound on the serialized NAL size, sized for
// scratch-buffer allocation before a SerializeBuffer call.
func (v *VPS) NalBufferLen() int {
	return len(v.rbsp)*2 + 16
}
