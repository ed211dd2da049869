package hevc

import "github.com/tsflow/hevcmux/bitstream"

// skipProfileTierLevel advances br past a profile_tier_level() syntax
// structure (Rec. ITU-T H.265 §7.3.3) without retaining any of its fields;
// none of VpsID/SpsID/timing derivation needs them, but every downstream
// field in VPS/SPS is at a bit offset that depends on parsing through this
// structure correctly.
func skipProfileTierLevel(br *bitstream.Reader, profilePresentFlag bool, maxNumSubLayersMinus1 int) {
	if profilePresentFlag {
		br.SkipBits(2 + 1 + 5) // general_profile_space, general_tier_flag, general_profile_idc
		br.SkipBits(32)        // general_profile_compatibility_flag[32]
		br.SkipBits(4 + 44)    // 4 general_*_constraint_flag + general_reserved_zero_44bits
	}
	br.SkipBits(8) // general_level_idc

	subLayerProfilePresent := make([]bool, maxNumSubLayersMinus1)
	subLayerLevelPresent := make([]bool, maxNumSubLayersMinus1)
	for i := 0; i < maxNumSubLayersMinus1; i++ {
		subLayerProfilePresent[i] = br.GetBit() == 1
		subLayerLevelPresent[i] = br.GetBit() == 1
	}
	if maxNumSubLayersMinus1 > 0 {
		for i := maxNumSubLayersMinus1; i < 8; i++ {
			br.SkipBits(2) // reserved_zero_2bits
		}
	}
	for i := 0; i < maxNumSubLayersMinus1; i++ {
		if subLayerProfilePresent[i] {
			br.SkipBits(2 + 1 + 5)
			br.SkipBits(32)
			br.SkipBits(4 + 44)
		}
		if subLayerLevelPresent[i] {
			br.SkipBits(8)
		}
	}
}
