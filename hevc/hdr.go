package hevc

// HDR fuses VUI colour signalling and DV-RPU/DV-EL NAL presence into the
// flags the TS descriptor emitter needs.
type HDR struct {
	IsHDR10     bool
	IsHDR10Plus bool
	IsDVRPU     bool
	IsDVEL      bool

	// DVCompatibility is the dv_bl_signal_compatibility_id value, 0..8.
	DVCompatibility uint8
}

// deriveFromSPS fills in IsHDR10 and DVCompatibility from the SPS colour
// description, per the fixed BT.2100/HLG/SDR matrix this module follows
// (cf. "DolbyVisionProfilesLevels" table referenced for DV compatibility
// signalling).
func (h *HDR) deriveFromSPS(sps *SPS) {
	cp := sps.ColourPrimaries
	tc := sps.TransferCharacteristics
	mc := sps.MatrixCoeffs
	cslt := sps.ChromaSampleLocTypeTopField

	switch {
	case cp == 9 && tc == 16 && mc == 9: // BT.2100 PQ
		h.IsHDR10 = true
		if cslt == 2 {
			h.DVCompatibility = 6
		} else if cslt == 0 {
			h.DVCompatibility = 1
		}
	case cp == 9 && tc == 18 && mc == 9 && cslt == 2: // ARIB HLG
		h.DVCompatibility = 4
	case cp == 9 && tc == 14 && mc == 9 && cslt == 0: // DVB HLG
		h.DVCompatibility = 4
	case cp == 1 && tc == 1 && mc == 1 && cslt == 0: // SDR
		h.DVCompatibility = 2
	case cp == 2 && tc == 2 && mc == 2 && cslt == 0: // unspecified
		if h.IsDVEL {
			h.DVCompatibility = 2
		} else {
			h.DVCompatibility = 0
		}
	}
}
