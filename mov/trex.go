package mov

import "encoding/binary"

func decodeTrex(payload []byte) (trackID uint32, defaults TrackFragmentDefaults, err error) {
	if len(payload) < 20 {
		return 0, TrackFragmentDefaults{}, ErrMovParse
	}
	trackID = binary.BigEndian.Uint32(payload)
	defaults.SampleDescriptionIndex = binary.BigEndian.Uint32(payload[4:])
	defaults.Duration = binary.BigEndian.Uint32(payload[8:])
	defaults.Size = binary.BigEndian.Uint32(payload[12:])
	defaults.Flags = binary.BigEndian.Uint32(payload[16:])
	return trackID, defaults, nil
}
