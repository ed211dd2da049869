package mov

import "encoding/binary"

// tfhd flag bits, per ISO/IEC 14496-12 8.8.7.1.
const (
	tfhdBaseDataOffsetPresent  = 0x000001
	tfhdSampleDescIndexPresent = 0x000002
	tfhdDurationPresent        = 0x000008
	tfhdSizePresent            = 0x000010
	tfhdFlagsPresent           = 0x000020
)

// trun flag bits, per ISO/IEC 14496-12 8.8.8.1.
const (
	trunDataOffsetPresent      = 0x000001
	trunFirstSampleFlagsPresent = 0x000004
	trunSampleDurationPresent  = 0x000100
	trunSampleSizePresent      = 0x000200
	trunSampleFlagsPresent     = 0x000400
	trunSampleCtsPresent       = 0x000800
)

// FragContext threads the state a moof's children mutate: which track a
// traf currently targets, and the resolved per-traf defaults a tfhd may
// selectively override from the track's trex.
type FragContext struct {
	MoofOffset     uint64
	Track          *Track
	BaseDataOffset uint64
	Defaults       TrackFragmentDefaults
}

func flags24(fb *FullBox) uint32 {
	return uint32(fb.Flags[0])<<16 | uint32(fb.Flags[1])<<8 | uint32(fb.Flags[2])
}

// decodeTfhd selects the traf's track and applies its flag-bit overrides on
// top of that track's trex defaults. If base-data-offset is absent it
// defaults to the moof's own file offset.
func decodeTfhd(payload []byte, fb *FullBox, ctx *FragContext, tracks map[uint32]*Track) error {
	if len(payload) < 4 {
		return ErrMovParse
	}
	trackID := binary.BigEndian.Uint32(payload)
	t, ok := tracks[trackID]
	if !ok {
		return ErrMovParse
	}
	ctx.Track = t
	ctx.Defaults = t.Trex
	ctx.BaseDataOffset = ctx.MoofOffset

	flags := flags24(fb)
	off := 4
	if flags&tfhdBaseDataOffsetPresent != 0 {
		if len(payload) < off+8 {
			return ErrMovParse
		}
		ctx.BaseDataOffset = binary.BigEndian.Uint64(payload[off:])
		off += 8
	}
	if flags&tfhdSampleDescIndexPresent != 0 {
		if len(payload) < off+4 {
			return ErrMovParse
		}
		ctx.Defaults.SampleDescriptionIndex = binary.BigEndian.Uint32(payload[off:])
		off += 4
	}
	if flags&tfhdDurationPresent != 0 {
		if len(payload) < off+4 {
			return ErrMovParse
		}
		ctx.Defaults.Duration = binary.BigEndian.Uint32(payload[off:])
		off += 4
	}
	if flags&tfhdSizePresent != 0 {
		if len(payload) < off+4 {
			return ErrMovParse
		}
		ctx.Defaults.Size = binary.BigEndian.Uint32(payload[off:])
		off += 4
	}
	if flags&tfhdFlagsPresent != 0 {
		if len(payload) < off+4 {
			return ErrMovParse
		}
		ctx.Defaults.Flags = binary.BigEndian.Uint32(payload[off:])
		off += 4
	}
	return nil
}

// decodeTrun appends one run's samples to the current traf's track: its
// base file offset becomes a new chunk offset, each sample's size is
// accumulated (falling back to the traf defaults), and a present
// composition-time offset appends a (1, offset) ctts run so the existing
// per-sample ctts lookup keeps working unmodified.
func decodeTrun(payload []byte, fb *FullBox, ctx *FragContext) error {
	if ctx.Track == nil {
		return ErrMovParse
	}
	if len(payload) < 4 {
		return ErrMovParse
	}
	flags := flags24(fb)
	sampleCount := binary.BigEndian.Uint32(payload)
	off := 4

	dataOffset := int64(ctx.BaseDataOffset)
	if flags&trunDataOffsetPresent != 0 {
		if len(payload) < off+4 {
			return ErrMovParse
		}
		dataOffset += int64(int32(binary.BigEndian.Uint32(payload[off:])))
		off += 4
	}
	ctx.Track.ChunkOffsets = append(ctx.Track.ChunkOffsets, uint64(dataOffset))
	// A trun has no stsc box of its own, but it packs sampleCount samples
	// into the single chunk it just appended; record that as a one-chunk
	// stsc run so ChunkForSample/ChunkSampleRange's existing run-length
	// walk resolves it instead of falling back to a 1-sample-per-chunk
	// assumption that only holds for a genuinely stsc-less contiguous file.
	ctx.Track.Stsc = append(ctx.Track.Stsc, StscEntry{
		FirstChunk:      uint32(len(ctx.Track.ChunkOffsets)),
		SamplesPerChunk: sampleCount,
		SampleDescIndex: ctx.Defaults.SampleDescriptionIndex,
	})

	if flags&trunFirstSampleFlagsPresent != 0 {
		if len(payload) < off+4 {
			return ErrMovParse
		}
		off += 4
	}

	t := ctx.Track
	for i := uint32(0); i < sampleCount; i++ {
		size := ctx.Defaults.Size
		duration := ctx.Defaults.Duration
		var ctsOffset int32

		if flags&trunSampleDurationPresent != 0 {
			if len(payload) < off+4 {
				return ErrMovParse
			}
			duration = binary.BigEndian.Uint32(payload[off:])
			off += 4
		}
		if flags&trunSampleSizePresent != 0 {
			if len(payload) < off+4 {
				return ErrMovParse
			}
			size = binary.BigEndian.Uint32(payload[off:])
			off += 4
		}
		if flags&trunSampleFlagsPresent != 0 {
			if len(payload) < off+4 {
				return ErrMovParse
			}
			off += 4
		}
		if flags&trunSampleCtsPresent != 0 {
			if len(payload) < off+4 {
				return ErrMovParse
			}
			if fb.Version == 1 {
				ctsOffset = int32(binary.BigEndian.Uint32(payload[off:]))
			} else {
				ctsOffset = int32(int16(binary.BigEndian.Uint16(payload[off+2:])))
			}
			off += 4
		}

		t.SampleSizes = append(t.SampleSizes, size)
		t.Stts = append(t.Stts, SttsEntry{SampleCount: 1, SampleDelta: duration})
		if flags&trunSampleCtsPresent != 0 {
			t.Ctts = append(t.Ctts, CttsEntry{SampleCount: 1, SampleOffset: ctsOffset})
		}
	}
	return nil
}
