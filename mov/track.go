package mov

// TrackKind classifies a track by its stsd handler/format so the demuxer
// can pick the right SampleFramer.
type TrackKind int

const (
	TrackUnknown TrackKind = iota
	TrackVideo
	TrackAudio
	TrackSubtitle
)

// SttsEntry is one (sample_count, sample_delta) run from a stts box.
type SttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

// CttsEntry is one (sample_count, sample_offset) run from a ctts box.
type CttsEntry struct {
	SampleCount  uint32
	SampleOffset int32
}

// StscEntry is one (first_chunk, samples_per_chunk, sample_description_index)
// run from an stsc box.
type StscEntry struct {
	FirstChunk      uint32
	SamplesPerChunk uint32
	SampleDescIndex uint32
}

// TrackFragmentDefaults holds the per-track trex defaults a tfhd may
// selectively override.
type TrackFragmentDefaults struct {
	SampleDescriptionIndex uint32
	Duration               uint32
	Size                   uint32
	Flags                  uint32
}

// Track accumulates one trak's sample tables as the box tree is walked.
type Track struct {
	ID        uint32
	Kind      TrackKind
	Format    [4]byte
	TimeScale uint32
	Language  string

	FirstTimecodeMs int64

	Width, Height uint32

	Stts []SttsEntry
	Ctts []CttsEntry
	Stsc []StscEntry

	UniformSampleSize uint32
	SampleSizes       []uint32

	SyncSamples map[uint32]bool // nil: every sample is a sync sample

	ChunkOffsets []uint64

	Extra  []byte
	Framer SampleFramer

	Trex TrackFragmentDefaults

	// sttsCursor advances as the TX3G framer consumes stts durations via
	// nextSttsDurationMs; peekSttsDurationMs reads ahead without moving it.
	sttsCursor    int
	sttsRemaining uint32
}

// SampleCount returns the total sample count implied by stts, matching the
// "sum(stts[i].count) == total_sample_count" invariant.
func (t *Track) SampleCount() uint32 {
	var n uint32
	for _, e := range t.Stts {
		n += e.SampleCount
	}
	return n
}

// ChunkForSample returns the zero-based chunk index containing the
// zero-based sample index, per the stsc run-length mapping.
func (t *Track) ChunkForSample(sampleIdx uint32) (chunkIdx uint32, sampleOffsetInChunk uint32) {
	if len(t.Stsc) == 0 {
		return sampleIdx, 0
	}
	var sample uint32
	for i, e := range t.Stsc {
		var chunkCountInRun uint32
		if i+1 < len(t.Stsc) {
			chunkCountInRun = t.Stsc[i+1].FirstChunk - e.FirstChunk
		} else {
			chunkCountInRun = uint32(len(t.ChunkOffsets)) - (e.FirstChunk - 1)
		}
		samplesInRun := chunkCountInRun * e.SamplesPerChunk
		if sampleIdx < sample+samplesInRun {
			rel := sampleIdx - sample
			chunkIdx = e.FirstChunk - 1 + rel/e.SamplesPerChunk
			sampleOffsetInChunk = rel % e.SamplesPerChunk
			return
		}
		sample += samplesInRun
	}
	last := t.Stsc[len(t.Stsc)-1]
	chunkIdx = uint32(len(t.ChunkOffsets)) - 1
	if last.SamplesPerChunk > 0 {
		sampleOffsetInChunk = (sampleIdx - sample) % last.SamplesPerChunk
	}
	return
}

// ChunkSampleRange returns the first zero-based sample index stored in the
// zero-based chunk index, and how many samples that chunk holds, per the
// same stsc run-length mapping ChunkForSample walks.
func (t *Track) ChunkSampleRange(chunkIdx uint32) (firstSample uint32, count uint32) {
	if len(t.Stsc) == 0 {
		return chunkIdx, 1
	}
	var sample uint32
	for i, e := range t.Stsc {
		var chunkCountInRun uint32
		if i+1 < len(t.Stsc) {
			chunkCountInRun = t.Stsc[i+1].FirstChunk - e.FirstChunk
		} else {
			chunkCountInRun = uint32(len(t.ChunkOffsets)) - (e.FirstChunk - 1)
		}
		if chunkIdx < e.FirstChunk-1+chunkCountInRun {
			firstSample = sample + (chunkIdx-(e.FirstChunk-1))*e.SamplesPerChunk
			return firstSample, e.SamplesPerChunk
		}
		sample += chunkCountInRun * e.SamplesPerChunk
	}
	last := t.Stsc[len(t.Stsc)-1]
	return sample, last.SamplesPerChunk
}

// SampleSize returns the size of the zero-based sample index, resolving
// either the uniform size or the per-sample table.
func (t *Track) SampleSize(sampleIdx uint32) (uint32, error) {
	if t.UniformSampleSize != 0 {
		return t.UniformSampleSize, nil
	}
	if int(sampleIdx) >= len(t.SampleSizes) {
		return 0, ErrInvalidSample
	}
	return t.SampleSizes[sampleIdx], nil
}

// IsSync reports whether the zero-based sample index is a sync (key) frame.
func (t *Track) IsSync(sampleIdx uint32) bool {
	if t.SyncSamples == nil {
		return true
	}
	return t.SyncSamples[sampleIdx+1]
}

// resetSttsCursor arms the stts-consuming cursor used by the TX3G framer.
func (t *Track) resetSttsCursor() {
	t.sttsCursor = 0
	if len(t.Stts) > 0 {
		t.sttsRemaining = t.Stts[0].SampleCount
	}
}

// peekSttsDurationMs reports the duration nextSttsDurationMs would return,
// without consuming it, so a framer can size a buffer before committing to
// the write that actually advances the cursor.
func (t *Track) peekSttsDurationMs() int64 {
	cursor, remaining := t.sttsCursor, t.sttsRemaining
	for cursor < len(t.Stts) && remaining == 0 {
		cursor++
		if cursor < len(t.Stts) {
			remaining = t.Stts[cursor].SampleCount
		}
	}
	if cursor >= len(t.Stts) || t.TimeScale == 0 {
		return 0
	}
	return int64(t.Stts[cursor].SampleDelta) * 1000 / int64(t.TimeScale)
}

// nextSttsDurationMs consumes one sample's worth of stts duration and
// returns it converted to milliseconds.
func (t *Track) nextSttsDurationMs() int64 {
	for t.sttsCursor < len(t.Stts) && t.sttsRemaining == 0 {
		t.sttsCursor++
		if t.sttsCursor < len(t.Stts) {
			t.sttsRemaining = t.Stts[t.sttsCursor].SampleCount
		}
	}
	if t.sttsCursor >= len(t.Stts) || t.TimeScale == 0 {
		return 0
	}
	delta := t.Stts[t.sttsCursor].SampleDelta
	t.sttsRemaining--
	return int64(delta) * 1000 / int64(t.TimeScale)
}
