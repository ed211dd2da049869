package mov

import "testing"

func TestChunkForSampleUniformStsc(t *testing.T) {
	tr := &Track{
		Stsc:         []StscEntry{{FirstChunk: 1, SamplesPerChunk: 4, SampleDescIndex: 1}},
		ChunkOffsets: []uint64{0, 100, 200, 300},
	}
	cases := []struct {
		sample       uint32
		chunk        uint32
		offInChunk   uint32
	}{
		{0, 0, 0},
		{3, 0, 3},
		{4, 1, 0},
		{15, 3, 3},
	}
	for _, c := range cases {
		chunk, off := tr.ChunkForSample(c.sample)
		if chunk != c.chunk || off != c.offInChunk {
			t.Errorf("ChunkForSample(%d) = (%d, %d), want (%d, %d)", c.sample, chunk, off, c.chunk, c.offInChunk)
		}
	}
}

func TestChunkForSampleMultipleStscRuns(t *testing.T) {
	// First 2 chunks hold 1 sample each, remaining chunks hold 3 samples each.
	tr := &Track{
		Stsc: []StscEntry{
			{FirstChunk: 1, SamplesPerChunk: 1, SampleDescIndex: 1},
			{FirstChunk: 3, SamplesPerChunk: 3, SampleDescIndex: 1},
		},
		ChunkOffsets: []uint64{0, 10, 20, 30},
	}
	chunk, off := tr.ChunkForSample(0)
	if chunk != 0 || off != 0 {
		t.Fatalf("sample 0: got (%d, %d), want (0, 0)", chunk, off)
	}
	chunk, off = tr.ChunkForSample(1)
	if chunk != 1 || off != 0 {
		t.Fatalf("sample 1: got (%d, %d), want (1, 0)", chunk, off)
	}
	chunk, off = tr.ChunkForSample(2)
	if chunk != 2 || off != 0 {
		t.Fatalf("sample 2: got (%d, %d), want (2, 0)", chunk, off)
	}
	chunk, off = tr.ChunkForSample(4)
	if chunk != 2 || off != 2 {
		t.Fatalf("sample 4: got (%d, %d), want (2, 2)", chunk, off)
	}
	chunk, off = tr.ChunkForSample(5)
	if chunk != 3 || off != 0 {
		t.Fatalf("sample 5: got (%d, %d), want (3, 0)", chunk, off)
	}
}

func TestChunkForSampleNoStscFallsBackToOneToOne(t *testing.T) {
	tr := &Track{}
	chunk, off := tr.ChunkForSample(7)
	if chunk != 7 || off != 0 {
		t.Fatalf("got (%d, %d), want (7, 0)", chunk, off)
	}
}

func TestChunkSampleRangeMatchesChunkForSample(t *testing.T) {
	tr := &Track{
		Stsc: []StscEntry{
			{FirstChunk: 1, SamplesPerChunk: 1, SampleDescIndex: 1},
			{FirstChunk: 3, SamplesPerChunk: 3, SampleDescIndex: 1},
		},
		ChunkOffsets: []uint64{0, 10, 20, 30},
	}
	first, count := tr.ChunkSampleRange(2)
	if first != 2 || count != 3 {
		t.Fatalf("ChunkSampleRange(2) = (%d, %d), want (2, 3)", first, count)
	}
	first, count = tr.ChunkSampleRange(3)
	if first != 5 || count != 3 {
		t.Fatalf("ChunkSampleRange(3) = (%d, %d), want (5, 3)", first, count)
	}

	for sample := uint32(0); sample < 8; sample++ {
		chunk, off := tr.ChunkForSample(sample)
		fs, _ := tr.ChunkSampleRange(chunk)
		if sample != fs+off {
			t.Errorf("sample %d: ChunkForSample says chunk %d offset %d, but ChunkSampleRange(%d) starts at %d",
				sample, chunk, off, chunk, fs)
		}
	}
}

func TestSampleSizeUniform(t *testing.T) {
	tr := &Track{UniformSampleSize: 188}
	size, err := tr.SampleSize(5)
	if err != nil || size != 188 {
		t.Fatalf("SampleSize = (%d, %v), want (188, nil)", size, err)
	}
}

func TestSampleSizePerSampleTable(t *testing.T) {
	tr := &Track{SampleSizes: []uint32{10, 20, 30}}
	size, err := tr.SampleSize(1)
	if err != nil || size != 20 {
		t.Fatalf("SampleSize(1) = (%d, %v), want (20, nil)", size, err)
	}
	if _, err := tr.SampleSize(3); err != ErrInvalidSample {
		t.Fatalf("SampleSize(3) out of range = %v, want ErrInvalidSample", err)
	}
}

func TestIsSyncWithoutStss(t *testing.T) {
	tr := &Track{}
	if !tr.IsSync(0) {
		t.Fatalf("IsSync with nil SyncSamples should report every sample synced")
	}
}

func TestIsSyncWithStss(t *testing.T) {
	tr := &Track{SyncSamples: map[uint32]bool{1: true, 5: true}}
	if !tr.IsSync(0) {
		t.Fatalf("sample 0 (1-based sync id 1) should be sync")
	}
	if tr.IsSync(1) {
		t.Fatalf("sample 1 (1-based sync id 2) should not be sync")
	}
	if !tr.IsSync(4) {
		t.Fatalf("sample 4 (1-based sync id 5) should be sync")
	}
}

func TestSampleCountSumsStts(t *testing.T) {
	tr := &Track{Stts: []SttsEntry{{SampleCount: 10, SampleDelta: 1}, {SampleCount: 5, SampleDelta: 2}}}
	if got := tr.SampleCount(); got != 15 {
		t.Fatalf("SampleCount() = %d, want 15", got)
	}
}

func TestNextSttsDurationMsWalksRuns(t *testing.T) {
	tr := &Track{
		TimeScale: 1000,
		Stts:      []SttsEntry{{SampleCount: 2, SampleDelta: 40}, {SampleCount: 1, SampleDelta: 100}},
	}
	tr.resetSttsCursor()
	want := []int64{40, 40, 100}
	for i, w := range want {
		if got := tr.nextSttsDurationMs(); got != w {
			t.Fatalf("nextSttsDurationMs() call %d = %d, want %d", i, got, w)
		}
	}
	if got := tr.nextSttsDurationMs(); got != 0 {
		t.Fatalf("nextSttsDurationMs() past the end = %d, want 0", got)
	}
}
