package hevc

import "testing"

func TestBlurayStreamParamsVideoFormat(t *testing.T) {
	cases := []struct {
		height uint32
		want   int
	}{
		{480, 1},
		{576, 2},
		{720, 4},
		{1080, 7},
		{2160, 8},
	}
	for _, c := range cases {
		vf, _, _ := blurayStreamParams(30, 1920, c.height)
		if vf != c.want {
			t.Errorf("blurayStreamParams height=%d videoFormat=%d, want %d", c.height, vf, c.want)
		}
	}
}

func TestBlurayStreamParamsFrameRateIndex(t *testing.T) {
	cases := []struct {
		fps  float64
		want int
	}{
		{23.976, 1},
		{25, 2},
		{29.97, 3},
		{50, 6},
		{59.94, 7},
		{100, 3}, // unmatched falls back to index 3
	}
	for _, c := range cases {
		_, fri, _ := blurayStreamParams(c.fps, 1920, 1080)
		if fri != c.want {
			t.Errorf("blurayStreamParams fps=%v frameRateIndex=%d, want %d", c.fps, fri, c.want)
		}
	}
}

func TestDoViLevelThresholds(t *testing.T) {
	cases := []struct {
		width     uint32
		pixelRate float64
		want      uint8
	}{
		{1280, 22118400, 1},
		{1920, 49766400, 3},
		{3840, 248832000, 7},
		{7680, 3981312000, 13},
		{7680, 999999999999, 13}, // beyond every bound still caps at the highest level
	}
	for _, c := range cases {
		got := doViLevel(c.width, c.pixelRate)
		if got != c.want {
			t.Errorf("doViLevel(%d, %v) = %d, want %d", c.width, c.pixelRate, got, c.want)
		}
	}
}

func TestTSDescriptorWithoutDolbyVision(t *testing.T) {
	r := NewReader()
	r.sps = &SPS{PicWidthInLumaSamples: 1920, PicHeightInLumaSamples: 1080}
	r.vps = &VPS{TimingInfoPresentFlag: true, NumUnitsInTick: 1, TimeScale: 25}

	dst := make([]byte, 32)
	n, err := r.TSDescriptor(dst)
	if err != nil {
		t.Fatalf("TSDescriptor: %v", err)
	}
	if n != 10 {
		t.Fatalf("TSDescriptor length = %d, want 10 (no DV block)", n)
	}
	if string(dst[2:6]) != "HDMV" {
		t.Fatalf("expected HDMV registration tag, got %q", dst[2:6])
	}
}

func TestTSDescriptorWithDolbyVisionRPU(t *testing.T) {
	r := NewReader()
	r.sps = &SPS{PicWidthInLumaSamples: 1920, PicHeightInLumaSamples: 1080}
	r.vps = &VPS{TimingInfoPresentFlag: true, NumUnitsInTick: 1, TimeScale: 25}
	r.hdr.IsDVRPU = true

	dst := make([]byte, 32)
	n, err := r.TSDescriptor(dst)
	if err != nil {
		t.Fatalf("TSDescriptor: %v", err)
	}
	if n <= 10 {
		t.Fatalf("TSDescriptor length = %d, want > 10 when DV RPU is present", n)
	}
	if string(dst[12:16]) != "DOVI" {
		t.Fatalf("expected DOVI registration tag at offset 12, got %q", dst[12:16])
	}
	if dst[16] != 0xb0 {
		t.Fatalf("expected DOVI stream descriptor tag 0xb0, got %#x", dst[16])
	}
}

func TestTSDescriptorBlurayModeSuppressesDolbyVision(t *testing.T) {
	r := NewReader(WithBlurayDescriptor(true))
	r.sps = &SPS{PicWidthInLumaSamples: 1920, PicHeightInLumaSamples: 1080}
	r.vps = &VPS{TimingInfoPresentFlag: true, NumUnitsInTick: 1, TimeScale: 25}
	r.hdr.IsDVRPU = true

	dst := make([]byte, 32)
	n, err := r.TSDescriptor(dst)
	if err != nil {
		t.Fatalf("TSDescriptor: %v", err)
	}
	if n != 10 {
		t.Fatalf("TSDescriptor length = %d, want 10 in bluray mode even with DV RPU present", n)
	}
}

func TestTSDescriptorBufferTooSmall(t *testing.T) {
	r := NewReader()
	dst := make([]byte, 4)
	if _, err := r.TSDescriptor(dst); err != ErrBufferTooSmall {
		t.Fatalf("TSDescriptor with undersized buffer = %v, want ErrBufferTooSmall", err)
	}
}
