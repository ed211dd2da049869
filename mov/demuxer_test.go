package mov

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"
)

func box(tag string, payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(out, uint32(8+len(payload)))
	copy(out[4:8], tag)
	copy(out[8:], payload)
	return out
}

func fullBoxBody(version byte, flags [3]byte, body []byte) []byte {
	out := make([]byte, 4+len(body))
	out[0] = version
	out[1], out[2], out[3] = flags[0], flags[1], flags[2]
	copy(out[4:], body)
	return out
}

// buildTestFile assembles a minimal contiguous-layout MP4: one audio track
// with 3 uniform-size samples packed into a single chunk, referenced by an
// stco offset computed to point at the real mdat payload position.
func buildTestFile(stcoOffset uint32) []byte {
	ftypBox := box("ftyp", append([]byte("isom"), 0, 0, 0, 0))

	mvhdBody := make([]byte, 16)
	binary.BigEndian.PutUint32(mvhdBody[8:], 1000) // timescale
	binary.BigEndian.PutUint32(mvhdBody[12:], 5000)
	mvhdBox := box("mvhd", fullBoxBody(0, [3]byte{}, mvhdBody))

	tkhdBox := box("tkhd", fullBoxBody(0, [3]byte{}, make([]byte, 4)))

	mdhdBody := make([]byte, 18)
	binary.BigEndian.PutUint32(mdhdBody[8:], 1000) // timescale
	binary.BigEndian.PutUint16(mdhdBody[16:], 0)   // lang = eng (Macintosh code 0)
	mdhdBox := box("mdhd", fullBoxBody(0, [3]byte{}, mdhdBody))

	hdlrBody := make([]byte, 12)
	copy(hdlrBody[4:8], "soun")
	hdlrBox := box("hdlr", fullBoxBody(0, [3]byte{}, hdlrBody))

	entryPayload := make([]byte, 28) // sampleEntryHeaderLen(8) + AudioSampleEntry fixed fields(20)
	entryBox := box("lpcm", entryPayload)
	stsdBody := make([]byte, 4)
	binary.BigEndian.PutUint32(stsdBody, 1) // entry_count
	stsdBody = append(stsdBody, entryBox...)
	stsdBox := box("stsd", fullBoxBody(0, [3]byte{}, stsdBody))

	sttsBody := cat(u32be(1), u32be(3), u32be(1000))
	sttsBox := box("stts", fullBoxBody(0, [3]byte{}, sttsBody))

	stscBody := cat(u32be(1), u32be(1), u32be(3), u32be(1))
	stscBox := box("stsc", fullBoxBody(0, [3]byte{}, stscBody))

	stszBody := cat(u32be(0), u32be(3), u32be(4), u32be(4), u32be(4))
	stszBox := box("stsz", fullBoxBody(0, [3]byte{}, stszBody))

	stcoBody := cat(u32be(1), u32be(stcoOffset))
	stcoBox := box("stco", fullBoxBody(0, [3]byte{}, stcoBody))

	stblBox := box("stbl", concatBoxes(stsdBox, sttsBox, stscBox, stszBox, stcoBox))
	minfBox := box("minf", stblBox)
	mdiaBox := box("mdia", concatBoxes(mdhdBox, hdlrBox, minfBox))
	trakBox := box("trak", concatBoxes(tkhdBox, mdiaBox))

	moovBox := box("moov", concatBoxes(mvhdBox, trakBox))

	samples := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	mdatBox := box("mdat", samples)

	return concatBoxes(ftypBox, moovBox, mdatBox)
}

func concatBoxes(boxes ...[]byte) []byte {
	return cat(boxes...)
}

func cat(bufs ...[]byte) []byte {
	var out []byte
	for _, b := range bufs {
		out = append(out, b...)
	}
	return out
}

func TestDemuxerReadHeadersAndReadPacket(t *testing.T) {
	// First pass with a placeholder offset just to measure the mdat payload
	// position; the stco field's encoded width never depends on its value.
	probe := buildTestFile(0)
	mdatOffset := uint32(len(probe) - 12) // mdat payload is the trailing 12 sample bytes

	data := buildTestFile(mdatOffset)
	r := bytes.NewReader(data)
	d := NewDemuxer(r)
	if err := d.ReadHeaders(); err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}
	if !d.IsISOM {
		t.Fatalf("IsISOM = false, want true for an isom ftyp brand")
	}
	if d.Timescale != 1000 {
		t.Fatalf("Timescale = %d, want 1000", d.Timescale)
	}
	tracks := d.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("Tracks() = %d tracks, want 1", len(tracks))
	}
	tr := tracks[0]
	if tr.Kind != TrackAudio {
		t.Fatalf("Kind = %v, want TrackAudio", tr.Kind)
	}
	if tr.Language == "" || tr.Language == "und" {
		t.Fatalf("Language = %q, want a resolved BCP 47 tag for Macintosh code 0 (English)", tr.Language)
	}
	if tr.SampleCount() != 3 {
		t.Fatalf("SampleCount() = %d, want 3", tr.SampleCount())
	}

	pkt, err := d.ReadPacket(context.Background())
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if !bytes.Equal(pkt.Data, want) {
		t.Fatalf("ReadPacket Data = %v, want %v (raw passthrough, no framer attached)", pkt.Data, want)
	}

	if _, err := d.ReadPacket(context.Background()); err != ErrEOF {
		t.Fatalf("second ReadPacket = %v, want ErrEOF (single chunk already consumed)", err)
	}
}

func TestDemuxerReadPacketHonorsCanceledContext(t *testing.T) {
	probe := buildTestFile(0)
	mdatOffset := uint32(len(probe) - 12)
	data := buildTestFile(mdatOffset)
	d := NewDemuxer(bytes.NewReader(data))
	if err := d.ReadHeaders(); err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.ReadPacket(ctx); err != ctx.Err() {
		t.Fatalf("ReadPacket on a canceled context = %v, want %v", err, ctx.Err())
	}
}

func TestDemuxerReadBlockAcceptsTrackAndStopsAtEOF(t *testing.T) {
	probe := buildTestFile(0)
	mdatOffset := uint32(len(probe) - 12)
	data := buildTestFile(mdatOffset)
	d := NewDemuxer(bytes.NewReader(data))
	if err := d.ReadHeaders(); err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}
	tr := d.Tracks()[0]

	out := make(map[uint32][]byte)
	discard, err := d.ReadBlock(context.Background(), out, map[uint32]bool{tr.ID: true}, 1<<20, nil)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if discard != 0 {
		t.Fatalf("discardSize = %d, want 0 (track accepted)", discard)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if !bytes.Equal(out[tr.ID], want) {
		t.Fatalf("out[%d] = %v, want %v", tr.ID, out[tr.ID], want)
	}
}

func TestDemuxerReadBlockDiscardsUnacceptedTrack(t *testing.T) {
	probe := buildTestFile(0)
	mdatOffset := uint32(len(probe) - 12)
	data := buildTestFile(mdatOffset)
	d := NewDemuxer(bytes.NewReader(data))
	if err := d.ReadHeaders(); err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}

	out := make(map[uint32][]byte)
	discard, err := d.ReadBlock(context.Background(), out, map[uint32]bool{99: true}, 1<<20, nil)
	if err != ErrEOF {
		t.Fatalf("ReadBlock = %v, want ErrEOF (no accepted track ever filled out)", err)
	}
	if discard != 12 {
		t.Fatalf("discardSize = %d, want 12 (the one chunk's bytes, all skipped)", discard)
	}
	if len(out) != 0 {
		t.Fatalf("out = %v, want empty", out)
	}
}

func TestDemuxerReadBlockChainsToNextFile(t *testing.T) {
	probe := buildTestFile(0)
	mdatOffset := uint32(len(probe) - 12)
	data := buildTestFile(mdatOffset)

	d := NewDemuxer(bytes.NewReader(data))
	if err := d.ReadHeaders(); err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}
	tr := d.Tracks()[0]

	namer := &fakeNextFileNamer{files: [][]byte{data}}
	out := make(map[uint32][]byte)
	discard, err := d.ReadBlock(context.Background(), out, nil, 1<<20, namer)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if discard != 0 {
		t.Fatalf("discardSize = %d, want 0", discard)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if !bytes.Equal(out[tr.ID], want) {
		t.Fatalf("out[%d] = %v, want the two files' payloads concatenated", tr.ID, out[tr.ID])
	}
	if namer.opened != 1 {
		t.Fatalf("namer.opened = %d, want 1", namer.opened)
	}
}

type fakeNextFileNamer struct {
	files  [][]byte
	next   int
	opened int
}

func (n *fakeNextFileNamer) NextFileName() (string, bool) {
	if n.next >= len(n.files) {
		return "", false
	}
	return "next", true
}

func (n *fakeNextFileNamer) Open(name string) (io.ReadSeeker, error) {
	data := n.files[n.next]
	n.next++
	n.opened++
	return bytes.NewReader(data), nil
}

func TestDemuxerRejectsTruncatedBox(t *testing.T) {
	d := NewDemuxer(bytes.NewReader([]byte{0, 0, 0}))
	if err := d.ReadHeaders(); err == nil {
		t.Fatalf("ReadHeaders on a 3-byte stream should fail")
	}
}
