package mov

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
)

// buildFragmentedTestFile assembles a minimal fragmented MP4: one audio
// track declared in moov with no sample tables of its own (stsd only), a
// single moof/traf/tfhd/trun carrying two explicitly-sized samples, and a
// trailing mdat. trun's data_offset is computed internally so the chunk it
// pushes points at the real mdat payload: tfhd leaves base-data-offset
// defaulted to the moof box's own file position, and the moof box's length
// does not depend on the data_offset field's value (only its fixed width),
// so it can be measured once and reused.
func buildFragmentedTestFile() []byte {
	ftypBox := box("ftyp", append([]byte("isom"), 0, 0, 0, 0))

	mvhdBody := make([]byte, 16)
	binary.BigEndian.PutUint32(mvhdBody[8:], 1000)
	binary.BigEndian.PutUint32(mvhdBody[12:], 5000)
	mvhdBox := box("mvhd", fullBoxBody(0, [3]byte{}, mvhdBody))

	tkhdBox := box("tkhd", fullBoxBody(0, [3]byte{}, make([]byte, 4)))

	mdhdBody := make([]byte, 18)
	binary.BigEndian.PutUint32(mdhdBody[8:], 1000)
	mdhdBox := box("mdhd", fullBoxBody(0, [3]byte{}, mdhdBody))

	hdlrBody := make([]byte, 12)
	copy(hdlrBody[4:8], "soun")
	hdlrBox := box("hdlr", fullBoxBody(0, [3]byte{}, hdlrBody))

	entryPayload := make([]byte, 28)
	entryBox := box("lpcm", entryPayload)
	stsdBody := cat(u32be(1), entryBox)
	stsdBox := box("stsd", fullBoxBody(0, [3]byte{}, stsdBody))

	stblBox := box("stbl", stsdBox)
	minfBox := box("minf", stblBox)
	mdiaBox := box("mdia", concatBoxes(mdhdBox, hdlrBox, minfBox))
	trakBox := box("trak", concatBoxes(tkhdBox, mdiaBox))

	trexBody := cat(u32be(1), u32be(1), u32be(1000), u32be(0), u32be(0))
	trexBox := box("trex", fullBoxBody(0, [3]byte{}, trexBody))
	mvexBox := box("mvex", trexBox)

	moovBox := box("moov", concatBoxes(mvhdBox, trakBox, mvexBox))

	buildMoof := func(dataOffset int32) []byte {
		tfhdBody := u32be(1) // trackID = 1, no override flags
		tfhdBox := box("tfhd", fullBoxBody(0, [3]byte{}, tfhdBody))

		trunFlags := [3]byte{0, byte(trunSampleSizePresent >> 8), byte(trunDataOffsetPresent)}
		trunBody := u32be(2) // sample_count = 2
		trunBody = append(trunBody, u32be(uint32(dataOffset))...)
		trunBody = append(trunBody, u32be(4)...) // sample 0 size
		trunBody = append(trunBody, u32be(6)...) // sample 1 size
		trunBox := box("trun", fullBoxBody(0, trunFlags, trunBody))

		trafBox := box("traf", concatBoxes(tfhdBox, trunBox))
		return box("moof", trafBox)
	}

	moofLen := len(buildMoof(0))
	moofBox := buildMoof(int32(moofLen + 8)) // +8: reach past the mdat box header too

	samples := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	mdatBox := box("mdat", samples)

	return concatBoxes(ftypBox, moovBox, moofBox, mdatBox)
}

func TestDemuxerFragmentedReadsAcrossMoofAndMdat(t *testing.T) {
	data := buildFragmentedTestFile()

	r := bytes.NewReader(data)
	d := NewDemuxer(r)
	if err := d.ReadHeaders(); err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}
	tracks := d.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("Tracks() = %d tracks, want 1", len(tracks))
	}
	tr := tracks[0]
	if len(tr.SampleSizes) != 2 || tr.SampleSizes[0] != 4 || tr.SampleSizes[1] != 6 {
		t.Fatalf("SampleSizes = %v, want [4 6] from trun", tr.SampleSizes)
	}
	if len(tr.ChunkOffsets) != 1 {
		t.Fatalf("ChunkOffsets = %v, want one chunk pushed by trun", tr.ChunkOffsets)
	}
	if first, count := tr.ChunkSampleRange(0); first != 0 || count != 2 {
		t.Fatalf("ChunkSampleRange(0) = (%d, %d), want (0, 2)", first, count)
	}

	// The whole run is one chunk (no framer is attached to raw lpcm), so
	// both samples come back concatenated in a single packet, mirroring
	// the contiguous multi-sample-chunk case in TestDemuxerReadHeadersAndReadPacket.
	pkt, err := d.ReadPacket(context.Background())
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if !bytes.Equal(pkt.Data, want) {
		t.Fatalf("pkt.Data = %v, want %v", pkt.Data, want)
	}

	if _, err := d.ReadPacket(context.Background()); err != ErrEOF {
		t.Fatalf("second ReadPacket = %v, want ErrEOF", err)
	}
}
