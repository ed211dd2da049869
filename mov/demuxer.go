package mov

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sort"
)

// ErrEOF is returned once every indexed chunk has been emitted.
var ErrEOF = errors.New("mov: end of stream")

// Packet is one demuxed chunk: framed sample bytes for a single track, plus
// a flag word carrying signalling like IsSpsPpsInGop.
type Packet struct {
	TrackID uint32
	Data    []byte
	Flags   uint32
}

const FlagSpsPpsInGop = 1 << 0

// chunkIndexEntry is one row of the sorted, cross-track chunk index built
// by BuildIndex: an absolute file byte offset paired with the track and
// zero-based chunk number it belongs to.
type chunkIndexEntry struct {
	offset     uint64
	trackIdx   int
	chunkInTrk uint32
}

// Logger is the ambient logging surface a Demuxer accepts, identical to
// hevc.Logger so a caller can share one *internal/xlog.Logger across both.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// DemuxerOption configures a Demuxer at construction time.
type DemuxerOption func(*Demuxer)

// WithLogger attaches an ambient logger the Demuxer uses for non-fatal
// parse warnings (an unsupported box flavor, a skipped metadata entry).
func WithLogger(l Logger) DemuxerOption {
	return func(d *Demuxer) { d.log = l }
}

// Demuxer reads an ISO-BMFF (MP4/MOV) file's box tree and emits ordered
// per-track sample chunks. It supports both contiguous (stsc/stco-indexed)
// and fragmented (moof/traf/trun-indexed) layouts, but never both mixed
// within a call to BuildIndex: fragmented files are indexed as they are
// parsed, since trun already appends directly to a track's chunk/size
// tables in file order.
type Demuxer struct {
	r   io.ReadSeeker
	log Logger

	IsISOM bool // set once ftyp or hdlr signal an isom-family (non-bare-QuickTime) brand

	Metadata   map[string]string // QuickTime udta key/value pairs, keyed by the 4-char tag
	Timescale  uint32
	DurationNs int64

	tracksByIdx []*Track
	tracksByID  map[uint32]*Track
	trex        map[uint32]TrackFragmentDefaults

	mdatOffset int64
	mdatSize   int64
	fragmented bool

	index    []chunkIndexEntry
	curChunk int

	sampleCursor []uint32 // per track, next sample index to emit
}

func NewDemuxer(r io.ReadSeeker, opts ...DemuxerOption) *Demuxer {
	d := &Demuxer{
		r:          r,
		log:        nopLogger{},
		tracksByID: make(map[uint32]*Track),
		trex:       make(map[uint32]TrackFragmentDefaults),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Tracks returns every track discovered by ReadHeaders, in trak order.
func (d *Demuxer) Tracks() []*Track { return d.tracksByIdx }

func (d *Demuxer) trackByID(id uint32) *Track {
	if t, ok := d.tracksByID[id]; ok {
		return t
	}
	return nil
}

func (d *Demuxer) addTrack(t *Track) {
	d.tracksByIdx = append(d.tracksByIdx, t)
	d.tracksByID[t.ID] = t
}

// ReadHeaders walks the top-level box sequence. Containers with metadata
// (moov, moof) are buffered fully and parsed recursively in memory; mdat is
// never buffered, only its byte range recorded, so files with large sample
// data do not need to fit in memory during header parsing.
func (d *Demuxer) ReadHeaders() error {
	var sawMoov, sawMdat bool
	var pos int64
	for {
		var hdr [16]byte
		n, err := io.ReadFull(d.r, hdr[:8])
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
			break
		}
		if err != nil {
			return err
		}
		var basic BasicBox
		headerLen, err := basic.Decode(hdr[:8])
		if err != nil {
			return err
		}
		if headerLen == 16 {
			if _, err := io.ReadFull(d.r, hdr[8:16]); err != nil {
				return err
			}
			basic.Size = binary.BigEndian.Uint64(hdr[8:16])
		}

		payloadLen := int64(basic.Size) - int64(headerLen)
		if basic.Size == 0 {
			// "to end of file" for a top-level box: everything remaining.
			cur, _ := d.r.Seek(0, io.SeekCurrent)
			end, _ := d.r.Seek(0, io.SeekEnd)
			payloadLen = end - cur
			d.r.Seek(cur, io.SeekStart)
		}

		switch {
		case tagEq(basic.Type, "ftyp"):
			buf := make([]byte, payloadLen)
			if _, err := io.ReadFull(d.r, buf); err != nil {
				return err
			}
			if err := decodeFtyp(buf, &d.IsISOM); err != nil {
				return err
			}
		case tagEq(basic.Type, "mdat"):
			d.mdatOffset = pos + int64(headerLen)
			d.mdatSize = payloadLen
			sawMdat = true
			if _, err := d.r.Seek(payloadLen, io.SeekCurrent); err != nil {
				return err
			}
		case tagEq(basic.Type, "moov"):
			buf := make([]byte, payloadLen)
			if _, err := io.ReadFull(d.r, buf); err != nil {
				return err
			}
			if err := d.parseMoov(buf); err != nil {
				return err
			}
			sawMoov = true
		case tagEq(basic.Type, "moof"):
			buf := make([]byte, payloadLen)
			if _, err := io.ReadFull(d.r, buf); err != nil {
				return err
			}
			if err := d.parseMoof(buf, pos); err != nil {
				return err
			}
			d.fragmented = true
		default:
			if _, err := d.r.Seek(payloadLen, io.SeekCurrent); err != nil {
				return err
			}
		}

		pos += int64(headerLen) + payloadLen

		// Non-fragmented files are fully described once both moov and mdat
		// have been seen; fragmented files keep scanning for more moof/mdat
		// pairs until the reader is exhausted.
		if sawMoov && sawMdat && !d.fragmented {
			break
		}
	}
	return d.BuildIndex()
}

func (d *Demuxer) parseMoov(buf []byte) error {
	return walkBoxes(buf, func(tag [4]byte, fb FullBox, payload []byte) error {
		switch {
		case tagEq(tag, "cmov"):
			d.log.Warnf("mov: compressed moov (cmov) is not supported")
			return ErrUnsupported
		case tagEq(tag, "mvhd"):
			ts, dur, err := decodeMvhd(payload, &fb)
			if err != nil {
				return err
			}
			d.Timescale, d.DurationNs = ts, dur
		case tagEq(tag, "trak"):
			// A track's ID is its 1-based trak ordinal; tkhd's track_ID is
			// not read.
			t := &Track{ID: uint32(len(d.tracksByIdx) + 1)}
			if err := d.parseTrak(payload, t); err != nil {
				return err
			}
			d.addTrack(t)
		case tagEq(tag, "mvex"):
			return walkBoxes(payload, func(tag [4]byte, fb FullBox, payload []byte) error {
				if tagEq(tag, "trex") {
					id, defaults, err := decodeTrex(payload)
					if err != nil {
						return err
					}
					d.trex[id] = defaults
				}
				return nil
			})
		case tagEq(tag, "udta"):
			return d.parseUdta(payload)
		}
		return nil
	})
}

// parseUdta reads top-level QuickTime metadata items: every child box
// whose tag starts with 0xA9 (©nam, ©day, ©too, ...) wraps a nested 'data'
// box carrying the value after an 8-byte type/locale header.
func (d *Demuxer) parseUdta(buf []byte) error {
	return walkBoxes(buf, func(tag [4]byte, fb FullBox, payload []byte) error {
		if tag[0] != 0xa9 {
			return nil
		}
		return walkBoxes(payload, func(childTag [4]byte, childFb FullBox, childPayload []byte) error {
			if !tagEq(childTag, "data") || len(childPayload) < 8 {
				return nil
			}
			if d.Metadata == nil {
				d.Metadata = make(map[string]string)
			}
			d.Metadata[string(tag[:])] = string(childPayload[8:])
			return nil
		})
	})
}

func (d *Demuxer) parseTrak(buf []byte, t *Track) error {
	return walkBoxes(buf, func(tag [4]byte, fb FullBox, payload []byte) error {
		switch {
		case tagEq(tag, "tkhd"):
			return decodeTkhd(payload, &fb)
		case tagEq(tag, "mdia"):
			return d.parseMdia(payload, t)
		case tagEq(tag, "edts"):
			return walkBoxes(payload, func(tag [4]byte, fb FullBox, payload []byte) error {
				if tagEq(tag, "elst") {
					return decodeElst(payload, &fb, t.TimeScale, &t.FirstTimecodeMs)
				}
				return nil
			})
		}
		return nil
	})
}

func (d *Demuxer) parseMdia(buf []byte, t *Track) error {
	return walkBoxes(buf, func(tag [4]byte, fb FullBox, payload []byte) error {
		switch {
		case tagEq(tag, "mdhd"):
			ts, lang, err := decodeMdhd(payload, &fb)
			if err != nil {
				return err
			}
			t.TimeScale, t.Language = ts, lang
		case tagEq(tag, "hdlr"):
			return decodeHdlr(payload, &t.Kind, &d.IsISOM)
		case tagEq(tag, "minf"):
			return d.parseMinf(payload, t)
		}
		return nil
	})
}

func (d *Demuxer) parseMinf(buf []byte, t *Track) error {
	return walkBoxes(buf, func(tag [4]byte, fb FullBox, payload []byte) error {
		if tagEq(tag, "stbl") {
			return d.parseStbl(payload, t)
		}
		return nil
	})
}

func (d *Demuxer) parseStbl(buf []byte, t *Track) error {
	return walkBoxes(buf, func(tag [4]byte, fb FullBox, payload []byte) error {
		switch {
		case tagEq(tag, "stsd"):
			return d.parseStsd(payload, t)
		case tagEq(tag, "stts"):
			return decodeStts(payload, t)
		case tagEq(tag, "ctts"):
			return decodeCtts(payload, t)
		case tagEq(tag, "stsc"):
			return decodeStsc(payload, t)
		case tagEq(tag, "stsz"):
			return decodeStsz(payload, t)
		case tagEq(tag, "stz2"):
			return decodeStz2(payload, t)
		case tagEq(tag, "stss"):
			return decodeStss(payload, t)
		case tagEq(tag, "stco"):
			return decodeStco(payload, t)
		case tagEq(tag, "co64"):
			return decodeCo64(payload, t)
		}
		return nil
	})
}

func (d *Demuxer) parseStsd(buf []byte, t *Track) error {
	if len(buf) < 8 {
		return ErrMovParse
	}
	entryCount := binary.BigEndian.Uint32(buf)
	p := buf[4:]
	// This package frames one codec per track; only the first sample entry
	// is decoded, matching the common case of one stsd entry per stbl.
	if entryCount == 0 || len(p) < 8 {
		return nil
	}
	var basic BasicBox
	if _, err := basic.Decode(p); err != nil {
		return err
	}
	entrySize := int(basic.Size)
	if entrySize > len(p) {
		return ErrMovParse
	}
	entry := p[8:entrySize]
	childrenOff, err := decodeStsdEntry(entry, basic.Type, t)
	if err != nil {
		return err
	}
	if af, ok := t.Framer.(*AACFramer); ok {
		af.bindTrack(t)
	}
	if childrenOff >= len(entry) {
		return nil
	}
	return walkBoxes(entry[childrenOff:], func(tag [4]byte, fb FullBox, payload []byte) error {
		switch {
		case tagEq(tag, "avcC"), tagEq(tag, "hvcC"), tagEq(tag, "mvcC"), tagEq(tag, "glbl"):
			return appendExtra(t, payload)
		case tagEq(tag, "esds"):
			asc, isAAC, err := decodeEsds(payload)
			if err != nil {
				return err
			}
			if af, ok := t.Framer.(*AACFramer); ok && isAAC {
				return af.setPrivData(asc)
			}
		}
		return nil
	})
}

func (d *Demuxer) parseMoof(buf []byte, moofOffset int64) error {
	ctx := &FragContext{MoofOffset: uint64(moofOffset)}
	return walkBoxes(buf, func(tag [4]byte, fb FullBox, payload []byte) error {
		if !tagEq(tag, "traf") {
			return nil
		}
		return walkBoxes(payload, func(tag [4]byte, fb FullBox, payload []byte) error {
			switch {
			case tagEq(tag, "tfhd"):
				if err := decodeTfhd(payload, &fb, ctx, d.tracksByID); err != nil {
					return err
				}
				if def, ok := d.trex[ctx.Track.ID]; ok {
					// trex supplies defaults tfhd did not itself override;
					// decodeTfhd seeds ctx.Defaults from t.Trex, so when the
					// track's own Trex is still unset, record it and decode
					// tfhd again so its overrides land on top of it.
					if ctx.Track.Trex == (TrackFragmentDefaults{}) {
						ctx.Track.Trex = def
						return decodeTfhd(payload, &fb, ctx, d.tracksByID)
					}
				}
			case tagEq(tag, "trun"):
				return decodeTrun(payload, &fb, ctx)
			}
			return nil
		})
	})
}

// walkBoxes iterates the sibling boxes packed in buf, decoding a FullBox
// header for every child (container boxes ignore the version/flags word,
// which is harmless since they never read fb).
func walkBoxes(buf []byte, fn func(tag [4]byte, fb FullBox, payload []byte) error) error {
	off := 0
	for off < len(buf) {
		var basic BasicBox
		headerLen, err := basic.Decode(buf[off:])
		if err != nil {
			return err
		}
		payloadLen := basic.PayloadLen(len(buf) - off)
		if payloadLen < 0 || off+headerLen+payloadLen > len(buf) {
			return ErrMovParse
		}
		payload := buf[off+headerLen : off+headerLen+payloadLen]

		var fb FullBox
		fbPayload := payload
		if !isContainer(basic.Type) && looksLikeFullBox(basic.Type) {
			var full FullBox
			n, err := full.Decode(buf[off:])
			if err == nil && n <= headerLen+payloadLen {
				fb = full
				fbPayload = buf[off+n : off+headerLen+payloadLen]
			}
		}

		if isContainer(basic.Type) {
			if err := fn(basic.Type, fb, payload); err != nil {
				return err
			}
		} else {
			if err := fn(basic.Type, fb, fbPayload); err != nil {
				return err
			}
		}
		off += headerLen + payloadLen
	}
	return nil
}

// looksLikeFullBox lists the leaf boxes this package decodes that carry a
// version/flags word; boxes outside this set (avcC, hvcC, mvcC, glbl, esds,
// stsd's sample entries) are plain boxes and are handed their raw payload.
var fullBoxTags = map[[4]byte]bool{
	{'m', 'v', 'h', 'd'}: true, {'m', 'd', 'h', 'd'}: true, {'h', 'd', 'l', 'r'}: true,
	{'t', 'k', 'h', 'd'}: true, {'s', 't', 's', 'd'}: true, {'s', 't', 't', 's'}: true,
	{'c', 't', 't', 's'}: true, {'s', 't', 's', 'c'}: true, {'s', 't', 's', 'z'}: true,
	{'s', 't', 'z', '2'}: true, {'s', 't', 's', 's'}: true, {'s', 't', 'c', 'o'}: true,
	{'c', 'o', '6', '4'}: true, {'e', 'l', 's', 't'}: true, {'t', 'r', 'e', 'x'}: true,
	{'t', 'f', 'h', 'd'}: true, {'t', 'r', 'u', 'n'}: true,
}

func looksLikeFullBox(tag [4]byte) bool { return fullBoxTags[tag] }

// BuildIndex concatenates every track's chunk offsets into one ascending,
// cross-track list of (offset, track, chunk-in-track) rows. For fragmented
// files the chunk offsets were pushed directly by decodeTrun in file order,
// so this still produces a globally correct sort.
func (d *Demuxer) BuildIndex() error {
	d.index = d.index[:0]
	for ti, t := range d.tracksByIdx {
		for ci, off := range t.ChunkOffsets {
			d.index = append(d.index, chunkIndexEntry{offset: off, trackIdx: ti, chunkInTrk: uint32(ci)})
		}
	}
	sort.Slice(d.index, func(i, j int) bool { return d.index[i].offset < d.index[j].offset })
	d.sampleCursor = make([]uint32, len(d.tracksByIdx))
	d.curChunk = 0
	return nil
}

// NextFileNamer supplies the next file in a playlist once a Demuxer has
// exhausted its current reader, mirroring the FileNameIterator collaborator
// of a chained-segment deployment. Open returns the reader for name; the
// Demuxer takes ownership and tears down its previous track/index state
// before re-running ReadHeaders against it.
type NextFileNamer interface {
	NextFileName() (name string, ok bool)
	Open(name string) (io.ReadSeeker, error)
}

// ReadPacket emits the next chunk's framed sample data. Packets interleave
// across tracks in the ascending file-offset order BuildIndex computed.
// ctx is checked before each blocking read so a caller can cancel a stalled
// host-provided reader; the demuxer itself never suspends for any other
// reason, following zsiec-prism/internal/mpegts.Demuxer's cooperative
// cancellation model.
func (d *Demuxer) ReadPacket(ctx context.Context) (*Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for d.curChunk < len(d.index) {
		entry := d.index[d.curChunk]
		d.curChunk++
		t := d.tracksByIdx[entry.trackIdx]

		_, sampleCount := t.ChunkSampleRange(entry.chunkInTrk)
		if sampleCount == 0 {
			sampleCount = 1
		}
		sampleIdx := d.sampleCursor[entry.trackIdx]
		var size uint32
		for i := uint32(0); i < sampleCount; i++ {
			sz, err := t.SampleSize(sampleIdx + i)
			if err != nil {
				return nil, err
			}
			size += sz
		}
		d.sampleCursor[entry.trackIdx] += sampleCount

		raw := make([]byte, size)
		if _, err := d.r.Seek(int64(entry.offset), io.SeekStart); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(d.r, raw); err != nil {
			return nil, err
		}

		if t.Framer == nil {
			return &Packet{TrackID: t.ID, Data: raw}, nil
		}
		need, err := t.Framer.newBufferSize(raw)
		if err != nil {
			return nil, err
		}
		out := make([]byte, need)
		n, err := t.Framer.extractData(out, raw)
		if err != nil {
			return nil, err
		}
		var flags uint32
		if wp, ok := t.Framer.(interface{ WroteParamSets() bool }); ok && wp.WroteParamSets() {
			flags |= FlagSpsPpsInGop
		}
		return &Packet{TrackID: t.ID, Data: out[:n], Flags: flags}, nil
	}
	return nil, ErrEOF
}

// ReadBlock drains packets into out, keyed by track ID, until the
// accumulated payload size reaches fileBlockSize or the stream is
// exhausted. A track absent from acceptedTrackIDs (or given a nil map,
// meaning accept everything) still has its bytes read off the underlying
// reader but discarded; their size is folded into discardSize rather than
// out, mirroring simpleDemuxBlock's skip-and-count behaviour for filtered
// tracks. On exhaustion, if namer is non-nil and has another file queued,
// ReadBlock reopens it transparently and keeps filling the same block;
// otherwise it returns a nil error if this call or an earlier one left any
// data in out, and ErrEOF only when the block is still empty.
func (d *Demuxer) ReadBlock(ctx context.Context, out map[uint32][]byte, acceptedTrackIDs map[uint32]bool, fileBlockSize int64, namer NextFileNamer) (discardSize int64, err error) {
	var total int64
	for total < fileBlockSize {
		pkt, err := d.ReadPacket(ctx)
		if err == ErrEOF {
			if !d.advanceToNextFile(namer) {
				if total == 0 && len(out) == 0 {
					return discardSize, ErrEOF
				}
				return discardSize, nil
			}
			continue
		}
		if err != nil {
			return discardSize, err
		}
		if acceptedTrackIDs != nil && !acceptedTrackIDs[pkt.TrackID] {
			discardSize += int64(len(pkt.Data))
			continue
		}
		out[pkt.TrackID] = append(out[pkt.TrackID], pkt.Data...)
		total += int64(len(pkt.Data))
	}
	return discardSize, nil
}

// advanceToNextFile asks namer for the next playlist entry and, if one is
// available, opens it and re-indexes the demuxer against it in place. It
// reports whether a new file was loaded.
func (d *Demuxer) advanceToNextFile(namer NextFileNamer) bool {
	if namer == nil {
		return false
	}
	name, ok := namer.NextFileName()
	if !ok {
		return false
	}
	r, err := namer.Open(name)
	if err != nil {
		return false
	}
	d.reset(r)
	if err := d.ReadHeaders(); err != nil {
		return false
	}
	return true
}

// reset tears down all state derived from the previous reader. Every
// ReadHeaders call, whether the first or a NextFileNamer-driven one, starts
// from a clean slate.
func (d *Demuxer) reset(r io.ReadSeeker) {
	d.r = r
	d.IsISOM = false
	d.Metadata = nil
	d.Timescale = 0
	d.DurationNs = 0
	d.tracksByIdx = nil
	d.tracksByID = make(map[uint32]*Track)
	d.trex = make(map[uint32]TrackFragmentDefaults)
	d.mdatOffset = 0
	d.mdatSize = 0
	d.fragmented = false
	d.index = nil
	d.curChunk = 0
	d.sampleCursor = nil
}
