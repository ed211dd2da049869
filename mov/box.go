// Package mov demuxes ISO-BMFF (MP4/MOV) files: box-tree descent, per-track
// sample tables, fragmented-MP4 state, and codec-specific sample framing,
// producing ordered per-track chunk streams.
package mov

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrMovParse is returned when a box is truncated or structurally
	// inconsistent.
	ErrMovParse = errors.New("mov: malformed box")
	// ErrUnsupported is returned for compressed moov (cmov) and other
	// features this package does not decode.
	ErrUnsupported = errors.New("mov: unsupported feature")
	// ErrInvalidSample is returned when a framer is asked to extract a
	// sample index outside its sample table.
	ErrInvalidSample = errors.New("mov: sample index out of range")
	// ErrBufferTooSmall is returned when an output buffer cannot hold a
	// framer's produced bytes.
	ErrBufferTooSmall = errors.New("mov: destination buffer too small")
)

// BasicBox is the common {size, type} header shared by every ISO-BMFF box,
// including the 64-bit extended-size and 'uuid' extended-type forms.
type BasicBox struct {
	Size      uint64
	Type      [4]byte
	HeaderLen int
}

// Decode reads a box header from buf and returns the header length.
func (b *BasicBox) Decode(buf []byte) (int, error) {
	if len(buf) < 8 {
		return 0, ErrMovParse
	}
	size32 := binary.BigEndian.Uint32(buf)
	copy(b.Type[:], buf[4:8])
	n := 8
	switch size32 {
	case 1:
		if len(buf) < 16 {
			return 0, ErrMovParse
		}
		b.Size = binary.BigEndian.Uint64(buf[8:])
		n = 16
	case 0:
		b.Size = 0 // "to end of parent"; caller resolves against remaining bytes
	default:
		b.Size = uint64(size32)
	}
	b.HeaderLen = n
	return n, nil
}

// PayloadLen returns the number of payload bytes given the box's declared
// size and the number of bytes remaining in its parent, used to resolve the
// size == 0 "to end of parent" convention.
func (b *BasicBox) PayloadLen(remainInParent int) int {
	if b.Size == 0 {
		return remainInParent - b.HeaderLen
	}
	return int(b.Size) - b.HeaderLen
}

// FullBox extends BasicBox with the version/flags word carried by most
// non-container boxes.
type FullBox struct {
	Basic   BasicBox
	Version uint8
	Flags   [3]byte
}

func (b *FullBox) Decode(buf []byte) (int, error) {
	n, err := b.Basic.Decode(buf)
	if err != nil {
		return 0, err
	}
	if len(buf) < n+4 {
		return 0, ErrMovParse
	}
	b.Version = buf[n]
	copy(b.Flags[:], buf[n+1:n+4])
	return n + 4, nil
}

// containerTags lists every box type this package recurses into rather than
// dispatching to a leaf handler.
var containerTags = map[[4]byte]bool{
	{'m', 'o', 'o', 'v'}: true,
	{'t', 'r', 'a', 'k'}: true,
	{'m', 'd', 'i', 'a'}: true,
	{'m', 'i', 'n', 'f'}: true,
	{'s', 't', 'b', 'l'}: true,
	{'e', 'd', 't', 's'}: true,
	{'d', 'i', 'n', 'f'}: true,
	{'u', 'd', 't', 'a'}: true,
	{'m', 'v', 'e', 'x'}: true,
	{'m', 'o', 'o', 'f'}: true,
	{'t', 'r', 'a', 'f'}: true,
	{'w', 'a', 'v', 'e'}: true,
}

func isContainer(tag [4]byte) bool { return containerTags[tag] }

func tagEq(tag [4]byte, s string) bool {
	return tag[0] == s[0] && tag[1] == s[1] && tag[2] == s[2] && tag[3] == s[3]
}
