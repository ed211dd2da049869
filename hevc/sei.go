package hevc

import (
	"github.com/tsflow/hevcmux/bitstream"
	"github.com/tsflow/hevcmux/nal"
)

const seiPayloadUserDataRegisteredITUTT35 = 4

// SEI decodes only enough of a prefix SEI message list to detect HDR10+
// dynamic metadata (user_data_registered_itu_t_t35 payload type 4); every
// other SEI payload type is skipped by its declared length.
type SEI struct {
	HasHDR10Plus bool

	raw []byte
}

// DecodeBuffer captures the raw NAL (header bytes included).
func (s *SEI) DecodeBuffer(buf []byte) error {
	if len(buf) < 2 {
		return ErrParse
	}
	s.raw = append(s.raw[:0], buf...)
	return nil
}

// Deserialize walks each sei_message in the RBSP looking for an ITU-T T.35
// registered payload.
func (s *SEI) Deserialize() error {
	if len(s.raw) < 2 {
		return ErrParse
	}
	rbsp := make([]byte, len(s.raw)-2)
	n, err := nal.DecodeRBSP(rbsp, s.raw[2:])
	if err != nil {
		return err
	}
	rbsp = rbsp[:n]

	br := bitstream.NewReader(rbsp)
	for br.RemainBits() >= 16 {
		payloadType := readSeiVarLen(br)
		payloadSize := readSeiVarLen(br)
		if payloadSize < 0 {
			break
		}
		if payloadType == seiPayloadUserDataRegisteredITUTT35 {
			s.HasHDR10Plus = true
		}
		br.SkipBits(payloadSize * 8)
		if br.RemainBits() < 8 {
			break
		}
	}
	return nil
}

// readSeiVarLen decodes the SEI ff_byte-extended variable-length field used
// for both payloadType and payloadSize: a run of 0xff bytes (each adding
// 255) terminated by a final byte added directly.
func readSeiVarLen(br *bitstream.Reader) int {
	v := 0
	for {
		if br.RemainBits() < 8 {
			return -1
		}
		b := br.Uint8(8)
		v += int(b)
		if b != 0xff {
			break
		}
	}
	return v
}
