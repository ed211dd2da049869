// Package nal locates Annex-B start codes and strips emulation-prevention
// bytes ("RBSP extraction") shared by the AVC/HEVC/VVC NAL families.
package nal

import "errors"

// ErrBufferTooSmall is returned by DecodeRBSP when dst cannot hold the
// decoded payload.
var ErrBufferTooSmall = errors.New("nal: destination buffer too small")

// FindNextStartCode returns the offset immediately after the first Annex-B
// start code (00 00 01 or 00 00 00 01) found at or after from, and true. If
// no start code is found it returns (len(buf), false).
func FindNextStartCode(buf []byte, from int) (int, bool) {
	n := len(buf)
	i := from
	for i+2 < n {
		if buf[i] == 0 && buf[i+1] == 0 {
			if buf[i+2] == 1 {
				return i + 3, true
			}
			if i+3 < n && buf[i+2] == 0 && buf[i+3] == 1 {
				return i + 4, true
			}
		}
		i++
	}
	return n, false
}

// FindStartCodeWithPrefix behaves like FindNextStartCode but returns the
// offset of the leading 00 byte of the prefix (rather than the byte after
// it) along with the prefix length (3 or 4), so callers that need to
// overwrite or skip the prefix itself can do so.
func FindStartCodeWithPrefix(buf []byte, from int) (prefixStart, scLen int, found bool) {
	end, ok := FindNextStartCode(buf, from)
	if !ok {
		return len(buf), 0, false
	}
	if end >= 4 && buf[end-4] == 0 && buf[end-3] == 0 && buf[end-2] == 0 && buf[end-1] == 1 {
		return end - 4, 4, true
	}
	return end - 3, 3, true
}

// DecodeRBSP copies src into dst while dropping every emulation-prevention
// byte 0x03 that immediately follows two 0x00 bytes, returning the number
// of bytes written. It fails with ErrBufferTooSmall if dst is not large
// enough to hold the decoded payload.
func DecodeRBSP(dst, src []byte) (int, error) {
	n := 0
	zeros := 0
	for _, b := range src {
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		if n >= len(dst) {
			return 0, ErrBufferTooSmall
		}
		dst[n] = b
		n++
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return n, nil
}

// EncodeRBSP is the inverse of DecodeRBSP: it copies src into dst, inserting
// an emulation-prevention byte 0x03 whenever two 0x00 bytes are immediately
// followed by 0x00, 0x01, 0x02, or 0x03, so that the result never contains a
// start-code-like sequence. Used by VPS.SerializeBuffer after patching the
// timing field in place.
func EncodeRBSP(dst, src []byte) (int, error) {
	n := 0
	zeros := 0
	put := func(b byte) error {
		if n >= len(dst) {
			return ErrBufferTooSmall
		}
		dst[n] = b
		n++
		return nil
	}
	for _, b := range src {
		if zeros >= 2 && b <= 0x03 {
			if err := put(0x03); err != nil {
				return 0, err
			}
			zeros = 0
		}
		if err := put(b); err != nil {
			return 0, err
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return n, nil
}

// Split scans buf for every NAL unit delimited by Annex-B start codes and
// returns the byte range [start,end) of each NAL's payload (header byte(s)
// onward, start code excluded). It is a thin convenience wrapper over
// FindNextStartCode for full-buffer probes; neither CheckStream nor the
// forward-scanning access-unit detector in package hevc uses it, the latter
// since it must stop mid-buffer on NeedMoreData.
func Split(buf []byte) [][2]int {
	var ranges [][2]int
	pos, ok := FindNextStartCode(buf, 0)
	if !ok {
		return ranges
	}
	for {
		nextStart, _, nextOK := FindStartCodeWithPrefix(buf, pos)
		end := len(buf)
		if nextOK {
			end = nextStart
		}
		if pos < end {
			ranges = append(ranges, [2]int{pos, end})
		}
		if !nextOK {
			break
		}
		pos, ok = FindNextStartCode(buf, nextStart)
		if !ok {
			break
		}
	}
	return ranges
}
