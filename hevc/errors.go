package hevc

import "errors"

var (
	// ErrParse is returned when a VPS/SPS/PPS/slice-header/SEI payload is
	// truncated or its fields are structurally inconsistent.
	ErrParse = errors.New("hevc: malformed parameter set or slice header")
	// ErrBufferTooSmall is returned by VPS.SerializeBuffer when dst cannot
	// hold the re-emitted NAL.
	ErrBufferTooSmall = errors.New("hevc: destination buffer too small")
	// ErrBufferExhausted is returned by the access-unit detector's working
	// buffer shift when a VPS rewrite grows the buffer past its capacity.
	ErrBufferExhausted = errors.New("hevc: working buffer exhausted")
	// ErrNeedMoreData signals that DecodeNAL reached the end of the
	// supplied buffer without closing an access unit and eof was not set.
	ErrNeedMoreData = errors.New("hevc: need more data")
)
