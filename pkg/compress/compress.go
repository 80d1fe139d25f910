package compress

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

// Codec ids as they appear in the first four bytes of a payload.
const (
	LZSSID   uint32 = 'L' | 'Z'<<8 | 'S'<<16 | 'S'<<24
	SnappyID uint32 = 'S' | 'N'<<8 | 'A'<<16 | 'P'<<24
)

// Codec selects a compression algorithm.
type Codec uint8

const (
	// CodecNone disables compression.
	CodecNone Codec = iota

	// CodecLZSS is the default codec.
	CodecLZSS

	// CodecSnappy trades ratio for speed.
	CodecSnappy
)

// String returns the codec name.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZSS:
		return "lzss"
	case CodecSnappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// ParseCodec parses a codec name.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "none":
		return CodecNone, nil
	case "lzss":
		return CodecLZSS, nil
	case "snappy":
		return CodecSnappy, nil
	default:
		return CodecNone, fmt.Errorf("%w: %q", ErrUnknownCodec, s)
	}
}

// Compression errors.
var (
	ErrUnknownCodec  = errors.New("unknown codec")
	ErrNotCompressed = errors.New("payload is not compressed")
	ErrTooLarge      = errors.New("declared size exceeds limit")
	ErrCorrupt       = errors.New("corrupt compressed payload")
	ErrShortBuffer   = errors.New("destination buffer too small")
)

// Detect returns the codec a payload was compressed with, or CodecNone.
func Detect(src []byte) Codec {
	if len(src) < 4 {
		return CodecNone
	}
	switch binary.LittleEndian.Uint32(src) {
	case LZSSID:
		if len(src) >= lzssHeaderSize {
			return CodecLZSS
		}
	case SnappyID:
		return CodecSnappy
	}
	return CodecNone
}

// IsCompressed reports whether src carries a known codec id.
func IsCompressed(src []byte) bool {
	return Detect(src) != CodecNone
}

// ActualSize returns the declared uncompressed size of src.
func ActualSize(src []byte) (int, error) {
	switch Detect(src) {
	case CodecLZSS:
		return int(binary.LittleEndian.Uint32(src[4:])), nil
	case CodecSnappy:
		n, err := snappy.DecodedLen(src[4:])
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return n, nil
	default:
		return 0, ErrNotCompressed
	}
}

// Compress encodes src with codec. ok is false when the codec is CodecNone
// or the result would not be smaller than src.
func Compress(codec Codec, src []byte) (out []byte, ok bool) {
	switch codec {
	case CodecLZSS:
		return compressLZSS(src)
	case CodecSnappy:
		out = make([]byte, 4, 4+snappy.MaxEncodedLen(len(src)))
		binary.LittleEndian.PutUint32(out, SnappyID)
		out = append(out, snappy.Encode(nil, src)...)
		if len(out) >= len(src) {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}

// Decompress decodes src, rejecting payloads that declare more than maxSize
// bytes before any allocation.
func Decompress(src []byte, maxSize int) ([]byte, error) {
	n, err := ActualSize(src)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, n, maxSize)
	}
	dst := make([]byte, n)
	m, err := DecompressTo(dst, src)
	if err != nil {
		return nil, err
	}
	return dst[:m], nil
}

// DecompressTo decodes src into dst and returns the decoded length. dst must
// hold at least ActualSize(src) bytes.
func DecompressTo(dst, src []byte) (int, error) {
	n, err := ActualSize(src)
	if err != nil {
		return 0, err
	}
	if n > len(dst) {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, n, len(dst))
	}

	switch Detect(src) {
	case CodecLZSS:
		return decompressLZSS(dst[:n], src[lzssHeaderSize:])
	default:
		out, err := snappy.Decode(dst[:n], src[4:])
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return len(out), nil
	}
}
