package bitbuf

import (
	"math"
	"strings"
)

// Reader reads bit-packed data from a byte slice.
type Reader struct {
	data      []byte
	curBit    int
	totalBits int
	overflow  bool
}

// NewReader creates a reader over all bits of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, totalBits: len(data) * 8}
}

// NewReaderBits creates a reader limited to the first nBits bits of data.
// nBits is clamped to the size of data.
func NewReaderBits(data []byte, nBits int) *Reader {
	if nBits < 0 {
		nBits = 0
	}
	if nBits > len(data)*8 {
		nBits = len(data) * 8
	}
	return &Reader{data: data, totalBits: nBits}
}

// Overflowed reports whether any read ran past the end of the data.
func (r *Reader) Overflowed() bool { return r.overflow }

// BitsRead returns the cursor position in bits.
func (r *Reader) BitsRead() int { return r.curBit }

// BitsLeft returns the number of unread bits.
func (r *Reader) BitsLeft() int { return r.totalBits - r.curBit }

// TotalBits returns the readable size in bits.
func (r *Reader) TotalBits() int { return r.totalBits }

// Data returns the underlying slice.
func (r *Reader) Data() []byte { return r.data }

// SeekToBit moves the cursor. Returns false and leaves the cursor unchanged
// if bit is out of range.
func (r *Reader) SeekToBit(bit int) bool {
	if bit < 0 || bit > r.totalBits {
		return false
	}
	r.curBit = bit
	return true
}

func (r *Reader) check(n int) bool {
	if r.overflow || n < 0 || r.curBit+n > r.totalBits {
		r.overflow = true
		r.curBit = r.totalBits
		return false
	}
	return true
}

// ReadUBits64 reads an n-bit unsigned value, n in [0, 64].
func (r *Reader) ReadUBits64(n int) uint64 {
	if n > 64 || !r.check(n) {
		r.overflow = true
		return 0
	}
	var v uint64
	shift := 0
	for n > 0 {
		idx := r.curBit >> 3
		off := r.curBit & 7
		take := 8 - off
		if take > n {
			take = n
		}
		b := (r.data[idx] >> off) & byte(1<<take-1)
		v |= uint64(b) << shift
		shift += take
		n -= take
		r.curBit += take
	}
	return v
}

// ReadUBits reads an n-bit unsigned value, n in [0, 32].
func (r *Reader) ReadUBits(n int) uint32 {
	if n > 32 {
		r.overflow = true
		return 0
	}
	return uint32(r.ReadUBits64(n))
}

// ReadSBits reads an n-bit two's complement value.
func (r *Reader) ReadSBits(n int) int32 {
	if n <= 0 || n > 32 {
		r.overflow = true
		return 0
	}
	v := r.ReadUBits(n)
	shift := 32 - n
	return int32(v<<shift) >> shift
}

// ReadOneBit reads a single bit.
func (r *Reader) ReadOneBit() bool {
	return r.ReadUBits64(1) == 1
}

// ReadBits reads nBits bits into dst. Returns false on overflow or if dst
// is too small.
func (r *Reader) ReadBits(dst []byte, nBits int) bool {
	if nBits < 0 || nBits > len(dst)*8 {
		r.overflow = true
		return false
	}
	if !r.check(nBits) {
		return false
	}
	i := 0
	if r.curBit&7 == 0 {
		n := nBits >> 3
		copy(dst[:n], r.data[r.curBit>>3:])
		r.curBit += n * 8
		i = n
		nBits -= n * 8
	}
	for nBits >= 8 {
		dst[i] = byte(r.ReadUBits64(8))
		i++
		nBits -= 8
	}
	if nBits > 0 {
		dst[i] = byte(r.ReadUBits64(nBits))
	}
	return !r.overflow
}

// ReadBytes fills dst from the current bit position.
func (r *Reader) ReadBytes(dst []byte) bool {
	return r.ReadBits(dst, len(dst)*8)
}

func (r *Reader) ReadUint8() uint8   { return uint8(r.ReadUBits64(8)) }
func (r *Reader) ReadUint16() uint16 { return uint16(r.ReadUBits64(16)) }
func (r *Reader) ReadInt16() int16   { return int16(r.ReadUBits64(16)) }
func (r *Reader) ReadUint32() uint32 { return uint32(r.ReadUBits64(32)) }
func (r *Reader) ReadInt32() int32   { return int32(r.ReadUBits64(32)) }
func (r *Reader) ReadUint64() uint64 { return r.ReadUBits64(64) }

// ReadFloat32 reads IEEE 754 bits.
func (r *Reader) ReadFloat32() float32 {
	return math.Float32frombits(uint32(r.ReadUBits64(32)))
}

// ReadVarUint32 reads a base-128 varint of at most 5 bytes. A longer
// encoding sets the overflow flag.
func (r *Reader) ReadVarUint32() uint32 {
	var v uint32
	for i := 0; i < 5; i++ {
		b := r.ReadUint8()
		if r.overflow {
			return 0
		}
		v |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v
		}
	}
	r.overflow = true
	return 0
}

// ReadVarUint64 reads a base-128 varint of at most 10 bytes.
func (r *Reader) ReadVarUint64() uint64 {
	var v uint64
	for i := 0; i < 10; i++ {
		b := r.ReadUint8()
		if r.overflow {
			return 0
		}
		v |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return v
		}
	}
	r.overflow = true
	return 0
}

// ReadSignedVarInt32 reads a zigzag encoded varint.
func (r *Reader) ReadSignedVarInt32() int32 {
	u := r.ReadVarUint32()
	return int32(u>>1) ^ -int32(u&1)
}

// ReadString reads a NUL-terminated string. The whole string is consumed
// even when it is longer than maxLen, but ok is false in that case and the
// result is truncated to maxLen bytes.
func (r *Reader) ReadString(maxLen int) (s string, ok bool) {
	var sb strings.Builder
	tooLong := false
	for {
		c := r.ReadUint8()
		if r.overflow || c == 0 {
			break
		}
		if sb.Len() < maxLen {
			sb.WriteByte(c)
		} else {
			tooLong = true
		}
	}
	return sb.String(), !tooLong && !r.overflow
}
