package bitbuf

import (
	"encoding/binary"
	"math"
)

// Writer writes bit-packed data into a fixed-capacity buffer.
type Writer struct {
	data     []byte
	curBit   int
	maxBits  int
	overflow bool
}

// NewWriter creates a writer with a freshly allocated buffer of size bytes.
func NewWriter(size int) *Writer {
	return NewWriterBuffer(make([]byte, size))
}

// NewWriterBuffer creates a writer over buf. The writer never grows buf.
func NewWriterBuffer(buf []byte) *Writer {
	return &Writer{
		data:    buf,
		maxBits: len(buf) * 8,
	}
}

// Reset rewinds the writer and clears the overflow flag.
func (w *Writer) Reset() {
	w.curBit = 0
	w.overflow = false
}

// Overflowed reports whether any write ran past the end of the buffer.
func (w *Writer) Overflowed() bool { return w.overflow }

// BitsWritten returns the number of bits written so far.
func (w *Writer) BitsWritten() int { return w.curBit }

// BytesWritten returns the number of bytes touched, rounding partial bytes up.
func (w *Writer) BytesWritten() int { return BitsToBytes(w.curBit) }

// BitsLeft returns the remaining capacity in bits.
func (w *Writer) BitsLeft() int { return w.maxBits - w.curBit }

// Capacity returns the buffer size in bytes.
func (w *Writer) Capacity() int { return len(w.data) }

// Bytes returns the written portion of the buffer.
func (w *Writer) Bytes() []byte { return w.data[:w.BytesWritten()] }

// Data returns the whole backing buffer.
func (w *Writer) Data() []byte { return w.data }

// SeekToBit moves the cursor. Returns false if bit is out of range.
func (w *Writer) SeekToBit(bit int) bool {
	if bit < 0 || bit > w.maxBits {
		return false
	}
	w.curBit = bit
	return true
}

func (w *Writer) reserve(n int) bool {
	if w.overflow || n < 0 || w.curBit+n > w.maxBits {
		w.overflow = true
		w.curBit = w.maxBits
		return false
	}
	return true
}

// WriteUBits64 writes the low n bits of v, n in [0, 64].
func (w *Writer) WriteUBits64(v uint64, n int) {
	if n > 64 || !w.reserve(n) {
		w.overflow = true
		return
	}
	for n > 0 {
		idx := w.curBit >> 3
		off := w.curBit & 7
		take := 8 - off
		if take > n {
			take = n
		}
		mask := byte(1<<take - 1)
		w.data[idx] = w.data[idx]&^(mask<<off) | (byte(v)&mask)<<off
		v >>= take
		n -= take
		w.curBit += take
	}
}

// WriteUBits writes the low n bits of v, n in [0, 32].
func (w *Writer) WriteUBits(v uint32, n int) {
	if n > 32 {
		w.overflow = true
		return
	}
	w.WriteUBits64(uint64(v), n)
}

// WriteSBits writes v as an n-bit two's complement value.
func (w *Writer) WriteSBits(v int32, n int) {
	w.WriteUBits(uint32(v), n)
}

// WriteOneBit writes a single bit.
func (w *Writer) WriteOneBit(b bool) {
	if b {
		w.WriteUBits64(1, 1)
		return
	}
	w.WriteUBits64(0, 1)
}

// WriteBits copies the first nBits bits of src.
func (w *Writer) WriteBits(src []byte, nBits int) {
	if nBits < 0 || nBits > len(src)*8 {
		w.overflow = true
		return
	}
	if !w.reserve(nBits) {
		return
	}
	i := 0
	// byte aligned fast path
	if w.curBit&7 == 0 {
		n := nBits >> 3
		copy(w.data[w.curBit>>3:], src[:n])
		w.curBit += n * 8
		i = n
		nBits -= n * 8
	}
	for nBits >= 8 {
		w.WriteUBits64(uint64(src[i]), 8)
		i++
		nBits -= 8
	}
	if nBits > 0 {
		w.WriteUBits64(uint64(src[i]), nBits)
	}
}

// WriteBytes writes p as whole bytes at the current (possibly unaligned) bit.
func (w *Writer) WriteBytes(p []byte) {
	w.WriteBits(p, len(p)*8)
}

// WriteWriter appends everything written into other.
func (w *Writer) WriteWriter(other *Writer) {
	w.WriteBits(other.data, other.curBit)
}

func (w *Writer) WriteUint8(v uint8)   { w.WriteUBits64(uint64(v), 8) }
func (w *Writer) WriteUint16(v uint16) { w.WriteUBits64(uint64(v), 16) }
func (w *Writer) WriteInt16(v int16)   { w.WriteUBits64(uint64(uint16(v)), 16) }
func (w *Writer) WriteUint32(v uint32) { w.WriteUBits64(uint64(v), 32) }
func (w *Writer) WriteInt32(v int32)   { w.WriteUBits64(uint64(uint32(v)), 32) }
func (w *Writer) WriteUint64(v uint64) { w.WriteUBits64(v, 64) }

// WriteFloat32 writes the IEEE 754 bits of f.
func (w *Writer) WriteFloat32(f float32) {
	w.WriteUBits64(uint64(math.Float32bits(f)), 32)
}

// WriteVarUint32 writes v as a base-128 varint (at most 5 bytes).
func (w *Writer) WriteVarUint32(v uint32) {
	var buf [binary.MaxVarintLen32]byte
	n := binary.PutUvarint(buf[:], uint64(v))
	w.WriteBytes(buf[:n])
}

// WriteVarUint64 writes v as a base-128 varint (at most 10 bytes).
func (w *Writer) WriteVarUint64(v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	w.WriteBytes(buf[:n])
}

// WriteSignedVarInt32 writes v zigzag encoded.
func (w *Writer) WriteSignedVarInt32(v int32) {
	w.WriteVarUint32(uint32(v<<1) ^ uint32(v>>31))
}

// WriteString writes s followed by a NUL terminator. Embedded NULs
// terminate the string early on the reading side.
func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
	w.WriteUint8(0)
}
