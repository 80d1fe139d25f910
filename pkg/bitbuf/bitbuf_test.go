package bitbuf

import (
	"bytes"
	"math"
	"math/rand"
	"testing"
)

func TestUBitsRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		bits  int
	}{
		{"one bit set", 1, 1},
		{"three bits", 5, 3},
		{"byte", 0xAB, 8},
		{"unaligned 13", 0x1ABC, 13},
		{"32 bit", 0xDEADBEEF, 32},
		{"64 bit", 0x0123456789ABCDEF, 64},
		{"zero width", 0, 0},
	}

	w := NewWriter(64)
	for _, tt := range tests {
		w.WriteUBits64(tt.value, tt.bits)
	}
	if w.Overflowed() {
		t.Fatal("writer overflowed")
	}

	r := NewReaderBits(w.Data(), w.BitsWritten())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.ReadUBits64(tt.bits); got != tt.value {
				t.Errorf("ReadUBits64(%d) = %#x, want %#x", tt.bits, got, tt.value)
			}
		})
	}
	if r.BitsLeft() != 0 {
		t.Errorf("BitsLeft = %d, want 0", r.BitsLeft())
	}
}

func TestLeastSignificantBitFirst(t *testing.T) {
	w := NewWriter(2)
	w.WriteUBits(0x3, 3) // 011
	w.WriteUBits(0x1F, 5)
	w.WriteOneBit(true)

	if got := w.Data()[0]; got != 0xFB {
		t.Errorf("byte 0 = %#x, want 0xfb", got)
	}
	if got := w.Data()[1]; got != 0x01 {
		t.Errorf("byte 1 = %#x, want 0x01", got)
	}
	if w.BytesWritten() != 2 {
		t.Errorf("BytesWritten = %d, want 2", w.BytesWritten())
	}
}

func TestSignedBits(t *testing.T) {
	w := NewWriter(8)
	w.WriteSBits(-3, 5)
	w.WriteSBits(7, 5)
	r := NewReader(w.Bytes())
	if got := r.ReadSBits(5); got != -3 {
		t.Errorf("got %d, want -3", got)
	}
	if got := r.ReadSBits(5); got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}

func TestWriterOverflowIsSticky(t *testing.T) {
	w := NewWriter(1)
	w.WriteUBits(0xFF, 8)
	if w.Overflowed() {
		t.Fatal("unexpected overflow at exact capacity")
	}
	w.WriteOneBit(true)
	if !w.Overflowed() {
		t.Fatal("expected overflow")
	}
	w.Reset()
	if w.Overflowed() {
		t.Error("Reset should clear overflow")
	}
}

func TestReaderOverflow(t *testing.T) {
	r := NewReader([]byte{0x12})
	_ = r.ReadUint8()
	if r.Overflowed() {
		t.Fatal("unexpected overflow")
	}
	if got := r.ReadUint32(); got != 0 {
		t.Errorf("read past end = %d, want 0", got)
	}
	if !r.Overflowed() {
		t.Fatal("expected overflow")
	}
	if r.BitsLeft() != 0 {
		t.Errorf("BitsLeft = %d after overflow, want 0", r.BitsLeft())
	}
	// further reads stay overflowed and never panic
	buf := make([]byte, 16)
	if r.ReadBytes(buf) {
		t.Error("ReadBytes should fail after overflow")
	}
}

func TestReaderBitsLimit(t *testing.T) {
	r := NewReaderBits([]byte{0xFF, 0xFF}, 9)
	_ = r.ReadUBits(9)
	if r.Overflowed() {
		t.Fatal("unexpected overflow")
	}
	r.ReadOneBit()
	if !r.Overflowed() {
		t.Error("expected overflow past bit limit")
	}

	clamped := NewReaderBits([]byte{0x01}, 100)
	if clamped.TotalBits() != 8 {
		t.Errorf("TotalBits = %d, want 8", clamped.TotalBits())
	}
}

func TestUnalignedBytes(t *testing.T) {
	payload := []byte("unaligned payload \x00\xff")
	w := NewWriter(64)
	w.WriteUBits(1, 3)
	w.WriteBytes(payload)
	w.WriteUBits(2, 2)

	r := NewReader(w.Bytes())
	if r.ReadUBits(3) != 1 {
		t.Fatal("prefix mismatch")
	}
	got := make([]byte, len(payload))
	if !r.ReadBytes(got) {
		t.Fatal("ReadBytes failed")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
	if r.ReadUBits(2) != 2 {
		t.Error("suffix mismatch")
	}
}

func TestWriteBitsPartial(t *testing.T) {
	src := NewWriter(4)
	src.WriteUBits(0x5, 3)
	src.WriteUBits(0x1FF, 9)

	dst := NewWriter(8)
	dst.WriteOneBit(true)
	dst.WriteWriter(src)
	if dst.BitsWritten() != 13 {
		t.Fatalf("BitsWritten = %d, want 13", dst.BitsWritten())
	}

	r := NewReader(dst.Bytes())
	r.ReadOneBit()
	if got := r.ReadUBits(3); got != 0x5 {
		t.Errorf("got %#x, want 0x5", got)
	}
	if got := r.ReadUBits(9); got != 0x1FF {
		t.Errorf("got %#x, want 0x1ff", got)
	}
}

func TestFixedWidthIntegers(t *testing.T) {
	w := NewWriter(64)
	w.WriteUint8(0xAA)
	w.WriteInt16(-2)
	w.WriteUint16(0xBEEF)
	w.WriteInt32(-123456)
	w.WriteUint32(0xCAFEBABE)
	w.WriteUint64(math.MaxUint64 - 1)
	w.WriteFloat32(3.25)

	r := NewReader(w.Bytes())
	if v := r.ReadUint8(); v != 0xAA {
		t.Errorf("uint8 = %#x", v)
	}
	if v := r.ReadInt16(); v != -2 {
		t.Errorf("int16 = %d", v)
	}
	if v := r.ReadUint16(); v != 0xBEEF {
		t.Errorf("uint16 = %#x", v)
	}
	if v := r.ReadInt32(); v != -123456 {
		t.Errorf("int32 = %d", v)
	}
	if v := r.ReadUint32(); v != 0xCAFEBABE {
		t.Errorf("uint32 = %#x", v)
	}
	if v := r.ReadUint64(); v != math.MaxUint64-1 {
		t.Errorf("uint64 = %#x", v)
	}
	if v := r.ReadFloat32(); v != 3.25 {
		t.Errorf("float32 = %v", v)
	}
}

func TestVarInts(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 300, 1 << 21, math.MaxUint32}
	w := NewWriter(128)
	for _, v := range values {
		w.WriteVarUint32(v)
	}
	w.WriteVarUint64(math.MaxUint64)
	w.WriteSignedVarInt32(-1)
	w.WriteSignedVarInt32(math.MinInt32)

	r := NewReader(w.Bytes())
	for _, want := range values {
		if got := r.ReadVarUint32(); got != want {
			t.Errorf("ReadVarUint32 = %d, want %d", got, want)
		}
	}
	if got := r.ReadVarUint64(); got != math.MaxUint64 {
		t.Errorf("ReadVarUint64 = %d", got)
	}
	if got := r.ReadSignedVarInt32(); got != -1 {
		t.Errorf("zigzag = %d, want -1", got)
	}
	if got := r.ReadSignedVarInt32(); got != math.MinInt32 {
		t.Errorf("zigzag = %d, want MinInt32", got)
	}
	if r.Overflowed() {
		t.Error("unexpected overflow")
	}
}

func TestVarIntTooLong(t *testing.T) {
	r := NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	r.ReadVarUint32()
	if !r.Overflowed() {
		t.Error("six byte varint32 should overflow")
	}
}

func TestStrings(t *testing.T) {
	w := NewWriter(64)
	w.WriteString("hello")
	w.WriteString("")
	w.WriteString("this one is too long")

	r := NewReader(w.Bytes())
	if s, ok := r.ReadString(64); !ok || s != "hello" {
		t.Errorf("got %q ok=%v", s, ok)
	}
	if s, ok := r.ReadString(64); !ok || s != "" {
		t.Errorf("got %q ok=%v", s, ok)
	}
	s, ok := r.ReadString(4)
	if ok || s != "this" {
		t.Errorf("got %q ok=%v, want truncated and !ok", s, ok)
	}
	if r.BitsLeft() != 0 {
		t.Errorf("long string not fully consumed, %d bits left", r.BitsLeft())
	}
}

func TestUnterminatedString(t *testing.T) {
	r := NewReader([]byte("abc"))
	if _, ok := r.ReadString(16); ok {
		t.Error("unterminated string should fail")
	}
	if !r.Overflowed() {
		t.Error("expected overflow")
	}
}

func TestCoordEncodings(t *testing.T) {
	coords := []float32{0, 1, -1, 0.5, -0.03125, 1234.25, -16000.5}
	w := NewWriter(256)
	for _, c := range coords {
		w.WriteBitCoord(c)
	}
	vec := Vector{X: 10.5, Y: 0, Z: -3.75}
	w.WriteBitVec3Coord(vec)
	w.WriteBitAngle(90, 8)
	w.WriteBitAngle(-90, 16)
	w.WriteBitNormal(0.5)
	w.WriteBitNormal(-1)

	r := NewReader(w.Bytes())
	for _, want := range coords {
		if got := r.ReadBitCoord(); got != want {
			t.Errorf("ReadBitCoord = %v, want %v", got, want)
		}
	}
	if got := r.ReadBitVec3Coord(); got != vec {
		t.Errorf("ReadBitVec3Coord = %+v, want %+v", got, vec)
	}
	if got := r.ReadBitAngle(8); got != 90 {
		t.Errorf("ReadBitAngle(8) = %v, want 90", got)
	}
	if got := r.ReadBitAngle(16); got != 270 {
		t.Errorf("ReadBitAngle(16) = %v, want 270", got)
	}
	if got := r.ReadBitNormal(); math.Abs(float64(got)-0.5) > NormalResolution {
		t.Errorf("ReadBitNormal = %v, want ~0.5", got)
	}
	if got := r.ReadBitNormal(); got != -1 {
		t.Errorf("ReadBitNormal = %v, want -1", got)
	}
	if r.Overflowed() {
		t.Error("unexpected overflow")
	}
}

func TestRandomizedMixedWrites(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	type op struct {
		bits  int
		value uint64
	}
	ops := make([]op, 500)
	w := NewWriter(8192)
	for i := range ops {
		bits := rng.Intn(65)
		v := rng.Uint64()
		if bits < 64 {
			v &= 1<<uint(bits) - 1
		}
		ops[i] = op{bits, v}
		w.WriteUBits64(v, bits)
	}
	if w.Overflowed() {
		t.Fatal("unexpected overflow")
	}
	r := NewReaderBits(w.Data(), w.BitsWritten())
	for i, o := range ops {
		if got := r.ReadUBits64(o.bits); got != o.value {
			t.Fatalf("op %d: got %#x, want %#x (%d bits)", i, got, o.value, o.bits)
		}
	}
}

func TestBitsFor(t *testing.T) {
	tests := map[uint32]int{0: 0, 1: 1, 7: 3, 8: 4, 255: 8, 2047: 11}
	for n, want := range tests {
		if got := BitsFor(n); got != want {
			t.Errorf("BitsFor(%d) = %d, want %d", n, got, want)
		}
	}
}
