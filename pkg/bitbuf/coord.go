package bitbuf

import "math"

// Coordinate encoding parameters.
const (
	CoordIntegerBits    = 14
	CoordFractionalBits = 5
	CoordDenominator    = 1 << CoordFractionalBits
	CoordResolution     = 1.0 / CoordDenominator

	NormalFractionalBits = 11
	NormalDenominator    = (1 << NormalFractionalBits) - 1
	NormalResolution     = 1.0 / NormalDenominator
)

// Vector is a 3D vector. Angles (pitch, yaw, roll) use the same type.
type Vector struct {
	X, Y, Z float32
}

// WriteBitCoord writes a world coordinate with 1/32 unit precision.
// Values are limited to ±16384.
func (w *Writer) WriteBitCoord(f float32) {
	neg := f <= -CoordResolution
	abs := math.Abs(float64(f))
	intval := uint32(abs)
	fractval := uint32(abs*CoordDenominator) & (CoordDenominator - 1)

	w.WriteOneBit(intval != 0)
	w.WriteOneBit(fractval != 0)
	if intval == 0 && fractval == 0 {
		return
	}
	w.WriteOneBit(neg)
	if intval != 0 {
		w.WriteUBits(intval-1, CoordIntegerBits)
	}
	if fractval != 0 {
		w.WriteUBits(fractval, CoordFractionalBits)
	}
}

// ReadBitCoord reads a value written by WriteBitCoord.
func (r *Reader) ReadBitCoord() float32 {
	hasInt := r.ReadOneBit()
	hasFract := r.ReadOneBit()
	if !hasInt && !hasFract {
		return 0
	}
	neg := r.ReadOneBit()
	var intval, fractval uint32
	if hasInt {
		intval = r.ReadUBits(CoordIntegerBits) + 1
	}
	if hasFract {
		fractval = r.ReadUBits(CoordFractionalBits)
	}
	v := float32(intval) + float32(fractval)*CoordResolution
	if neg {
		v = -v
	}
	return v
}

func coordNonZero(f float32) bool {
	return f >= CoordResolution || f <= -CoordResolution
}

// WriteBitVec3Coord writes a vector, skipping components that round to zero.
func (w *Writer) WriteBitVec3Coord(v Vector) {
	x, y, z := coordNonZero(v.X), coordNonZero(v.Y), coordNonZero(v.Z)
	w.WriteOneBit(x)
	w.WriteOneBit(y)
	w.WriteOneBit(z)
	if x {
		w.WriteBitCoord(v.X)
	}
	if y {
		w.WriteBitCoord(v.Y)
	}
	if z {
		w.WriteBitCoord(v.Z)
	}
}

// ReadBitVec3Coord reads a vector written by WriteBitVec3Coord.
func (r *Reader) ReadBitVec3Coord() Vector {
	var v Vector
	x, y, z := r.ReadOneBit(), r.ReadOneBit(), r.ReadOneBit()
	if x {
		v.X = r.ReadBitCoord()
	}
	if y {
		v.Y = r.ReadBitCoord()
	}
	if z {
		v.Z = r.ReadBitCoord()
	}
	return v
}

// WriteBitAngle writes an angle in degrees quantized to bits bits.
func (w *Writer) WriteBitAngle(deg float32, bits int) {
	if bits <= 0 || bits > 32 {
		w.overflow = true
		return
	}
	shift := uint64(1) << bits
	d := uint64(int64(float64(deg)/360.0*float64(shift))) & (shift - 1)
	w.WriteUBits64(d, bits)
}

// ReadBitAngle reads an angle written by WriteBitAngle.
func (r *Reader) ReadBitAngle(bits int) float32 {
	if bits <= 0 || bits > 32 {
		r.overflow = true
		return 0
	}
	shift := float64(uint64(1) << bits)
	return float32(float64(r.ReadUBits64(bits)) * (360.0 / shift))
}

// WriteBitAngles writes pitch/yaw/roll as a coordinate vector.
func (w *Writer) WriteBitAngles(a Vector) { w.WriteBitVec3Coord(a) }

// ReadBitAngles reads angles written by WriteBitAngles.
func (r *Reader) ReadBitAngles() Vector { return r.ReadBitVec3Coord() }

// WriteBitNormal writes a value in [-1, 1] with 11 fractional bits.
func (w *Writer) WriteBitNormal(f float32) {
	neg := f <= -NormalResolution
	fractval := uint32(math.Abs(float64(f) * NormalDenominator))
	if fractval > NormalDenominator {
		fractval = NormalDenominator
	}
	w.WriteOneBit(neg)
	w.WriteUBits(fractval, NormalFractionalBits)
}

// ReadBitNormal reads a value written by WriteBitNormal.
func (r *Reader) ReadBitNormal() float32 {
	neg := r.ReadOneBit()
	v := float32(r.ReadUBits(NormalFractionalBits)) * NormalResolution
	if neg {
		v = -v
	}
	return v
}
