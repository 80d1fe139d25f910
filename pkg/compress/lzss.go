package compress

import (
	"encoding/binary"
	"fmt"
)

const (
	lzssHeaderSize = 8
	lzssLookShift  = 4
	lzssWindowSize = 1 << 12
	lzssMaxMatch   = 1<<lzssLookShift - 1 + 1
	lzssMinMatch   = 3

	lzssHashBits = 12
	lzssMaxChain = 64
)

func lzssHash(b []byte) int {
	return int((uint32(b[0])<<8^uint32(b[1])<<4^uint32(b[2]))*2654435761>>(32-lzssHashBits)) & (1<<lzssHashBits - 1)
}

// compressLZSS encodes src with greedy matching over hash chains.
func compressLZSS(src []byte) ([]byte, bool) {
	if len(src) < lzssMinMatch+lzssHeaderSize {
		return nil, false
	}

	out := make([]byte, lzssHeaderSize, len(src))
	binary.LittleEndian.PutUint32(out, LZSSID)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(src)))

	head := make([]int32, 1<<lzssHashBits)
	for i := range head {
		head[i] = -1
	}
	prev := make([]int32, len(src))

	insert := func(i int) {
		if i+lzssMinMatch > len(src) {
			return
		}
		h := lzssHash(src[i:])
		prev[i] = head[h]
		head[h] = int32(i)
	}

	cmdPos := -1
	cmdBit := 0
	nextCmd := func() {
		if cmdBit == 0 {
			cmdPos = len(out)
			out = append(out, 0)
			cmdBit = 1
		}
	}

	pos := 0
	for pos < len(src) {
		bestLen, bestDist := 0, 0
		if pos+lzssMinMatch <= len(src) {
			limit := len(src) - pos
			if limit > lzssMaxMatch {
				limit = lzssMaxMatch
			}
			cand := head[lzssHash(src[pos:])]
			for chain := 0; cand >= 0 && chain < lzssMaxChain; chain++ {
				dist := pos - int(cand)
				if dist > lzssWindowSize {
					break
				}
				n := 0
				for n < limit && src[int(cand)+n] == src[pos+n] {
					n++
				}
				if n > bestLen {
					bestLen, bestDist = n, dist
					if n == limit {
						break
					}
				}
				cand = prev[cand]
			}
		}

		nextCmd()
		if bestLen >= lzssMinMatch {
			out[cmdPos] |= byte(cmdBit)
			position := bestDist - 1
			out = append(out, byte(position>>lzssLookShift), byte(position<<lzssLookShift)|byte(bestLen-1))
			for i := 0; i < bestLen; i++ {
				insert(pos + i)
			}
			pos += bestLen
		} else {
			out = append(out, src[pos])
			insert(pos)
			pos++
		}
		cmdBit = (cmdBit << 1) & 0xFF

		if len(out) >= len(src) {
			return nil, false
		}
	}

	// terminator: match of length 1
	nextCmd()
	out[cmdPos] |= byte(cmdBit)
	out = append(out, 0, 0)
	if len(out) >= len(src) {
		return nil, false
	}
	return out, true
}

// decompressLZSS decodes a stream into dst, which has exactly the declared
// size. Back references and literals are bounds checked.
func decompressLZSS(dst, src []byte) (int, error) {
	in, out := 0, 0
	var cmdByte byte
	cmdBit := 0

	for {
		if cmdBit == 0 {
			if in >= len(src) {
				return 0, fmt.Errorf("%w: truncated command", ErrCorrupt)
			}
			cmdByte = src[in]
			in++
			cmdBit = 1
		}

		if cmdByte&byte(cmdBit) != 0 {
			if in+2 > len(src) {
				return 0, fmt.Errorf("%w: truncated match", ErrCorrupt)
			}
			position := int(src[in])<<lzssLookShift | int(src[in+1])>>lzssLookShift
			count := int(src[in+1]&0x0F) + 1
			in += 2
			if count == 1 {
				break
			}
			from := out - position - 1
			if from < 0 || out+count > len(dst) {
				return 0, fmt.Errorf("%w: match out of range", ErrCorrupt)
			}
			for i := 0; i < count; i++ {
				dst[out] = dst[from+i]
				out++
			}
		} else {
			if in >= len(src) {
				return 0, fmt.Errorf("%w: truncated literal", ErrCorrupt)
			}
			if out >= len(dst) {
				return 0, fmt.Errorf("%w: output overrun", ErrCorrupt)
			}
			dst[out] = src[in]
			in++
			out++
		}
		cmdBit = (cmdBit << 1) & 0xFF
	}

	if out != len(dst) {
		return 0, fmt.Errorf("%w: decoded %d of %d bytes", ErrCorrupt, out, len(dst))
	}
	return out, nil
}
