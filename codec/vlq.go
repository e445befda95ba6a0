package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/signadot/odoc/ir"
	"github.com/signadot/odoc/token"
)

// MaxVLQLen is the longest encoding of a uint64.
const MaxVLQLen = binary.MaxVarintLen64

// AppendVLQ appends the variable length encoding of x: 7 bits per byte,
// least significant group first, 0x80 marking continuation.
func AppendVLQ(dst []byte, x uint64) []byte {
	return binary.AppendUvarint(dst, x)
}

// VLQLen returns the encoded length of x.
func VLQLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

// DecodeVLQ decodes a VLQ from the front of b and returns it with the
// number of bytes used. Overlong and non minimal encodings are errors.
func DecodeVLQ(b []byte) (uint64, int, error) {
	var x uint64
	for i, c := range b {
		if i == MaxVLQLen-1 && c > 1 {
			return 0, 0, fmt.Errorf("%w: varint overflows 64 bits", ir.ErrParse)
		}
		x |= uint64(c&0x7f) << (7 * i)
		if c < 0x80 {
			if c == 0 && i > 0 {
				return 0, 0, fmt.Errorf("%w: non minimal varint", ir.ErrParse)
			}
			return x, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: %w: truncated varint", ir.ErrParse, token.ErrUnexpectedEOF)
}

func readVLQ(src *token.Source, fail token.OnBounds) (uint64, error) {
	var x uint64
	for i := 0; ; i++ {
		c, err := src.Next(fail)
		if err != nil {
			return 0, err
		}
		if i == MaxVLQLen-1 && c > 1 {
			return 0, errAt(src, "varint overflows 64 bits")
		}
		x |= uint64(c&0x7f) << (7 * i)
		if c < 0x80 {
			if c == 0 && i > 0 {
				return 0, errAt(src, "non minimal varint")
			}
			return x, nil
		}
	}
}
