package codec

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/signadot/odoc/ir"
)

// AppendBase64 appends the padded standard base64 encoding of b.
func AppendBase64(dst, b []byte) []byte {
	return base64.StdEncoding.AppendEncode(dst, b)
}

// DecodeBase64 appends the decoding of padded standard base64 text to dst.
func DecodeBase64(dst, text []byte) ([]byte, error) {
	if len(text)%4 != 0 {
		return dst, fmt.Errorf("%w: base64 length %d is not a multiple of 4", ir.ErrParse, len(text))
	}
	out, err := base64.StdEncoding.Strict().AppendDecode(dst, text)
	if err != nil {
		return dst, fmt.Errorf("%w: base64: %v", ir.ErrParse, err)
	}
	return out, nil
}

// AppendHex appends the lower case hex encoding of b.
func AppendHex(dst, b []byte) []byte {
	return hex.AppendEncode(dst, b)
}

// DecodeHex appends the decoding of hex text to dst.
func DecodeHex(dst, text []byte) ([]byte, error) {
	out, err := hex.AppendDecode(dst, text)
	if err != nil {
		return dst, fmt.Errorf("%w: hex: %v", ir.ErrParse, err)
	}
	return out, nil
}
