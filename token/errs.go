package token

import (
	"errors"
	"fmt"
)

var (
	ErrUnexpectedEOF = errors.New("unexpected end of input")
	ErrTicket        = errors.New("bad ticket")
)

func eofErr(off int64, want int) error {
	return fmt.Errorf("%w at offset %d (need %d more bytes)", ErrUnexpectedEOF, off, want)
}
