package mm

import "errors"

var (
	ErrOutOfFrames = errors.New("out of physical frames")
	ErrNotAligned  = errors.New("address is not page aligned")
	ErrBadPort     = errors.New("invalid protection bits")
	ErrTooLarge    = errors.New("length exceeds mapping limit")
	ErrOverlap     = errors.New("range overlaps an existing mapping")
	ErrNotMapped   = errors.New("range is not fully mapped")
	ErrBadAddress  = errors.New("bad user address")
	ErrBadELF      = errors.New("malformed application image")
)
