package serialization

import (
	"errors"
	"fmt"
)

// Sentinel errors returned while reading .gm files.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrDigestMismatch     = errors.New("data digest mismatch: file may be corrupted")
	ErrTooManyTensors     = errors.New("too many tensors in file")
	ErrTensorNameTooLong  = errors.New("tensor name too long")
	ErrInvalidTensorName  = errors.New("invalid tensor name")
	ErrNegativeOffset     = errors.New("negative tensor offset or size")
	ErrDataTooLarge       = errors.New("data section exceeds maximum size")
	ErrOutOfBounds        = errors.New("tensor extends beyond data section")
	ErrOffsetOverlap      = errors.New("tensor offsets overlap")
)

// ValidationError carries details about a header validation failure.
type ValidationError struct {
	Err    error
	Tensor string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Tensor != "" {
		return fmt.Sprintf("%v: tensor %q: %s", e.Err, e.Tensor, e.Detail)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

// Unwrap lets errors.Is match the underlying sentinel.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
