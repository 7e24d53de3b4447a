package sres

import (
	"errors"
	"fmt"

	"github.com/meigma/sres/internal/wire"
)

// Sentinel errors re-exported from internal/wire.
var (
	// ErrTruncatedInput is returned when a file ends in the middle of a primitive.
	ErrTruncatedInput = wire.ErrTruncated

	// ErrVaruintOverflow is returned when a varuint does not terminate within
	// five bytes. It matches ErrTruncatedInput.
	ErrVaruintOverflow = wire.ErrVaruintOverflow

	// ErrInvalidUTF8 is returned for a malformed UTF-8 pool string.
	ErrInvalidUTF8 = wire.ErrInvalidUTF8
)

var (
	// ErrNotFound is returned when a named bundle does not exist.
	ErrNotFound = errors.New("sres: not found")

	// ErrIndexOutOfRange is returned when a key, string or element index is
	// outside the addressable range.
	ErrIndexOutOfRange = errors.New("sres: index out of range")

	// ErrUnknownResourceTag is returned for an unrecognized resource type tag.
	ErrUnknownResourceTag = errors.New("sres: unknown resource tag")

	// ErrMissingSharedPool is returned when a bundle requires a shared key pool
	// that cannot be located.
	ErrMissingSharedPool = errors.New("sres: missing shared key pool")

	// ErrMissingAuxiliaryResource is returned when the file behind an auxiliary
	// handle is absent.
	ErrMissingAuxiliaryResource = errors.New("sres: missing auxiliary resource")

	// ErrTypeMismatch is returned by typed accessors for a resource of another kind.
	ErrTypeMismatch = errors.New("sres: type mismatch")

	// ErrKeyNotFound is returned by table accessors for an absent key.
	ErrKeyNotFound = errors.New("sres: key not found")

	// ErrMaxDepth is returned when resources nest deeper than the configured limit.
	ErrMaxDepth = errors.New("sres: maximum depth exceeded")
)

// DecodeError records a failure while decoding a file.
type DecodeError struct {
	Name   string // full name of the file
	Offset int64  // byte offset where decoding stopped
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at offset %d: %v", e.Name, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
