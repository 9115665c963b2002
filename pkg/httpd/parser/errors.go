package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed wraps every grammar error reported by Execute.
	ErrMalformed = errors.New("malformed http message")

	// ErrUpgrade is returned once an upgrade request has completed. The
	// bytes after the returned offset belong to the upgraded protocol.
	ErrUpgrade = errors.New("connection upgrade requested")

	// Request line errors
	ErrInvalidMethod  = errors.New("invalid method")
	ErrInvalidURL     = errors.New("invalid request target")
	ErrInvalidVersion = errors.New("invalid http version")

	// Header errors
	ErrInvalidHeaderToken      = errors.New("invalid header field token")
	ErrInvalidHeaderValue      = errors.New("invalid header value")
	ErrInvalidContentLength    = errors.New("invalid content-length")
	ErrUnexpectedContentLength = errors.New("content-length with transfer-encoding")
	ErrInvalidTransferEncoding = errors.New("invalid transfer-encoding")
	ErrInvalidChunkSize        = errors.New("invalid chunk size")
	ErrMissingLineFeed         = errors.New("expected line feed")
	ErrMissingCarriageReturn   = errors.New("expected carriage return")
)

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformed, err)
}
