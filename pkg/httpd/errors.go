package httpd

import "errors"

var (
	// Connection-fatal errors
	ErrOverflow  = errors.New("request exceeds buffer limit")
	ErrMalformed = errors.New("malformed request")
	ErrTransport = errors.New("transport failure")
	ErrClosed    = errors.New("session closed")

	// Construction errors
	ErrInvalidConfig = errors.New("invalid server configuration")

	// Response errors
	ErrNoConn           = errors.New("response has no connection")
	ErrInvalidStatus    = errors.New("invalid status code")
	ErrStatusNotSet     = errors.New("response status not set")
	ErrResponseFinished = errors.New("response already finished")
	ErrResponseOverflow = errors.New("response exceeds limit")
)
