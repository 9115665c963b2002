package httpd

import (
	"fmt"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// Response builds one HTTP/1.1 response and sends it as a single gathered
// write. Header lines and body are kept in pooled buffers that return to
// the pool when the write completes.
type Response struct {
	conn     Conn
	limits   ResponseLimits
	status   int
	header   *bytebufferpool.ByteBuffer
	body     *bytebufferpool.ByteBuffer
	framing  *bytebufferpool.ByteBuffer
	finished bool
}

// NewResponse creates a response bound to conn. The status is unset.
func NewResponse(conn Conn, limits ResponseLimits) (*Response, error) {
	if conn == nil {
		return nil, ErrNoConn
	}
	return &Response{
		conn:   conn,
		limits: limits,
		header: bytebufferpool.Get(),
		body:   bytebufferpool.Get(),
	}, nil
}

// SetStatus sets the status code. The reason phrase is always "OK".
func (r *Response) SetStatus(code int) error {
	if r.finished {
		return ErrResponseFinished
	}
	if code < 100 || code > 999 {
		return fmt.Errorf("status %d: %w", code, ErrInvalidStatus)
	}
	r.status = code
	return nil
}

// Status returns the status code, or 0 if unset.
func (r *Response) Status() int {
	return r.status
}

// AddHeader appends one header line. line must not contain the line
// terminator. Lines are sent as given, in call order.
func (r *Response) AddHeader(line string) error {
	if r.finished {
		return ErrResponseFinished
	}
	if limit := r.limits.MaxHeaderBytes; limit > 0 && r.header.Len()+len(line)+2 > limit {
		return fmt.Errorf("header block over %d bytes: %w", limit, ErrResponseOverflow)
	}
	r.header.B = append(r.header.B, line...)
	r.header.B = append(r.header.B, '\r', '\n')
	return nil
}

// AppendBody appends p to the body.
func (r *Response) AppendBody(p []byte) error {
	if err := r.reserveBody(len(p)); err != nil {
		return err
	}
	r.body.B = append(r.body.B, p...)
	return nil
}

// Write implements io.Writer on the body.
func (r *Response) Write(p []byte) (int, error) {
	if err := r.AppendBody(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteString appends s to the body.
func (r *Response) WriteString(s string) (int, error) {
	if err := r.reserveBody(len(s)); err != nil {
		return 0, err
	}
	r.body.B = append(r.body.B, s...)
	return len(s), nil
}

// reserveBody checks that n more body bytes may be appended.
func (r *Response) reserveBody(n int) error {
	if r.finished {
		return ErrResponseFinished
	}
	if limit := r.limits.MaxBodyBytes; limit > 0 && r.body.Len()+n > limit {
		return fmt.Errorf("body over %d bytes: %w", limit, ErrResponseOverflow)
	}
	return nil
}

// BodyLen returns the current body length.
func (r *Response) BodyLen() int {
	if r.body == nil {
		return 0
	}
	return r.body.Len()
}

// Finish serializes the response and submits it as four segments: status
// line, header lines, Content-Length with the blank line, and body. The
// response must not be used afterwards.
func (r *Response) Finish() error {
	if r.finished {
		return ErrResponseFinished
	}
	if r.status == 0 {
		return ErrStatusNotSet
	}
	r.finished = true

	r.framing = bytebufferpool.Get()
	b := append(r.framing.B, "HTTP/1.1 "...)
	b = strconv.AppendInt(b, int64(r.status), 10)
	b = append(b, " OK\r\n"...)
	statusEnd := len(b)
	b = append(b, "Content-Length: "...)
	b = strconv.AppendInt(b, int64(r.body.Len()), 10)
	b = append(b, "\r\n\r\n"...)
	r.framing.B = b

	segments := [][]byte{
		b[:statusEnd],
		r.header.B,
		b[statusEnd:],
		r.body.B,
	}

	if err := r.conn.Writev(segments, r.complete); err != nil {
		r.release()
		_ = r.conn.Close()
		return fmt.Errorf("response write: %w: %w", ErrTransport, err)
	}
	return nil
}

// Discard drops an unfinished response without writing it.
func (r *Response) Discard() {
	if r.finished {
		return
	}
	r.finished = true
	r.release()
}

// complete runs when the transport has finished with the segments.
func (r *Response) complete(error) {
	r.release()
}

func (r *Response) release() {
	for _, bb := range []*bytebufferpool.ByteBuffer{r.header, r.body, r.framing} {
		if bb != nil {
			bytebufferpool.Put(bb)
		}
	}
	r.header, r.body, r.framing = nil, nil, nil
}
