package httpd

import (
	"github.com/ssungk/ehttpd/pkg/httpd/buf"
	"github.com/ssungk/ehttpd/pkg/httpd/parser"
)

type header struct {
	key   buf.Span
	value buf.Span
}

// Request is a read-only view of one completed request. Every field is a
// span into a single buffer that the Request owns; the byte slices it
// returns alias that buffer. The server releases the buffer as soon as
// the handler returns, after which every accessor returns nil or zero.
// Use Clone to keep a request beyond the handler call.
type Request struct {
	buffer  *buf.Buffer
	uri     buf.Span
	body    buf.Span
	hasBody bool
	headers []header

	method    parser.Method
	major     int
	minor     int
	upgrade   bool
	keepAlive bool
}

// URI returns the request target as sent.
func (r *Request) URI() []byte {
	return r.bytes(r.uri)
}

// Body returns the request body, or nil if the request had none.
func (r *Request) Body() []byte {
	if !r.hasBody {
		return nil
	}
	return r.bytes(r.body)
}

// HasBody reports whether any body bytes were received.
func (r *Request) HasBody() bool {
	return r.hasBody
}

// NumHeaders returns the number of header entries.
func (r *Request) NumHeaders() int {
	return len(r.headers)
}

// Header returns the i-th header in wire order.
func (r *Request) Header(i int) (key, value []byte) {
	if i < 0 || i >= len(r.headers) {
		return nil, nil
	}
	h := r.headers[i]
	return r.bytes(h.key), r.bytes(h.value)
}

// VisitHeaders calls f for each header in wire order, duplicates included.
func (r *Request) VisitHeaders(f func(key, value []byte)) {
	for _, h := range r.headers {
		f(r.bytes(h.key), r.bytes(h.value))
	}
}

// Get returns the value of the first header whose name matches name
// case-insensitively, or nil.
func (r *Request) Get(name string) []byte {
	for _, h := range r.headers {
		if equalFold(r.bytes(h.key), name) {
			return r.bytes(h.value)
		}
	}
	return nil
}

// Method returns the request method.
func (r *Request) Method() parser.Method { return r.method }

// ProtoMajor returns the major HTTP version.
func (r *Request) ProtoMajor() int { return r.major }

// ProtoMinor returns the minor HTTP version.
func (r *Request) ProtoMinor() int { return r.minor }

// Upgrade reports whether the client asked to switch protocols.
func (r *Request) Upgrade() bool { return r.upgrade }

// KeepAlive reports whether the connection may carry another request.
func (r *Request) KeepAlive() bool { return r.keepAlive }

// Size returns the number of buffer bytes the request occupies.
func (r *Request) Size() int {
	if r.buffer == nil {
		return 0
	}
	return r.buffer.Len()
}

// Clone returns a deep copy that stays valid after the handler returns.
// The copy is garbage collected and needs no release.
func (r *Request) Clone() *Request {
	clone := *r
	if r.buffer != nil {
		clone.buffer = r.buffer.Clone()
	}
	clone.headers = append([]header(nil), r.headers...)
	return &clone
}

func (r *Request) bytes(s buf.Span) []byte {
	if r.buffer == nil {
		return nil
	}
	return r.buffer.Bytes(s)
}

// release returns the buffer to the pool and empties the view.
func (r *Request) release() {
	if r.buffer != nil {
		r.buffer.Release()
	}
	*r = Request{}
}

func equalFold(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := 0; i < len(b); i++ {
		if lower(b[i]) != lower(s[i]) {
			return false
		}
	}
	return true
}

func lower(c byte) byte {
	if c-'A' <= 'Z'-'A' {
		return c + 'a' - 'A'
	}
	return c
}
