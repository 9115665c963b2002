package parser

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type event struct {
	Kind string
	Data string
}

type meta struct {
	Method    string
	Major     int
	Minor     int
	KeepAlive bool
	Upgrade   bool
}

// recorder merges consecutive fragments of the same kind so results do not
// depend on where the input was split.
type recorder struct {
	p      *Parser
	events []event
	metas  []meta
	failOn string
	err    error
}

func newRecorder() (*recorder, *Parser) {
	r := &recorder{}
	r.p = New(r)
	return r, r.p
}

func (r *recorder) add(kind string, b []byte) error {
	if kind == r.failOn {
		return r.err
	}
	if n := len(r.events); n > 0 && r.events[n-1].Kind == kind && b != nil {
		r.events[n-1].Data += string(b)
		return nil
	}
	r.events = append(r.events, event{Kind: kind, Data: string(b)})
	return nil
}

func (r *recorder) OnURL(p []byte) error         { return r.add("url", p) }
func (r *recorder) OnHeaderField(p []byte) error { return r.add("field", p) }
func (r *recorder) OnHeaderValue(p []byte) error { return r.add("value", p) }
func (r *recorder) OnBody(p []byte) error        { return r.add("body", p) }
func (r *recorder) OnHeadersComplete() error     { return r.add("headers", nil) }

func (r *recorder) OnMessageComplete() error {
	r.metas = append(r.metas, meta{
		Method:    r.p.Method().String(),
		Major:     r.p.ProtoMajor(),
		Minor:     r.p.ProtoMinor(),
		KeepAlive: r.p.KeepAlive(),
		Upgrade:   r.p.Upgrade(),
	})
	return r.add("complete", nil)
}

const helloRequest = "GET /helloworld HTTP/1.1\r\n" +
	"Hello: World\r\n" +
	"Host: localhost:8080\r\n" +
	"User-Agent: foobar\r\n" +
	"\r\n\r\n"

var helloEvents = []event{
	{"url", "/helloworld"},
	{"field", "Hello"}, {"value", "World"},
	{"field", "Host"}, {"value", "localhost:8080"},
	{"field", "User-Agent"}, {"value", "foobar"},
	{"headers", ""},
	{"complete", ""},
}

func TestParser_SimpleGet(t *testing.T) {
	r, p := newRecorder()

	n, err := p.Execute([]byte(helloRequest))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if n != len(helloRequest) {
		t.Errorf("consumed = %d, want %d", n, len(helloRequest))
	}
	if diff := cmp.Diff(helloEvents, r.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	want := []meta{{Method: "GET", Major: 1, Minor: 1, KeepAlive: true}}
	if diff := cmp.Diff(want, r.metas); diff != "" {
		t.Errorf("meta mismatch (-want +got):\n%s", diff)
	}
}

func TestParser_SplitAtEveryOffset(t *testing.T) {
	raw := []byte(helloRequest)

	for split := 1; split < len(raw); split++ {
		r, p := newRecorder()
		if _, err := p.Execute(raw[:split]); err != nil {
			t.Fatalf("split %d: first Execute failed: %v", split, err)
		}
		if _, err := p.Execute(raw[split:]); err != nil {
			t.Fatalf("split %d: second Execute failed: %v", split, err)
		}
		if diff := cmp.Diff(helloEvents, r.events); diff != "" {
			t.Fatalf("split %d: events mismatch (-want +got):\n%s", split, diff)
		}
	}
}

func TestParser_ByteAtATime(t *testing.T) {
	raw := []byte("POST /submit HTTP/1.1\r\nContent-Length: 11\r\n\r\nHello World")
	r, p := newRecorder()

	for i := range raw {
		if _, err := p.Execute(raw[i : i+1]); err != nil {
			t.Fatalf("byte %d: Execute failed: %v", i, err)
		}
	}

	want := []event{
		{"url", "/submit"},
		{"field", "Content-Length"}, {"value", "11"},
		{"headers", ""},
		{"body", "Hello World"},
		{"complete", ""},
	}
	if diff := cmp.Diff(want, r.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if p.ContentLength() != 11 {
		t.Errorf("ContentLength() = %d, want 11", p.ContentLength())
	}
}

func TestParser_ContentLengthBodyStopsAtLength(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nHelloGET / HTTP/1.1\r\n\r\n"
	r, p := newRecorder()

	if _, err := p.Execute([]byte(raw)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := []event{
		{"url", "/"},
		{"field", "Content-Length"}, {"value", "5"},
		{"headers", ""},
		{"body", "Hello"},
		{"complete", ""},
		{"url", "/"},
		{"headers", ""},
		{"complete", ""},
	}
	if diff := cmp.Diff(want, r.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if len(r.metas) != 2 || r.metas[0].Method != "POST" || r.metas[1].Method != "GET" {
		t.Errorf("metas = %+v", r.metas)
	}
}

func TestParser_Chunked(t *testing.T) {
	raw := "POST /upload HTTP/1.1\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"5\r\nHello\r\n" +
		"6;name=value\r\n World\r\n" +
		"0\r\n" +
		"X-Checksum: abc\r\n" +
		"\r\n"

	want := []event{
		{"url", "/upload"},
		{"field", "Transfer-Encoding"}, {"value", "chunked"},
		{"headers", ""},
		{"body", "Hello World"},
		{"complete", ""},
	}

	for split := 1; split < len(raw); split++ {
		r, p := newRecorder()
		if _, err := p.Execute([]byte(raw[:split])); err != nil {
			t.Fatalf("split %d: Execute failed: %v", split, err)
		}
		if _, err := p.Execute([]byte(raw[split:])); err != nil {
			t.Fatalf("split %d: Execute failed: %v", split, err)
		}
		if diff := cmp.Diff(want, r.events); diff != "" {
			t.Fatalf("split %d: events mismatch (-want +got):\n%s", split, diff)
		}
		if !p.Chunked() {
			t.Fatalf("split %d: Chunked() = false", split)
		}
	}
}

func TestParser_TrailingWhitespaceTrimmed(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Pad:   a \t b \t \r\n\r\n"
	want := []event{
		{"url", "/"},
		{"field", "X-Pad"}, {"value", "a \t b"},
		{"headers", ""},
		{"complete", ""},
	}

	for split := 1; split < len(raw); split++ {
		r, p := newRecorder()
		if _, err := p.Execute([]byte(raw[:split])); err != nil {
			t.Fatalf("split %d: Execute failed: %v", split, err)
		}
		if _, err := p.Execute([]byte(raw[split:])); err != nil {
			t.Fatalf("split %d: Execute failed: %v", split, err)
		}
		if diff := cmp.Diff(want, r.events); diff != "" {
			t.Fatalf("split %d: events mismatch (-want +got):\n%s", split, diff)
		}
	}
}

func TestParser_EmptyHeaderValue(t *testing.T) {
	r, p := newRecorder()

	if _, err := p.Execute([]byte("GET / HTTP/1.1\r\nX-Empty:   \r\nX-Next: 1\r\n\r\n")); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := []event{
		{"url", "/"},
		{"field", "X-Empty"}, {"value", ""},
		{"field", "X-Next"}, {"value", "1"},
		{"headers", ""},
		{"complete", ""},
	}
	if diff := cmp.Diff(want, r.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestParser_KeepAlive(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"GET / HTTP/1.1\r\n\r\n", true},
		{"GET / HTTP/1.1\r\nConnection: close\r\n\r\n", false},
		{"GET / HTTP/1.0\r\n\r\n", false},
		{"GET / HTTP/1.0\r\nConnection: Keep-Alive\r\n\r\n", true},
	}

	for _, tc := range cases {
		r, p := newRecorder()
		if _, err := p.Execute([]byte(tc.raw)); err != nil {
			t.Fatalf("%q: Execute failed: %v", tc.raw, err)
		}
		if len(r.metas) != 1 {
			t.Fatalf("%q: completed %d messages, want 1", tc.raw, len(r.metas))
		}
		if r.metas[0].KeepAlive != tc.want {
			t.Errorf("%q: KeepAlive = %v, want %v", tc.raw, r.metas[0].KeepAlive, tc.want)
		}
	}
}

func TestParser_Upgrade(t *testing.T) {
	head := "GET /chat HTTP/1.1\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n\r\n"
	raw := head + "\x81\x05hello"
	r, p := newRecorder()

	n, err := p.Execute([]byte(raw))
	if !errors.Is(err, ErrUpgrade) {
		t.Fatalf("expected ErrUpgrade, got %v", err)
	}
	if n != len(head) {
		t.Errorf("consumed = %d, want %d", n, len(head))
	}
	if len(r.metas) != 1 || !r.metas[0].Upgrade {
		t.Errorf("metas = %+v, want one upgrade message", r.metas)
	}

	// Dead until reset
	if _, err := p.Execute([]byte("GET / HTTP/1.1\r\n\r\n")); !errors.Is(err, ErrUpgrade) {
		t.Errorf("expected sticky ErrUpgrade, got %v", err)
	}
	p.Reset()
	if _, err := p.Execute([]byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		t.Errorf("Execute after Reset failed: %v", err)
	}
}

func TestParser_Connect(t *testing.T) {
	_, p := newRecorder()

	_, err := p.Execute([]byte("CONNECT example.org:443 HTTP/1.1\r\n\r\n"))
	if !errors.Is(err, ErrUpgrade) {
		t.Fatalf("expected ErrUpgrade, got %v", err)
	}
	if p.Method() != MethodConnect {
		t.Errorf("Method() = %v, want CONNECT", p.Method())
	}
}

func TestParser_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"unknown method", "FETCH / HTTP/1.1\r\n\r\n", ErrInvalidMethod},
		{"lowercase method", "get / HTTP/1.1\r\n\r\n", ErrInvalidMethod},
		{"missing target", "GET  HTTP/1.1\r\n\r\n", ErrInvalidURL},
		{"control in target", "GET /a\x01b HTTP/1.1\r\n\r\n", ErrInvalidURL},
		{"bad protocol", "GET / HTTX/1.1\r\n\r\n", ErrInvalidVersion},
		{"http2", "GET / HTTP/2.0\r\n\r\n", ErrInvalidVersion},
		{"space in field", "GET / HTTP/1.1\r\nBad Header: x\r\n\r\n", ErrInvalidHeaderToken},
		{"missing colon", "GET / HTTP/1.1\r\nNoColon\r\n\r\n", ErrInvalidHeaderToken},
		{"folded header", "GET / HTTP/1.1\r\nA: b\r\n c\r\n\r\n", ErrInvalidHeaderToken},
		{"control in value", "GET / HTTP/1.1\r\nA: b\x00c\r\n\r\n", ErrInvalidHeaderValue},
		{"bad content-length", "POST / HTTP/1.1\r\nContent-Length: 1x\r\n\r\n", ErrInvalidContentLength},
		{"conflicting content-length", "POST / HTTP/1.1\r\nContent-Length: 1\r\nContent-Length: 2\r\n\r\n", ErrInvalidContentLength},
		{"content-length and chunked", "POST / HTTP/1.1\r\nContent-Length: 1\r\nTransfer-Encoding: chunked\r\n\r\n", ErrUnexpectedContentLength},
		{"gzip only", "POST / HTTP/1.1\r\nTransfer-Encoding: gzip\r\n\r\n", ErrInvalidTransferEncoding},
		{"bad chunk size", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\nzz\r\n", ErrInvalidChunkSize},
		{"missing chunk crlf", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n1\r\nab", ErrMissingCarriageReturn},
		{"bare cr", "GET / HTTP/1.1\r\nA: b\rX\r\n\r\n", ErrMissingLineFeed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, p := newRecorder()

			_, err := p.Execute([]byte(tc.raw))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
			if len(r.metas) != 0 {
				t.Errorf("malformed message completed")
			}

			if _, again := p.Execute([]byte("GET / HTTP/1.1\r\n\r\n")); again != err {
				t.Errorf("error not sticky: %v", again)
			}
		})
	}
}

func TestParser_DuplicateEqualContentLength(t *testing.T) {
	r, p := newRecorder()

	raw := "POST / HTTP/1.1\r\nContent-Length: 2\r\nContent-Length: 2\r\n\r\nok"
	if _, err := p.Execute([]byte(raw)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(r.metas) != 1 {
		t.Errorf("completed %d messages, want 1", len(r.metas))
	}
}

func TestParser_CallbackErrorStops(t *testing.T) {
	r, p := newRecorder()
	r.failOn = "body"
	r.err = errors.New("stop")

	_, err := p.Execute([]byte("POST / HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc"))
	if err != r.err {
		t.Fatalf("expected callback error, got %v", err)
	}
	if errors.Is(err, ErrMalformed) {
		t.Errorf("callback error must not be reported as malformed")
	}
	if len(r.metas) != 0 {
		t.Errorf("message completed after callback error")
	}
}

func TestParseMethod(t *testing.T) {
	for m := MethodGet; m <= MethodPatch; m++ {
		if got := ParseMethod([]byte(m.String())); got != m {
			t.Errorf("ParseMethod(%q) = %v, want %v", m.String(), got, m)
		}
	}
	if ParseMethod([]byte("BREW")) != MethodUnknown {
		t.Errorf("expected MethodUnknown")
	}
	if MethodUnknown.String() != "" {
		t.Errorf("MethodUnknown.String() = %q", MethodUnknown.String())
	}
}

func BenchmarkParser_Execute(b *testing.B) {
	raw := []byte(helloRequest)
	r, p := newRecorder()
	b.ReportAllocs()
	b.SetBytes(int64(len(raw)))
	for i := 0; i < b.N; i++ {
		r.events = r.events[:0]
		r.metas = r.metas[:0]
		if _, err := p.Execute(raw); err != nil {
			b.Fatal(err)
		}
	}
}
