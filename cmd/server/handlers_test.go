package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/ssungk/ehttpd/pkg/httpd"
)

// recordConn captures gathered writes.
type recordConn struct {
	mu     sync.Mutex
	out    bytes.Buffer
	closed bool
	wrote  chan struct{}
}

func newRecordConn() *recordConn {
	return &recordConn{wrote: make(chan struct{}, 8)}
}

func (c *recordConn) Writev(segments [][]byte, done func(error)) error {
	c.mu.Lock()
	for _, s := range segments {
		c.out.Write(s)
	}
	c.mu.Unlock()
	done(nil)
	c.wrote <- struct{}{}
	return nil
}

func (c *recordConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *recordConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

func (c *recordConn) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

type nopLoop struct{}

func (nopLoop) Run(ctx context.Context, _ *httpd.Server) error {
	<-ctx.Done()
	return nil
}

func serveOnce(t *testing.T, raw string) *recordConn {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := httpd.DefaultConfig()
	srv, err := httpd.NewServer(cfg, nopLoop{}, newRouter(logger, cfg.Response), httpd.WithLogger(logger))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	conn := newRecordConn()
	session := srv.NewSession(conn)
	if err := session.Feed([]byte(raw)); err != nil {
		t.Fatalf("Feed failed: %v", err)
	}

	select {
	case <-conn.wrote:
	case <-time.After(5 * time.Second):
		t.Fatal("no response written")
	}
	return conn
}

func splitResponse(t *testing.T, resp string) (head, body string) {
	t.Helper()
	head, body, ok := strings.Cut(resp, "\r\n\r\n")
	if !ok {
		t.Fatalf("response without header terminator: %q", resp)
	}
	return head, body
}

func TestRouter_Hello(t *testing.T) {
	conn := serveOnce(t, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")

	want := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 12\r\n\r\nHello World."
	if got := conn.String(); got != want {
		t.Errorf("response = %q, want %q", got, want)
	}
}

func TestRouter_RawMatchesHello(t *testing.T) {
	raw := serveOnce(t, "GET /raw HTTP/1.1\r\n\r\n").String()
	built := serveOnce(t, "GET /?q=1 HTTP/1.1\r\n\r\n").String()

	if raw != built {
		t.Errorf("raw = %q, built = %q", raw, built)
	}
}

func TestRouter_NotFound(t *testing.T) {
	conn := serveOnce(t, "GET /missing HTTP/1.1\r\n\r\n")

	if !strings.HasPrefix(conn.String(), "HTTP/1.1 404 OK\r\n") {
		t.Errorf("response = %q", conn.String())
	}
}

func TestRouter_Echo(t *testing.T) {
	for _, path := range []string{"/echo", "/work"} {
		t.Run(path, func(t *testing.T) {
			conn := serveOnce(t, "POST "+path+"?a=b HTTP/1.1\r\nHost: example\r\nX-Dup: 1\r\nX-Dup: 2\r\nContent-Length: 4\r\n\r\nping")

			head, body := splitResponse(t, conn.String())
			if !strings.Contains(head, "Content-Type: application/json") {
				t.Errorf("header = %q", head)
			}

			var got echoReply
			if err := json.Unmarshal([]byte(body), &got); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			want := echoReply{
				Method:    "POST",
				URI:       path + "?a=b",
				Proto:     "HTTP/1.1",
				KeepAlive: true,
				Headers: []echoHeader{
					{"Host", "example"},
					{"X-Dup", "1"},
					{"X-Dup", "2"},
					{"Content-Length", "4"},
				},
				Body: "ping",
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("echo mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequestPath(t *testing.T) {
	cases := map[string]string{
		"/":        "/",
		"/a?b=c":   "/a",
		"/a?":      "/a",
		"*":        "*",
		"/x/y?z?w": "/x/y",
	}
	for in, want := range cases {
		if got := string(requestPath([]byte(in))); got != want {
			t.Errorf("requestPath(%q) = %q, want %q", in, got, want)
		}
	}
}
