package httpd

import (
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// fakeConn records writes and closes in memory.
type fakeConn struct {
	segments  [][][]byte
	writes    [][]byte
	closes    int
	failWrite error
	async     bool
	pending   []func(error)
}

func (c *fakeConn) Writev(segments [][]byte, done func(error)) error {
	if c.failWrite != nil {
		return c.failWrite
	}

	copied := make([][]byte, len(segments))
	for i, s := range segments {
		copied[i] = append([]byte(nil), s...)
	}
	c.segments = append(c.segments, copied)
	c.writes = append(c.writes, bytes.Join(copied, nil))

	if c.async {
		c.pending = append(c.pending, done)
	} else {
		done(nil)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closes++
	return nil
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

type nopLoop struct{}

func (nopLoop) Run(ctx context.Context, s *Server) error {
	<-ctx.Done()
	return nil
}

// captured is a copy of a request taken inside the handler.
type captured struct {
	Method  string
	URI     string
	Headers [][2]string
	Body    string
	HasBody bool
}

func capture(req *Request) captured {
	c := captured{
		Method:  req.Method().String(),
		URI:     string(req.URI()),
		Body:    string(req.Body()),
		HasBody: req.HasBody(),
	}
	req.VisitHeaders(func(k, v []byte) {
		c.Headers = append(c.Headers, [2]string{string(k), string(v)})
	})
	return c
}

type recordingHandler struct {
	calls []captured
	reqs  []*Request
}

func (h *recordingHandler) Handle(conn Conn, req *Request) {
	h.calls = append(h.calls, capture(req))
	h.reqs = append(h.reqs, req)
}

func testConfig(increaseUnit, maxSize int) Config {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.RequestBufferIncreaseUnit = increaseUnit
	cfg.RequestBufferMaxSize = maxSize
	return cfg
}

func newTestServer(t *testing.T, cfg Config, h Handler) (*Server, *Metrics) {
	t.Helper()

	metrics := NewMetrics(prometheus.NewRegistry())
	srv, err := NewServer(cfg, nopLoop{}, h, WithMetrics(metrics))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return srv, metrics
}
