package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/ssungk/ehttpd/pkg/httpd"
)

// NetLoop serves connections with the standard net package: one reader
// goroutine per connection, handlers run on that goroutine.
type NetLoop struct {
	// Listener is used as is when set. Otherwise Run listens on the
	// server address with the configured backlog.
	Listener net.Listener

	// ReadBufferSize is the per-connection read size. Zero means 16KB.
	ReadBufferSize int

	mu    sync.Mutex
	conns map[*netConn]struct{}
	addr  net.Addr
	ready chan struct{}
}

// NewNetLoop creates a net based event loop.
func NewNetLoop() *NetLoop {
	return &NetLoop{}
}

// Addr blocks until the loop is listening and returns its address.
func (l *NetLoop) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-l.readyChan():
		return l.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *NetLoop) readyChan() chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready == nil {
		l.ready = make(chan struct{})
	}
	return l.ready
}

// Run accepts connections until ctx is done, then closes every open
// connection and waits for their goroutines.
func (l *NetLoop) Run(ctx context.Context, srv *httpd.Server) error {
	cfg := srv.Config()
	logger := srv.Logger()

	ln := l.Listener
	if ln == nil {
		var err error
		ln, err = Listen(cfg.Host, cfg.Port, cfg.Backlog)
		if err != nil {
			return err
		}
	}

	ready := l.readyChan()
	l.mu.Lock()
	l.addr = ln.Addr()
	l.conns = make(map[*netConn]struct{})
	l.mu.Unlock()
	close(ready)

	logger.Info("Listening", "addr", ln.Addr().String(), "loop", "net")

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	var wg sync.WaitGroup
	var runErr error
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logger.Warn("Accept failed", "error", err)
				continue
			}
			runErr = fmt.Errorf("accept: %w: %w", httpd.ErrTransport, err)
			break
		}

		conn := newNetConn(nc, srv.Metrics())
		l.track(conn, true)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer l.track(conn, false)
			l.serve(srv, conn)
		}()
	}

	_ = ln.Close()

	// 남은 연결 종료
	l.mu.Lock()
	for conn := range l.conns {
		_ = conn.Close()
	}
	l.mu.Unlock()

	wg.Wait()
	return runErr
}

func (l *NetLoop) track(conn *netConn, add bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if add {
		l.conns[conn] = struct{}{}
	} else {
		delete(l.conns, conn)
	}
}

// serve runs the read loop of one connection.
func (l *NetLoop) serve(srv *httpd.Server, conn *netConn) {
	session := srv.NewSession(conn)
	logger := srv.Logger().With("address", conn.RemoteAddr().String())

	size := l.ReadBufferSize
	if size <= 0 {
		size = ReadBufferSize16K
	}
	buf := getReadBuffer(size)
	defer putReadBuffer(buf)

	var cause error
	for {
		n, err := conn.mc.Read(buf)
		if n > 0 {
			if ferr := session.Feed(buf[:n]); ferr != nil {
				logger.Debug("Session ended", "error", ferr)
				cause = ferr
				break
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				cause = fmt.Errorf("read: %w: %w", httpd.ErrTransport, err)
				logger.Debug("Read error", "error", err)
			}
			break
		}
	}

	_ = conn.Close()
	session.Close(cause)

	metrics := srv.Metrics()
	metrics.AddBytesRead(conn.mc.BytesRead())
	metrics.AddBytesWritten(conn.mc.BytesWritten())
	logger.Debug("Connection closed",
		"bytesRead", conn.mc.BytesRead(), "bytesWritten", conn.mc.BytesWritten())
}

// netConn implements httpd.Conn on a net.Conn. Writes are serialized so
// handlers may respond from other goroutines.
type netConn struct {
	mc        *meteredConn
	metrics   *httpd.Metrics
	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newNetConn(nc net.Conn, metrics *httpd.Metrics) *netConn {
	return &netConn{
		mc:      newMeteredConn(nc),
		metrics: metrics,
	}
}

// Writev writes all segments before calling done.
func (c *netConn) Writev(segments [][]byte, done func(error)) error {
	bufs := make(net.Buffers, 0, len(segments))
	for _, s := range segments {
		if len(s) > 0 {
			bufs = append(bufs, s)
		}
	}

	c.mu.Lock()
	_, err := c.mc.WriteBuffers(&bufs)
	c.mu.Unlock()

	if err != nil {
		c.metrics.WriteFailed()
		_ = c.Close()
		err = fmt.Errorf("writev: %w: %w", httpd.ErrTransport, err)
	}
	done(err)
	return nil
}

// Close closes the underlying connection once.
func (c *netConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.mc.Close()
	})
	return c.closeErr
}

func (c *netConn) RemoteAddr() net.Addr {
	return c.mc.RemoteAddr()
}
