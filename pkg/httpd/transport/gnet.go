// Package transport provides the event loops that move bytes between
// sockets and httpd sessions.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/panjf2000/gnet/v2"

	"github.com/ssungk/ehttpd/pkg/httpd"
)

// DefaultStopTimeout bounds how long GnetLoop waits for the engine to stop.
const DefaultStopTimeout = 5 * time.Second

// GnetLoop drives sessions from gnet's reactor. Handlers run on the event
// loop goroutine that owns the connection.
type GnetLoop struct {
	gnet.BuiltinEventEngine

	// Multicore starts one event loop per CPU.
	Multicore bool
	// ReusePort sets SO_REUSEPORT on the listener.
	ReusePort bool
	// StopTimeout bounds engine shutdown. Zero means DefaultStopTimeout.
	StopTimeout time.Duration

	srv    *httpd.Server
	engine gnet.Engine
	booted chan struct{}
}

// NewGnetLoop creates a gnet event loop using every core.
func NewGnetLoop() *GnetLoop {
	return &GnetLoop{Multicore: true, ReusePort: true}
}

// Run starts the engine and blocks until ctx is done or the engine fails.
// The backlog is left to the kernel default since gnet does not expose it.
func (l *GnetLoop) Run(ctx context.Context, srv *httpd.Server) error {
	l.srv = srv
	l.booted = make(chan struct{})

	addr := "tcp://" + srv.Config().Addr()
	options := []gnet.Option{
		gnet.WithMulticore(l.Multicore),
		gnet.WithReusePort(l.ReusePort),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- gnet.Run(l, addr, options...)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			err = net.ErrClosed
		}
		return fmt.Errorf("gnet: %w", err)
	case <-l.booted:
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gnet: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := l.StopTimeout
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := l.engine.Stop(stopCtx); err != nil {
		srv.Logger().Warn("gnet engine stop failed", "error", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("gnet: %w", err)
	}
	return nil
}

// OnBoot records the engine so Run can stop it.
func (l *GnetLoop) OnBoot(eng gnet.Engine) gnet.Action {
	l.engine = eng
	l.srv.Logger().Info("Listening", "addr", l.srv.Config().Addr(), "loop", "gnet",
		"multicore", l.Multicore)
	close(l.booted)
	return gnet.None
}

// OnOpen attaches a session to the connection.
func (l *GnetLoop) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	conn := &gnetConn{c: c, metrics: l.srv.Metrics()}
	c.SetContext(l.srv.NewSession(conn))
	return nil, gnet.None
}

// OnTraffic feeds everything buffered for c into its session. The slice
// from Next is only valid here; the session copies it before returning.
func (l *GnetLoop) OnTraffic(c gnet.Conn) gnet.Action {
	session, ok := c.Context().(*httpd.Session)
	if !ok {
		return gnet.Close
	}

	data, err := c.Next(-1)
	if err != nil {
		return gnet.Close
	}
	l.srv.Metrics().AddBytesRead(uint64(len(data)))

	if err := session.Feed(data); err != nil {
		// 세션이 이미 연결 종료를 요청함
		l.srv.Logger().Debug("Session ended", "address", remoteAddrString(c), "error", err)
	}
	return gnet.None
}

// OnClose tells the session the connection is gone.
func (l *GnetLoop) OnClose(c gnet.Conn, err error) gnet.Action {
	if session, ok := c.Context().(*httpd.Session); ok {
		session.Close(err)
	}
	c.SetContext(nil)
	return gnet.None
}

// gnetConn implements httpd.Conn on a gnet connection.
type gnetConn struct {
	c       gnet.Conn
	metrics *httpd.Metrics
}

// Writev queues the segments on the event loop. done runs on the loop
// once the kernel has taken the bytes or the write failed.
func (c *gnetConn) Writev(segments [][]byte, done func(error)) error {
	parts := make([][]byte, 0, len(segments))
	var total int
	for _, s := range segments {
		if len(s) > 0 {
			parts = append(parts, s)
			total += len(s)
		}
	}

	err := c.c.AsyncWritev(parts, func(_ gnet.Conn, err error) error {
		if err != nil {
			c.metrics.WriteFailed()
		} else {
			c.metrics.AddBytesWritten(uint64(total))
		}
		done(err)
		return nil
	})
	if err != nil {
		return fmt.Errorf("async writev: %w", err)
	}
	return nil
}

func (c *gnetConn) Close() error {
	return c.c.Close()
}

func (c *gnetConn) RemoteAddr() net.Addr {
	return c.c.RemoteAddr()
}

func remoteAddrString(c gnet.Conn) string {
	if addr := c.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
