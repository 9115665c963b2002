package httpd

import (
	"context"
	"net"
)

// Conn is the write side of one client connection, provided by the
// event loop.
type Conn interface {
	// Writev submits segments as one gathered write. done is called once
	// the write has finished or failed. If Writev itself returns an error
	// done is never called.
	Writev(segments [][]byte, done func(error)) error

	// Close schedules the connection to be closed.
	Close() error

	RemoteAddr() net.Addr
}

// Handler serves completed requests. It runs synchronously on the
// connection's event loop and must not keep req after returning.
type Handler interface {
	Handle(conn Conn, req *Request)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(conn Conn, req *Request)

// Handle calls f(conn, req).
func (f HandlerFunc) Handle(conn Conn, req *Request) {
	f(conn, req)
}

// EventLoop accepts connections and feeds their bytes to sessions created
// by the server. Run blocks until ctx is done or the loop fails.
type EventLoop interface {
	Run(ctx context.Context, s *Server) error
}
