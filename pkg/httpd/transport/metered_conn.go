package transport

import (
	"net"
	"sync/atomic"
)

// meteredConn wraps a connection and meters all bytes read and written
type meteredConn struct {
	net.Conn
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
}

// newMeteredConn creates a new metered connection
func newMeteredConn(conn net.Conn) *meteredConn {
	return &meteredConn{Conn: conn}
}

// Read reads data into p and meters the bytes read
func (mc *meteredConn) Read(p []byte) (int, error) {
	n, err := mc.Conn.Read(p)
	if n > 0 {
		mc.bytesRead.Add(uint64(n))
	}
	return n, err
}

// Write writes data from p and meters the bytes written
func (mc *meteredConn) Write(p []byte) (int, error) {
	n, err := mc.Conn.Write(p)
	if n > 0 {
		mc.bytesWritten.Add(uint64(n))
	}
	return n, err
}

// WriteBuffers writes bufs with a single writev where the connection
// supports it and meters the bytes written. bufs is consumed.
func (mc *meteredConn) WriteBuffers(bufs *net.Buffers) (int64, error) {
	// 원본 연결에 직접 써야 writev 경로를 탐
	n, err := bufs.WriteTo(mc.Conn)
	if n > 0 {
		mc.bytesWritten.Add(uint64(n))
	}
	return n, err
}

// BytesRead returns the total number of bytes read
func (mc *meteredConn) BytesRead() uint64 {
	return mc.bytesRead.Load()
}

// BytesWritten returns the total number of bytes written
func (mc *meteredConn) BytesWritten() uint64 {
	return mc.bytesWritten.Load()
}
