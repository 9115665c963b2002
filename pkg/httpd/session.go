package httpd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ssungk/ehttpd/pkg/httpd/parser"
)

// Session is the request side of one connection. It is driven by a
// single event loop goroutine and is not safe for concurrent use.
type Session struct {
	server *Server
	conn   Conn
	parser *parser.Parser
	asm    *assembler
	logger *slog.Logger

	closed bool // 연결 종료 요청됨
	ended  bool // 전송 계층이 연결 해제를 알림
}

func newSession(server *Server, conn Conn) *Session {
	s := &Session{
		server: server,
		conn:   conn,
		logger: server.logger.With("address", remoteAddr(conn)),
	}
	s.asm = newAssembler(server.BufferLimits(), nil, s.deliver)
	s.parser = parser.New(s.asm)
	s.asm.info = s.parser

	server.metrics.sessionOpened()
	s.logger.Debug("Client connected")
	return s
}

// Feed parses bytes received on the connection. Completed requests are
// handed to the handler before Feed returns. Any error is fatal: the
// connection has already been asked to close and later data is dropped.
func (s *Session) Feed(data []byte) error {
	if s.closed {
		return ErrClosed
	}

	s.asm.setLimits(s.server.BufferLimits())

	_, err := s.parser.Execute(data)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrOverflow):
		s.server.metrics.overflowed()
		s.logger.Warn("Request exceeds buffer limit", "maxSize", s.server.BufferLimits().MaxSize)
	case errors.Is(err, parser.ErrUpgrade):
		s.logger.Info("Protocol upgrade not supported, closing")
		err = fmt.Errorf("session: %w", err)
	case errors.Is(err, parser.ErrMalformed):
		s.server.metrics.malformedRequest()
		s.logger.Warn("Malformed request", "error", err)
		err = fmt.Errorf("%w: %w", ErrMalformed, err)
	default:
		s.logger.Error("Request processing failed", "error", err)
	}

	s.shutdown()
	return err
}

// Close tells the session the connection is gone. A message still being
// assembled is discarded. It is safe to call more than once.
func (s *Session) Close(err error) {
	if s.ended {
		return
	}
	s.ended = true
	s.closed = true
	s.asm.abort()
	s.server.metrics.sessionClosed()

	if err != nil {
		s.logger.Debug("Client disconnected", "error", err)
	} else {
		s.logger.Debug("Client disconnected")
	}
}

// Closed reports whether the session no longer accepts data.
func (s *Session) Closed() bool {
	return s.closed
}

// Conn returns the connection the session writes to.
func (s *Session) Conn() Conn {
	return s.conn
}

// shutdown closes the connection once and drops in-progress state.
func (s *Session) shutdown() {
	if s.closed {
		return
	}
	s.closed = true
	s.asm.abort()
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("Close failed", "error", err)
	}
}

func (s *Session) deliver(req *Request) {
	s.server.metrics.requestCompleted(req.Size())
	s.server.handler.Handle(s.conn, req)
}

func remoteAddr(conn Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
