package main

import (
	"bytes"
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/ssungk/ehttpd/pkg/httpd"
)

var rawHello = []byte("HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 12\r\n\r\nHello World.")

// router dispatches on the request path. It runs on the event loop, so
// only /work leaves it.
type router struct {
	logger *slog.Logger
	limits httpd.ResponseLimits
}

func newRouter(logger *slog.Logger, limits httpd.ResponseLimits) *router {
	return &router{logger: logger, limits: limits}
}

func (rt *router) Handle(conn httpd.Conn, req *httpd.Request) {
	switch string(requestPath(req.URI())) {
	case "/":
		rt.respond(conn, 200, "text/plain", []byte("Hello World."))
	case "/raw":
		// 응답 빌더 없이 정적 바이트를 바로 전송
		if err := conn.Writev([][]byte{rawHello}, func(error) {}); err != nil {
			rt.logger.Debug("Raw write failed", "error", err)
		}
	case "/echo":
		rt.echo(conn, req)
	case "/work":
		// 핸들러 반환 후 버퍼가 해제되므로 복제본을 넘김
		clone := req.Clone()
		go rt.echo(conn, clone)
	default:
		rt.respond(conn, 404, "text/plain", []byte("Not Found"))
	}
}

type echoHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type echoReply struct {
	Method    string       `json:"method"`
	URI       string       `json:"uri"`
	Proto     string       `json:"proto"`
	KeepAlive bool         `json:"keep_alive"`
	Headers   []echoHeader `json:"headers"`
	Body      string       `json:"body,omitempty"`
}

func newEchoReply(req *httpd.Request) echoReply {
	reply := echoReply{
		Method:    req.Method().String(),
		URI:       string(req.URI()),
		Proto:     protoString(req.ProtoMajor(), req.ProtoMinor()),
		KeepAlive: req.KeepAlive(),
		Headers:   make([]echoHeader, 0, req.NumHeaders()),
		Body:      string(req.Body()),
	}
	req.VisitHeaders(func(key, value []byte) {
		reply.Headers = append(reply.Headers, echoHeader{Key: string(key), Value: string(value)})
	})
	return reply
}

func (rt *router) echo(conn httpd.Conn, req *httpd.Request) {
	body, err := json.Marshal(newEchoReply(req))
	if err != nil {
		rt.logger.Error("Echo encode failed", "error", err)
		rt.respond(conn, 500, "text/plain", []byte("Internal Server Error"))
		return
	}
	rt.respond(conn, 200, "application/json", body)
}

func (rt *router) respond(conn httpd.Conn, status int, contentType string, body []byte) {
	resp, err := httpd.NewResponse(conn, rt.limits)
	if err != nil {
		rt.logger.Error("Response create failed", "error", err)
		return
	}
	if err := resp.SetStatus(status); err != nil {
		resp.Discard()
		rt.logger.Error("Invalid status", "status", status, "error", err)
		return
	}
	if err := resp.AddHeader("Content-Type: " + contentType); err != nil {
		resp.Discard()
		rt.logger.Warn("Response header rejected", "error", err)
		return
	}
	if err := resp.AppendBody(body); err != nil {
		resp.Discard()
		rt.logger.Warn("Response body rejected", "error", err)
		return
	}
	if err := resp.Finish(); err != nil {
		rt.logger.Debug("Response write failed", "error", err)
	}
}

// requestPath strips the query from an origin-form target.
func requestPath(uri []byte) []byte {
	if i := bytes.IndexByte(uri, '?'); i >= 0 {
		return uri[:i]
	}
	return uri
}

func protoString(major, minor int) string {
	return "HTTP/" + string(rune('0'+major)) + "." + string(rune('0'+minor))
}
