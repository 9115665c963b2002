package httpd

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"github.com/ssungk/ehttpd/pkg/httpd/buf"
)

const (
	DefaultHost                = "0.0.0.0"
	DefaultPort                = 8080
	DefaultBacklog             = 511
	DefaultBufferIncreaseUnit  = 1024
	DefaultBufferMaxSize       = 1 << 20
	DefaultResponseHeaderBytes = 64 << 10
	DefaultResponseBodyBytes   = 64 << 20
)

// ResponseLimits bounds the header block and body of a Response.
// Zero means unlimited.
type ResponseLimits struct {
	MaxHeaderBytes int `json:"max_header_bytes"`
	MaxBodyBytes   int `json:"max_body_bytes"`
}

// DefaultResponseLimits returns the limits used when none are configured.
func DefaultResponseLimits() ResponseLimits {
	return ResponseLimits{
		MaxHeaderBytes: DefaultResponseHeaderBytes,
		MaxBodyBytes:   DefaultResponseBodyBytes,
	}
}

// Config holds server configuration
type Config struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Backlog int    `json:"backlog"`

	// 요청 버퍼 증가 단위 (0 = 필요한 만큼만)
	RequestBufferIncreaseUnit int `json:"request_buffer_increase_unit"`
	RequestBufferMaxSize      int `json:"request_buffer_max_size"`

	Response ResponseLimits `json:"response"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Host:                      DefaultHost,
		Port:                      DefaultPort,
		Backlog:                   DefaultBacklog,
		RequestBufferIncreaseUnit: DefaultBufferIncreaseUnit,
		RequestBufferMaxSize:      DefaultBufferMaxSize,
		Response:                  DefaultResponseLimits(),
	}
}

// Addr returns the listen address in host:port form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BufferLimits returns the request buffer limits.
func (c Config) BufferLimits() buf.Limits {
	return buf.Limits{
		IncreaseUnit: c.RequestBufferIncreaseUnit,
		MaxSize:      c.RequestBufferMaxSize,
	}
}

// Validate checks the configuration before any socket is opened.
func (c Config) Validate() error {
	if err := c.BufferLimits().Validate(); err != nil {
		return fmt.Errorf("request buffer (unit=%d, max=%d): %w: %w",
			c.RequestBufferIncreaseUnit, c.RequestBufferMaxSize, ErrInvalidConfig, err)
	}
	if _, err := netip.ParseAddr(c.Host); err != nil {
		return fmt.Errorf("host %q: %w: %w", c.Host, ErrInvalidConfig, err)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d: %w", c.Port, ErrInvalidConfig)
	}
	if c.Backlog < 0 {
		return fmt.Errorf("backlog %d: %w", c.Backlog, ErrInvalidConfig)
	}
	if c.Response.MaxHeaderBytes < 0 || c.Response.MaxBodyBytes < 0 {
		return fmt.Errorf("response limits %+v: %w", c.Response, ErrInvalidConfig)
	}
	return nil
}
