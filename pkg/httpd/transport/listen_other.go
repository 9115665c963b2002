//go:build !linux

package transport

import (
	"fmt"
	"net"
	"strconv"
)

// Listen opens a TCP listener on host:port. The backlog is left to the
// platform default.
func Listen(host string, port, backlog int) (net.Listener, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return ln, nil
}
