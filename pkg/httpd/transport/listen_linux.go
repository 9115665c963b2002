//go:build linux

package transport

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// Listen opens a TCP listener on host:port with an explicit accept
// backlog. A backlog of zero uses SOMAXCONN.
func Listen(host string, port, backlog int) (net.Listener, error) {
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return nil, fmt.Errorf("listen: invalid host %q: %w", host, err)
	}
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}

	family := unix.AF_INET
	var sa unix.Sockaddr
	if ip.Is4() || ip.Is4In6() {
		sa = &unix.SockaddrInet4{Port: port, Addr: ip.Unmap().As4()}
	} else {
		family = unix.AF_INET6
		sa = &unix.SockaddrInet6{Port: port, Addr: ip.As16()}
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("listen: socket: %w", err)
	}

	if err := setupListener(fd, sa, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	// FileListener는 fd를 복제하므로 원본 파일은 닫음
	f := os.NewFile(uintptr(fd), "tcp:"+net.JoinHostPort(host, strconv.Itoa(port)))
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return ln, nil
}

func setupListener(fd int, sa unix.Sockaddr, backlog int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("listen: SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fmt.Errorf("listen: bind: %w", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}
