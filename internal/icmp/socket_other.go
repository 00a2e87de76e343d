//go:build !unix

package icmp

import (
	"errors"
	"net"
	"time"
)

var errUnsupported = errors.New("raw ICMP sockets are not supported on this platform")

// Socket is unavailable on this platform.
type Socket struct{}

// Listen always fails on this platform.
func Listen() (*Socket, error) {
	return nil, errUnsupported
}

func (s *Socket) WriteTo(b []byte, dst net.IP) error { return errUnsupported }
func (s *Socket) ReadFrom(b []byte) (int, net.IP, error) { return 0, nil, errUnsupported }
func (s *Socket) SetReadDeadline(t time.Time) error { return errUnsupported }
func (s *Socket) Close() error { return nil }
