//go:build unix

package icmp

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Socket is a raw ICMPv4 socket. Unlike net.IPConn.ReadFrom, reads return
// the whole datagram including the IPv4 header, so the TTL stays visible
// to the codec.
type Socket struct {
	conn *net.IPConn
	raw  syscall.RawConn
}

// Listen opens a raw ICMPv4 socket on all local addresses.
// It requires CAP_NET_RAW or an effective UID of 0.
func Listen() (*Socket, error) {
	conn, err := net.ListenIP("ip4:icmp", &net.IPAddr{IP: net.IPv4zero})
	if err != nil {
		return nil, fmt.Errorf("create raw ICMP socket: %w", err)
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("access raw ICMP socket: %w", err)
	}

	return &Socket{conn: conn, raw: raw}, nil
}

// WriteTo sends b to dst. The kernel prepends the IPv4 header.
func (s *Socket) WriteTo(b []byte, dst net.IP) error {
	ip4 := dst.To4()
	if ip4 == nil {
		return fmt.Errorf("send ICMP: %v is not an IPv4 address", dst)
	}
	if _, err := s.conn.WriteToIP(b, &net.IPAddr{IP: ip4}); err != nil {
		return fmt.Errorf("send ICMP: %w", err)
	}
	return nil
}

// ReadFrom reads one datagram, IPv4 header included, into b. It honors the
// read deadline set with SetReadDeadline.
func (s *Socket) ReadFrom(b []byte) (int, net.IP, error) {
	var (
		n    int
		from unix.Sockaddr
		rerr error
	)

	err := s.raw.Read(func(fd uintptr) bool {
		n, from, rerr = unix.Recvfrom(int(fd), b, 0)
		return !errors.Is(rerr, unix.EAGAIN) && !errors.Is(rerr, unix.EWOULDBLOCK)
	})
	if err != nil {
		return 0, nil, err
	}
	if rerr != nil {
		return 0, nil, fmt.Errorf("receive ICMP: %w", rerr)
	}

	var src net.IP
	if sa, ok := from.(*unix.SockaddrInet4); ok {
		src = net.IPv4(sa.Addr[0], sa.Addr[1], sa.Addr[2], sa.Addr[3])
	}
	return n, src, nil
}

// SetReadDeadline bounds the next ReadFrom. A deadline in the past unblocks
// a pending read.
func (s *Socket) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// Close releases the socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}
