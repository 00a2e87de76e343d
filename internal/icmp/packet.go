package icmp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

const (
	// ProtocolICMP is the IANA protocol number for ICMPv4.
	ProtocolICMP = 1

	// HeaderLen is the size of an ICMP echo header. Requests carry no payload,
	// so this is also the size of every packet we transmit.
	HeaderLen = 8
)

// Validation errors returned by ParseEchoReply. They describe datagrams the
// session should skip, not failures of the socket.
var (
	ErrTooShort           = errors.New("icmp: datagram too short")
	ErrWrongType          = errors.New("icmp: not an echo reply")
	ErrIdentifierMismatch = errors.New("icmp: identifier mismatch")
)

// EchoRequest is an outgoing ICMP echo request.
type EchoRequest struct {
	ID       uint16
	Seq      uint16
	Checksum uint16
}

// NewEchoRequest populates a request and computes its checksum.
func NewEchoRequest(id, seq uint16) *EchoRequest {
	r := &EchoRequest{ID: id, Seq: seq}
	r.Checksum = Checksum(r.Marshal())
	return r
}

// Marshal serializes the request in wire order.
func (r *EchoRequest) Marshal() []byte {
	b := make([]byte, HeaderLen)
	b[0] = byte(ipv4.ICMPTypeEcho)
	b[1] = 0
	binary.BigEndian.PutUint16(b[2:4], r.Checksum)
	binary.BigEndian.PutUint16(b[4:6], r.ID)
	binary.BigEndian.PutUint16(b[6:8], r.Seq)
	return b
}

// BuildEchoRequest returns the wire bytes of an echo request.
func BuildEchoRequest(id, seq uint16) []byte {
	return NewEchoRequest(id, seq).Marshal()
}

// EchoReply is the parsed view of an inbound echo reply.
type EchoReply struct {
	HeaderLen int // IPv4 header length in bytes
	Type      ipv4.ICMPType
	Code      int
	ID        uint16
	Seq       uint16
	TTL       int
	Len       int // bytes following the IP header
}

// ParseEchoReply strips the IPv4 header from raw and validates the ICMP
// message that follows as an echo reply addressed to id.
func ParseEchoReply(raw []byte, id uint16) (*EchoReply, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty datagram", ErrTooShort)
	}

	hlen := int(raw[0]&0x0f) << 2
	if hlen < ipv4.HeaderLen {
		return nil, fmt.Errorf("%w: IP header length %d", ErrTooShort, hlen)
	}
	if len(raw) < hlen+HeaderLen {
		return nil, fmt.Errorf("%w: %d bytes after %d-byte IP header", ErrTooShort, len(raw)-hlen, hlen)
	}

	payload := raw[hlen:]
	if t := ipv4.ICMPType(payload[0]); t != ipv4.ICMPTypeEchoReply {
		return nil, fmt.Errorf("%w: type %v", ErrWrongType, t)
	}

	msg, err := icmp.ParseMessage(ProtocolICMP, payload)
	if err != nil {
		return nil, fmt.Errorf("parse ICMP: %w", err)
	}
	echo, ok := msg.Body.(*icmp.Echo)
	if !ok {
		return nil, fmt.Errorf("%w: body %T", ErrWrongType, msg.Body)
	}

	if uint16(echo.ID) != id {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrIdentifierMismatch, echo.ID, id)
	}

	return &EchoReply{
		HeaderLen: hlen,
		Type:      ipv4.ICMPTypeEchoReply,
		Code:      msg.Code,
		ID:        uint16(echo.ID),
		Seq:       uint16(echo.Seq),
		TTL:       int(raw[8]),
		Len:       len(payload),
	}, nil
}

// ProcessIdentifier returns the echo identifier for this process: its PID
// truncated to 16 bits.
func ProcessIdentifier() uint16 {
	return uint16(os.Getpid() & 0xffff)
}
