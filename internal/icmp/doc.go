// Package icmp implements the ICMPv4 echo protocol engine used by echoping.
//
// It covers three concerns:
//
//   - the RFC 1071 Internet checksum (Checksum, VerifyChecksum)
//   - the echo packet codec (BuildEchoRequest, ParseEchoReply)
//   - a raw socket that returns whole IPv4 datagrams (Socket)
//
// # Wire format
//
// Requests are bare 8-byte headers as defined by RFC 792:
//
//	0       8       16              31
//	+-------+-------+---------------+
//	| type  | code  |   checksum    |
//	+-------+-------+---------------+
//	|  identifier   |   sequence    |
//	+---------------+---------------+
//
// Replies arrive on the raw socket with the IPv4 header still attached.
// ParseEchoReply strips it using the IHL field and rejects datagrams that
// are too short, are not echo replies, or carry another process's identifier.
//
// # Privileges
//
// Raw ICMP sockets need root or CAP_NET_RAW:
//
//	sudo setcap cap_net_raw+ep ./echoping
package icmp
