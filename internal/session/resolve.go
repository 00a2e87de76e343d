package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultResolveTimeout bounds a single name lookup.
const DefaultResolveTimeout = 5 * time.Second

// ErrNoIPv4 is returned when a host has no IPv4 address.
var ErrNoIPv4 = errors.New("no IPv4 address")

// Resolver turns the user-supplied target into an IPv4 address using the
// system resolver.
type Resolver struct {
	Timeout time.Duration

	lookup func(ctx context.Context, network, host string) ([]net.IP, error)
}

// NewResolver returns a resolver backed by net.DefaultResolver.
func NewResolver() *Resolver {
	return &Resolver{
		Timeout: DefaultResolveTimeout,
		lookup:  net.DefaultResolver.LookupIP,
	}
}

// Resolve returns the first IPv4 address of host. IPv4 literals are
// returned without a lookup.
func (r *Resolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return nil, fmt.Errorf("resolve %s: %w", host, ErrNoIPv4)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	ips, err := r.lookup(ctx, "ip4", host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("resolve %s: %w", host, ErrNoIPv4)
}
