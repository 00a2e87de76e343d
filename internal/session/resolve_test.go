package session

import (
	"context"
	"errors"
	"net"
	"testing"
)

func TestResolver_Literal(t *testing.T) {
	r := &Resolver{lookup: func(context.Context, string, string) ([]net.IP, error) {
		t.Fatal("lookup should not run for a literal")
		return nil, nil
	}}

	ip, err := r.Resolve(context.Background(), "192.0.2.7")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !ip.Equal(net.IPv4(192, 0, 2, 7)) {
		t.Errorf("Resolve() = %v, want 192.0.2.7", ip)
	}
	if len(ip) != net.IPv4len {
		t.Errorf("len(ip) = %d, want %d", len(ip), net.IPv4len)
	}
}

func TestResolver_IPv6LiteralRejected(t *testing.T) {
	_, err := NewResolver().Resolve(context.Background(), "2001:db8::1")
	if !errors.Is(err, ErrNoIPv4) {
		t.Errorf("Resolve() error = %v, want ErrNoIPv4", err)
	}
}

func TestResolver_Lookup(t *testing.T) {
	var gotNetwork string
	r := &Resolver{lookup: func(_ context.Context, network, host string) ([]net.IP, error) {
		gotNetwork = network
		return []net.IP{net.ParseIP("2001:db8::1"), net.ParseIP("198.51.100.4")}, nil
	}}

	ip, err := r.Resolve(context.Background(), "example.test")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if gotNetwork != "ip4" {
		t.Errorf("network = %q, want ip4", gotNetwork)
	}
	if !ip.Equal(net.IPv4(198, 51, 100, 4)) {
		t.Errorf("Resolve() = %v, want 198.51.100.4", ip)
	}
}

func TestResolver_LookupFailure(t *testing.T) {
	lookupErr := errors.New("no such host")
	r := &Resolver{lookup: func(context.Context, string, string) ([]net.IP, error) {
		return nil, lookupErr
	}}

	if _, err := r.Resolve(context.Background(), "missing.test"); !errors.Is(err, lookupErr) {
		t.Errorf("Resolve() error = %v, want wrapped lookup error", err)
	}
}

func TestResolver_NoIPv4(t *testing.T) {
	r := &Resolver{lookup: func(context.Context, string, string) ([]net.IP, error) {
		return []net.IP{net.ParseIP("2001:db8::2")}, nil
	}}

	if _, err := r.Resolve(context.Background(), "v6only.test"); !errors.Is(err, ErrNoIPv4) {
		t.Errorf("Resolve() error = %v, want ErrNoIPv4", err)
	}
}
