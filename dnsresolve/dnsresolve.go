// Package dnsresolve implements the synchronous address resolution
// described in spec §4's DnsFacade: resolve a host string to an address
// set, nothing more. client.Client calls it on every dial (the initial
// Connect and each auto-reconnect attempt) and server.Server once per
// Start; it is never called on the per-read or per-write path.
package dnsresolve

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/singleflight"
)

var group singleflight.Group

// Resolve looks up host (a bare hostname, dotted quad, or literal IPv6
// address — no port) and returns every address the resolver reports, in
// the order the resolver returned them. Concurrent calls for the same host
// are coalesced into a single underlying lookup via singleflight, since
// several clients often dial the same host at once.
func Resolve(ctx context.Context, host string) ([]net.IP, error) {
	v, err, _ := group.Do(host, func() (interface{}, error) {
		addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", host, err)
		}
		ips := make([]net.IP, len(addrs))
		for i, a := range addrs {
			ips[i] = a.IP
		}
		return ips, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]net.IP), nil
}

// ResolveOne is a convenience wrapper that returns the first resolved
// address, the common case for a Client connecting to a single host.
func ResolveOne(ctx context.Context, host string) (net.IP, error) {
	ips, err := Resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolving %q: no addresses returned", host)
	}
	return ips[0], nil
}
