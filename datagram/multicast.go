package datagram

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// multicastGroup tracks joined groups so Close can leave them all.
type multicastGroup struct {
	p4 *ipv4.PacketConn
	p6 *ipv6.PacketConn

	v4Groups map[string]*net.UDPAddr
	v6Groups map[string]*net.UDPAddr
}

func (e *Engine) ensureMulticast() *multicastGroup {
	if e.multicast == nil {
		e.multicast = &multicastGroup{
			v4Groups: make(map[string]*net.UDPAddr),
			v6Groups: make(map[string]*net.UDPAddr),
		}
	}
	return e.multicast
}

// JoinMulticast joins the IPv4 ASM (224.0.0.0/4) or IPv6 multicast group at
// the given address, using golang.org/x/net/ipv4 or .../ipv6's JoinGroup —
// the IGMPv2/v3 (or MLD) membership report is sent by the kernel once
// JoinGroup succeeds.
func (e *Engine) JoinMulticast(group string) error {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(group, "0"))
	if err != nil {
		return fmt.Errorf("datagram: resolving multicast group %s: %w", group, err)
	}
	if addr.IP == nil || !addr.IP.IsMulticast() {
		return fmt.Errorf("datagram: %s is not a multicast address", group)
	}

	mg := e.ensureMulticast()

	if ip4 := addr.IP.To4(); ip4 != nil {
		if mg.p4 == nil {
			mg.p4 = ipv4.NewPacketConn(e.conn)
		}
		iface, ifErr := defaultMulticastInterface()
		if ifErr != nil {
			return fmt.Errorf("datagram: finding multicast interface: %w", ifErr)
		}
		if err := mg.p4.JoinGroup(iface, &net.UDPAddr{IP: ip4}); err != nil {
			return fmt.Errorf("datagram: joining ipv4 group %s: %w", group, err)
		}
		mg.v4Groups[group] = addr
		return nil
	}

	if mg.p6 == nil {
		mg.p6 = ipv6.NewPacketConn(e.conn)
	}
	iface, ifErr := defaultMulticastInterface()
	if ifErr != nil {
		return fmt.Errorf("datagram: finding multicast interface: %w", ifErr)
	}
	if err := mg.p6.JoinGroup(iface, &net.UDPAddr{IP: addr.IP}); err != nil {
		return fmt.Errorf("datagram: joining ipv6 group %s: %w", group, err)
	}
	mg.v6Groups[group] = addr
	return nil
}

// LeaveMulticast leaves a previously-joined group.
func (e *Engine) LeaveMulticast(group string) error {
	if e.multicast == nil {
		return fmt.Errorf("datagram: not a member of any multicast group")
	}

	iface, ifErr := defaultMulticastInterface()
	if ifErr != nil {
		return fmt.Errorf("datagram: finding multicast interface: %w", ifErr)
	}

	if addr, ok := e.multicast.v4Groups[group]; ok {
		if err := e.multicast.p4.LeaveGroup(iface, &net.UDPAddr{IP: addr.IP}); err != nil {
			return fmt.Errorf("datagram: leaving ipv4 group %s: %w", group, err)
		}
		delete(e.multicast.v4Groups, group)
		return nil
	}
	if addr, ok := e.multicast.v6Groups[group]; ok {
		if err := e.multicast.p6.LeaveGroup(iface, &net.UDPAddr{IP: addr.IP}); err != nil {
			return fmt.Errorf("datagram: leaving ipv6 group %s: %w", group, err)
		}
		delete(e.multicast.v6Groups, group)
		return nil
	}
	return fmt.Errorf("datagram: not a member of group %s", group)
}

func (mg *multicastGroup) leaveAll() error {
	for group, addr := range mg.v4Groups {
		if mg.p4 != nil {
			_ = mg.p4.LeaveGroup(nil, &net.UDPAddr{IP: addr.IP})
		}
		delete(mg.v4Groups, group)
	}
	for group, addr := range mg.v6Groups {
		if mg.p6 != nil {
			_ = mg.p6.LeaveGroup(nil, &net.UDPAddr{IP: addr.IP})
		}
		delete(mg.v6Groups, group)
	}
	return nil
}

// defaultMulticastInterface picks the first interface that supports
// multicast and is up, or nil (meaning "let the kernel choose") if none is
// found — a loopback-only test host, for instance, still has "lo" flagged
// multicast-capable on most platforms.
func defaultMulticastInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		iface := ifaces[i]
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		return &iface, nil
	}
	return nil, nil
}
