package udpnet

import (
	"net"
)

// BroadcastAddresses synthesizes the list of subnet-broadcast and
// multicast addresses a gateway should announce itself on, given the
// local interfaces and a port. The Network Manager (quicnet) reuses this
// exact rule set per its own synthesis requirement.
//
// For each non-loopback IPv4 interface address, the corresponding
// class-scoped subnet broadcast is derived (192.168.x.255, 10.x.255.255,
// 172.{16..31}.255.255); public IPv4 addresses fall back to the
// limited broadcast 255.255.255.255 only when no private address was
// found. IPv6 interfaces always add site-local and link-local multicast
// plus a gateway-specific ff05::5555 group. When interface enumeration
// yields nothing usable, fallbackAddresses is returned instead.
func BroadcastAddresses(port int) []*net.UDPAddr {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return fallbackAddresses(port)
	}

	var ipv4Private, ipv4Public []net.IP
	var hasIPv6 bool

	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}

		if ip4 := ipNet.IP.To4(); ip4 != nil {
			if isPrivateIPv4(ip4) {
				ipv4Private = append(ipv4Private, ip4)
			} else {
				ipv4Public = append(ipv4Public, ip4)
			}
			continue
		}
		if isGlobalOrUniqueLocalIPv6(ipNet.IP) {
			hasIPv6 = true
		}
	}

	var out []*net.UDPAddr
	out = append(out, ipv4PrivateBroadcasts(ipv4Private, port)...)
	if len(ipv4Private) == 0 && len(ipv4Public) > 0 {
		out = append(out, &net.UDPAddr{IP: net.IPv4bcast, Port: port})
	}
	if hasIPv6 {
		out = append(out, ipv6Multicasts(port)...)
	}

	if len(out) == 0 {
		return fallbackAddresses(port)
	}
	return out
}

func isPrivateIPv4(ip net.IP) bool {
	switch {
	case ip[0] == 10:
		return true
	case ip[0] == 172 && ip[1] >= 16 && ip[1] <= 31:
		return true
	case ip[0] == 192 && ip[1] == 168:
		return true
	default:
		return false
	}
}

func isGlobalOrUniqueLocalIPv6(ip net.IP) bool {
	return ip.IsLinkLocalUnicast() || ip.To4() == nil && !ip.IsLoopback()
}

func ipv4PrivateBroadcasts(ips []net.IP, port int) []*net.UDPAddr {
	var out []*net.UDPAddr
	for _, ip := range ips {
		switch {
		case ip[0] == 192 && ip[1] == 168:
			out = append(out, &net.UDPAddr{IP: net.IPv4(192, 168, ip[2], 255), Port: port})
		case ip[0] == 10:
			out = append(out, &net.UDPAddr{IP: net.IPv4(10, ip[1], 255, 255), Port: port})
		case ip[0] == 172 && ip[1] >= 16 && ip[1] <= 31:
			out = append(out, &net.UDPAddr{IP: net.IPv4(172, ip[1], 255, 255), Port: port})
		}
	}
	if len(ips) > 0 {
		out = append(out,
			&net.UDPAddr{IP: net.IPv4(192, 168, 255, 255), Port: port},
			&net.UDPAddr{IP: net.IPv4(10, 255, 255, 255), Port: port},
			&net.UDPAddr{IP: net.IPv4(172, 31, 255, 255), Port: port},
		)
	}
	return out
}

func ipv6Multicasts(port int) []*net.UDPAddr {
	return []*net.UDPAddr{
		{IP: net.ParseIP("ff05::1"), Port: port},
		{IP: net.ParseIP("ff02::1"), Port: port},
		{IP: net.ParseIP("ff05::5555"), Port: port},
	}
}

func fallbackAddresses(port int) []*net.UDPAddr {
	return []*net.UDPAddr{
		{IP: net.IPv4bcast, Port: port},
		{IP: net.IPv4(192, 168, 255, 255), Port: port},
		{IP: net.IPv4(10, 255, 255, 255), Port: port},
		{IP: net.IPv4(172, 31, 255, 255), Port: port},
	}
}
