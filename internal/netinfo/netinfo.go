// Package netinfo discovers the host's LAN address so phones on the same
// network can reach a development server.
package netinfo

import "net"

// fallbackHost is returned when no LAN address can be found.
const fallbackHost = "localhost"

// LocalIPv4 returns the first IPv4 address of an up, non-loopback interface,
// or "localhost" when the host has none.
func LocalIPv4() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return fallbackHost
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if ip := firstIPv4(addrs); ip != "" {
			return ip
		}
	}
	return fallbackHost
}

// firstIPv4 returns the first non-loopback IPv4 address in addrs.
func firstIPv4(addrs []net.Addr) string {
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
