package netinfo

import (
	"net"
	"testing"
)

func TestLocalIPv4_NeverEmpty(t *testing.T) {
	got := LocalIPv4()
	if got == "" {
		t.Fatal("LocalIPv4() = empty")
	}
	if got != fallbackHost && net.ParseIP(got).To4() == nil {
		t.Errorf("LocalIPv4() = %q, want an IPv4 address or %q", got, fallbackHost)
	}
}

func TestFirstIPv4(t *testing.T) {
	tests := []struct {
		name  string
		addrs []net.Addr
		want  string
	}{
		{"empty", nil, ""},
		{
			"skips ipv6 and loopback",
			[]net.Addr{
				&net.IPNet{IP: net.ParseIP("fe80::1")},
				&net.IPNet{IP: net.ParseIP("127.0.0.1")},
				&net.IPNet{IP: net.ParseIP("192.168.1.20")},
			},
			"192.168.1.20",
		},
		{
			"ip addr",
			[]net.Addr{&net.IPAddr{IP: net.ParseIP("10.0.0.7")}},
			"10.0.0.7",
		},
		{
			"only ipv6",
			[]net.Addr{&net.IPNet{IP: net.ParseIP("2001:db8::1")}},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstIPv4(tt.addrs); got != tt.want {
				t.Errorf("firstIPv4() = %q, want %q", got, tt.want)
			}
		})
	}
}
