package udpnet

import (
	"net"
	"testing"
)

func TestIsPrivateIPv4(t *testing.T) {
	cases := map[string]bool{
		"10.1.2.3":     true,
		"172.16.0.5":   true,
		"172.31.0.5":   true,
		"172.32.0.5":   false,
		"192.168.1.1":  true,
		"8.8.8.8":      false,
		"172.15.0.1":   false,
	}
	for addr, want := range cases {
		ip := net.ParseIP(addr).To4()
		if got := isPrivateIPv4(ip); got != want {
			t.Errorf("isPrivateIPv4(%s) = %v, want %v", addr, got, want)
		}
	}
}

func TestIpv4PrivateBroadcasts_DerivesSubnetBroadcast(t *testing.T) {
	ip := net.ParseIP("192.168.5.10").To4()
	out := ipv4PrivateBroadcasts([]net.IP{ip}, 9000)

	found := false
	for _, a := range out {
		if a.IP.Equal(net.IPv4(192, 168, 5, 255)) && a.Port == 9000 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a 192.168.5.255:9000 broadcast address in %v", out)
	}
}

func TestFallbackAddresses_AlwaysIncludesLimitedBroadcast(t *testing.T) {
	out := fallbackAddresses(9000)
	found := false
	for _, a := range out {
		if a.IP.Equal(net.IPv4bcast) {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the limited broadcast address among fallbacks")
	}
}

func TestBroadcastAddresses_NeverEmpty(t *testing.T) {
	if len(BroadcastAddresses(9000)) == 0 {
		t.Fatal("expected at least the fallback addresses")
	}
}
