package datautil

import "net"

// Range lists come from https://ipinfo.io/bogon and
// https://publicdata.caida.org/datasets/bogon/bogon-bn-agg/
var bogonIPv4Ranges = mustParseCIDRs(
	"0.0.0.0/8",       // "this" network
	"10.0.0.0/8",      // private-use
	"100.64.0.0/10",   // carrier-grade NAT
	"127.0.0.0/8",     // loopback
	"169.254.0.0/16",  // link local
	"172.16.0.0/12",   // private-use
	"192.0.0.0/24",    // IETF protocol assignments
	"192.0.2.0/24",    // TEST-NET-1
	"192.168.0.0/16",  // private-use
	"198.18.0.0/15",   // interconnect device benchmark testing
	"198.51.100.0/24", // TEST-NET-2
	"203.0.113.0/24",  // TEST-NET-3
	"224.0.0.0/3",     // multicast
)

var bogonIPv6Ranges = mustParseCIDRs(
	"::/128",       // node-scope unicast unspecified
	"::1/128",      // node-scope unicast loopback
	"::ffff:0:0/96", // IPv4-mapped
	"::/96",        // IPv4-compatible
	"100::/64",     // remotely triggered black hole
	"2001:10::/28", // ORCHID
	"2001:db8::/32", // documentation prefix
	"fc00::/7",     // unique local addresses
	"fe80::/10",    // link-local unicast
	"fec0::/10",    // site-local unicast (deprecated)
	"ff00::/8",     // multicast
	// 6to4 embeddings of the IPv4 bogon ranges
	"2002::/24",
	"2002:a00::/24",
	"2002:7f00::/24",
	"2002:a9fe::/32",
	"2002:ac10::/28",
	"2002:c000::/40",
	"2002:c000:200::/40",
	"2002:c0a8::/32",
	"2002:c612::/31",
	"2002:c633:6400::/40",
	"2002:cb00:7100::/40",
	"2002:e000::/20",
	"2002:f000::/20",
	"2002:ffff:ffff::/48",
	// Teredo embeddings of the IPv4 bogon ranges
	"2001::/40",
	"2001:0:a00::/40",
	"2001:0:7f00::/40",
	"2001:0:a9fe::/48",
	"2001:0:ac10::/44",
	"2001:0:c000::/56",
	"2001:0:c000:200::/56",
	"2001:0:c0a8::/48",
	"2001:0:c612::/47",
	"2001:0:c633:6400::/56",
	"2001:0:cb00:7100::/56",
	"2001:0:e000::/36",
	"2001:0:f000::/36",
	"2001:0:ffff:ffff::/64",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

func ipInRanges(ip net.IP, ranges []*net.IPNet) bool {
	for _, r := range ranges {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}

// IsIPv4Bogon reports whether s is an IPv4 literal inside a reserved,
// private, documentation, benchmark or multicast range. Non-literal input
// yields false.
func IsIPv4Bogon(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return false
	}
	return ipInRanges(ip, bogonIPv4Ranges)
}

// IsIPv6Bogon reports whether s is an IPv6 literal inside a reserved range,
// including the 6to4 and Teredo embeddings of the IPv4 bogon space.
func IsIPv6Bogon(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() != nil {
		return false
	}
	return ipInRanges(ip, bogonIPv6Ranges)
}

// IsBogon classifies either address family. Non-literal input yields false.
func IsBogon(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	if ip.To4() != nil {
		return ipInRanges(ip, bogonIPv4Ranges)
	}
	return ipInRanges(ip, bogonIPv6Ranges)
}
