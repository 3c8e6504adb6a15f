package rules

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/net/idna"
)

// PrivateToken is the host pattern matching every non-public address.
const PrivateToken = "$private"

type predicate interface {
	match(host string, addr netip.Addr) bool
}

// hostPattern matches the requested hostname or the resolved address text.
type hostPattern struct {
	pattern string
}

func (p hostPattern) match(host string, addr netip.Addr) bool {
	if host != "" {
		if ok, _ := doublestar.Match(p.pattern, NormalizeHost(host)); ok {
			return true
		}
	}
	if addr.IsValid() {
		ok, _ := doublestar.Match(p.pattern, addr.Unmap().String())
		return ok
	}
	return false
}

type prefixPattern struct {
	prefix netip.Prefix
}

func (p prefixPattern) match(_ string, addr netip.Addr) bool {
	return addr.IsValid() && p.prefix.Contains(addr)
}

type privatePattern struct{}

func (privatePattern) match(_ string, addr netip.Addr) bool {
	return addr.IsValid() && IsPrivate(addr)
}

var extraPrivate = []netip.Prefix{
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.192/32"),
	netip.MustParsePrefix("fec0::/10"),
}

// IsPrivate reports whether addr is loopback, link-local, unspecified,
// multicast, RFC1918, unique-local, site-local or carrier-grade NAT space.
func IsPrivate(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsLoopback() || addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast() {
		return true
	}
	for _, p := range extraPrivate {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// NormalizeHost lowercases host and converts internationalized names to ASCII.
func NormalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return host
}

// unwrap6to4 returns the IPv4 address embedded in a 2002::/16 address.
func unwrap6to4(addr netip.Addr) (netip.Addr, bool) {
	if !addr.Is6() || addr.Is4In6() {
		return netip.Addr{}, false
	}
	b := addr.As16()
	if b[0] != 0x20 || b[1] != 0x02 {
		return netip.Addr{}, false
	}
	return netip.AddrFrom4([4]byte{b[2], b[3], b[4], b[5]}), true
}

func parsePredicate(host string) (predicate, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("empty host pattern")
	}
	if host == PrivateToken {
		return privatePattern{}, nil
	}

	if strings.Contains(host, "/") {
		prefix, err := netip.ParsePrefix(host)
		if err != nil {
			return nil, fmt.Errorf("invalid host %q: malformed CIDR block: %w", host, err)
		}
		return prefixPattern{prefix: prefix.Masked()}, nil
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		return prefixPattern{prefix: netip.PrefixFrom(addr, addr.BitLen())}, nil
	}

	pattern := NormalizeHost(host)
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid host %q: malformed pattern", host)
	}
	return hostPattern{pattern: pattern}, nil
}
