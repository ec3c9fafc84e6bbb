package ip

import (
	"net"
	"strconv"
	"strings"

	"netconfd/internal/domain/entities"
)

// Find returns every token that immediately follows an occurrence of attr in
// the whitespace separated output
func Find(output, attr string) []string {
	fields := strings.Fields(output)
	var values []string
	for i, field := range fields {
		if field == attr && i+1 < len(fields) {
			values = append(values, fields[i+1])
		}
	}
	return values
}

// ParseLinkFlags extracts the comma separated list between the first '<' and
// the following '>' of a link show line
func ParseLinkFlags(output string) []string {
	start := strings.IndexByte(output, '<')
	if start < 0 {
		return nil
	}
	end := strings.IndexByte(output[start:], '>')
	if end < 0 {
		return nil
	}
	inner := output[start+1 : start+end]
	if inner == "" {
		return nil
	}
	return strings.Split(inner, ",")
}

// ParseCIDR splits an address/prefix token. It returns false for anything
// that is not a valid address with a numeric prefix.
func ParseCIDR(token string) (entities.IPAddress, bool) {
	slash := strings.IndexByte(token, '/')
	if slash < 0 {
		return entities.IPAddress{}, false
	}
	ip := net.ParseIP(token[:slash])
	if ip == nil {
		return entities.IPAddress{}, false
	}
	prefix, err := strconv.Atoi(token[slash+1:])
	if err != nil || prefix < 0 {
		return entities.IPAddress{}, false
	}
	maxPrefix := 128
	if ip.To4() != nil {
		ip = ip.To4()
		maxPrefix = 32
	}
	if prefix > maxPrefix {
		return entities.IPAddress{}, false
	}
	return entities.IPAddress{IP: ip, PrefixLen: prefix}, true
}

// ParseAddrs returns the addresses that follow family ("inet" or "inet6")
// in addr show output, dropping malformed entries
func ParseAddrs(output, family string) []entities.IPAddress {
	var addrs []entities.IPAddress
	for _, token := range Find(output, family) {
		if addr, ok := ParseCIDR(token); ok {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}
