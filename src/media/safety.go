package media

import (
	"net"
	"net/url"
	"strings"
)

var (
	privateIPBlocks  []*net.IPNet
	blockedHostnames = map[string]struct{}{
		"localhost":                 {},
		"metadata.google.internal":  {},
		"metadata.google.internal.": {},
	}
)

func init() {
	for _, cidr := range []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"100.64.0.0/10",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
		"::/128",
	} {
		_, block, err := net.ParseCIDR(cidr)
		if err == nil {
			privateIPBlocks = append(privateIPBlocks, block)
		}
	}
}

// safeURL rejects non-http(s) schemes and hosts that resolve to private space.
func safeURL(raw string, lookup func(string) ([]net.IP, error)) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	if _, blocked := blockedHostnames[host]; blocked {
		return false
	}

	if ip := net.ParseIP(host); ip != nil {
		return isPublicIP(ip)
	}

	ips, err := lookup(host)
	if err != nil || len(ips) == 0 {
		return false
	}
	for _, resolved := range ips {
		if !isPublicIP(resolved) {
			return false
		}
	}
	return true
}

func isPublicIP(ip net.IP) bool {
	if ip == nil || ip.IsLoopback() || ip.IsUnspecified() {
		return false
	}
	for _, block := range privateIPBlocks {
		if block.Contains(ip) {
			return false
		}
	}
	return true
}
