package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// SplitTarget splits "host" or "host:port" (IPv6 literals in brackets)
// and fills in defaultPort when none is given.
func SplitTarget(target string, defaultPort int) (string, int, error) {
	if target == "" {
		return "", 0, fmt.Errorf("empty target")
	}
	if !strings.Contains(target, ":") || (strings.HasPrefix(target, "[") && strings.HasSuffix(target, "]")) {
		return strings.Trim(target, "[]"), defaultPort, nil
	}
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// Bare IPv6 literal without brackets.
		if net.ParseIP(target) != nil {
			return target, defaultPort, nil
		}
		return "", 0, fmt.Errorf("invalid target %q: %w", target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
