package verdicts

import (
	"crypto/tls"
	"net"
	"time"
)

const liveProbeTimeout = 1 * time.Second

// TLSProber reports whether a full TLS handshake to ip:443 with the given
// server name succeeds. It exists as a type so the cache extension can be
// tested without network access.
type TLSProber func(ip, hostname string) bool

// LiveTLSProbe performs a single bounded TLS connection attempt. Every
// outcome other than a fully verified handshake counts as not consistent.
func LiveTLSProbe(ip, hostname string) bool {
	dialer := &net.Dialer{Timeout: liveProbeTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(ip, "443"), &tls.Config{
		ServerName: hostname,
	})
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
