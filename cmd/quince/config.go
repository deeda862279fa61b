package main

import (
	"crypto/tls"
	"strings"

	"github.com/jvanbruegge/quic/transport"
)

// newConfig builds a transport.Config with the default transport
// parameters; callers fill in config.TLS's certificate/verification
// settings for their side of the connection.
func newConfig() *transport.Config {
	return transport.NewConfig(&tls.Config{
		NextProtos: []string{"quince"},
	})
}

// serverName strips a trailing ":port" (or "[ipv6]:port") from addr,
// leaving a name suitable for tls.Config.ServerName.
func serverName(addr string) string {
	colon := strings.LastIndex(addr, ":")
	if colon > 0 {
		bracket := strings.LastIndex(addr, "]")
		if colon > bracket {
			return addr[:colon]
		}
	}
	return addr
}
