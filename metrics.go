package quic

import (
	dockermetrics "github.com/docker/go-metrics"
)

// connMetrics holds the per-endpoint counters and gauges exported through
// docker/go-metrics (itself a thin wrapper around
// github.com/prometheus/client_golang), SPEC_FULL.md §2 "Metrics".
type connMetrics struct {
	ns *dockermetrics.Namespace

	packetsReceived dockermetrics.Counter
	packetsSent     dockermetrics.Counter
	connsAccepted   dockermetrics.Counter
	connsClosed     dockermetrics.Counter
	activeConns     dockermetrics.Gauge
}

func newMetrics() *connMetrics {
	ns := dockermetrics.NewNamespace("quic", "", nil)
	m := &connMetrics{
		ns:              ns,
		packetsReceived: ns.NewCounter("packets_received_total", "total UDP datagrams read off the socket"),
		packetsSent:     ns.NewCounter("packets_sent_total", "total UDP datagrams written to the socket"),
		connsAccepted:   ns.NewCounter("connections_accepted_total", "total server connections accepted"),
		connsClosed:     ns.NewCounter("connections_closed_total", "total connections that reached the closed state"),
		activeConns:     ns.NewGauge("connections_active", "connections currently tracked by the endpoint", dockermetrics.Total),
	}
	dockermetrics.Register(ns)
	return m
}
