package main

import (
	"crypto/tls"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/jvanbruegge/quic"
	"github.com/jvanbruegge/quic/transport"
)

func newServerCommand() *cobra.Command {
	var listenAddr string
	var certFile string
	var keyFile string
	var logLevel int
	var metricsAddr string
	var requireRetry bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Accept QUIC connections and echo any stream data received",
		RunE: func(cmd *cobra.Command, args []string) error {
			cert, err := tls.LoadX509KeyPair(certFile, keyFile)
			if err != nil {
				return err
			}
			config := newConfig()
			config.TLS.Certificates = []tls.Certificate{cert}

			server := quic.NewServer(config)
			server.RequireRetry = requireRetry
			server.SetHandler(&echoHandler{})
			server.SetLogger(logLevel, os.Stdout)

			if metricsAddr != "" {
				go serveMetrics(metricsAddr)
			}

			log.Printf("listening on %s", listenAddr)
			return server.ListenAndServe(listenAddr)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "0.0.0.0:4433", "listen on the given IP:port")
	cmd.Flags().StringVar(&certFile, "cert", "", "TLS certificate file (PEM)")
	cmd.Flags().StringVar(&keyFile, "key", "", "TLS private key file (PEM)")
	cmd.Flags().IntVarP(&logLevel, "verbose", "v", 2, "log verbose: 0=off 1=error 2=info 3=debug 4=trace")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "expose Prometheus metrics on IP:port (disabled if empty)")
	cmd.Flags().BoolVar(&requireRetry, "require-retry", false, "validate every new client's address with a Retry round-trip before accepting it")
	cmd.MarkFlagRequired("cert")
	cmd.MarkFlagRequired("key")
	return cmd
}

// echoHandler writes every byte it reads on a peer-initiated stream back to
// that same stream, closing it once the peer closes its side.
type echoHandler struct{}

func (echoHandler) Serve(c quic.Conn, events []transport.Event) {
	for _, e := range events {
		switch e.Type {
		case transport.EventStream:
			st := c.Stream(e.StreamID)
			if st == nil {
				continue
			}
			buf := make([]byte, 4096)
			n, err := st.Read(buf)
			if n > 0 {
				_, _ = st.Write(buf[:n])
			}
			if err != nil {
				_ = st.Close()
			}
		case quic.EventConnClose:
			log.Printf("%s closed", c.RemoteAddr())
		}
	}
}
