package main

import (
	"log"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jvanbruegge/quic"
	"github.com/jvanbruegge/quic/transport"
)

func newClientCommand() *cobra.Command {
	var listenAddr string
	var insecure bool
	var data string
	var logLevel int

	cmd := &cobra.Command{
		Use:   "client <address>",
		Short: "Connect to a QUIC server and send some data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := args[0]
			config := newConfig()
			config.TLS.ServerName = serverName(addr)
			config.TLS.InsecureSkipVerify = insecure
			handler := clientHandler{data: data}
			client := quic.NewClient(config)
			client.SetHandler(&handler)
			client.SetLogger(logLevel, os.Stdout)
			if err := client.ListenAndServe(listenAddr); err != nil {
				return err
			}
			handler.wg.Add(1)
			if err := client.Connect(addr); err != nil {
				return err
			}
			handler.wg.Wait()
			return client.Close()
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "0.0.0.0:0", "listen on the given IP:port")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip verifying server certificate")
	cmd.Flags().StringVar(&data, "data", "GET /\r\n", "data to send once connected")
	cmd.Flags().IntVarP(&logLevel, "verbose", "v", 2, "log verbose: 0=off 1=error 2=info 3=debug 4=trace")
	return cmd
}

type clientHandler struct {
	wg   sync.WaitGroup
	data string
}

func (s *clientHandler) Serve(c quic.Conn, events []transport.Event) {
	for _, e := range events {
		log.Printf("%s connection event: %v", c.RemoteAddr(), e.Type)
		switch e.Type {
		case quic.EventConnAccept:
			st := c.Stream(4)
			if st != nil {
				_, _ = st.Write([]byte(s.data))
				_ = st.Close()
			}
		case transport.EventStream:
			st := c.Stream(e.StreamID)
			if st != nil {
				buf := make([]byte, 512)
				n, _ := st.Read(buf)
				log.Printf("stream %d received:\n%s", e.StreamID, buf[:n])
			}
		case quic.EventConnClose:
			s.wg.Done()
		}
	}
}
