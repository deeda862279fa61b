// Command quince is a minimal QUIC client/server for manual testing and
// interop smoke tests.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "quince",
		Short: "A small QUIC client and server",
	}
	root.AddCommand(newClientCommand())
	root.AddCommand(newServerCommand())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
