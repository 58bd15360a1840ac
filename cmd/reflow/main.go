package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬─┐┌─┐┌─┐┬  ┌─┐┬ ┬
  ├┬┘├┤ ├┤ │  │ ││││
  ┴└─└─┘└  ┴─┘└─┘└┴┘
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "reflow",
		Short: "Reactive cell store tooling",
		Long: `Reflow is a fine-grained reactive state engine for Go.

State lives in cells; derived cells recompute automatically when
their inputs change, batches settle atomically, and observers are
notified once per settled pass. This CLI ships:

  • demo  - a live store with a web inspector
  • bench - propagation benchmarks over common graph shapes`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		demoCmd(),
		benchCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func printBanner() {
	fmt.Print(banner)
}
