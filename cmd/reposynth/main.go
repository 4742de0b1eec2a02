package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reposynth",
		Short:         "On-demand RPM repository composition gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config-path", "c", "", "path to the configuration file")

	root.AddCommand(serveCmd())
	root.AddCommand(exampleConfigCmd())

	return root
}
