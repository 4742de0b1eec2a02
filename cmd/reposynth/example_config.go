package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reposynth/reposynth/configuration"
)

// exampleConfigStatus is the sentinel exit status documented for this
// subcommand: it is diagnostic output, never the "serve" path, so a
// non-zero status marks it as such to anything scripting against the CLI.
const exampleConfigStatus = 1

func exampleConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example-config",
		Short: "Print an example configuration file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(configuration.Example().String())
			os.Exit(exampleConfigStatus)
			return nil
		},
	}
}
