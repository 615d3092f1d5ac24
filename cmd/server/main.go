package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string
	cmdRoot := &cobra.Command{
		Use:           "wastelog",
		Short:         "Summary log service",
		Long:          `Accepts summary log uploads, validates them in the background and submits accepted rows as waste records.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmdRoot.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")

	cmdRoot.AddCommand(cmdServe(&configPath))
	cmdRoot.AddCommand(cmdWorker(&configPath))
	cmdRoot.AddCommand(cmdMigrate(&configPath))

	if err := cmdRoot.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
