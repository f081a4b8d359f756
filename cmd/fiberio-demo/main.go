package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "fiberio-demo",
		Short:   "fiberio-demo exercises the fiberio runtime end to end",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run a TCP accept loop on a fiber, driven by an IOManager",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfigFile(configPath)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
