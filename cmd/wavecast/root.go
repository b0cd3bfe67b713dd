package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var dataDir string

func defaultDataDir() string {
	if dir := os.Getenv("WAVECAST_DATA_DIR"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".wavecast")
	}
	return ".wavecast"
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wavecast",
		Short:         "Personal remote-access portal: pairing, device trust, and relay tunneling",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), dataDir)
		},
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "directory for identity, credentials, and device records")

	root.AddCommand(newStartCmd())
	root.AddCommand(newPairCmd())
	root.AddCommand(newDevicesCmd())
	root.AddCommand(newStopCmd())

	return root
}
