package cmd

import (
	"github.com/spf13/cobra"
)

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <device>/path",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		device, path := splitDeviceArg(args[0])
		_, fs, cleanup, err := openAppOn(device)
		if err != nil {
			return err
		}
		defer cleanup()

		return fs.Mkdir(cmd.Context(), path)
	},
}
