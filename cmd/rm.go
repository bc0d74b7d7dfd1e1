package cmd

import (
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <device>/path",
	Short: "Delete an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		device, path := splitDeviceArg(args[0])
		_, fs, cleanup, err := openAppOn(device)
		if err != nil {
			return err
		}
		defer cleanup()

		return fs.Delete(cmd.Context(), path)
	},
}
