package cmd

import (
	"github.com/spf13/cobra"
)

var mvCmd = &cobra.Command{
	Use:   "mv <device>/src <device>/dst",
	Short: "Move or rename an item within a device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		srcDevice, srcPath := splitDeviceArg(args[0])
		dstDevice, dstPath := splitDeviceArg(args[1])
		if srcDevice != dstDevice {
			return errDifferentDevices
		}

		_, fs, cleanup, err := openAppOn(srcDevice)
		if err != nil {
			return err
		}
		defer cleanup()

		return fs.Move(cmd.Context(), srcPath, dstPath)
	},
}
