package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls <device>[/path]",
	Short: "List a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		device, path := splitDeviceArg(args[0])
		_, fs, cleanup, err := openAppOn(device)
		if err != nil {
			return err
		}
		defer cleanup()

		it, err := fs.ReadDir(cmd.Context(), path, fs.Extensions())
		if err != nil {
			return err
		}
		defer it.Close()

		for {
			item, ok, err := it.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			fmt.Println(formatItem(item))
		}
		return nil
	},
}
