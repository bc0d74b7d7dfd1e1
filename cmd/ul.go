package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dagargo/elektroid/internal/connectors/system"
	"github.com/dagargo/elektroid/internal/task"
)

var ulCmd = &cobra.Command{
	Use:   "ul <local-src> <device>/dst",
	Short: "Upload a local item to a device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		device, dstPath := splitDeviceArg(args[1])
		a, fs, cleanup, err := openAppOn(device)
		if err != nil {
			return err
		}
		defer cleanup()

		t := task.NewTask(task.Upload, system.NewRawOps(), fs, args[0], dstPath, 0, task.ModeAsk)
		a.Engine().Enqueue(t)
		return waitForTask(t)
	},
}
