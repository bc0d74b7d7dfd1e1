package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dagargo/elektroid/internal/connectors/system"
	"github.com/dagargo/elektroid/internal/task"
)

var dlCmd = &cobra.Command{
	Use:   "dl <device>/src <local-dst>",
	Short: "Download an item to local disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		device, srcPath := splitDeviceArg(args[0])
		a, fs, cleanup, err := openAppOn(device)
		if err != nil {
			return err
		}
		defer cleanup()

		t := task.NewTask(task.Download, fs, system.NewRawOps(), srcPath, args[1], 0, task.ModeAsk)
		a.Engine().Enqueue(t)
		return waitForTask(t)
	},
}
