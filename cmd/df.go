package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dagargo/elektroid/internal/config"
)

var dfCmd = &cobra.Command{
	Use:   "df <device>",
	Short: "Print storage stats per storage kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, cleanup, err := openAppOn(args[0])
		if err != nil {
			return err
		}
		defer cleanup()

		path := "/"
		if args[0] == "system" {
			prefs, err := config.Get()
			if err == nil {
				path = prefs.LocalDir
			}
		}
		stats, err := a.Backend().GetStorageStats(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d\t%d\n", stats.Name, stats.Free, stats.Total)
		return nil
	},
}
