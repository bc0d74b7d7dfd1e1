package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dagargo/elektroid/internal/app"
)

var ldCmd = &cobra.Command{
	Use:   "ld",
	Short: "List reachable devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for i, d := range app.ListDevices() {
			fmt.Printf("%d %s\n", i, d.Name)
		}
		return nil
	},
}
