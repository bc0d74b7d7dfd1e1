package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <device>",
	Short: "Print backend identity and installed filesystem ids",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, cleanup, err := openAppOn(args[0])
		if err != nil {
			return err
		}
		defer cleanup()

		b := a.Backend()
		fmt.Printf("name: %s\n", b.Name())
		fmt.Printf("description: %s\n", b.Description())
		fmt.Printf("connector: %s\n", a.ConnectorName())
		if id, ok := b.Identity(); ok {
			fmt.Printf("company: %#x family: %#x model: %#x\n", id.CompanyID, id.FamilyID, id.ModelID)
		}
		fss, err := a.Filesystems()
		if err != nil {
			return err
		}
		for _, fs := range fss {
			fmt.Printf("fs %d: %s\n", fs.ID(), fs.Name())
		}
		return nil
	},
}
