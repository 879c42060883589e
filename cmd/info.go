package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flickshare/internal/transfer"
)

var infoCmd = &cobra.Command{
	Use:   "info path/to/file",
	Short: "print the name and size of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		info, err := transfer.Info(file, args[0])
		file.Close()
		fmt.Fprintln(cmd.OutOrStdout(), transfer.DescribeFile(info, err))
		if err != nil {
			return errFailed
		}
		return nil
	},
}
