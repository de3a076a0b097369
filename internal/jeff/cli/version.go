package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Jeff/common/version"
)

func init() {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run:   runVersion,
	}

	RootCmd.AddCommand(cmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("jeff %s\n", version.Info())
}
