package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "spend",
		Short: "Show today's model spend against the daily cap",
		Run:   runSpend,
	}

	RootCmd.AddCommand(cmd)
}

func runSpend(cmd *cobra.Command, args []string) {
	a := openApp()
	defer a.Close()

	day, total := a.Guard.Today()
	fmt.Printf("spent $%.4f of $%.2f today (%s)\n", total, a.Guard.Limit(), day)

	rows, err := a.Guard.Breakdown()
	if err != nil {
		exitErr("spend breakdown", err)
	}
	for _, row := range rows {
		fmt.Printf("  %s: $%.4f (%d tokens)\n", row.Model, row.USD, row.Tokens)
	}
}
