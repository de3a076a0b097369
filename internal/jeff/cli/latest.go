package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent memory entries",
		Run:   runLatest,
	}

	cmd.Flags().IntP("n", "n", 5, "How many entries to show")

	RootCmd.AddCommand(cmd)
}

func runLatest(cmd *cobra.Command, args []string) {
	n, _ := cmd.Flags().GetInt("n")

	a := openApp()
	defer a.Close()

	entries := a.Memory.Latest(n)
	if len(entries) == 0 {
		fmt.Println("memory log is empty")
		return
	}
	for _, e := range entries {
		fmt.Printf("- [%s] (%s) %s\n", e.Timestamp, e.Source, e.Text)
	}
}
