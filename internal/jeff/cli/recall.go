package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Search long-term memory",
		Long:  "Search memory semantically, falling back to a keyword scan when the index has nothing close.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRecall,
	}

	cmd.Flags().IntP("k", "k", 0, "Max results (default: configured search_k)")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	k, _ := cmd.Flags().GetInt("k")
	query := strings.Join(args, " ")

	a := openApp()
	defer a.Close()

	if k <= 0 {
		k = a.Config.Memory.SearchK
	}
	hits, err := a.Memory.Search(cmd.Context(), query, k)
	if err != nil {
		exitErr("recall", err)
	}

	if len(hits) == 0 {
		fmt.Println("no matching memories")
		return
	}
	for i, h := range hits {
		source := h.Source
		if source == "" {
			source = "memory"
		}
		fmt.Printf("%d. %s  [source: %s]", i+1, h.Text, source)
		if h.Keyword {
			fmt.Print("  (keyword match)")
		}
		fmt.Println()
	}
}
