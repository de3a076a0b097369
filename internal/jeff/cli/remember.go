package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "remember [text]",
		Short: "Store a memory",
		Long:  "Store a piece of text in long-term memory. Text can be a positional arg or piped via stdin.",
		Run:   runRemember,
	}

	cmd.Flags().StringP("source", "s", "", "Source label (default: chat)")

	RootCmd.AddCommand(cmd)
}

func runRemember(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")

	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			text = string(b)
		}
	}

	if strings.TrimSpace(text) == "" {
		exitErr("remember", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	a := openApp()
	defer a.Close()

	res, err := a.Memory.Remember(cmd.Context(), text, source, nil, true)
	if err != nil {
		exitErr("remember", err)
	}
	fmt.Printf("%s (%d chunks)\n", res.Status, res.Chunks)
}
