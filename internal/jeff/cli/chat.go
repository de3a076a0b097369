package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long:  "Start a REPL backed by the configured brains. Lines starting with / are session commands; try /help.",
		Run:   runChat,
	}

	cmd.Flags().StringP("model", "m", "", "Model to chat with (default: automatic selection)")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	model, _ := cmd.Flags().GetString("model")

	a := openApp()
	defer a.Close()

	s, err := a.NewSession(model)
	if err != nil {
		exitErr("start session", err)
	}
	if err := s.Run(cmd.Context(), os.Stdin, os.Stdout); err != nil {
		exitErr("chat", err)
	}
}
