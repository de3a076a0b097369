package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Jeff/common/trace"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [chat.html]",
		Short: "Import a ChatGPT HTML export",
		Long:  "Read a ChatGPT chat.html export, strip the page boilerplate, and store the conversation text in long-term memory.",
		Args:  cobra.ExactArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		exitErr("read export", err)
	}

	a := openApp()
	defer a.Close()

	ctx := trace.WithTraceID(cmd.Context(), trace.GenerateID())
	report, err := a.Importer.Import(ctx, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "imported %d of %d chunks before failing\n", report.Written, report.Chunks)
		exitErr("import", err)
	}
	fmt.Printf("imported %d blocks (%d dropped as boilerplate): %d chunks written, %d skipped\n",
		report.Blocks, report.Dropped, report.Written, report.Skipped)
}
