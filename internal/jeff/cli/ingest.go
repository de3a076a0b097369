package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Jeff/common/trace"
	"github.com/bdobrica/Jeff/internal/jeff/observability"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest documents into memory",
		Long:  "Parse documents (txt, md, csv, pdf, xlsx) and store their text in long-term memory under a file:<name> source.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runIngest,
	}

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	ctx := trace.WithTraceID(cmd.Context(), trace.GenerateID())

	a := openApp()
	defer a.Close()

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			exitErr("read file", err)
		}

		name := filepath.Base(path)
		text, err := a.Parser.Parse(data, name)
		if err != nil {
			exitErr("parse "+name, err)
		}

		res, err := a.Memory.Remember(ctx, text, "file:"+name, nil, true)
		if err != nil {
			exitErr("ingest "+name, err)
		}
		fmt.Printf("%s: %s (%d chunks)\n", name, res.Status, res.Chunks)
	}
	observability.WithTrace(ctx).Info("cli: ingest complete", "files", len(args))
}
