package main

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	exportImport      bool
	exportCollections string
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export or import the chromem vector database",
	Long: `Writes the collections to a single file, gzip compressed when
vector_store.compress is set and encrypted when an encryption key is
configured. With --import the file is loaded instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().BoolVar(&exportImport, "import", false, "import the file instead of exporting")
	exportCmd.Flags().StringVar(&exportCollections, "collections", "", "comma separated collections, all when empty")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	file := cfg.VectorStore.ExportFile
	if len(args) == 1 {
		file = args[0]
	}

	a := newApp(cfg)
	defer a.Close()

	m, err := a.chromem(ctx)
	if err != nil {
		return err
	}
	collections := splitList(exportCollections)

	if exportImport {
		if err := m.Import(ctx, file, collections...); err != nil {
			return err
		}
		cmd.Printf("Imported %s\n", file)
		return nil
	}
	if err := m.Export(ctx, file, collections...); err != nil {
		return err
	}
	cmd.Printf("Exported to %s\n", file)
	return nil
}
