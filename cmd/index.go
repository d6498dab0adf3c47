package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aarchijain1/custom-rag-engine/internal/transport"
)

var (
	flagRecursive bool
	flagClear     bool
)

var indexCmd = &cobra.Command{
	Use:   "index <directory>",
	Short: "Load and index every supported document under a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	client := newToolClient(cfg, logger)

	if flagClear {
		if _, err := client.ClearAll(ctx); err != nil {
			return fmt.Errorf("clear store: %w", err)
		}
		fmt.Println("Cleared existing index.")
	}

	exts, err := client.SupportedExtensions(ctx)
	if err != nil {
		return describeTransportFailure(err)
	}
	fmt.Printf("Loading %s (formats: %s)\n", args[0], strings.Join(exts, ", "))

	docs, loadErrs, err := client.LoadDirectory(ctx, args[0], flagRecursive)
	if err != nil {
		return fmt.Errorf("load directory: %w", err)
	}
	for _, e := range loadErrs {
		fmt.Printf("  skipped: %s\n", e)
	}
	if len(docs) == 0 {
		fmt.Println("No loadable documents found.")
		return nil
	}

	batch, err := client.AddDocuments(ctx, docs)
	if err != nil {
		return fmt.Errorf("index documents: %w", err)
	}

	fmt.Printf("Indexed %d documents as %d chunks.\n", batch.Successful, batch.TotalChunks)
	if batch.Failed > 0 {
		fmt.Printf("Failed: %d (%s)\n", batch.Failed, strings.Join(batch.FailedIDs, ", "))
	}

	stats, err := client.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Store now holds %d chunks across %d documents.\n", stats.TotalChunks, stats.UniqueDocuments)
	return nil
}

// describeTransportFailure turns startup failures into actionable messages.
func describeTransportFailure(err error) error {
	switch {
	case errors.Is(err, transport.ErrServerExited):
		return fmt.Errorf("the tool server exited during startup; run 'rag-engine serve' manually to see why: %w", err)
	case errors.Is(err, transport.ErrServerStartupTimeout):
		return fmt.Errorf("timed out waiting for the tool server; is the configured port free? %w", err)
	default:
		return err
	}
}

func init() {
	indexCmd.Flags().BoolVar(&flagRecursive, "recursive", true, "descend into subdirectories")
	indexCmd.Flags().BoolVar(&flagClear, "clear", false, "clear the store before indexing")
	rootCmd.AddCommand(indexCmd)
}
