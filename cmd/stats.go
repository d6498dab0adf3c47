package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		client := newToolClient(cfg, logger)
		stats, err := client.Stats(cmd.Context())
		if err != nil {
			return describeTransportFailure(err)
		}

		fmt.Printf("Collection:      %s\n", stats.Collection)
		fmt.Printf("Embedding model: %s\n", stats.EmbeddingModel)
		fmt.Printf("Documents:       %d\n", stats.UniqueDocuments)
		fmt.Printf("Chunks:          %d\n", stats.TotalChunks)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
