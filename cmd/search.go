package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagSearchK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a one-shot similarity search against the index",
	Args:  cobra.ExactArgs(1),
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

		k := flagSearchK
		if k <= 0 {
			k = cfg.Retrieval.K
		}
		results, err := client.Search(cmd.Context(), args[0], k)
		if err != nil {
			return describeTransportFailure(err)
		}
		if len(results) == 0 {
			fmt.Println("No results.")
			return nil
		}

		for i, r := range results {
			docID, _ := r.Metadata["doc_id"].(string)
			fmt.Printf("%d. %s (distance %.4f)\n", i+1, docID, r.Distance)
			fmt.Printf("   %s\n\n", r.Content)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagSearchK, "k", 0, "number of results (default from config)")
	rootCmd.AddCommand(searchCmd)
}
