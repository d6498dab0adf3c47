package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aarchijain1/custom-rag-engine/internal/agent"
	"github.com/aarchijain1/custom-rag-engine/internal/llm"
)

var flagK int

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about your indexed documents",
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

		ctx := cmd.Context()
		client := newToolClient(cfg, logger)
		chat := llm.NewOllamaChat(cfg.LLM.BaseURL, cfg.LLM.Model)

		var classifier agent.Classifier
		if cfg.LLM.ClassificationEnabled() {
			classifier = agent.NewLLMClassifier(chat)
		} else {
			classifier = agent.NewKeywordClassifier(nil)
		}

		k := flagK
		if k <= 0 {
			k = cfg.Retrieval.K
		}
		a := agent.New(classifier, client, chat, k, logger)

		scanner := bufio.NewScanner(os.Stdin)
		fmt.Println("rag-engine chat (type /help for commands, /exit to quit)")
		fmt.Println()

		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}

			switch question {
			case "/exit", "/quit":
				fmt.Println("Goodbye.")
				return nil
			case "/stats":
				stats, err := client.Stats(ctx)
				if err != nil {
					fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
					continue
				}
				fmt.Printf("%d chunks across %d documents (collection %s, model %s)\n",
					stats.TotalChunks, stats.UniqueDocuments, stats.Collection, stats.EmbeddingModel)
				continue
			case "/help":
				fmt.Println("Commands:")
				fmt.Println("  /stats  - show index statistics")
				fmt.Println("  /exit   - quit chat")
				fmt.Println("  /help   - show this help")
				continue
			}

			result := a.Query(ctx, question)

			fmt.Println()
			fmt.Println(result.Answer)
			if result.UsedRAG {
				fmt.Printf("\n[answered from %d retrieved chunks]\n", result.NumDocuments)
			}
			fmt.Println()
		}

		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().IntVar(&flagK, "k", 0, "number of chunks to retrieve per question (default from config)")
	rootCmd.AddCommand(chatCmd)
}
