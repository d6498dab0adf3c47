package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aarchijain1/custom-rag-engine/internal/embedder"
	"github.com/aarchijain1/custom-rag-engine/internal/loader"
	"github.com/aarchijain1/custom-rag-engine/internal/store"
	"github.com/aarchijain1/custom-rag-engine/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the document tool server in the foreground",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	emb := embedder.NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model)
	st, err := store.Open(store.Options{
		Path:       cfg.Store.Path,
		Collection: cfg.Store.Collection,
		Dimensions: cfg.Store.Dimensions,
		ChunkSize:  cfg.Chunking.Size,
		Overlap:    cfg.Chunking.Overlap,
	}, emb)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	srv := transport.NewServer(st, loader.New(), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Addr())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("signal received, shutting down", zap.Stringer("signal", sig))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
