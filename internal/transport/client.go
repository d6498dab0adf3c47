package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aarchijain1/custom-rag-engine/internal/store"
)

const (
	defaultProbeTimeout = 3 * time.Second
	defaultPollInterval = 1 * time.Second
	defaultMaxAttempts  = 30
)

// Options configures a Client.
type Options struct {
	// AutoStart launches the tool server as a detached child process when
	// the health probe fails. The spawned server outlives the client and is
	// reused by later clients; shutdown is an explicit, separate call.
	AutoStart bool
	// ServerCommand is the argv used to launch the server. Defaults to the
	// running executable with a "serve" argument.
	ServerCommand []string
	// LockPath guards the spawn against concurrent clients. When several
	// clients race to auto-start, only the one that creates the lock file
	// spawns; the rest fall back to polling and connect to the winner.
	LockPath     string
	ProbeTimeout time.Duration
	PollInterval time.Duration
	MaxAttempts  int
	Logger       *zap.Logger
}

// Client calls named tools on the server over HTTP. One underlying HTTP
// client is reused for every call from a Client instance.
type Client struct {
	baseURL string
	httpc   *http.Client
	opts    Options
	logger  *zap.Logger

	mu    sync.Mutex
	ready bool
}

// NewClient creates a client for the tool server at serverURL.
func NewClient(serverURL string, opts Options) *Client {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		httpc:   &http.Client{Timeout: 5 * time.Minute},
		opts:    opts,
		logger:  logger,
	}
}

// Healthy probes the server's liveness endpoint within the probe timeout.
func (c *Client) Healthy(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ensureServer brings the server to a healthy state before the first call.
// Calling it against an already-healthy server is a no-op.
func (c *Client) ensureServer(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready || !c.opts.AutoStart {
		return nil
	}
	if c.Healthy(ctx) {
		c.ready = true
		return nil
	}

	// One winner spawns; losers poll for the winner's server.
	var exited <-chan error
	if c.acquireSpawnLock() {
		defer c.releaseSpawnLock()
		ch, err := c.spawnServer()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrServerExited, err)
		}
		exited = ch
		c.logger.Info("auto-starting tool server")
	} else {
		c.logger.Info("another client is starting the tool server, waiting")
	}

	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrServerStartupTimeout, ctx.Err())
		case err := <-exited:
			return fmt.Errorf("%w: %v", ErrServerExited, err)
		case <-time.After(c.opts.PollInterval):
		}
		if c.Healthy(ctx) {
			c.logger.Info("tool server is healthy", zap.Int("attempts", attempt+1))
			c.ready = true
			return nil
		}
	}
	return ErrServerStartupTimeout
}

// acquireSpawnLock claims the right to spawn via an exclusive lock file.
func (c *Client) acquireSpawnLock() bool {
	if c.opts.LockPath == "" {
		return true
	}
	f, err := os.OpenFile(c.opts.LockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	return true
}

func (c *Client) releaseSpawnLock() {
	if c.opts.LockPath != "" {
		os.Remove(c.opts.LockPath)
	}
}

// spawnServer launches the server detached from this process. The returned
// channel fires if the child exits; a child dying before its first healthy
// probe is reported as ErrServerExited, distinct from the poll budget
// running out.
func (c *Client) spawnServer() (<-chan error, error) {
	argv := c.opts.ServerCommand
	if len(argv) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		argv = []string{exe, "serve"}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	exited := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		if err == nil {
			err = fmt.Errorf("%s exited", argv[0])
		}
		exited <- err
	}()
	return exited, nil
}

type toolResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Call invokes a named tool and returns its raw result. Server-reported
// failures come back as *RemoteError; connectivity failures as
// *TransportError.
func (c *Client) Call(ctx context.Context, name string, arguments map[string]any) (json.RawMessage, error) {
	if err := c.ensureServer(ctx); err != nil {
		return nil, err
	}

	if arguments == nil {
		arguments = map[string]any{}
	}
	body, err := json.Marshal(map[string]any{"name": name, "arguments": arguments})
	if err != nil {
		return nil, fmt.Errorf("marshal tool request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tools/call", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{Op: name, Err: err}
	}
	defer resp.Body.Close()

	var decoded toolResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &TransportError{Op: name, Err: fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)}
	}
	if decoded.Error != "" {
		return nil, &RemoteError{Tool: name, Message: decoded.Error}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Tool: name, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return decoded.Result, nil
}

func (c *Client) call(ctx context.Context, name string, args map[string]any, out any) error {
	raw, err := c.Call(ctx, name, args)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Op: name, Err: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}

// Search runs a similarity query against the remote store.
func (c *Client) Search(ctx context.Context, query string, k int) ([]store.SearchResult, error) {
	var results []store.SearchResult
	err := c.call(ctx, "search_documents", map[string]any{"query": query, "k": k}, &results)
	return results, err
}

// AddResult acknowledges a single remote document add.
type AddResult struct {
	Success       bool   `json:"success"`
	DocID         string `json:"doc_id"`
	ChunksCreated int    `json:"chunks_created"`
}

// AddDocument indexes one document on the remote store.
func (c *Client) AddDocument(ctx context.Context, id, text string, metadata map[string]any) (AddResult, error) {
	var result AddResult
	err := c.call(ctx, "add_document", map[string]any{
		"doc_id":   id,
		"text":     text,
		"metadata": metadata,
	}, &result)
	return result, err
}

// AddDocuments indexes a batch of documents, reporting partial success.
func (c *Client) AddDocuments(ctx context.Context, docs []store.Document) (store.BatchResult, error) {
	var result store.BatchResult
	err := c.call(ctx, "add_documents", map[string]any{"documents": docs}, &result)
	return result, err
}

// DeleteDocument removes a document's chunks from the remote store.
func (c *Client) DeleteDocument(ctx context.Context, id string) (bool, error) {
	var result struct {
		Deleted bool `json:"deleted"`
	}
	err := c.call(ctx, "delete_document", map[string]any{"doc_id": id}, &result)
	return result.Deleted, err
}

// ClearAll resets the remote store.
func (c *Client) ClearAll(ctx context.Context) (bool, error) {
	var result struct {
		Success bool `json:"success"`
	}
	err := c.call(ctx, "clear_vector_store", nil, &result)
	return result.Success, err
}

// Stats reports the remote store's contents.
func (c *Client) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats
	err := c.call(ctx, "get_vector_store_stats", nil, &stats)
	return stats, err
}

// LoadFile parses a file on the server's host into a document.
func (c *Client) LoadFile(ctx context.Context, path string) (store.Document, error) {
	var doc store.Document
	err := c.call(ctx, "load_file", map[string]any{"file_path": path}, &doc)
	return doc, err
}

// LoadDirectory parses every supported file under path on the server's
// host. Per-file failures are returned alongside the loaded documents.
func (c *Client) LoadDirectory(ctx context.Context, path string, recursive bool) ([]store.Document, []string, error) {
	var result struct {
		Documents []store.Document `json:"documents"`
		Errors    []string         `json:"errors"`
	}
	err := c.call(ctx, "load_directory", map[string]any{"path": path, "recursive": recursive}, &result)
	return result.Documents, result.Errors, err
}

// SupportedExtensions lists file types the server's loader accepts.
func (c *Client) SupportedExtensions(ctx context.Context) ([]string, error) {
	var exts []string
	err := c.call(ctx, "get_supported_extensions", nil, &exts)
	return exts, err
}

// Shutdown asks the server to stop gracefully. This is the only way a
// spawned server is stopped; clients disconnecting never kill it.
func (c *Client) Shutdown(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/shutdown", nil)
	if err != nil {
		return fmt.Errorf("build shutdown request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Op: "shutdown", Err: err}
	}
	resp.Body.Close()
	return nil
}
