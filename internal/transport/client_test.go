package transport

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aarchijain1/custom-rag-engine/internal/store"
)

func newClientAgainst(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(srv.URL, Options{})
}

func TestClientRoundTrip(t *testing.T) {
	srv := newTestServer(t, newFakeStore())
	c := newClientAgainst(t, srv)
	ctx := context.Background()

	added, err := c.AddDocument(ctx, "d1", "the quick brown fox", map[string]any{"source": "t"})
	require.NoError(t, err)
	assert.True(t, added.Success)

	results, err := c.Search(ctx, "quick brown", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].Metadata["doc_id"])

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalChunks)

	ok, err := c.ClearAll(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	results, err = c.Search(ctx, "quick brown", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClientBatchAdd(t *testing.T) {
	srv := newTestServer(t, newFakeStore())
	c := newClientAgainst(t, srv)

	result, err := c.AddDocuments(context.Background(), []store.Document{
		{ID: "ok", Text: "hello"},
		{ID: "bad", Text: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"bad"}, result.FailedIDs)
}

func TestClientRemoteError(t *testing.T) {
	srv := newTestServer(t, newFakeStore())
	c := newClientAgainst(t, srv)

	_, err := c.Call(context.Background(), "no_such_tool", nil)
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "no_such_tool", remoteErr.Tool)
	assert.Contains(t, remoteErr.Message, "unknown tool")
}

func TestClientTransportError(t *testing.T) {
	// A server that is simply not there, with auto-start disabled.
	c := NewClient("http://127.0.0.1:1", Options{})
	_, err := c.Search(context.Background(), "anything", 3)
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestAutoStartNoopWhenHealthy(t *testing.T) {
	srv := newTestServer(t, newFakeStore())
	c := NewClient(srv.URL, Options{
		AutoStart: true,
		// A command that would fail the startup path if it ever ran.
		ServerCommand: []string{"/nonexistent-server-binary"},
		PollInterval:  10 * time.Millisecond,
		MaxAttempts:   3,
	})

	// The probe succeeds immediately, so no process is spawned.
	_, err := c.Stats(context.Background())
	require.NoError(t, err)
}

func TestAutoStartTimeout(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", Options{
		AutoStart:     true,
		ServerCommand: []string{"sleep", "5"},
		ProbeTimeout:  50 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
		MaxAttempts:   3,
		Logger:        zap.NewNop(),
	})

	start := time.Now()
	_, err := c.Stats(context.Background())
	assert.ErrorIs(t, err, ErrServerStartupTimeout)
	// Bounded by roughly attempts x (interval + probe timeout), not an
	// indefinite hang.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestAutoStartServerExited(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", Options{
		AutoStart:     true,
		ServerCommand: []string{"true"},
		ProbeTimeout:  50 * time.Millisecond,
		PollInterval:  20 * time.Millisecond,
		MaxAttempts:   30,
	})

	_, err := c.Stats(context.Background())
	assert.ErrorIs(t, err, ErrServerExited)
}

func TestAutoStartCancellation(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", Options{
		AutoStart:     true,
		ServerCommand: []string{"sleep", "5"},
		ProbeTimeout:  50 * time.Millisecond,
		PollInterval:  50 * time.Millisecond,
		MaxAttempts:   1000,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Stats(ctx)
	assert.ErrorIs(t, err, ErrServerStartupTimeout)
}

func TestAutoStartSingleWinner(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "server.lock")
	spawnLog := filepath.Join(dir, "spawns.log")

	// Each spawn appends a line; only the lock winner should ever spawn.
	spawnCmd := []string{"sh", "-c", "echo spawned >> " + spawnLog + "; sleep 2"}

	const clients = 5
	var wg sync.WaitGroup
	for range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient("http://127.0.0.1:1", Options{
				AutoStart:     true,
				ServerCommand: spawnCmd,
				LockPath:      lockPath,
				ProbeTimeout:  20 * time.Millisecond,
				PollInterval:  10 * time.Millisecond,
				MaxAttempts:   5,
			})
			// The fake command never serves HTTP, so every client times
			// out; what matters is how many processes were launched.
			_, err := c.Stats(context.Background())
			assert.Error(t, err)
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(spawnLog)
	require.NoError(t, err)
	assert.Equal(t, "spawned\n", string(data), "exactly one client may spawn the server")
}

func TestSpawnLockReleased(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "server.lock")
	c := NewClient("http://127.0.0.1:1", Options{
		AutoStart:     true,
		ServerCommand: []string{"sleep", "2"},
		LockPath:      lockPath,
		ProbeTimeout:  20 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
		MaxAttempts:   2,
	})

	_, err := c.Stats(context.Background())
	require.Error(t, err)

	_, statErr := os.Stat(lockPath)
	assert.True(t, os.IsNotExist(statErr), "lock file must be removed after the attempt")
}
