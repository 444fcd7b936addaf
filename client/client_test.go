package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ipfs-shipyard/ipfshttp-tests/internal/fakedaemon"
	"github.com/ipfs-shipyard/ipfshttp-tests/logging"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withDaemon(t *testing.T, action func(*fakedaemon.Daemon)) {
	d := fakedaemon.New(logging.LoggerFunc(t.Logf))
	defer d.Close()
	action(d)
}

func newTestClient(t *testing.T, addr string, offline bool) *Client {
	c, err := New(Options{Addr: addr, Offline: offline, Logger: logging.LoggerFunc(t.Logf)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnect(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		c, err := Connect(context.Background(), Options{Addr: d.URL()})
		require.NoError(t, err)
		defer c.Close()

		assert.Equal(t, d.URL()+"/api/v0", c.BaseURL())
		assert.Len(t, d.Calls("version"), 1)
	})
}

func TestConnectUnreachable(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(200))
	addr := server.URL
	server.Close()

	c, err := Connect(context.Background(), Options{Addr: addr})
	assert.Nil(t, c)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnection), "got %v", err)
	assert.True(t, IsError(err))
}

func TestConnectVersionMismatch(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		d.SetVersion("1.2.0")
		_, err := Connect(context.Background(), Options{Addr: d.URL()})
		assert.True(t, errors.Is(err, ErrVersionMismatch), "got %v", err)
	})
}

func TestConnectAcceptsPrereleaseOfSupportedVersion(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		d.SetVersion("0.25.0-dev")
		c, err := Connect(context.Background(), Options{Addr: d.URL()})
		require.NoError(t, err)
		_ = c.Close()
	})
}

func TestConnectCustomVersionConstraint(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		d.SetVersion("0.4.23")
		_, err := Connect(context.Background(), Options{Addr: d.URL()})
		assert.True(t, errors.Is(err, ErrVersionMismatch))

		c, err := Connect(context.Background(), Options{Addr: d.URL(), VersionConstraint: ">= 0.4.0"})
		require.NoError(t, err)
		_ = c.Close()
	})
}

func TestOfflineClientSendsOfflineParameter(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		c := newTestClient(t, d.URL(), true)
		assert.True(t, c.Offline())

		_, err := c.Pin().Ls(context.Background(), PinTypeRecursive)
		require.NoError(t, err)

		calls := d.Calls("pin/ls")
		require.Len(t, calls, 1)
		assert.Equal(t, "true", calls[0].Query.Get("offline"))
		assert.Equal(t, "recursive", calls[0].Query.Get("type"))
	})
}

func TestOnlineClientOmitsOfflineParameter(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		c := newTestClient(t, d.URL(), false)

		_, err := c.Version(context.Background())
		require.NoError(t, err)

		calls := d.Calls("version")
		require.Len(t, calls, 1)
		assert.Empty(t, calls[0].Query.Get("offline"))
	})
}

func TestErrorResponse(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		c := newTestClient(t, d.URL(), false)

		_, err := c.Pin().Rm(context.Background(), "QmNotPinned")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrResponse))

		var resp *ErrorResponse
		require.True(t, errors.As(err, &resp))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "not pinned or pinned indirectly", resp.Message)
	})
}

func TestStatusErrorWithoutErrorObject(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(http.StatusTeapot), func(server *httptest.Server) {
		c := newTestClient(t, server.URL, false)

		_, err := c.Version(context.Background())
		assert.True(t, errors.Is(err, ErrStatus), "got %v", err)

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusTeapot, se.StatusCode)
	})
}

func TestMalformedResponse(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(http.StatusOK, nil, []byte("not json"))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := newTestClient(t, server.URL, false)

		_, err := c.Version(context.Background())
		assert.True(t, errors.Is(err, ErrProtocol), "got %v", err)
	})
}

func TestNoRetriesByDefault(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(http.StatusServiceUnavailable))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := newTestClient(t, server.URL, false)

		_, err := c.Version(context.Background())
		assert.True(t, errors.Is(err, ErrStatus), "got %v", err)
		assert.Equal(t, 1, len(requestsCh))
	})
}

func TestCommandErrorsAreNotRetried(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		c, err := New(Options{Addr: d.URL(), RetryMax: 3})
		require.NoError(t, err)
		defer c.Close()

		_, err = c.Pin().Rm(context.Background(), "QmNotPinned")
		assert.True(t, errors.Is(err, ErrResponse))
		assert.Len(t, d.Calls("pin/rm"), 1)
	})
}

func TestTimeout(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c, err := New(Options{Addr: server.URL, Timeout: 20 * time.Millisecond})
		require.NoError(t, err)
		defer c.Close()

		_, err = c.Version(context.Background())
		assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	})
}

func TestBasicAuth(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(
		httphelpers.HandlerWithJSONResponse(map[string]string{"Version": "0.18.1"}, nil))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c, err := New(Options{Addr: server.URL, Username: "user", Password: "secret"})
		require.NoError(t, err)
		defer c.Close()

		info, err := c.Version(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "0.18.1", info.Version)

		r := <-requestsCh
		user, pass, ok := r.Request.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, http.MethodPost, r.Request.Method)
	})
}

func TestClosedClient(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		c, err := New(Options{Addr: d.URL()})
		require.NoError(t, err)

		require.NoError(t, c.Close())
		require.NoError(t, c.Close())
		assert.True(t, c.Closed())

		_, err = c.Version(context.Background())
		assert.True(t, errors.Is(err, ErrClosed))
		assert.Empty(t, d.Calls(""))
	})
}

func TestPinLsEmpty(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		c := newTestClient(t, d.URL(), false)

		result, err := c.Pin().Ls(context.Background(), PinTypeRecursive)
		require.NoError(t, err)
		assert.NotNil(t, result.Keys)
		assert.Empty(t, result.CIDs())
	})
}

func TestPinAddLsRm(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		c := newTestClient(t, d.URL(), false)
		ctx := context.Background()

		pinned, err := c.Pin().Add(ctx, "QmB", true)
		require.NoError(t, err)
		assert.Equal(t, []string{"QmB"}, pinned)
		_, err = c.Pin().Add(ctx, "QmA", true)
		require.NoError(t, err)
		_, err = c.Pin().Add(ctx, "QmDirect", false)
		require.NoError(t, err)

		result, err := c.Pin().Ls(ctx, PinTypeRecursive)
		require.NoError(t, err)
		assert.Equal(t, []string{"QmA", "QmB"}, result.CIDs())
		assert.Equal(t, "recursive", result.Keys["QmA"].Type)

		all, err := c.Pin().Ls(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all.Keys, 3)

		removed, err := c.Pin().Rm(ctx, "QmA")
		require.NoError(t, err)
		assert.Equal(t, []string{"QmA"}, removed)
		assert.Equal(t, []string{"QmB"}, d.RecursivePins())
	})
}

func TestAddFileAndCat(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		c := newTestClient(t, d.URL(), false)
		ctx := context.Background()

		p := filepath.Join(t.TempDir(), "hello.txt")
		require.NoError(t, os.WriteFile(p, []byte("hello world"), 0o644))

		entries, err := c.Add(ctx, p, false)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "hello.txt", entries[0].Name)
		assert.Equal(t, fakedaemon.ContentID([]byte("hello world")), entries[0].Hash)
		assert.Equal(t, "11", entries[0].Size)
		assert.Empty(t, d.RecursivePins())

		data, err := c.Cat(ctx, entries[0].Hash)
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(data))
	})
}

func TestAddDirectoryPinsRoot(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		c := newTestClient(t, d.URL(), false)

		root := filepath.Join(t.TempDir(), "tree")
		require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("bb"), 0o644))

		entries, err := c.Add(context.Background(), root, true)
		require.NoError(t, err)

		var names []string
		for _, e := range entries {
			names = append(names, e.Name)
		}
		assert.ElementsMatch(t, []string{"tree/a.txt", "tree/sub/b.txt", "tree/sub", "tree"}, names)

		last := entries[len(entries)-1]
		assert.Equal(t, "tree", last.Name)
		assert.Equal(t, "3", last.Size)
		assert.Equal(t, []string{last.Hash}, d.RecursivePins())

		calls := d.Calls("add")
		require.Len(t, calls, 1)
		assert.Equal(t, "true", calls[0].Query.Get("recursive"))
	})
}

func TestAddMissingPath(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		c := newTestClient(t, d.URL(), false)
		_, err := c.Add(context.Background(), filepath.Join(t.TempDir(), "missing"), true)
		assert.True(t, errors.Is(err, os.ErrNotExist))
		assert.True(t, errors.Is(err, ErrLocalFile))
		assert.True(t, IsError(err))
		assert.Empty(t, d.Calls("add"))
	})
}

func TestCatMissing(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		c := newTestClient(t, d.URL(), true)
		_, err := c.Cat(context.Background(), "QmMissing")
		assert.True(t, errors.Is(err, ErrResponse))
	})
}

func TestID(t *testing.T) {
	withDaemon(t, func(d *fakedaemon.Daemon) {
		c := newTestClient(t, d.URL(), false)
		info, err := c.ID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "12D3KooWFakeDaemon", info.ID)
	})
}
