package framework

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ipfs-shipyard/ipfshttp-tests/client"
	"github.com/ipfs-shipyard/ipfshttp-tests/logging"
)

// SkipReason is the message of tests skipped because the daemon cannot be reached.
const SkipReason = "Running IPFS node required"

// TB is the part of testing.TB that the fixtures use.
type TB interface {
	Helper()
	Name() string
	Cleanup(func())
	Failed() bool
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Skip(args ...interface{})
	Logf(format string, args ...interface{})
}

// Provider hands out daemon clients to tests. Create one per test package, in TestMain, and
// run the package through Main so that the package-scoped client is released.
type Provider struct {
	config Config
	avail  *Availability
	shared *client.Client
	closed bool
	lock   sync.Mutex
}

// NewProvider creates a Provider. If avail is nil, a cache around ConnectProbe is created,
// so the daemon is probed with the same address the clients will use.
func NewProvider(config Config, avail *Availability) *Provider {
	if avail == nil {
		avail = NewAvailability(ConnectProbe(config.ClientOptions(false)))
	}
	return &Provider{config: config, avail: avail}
}

// Availability returns the cache the Provider consults.
func (p *Provider) Availability() *Availability {
	return p.avail
}

// RequireDaemon skips the test if the daemon is unreachable, and fails it if the probe failed
// for any other reason.
func (p *Provider) RequireDaemon(t TB) {
	t.Helper()
	if p.avail.IsAvailable(context.Background()) {
		return
	}
	if !p.avail.Unreachable() {
		t.Fatalf("daemon availability probe failed: %s", p.avail.Err())
	}
	t.Skip(SkipReason + " (" + p.avail.Err().Error() + ")")
}

// GetClient returns a new client in online or offline mode, skipping the test if the daemon
// is unreachable. The caller owns the client and must close it.
func (p *Provider) GetClient(t TB, offline bool) *client.Client {
	t.Helper()
	return p.newClient(t, offline, nil)
}

func (p *Provider) newClient(t TB, offline bool, logger logging.Logger) *client.Client {
	t.Helper()
	p.RequireDaemon(t)
	opts := p.config.ClientOptions(offline)
	opts.Logger = logger
	c, err := client.New(opts)
	if err != nil {
		t.Fatalf("creating client: %s", err)
	}
	return c
}

// Client returns an online client that is closed when the test ends.
//
// Its requests are logged and shown in the test output if the test fails.
func (p *Provider) Client(t TB) *client.Client {
	t.Helper()
	return p.scopedClient(t, false)
}

// OfflineClient returns an offline client that is closed when the test ends.
func (p *Provider) OfflineClient(t TB) *client.Client {
	t.Helper()
	return p.scopedClient(t, true)
}

func (p *Provider) scopedClient(t TB, offline bool) *client.Client {
	t.Helper()
	debugLogger := &logging.CapturingLogger{}
	c := p.newClient(t, offline, debugLogger)
	t.Cleanup(func() {
		_ = c.Close()
		if output := debugLogger.Output(); len(output) > 0 && (t.Failed() || p.config.Debug) {
			t.Logf("requests made by %s:\n%s", t.Name(), output)
		}
	})
	return c
}

// ModuleOfflineClient returns the package-scoped offline client. It is created by the first
// test that asks for it and shared by every later test; Close releases it.
func (p *Provider) ModuleOfflineClient(t TB) *client.Client {
	t.Helper()
	p.RequireDaemon(t)

	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		t.Fatalf("provider was already closed")
	}
	if p.shared == nil {
		c, err := client.New(p.config.ClientOptions(true))
		if err != nil {
			t.Fatalf("creating client: %s", err)
		}
		p.shared = c
	}
	return p.shared
}

// CleanupPins uses a test-scoped online client to restore the recursive pin set after the
// test; see the CleanupPins function.
func (p *Provider) CleanupPins(t TB) {
	t.Helper()
	CleanupPins(t, p.Client(t).Pin())
}

// Close releases the package-scoped client. Later calls to ModuleOfflineClient fail the test.
func (p *Provider) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return errors.New("provider was already closed")
	}
	p.closed = true
	if p.shared != nil {
		return p.shared.Close()
	}
	return nil
}

// Main runs the package's tests and then closes p. Use it from TestMain:
//
//	func TestMain(m *testing.M) {
//		os.Exit(framework.Main(m, provider))
//	}
func Main(m *testing.M, p *Provider) int {
	code := m.Run()
	_ = p.Close()
	return code
}
