package client

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ipfs-shipyard/ipfshttp-tests/logging"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const maxErrorBodySize = 64 * 1024

// DefaultTimeout is the request timeout the test fixtures use when none is configured.
const DefaultTimeout = 120 * time.Second

// Options configures a Client.
type Options struct {
	// Addr is the daemon API address, as a multiaddr or an http(s) URL. Defaults to DefaultAddr.
	Addr string

	// Offline asks the daemon to answer every command from local state only, without
	// touching the wider peer network.
	Offline bool

	// Timeout bounds each request. Zero means no timeout beyond the request context.
	Timeout time.Duration

	// RetryMax is the number of retries for requests that fail with a connection error or a
	// 429/502/503/504 status. The default of zero means a failed request is reported as is.
	RetryMax int

	// Username and Password enable HTTP basic auth, for daemons behind an authenticating proxy.
	Username string
	Password string

	// VersionConstraint is checked by Connect. Defaults to DefaultVersionConstraint.
	VersionConstraint string

	// Logger receives a line per request and response. Defaults to a null logger.
	Logger logging.Logger

	// HTTPClient is copied and used as the underlying transport. Defaults to a pooled client
	// from go-cleanhttp.
	HTTPClient *http.Client
}

// Client talks to the daemon's /api/v0 HTTP API. It is safe for concurrent use. A Client holds
// pooled connections and should be released with Close.
type Client struct {
	baseURL    string
	offline    bool
	username   string
	password   string
	constraint string
	httpClient *http.Client
	base       *http.Client
	logger     logging.Logger
	closed     atomic.Bool
}

type request struct {
	cmd         string
	args        []string
	params      url.Values
	body        io.Reader
	contentType string
}

type errorBody struct {
	Message string `json:"Message"`
	Code    int    `json:"Code"`
	Type    string `json:"Type"`
}

// New creates a Client without contacting the daemon.
func New(opts Options) (*Client, error) {
	baseURL, err := BaseURL(opts.Addr)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NullLogger()
	}

	var base *http.Client
	if opts.HTTPClient != nil {
		hc := *opts.HTTPClient
		base = &hc
	} else {
		base = cleanhttp.DefaultPooledClient()
	}
	if opts.Timeout > 0 {
		base.Timeout = opts.Timeout
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = base
	rc.RetryMax = opts.RetryMax
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	constraint := opts.VersionConstraint
	if constraint == "" {
		constraint = DefaultVersionConstraint
	}

	return &Client{
		baseURL:    baseURL,
		offline:    opts.Offline,
		username:   opts.Username,
		password:   opts.Password,
		constraint: constraint,
		httpClient: rc.StandardClient(),
		base:       base,
		logger:     logger,
	}, nil
}

// Connect creates a Client and verifies that the daemon answers and runs a supported version.
// On failure the partially built client is closed.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	if _, err := c.CheckVersion(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// BaseURL returns the URL that command paths are appended to.
func (c *Client) BaseURL() string { return c.baseURL }

// Offline reports whether the client was created in offline mode.
func (c *Client) Offline() bool { return c.offline }

// Closed reports whether Close has been called.
func (c *Client) Closed() bool { return c.closed.Load() }

// Close releases pooled connections. Any later request fails with ErrClosed. Calling Close
// more than once is harmless.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.base.CloseIdleConnections()
	c.logger.Printf("Client for %s closed", c.baseURL)
	return nil
}

// checkRetry only retries failures that cannot have been caused by the command itself. The
// daemon reports command errors with HTTP 500, which must never be retried.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	if c.closed.Load() {
		return nil, &Error{Op: r.cmd, Kind: ErrClosed}
	}

	q := url.Values{}
	for _, a := range r.args {
		q.Add("arg", a)
	}
	for k, vs := range r.params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if c.offline {
		q.Set("offline", "true")
	}
	q.Set("stream-channels", "true")
	u := c.baseURL + "/" + r.cmd + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, r.body)
	if err != nil {
		return nil, &Error{Op: r.cmd, Kind: ErrAddress, Err: err}
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	c.logger.Printf("POST %s", u)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Printf("%s failed: %s", r.cmd, err)
		return nil, transportError(r.cmd, err)
	}
	c.logger.Printf("%s returned HTTP %d", r.cmd, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, responseError(r.cmd, resp)
	}
	return resp, nil
}

// call runs a command whose response is a single JSON object. A nil out discards the body.
func (c *Client) call(ctx context.Context, r request, out interface{}) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: r.cmd, Kind: ErrProtocol, Err: err}
	}
	return nil
}

// stream runs a command whose response is a sequence of JSON objects, calling next once
// per object until the body is exhausted.
func (c *Client) stream(ctx context.Context, r request, next func(*json.Decoder) error) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		if err := next(dec); err != nil {
			if err == io.EOF {
				return nil
			}
			return &Error{Op: r.cmd, Kind: ErrProtocol, Err: err}
		}
	}
}

func transportError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Op: op, Kind: ErrTimeout, Err: err}
	}
	return &Error{Op: op, Kind: ErrConnection, Err: err}
}

func responseError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Type == "error" {
		return &Error{Op: op, Kind: ErrResponse, Err: &ErrorResponse{
			StatusCode: resp.StatusCode,
			Message:    body.Message,
			Code:       body.Code,
		}}
	}
	return &Error{Op: op, Kind: ErrStatus, Err: &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(data)),
	}}
}
