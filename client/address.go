package client

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
)

// DefaultAddr is the address of a daemon API listening on its default port.
const DefaultAddr = "/dns/localhost/tcp/5001/http"

const apiBasePath = "/api/v0"

// BaseURL converts a daemon API address into the base URL that commands are appended to.
//
// The address may be a multiaddr such as /ip4/127.0.0.1/tcp/5001 or /dns/example.com/tcp/443/https,
// or a plain http(s) URL. A URL without a path gets the default /api/v0 base path.
func BaseURL(addr string) (string, error) {
	if addr == "" {
		addr = DefaultAddr
	}
	if strings.HasPrefix(addr, "/") {
		return baseURLFromMultiaddr(addr)
	}

	u, err := url.Parse(addr)
	if err != nil {
		return "", &Error{Op: "parse address", Kind: ErrAddress, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &Error{Op: "parse address", Kind: ErrAddress, Err: fmt.Errorf("unsupported scheme %q in %s", u.Scheme, addr)}
	}
	if u.Host == "" {
		return "", &Error{Op: "parse address", Kind: ErrAddress, Err: fmt.Errorf("no host in %s", addr)}
	}
	path := strings.TrimSuffix(u.Path, "/")
	if path == "" {
		path = apiBasePath
	}
	return u.Scheme + "://" + u.Host + path, nil
}

func baseURLFromMultiaddr(addr string) (string, error) {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return "", &Error{Op: "parse address", Kind: ErrAddress, Err: err}
	}

	var host string
	for _, code := range []int{ma.P_DNS, ma.P_DNS4, ma.P_DNS6, ma.P_IP4, ma.P_IP6} {
		if v, err := m.ValueForProtocol(code); err == nil {
			host = v
			break
		}
	}
	if host == "" {
		return "", &Error{Op: "parse address", Kind: ErrAddress, Err: fmt.Errorf("no host component in %s", addr)}
	}

	port, err := m.ValueForProtocol(ma.P_TCP)
	if err != nil {
		return "", &Error{Op: "parse address", Kind: ErrAddress, Err: fmt.Errorf("no tcp component in %s", addr)}
	}

	scheme := "http"
	if _, err := m.ValueForProtocol(ma.P_HTTPS); err == nil {
		scheme = "https"
	}

	return scheme + "://" + net.JoinHostPort(host, port) + apiBasePath, nil
}
