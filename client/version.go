package client

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-version"
)

// DefaultVersionConstraint is the range of daemon versions this client is known to work with.
// Pre-release suffixes such as -dev or -rc1 are ignored when checking.
const DefaultVersionConstraint = ">= 0.5.0, < 1.0.0"

// VersionInfo is the response of the version command.
type VersionInfo struct {
	Version string `json:"Version"`
	Commit  string `json:"Commit"`
	Repo    string `json:"Repo"`
	System  string `json:"System"`
	Golang  string `json:"Golang"`
}

// IDInfo is the response of the id command.
type IDInfo struct {
	ID              string   `json:"ID"`
	PublicKey       string   `json:"PublicKey"`
	Addresses       []string `json:"Addresses"`
	AgentVersion    string   `json:"AgentVersion"`
	ProtocolVersion string   `json:"ProtocolVersion"`
}

// Version asks the daemon for its version.
func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var info VersionInfo
	err := c.call(ctx, request{cmd: "version"}, &info)
	return info, err
}

// CheckVersion asks the daemon for its version and verifies it against the client's
// version constraint.
func (c *Client) CheckVersion(ctx context.Context) (VersionInfo, error) {
	info, err := c.Version(ctx)
	if err != nil {
		return info, err
	}
	return info, checkVersion(info.Version, c.constraint)
}

// ID returns the identity of the daemon's node.
func (c *Client) ID(ctx context.Context) (IDInfo, error) {
	var info IDInfo
	err := c.call(ctx, request{cmd: "id"}, &info)
	return info, err
}

func checkVersion(v, constraint string) error {
	cs, err := version.NewConstraint(constraint)
	if err != nil {
		return &Error{Op: "version", Kind: ErrVersionMismatch, Err: fmt.Errorf("invalid constraint %q: %w", constraint, err)}
	}
	ver, err := version.NewVersion(v)
	if err != nil {
		return &Error{Op: "version", Kind: ErrVersionMismatch, Err: fmt.Errorf("unparseable daemon version %q: %w", v, err)}
	}
	if !cs.Check(ver.Core()) {
		return &Error{Op: "version", Kind: ErrVersionMismatch, Err: fmt.Errorf("daemon version %s does not satisfy %q", v, constraint)}
	}
	return nil
}
