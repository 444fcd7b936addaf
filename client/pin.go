package client

import (
	"context"
	"net/url"
	"sort"
	"strconv"
)

// PinType selects which pins pin/ls reports.
type PinType string

const (
	PinTypeAll       PinType = "all"
	PinTypeDirect    PinType = "direct"
	PinTypeIndirect  PinType = "indirect"
	PinTypeRecursive PinType = "recursive"
)

// PinInfo describes one pinned object.
type PinInfo struct {
	Type string `json:"Type"`
}

// PinLsResult is the response of pin/ls, keyed by content identifier.
type PinLsResult struct {
	Keys map[string]PinInfo `json:"Keys"`
}

// CIDs returns the pinned identifiers in sorted order.
func (r PinLsResult) CIDs() []string {
	ret := make([]string, 0, len(r.Keys))
	for k := range r.Keys {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

type pinsResponse struct {
	Pins []string `json:"Pins"`
}

// PinService groups the pin/* commands.
type PinService struct {
	c *Client
}

// Pin returns the pin commands of the client.
func (c *Client) Pin() *PinService {
	return &PinService{c: c}
}

// Ls lists pinned objects of the given type. An empty type means PinTypeAll.
func (p *PinService) Ls(ctx context.Context, typ PinType) (PinLsResult, error) {
	if typ == "" {
		typ = PinTypeAll
	}
	var ret PinLsResult
	err := p.c.call(ctx, request{cmd: "pin/ls", params: url.Values{"type": {string(typ)}}}, &ret)
	if ret.Keys == nil {
		ret.Keys = map[string]PinInfo{}
	}
	return ret, err
}

// Add pins the object at path and returns the identifiers that were pinned.
func (p *PinService) Add(ctx context.Context, path string, recursive bool) ([]string, error) {
	var ret pinsResponse
	err := p.c.call(ctx, request{
		cmd:    "pin/add",
		args:   []string{path},
		params: url.Values{"recursive": {strconv.FormatBool(recursive)}},
	}, &ret)
	return ret.Pins, err
}

// Rm removes the pin of the object at path and returns the identifiers that were unpinned.
func (p *PinService) Rm(ctx context.Context, path string) ([]string, error) {
	var ret pinsResponse
	err := p.c.call(ctx, request{cmd: "pin/rm", args: []string{path}}, &ret)
	return ret.Pins, err
}
