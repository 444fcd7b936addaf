// Package fakedaemon provides an in-process imitation of the storage daemon's HTTP API, so
// that the client and the test fixtures can be tested without a real daemon.
//
// It implements just enough of the API to be stateful: added content is kept in memory, can be
// read back with cat, and can be pinned, listed and unpinned. Every request is recorded so tests
// can assert on exactly which commands were issued and with which parameters.
package fakedaemon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ipfs-shipyard/ipfshttp-tests/logging"

	"github.com/goccy/go-json"
)

const apiPathPrefix = "/api/v0/"

// DefaultVersion is the version the fake daemon reports unless SetVersion is called.
const DefaultVersion = "0.18.1"

// Call is a request received by the fake daemon.
type Call struct {
	Command string
	Query   url.Values
}

type failure struct {
	status  int
	message string
}

// Daemon is a running fake daemon. Close must be called to shut down its listener.
type Daemon struct {
	server   *httptest.Server
	version  string
	blocks   map[string][]byte
	pins     map[string]string
	calls    []Call
	failures map[string]failure
	logger   logging.Logger
	lock     sync.Mutex
}

// New starts a fake daemon on a local port.
func New(logger logging.Logger) *Daemon {
	if logger == nil {
		logger = logging.NullLogger()
	}
	d := &Daemon{
		version:  DefaultVersion,
		blocks:   make(map[string][]byte),
		pins:     make(map[string]string),
		failures: make(map[string]failure),
		logger:   logger,
	}
	d.server = httptest.NewServer(http.HandlerFunc(d.serveHTTP))
	return d
}

// URL returns the base URL of the fake daemon, usable as a client address.
func (d *Daemon) URL() string {
	return d.server.URL
}

// Close shuts down the listener and any open connections.
func (d *Daemon) Close() {
	d.server.CloseClientConnections()
	d.server.Close()
}

// SetVersion changes the version reported by the version command.
func (d *Daemon) SetVersion(v string) {
	d.lock.Lock()
	d.version = v
	d.lock.Unlock()
}

// FailCommand makes every later request for cmd fail with the given status. A non-empty
// message is sent as the daemon's JSON error object, otherwise the body is plain text.
func (d *Daemon) FailCommand(cmd string, status int, message string) {
	d.lock.Lock()
	d.failures[cmd] = failure{status: status, message: message}
	d.lock.Unlock()
}

// Pin adds a recursive pin directly, as if some earlier process had created it.
func (d *Daemon) Pin(cid string) {
	d.lock.Lock()
	d.pins[cid] = "recursive"
	d.lock.Unlock()
}

// RecursivePins returns the recursively pinned identifiers in sorted order.
func (d *Daemon) RecursivePins() []string {
	d.lock.Lock()
	defer d.lock.Unlock()
	var ret []string
	for cid, typ := range d.pins {
		if typ == "recursive" {
			ret = append(ret, cid)
		}
	}
	sort.Strings(ret)
	return ret
}

// Calls returns the recorded requests for cmd, or all requests if cmd is empty.
func (d *Daemon) Calls(cmd string) []Call {
	d.lock.Lock()
	defer d.lock.Unlock()
	var ret []Call
	for _, c := range d.calls {
		if cmd == "" || c.Command == cmd {
			ret = append(ret, c)
		}
	}
	return ret
}

// ContentID returns the identifier the fake daemon assigns to data.
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)
	return "Qm" + hex.EncodeToString(sum[:])[:44]
}

func (d *Daemon) serveHTTP(w http.ResponseWriter, req *http.Request) {
	if !strings.HasPrefix(req.URL.Path, apiPathPrefix) {
		d.logger.Printf("Received request for unrecognized URL path %s", req.URL.Path)
		http.NotFound(w, req)
		return
	}
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = io.WriteString(w, "405 - Method Not Allowed\n")
		return
	}

	cmd := strings.TrimPrefix(req.URL.Path, apiPathPrefix)
	query := req.URL.Query()

	d.lock.Lock()
	d.calls = append(d.calls, Call{Command: cmd, Query: query})
	f, failing := d.failures[cmd]
	d.lock.Unlock()
	d.logger.Printf("Received %s %s", cmd, query.Encode())

	if failing {
		if f.message != "" {
			writeError(w, f.status, f.message)
		} else {
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, http.StatusText(f.status))
		}
		return
	}

	d.lock.Lock()
	v := d.version
	d.lock.Unlock()

	switch cmd {
	case "version":
		writeJSON(w, map[string]string{
			"Version": v,
			"Commit":  "",
			"Repo":    "13",
			"System":  "amd64/linux",
			"Golang":  "go1.22.0",
		})
	case "id":
		writeJSON(w, map[string]interface{}{
			"ID":              "12D3KooWFakeDaemon",
			"PublicKey":       "CAESIFake",
			"Addresses":       []string{},
			"AgentVersion":    "kubo/" + v + "/fake",
			"ProtocolVersion": "ipfs/0.1.0",
		})
	case "add":
		d.handleAdd(w, req)
	case "cat":
		d.handleCat(w, query)
	case "pin/ls":
		d.handlePinLs(w, query)
	case "pin/add":
		d.handlePinAdd(w, query)
	case "pin/rm":
		d.handlePinRm(w, query)
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown command %q", cmd))
	}
}

type addedNode struct {
	name  string
	isDir bool
	data  []byte
}

func (d *Daemon) handleAdd(w http.ResponseWriter, req *http.Request) {
	mr, err := req.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var nodes []addedNode
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		name, err := url.PathUnescape(params["filename"])
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		n := addedNode{name: name, isDir: part.Header.Get("Content-Type") == "application/x-directory"}
		if !n.isDir {
			if n.data, err = io.ReadAll(part); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		nodes = append(nodes, n)
	}

	// Directories are hashed from their children, deepest first, so a parent sees final child IDs.
	ids := make(map[string]string)
	sizes := make(map[string]int)
	var files, dirs []addedNode
	for _, n := range nodes {
		if n.isDir {
			dirs = append(dirs, n)
		} else {
			files = append(files, n)
		}
	}
	sort.SliceStable(dirs, func(i, j int) bool {
		return strings.Count(dirs[i].name, "/") > strings.Count(dirs[j].name, "/")
	})

	d.lock.Lock()
	for _, f := range files {
		id := ContentID(f.data)
		d.blocks[id] = f.data
		ids[f.name] = id
		sizes[f.name] = len(f.data)
	}
	for _, dir := range dirs {
		var children []string
		size := 0
		for name, id := range ids {
			if path.Dir(name) == dir.name {
				children = append(children, path.Base(name)+":"+id)
				size += sizes[name]
			}
		}
		sort.Strings(children)
		id := ContentID([]byte("dir\n" + strings.Join(children, "\n")))
		ids[dir.name] = id
		sizes[dir.name] = size
	}
	if req.URL.Query().Get("pin") != "false" {
		for name, id := range ids {
			if !strings.Contains(name, "/") {
				d.pins[id] = "recursive"
			}
		}
	}
	d.lock.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	for _, n := range append(files, dirs...) {
		_ = enc.Encode(map[string]string{
			"Name": n.name,
			"Hash": ids[n.name],
			"Size": strconv.Itoa(sizes[n.name]),
		})
	}
}

func (d *Daemon) handleCat(w http.ResponseWriter, query url.Values) {
	id := strings.TrimPrefix(query.Get("arg"), "/ipfs/")
	d.lock.Lock()
	data, ok := d.blocks[id]
	d.lock.Unlock()
	if !ok {
		writeError(w, http.StatusInternalServerError, "block was not found locally (offline): ipld: could not find "+id)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write(data)
}

func (d *Daemon) handlePinLs(w http.ResponseWriter, query url.Values) {
	typ := query.Get("type")
	if typ == "" {
		typ = "all"
	}
	keys := make(map[string]map[string]string)
	d.lock.Lock()
	for cid, pinType := range d.pins {
		if typ == "all" || typ == pinType {
			keys[cid] = map[string]string{"Type": pinType}
		}
	}
	d.lock.Unlock()
	writeJSON(w, map[string]interface{}{"Keys": keys})
}

func (d *Daemon) handlePinAdd(w http.ResponseWriter, query url.Values) {
	id := strings.TrimPrefix(query.Get("arg"), "/ipfs/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "argument \"ipfs-path\" is required")
		return
	}
	typ := "recursive"
	if query.Get("recursive") == "false" {
		typ = "direct"
	}
	d.lock.Lock()
	d.pins[id] = typ
	d.lock.Unlock()
	writeJSON(w, map[string][]string{"Pins": {id}})
}

func (d *Daemon) handlePinRm(w http.ResponseWriter, query url.Values) {
	id := strings.TrimPrefix(query.Get("arg"), "/ipfs/")
	d.lock.Lock()
	_, ok := d.pins[id]
	if ok {
		delete(d.pins, id)
	}
	d.lock.Unlock()
	if !ok {
		writeError(w, http.StatusInternalServerError, "not pinned or pinned indirectly")
		return
	}
	writeJSON(w, map[string][]string{"Pins": {id}})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	data, _ := json.Marshal(map[string]interface{}{
		"Message": message,
		"Code":    0,
		"Type":    "error",
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
