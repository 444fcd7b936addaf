package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-json"
)

const directoryContentType = "application/x-directory"

// AddEntry is one line of the add response: a file or directory that was added.
type AddEntry struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Add uploads the file or directory tree at path. Entry names are relative to the parent of
// path, so adding "/tmp/fake_dir" yields names such as "fake_dir/test2/fssync.py" and a final
// entry named "fake_dir" for the directory itself.
func (c *Client) Add(ctx context.Context, path string, pin bool) ([]AddEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Op: "add", Kind: ErrLocalFile, Err: err}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	root := filepath.Dir(path)
	if err := filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		return writePart(mw, filepath.ToSlash(rel), p, d.IsDir())
	}); err != nil {
		return nil, &Error{Op: "add", Kind: ErrLocalFile, Err: err}
	}
	if err := mw.Close(); err != nil {
		return nil, &Error{Op: "add", Kind: ErrLocalFile, Err: err}
	}

	params := url.Values{"pin": {strconv.FormatBool(pin)}}
	if info.IsDir() {
		params.Set("recursive", "true")
	}

	var entries []AddEntry
	err = c.stream(ctx, request{
		cmd:         "add",
		params:      params,
		body:        &body,
		contentType: mw.FormDataContentType(),
	}, func(dec *json.Decoder) error {
		var e AddEntry
		if err := dec.Decode(&e); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

func writePart(mw *multipart.Writer, name, path string, isDir bool) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, url.PathEscape(name)))
	if isDir {
		h.Set("Content-Type", directoryContentType)
		_, err := mw.CreatePart(h)
		return err
	}
	h.Set("Content-Type", "application/octet-stream")
	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Cat returns the contents of the file at path.
func (c *Client) Cat(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, request{cmd: "cat", args: []string{path}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("cat", err)
	}
	return data, nil
}
