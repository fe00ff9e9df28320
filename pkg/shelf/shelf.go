// Package shelf imports images into the host application's session
// resource shelf through its remote scripting endpoint.
//
// Substance Painter's remote control server listens on localhost and
// executes posted scripts; the client wraps the resource-import call in
// such a script so converted textures appear in the running session.
package shelf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Importer hands an image file to the host's shelf.
type Importer interface {
	// ImportResource imports the file at path as a session resource
	// under the given usage and display name.
	ImportResource(ctx context.Context, path, usage, name string) error
}

// Client talks to the host's remote scripting endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for the endpoint base URL
// (e.g. http://localhost:60041).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Ping checks whether the host endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/run.json", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("host endpoint unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

// ImportResource posts a script that calls the host's
// import_session_resource with the given file.
func (c *Client) ImportResource(ctx context.Context, path, usage, name string) error {
	if name == "" {
		name = filepath.Base(path)
	}

	payload := struct {
		Python string `json:"python"`
	}{Python: importScript(path, usage, name)}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode import payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run.json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build import request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("import %s: host returned %s: %s", path, resp.Status, strings.TrimSpace(string(excerpt)))
	}
	return nil
}

// importScript builds the python snippet executed inside the host.
func importScript(path, usage, name string) string {
	var b strings.Builder
	b.WriteString("import substance_painter.resource\n")
	b.WriteString("substance_painter.resource.import_session_resource(")
	b.WriteString(pyString(filepath.ToSlash(path)))
	b.WriteString(", substance_painter.resource.Usage.")
	b.WriteString(strings.ToUpper(usage))
	b.WriteString(", name=")
	b.WriteString(pyString(name))
	b.WriteString(")\n")
	return b.String()
}

// pyString quotes s as a python string literal. Go's quoting rules are
// a compatible subset for file paths and resource names.
func pyString(s string) string {
	return strconv.Quote(s)
}

// Dry is an Importer that records what would have been imported
// without contacting the host.
type Dry struct {
	Imported []string
}

// ImportResource records the path and succeeds.
func (d *Dry) ImportResource(_ context.Context, path, _, _ string) error {
	d.Imported = append(d.Imported, path)
	return nil
}
