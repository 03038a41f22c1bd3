// Package registry talks to the schema registry over HTTP. It implements the
// resolver contract used by the state bootstrap: list the versions known for
// a model group and fetch individual schema bodies.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/meridian-data/streamloader/internal/schemaid"
)

const defaultTimeout = 10 * time.Second

// Error classifies a registry failure: which operation failed, for what
// schema, and the HTTP status when one was received.
type Error struct {
	Op         string // "list" or "fetch"
	Subject    string // group or identifier in canonical form
	StatusCode int    // 0 when the request never completed
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("registry %s %s: unexpected status %d", e.Op, e.Subject, e.StatusCode)
	}
	return fmt.Sprintf("registry %s %s: %v", e.Op, e.Subject, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNotFound is wrapped into an Error when the registry has no entry.
var ErrNotFound = errors.New("schema not found in registry")

// Client is an HTTP registry client.
//
// Endpoints:
//
//	GET {base}/api/schemas/{vendor}/{name}            -> JSON array of identifier strings
//	GET {base}/api/schemas/{vendor}/{name}/{format}/{M-R-A} -> schema document
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListVersions enumerates the group's identifiers, ascending by version.
// Identifiers for other models of the same vendor/name are filtered out.
func (c *Client) ListVersions(ctx context.Context, group schemaid.Group) ([]schemaid.Identifier, error) {
	endpoint := fmt.Sprintf("%s/api/schemas/%s/%s",
		c.baseURL, url.PathEscape(group.Vendor), url.PathEscape(group.Name))

	body, err := c.get(ctx, "list", group.String(), endpoint)
	if err != nil {
		return nil, err
	}

	var uris []string
	if err := json.Unmarshal(body, &uris); err != nil {
		return nil, &Error{Op: "list", Subject: group.String(), Err: fmt.Errorf("decode version list: %w", err)}
	}

	ids := make([]schemaid.Identifier, 0, len(uris))
	for _, uri := range uris {
		id, err := schemaid.Parse(uri)
		if err != nil {
			return nil, &Error{Op: "list", Subject: group.String(), Err: err}
		}
		if id.Version.Model != group.Model {
			continue
		}
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Version.Compare(ids[j].Version) < 0
	})
	return ids, nil
}

// FetchBody retrieves one schema document.
func (c *Client) FetchBody(ctx context.Context, id schemaid.Identifier) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/api/schemas/%s/%s/%s/%s",
		c.baseURL,
		url.PathEscape(id.Vendor), url.PathEscape(id.Name),
		url.PathEscape(id.Format), id.Version)

	body, err := c.get(ctx, "fetch", id.String(), endpoint)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &Error{Op: "fetch", Subject: id.String(), Err: errors.New("registry returned invalid JSON")}
	}
	return json.RawMessage(body), nil
}

func (c *Client) get(ctx context.Context, op, subject, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Op: op, Subject: subject, Err: err}
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Subject: subject, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &Error{Op: op, Subject: subject, StatusCode: resp.StatusCode, Err: ErrNotFound}
	case resp.StatusCode != http.StatusOK:
		return nil, &Error{Op: op, Subject: subject, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, Subject: subject, Err: fmt.Errorf("read response: %w", err)}
	}
	return body, nil
}
