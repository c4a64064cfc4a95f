package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/HendryAvila/foundry/internal/tree"
)

// RemoteError is a non-2xx answer from the server: the backend rejected
// the operation.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote rejected request (%d): %s", e.StatusCode, e.Message)
}

// Client talks to a Server. It implements coordinator.Backend.
type Client struct {
	baseURL string
	http    *http.Client

	// fetches coalesces concurrent FetchTree calls per project.
	fetches singleflight.Group
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchTree returns the project forest. Concurrent calls for the same
// project share one request; each caller gets its own copy.
func (c *Client) FetchTree(ctx context.Context, projectID string) ([]*tree.Node, error) {
	v, err, _ := c.fetches.Do(projectID, func() (any, error) {
		var forest []*tree.Node
		err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/tree", nil, &forest)
		return forest, err
	})
	if err != nil {
		return nil, err
	}
	return tree.Clone(v.([]*tree.Node)), nil
}

// Projects implements Lister.
func (c *Client) Projects(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) CreateNode(ctx context.Context, projectID, parentID, title string) (*tree.Node, error) {
	var n tree.Node
	body := createRequest{ParentID: parentID, Title: title}
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(projectID)+"/nodes", body, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) RenameNode(ctx context.Context, id, title string) error {
	return c.do(ctx, http.MethodPatch, nodePath(id, ""), patchRequest{Title: &title}, nil)
}

// SetDescription implements Describer.
func (c *Client) SetDescription(ctx context.Context, id, description string) error {
	return c.do(ctx, http.MethodPatch, nodePath(id, ""), patchRequest{Description: &description}, nil)
}

func (c *Client) DeleteNode(ctx context.Context, id string, policy tree.Policy) error {
	path := nodePath(id, "")
	if policy != "" {
		path += "?policy=" + url.QueryEscape(string(policy))
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) RestoreNode(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, nodePath(id, "/restore"), nil, nil)
}

func (c *Client) SetStatus(ctx context.Context, id string, status tree.Status) error {
	return c.do(ctx, http.MethodPut, nodePath(id, "/status"), statusRequest{Status: status}, nil)
}

func (c *Client) SetLevel(ctx context.Context, id string, level tree.Level) error {
	return c.do(ctx, http.MethodPut, nodePath(id, "/level"), levelRequest{Level: level}, nil)
}

func (c *Client) MoveNode(ctx context.Context, id, parentID string, position int) error {
	return c.do(ctx, http.MethodPost, nodePath(id, "/move"), moveRequest{ParentID: parentID, Position: position}, nil)
}

func nodePath(id, suffix string) string {
	return "/api/nodes/" + url.PathEscape(id) + suffix
}

// do sends one request. Transport failures are wrapped; non-2xx answers
// become *RemoteError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpapi: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("httpapi: build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &RemoteError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httpapi: decode %s %s: %w", method, path, err)
	}
	return nil
}
