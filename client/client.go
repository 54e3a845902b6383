package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	fspath "path"
	"time"

	"github.com/andydunstall/dnd/pkg/kv"
	"github.com/andydunstall/dnd/pkg/status"
)

const (
	defaultURL     = "http://localhost:6000"
	defaultTimeout = time.Second * 15
)

// Client is a client for a nodes key-value API.
//
// Reads return the value known by the node, which may not yet include writes
// made to other nodes.
type Client struct {
	httpClient *http.Client

	url *url.URL
}

func NewClient(opts ...Option) (*Client, error) {
	options := options{
		url:     defaultURL,
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o.apply(&options)
	}

	u, err := url.Parse(options.url)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: options.timeout,
		},
		url: u,
	}, nil
}

// Get returns the JSON encoded value of the given key. Returns
// kv.ErrNotFound if the node doesn't know the key.
func (c *Client) Get(ctx context.Context, key string) (json.RawMessage, error) {
	resp, err := c.request(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return json.RawMessage(b), nil
}

// Put sets the given key to a JSON encoded value. Returns the nodes store
// version following the write.
func (c *Client) Put(ctx context.Context, key string, value json.RawMessage) (uint64, error) {
	resp, err := c.request(ctx, http.MethodPut, key, value)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var putResp struct {
		Version uint64 `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&putResp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return putResp.Version, nil
}

func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) request(
	ctx context.Context,
	method string,
	key string,
	body []byte,
) (*http.Response, error) {
	u := new(url.URL)
	*u = *c.url

	base := fspath.Join(u.Path, "/kv")
	u.Path = base + "/" + key
	u.RawPath = base + "/" + url.PathEscape(key)

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, kv.ErrNotFound
		}

		var errResp status.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("request: bad status: %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("request: bad status: %d", resp.StatusCode)
	}

	return resp, nil
}
