package lib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Response is the union of the envelopes the api returns.
type Response struct {
	Items      []Item `json:"Items,omitempty"`
	Item       Item   `json:"Item,omitempty"`
	Count      int    `json:"Count,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"-"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Get(ctx context.Context, path string) *Response {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body any) *Response {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) *Response {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) *Response {
	return c.do(ctx, http.MethodPatch, path, body)
}

func (c *Client) Delete(ctx context.Context, path string, body any) *Response {
	return c.do(ctx, http.MethodDelete, path, body)
}

// do returns nil on transport or decode failure, after logging it. Error
// statuses with a json body are returned with Error set.
func (c *Client) do(ctx context.Context, method, path string, body any) *Response {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			Logger.Println("error:", err)
			return nil
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		Logger.Println("error:", err)
		return nil
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		Logger.Println("error:", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		Logger.Println("error:", err)
		return nil
	}
	out := &Response{}
	if len(bytes.TrimSpace(data)) > 0 {
		err = json.Unmarshal(data, out)
		if err != nil {
			err = fmt.Errorf("%s %s: %d: %w", method, path, resp.StatusCode, err)
			Logger.Println("error:", err)
			return nil
		}
	}
	out.StatusCode = resp.StatusCode
	if resp.StatusCode >= 300 && out.Error == "" {
		out.Error = http.StatusText(resp.StatusCode)
	}
	return out
}
