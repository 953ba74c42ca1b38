package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imaged/pkg/types"
)

// API is the part of the HTTP API the tools use.
type API interface {
	Generate(ctx context.Context, req types.GenerationRequest) (types.GenerateResponse, error)
	ListImages(ctx context.Context) ([]types.ImageInfo, error)
	ImageInfo(ctx context.Context, filename string) (types.ImageInfo, error)
	// URL turns a server-relative path into an absolute URL.
	URL(path string) string
}

// APIError is a non-2xx reply from the HTTP API.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Detail)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// Client calls the imaged HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a Client for baseURL. timeout bounds each call,
// including a cold model load on the server; zero means no limit.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) URL(path string) string { return c.base + path }

func (c *Client) Generate(ctx context.Context, req types.GenerationRequest) (types.GenerateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return types.GenerateResponse{}, err
	}
	var out types.GenerateResponse
	err = c.do(ctx, http.MethodPost, "/api/generate", bytes.NewReader(body), &out)
	return out, err
}

func (c *Client) ListImages(ctx context.Context) ([]types.ImageInfo, error) {
	var out types.ImagesResponse
	if err := c.do(ctx, http.MethodGet, "/api/images", nil, &out); err != nil {
		return nil, err
	}
	return out.Images, nil
}

func (c *Client) ImageInfo(ctx context.Context, filename string) (types.ImageInfo, error) {
	var out types.ImageInfo
	err := c.do(ctx, http.MethodGet, "/api/images/"+url.PathEscape(filename), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		return &APIError{Status: resp.StatusCode, Detail: errorDetail(b, resp.Status)}
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func errorDetail(body []byte, fallback string) string {
	var er types.ErrorResponse
	if json.Unmarshal(body, &er) == nil {
		if er.Detail != "" {
			return er.Detail
		}
		if er.Error != "" {
			return er.Error
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return fallback
}
