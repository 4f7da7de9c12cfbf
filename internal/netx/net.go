// Package netx wraps net/http for the backend adapters: a per-request
// timeout, an offline short-circuit and mapping of transport failures onto
// the common sentinel errors.
package netx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/common"
)

const DefaultTimeout = 15 * time.Second

// StatusError is returned for non-2xx replies.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// Unwrap maps the status code onto a sentinel so callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusUnauthorized:
		return common.ErrUnauthorized
	case e.Code == http.StatusNotFound:
		return common.ErrNotFound
	case e.Code >= 500:
		return common.ErrUnavailable
	}
	return nil
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

type Client struct {
	hc      *http.Client
	timeout time.Duration
	offline func() bool
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{hc: &http.Client{}, timeout: timeout}
}

// WithOfflineCheck makes every request fail fast with common.ErrOffline while fn reports true.
func (c *Client) WithOfflineCheck(fn func() bool) *Client {
	c.offline = fn
	return c
}

// Do performs the request and reads the whole body.
func (c *Client) Do(ctx context.Context, method, url string, header http.Header, body io.Reader) (*Response, error) {
	if c.offline != nil && c.offline() {
		return nil, common.ErrOffline
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: b}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &StatusError{Code: resp.StatusCode, Body: string(b)}
	}
	return out, nil
}

// DoJSON encodes in (when non-nil) as the request body and decodes the reply
// into out (when non-nil and the body is not empty).
func (c *Client) DoJSON(ctx context.Context, method, url string, header http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")

	resp, err := c.Do(ctx, method, url, h, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, url, err)
	}
	return nil
}

// UploadPresigned PUTs body to a presigned object URL.
func (c *Client) UploadPresigned(ctx context.Context, url string, body io.Reader, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.Do(ctx, http.MethodPut, url, http.Header{"Content-Type": {contentType}}, body)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}
