package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	formContentType = "application/x-www-form-urlencoded;charset=UTF-8"

	// Failure bodies can be arbitrary; keep the surfaced detail short.
	maxDetailBytes = 4096
)

// RequestError reports a non-2xx response, carrying the server-provided
// body as detail when one was present.
type RequestError struct {
	Op     string
	Status int
	Detail string
}

func (e *RequestError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("%s failed (%d)", e.Op, e.Status)
}

// Client wraps the backend's request/response surface. The realtime stream
// lives in the stream package; everything here is plain HTTP.
type Client struct {
	base  string
	httpc *http.Client
	log   *zerolog.Logger
}

// NewClient builds an API client rooted at base (trailing slash tolerated).
func NewClient(base string, logger *zerolog.Logger) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		httpc: &http.Client{Timeout: 15 * time.Second},
		log:   logger,
	}
}

// Send submits one chat message as a form-encoded POST. The message is not
// returned; it comes back through the event stream.
func (c *Client) Send(ctx context.Context, username, text string) error {
	form := url.Values{
		"username": {username},
		"text":     {text},
	}
	return c.postForm(ctx, "send", "/send", form, nil)
}

// Heartbeat reports liveness for the presence registry. Callers treat it
// as fire-and-forget; a returned error is theirs to swallow.
func (c *Client) Heartbeat(ctx context.Context, userID, displayName string) error {
	form := url.Values{"userId": {userID}}
	if displayName != "" {
		form.Set("displayName", displayName)
	}
	return c.postForm(ctx, "presence heartbeat", "/presence/beat", form, nil)
}

func (c *Client) postForm(ctx context.Context, op, path string, form url.Values, out any) error {
	return c.sendForm(ctx, http.MethodPost, op, path, form, out)
}

func (c *Client) putForm(ctx context.Context, op, path string, form url.Values, out any) error {
	return c.sendForm(ctx, http.MethodPut, op, path, form, out)
}

func (c *Client) sendForm(ctx context.Context, method, op, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", formContentType)
	return c.do(req, op, out)
}

func (c *Client) delete(ctx context.Context, op, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.do(req, op, nil)
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
		reqErr := &RequestError{
			Op:     op,
			Status: resp.StatusCode,
			Detail: strings.TrimSpace(string(body)),
		}
		c.log.Debug().Int("status", resp.StatusCode).Str("op", op).Msg("api request failed")
		return reqErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
