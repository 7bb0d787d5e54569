package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 5 * time.Second

// Errors returned by Client.Emit for gateway rejections.
var (
	ErrUnauthorized   = errors.New("emit: unauthorized")
	ErrInvalidRequest = errors.New("emit: invalid request")
)

// Client posts emit requests to the realtime gateway.
type Client struct {
	endpoint string
	secret   string
	http     *http.Client
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client (5s timeout).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient returns a Client for the gateway at baseURL (for example
// "http://realtime:4001") authenticating with secret.
func NewClient(baseURL, secret string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/emit",
		secret:   secret,
		http:     &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Workspace broadcasts event to every connected client.
func (c *Client) Workspace(ctx context.Context, event string, payload interface{}) (*Response, error) {
	return c.emitValue(ctx, Request{Scope: ScopeWorkspace, Event: event}, payload)
}

// User broadcasts event to every connection of userID.
func (c *Client) User(ctx context.Context, userID, event string, payload interface{}) (*Response, error) {
	return c.emitValue(ctx, Request{Scope: ScopeUser, Event: event, UserID: userID}, payload)
}

// Users broadcasts event to the connections of every id in userIDs.
func (c *Client) Users(ctx context.Context, userIDs []string, event string, payload interface{}) (*Response, error) {
	return c.emitValue(ctx, Request{Scope: ScopeUsers, Event: event, UserIDs: userIDs}, payload)
}

func (c *Client) emitValue(ctx context.Context, req Request, payload interface{}) (*Response, error) {
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("emit: marshal payload: %w", err)
		}
		req.Payload = raw
	}
	return c.Emit(ctx, req)
}

// Emit validates req locally and sends it to the gateway once.
func (c *Client) Emit(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("emit: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("emit: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("emit: http post: %w", err)
	}
	defer resp.Body.Close()

	var out Response
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil && resp.StatusCode == http.StatusOK {
			return nil, fmt.Errorf("emit: decode response: %w", err)
		}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return &out, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, out.Error)
	default:
		return nil, fmt.Errorf("emit: gateway returned HTTP %d", resp.StatusCode)
	}
}
