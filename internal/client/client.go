// Package client talks to the gift-ledger HTTP API. It is the Committer the
// counterparty protocol runs against when driven from a terminal.
package client

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

	"github.com/svirmi/gift-ledger/internal/ledger"
	"github.com/svirmi/gift-ledger/internal/model"
)

const actionBatchUpdateStatus = "batchUpdateStatus"

// ErrTransport means the request may or may not have reached the server. It
// is not a store failure: a commit may already have been applied.
var ErrTransport = errors.New("transport error")

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token instead of calling Login.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges a user id for a bearer token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, uid string) error {
	var resp model.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", model.LoginRequest{UID: uid}, &resp); err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

// Transactions lists the caller's visible records. With op set only the
// candidates for op are returned, pending for forUser when it is set and for
// the caller otherwise.
func (c *Client) Transactions(ctx context.Context, op ledger.Operation, forUser string) ([]model.TransactionView, error) {
	path := "/transactions"
	q := url.Values{}
	if op != "" {
		q.Set("operation", string(op))
	}
	if forUser != "" {
		q.Set("userId", forUser)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []model.TransactionView
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CommitBatch requests op on every id in one atomic batch.
func (c *Client) CommitBatch(ctx context.Context, op ledger.Operation, ids []string, authorizingUserID string) error {
	req := model.DataUpdateRequest{
		Collection:        "transactions",
		Action:            actionBatchUpdateStatus,
		AuthorizingUserID: authorizingUserID,
	}
	for _, id := range ids {
		req.Transactions = append(req.Transactions, ledger.DescriptorFor(id, op))
	}
	return c.do(ctx, http.MethodPut, "/data", req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e model.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %w: %s", method, path, statusError(resp.StatusCode), e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(code int) error {
	switch code {
	case http.StatusBadRequest:
		return model.ErrValidation
	case http.StatusUnauthorized:
		return model.ErrUnauthorized
	case http.StatusForbidden:
		return model.ErrForbidden
	case http.StatusNotFound:
		return model.ErrNotFound
	case http.StatusConflict:
		return model.ErrConflict
	case http.StatusServiceUnavailable:
		return model.ErrStore
	}
	return fmt.Errorf("unexpected status %d", code)
}
