// Package rpc is a typed client for the aria2 JSON-RPC control protocol.
//
// Client performs single calls; Session adds the transfer-level operations
// used by emuget (submit, poll with bounded transient retry, pause/remove
// all, purge, global options).
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single RPC round trip.
const DefaultTimeout = 10 * time.Second

// Error is a JSON-RPC error returned by the engine. It means the engine was
// reachable and rejected the call, so it is never retried.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Client sends JSON-RPC 2.0 requests to one engine endpoint.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the engine listening on host:port.
//
// The transport never uses a proxy: the engine is on loopback and must not
// be reached through a proxy configured for remote traffic.
func NewClient(host string, port int, secret string) *Client {
	return &Client{
		endpoint: "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/jsonrpc",
		token:    "token:" + secret,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				Proxy:               nil,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Endpoint returns the JSON-RPC URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// Call invokes method with the secret token prepended to params and decodes
// the result into result (which may be nil).
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	req := request{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  append([]any{c.token}, params...),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	// aria2 answers RPC errors with HTTP 400 and a JSON body, so the body is
	// decoded before the status code is considered.
	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("call %s: unexpected response (HTTP %d): %w", method, resp.StatusCode, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("call %s: unexpected status code: %d", method, resp.StatusCode)
	}
	if rpcResp.ID != req.ID {
		return fmt.Errorf("call %s: response id %q does not match request", method, rpcResp.ID)
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}

	return nil
}

// IsRPCError reports whether err came from the engine rejecting a call.
func IsRPCError(err error) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr)
}
