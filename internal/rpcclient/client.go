// Package rpcclient provides an HTTP client for ledger nodes.
package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Klingon-tech/klingnet-ledger/internal/rpc"
	"github.com/Klingon-tech/klingnet-ledger/pkg/tx"
)

// Client is an HTTP client for the node API.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a new client targeting the given base URL.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, 10*time.Second)
}

// NewWithTimeout creates a new client with a custom HTTP timeout.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is returned when the server responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Chain returns the full chain.
func (c *Client) Chain() (*rpc.ChainResult, error) {
	var result rpc.ChainResult
	if err := c.do(http.MethodGet, "/chain", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Mine asks the node to forge a block from its pending transactions.
func (c *Client) Mine() (*rpc.MineResult, error) {
	var result rpc.MineResult
	if err := c.do(http.MethodGet, "/mine", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitTransaction submits t and returns the server's acknowledgement.
func (c *Client) SubmitTransaction(t tx.Transaction) (string, error) {
	var result rpc.MessageResponse
	if err := c.do(http.MethodPost, "/transactions/new", t, &result); err != nil {
		return "", err
	}
	return result.Message, nil
}

// Pending returns the transactions waiting for the next block.
func (c *Client) Pending() (*rpc.PendingResult, error) {
	var result rpc.PendingResult
	if err := c.do(http.MethodGet, "/transactions/pending", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Validate asks the node to verify its chain.
func (c *Client) Validate() (*rpc.ValidateResult, error) {
	var result rpc.ValidateResult
	if err := c.do(http.MethodGet, "/chain/validate", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Block returns a block by index or hex hash.
func (c *Client) Block(id string) (*rpc.BlockResult, error) {
	var result rpc.BlockResult
	if err := c.do(http.MethodGet, "/blocks/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Node returns node identity and chain parameters.
func (c *Client) Node() (*rpc.NodeResult, error) {
	var result rpc.NodeResult
	if err := c.do(http.MethodGet, "/node", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do sends a request and decodes a 2xx response body into result.
func (c *Client) do(method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var msg rpc.MessageResponse
		if json.Unmarshal(data, &msg) == nil && msg.Message != "" {
			apiErr.Message = msg.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
