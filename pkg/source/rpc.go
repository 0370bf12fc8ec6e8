package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/movegen/reified/pkg/reified"
)

const (
	methodGetObject = "sui_getObject"

	defaultReadLimit = 8 << 20
)

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("source: rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// objectResponse is the result of sui_getObject.
type objectResponse struct {
	Data  *Object `json:"data"`
	Error *struct {
		Code     string `json:"code"`
		ObjectID string `json:"object_id"`
	} `json:"error"`
}

// Client is a JSON-RPC client over one websocket connection. Calls are
// serialised; it is safe for concurrent use.
type Client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	nextID atomic.Uint64
	logger *log.Logger

	header     http.Header
	httpClient *http.Client
	readLimit  int64
}

// Option configures a Client.
type Option func(*Client)

// WithLogger logs requests and unexpected messages to l.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHeader adds h to the handshake request.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

// WithHTTPClient dials through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithReadLimit caps the size of one response message.
func WithReadLimit(n int64) Option {
	return func(c *Client) { c.readLimit = n }
}

// Dial connects to the node's websocket endpoint at url.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{readLimit: defaultReadLimit}
	for _, opt := range opts {
		opt(c)
	}
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: c.httpClient,
		HTTPHeader: c.header,
	})
	if err != nil {
		return nil, fmt.Errorf("source: dialing %s: %w", url, err)
	}
	conn.SetReadLimit(c.readLimit)
	c.conn = conn
	c.logf("connected to %s", url)
	return c, nil
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf("[Object Source] "+format, args...)
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// Call sends one request and decodes its result into result. Messages
// carrying other ids are skipped.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID.Add(1)
	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	c.logf("-> %s #%d", method, id)
	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		return fmt.Errorf("source: sending %s: %w", method, err)
	}

	for {
		var resp rpcResponse
		if err := wsjson.Read(ctx, c.conn, &resp); err != nil {
			return fmt.Errorf("source: reading %s response: %w", method, err)
		}
		if resp.ID == nil || *resp.ID != id {
			c.logf("skipping message for another request")
			continue
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil {
			return nil
		}
		dec := json.NewDecoder(bytes.NewReader(resp.Result))
		dec.UseNumber()
		if err := dec.Decode(result); err != nil {
			return fmt.Errorf("source: decoding %s result: %w", method, err)
		}
		return nil
	}
}

// GetObject fetches an object with its type, binary and parsed content.
func (c *Client) GetObject(ctx context.Context, id reified.Addr) (*Object, error) {
	options := map[string]bool{"showType": true, "showBcs": true, "showContent": true}
	var resp objectResponse
	if err := c.Call(ctx, methodGetObject, []any{id.String(), options}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		switch resp.Error.Code {
		case "notExists", "deleted":
			return nil, fmt.Errorf("%w: %s (%s)", ErrNotFound, id, resp.Error.Code)
		}
		return nil, fmt.Errorf("source: %s: %s", id, resp.Error.Code)
	}
	if resp.Data == nil {
		return nil, errors.New("source: empty object response")
	}
	return resp.Data, nil
}
