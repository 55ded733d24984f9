package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thiagokokada/revgraph/internal/buildinfo"
	"github.com/thiagokokada/revgraph/internal/events"
)

const maxMessageSize = 32 << 20

// Client is a RepoService reached over a websocket. Calls may be issued
// concurrently; responses are matched to callers by request id.
type Client struct {
	conn *websocket.Conn
	bus  *events.Bus

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *Message
	closed  bool
	err     error
	done    chan struct{}
}

var _ RepoService = (*Client)(nil)

// Dial connects to a Handler at url (ws:// or wss://). Notifications from
// the server are published on bus, which may be nil.
func Dial(ctx context.Context, url string, bus *events.Bus) (*Client, error) {
	header := http.Header{}
	header.Set("User-Agent", buildinfo.UserAgent())
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(maxMessageSize)
	c := &Client{
		conn:    conn,
		bus:     bus,
		pending: make(map[string]chan *Message),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("rpc client: bad message", slog.Any("error", err))
			continue
		}
		if msg.isNotification() {
			c.notify(&msg)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.mu.Unlock()
		if !ok {
			slog.Debug("rpc client: response for unknown call", slog.String("id", msg.ID))
			continue
		}
		ch <- &msg
	}
}

func (c *Client) notify(msg *Message) {
	switch msg.Method {
	case NotifyRepoChanged:
		var n ChangedNotification
		if len(msg.Params) > 0 {
			if err := json.Unmarshal(msg.Params, &n); err != nil {
				slog.Warn("rpc client: bad notification", slog.String("method", msg.Method), slog.Any("error", err))
				return
			}
		}
		events.Publish(c.bus, events.RepoChanged{Source: n.Source, Path: n.Path})
	default:
		slog.Debug("rpc client: ignoring notification", slog.String("method", msg.Method))
	}
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	c.pending = nil
	close(c.done)
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("rpc %s: encode params: %w", method, err)
	}
	id := uuid.NewString()
	ch := make(chan *Message, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	data, err := json.Marshal(Message{ID: id, Method: method, Params: raw})
	if err != nil {
		c.forget(id)
		return err
	}
	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return fmt.Errorf("rpc %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case resp := <-ch:
		if resp.Error != nil {
			return &RemoteError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message}
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("rpc %s: decode result: %w", method, err)
		}
		return nil
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) GetCommitGraph(ctx context.Context, req GraphRequest) (*GraphResponse, error) {
	var resp GraphResponse
	if err := c.call(ctx, MethodGetCommitGraph, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CheckReviewReady(ctx context.Context) (*ReadyResponse, error) {
	var resp ReadyResponse
	if err := c.call(ctx, MethodCheckReviewReady, ReadyRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) StartReview(ctx context.Context, req StartReviewRequest) (*StartReviewResponse, error) {
	var resp StartReviewResponse
	if err := c.call(ctx, MethodStartReview, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Close closes the connection. Pending calls fail with ErrClosed.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.conn.Close()
	c.shutdown(ErrClosed)
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}
