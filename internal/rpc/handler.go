package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Handler serves a RepoService to websocket clients. Each request runs on
// its own goroutine so a slow graph walk does not block readiness checks.
type Handler struct {
	svc      RepoService
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*serverConn]struct{}
}

type serverConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *serverConn) write(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.writeRaw(data)
}

func (c *serverConn) writeRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func NewHandler(svc RepoService) *Handler {
	return &Handler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*serverConn]struct{}),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(maxMessageSize)
	sc := &serverConn{conn: conn}
	h.mu.Lock()
	h.conns[sc] = struct{}{}
	h.mu.Unlock()
	slog.Debug("rpc client connected", slog.String("remote", r.RemoteAddr), slog.String("user_agent", r.UserAgent()))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		h.mu.Lock()
		delete(h.conns, sc)
		h.mu.Unlock()
		conn.Close()
		slog.Debug("rpc client disconnected", slog.String("remote", r.RemoteAddr))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = sc.write(&Message{Error: &ErrorObject{Code: CodeParseError, Message: err.Error()}})
			continue
		}
		if msg.ID == "" {
			continue
		}
		wg.Go(func() {
			resp := h.dispatch(ctx, &msg)
			if err := sc.write(resp); err != nil {
				slog.Debug("rpc write failed", slog.String("method", msg.Method), slog.Any("error", err))
			}
		})
	}
}

type paramsError struct{ err error }

func (e paramsError) Error() string { return e.err.Error() }

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return paramsError{err: err}
	}
	return nil
}

func (h *Handler) dispatch(ctx context.Context, msg *Message) *Message {
	var (
		result any
		err    error
	)
	switch msg.Method {
	case MethodGetCommitGraph:
		var req GraphRequest
		if err = decodeParams(msg.Params, &req); err == nil {
			result, err = h.svc.GetCommitGraph(ctx, req)
		}
	case MethodCheckReviewReady:
		result, err = h.svc.CheckReviewReady(ctx)
	case MethodStartReview:
		var req StartReviewRequest
		if err = decodeParams(msg.Params, &req); err == nil {
			result, err = h.svc.StartReview(ctx, req)
		}
	default:
		return &Message{ID: msg.ID, Error: &ErrorObject{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("unknown method %q", msg.Method),
		}}
	}
	if err != nil {
		code := CodeInternalError
		if errors.As(err, new(paramsError)) {
			code = CodeInvalidParams
		}
		slog.Debug("rpc call failed", slog.String("method", msg.Method), slog.Any("error", err))
		return &Message{ID: msg.ID, Error: &ErrorObject{Code: code, Message: err.Error()}}
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return &Message{ID: msg.ID, Error: &ErrorObject{Code: CodeInternalError, Message: err.Error()}}
	}
	return &Message{ID: msg.ID, Result: raw}
}

// Broadcast sends a notification to every connected client.
func (h *Handler) Broadcast(method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(Message{Method: method, Params: raw})
	if err != nil {
		return err
	}
	h.mu.Lock()
	conns := make([]*serverConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		if err := c.writeRaw(data); err != nil {
			slog.Debug("rpc broadcast failed", slog.String("method", method), slog.Any("error", err))
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Handler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
