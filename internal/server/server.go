// Package server exposes a repository over HTTP: the websocket RPC endpoint,
// a rendered SVG of the graph and the RPC schema.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thiagokokada/revgraph/internal/buildinfo"
	"github.com/thiagokokada/revgraph/internal/events"
	"github.com/thiagokokada/revgraph/internal/git"
	"github.com/thiagokokada/revgraph/internal/graph"
	"github.com/thiagokokada/revgraph/internal/render"
	"github.com/thiagokokada/revgraph/internal/rpc"
	"github.com/thiagokokada/revgraph/internal/watch"
)

const shutdownTimeout = 5 * time.Second

// Repo is what the server needs from a repository service.
type Repo interface {
	rpc.RepoService
	CommitGraph(ctx context.Context, limit, offset int, includeRemotes bool) (*git.Page, error)
	Invalidate()
	RepoPath() string
}

type Options struct {
	Addr string
	// Watch publishes RepoChanged for filesystem changes under the repository.
	Watch    bool
	Theme    render.Preference
	PageSize int
	Bus      *events.Bus
}

type Server struct {
	repo  Repo
	opts  Options
	rpc   *rpc.Handler
	mux   *http.ServeMux
	unsub func()
}

// New wires repo to the HTTP routes. Every RepoChanged on opts.Bus drops the
// cached log walk and is forwarded to connected RPC clients.
func New(repo Repo, opts Options) *Server {
	if opts.Bus == nil {
		opts.Bus = events.New()
	}
	s := &Server{
		repo: repo,
		opts: opts,
		rpc:  rpc.NewHandler(repo),
		mux:  http.NewServeMux(),
	}
	s.mux.Handle("GET /rpc", s.rpc)
	s.mux.HandleFunc("GET /graph.svg", s.handleGraphSVG)
	s.mux.HandleFunc("GET /schema.json", s.handleSchema)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.unsub = events.Subscribe(opts.Bus, s.onRepoChanged)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Close detaches the server from the bus.
func (s *Server) Close() {
	s.unsub()
}

func (s *Server) onRepoChanged(ev events.RepoChanged) {
	s.repo.Invalidate()
	err := s.rpc.Broadcast(rpc.NotifyRepoChanged, rpc.ChangedNotification{Source: ev.Source, Path: ev.Path})
	if err != nil {
		slog.Error("broadcast repo change", slog.Any("error", err))
	}
}

// Run listens on opts.Addr and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done or the server fails, then shuts down
// gracefully. It owns ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	g, gctx := errgroup.WithContext(ctx)

	if s.opts.Watch {
		w, err := watch.New(s.repo.RepoPath(), s.opts.Bus, watch.DefaultDelay)
		if err != nil {
			ln.Close()
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			return w.Close()
		})
	}

	g.Go(func() error {
		slog.Info("serving", slog.String("addr", ln.Addr().String()), slog.String("repo", s.repo.RepoPath()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &httpError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("invalid %s %q", key, raw)
	}
	return n, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("invalid %s %q", key, raw)
	}
	return b, nil
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var he *httpError
	switch {
	case errors.As(err, &he):
		status = he.status
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	default:
		slog.Error("request failed", slog.Any("error", err))
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", slog.Any("error", err))
	}
}

func (s *Server) handleGraphSVG(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", s.opts.PageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	remotes, err := queryBool(r, "remotes")
	if err != nil {
		writeError(w, err)
		return
	}
	pref := s.opts.Theme
	if raw := r.URL.Query().Get("theme"); raw != "" {
		pref = render.ThemeFromString(raw)
	}

	page, err := s.repo.CommitGraph(r.Context(), limit, offset, remotes)
	if err != nil {
		writeError(w, err)
		return
	}
	layout := graph.ComputeLayout(page.Commits, page.Branches)
	theme := render.ResolveTheme(pref)
	scene := render.Build(layout, theme)
	if sha := r.URL.Query().Get("select"); sha != "" {
		scene.Select(layout, sha, theme)
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("X-Has-More", strconv.FormatBool(page.HasMore))
	if err := render.WriteSVG(w, scene); err != nil {
		slog.Debug("write svg", slog.Any("error", err))
	}
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	data, err := rpc.Schema()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"version": buildinfo.Version(),
		"repo":    s.repo.RepoPath(),
		"clients": s.rpc.Clients(),
	})
}
