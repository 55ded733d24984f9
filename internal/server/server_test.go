package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thiagokokada/revgraph/internal/events"
	"github.com/thiagokokada/revgraph/internal/git"
	"github.com/thiagokokada/revgraph/internal/graph"
	"github.com/thiagokokada/revgraph/internal/render"
	"github.com/thiagokokada/revgraph/internal/rpc"
)

type fakeRepo struct {
	invalidated atomic.Int32
	lastLimit   atomic.Int32
	graphErr    error
}

func (f *fakeRepo) CommitGraph(_ context.Context, limit, offset int, includeRemotes bool) (*git.Page, error) {
	f.lastLimit.Store(int32(limit))
	if f.graphErr != nil {
		return nil, f.graphErr
	}
	page := &git.Page{
		Commits: []graph.Commit{
			{SHA: "c2", ShortSHA: "c2", Parents: []string{"c1"}, Message: "second"},
			{SHA: "c1", ShortSHA: "c1", Parents: []string{}, Message: "first"},
		},
		Branches: []graph.BranchRef{{Name: "main", SHA: "c2", IsCurrent: true}},
		HasMore:  offset == 0,
	}
	if includeRemotes {
		page.Branches = append(page.Branches, graph.BranchRef{Name: "origin/main", SHA: "c1", IsRemote: true})
	}
	return page, nil
}

func (f *fakeRepo) Invalidate()      { f.invalidated.Add(1) }
func (f *fakeRepo) RepoPath() string { return "/tmp/repo" }

func (f *fakeRepo) GetCommitGraph(ctx context.Context, req rpc.GraphRequest) (*rpc.GraphResponse, error) {
	page, err := f.CommitGraph(ctx, req.Limit, req.Offset, req.IncludeRemotes)
	if err != nil {
		return &rpc.GraphResponse{Error: err.Error()}, nil
	}
	return &rpc.GraphResponse{Commits: page.Commits, Branches: page.Branches, HasMore: page.HasMore}, nil
}

func (f *fakeRepo) CheckReviewReady(context.Context) (*rpc.ReadyResponse, error) {
	return &rpc.ReadyResponse{Clean: true}, nil
}

func (f *fakeRepo) StartReview(_ context.Context, req rpc.StartReviewRequest) (*rpc.StartReviewResponse, error) {
	return &rpc.StartReviewResponse{ID: "r1", Branch: req.BranchName, BaseSHA: req.BaseSHA}, nil
}

func newTestServer(t *testing.T, repo *fakeRepo, bus *events.Bus) (*Server, *httptest.Server) {
	t.Helper()
	s := New(repo, Options{Theme: render.ThemeLight, PageSize: 50, Bus: bus})
	t.Cleanup(s.Close)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestGraphSVG(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	_, ts := newTestServer(t, repo, nil)

	resp, body := get(t, ts.URL+"/graph.svg?remotes=true&select=c1&theme=dark")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Fatalf("content type = %q", ct)
	}
	if resp.Header.Get("X-Has-More") != "true" {
		t.Fatalf("X-Has-More = %q", resp.Header.Get("X-Has-More"))
	}
	for _, want := range []string{"<svg", `data-sha="c2"`, "origin/main", `class="selected"`, render.DarkTheme.Background} {
		if !strings.Contains(body, want) {
			t.Fatalf("svg missing %q:\n%s", want, body)
		}
	}
	if got := repo.lastLimit.Load(); got != 50 {
		t.Fatalf("default limit = %d, want configured page size", got)
	}
}

func TestGraphSVGBadQuery(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, &fakeRepo{}, nil)
	for _, q := range []string{"limit=ten", "offset=-1", "remotes=maybe"} {
		resp, _ := get(t, ts.URL+"/graph.svg?"+q)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestGraphSVGBackendError(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, &fakeRepo{graphErr: errors.New("boom")}, nil)
	resp, body := get(t, ts.URL+"/graph.svg")
	if resp.StatusCode != http.StatusInternalServerError || !strings.Contains(body, "boom") {
		t.Fatalf("status = %d body = %q", resp.StatusCode, body)
	}
}

func TestSchemaAndHealth(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, &fakeRepo{}, nil)
	resp, body := get(t, ts.URL+"/schema.json")
	if resp.StatusCode != http.StatusOK || !json.Valid([]byte(body)) {
		t.Fatalf("schema: status = %d valid = %v", resp.StatusCode, json.Valid([]byte(body)))
	}
	if !strings.Contains(body, rpc.MethodGetCommitGraph) {
		t.Fatalf("schema missing %s", rpc.MethodGetCommitGraph)
	}

	resp, body = get(t, ts.URL+"/healthz")
	var health map[string]any
	if err := json.Unmarshal([]byte(body), &health); err != nil {
		t.Fatalf("healthz body %q: %v", body, err)
	}
	if resp.StatusCode != http.StatusOK || health["status"] != "ok" || health["repo"] != "/tmp/repo" {
		t.Fatalf("healthz = %v", health)
	}

	resp, _ = get(t, ts.URL+"/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown route status = %d", resp.StatusCode)
	}
}

func TestRPCAndRepoChangedBroadcast(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	serverBus := events.New()
	s, ts := newTestServer(t, repo, serverBus)

	clientBus := events.New()
	notified := make(chan events.RepoChanged, 1)
	events.Subscribe(clientBus, func(ev events.RepoChanged) { notified <- ev })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := rpc.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/rpc", clientBus)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	resp, err := c.GetCommitGraph(ctx, rpc.GraphRequest{Limit: 10})
	if err != nil || len(resp.Commits) != 2 {
		t.Fatalf("GetCommitGraph = %+v, %v", resp, err)
	}

	for s.rpc.Clients() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("client never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}
	events.Publish(serverBus, events.RepoChanged{Source: "watch", Path: "/tmp/repo/.git/HEAD"})
	if got := repo.invalidated.Load(); got != 1 {
		t.Fatalf("invalidated = %d, want 1", got)
	}
	select {
	case ev := <-notified:
		if ev.Source != "watch" || ev.Path != "/tmp/repo/.git/HEAD" {
			t.Fatalf("notification = %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("no Repo.changed notification")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := New(&fakeRepo{}, Options{})
	defer s.Close()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never answered: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
