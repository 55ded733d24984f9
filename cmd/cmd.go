package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/thiagokokada/revgraph/internal/buildinfo"
	"github.com/thiagokokada/revgraph/internal/config"
	"github.com/thiagokokada/revgraph/internal/events"
	"github.com/thiagokokada/revgraph/internal/git"
	"github.com/thiagokokada/revgraph/internal/graph"
	"github.com/thiagokokada/revgraph/internal/highlight"
	"github.com/thiagokokada/revgraph/internal/logging"
	"github.com/thiagokokada/revgraph/internal/prefs"
	"github.com/thiagokokada/revgraph/internal/render"
	"github.com/thiagokokada/revgraph/internal/review"
	"github.com/thiagokokada/revgraph/internal/rpc"
	"github.com/thiagokokada/revgraph/internal/server"
)

type options struct {
	configPath string
	limit      int
	offset     int
	remotes    bool
	backend    string
	mode       string
	format     string
	selectSHA  string
	branch     string
	start      bool
	serve      string
	remote     string
	noWatch    bool
	noSyntax   bool
	verbose    bool
	version    bool
	repoPath   string

	// set records which flags were given explicitly.
	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{set: map[string]bool{}}
	fs := flag.NewFlagSet(buildinfo.Name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "path to the TOML config file (default $XDG_CONFIG_HOME/revgraph/config.toml)")
	fs.IntVar(&o.limit, "limit", config.DefaultPageSize, "number of commits to load per page")
	fs.IntVar(&o.offset, "offset", 0, "first commit row to show; earlier pages are loaded as needed")
	fs.BoolVar(&o.remotes, "remotes", false, "include remote-tracking branches")
	fs.StringVar(&o.backend, "backend", string(git.BackendNative), "repository backend: native or gitcli")
	fs.StringVar(&o.mode, "mode", render.ThemeAuto.String(), "color mode: auto, light, or dark")
	fs.StringVar(&o.format, "format", "text", "output format: text, svg, or json")
	fs.StringVar(&o.selectSHA, "select", "", "select the commit with this sha as the review base")
	fs.StringVar(&o.branch, "branch", "", "branch to review when the selected commit is on several")
	fs.BoolVar(&o.start, "start", false, "start a review of the selection and print it")
	fs.StringVar(&o.serve, "serve", "", "serve the repository over HTTP on this address")
	fs.StringVar(&o.remote, "remote", "", "websocket URL of a revgraph server to use instead of a local repository")
	fs.BoolVar(&o.noWatch, "nowatch", false, "disable automatic reload when the repository changes")
	fs.BoolVar(&o.noSyntax, "nosyntax", false, "disable syntax highlighting of review diffs")
	fs.BoolVar(&o.verbose, "verbose", false, "enable verbose logging")
	fs.BoolVar(&o.version, "version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	o.repoPath = "."
	if remaining := fs.Args(); len(remaining) > 0 {
		o.repoPath = remaining[len(remaining)-1]
	}
	switch o.format {
	case "text", "svg", "json":
	default:
		return nil, fmt.Errorf("unknown format %q (want text, svg or json)", o.format)
	}
	if o.offset < 0 {
		return nil, fmt.Errorf("offset must not be negative, got %d", o.offset)
	}
	if o.start && o.selectSHA == "" {
		return nil, errors.New("-start needs -select")
	}
	if o.serve != "" && o.remote != "" {
		return nil, errors.New("-serve and -remote cannot be combined")
	}
	return o, nil
}

// applyFlags lets explicit flags win over the config file.
func (o *options) applyFlags(cfg *config.Config) error {
	if o.set["limit"] {
		cfg.Graph.PageSize = o.limit
	}
	if o.set["remotes"] {
		cfg.Graph.IncludeRemotes = o.remotes
	}
	if o.set["backend"] {
		cfg.Graph.Backend = o.backend
	}
	if o.set["mode"] {
		cfg.Graph.Theme = o.mode
	}
	if o.serve != "" {
		cfg.Server.Addr = o.serve
	}
	if o.noWatch {
		cfg.Server.Watch = false
	}
	return cfg.Validate()
}

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if o.version {
		fmt.Fprintln(stdout, buildinfo.VersionWithTags())
		return nil
	}
	logging.Setup(o.verbose, stderr)

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if err := o.applyFlags(cfg); err != nil {
		return err
	}

	bus := events.New()
	store := openPrefs(cfg.PrefsPath, bus)
	rememberTheme(o, cfg, store)

	if o.serve != "" {
		return serve(ctx, o, cfg, bus)
	}

	svc, closeSvc, err := openService(ctx, o, cfg, bus)
	if err != nil {
		return err
	}
	defer closeSvc()

	if o.set["limit"] {
		if err := store.Set(prefs.KeyPageSize, cfg.Graph.PageSize); err != nil {
			slog.Warn("save preference", slog.String("key", prefs.KeyPageSize), slog.Any("error", err))
		}
	}
	sess := review.New(svc, review.Options{
		PageSize:       cfg.Graph.PageSize,
		NearBottomPx:   cfg.Review.NearBottomPx,
		IncludeRemotes: cfg.Graph.IncludeRemotes,
		Bus:            bus,
		Prefs:          store,
	})
	defer sess.Close()
	if o.set["remotes"] {
		if err := sess.SetIncludeRemotes(ctx, o.remotes); err != nil {
			return err
		}
	}

	if err := sess.Open(ctx); err != nil {
		var pre *review.PreconditionError
		if errors.As(err, &pre) {
			fmt.Fprintf(stderr, "Cannot start a review: %v.\n", pre)
			for _, hint := range pre.Hints() {
				fmt.Fprintf(stderr, "  - %s\n", hint)
			}
		}
		return err
	}
	if err := scrollTo(ctx, sess, o.offset, cfg.Graph.PageSize); err != nil {
		return err
	}

	theme := render.ResolveTheme(render.ThemeFromString(cfg.Graph.Theme))
	if o.selectSHA != "" {
		if err := selectBase(ctx, sess, o.selectSHA, o.branch, isTerminal(os.Stdin) && isTerminal(stdout)); err != nil {
			return err
		}
	}
	if o.start {
		resp, err := sess.StartReview(ctx)
		if err != nil {
			return err
		}
		return printReview(stdout, resp, theme, !o.noSyntax && isTerminal(stdout))
	}
	return writeGraph(stdout, sess.View(), o, cfg.Graph.PageSize, theme)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// rememberTheme stores an explicit -mode and otherwise restores the last one.
func rememberTheme(o *options, cfg *config.Config, store prefs.Store) {
	if o.set["mode"] {
		if err := store.Set(prefs.KeyTheme, cfg.Graph.Theme); err != nil {
			slog.Warn("save preference", slog.String("key", prefs.KeyTheme), slog.Any("error", err))
		}
		return
	}
	cfg.Graph.Theme = render.ThemeFromString(prefs.String(store, prefs.KeyTheme, cfg.Graph.Theme)).String()
}

func openPrefs(path string, bus *events.Bus) prefs.Store {
	if path == "" {
		return prefs.NewMemory(bus)
	}
	store, err := prefs.OpenFile(path, bus)
	if err != nil {
		slog.Warn("preferences unavailable, using defaults", slog.String("path", path), slog.Any("error", err))
		return prefs.NewMemory(bus)
	}
	return store
}

func openService(ctx context.Context, o *options, cfg *config.Config, bus *events.Bus) (rpc.RepoService, func(), error) {
	if o.remote != "" {
		client, err := rpc.Dial(ctx, o.remote, bus)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil
	}
	kind, err := git.ParseBackendKind(cfg.Graph.Backend)
	if err != nil {
		return nil, nil, err
	}
	svc, err := git.Open(o.repoPath, kind)
	if err != nil {
		return nil, nil, err
	}
	return svc, func() {}, nil
}

func serve(ctx context.Context, o *options, cfg *config.Config, bus *events.Bus) error {
	kind, err := git.ParseBackendKind(cfg.Graph.Backend)
	if err != nil {
		return err
	}
	svc, err := git.Open(o.repoPath, kind)
	if err != nil {
		return err
	}
	srv := server.New(svc, server.Options{
		Addr:     cfg.Server.Addr,
		Watch:    cfg.Server.Watch,
		Theme:    render.ThemeFromString(cfg.Graph.Theme),
		PageSize: cfg.Graph.PageSize,
		Bus:      bus,
	})
	defer srv.Close()
	return srv.Run(ctx)
}

// scrollTo loads pages the way a viewer scrolled to offset would.
func scrollTo(ctx context.Context, sess *review.Session, offset, rows int) error {
	top := float64(offset) * render.RowHeight
	viewport := float64(rows) * render.RowHeight
	for {
		content := float64(len(sess.View().Commits)) * render.RowHeight
		loaded, err := sess.Scrolled(ctx, top, viewport, content)
		if err != nil {
			return err
		}
		if !loaded {
			return nil
		}
	}
}

func selectBase(ctx context.Context, sess *review.Session, sha, branch string, interactive bool) error {
	if err := sess.LoadUntil(ctx, sha); err != nil {
		return err
	}
	res, err := sess.SelectCommit(sha, 0, 0)
	if err != nil {
		return err
	}
	if res.Fallback {
		slog.Warn("commit is not on any branch's first-parent history; using first branch",
			slog.String("sha", sha), slog.String("branch", res.Selected.Name))
	}
	if !res.Ambiguous {
		if branch != "" && branch != res.Selected.Name {
			return fmt.Errorf("%w: %s is not a candidate for %s", review.ErrNotCandidate, branch, sha)
		}
		return nil
	}
	if branch == "" {
		if !interactive {
			return fmt.Errorf("%w: %s is on several branches (%s); pass -branch",
				review.ErrSelectionIncomplete, sha, strings.Join(candidateNames(res), ", "))
		}
		branch, err = promptBranch(res)
		if err != nil {
			return err
		}
	}
	if err := sess.ChooseBranch(branch); err != nil {
		return err
	}
	return sess.Confirm()
}

func candidateNames(res graph.Resolution) []string {
	names := make([]string, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		names = append(names, c.Branch.Name)
	}
	return names
}

type graphJSON struct {
	review.Snapshot
	Lanes []graph.BranchLane `json:"lanes"`
	Edges []graph.ForkEdge   `json:"edges"`
}

func writeGraph(w io.Writer, snap review.Snapshot, o *options, rows int, theme render.Theme) error {
	switch o.format {
	case "json":
		out := graphJSON{Snapshot: snap}
		if snap.Layout != nil {
			out.Lanes = snap.Layout.Lanes
			out.Edges = snap.Layout.Edges
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "svg":
		scene := render.Build(snap.Layout, theme)
		if sha := snap.Selection.SHA; sha != "" {
			scene.Select(snap.Layout, sha, theme)
		}
		return render.WriteSVG(w, scene)
	default:
		lines := strings.SplitAfter(render.Text(snap.Layout, theme), "\n")
		start := min(o.offset, len(lines))
		end := min(start+rows, len(lines))
		_, err := io.WriteString(w, strings.Join(lines[start:end], ""))
		return err
	}
}

func printReview(w io.Writer, resp *rpc.StartReviewResponse, theme render.Theme, colour bool) error {
	fmt.Fprintf(w, "Review %s\n", resp.ID)
	fmt.Fprintf(w, "Branch: %s\n", resp.Branch)
	fmt.Fprintf(w, "Range:  %s..%s\n", resp.BaseSHA, resp.TipSHA)
	fmt.Fprintf(w, "\n%d commit(s):\n", len(resp.Commits))
	for _, c := range resp.Commits {
		subject, _, _ := strings.Cut(c.Message, "\n")
		fmt.Fprintf(w, "  %s %s\n", c.ShortSHA, subject)
	}
	fmt.Fprintf(w, "\n%d file(s):\n", len(resp.Files))
	for _, f := range resp.Files {
		if f.Binary {
			fmt.Fprintf(w, "  %s (binary)\n", f.Path)
			continue
		}
		fmt.Fprintf(w, "  %s +%d -%d\n", f.Path, f.Added, f.Removed)
	}
	if resp.Diff == "" {
		return nil
	}
	fmt.Fprintln(w)
	if colour {
		return highlight.New(theme.Dark, "terminal256").Write(w, resp.Diff)
	}
	_, err := io.WriteString(w, resp.Diff)
	return err
}
