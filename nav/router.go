package nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrVetoed reports that a before-guard rejected a navigation. Guard
	// errors returned from Navigate wrap it.
	ErrVetoed = errors.New("navigation vetoed")

	// ErrNoRoute reports that neither the requested path nor the default
	// path resolved to a registered route.
	ErrNoRoute = errors.New("no matching route")
)

// Options carries per-route flags consumed by guards and the shell.
type Options struct {
	RequiresAuth bool
	Title        string
}

// HandlerFunc renders or mounts the view for a resolved route.
type HandlerFunc func(ctx context.Context, params map[string]string) error

// RouteDefinition binds a compiled pattern to its handler. Definitions are
// created once at registration and immutable thereafter.
type RouteDefinition struct {
	Pattern *Pattern
	Handler HandlerFunc
	Options Options
}

// BeforeGuard runs before a navigation commits. Returning a non-nil error
// vetoes the navigation with no side effects.
type BeforeGuard func(ctx context.Context, target string, prev State) error

// AfterGuard runs once the handler has settled, success or contained
// failure, receiving the resolved path.
type AfterGuard func(ctx context.Context, resolved string)

// State is the committed navigation state. Exactly one instance is current;
// it is replaced atomically only by a navigation no guard vetoed.
type State struct {
	Path    string
	Params  map[string]string
	Options Options
}

// Router owns the route table, the guard chain, and the history stack.
// It does not serialize overlapping Navigate calls; callers that need
// mutual exclusion across navigations provide it themselves.
type Router struct {
	routes      []*RouteDefinition
	before      []BeforeGuard
	after       []AfterGuard
	history     History
	defaultPath string
	state       State
	logger      *slog.Logger
}

// NewRouter creates a router that redirects unmatched paths to defaultPath.
func NewRouter(defaultPath string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{defaultPath: defaultPath, logger: logger}
}

// Register appends a route definition. Registration order is match order.
func (r *Router) Register(template string, handler HandlerFunc, opts Options) error {
	p, err := Compile(template)
	if err != nil {
		return err
	}
	r.routes = append(r.routes, &RouteDefinition{Pattern: p, Handler: handler, Options: opts})
	return nil
}

// Before appends a before-guard to the chain.
func (r *Router) Before(g BeforeGuard) { r.before = append(r.before, g) }

// After appends an after-guard to the chain.
func (r *Router) After(g AfterGuard) { r.after = append(r.after, g) }

// State returns the current committed navigation state.
func (r *Router) State() State { return r.state }

// History exposes the navigation stack.
func (r *Router) History() *History { return &r.history }

// Lookup resolves a path against the route table without navigating.
func (r *Router) Lookup(path string) (*RouteDefinition, map[string]string, bool) {
	return Resolve(path, r.routes)
}

// historyOp is how a committed navigation touches the stack.
type historyOp int

const (
	historyPush historyOp = iota
	historyReplace
	historyPop
)

// Navigate pushes a new history entry for path and dispatches its route.
func (r *Router) Navigate(ctx context.Context, path string) error {
	return r.navigate(ctx, path, historyPush, false)
}

// NavigateReplace is Navigate with replaceState semantics.
func (r *Router) NavigateReplace(ctx context.Context, path string) error {
	return r.navigate(ctx, path, historyReplace, false)
}

// Back re-dispatches the entry beneath the current one. The stack pops
// only after the guard chain approves, so a vetoed back leaves history
// exactly as it was.
func (r *Router) Back(ctx context.Context) error {
	prev, ok := r.history.Peek()
	if !ok {
		return nil
	}
	return r.navigate(ctx, prev, historyPop, false)
}

func (r *Router) navigate(ctx context.Context, path string, op historyOp, redirected bool) error {
	prev := r.state
	for _, g := range r.before {
		if err := g(ctx, path, prev); err != nil {
			// Veto: history untouched, no handler, no after-guards.
			if errors.Is(err, ErrVetoed) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrVetoed, err)
		}
	}

	switch op {
	case historyReplace:
		r.history.Replace(path)
	case historyPop:
		r.history.Back()
	default:
		r.history.Push(path)
	}

	def, params, ok := Resolve(path, r.routes)
	if !ok {
		if redirected {
			return fmt.Errorf("%w: default path %q", ErrNoRoute, path)
		}
		r.logger.Warn("route not found, redirecting to default", "path", path, "default", r.defaultPath)
		return r.navigate(ctx, r.defaultPath, historyReplace, true)
	}

	// Committed: the state is replaced even if the handler fails below.
	r.state = State{Path: path, Params: params, Options: def.Options}

	r.dispatch(ctx, def, params, path)

	for _, g := range r.after {
		g(ctx, path)
	}
	return nil
}

// dispatch invokes the handler, containing both errors and panics so a
// broken view never tears down the navigation engine.
func (r *Router) dispatch(ctx context.Context, def *RouteDefinition, params map[string]string, path string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("route handler panic", "path", path, "panic", rec)
		}
	}()
	if err := def.Handler(ctx, params); err != nil {
		r.logger.Error("route handler failed", "path", path, "error", err)
	}
}
