package service

import (
	"context"
	"regexp"
)

// HandlerFunc handles one matched command. match holds the submatches of the
// route pattern against the message text.
type HandlerFunc func(ctx context.Context, pc *Context, match []string) error

// Route is one entry of the routing table.
type Route struct {
	Name    string
	Pattern *regexp.Regexp
	// AdminOnly routes are skipped for non-administrators as if they had
	// not matched at all: no reply, no state change.
	AdminOnly bool
	Handler   HandlerFunc
}

// Rewriter may replace the message text before routing runs.
type Rewriter func(pc *Context)

// Router dispatches inbound message text against an ordered route list with
// first-match-wins semantics. The table is plain data so it can be inspected
// and exercised without a transport.
type Router struct {
	routes    []Route
	rewriters []Rewriter
}

func NewRouter() *Router {
	return &Router{}
}

// Register appends routes to the table in evaluation order.
func (r *Router) Register(routes ...Route) {
	r.routes = append(r.routes, routes...)
}

// RegisterRewriter appends a pre-routing text rewriter.
func (r *Router) RegisterRewriter(rw Rewriter) {
	r.rewriters = append(r.rewriters, rw)
}

// Routes returns the routing table in evaluation order.
func (r *Router) Routes() []Route {
	return r.routes
}

// Dispatch runs the rewriters, then evaluates the routes in order and invokes
// the first matching handler. It reports whether any route matched. Handler
// failures are returned but never re-thrown past the dispatch boundary by
// callers.
func (r *Router) Dispatch(ctx context.Context, pc *Context) (bool, error) {
	for _, rw := range r.rewriters {
		rw(pc)
	}

	for _, route := range r.routes {
		if route.AdminOnly && !pc.IsAdmin {
			continue
		}
		match := route.Pattern.FindStringSubmatch(pc.Text)
		if match == nil {
			continue
		}

		pc.Logger = pc.Logger.WithField("route", route.Name)
		return true, route.Handler(ctx, pc, match)
	}

	return false, nil
}
