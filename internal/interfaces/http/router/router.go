package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteRegistrar mounts a set of routes on the versioned API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	logger     *zap.Logger
	registrars []RouteRegistrar
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the API prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithLogger logs every mounted route at debug level
func WithLogger(logger *zap.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates a Router for engine, defaulting to /api/v1
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues registrars for Setup
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup mounts the queued registrars and returns how many routes were added
func (r *Router) Setup() int {
	before := len(r.engine.Routes())
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}

	routes := r.engine.Routes()
	for _, route := range routes[before:] {
		r.logger.Debug("Route mounted", zap.String("method", route.Method), zap.String("path", route.Path))
	}
	r.logger.Info("Billing API mounted",
		zap.String("prefix", api.BasePath()),
		zap.Int("routes", len(routes)-before),
	)
	return len(routes) - before
}

// ResourceGroup collects the routes of one ledger resource under a prefix.
// Routes added with Mutate run behind the group's idempotency middleware.
type ResourceGroup struct {
	name        string
	prefix      string
	idempotency gin.HandlerFunc
	middleware  []gin.HandlerFunc
	routes      []route
	children    []*ResourceGroup
}

type route struct {
	method   string
	path     string
	mutating bool
	handlers []gin.HandlerFunc
}

// NewResourceGroup creates a group mounted at prefix
func NewResourceGroup(name, prefix string) *ResourceGroup {
	return &ResourceGroup{name: name, prefix: prefix}
}

// WithIdempotency sets the middleware placed in front of mutating routes.
// Children created afterwards inherit it.
func (g *ResourceGroup) WithIdempotency(mw gin.HandlerFunc) *ResourceGroup {
	g.idempotency = mw
	return g
}

// Use adds middleware to every route of the group
func (g *ResourceGroup) Use(middleware ...gin.HandlerFunc) *ResourceGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

// GET registers a read-only route
func (g *ResourceGroup) GET(relativePath string, handlers ...gin.HandlerFunc) *ResourceGroup {
	g.routes = append(g.routes, route{method: http.MethodGet, path: relativePath, handlers: handlers})
	return g
}

// Mutate registers a route that changes ledger state
func (g *ResourceGroup) Mutate(method, relativePath string, handlers ...gin.HandlerFunc) *ResourceGroup {
	g.routes = append(g.routes, route{method: method, path: relativePath, mutating: true, handlers: handlers})
	return g
}

// POST registers a mutating POST route
func (g *ResourceGroup) POST(relativePath string, handlers ...gin.HandlerFunc) *ResourceGroup {
	return g.Mutate(http.MethodPost, relativePath, handlers...)
}

// DELETE registers a mutating DELETE route
func (g *ResourceGroup) DELETE(relativePath string, handlers ...gin.HandlerFunc) *ResourceGroup {
	return g.Mutate(http.MethodDelete, relativePath, handlers...)
}

// Group creates a child group nested under this one
func (g *ResourceGroup) Group(name, prefix string) *ResourceGroup {
	child := NewResourceGroup(name, prefix).WithIdempotency(g.idempotency)
	g.children = append(g.children, child)
	return child
}

// RegisterRoutes implements RouteRegistrar
func (g *ResourceGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(g.prefix)
	if len(g.middleware) > 0 {
		group.Use(g.middleware...)
	}
	for _, r := range g.routes {
		handlers := r.handlers
		if r.mutating && g.idempotency != nil {
			handlers = append([]gin.HandlerFunc{g.idempotency}, handlers...)
		}
		group.Handle(r.method, r.path, handlers...)
	}
	for _, child := range g.children {
		child.RegisterRoutes(group)
	}
}

// Name returns the group name
func (g *ResourceGroup) Name() string {
	return g.name
}

// Prefix returns the group prefix
func (g *ResourceGroup) Prefix() string {
	return g.prefix
}

// FullPath joins the group prefix with a relative route path
func (g *ResourceGroup) FullPath(relativePath string) string {
	if relativePath == "" {
		return g.prefix
	}
	return path.Join(g.prefix, relativePath)
}
