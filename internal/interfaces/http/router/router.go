// Package router manages HTTP route registration.
package router

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration under a versioned API prefix
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g. "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be mounted on Setup
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}
