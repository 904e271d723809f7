// Package router lays out the versioned settlement API.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// APIVersion is the path segment every resource group is mounted under
const APIVersion = "v1"

// Group holds the routes of one resource under a common prefix
type Group struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
	children   []*Group
}

type route struct {
	method, path string
	handlers     []gin.HandlerFunc
}

func NewGroup(prefix string) *Group {
	return &Group{prefix: prefix}
}

func (g *Group) Prefix() string { return g.prefix }

// Use adds middleware for this group and its children
func (g *Group) Use(mw ...gin.HandlerFunc) *Group {
	g.middleware = append(g.middleware, mw...)
	return g
}

func (g *Group) Handle(method, p string, handlers ...gin.HandlerFunc) *Group {
	g.routes = append(g.routes, route{method: method, path: p, handlers: handlers})
	return g
}

func (g *Group) GET(p string, h ...gin.HandlerFunc) *Group    { return g.Handle(http.MethodGet, p, h...) }
func (g *Group) POST(p string, h ...gin.HandlerFunc) *Group   { return g.Handle(http.MethodPost, p, h...) }
func (g *Group) DELETE(p string, h ...gin.HandlerFunc) *Group { return g.Handle(http.MethodDelete, p, h...) }

// Sub returns a child group nested under g
func (g *Group) Sub(prefix string) *Group {
	child := NewGroup(prefix)
	g.children = append(g.children, child)
	return child
}

// Attach registers g and its children on parent
func (g *Group) Attach(parent gin.IRouter) {
	rg := parent.Group(g.prefix, g.middleware...)
	for _, r := range g.routes {
		rg.Handle(r.method, r.path, r.handlers...)
	}
	for _, child := range g.children {
		child.Attach(rg)
	}
}

// Routes lists "METHOD /path" for g and its children
func (g *Group) Routes() []string {
	return g.routesUnder("/")
}

func (g *Group) routesUnder(base string) []string {
	prefix := path.Join(base, g.prefix)
	var out []string
	for _, r := range g.routes {
		out = append(out, r.method+" "+path.Join(prefix, r.path))
	}
	for _, child := range g.children {
		out = append(out, child.routesUnder(prefix)...)
	}
	return out
}

// Mount attaches groups under /api/APIVersion behind mw. Routes registered
// directly on engine, such as the probes, skip mw.
func Mount(engine gin.IRouter, mw []gin.HandlerFunc, groups ...*Group) {
	api := engine.Group("/api/"+APIVersion, mw...)
	for _, g := range groups {
		g.Attach(api)
	}
}
