package router

import (
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	method   string
	segments []string
	trailing bool // last segment is * and swallows the rest of the path
	handler  HandlerFunc
}

// Router is a small method-aware mux with single-segment and trailing
// wildcards, logging every request with status and latency.
type Router struct {
	routes []route
}

func New() *Router {
	return &Router{}
}

func (r *Router) Handle(method, path string, handler HandlerFunc) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	trailing := len(segments) > 0 && segments[len(segments)-1] == "*"
	r.routes = append(r.routes, route{
		method:   method,
		segments: segments,
		trailing: trailing,
		handler:  handler,
	})
}

func (r *Router) GET(path string, h HandlerFunc)    { r.Handle(http.MethodGet, path, h) }
func (r *Router) POST(path string, h HandlerFunc)   { r.Handle(http.MethodPost, path, h) }
func (r *Router) PUT(path string, h HandlerFunc)    { r.Handle(http.MethodPut, path, h) }
func (r *Router) DELETE(path string, h HandlerFunc) { r.Handle(http.MethodDelete, path, h) }

func (rt route) matches(segments []string) bool {
	if rt.trailing {
		if len(segments) < len(rt.segments)-1 {
			return false
		}
		for i, s := range rt.segments[:len(rt.segments)-1] {
			if s != "*" && s != segments[i] {
				return false
			}
		}
		return true
	}
	if len(segments) != len(rt.segments) {
		return false
	}
	for i, s := range rt.segments {
		if s != "*" && s != segments[i] {
			return false
		}
	}
	return true
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	segments := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	pathMatched := false
	handled := false
	for _, rt := range r.routes {
		if !rt.matches(segments) {
			continue
		}
		pathMatched = true
		if rt.method != req.Method {
			continue
		}
		rt.handler(lrw, req)
		handled = true
		break
	}
	if !handled {
		if pathMatched {
			http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
		} else {
			http.Error(lrw, "Not Found", http.StatusNotFound)
		}
	}

	log.Printf("%s%s%s %s %s%d%s (%v)",
		colorCyan, req.Method, colorReset,
		req.URL.Path,
		statusColor(lrw.statusCode), lrw.statusCode, colorReset,
		time.Since(start),
	)
}

// Start blocks serving HTTP on addr.
func (r *Router) Start(addr string) error {
	log.Printf("%sserver listening on %s%s", colorGreen, addr, colorReset)
	return http.ListenAndServe(addr, r)
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusColor(code int) string {
	switch {
	case code < 300:
		return colorGreen
	case code < 400:
		return colorCyan
	case code < 500:
		return colorYellow
	default:
		return colorRed
	}
}
