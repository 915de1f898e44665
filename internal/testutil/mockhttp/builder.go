package mockhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Handler handles an HTTP request and returns true if it produced the
// response. Returning false passes the request to the next handler.
type Handler func(w http.ResponseWriter, r *http.Request) bool

// ServerBuilder builds mock HTTP servers with configurable behavior.
type ServerBuilder struct {
	handlers    []Handler
	useTLS      bool
	defaultCode int
	capture     *Capture
}

// New creates a new ServerBuilder.
func New() *ServerBuilder {
	return &ServerBuilder{
		defaultCode: http.StatusNotFound,
	}
}

// TLS enables TLS for the mock server.
func (b *ServerBuilder) TLS() *ServerBuilder {
	b.useTLS = true
	return b
}

// DefaultStatus sets the status code returned when no handler matches.
func (b *ServerBuilder) DefaultStatus(code int) *ServerBuilder {
	b.defaultCode = code
	return b
}

// Handler adds a custom handler function.
func (b *ServerBuilder) Handler(h Handler) *ServerBuilder {
	b.handlers = append(b.handlers, h)
	return b
}

// JSON returns a JSON response with HTTP 200 for requests matching the path.
func (b *ServerBuilder) JSON(path string, response any) *ServerBuilder {
	return b.JSONWithStatus(path, http.StatusOK, response)
}

// JSONWithStatus returns a JSON response with a specific status code.
func (b *ServerBuilder) JSONWithStatus(path string, code int, response any) *ServerBuilder {
	return b.Handler(func(w http.ResponseWriter, r *http.Request) bool {
		if !matchPath(r.URL.Path, path) {
			return false
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(response)
		return true
	})
}

// Status returns an empty response with the given status code.
func (b *ServerBuilder) Status(path string, code int) *ServerBuilder {
	return b.Handler(func(w http.ResponseWriter, r *http.Request) bool {
		if !matchPath(r.URL.Path, path) {
			return false
		}
		w.WriteHeader(code)
		return true
	})
}

// StatusWithBody returns a response with the given status code and body.
func (b *ServerBuilder) StatusWithBody(path string, code int, body string) *ServerBuilder {
	return b.Handler(func(w http.ResponseWriter, r *http.Request) bool {
		if !matchPath(r.URL.Path, path) {
			return false
		}
		w.WriteHeader(code)
		w.Write([]byte(body))
		return true
	})
}

// RequireHeader ensures a header is present with an expected value.
// Returns 400 if the header is missing or doesn't match.
func (b *ServerBuilder) RequireHeader(name, value string) *ServerBuilder {
	return b.Handler(func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get(name) != value {
			w.WriteHeader(http.StatusBadRequest)
			return true
		}
		return false
	})
}

// Capture enables request capture for inspection in tests.
// Returns the Capture object for accessing captured requests.
func (b *ServerBuilder) Capture() *Capture {
	if b.capture == nil {
		b.capture = &Capture{}
		b.Handler(func(w http.ResponseWriter, r *http.Request) bool {
			b.capture.record(r)
			return false
		})
	}
	return b.capture
}

// Build creates the httptest.Server with all configured handlers.
// Returns the server and the HTTP client to use (important for TLS servers).
func (b *ServerBuilder) Build() (*httptest.Server, *http.Client) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range b.handlers {
			if h(w, r) {
				return
			}
		}
		w.WriteHeader(b.defaultCode)
	})

	var server *httptest.Server
	if b.useTLS {
		server = httptest.NewTLSServer(handler)
	} else {
		server = httptest.NewServer(handler)
	}

	return server, server.Client()
}

// matchPath checks if the request path matches the pattern.
// Supports exact match and prefix match with a "*" suffix.
func matchPath(requestPath, pattern string) bool {
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(requestPath, prefix)
	}
	return requestPath == pattern
}

// Capture stores captured HTTP requests for test assertions.
type Capture struct {
	mu       sync.Mutex
	requests []CapturedRequest
}

// CapturedRequest holds data from a captured HTTP request.
type CapturedRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Query   map[string][]string
}

func (c *Capture) record(r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, CapturedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header.Clone(),
		Query:   r.URL.Query(),
	})
}

// Count returns the number of captured requests.
func (c *Capture) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Last returns the most recent captured request, or nil if none.
func (c *Capture) Last() *CapturedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	return &c.requests[len(c.requests)-1]
}

// All returns all captured requests.
func (c *Capture) All() []CapturedRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]CapturedRequest, len(c.requests))
	copy(result, c.requests)
	return result
}
