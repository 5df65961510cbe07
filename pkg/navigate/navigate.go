// Package navigate abstracts the client-side navigation side effect the
// session and route guard trigger. The UI shell supplies the real
// implementation; tests use Recorder.
package navigate

import "sync"

// Options configures one navigation.
type Options struct {
	// Replace replaces the current history entry instead of pushing.
	Replace bool

	// StatusCode is an HTTP-like code attached to the redirect, e.g. 401 for
	// the unauthenticated redirect. Zero means none.
	StatusCode int
}

// Option is a functional option for Navigate.
type Option func(*Options)

// WithReplace replaces the current history entry instead of pushing.
func WithReplace() Option {
	return func(o *Options) {
		o.Replace = true
	}
}

// WithStatusCode attaches an HTTP-like status code to the navigation.
func WithStatusCode(code int) Option {
	return func(o *Options) {
		o.StatusCode = code
	}
}

// Navigator performs a navigation to the given path.
type Navigator interface {
	Navigate(path string, opts ...Option)
}

// Func adapts a function to the Navigator interface.
type Func func(path string, opts ...Option)

// Navigate implements Navigator.
func (f Func) Navigate(path string, opts ...Option) {
	f(path, opts...)
}

// Request is one recorded navigation.
type Request struct {
	Path    string
	Options Options
}

// Recorder collects navigations for inspection in tests.
// Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	requests []Request
}

// Navigate implements Navigator.
func (r *Recorder) Navigate(path string, opts ...Option) {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, Request{Path: path, Options: options})
}

// Requests returns a copy of everything recorded so far.
func (r *Recorder) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Request, len(r.requests))
	copy(out, r.requests)
	return out
}

// Last returns the most recent navigation, or nil if none happened.
func (r *Recorder) Last() *Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		return nil
	}
	req := r.requests[len(r.requests)-1]
	return &req
}
