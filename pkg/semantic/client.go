// Package semantic defines the boundary to the external AI matching
// service. The engine sends one request per run and treats whatever comes
// back as an untrusted blob; all interpretation happens in the validator.
package semantic

import "context"

// Client is the collaborator interface the engine consumes. Implementations
// send the serialized prompt context and return the raw response bytes
// without interpreting them. Network, timeout, and non-2xx failures must
// surface as *errors.ExternalCallError.
type Client interface {
	// Match performs the single matching call for one run. The request is
	// the prompt context JSON; the response is expected (but not trusted)
	// to be a JSON document with matches, unmatched, and errors arrays.
	Match(ctx context.Context, request []byte) ([]byte, error)

	// Endpoint names the service for the session's external-call log.
	Endpoint() string
}

// Func adapts a function to the Client interface, for tests and embedding.
type Func struct {
	Name string
	Fn   func(ctx context.Context, request []byte) ([]byte, error)
}

// Match implements Client.
func (f Func) Match(ctx context.Context, request []byte) ([]byte, error) {
	return f.Fn(ctx, request)
}

// Endpoint implements Client.
func (f Func) Endpoint() string {
	if f.Name == "" {
		return "func"
	}
	return f.Name
}
