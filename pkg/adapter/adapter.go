package adapter

import "context"

// Adapter is a provider client that turns a Request into raw model text.
type Adapter interface {
	// Invoke sends the request and returns the provider's raw text.
	Invoke(ctx context.Context, req *Request) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// AdapterInfo holds metadata about an adapter.
type AdapterInfo struct {
	Name   string
	Models []ModelInfo
}

// ModelInfo holds metadata about a model.
type ModelInfo struct {
	ID          string
	Description string
}
