// Package mock provides a test double for search.Provider.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/jarvis/pkg/provider/search"
)

// Provider is a mock implementation of search.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Search.
	Result search.Result

	// Err, if non-nil, is returned by Search.
	Err error

	// Queries records every query passed to Search.
	Queries []string
}

// Search records the query and returns Result, Err.
func (p *Provider) Search(_ context.Context, query string) (search.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Queries = append(p.Queries, query)
	if p.Err != nil {
		return search.Result{}, p.Err
	}
	return p.Result, nil
}

var _ search.Provider = (*Provider)(nil)
