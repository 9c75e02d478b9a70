// Package search defines the Provider interface for grounded web search.
//
// A search returns a short natural-language answer together with the web
// sources it was grounded on.
package search

import "context"

// Source is a single web citation.
type Source struct {
	Title string
	URI   string
}

// Result is the outcome of a grounded search.
type Result struct {
	Text    string
	Sources []Source
}

// Provider performs grounded web searches. Implementations must be safe for
// concurrent use.
type Provider interface {
	Search(ctx context.Context, query string) (Result, error)
}
