// Package ports defines the interfaces the bridge core requires from
// external services. Adapters under internal/adapters implement them.
package ports

import "context"

// DocumentStore is the narrow contract the core needs from the external
// document store: get-by-id and set-by-id inside named collections.
//
// Field values are strings; timestamps are stored as RFC 3339 strings,
// matching the records the production store already holds. An absent
// document is (nil, false, nil), not an error.
type DocumentStore interface {
	// Get returns the fields of collection/id, and whether it exists.
	Get(ctx context.Context, collection, id string) (map[string]string, bool, error)

	// Set writes fields to collection/id. With merge true, existing
	// fields not present in the write are retained.
	Set(ctx context.Context, collection, id string, fields map[string]string, merge bool) error

	// Close releases the underlying connection.
	Close() error
}
