// Package store defines the hierarchical key/value backend templates are
// persisted in, along with an in-memory implementation and a concurrency
// limiting wrapper.
package store

import (
	"errors"
	"io"

	"golang.org/x/net/context"
)

var (
	ErrNodeExists = errors.New("node-exists")
	ErrNotExist   = errors.New("node-not-exist")
	ErrNotEmpty   = errors.New("node-not-empty")
	ErrClosed     = errors.New("store-closed")
)

// Store is addressed by fully-qualified slash paths.  Implementations must be
// safe for concurrent use.
type Store interface {
	io.Closer

	// Create writes a new node, creating any missing parents with empty values.
	// Fails with ErrNodeExists if the node is already present.
	Create(ctx context.Context, path string, value []byte) error

	// Read fails with ErrNotExist when there is no node.
	Read(ctx context.Context, path string) ([]byte, error)

	// Children returns full child paths, sorted.  Fails with ErrNotExist.
	Children(ctx context.Context, path string) ([]string, error)

	Exists(ctx context.Context, path string) (bool, error)

	// Delete succeeds if the node is already absent.  Without recursive, a node
	// that has children fails with ErrNotEmpty.
	Delete(ctx context.Context, path string, recursive bool) error
}

// Walk visits path and every node below it, parents first.  A missing path
// is not an error.  Nodes that vanish mid-walk are skipped.
func Walk(ctx context.Context, s Store, path string, fn func(path string, value []byte, children []string) error) error {
	value, err := s.Read(ctx, path)
	switch {
	case errors.Is(err, ErrNotExist):
		return nil
	case err != nil:
		return err
	}
	children, err := s.Children(ctx, path)
	switch {
	case errors.Is(err, ErrNotExist):
		return nil
	case err != nil:
		return err
	}
	if err := fn(path, value, children); err != nil {
		return err
	}
	for _, child := range children {
		if err := Walk(ctx, s, child, fn); err != nil {
			return err
		}
	}
	return nil
}
