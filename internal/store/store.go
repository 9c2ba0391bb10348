// Package store defines the record store capability the reconciliation core depends on.
//
// A record store holds named collections of property bags. Adapters live under
// internal/storage; the core only sees the RecordStore interface.
package store

import (
	"context"
	"errors"
	"fmt"
)

// DefaultPageSize is the page size used when a caller passes zero.
const DefaultPageSize = 100

// ErrNotFound is returned by Update when the target record does not exist.
var ErrNotFound = errors.New("record not found")

type Fields map[string]any

// Criteria is an equality filter over named fields.
type Criteria map[string]any

type Record struct {
	ID     string
	Fields Fields
}

type Page struct {
	Records    []Record
	NextCursor string
	HasMore    bool
}

type RecordStore interface {
	List(ctx context.Context, collection, cursor string, pageSize int) (Page, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, collection string, criteria Criteria) (*Record, error)
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	Update(ctx context.Context, collection, id string, fields Fields) error
	Ping(ctx context.Context) error
}

type Op string

const (
	OpList    Op = "list"
	OpFindOne Op = "find_one"
	OpCreate  Op = "create"
	OpUpdate  Op = "update"
	OpPing    Op = "ping"
)

// StoreIOError reports a failed store operation.
type StoreIOError struct {
	Op         Op
	Collection string
	Err        error
}

func (e *StoreIOError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreIOError) Unwrap() error {
	return e.Err
}

// ListAll walks every page of a collection. onPage, when non-nil, is called after each page.
func ListAll(ctx context.Context, s RecordStore, collection string, pageSize int, onPage func(page int, p Page)) ([]Record, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var (
		all    []Record
		cursor string
	)
	for n := 1; ; n++ {
		p, err := s.List(ctx, collection, cursor, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Records...)
		if onPage != nil {
			onPage(n, p)
		}
		if !p.HasMore {
			return all, nil
		}
		if p.NextCursor == "" || p.NextCursor == cursor {
			return nil, &StoreIOError{
				Op:         OpList,
				Collection: collection,
				Err:        fmt.Errorf("page %d reports more results without advancing the cursor", n),
			}
		}
		cursor = p.NextCursor
	}
}
