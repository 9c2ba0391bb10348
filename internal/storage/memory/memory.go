// Package memory is an in-process RecordStore used for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/jeovahfialho/perfwatch/internal/store"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string][]store.Record
}

func New() *Store {
	return &Store{collections: make(map[string][]store.Record)}
}

// Seed appends raw records to a collection, as an external ledger would, and returns their IDs.
func (s *Store) Seed(collection string, fields ...store.Fields) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		id := uuid.NewString()
		s.collections[collection] = append(s.collections[collection], store.Record{ID: id, Fields: copyFields(f)})
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of records in a collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func (s *Store) List(ctx context.Context, collection, cursor string, pageSize int) (store.Page, error) {
	if err := ctx.Err(); err != nil {
		return store.Page{}, err
	}
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return store.Page{}, fmt.Errorf("invalid cursor %q", cursor)
		}
		start = n
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.collections[collection]
	if start > len(records) {
		start = len(records)
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}

	page := store.Page{Records: make([]store.Record, 0, end-start)}
	for _, r := range records[start:end] {
		page.Records = append(page.Records, store.Record{ID: r.ID, Fields: copyFields(r.Fields)})
	}
	if end < len(records) {
		page.HasMore = true
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (s *Store) FindOne(ctx context.Context, collection string, criteria store.Criteria) (*store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.collections[collection] {
		if store.Matches(r.Fields, criteria) {
			return &store.Record{ID: r.ID, Fields: copyFields(r.Fields)}, nil
		}
	}
	return nil, nil
}

func (s *Store) Create(ctx context.Context, collection string, fields store.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.collections[collection] = append(s.collections[collection], store.Record{
		ID:     id,
		Fields: store.CanonicalFields(fields),
	})
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.collections[collection]
	for i := range records {
		if records[i].ID != id {
			continue
		}
		for k, v := range store.CanonicalFields(fields) {
			records[i].Fields[k] = v
		}
		return nil
	}
	return fmt.Errorf("update %s/%s: %w", collection, id, store.ErrNotFound)
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func copyFields(f store.Fields) store.Fields {
	out := make(store.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
