package postgres

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jeovahfialho/perfwatch/internal/store"
	"github.com/jeovahfialho/perfwatch/pkg/metrics"
)

//go:embed schema.sql
var schema string

// RecordStore keeps every collection in a single JSONB-backed table. Field
// values are canonicalized before they are written so containment filters
// compare exact decimal and date strings.
type RecordStore struct {
	db *DB
}

func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *RecordStore) List(ctx context.Context, collection, cursor string, pageSize int) (store.Page, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StoreOperationDuration.WithLabelValues("pg_list"))

	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}

	var after int64
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return store.Page{}, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		after = n
	}

	query := `
        SELECT id::text, seq, fields
        FROM records
        WHERE collection = $1 AND seq > $2
        ORDER BY seq ASC
        LIMIT $3
    `

	rows, err := s.db.pool.Query(ctx, query, collection, after, pageSize+1)
	if err != nil {
		return store.Page{}, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var (
		page    store.Page
		lastSeq int64
	)
	for rows.Next() {
		var (
			id  string
			seq int64
			raw []byte
		)
		if err := rows.Scan(&id, &seq, &raw); err != nil {
			return store.Page{}, fmt.Errorf("scan record: %w", err)
		}
		if len(page.Records) == pageSize {
			page.HasMore = true
			break
		}

		fields, err := decodeFields(raw)
		if err != nil {
			return store.Page{}, fmt.Errorf("decode record %s: %w", id, err)
		}
		page.Records = append(page.Records, store.Record{ID: id, Fields: fields})
		lastSeq = seq
	}
	if err := rows.Err(); err != nil {
		return store.Page{}, fmt.Errorf("iterate %s: %w", collection, err)
	}

	if page.HasMore {
		page.NextCursor = strconv.FormatInt(lastSeq, 10)
	}
	return page, nil
}

func (s *RecordStore) FindOne(ctx context.Context, collection string, criteria store.Criteria) (*store.Record, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StoreOperationDuration.WithLabelValues("pg_find_one"))

	filter, err := encodeFields(store.Fields(criteria))
	if err != nil {
		return nil, err
	}

	query := `
        SELECT id::text, fields
        FROM records
        WHERE collection = $1 AND fields @> $2::jsonb
        ORDER BY seq ASC
        LIMIT 1
    `

	var (
		id  string
		raw []byte
	)
	err = s.db.pool.QueryRow(ctx, query, collection, filter).Scan(&id, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &store.Record{ID: id, Fields: fields}, nil
}

func (s *RecordStore) Create(ctx context.Context, collection string, fields store.Fields) (string, error) {
	doc, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	id := uuid.New()
	_, err = s.db.pool.Exec(ctx,
		`INSERT INTO records (id, collection, fields) VALUES ($1, $2, $3::jsonb)`,
		id, collection, doc)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return id.String(), nil
}

func (s *RecordStore) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	recordID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, store.ErrNotFound)
	}

	doc, err := encodeFields(fields)
	if err != nil {
		return err
	}

	tag, err := s.db.pool.Exec(ctx, `
        UPDATE records
        SET fields = fields || $3::jsonb, updated_at = now()
        WHERE collection = $1 AND id = $2
    `, collection, recordID, doc)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

func (s *RecordStore) Ping(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

func encodeFields(f store.Fields) (string, error) {
	b, err := json.Marshal(store.CanonicalFields(f))
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(b), nil
}

// decodeFields keeps numbers as json.Number so decimals survive the round trip.
func decodeFields(raw []byte) (store.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	fields := store.Fields{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}
