// Package content serves the portal's catalog tables (products, videos,
// playlists) through one generic record endpoint per kind. Rows travel as
// maps so the same code path covers every kind; fieldcase translates
// between column names and the camelCase the clients speak.
package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/viewdeck/viewdeck/internal/apperrors"
	"github.com/viewdeck/viewdeck/internal/fieldcase"
)

// Kind describes one whitelisted record table. Writable lists the columns
// a create or update may touch; everything else (id, timestamps) is owned
// by the database.
type Kind struct {
	Table    string
	Fields   fieldcase.FieldMap
	Writable []string

	// selectList casts UUID columns to text so rows scan straight into
	// JSON-friendly maps.
	selectList string
	orderBy    string
}

var kinds = map[string]Kind{
	"products": {
		Table:      "products",
		Fields:     fieldcase.ProductFields,
		Writable:   []string{"title", "description", "image_url", "sort_order"},
		selectList: "id::text AS id, title, description, image_url, sort_order, created_at, updated_at",
		orderBy:    "sort_order, created_at",
	},
	"videos": {
		Table:      "videos",
		Fields:     fieldcase.VideoFields,
		Writable:   []string{"product_id", "title", "description", "video_url", "duration_seconds", "sort_order"},
		selectList: "id::text AS id, product_id::text AS product_id, title, description, video_url, duration_seconds, sort_order, created_at, updated_at",
		orderBy:    "sort_order, created_at",
	},
	"playlists": {
		Table:      "playlists",
		Fields:     fieldcase.PlaylistFields,
		Writable:   []string{"title", "description", "video_ids", "sort_order"},
		selectList: "id::text AS id, title, description, video_ids, sort_order, created_at, updated_at",
		orderBy:    "sort_order, created_at",
	},
}

// ErrUnknownKind rejects paths outside the whitelist. The table name is
// never interpolated from user input.
var ErrUnknownKind = apperrors.New(apperrors.KindValidation, "unknown_kind", "Unknown record kind")

// ErrRecordNotFound is returned for a missing or malformed record ID.
var ErrRecordNotFound = apperrors.New(apperrors.KindValidation, "not_found", "Record not found")

// KindByName resolves a URL segment to its table descriptor.
func KindByName(name string) (Kind, error) {
	kind, ok := kinds[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Kind{}, ErrUnknownKind
	}
	return kind, nil
}

// Store runs the record queries for all kinds.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// List returns every row of the kind in display order.
func (s *Store) List(ctx context.Context, kind Kind) ([]map[string]interface{}, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", kind.selectList, kind.Table, kind.orderBy)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list %s: %w", kind.Table, err))
	}

	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to scan %s: %w", kind.Table, err))
	}
	return records, nil
}

// Get returns one row by ID.
func (s *Store) Get(ctx context.Context, kind Kind, id string) (map[string]interface{}, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", kind.selectList, kind.Table)

	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to get %s record: %w", kind.Table, err))
	}

	record, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		// pgx.ErrNoRows and a malformed UUID both land here; neither is
		// distinguishable to the caller.
		return nil, ErrRecordNotFound
	}
	return record, nil
}

// Insert creates a row from the writable subset of fields (storage naming)
// and returns the stored row.
func (s *Store) Insert(ctx context.Context, kind Kind, fields map[string]interface{}) (map[string]interface{}, error) {
	columns, values := writableSubset(kind, fields)
	if len(columns) == 0 {
		return nil, apperrors.New(apperrors.KindValidation, "empty_record", "No writable fields provided")
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		kind.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", "), kind.selectList,
	)

	rows, err := s.pool.Query(ctx, query, values...)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to insert %s record: %w", kind.Table, err))
	}

	record, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to insert %s record: %w", kind.Table, err))
	}
	return record, nil
}

// Update patches the writable fields present in the request and bumps
// updated_at. Missing rows surface as not found.
func (s *Store) Update(ctx context.Context, kind Kind, id string, fields map[string]interface{}) (map[string]interface{}, error) {
	columns, values := writableSubset(kind, fields)
	if len(columns) == 0 {
		return nil, apperrors.New(apperrors.KindValidation, "empty_record", "No writable fields provided")
	}

	assignments := make([]string, 0, len(columns)+1)
	for i, col := range columns {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", col, i+1))
	}
	assignments = append(assignments, "updated_at = NOW()")

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $%d RETURNING %s",
		kind.Table, strings.Join(assignments, ", "), len(columns)+1, kind.selectList,
	)

	rows, err := s.pool.Query(ctx, query, append(values, id)...)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to update %s record: %w", kind.Table, err))
	}

	record, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

// Delete removes a row by ID.
func (s *Store) Delete(ctx context.Context, kind Kind, id string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", kind.Table), id)
	if err != nil {
		// A malformed UUID fails in the encoder; not found either way.
		return ErrRecordNotFound
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// writableSubset filters the incoming fields to the kind's writable columns,
// preserving the declared column order so queries are deterministic.
func writableSubset(kind Kind, fields map[string]interface{}) ([]string, []interface{}) {
	columns := make([]string, 0, len(kind.Writable))
	values := make([]interface{}, 0, len(kind.Writable))
	for _, col := range kind.Writable {
		if value, ok := fields[col]; ok {
			columns = append(columns, col)
			values = append(values, value)
		}
	}
	return columns, values
}
