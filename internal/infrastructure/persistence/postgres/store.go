package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store implements the leaderboard document store over a JSONB table.
// One Store is one pooled backend connection from the load balancer's
// point of view; several can share one Connection.
type Store struct {
	conn *Connection
}

// NewStore creates a document store over a connection pool.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// Fields with non-text comparison semantics in JSONB expressions.
var (
	numericFields = map[string]bool{
		"score":             true,
		"score_to_par":      true,
		"position":          true,
		"previous_position": true,
		"holes_played":      true,
		"max_entries":       true,
	}
	booleanFields = map[string]bool{
		"is_active": true,
		"is_live":   true,
	}
	timeFields = map[string]bool{
		"created_at": true,
		"updated_at": true,
		"expires_at": true,
	}
)

// Create inserts a new document. A duplicate id is a write failure.
func (s *Store) Create(ctx context.Context, collection, id string, doc leaderboard.Document) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO leaderboard_documents (collection, id, doc, updated_at)
		VALUES ($1, $2, $3, NOW())
	`, collection, id, doc)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("postgres", "Create", shared.ErrWriteFailed,
				fmt.Sprintf("document %s/%s already exists", collection, id), err)
		}
		return shared.WrapError("postgres", "Create", shared.ErrWriteFailed, "insert failed", err)
	}
	return nil
}

// Get fetches one document by id.
func (s *Store) Get(ctx context.Context, collection, id string) (leaderboard.Document, error) {
	var doc leaderboard.Document
	err := s.conn.QueryRow(ctx, `
		SELECT doc FROM leaderboard_documents
		WHERE collection = $1 AND id = $2
	`, collection, id).Scan(&doc)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewError("postgres", "Get", shared.ErrNotFound,
				fmt.Sprintf("document %s/%s not found", collection, id))
		}
		return nil, shared.WrapError("postgres", "Get", shared.ErrFetchFailed, "select failed", err)
	}
	return doc, nil
}

// List runs a translated query and returns the matching documents.
func (s *Store) List(ctx context.Context, q leaderboard.Query) ([]leaderboard.Document, error) {
	sql, args, err := buildListSQL(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, shared.WrapError("postgres", "List", shared.ErrFetchFailed, "query failed", err)
	}
	defer rows.Close()

	var docs []leaderboard.Document
	for rows.Next() {
		var doc leaderboard.Document
		if err := rows.Scan(&doc); err != nil {
			return nil, shared.WrapError("postgres", "List", shared.ErrFetchFailed, "scan failed", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("postgres", "List", shared.ErrFetchFailed, "row iteration failed", err)
	}
	return docs, nil
}

// Update replaces an existing document. Updating an absent document is
// NotFound so callers can distinguish a lost write from a miss.
func (s *Store) Update(ctx context.Context, collection, id string, doc leaderboard.Document) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE leaderboard_documents
		SET doc = $3, updated_at = NOW()
		WHERE collection = $1 AND id = $2
	`, collection, id, doc)
	if err != nil {
		return shared.WrapError("postgres", "Update", shared.ErrWriteFailed, "update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewError("postgres", "Update", shared.ErrNotFound,
			fmt.Sprintf("document %s/%s not found", collection, id))
	}
	return nil
}

// Delete removes a document. Deleting an absent document is NotFound.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.conn.Exec(ctx, `
		DELETE FROM leaderboard_documents
		WHERE collection = $1 AND id = $2
	`, collection, id)
	if err != nil {
		return shared.WrapError("postgres", "Delete", shared.ErrWriteFailed, "delete failed", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewError("postgres", "Delete", shared.ErrNotFound,
			fmt.Sprintf("document %s/%s not found", collection, id))
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// QUERY TRANSLATION
// ──────────────────────────────────────────────────────────────────────────────

// buildListSQL translates a backend-neutral query into a JSONB select.
func buildListSQL(q leaderboard.Query) (string, []any, error) {
	var sb strings.Builder
	args := []any{q.Collection}

	sb.WriteString("SELECT doc FROM leaderboard_documents WHERE collection = $1")

	for _, f := range q.Filters {
		expr, arg, err := filterExpr(f, len(args)+1)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(expr)
		args = append(args, arg)
	}

	if len(q.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range q.OrderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(orderExpr(o))
		}
	}

	if q.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
	}
	if q.Offset > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", q.Offset))
	}

	return sb.String(), args, nil
}

func filterExpr(f leaderboard.Filter, placeholder int) (string, any, error) {
	switch f.Op {
	case leaderboard.OpEqual:
		switch {
		case booleanFields[f.Field]:
			return fmt.Sprintf("(doc->>'%s')::boolean = $%d", f.Field, placeholder), f.Value, nil
		case numericFields[f.Field]:
			return fmt.Sprintf("(doc->>'%s')::numeric = $%d", f.Field, placeholder), f.Value, nil
		default:
			return fmt.Sprintf("doc->>'%s' = $%d", f.Field, placeholder), f.Value, nil
		}

	case leaderboard.OpIn:
		// Array-valued fields get a JSONB membership test; scalar
		// fields match against the candidate set.
		if f.Field == "participant_ids" {
			return fmt.Sprintf("doc->'%s' ?| $%d", f.Field, placeholder), f.Value, nil
		}
		return fmt.Sprintf("doc->>'%s' = ANY($%d)", f.Field, placeholder), f.Value, nil

	case leaderboard.OpGreater:
		if timeFields[f.Field] {
			return fmt.Sprintf("(doc->>'%s')::timestamptz >= $%d::timestamptz", f.Field, placeholder), f.Value, nil
		}
		return fmt.Sprintf("(doc->>'%s')::numeric >= $%d", f.Field, placeholder), f.Value, nil

	case leaderboard.OpLess:
		if timeFields[f.Field] {
			return fmt.Sprintf("(doc->>'%s')::timestamptz <= $%d::timestamptz", f.Field, placeholder), f.Value, nil
		}
		return fmt.Sprintf("(doc->>'%s')::numeric <= $%d", f.Field, placeholder), f.Value, nil
	}

	return "", nil, shared.NewError("postgres", "List", shared.ErrValidationFailed,
		fmt.Sprintf("unsupported filter op %q", f.Op))
}

func orderExpr(o leaderboard.Order) string {
	expr := fmt.Sprintf("doc->>'%s'", o.Field)
	switch {
	case numericFields[o.Field]:
		expr = fmt.Sprintf("(doc->>'%s')::numeric", o.Field)
	case timeFields[o.Field]:
		expr = fmt.Sprintf("(doc->>'%s')::timestamptz", o.Field)
	}
	if o.Descending {
		return expr + " DESC"
	}
	return expr + " ASC"
}
