package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/meridian-data/streamloader/internal/state"
)

// queryTableComments lists every ordinary table in a schema together with
// its comment. Tables without a comment come back with an empty string.
const queryTableComments = `
	SELECT c.relname, COALESCE(d.description, '')
	FROM pg_catalog.pg_class c
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	LEFT JOIN pg_catalog.pg_description d ON d.objoid = c.oid AND d.objsubid = 0
	WHERE n.nspname = $1 AND c.relkind = 'r'
	ORDER BY c.relname`

// CommentStore reads schema pointers from table comments in the sink. It is
// the concrete table-metadata collaborator behind the state bootstrap.
type CommentStore struct {
	db *sql.DB
}

func NewCommentStore(db *sql.DB) *CommentStore {
	if db == nil {
		panic("postgres: db must not be nil")
	}
	return &CommentStore{db: db}
}

// ReadComments implements state.CommentReader.
func (s *CommentStore) ReadComments(ctx context.Context, schemaName string) ([]state.TableComment, error) {
	rows, err := s.db.QueryContext(ctx, queryTableComments, schemaName)
	if err != nil {
		return nil, fmt.Errorf("query table comments in schema %q: %w", schemaName, err)
	}
	defer rows.Close()

	var comments []state.TableComment
	for rows.Next() {
		var c state.TableComment
		if err := rows.Scan(&c.Table, &c.Comment); err != nil {
			return nil, fmt.Errorf("scan table comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table comments: %w", err)
	}
	return comments, nil
}
