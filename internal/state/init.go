package state

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-data/streamloader/internal/schemaid"
)

// TableComment is one physical table's recorded schema pointer, as read from
// the sink. Comment is empty when the table carries no comment at all.
type TableComment struct {
	Table   string
	Comment string
}

// CommentReader reads schema pointers from the sink's table metadata.
type CommentReader interface {
	ReadComments(ctx context.Context, schemaName string) ([]TableComment, error)
}

// IssueKind discriminates bootstrap comment diagnostics.
type IssueKind int

const (
	// IssueMissingComment means the table has no comment set.
	IssueMissingComment IssueKind = iota
	// IssueUnparsable means the comment exists but is not a schema identifier.
	IssueUnparsable
)

// CommentIssue is a non-fatal bootstrap diagnostic for one table.
type CommentIssue struct {
	Kind   IssueKind
	Table  string
	Detail string
}

func (i CommentIssue) String() string {
	if i.Kind == IssueMissingComment {
		return fmt.Sprintf("table %s has no schema comment", i.Table)
	}
	return fmt.Sprintf("table %s has an unparsable schema comment: %s", i.Table, i.Detail)
}

// Bootstrap reverse-engineers the schema state from the sink's table
// comments. Each table's recorded identifier is resolved against the
// registry and truncated to the version the table actually runs, so
// unmigrated registry versions never leak into the initial state.
//
// Registry failures and registry/table disagreements are fatal: ingestion
// must not start against an unknown state. Comment issues are returned as
// warnings, minus the expected absence of the atomic base table.
func Bootstrap(ctx context.Context, reader CommentReader, registry Registry, schemaName string) (*Tracker, []CommentIssue, error) {
	comments, err := reader.ReadComments(ctx, schemaName)
	if err != nil {
		return nil, nil, fmt.Errorf("read table comments from schema %q: %w", schemaName, err)
	}

	ids, issues := partitionComments(comments)

	resolver := NewResolver(registry)
	lists := make([]SchemaList, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			full, err := resolver.Resolve(gctx, id.Group())
			if err != nil {
				return err
			}
			truncated, err := full.Until(id)
			if err != nil {
				return err
			}
			lists[i] = truncated
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("bootstrap schema state: %w", err)
	}

	tracker := NewTracker(nil)
	for _, list := range lists {
		tracker.Put(list)
	}

	kept := issues[:0]
	for _, issue := range issues {
		if issue.Kind == IssueMissingComment && issue.Table == AtomicTableName {
			continue
		}
		kept = append(kept, issue)
	}

	slog.Info("Schema state bootstrapped",
		"schema", schemaName,
		"tables", len(ids),
		"warnings", len(kept))

	return tracker, kept, nil
}

func partitionComments(comments []TableComment) ([]schemaid.Identifier, []CommentIssue) {
	var (
		ids    []schemaid.Identifier
		issues []CommentIssue
	)
	for _, c := range comments {
		if c.Comment == "" {
			issues = append(issues, CommentIssue{Kind: IssueMissingComment, Table: c.Table})
			continue
		}
		id, err := schemaid.Parse(c.Comment)
		if err != nil {
			issues = append(issues, CommentIssue{Kind: IssueUnparsable, Table: c.Table, Detail: err.Error()})
			continue
		}
		ids = append(ids, id)
	}
	return ids, issues
}
