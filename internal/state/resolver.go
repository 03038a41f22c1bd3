package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meridian-data/streamloader/internal/schemaid"
)

// Registry enumerates and fetches schemas. Implementations classify their
// failures (see registry.Error); the resolver passes those through wrapped.
type Registry interface {
	// ListVersions returns every identifier known for the group, ascending
	// by (revision, addition).
	ListVersions(ctx context.Context, group schemaid.Group) ([]schemaid.Identifier, error)

	// FetchBody returns the schema document for one identifier.
	FetchBody(ctx context.Context, id schemaid.Identifier) (json.RawMessage, error)
}

// Resolver assembles full SchemaLists for a group from the registry.
type Resolver struct {
	registry Registry
}

func NewResolver(registry Registry) *Resolver {
	if registry == nil {
		panic("state: registry must not be nil")
	}
	return &Resolver{registry: registry}
}

// Resolve lists the group's versions and fetches each body. Any member
// failure short-circuits the whole group.
func (r *Resolver) Resolve(ctx context.Context, group schemaid.Group) (SchemaList, error) {
	ids, err := r.registry.ListVersions(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("list versions for %s: %w", group, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("registry reports no schemas for group %s", group)
	}

	list := make(SchemaList, 0, len(ids))
	for _, id := range ids {
		body, err := r.registry.FetchBody(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch schema %s: %w", id, err)
		}
		list = append(list, Schema{Self: id, Data: body})
	}
	return list, nil
}
