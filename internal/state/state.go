package state

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/meridian-data/streamloader/internal/schemaid"
)

// AtomicTableName is the sink's fixed base table. Its structure never
// changes, so it is exempt from schema-state tracking.
const AtomicTableName = "events"

// Atomic is the reserved identifier for the base table. Classify treats any
// identifier in its group as a permanent match.
var Atomic = schemaid.Identifier{
	Vendor:  "io.meridian",
	Name:    "atomic",
	Format:  "jsonschema",
	Version: schemaid.Version{Model: 1},
}

// Schema is one versioned schema document.
type Schema struct {
	Self schemaid.Identifier
	Data json.RawMessage
}

// SchemaList is a non-empty run of schemas for a single group, ascending by
// (revision, addition).
type SchemaList []Schema

// Latest returns the highest-versioned member.
func (l SchemaList) Latest() Schema {
	return l[len(l)-1]
}

// Group is the table key derived from the latest member.
func (l SchemaList) Group() schemaid.Group {
	return l.Latest().Self.Group()
}

// Until returns the prefix of l up to and including id. The registry and the
// physical table disagree when id is absent, which the caller must treat as
// fatal.
func (l SchemaList) Until(id schemaid.Identifier) (SchemaList, error) {
	for i, s := range l {
		if s.Self == id {
			return l[:i+1], nil
		}
	}
	return nil, &InconsistencyError{Group: l.Group(), Wanted: id}
}

// InconsistencyError signals that a table claims to run a schema version the
// registry does not report for its group.
type InconsistencyError struct {
	Group  schemaid.Group
	Wanted schemaid.Identifier
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("schema %s not found in registry list for group %s", e.Wanted, e.Group)
}

// TableState classifies a physical table against an incoming schema version.
type TableState int

const (
	// TableMatch means the table already reflects the incoming version.
	TableMatch TableState = iota
	// TableOutdated means the table exists but lags the incoming version.
	TableOutdated
	// TableMissing means no table has been created for the group yet.
	TableMissing
)

func (s TableState) String() string {
	switch s {
	case TableMatch:
		return "match"
	case TableOutdated:
		return "outdated"
	case TableMissing:
		return "missing"
	}
	return fmt.Sprintf("TableState(%d)", int(s))
}

// Snapshot is an immutable view of all tracked groups. Trackers never mutate
// a published snapshot; Put swaps in a fresh copy.
type Snapshot map[schemaid.Group]SchemaList

// Tracker is the process-wide schema state. Classify reads the current
// snapshot without locking; Put publishes a new snapshot atomically, so a
// reader never observes a half-applied update.
type Tracker struct {
	cell atomic.Pointer[Snapshot]
}

// NewTracker seeds a tracker with an initial snapshot. A nil snapshot is
// treated as empty.
func NewTracker(initial Snapshot) *Tracker {
	if initial == nil {
		initial = Snapshot{}
	}
	t := &Tracker{}
	t.cell.Store(&initial)
	return t
}

// Classify reports whether the table for id's group matches id, lags it, or
// does not exist. The reserved atomic group always matches.
func (t *Tracker) Classify(id schemaid.Identifier) TableState {
	if id.Group() == Atomic.Group() {
		return TableMatch
	}

	snap := *t.cell.Load()
	list, ok := snap[id.Group()]
	if !ok {
		return TableMissing
	}
	if len(list) == 1 {
		if list[0].Self == id {
			return TableMatch
		}
		return TableOutdated
	}
	for _, s := range list {
		if s.Self == id {
			return TableMatch
		}
	}
	return TableOutdated
}

// Put replaces the entry for list's group wholesale. No merging: the caller
// owns supplying the complete up-to-date list after a migration. Concurrent
// puts for distinct groups compose; for the same group the last write wins.
func (t *Tracker) Put(list SchemaList) {
	group := list.Group()
	for {
		old := t.cell.Load()
		next := make(Snapshot, len(*old)+1)
		for g, l := range *old {
			next[g] = l
		}
		next[group] = list
		if t.cell.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Current returns the live snapshot. Callers must not mutate it.
func (t *Tracker) Current() Snapshot {
	return *t.cell.Load()
}
