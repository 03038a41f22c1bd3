package schemaid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Scheme is the optional URI scheme accepted in front of a canonical
// identifier, e.g. "schema:com.acme/click/jsonschema/1-0-0".
const Scheme = "schema:"

// ErrMalformed is returned when a string cannot be parsed as an identifier.
var ErrMalformed = errors.New("malformed schema identifier")

// Version is the three-part schema version. Model bumps are breaking,
// revision bumps may alter existing columns, addition bumps only append.
type Version struct {
	Model    int
	Revision int
	Addition int
}

func (v Version) String() string {
	return fmt.Sprintf("%d-%d-%d", v.Model, v.Revision, v.Addition)
}

// Compare orders versions by (model, revision, addition).
func (v Version) Compare(o Version) int {
	if v.Model != o.Model {
		return v.Model - o.Model
	}
	if v.Revision != o.Revision {
		return v.Revision - o.Revision
	}
	return v.Addition - o.Addition
}

// Identifier pins one schema document in the registry: who published it,
// what it describes, how it is serialized and which version it is.
type Identifier struct {
	Vendor  string
	Name    string
	Format  string
	Version Version
}

func (id Identifier) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", id.Vendor, id.Name, id.Format, id.Version)
}

// Group identifies one physical table: all identifiers sharing a vendor,
// name and model land in the same table regardless of revision or addition.
type Group struct {
	Vendor string
	Name   string
	Model  int
}

func (g Group) String() string {
	return fmt.Sprintf("%s/%s/%d", g.Vendor, g.Name, g.Model)
}

// Group projects the identifier onto its table-identifying key.
func (id Identifier) Group() Group {
	return Group{Vendor: id.Vendor, Name: id.Name, Model: id.Version.Model}
}

// Parse reads a canonical identifier, with or without the "schema:" prefix.
func Parse(s string) (Identifier, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), Scheme)

	parts := strings.Split(raw, "/")
	if len(parts) != 4 {
		return Identifier{}, fmt.Errorf("%w: %q: want vendor/name/format/version", ErrMalformed, s)
	}
	for i, p := range parts {
		if p == "" {
			return Identifier{}, fmt.Errorf("%w: %q: empty segment %d", ErrMalformed, s, i)
		}
	}

	version, err := parseVersion(parts[3])
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}

	return Identifier{
		Vendor:  parts[0],
		Name:    parts[1],
		Format:  parts[2],
		Version: version,
	}, nil
}

func parseVersion(s string) (Version, error) {
	nums := strings.Split(s, "-")
	if len(nums) != 3 {
		return Version{}, fmt.Errorf("version %q is not MODEL-REVISION-ADDITION", s)
	}
	var out [3]int
	for i, n := range nums {
		v, err := strconv.Atoi(n)
		if err != nil || v < 0 {
			return Version{}, fmt.Errorf("version %q has a non-numeric part %q", s, n)
		}
		out[i] = v
	}
	return Version{Model: out[0], Revision: out[1], Addition: out[2]}, nil
}
