// Package workspace holds the import units requested by target locations and
// the store that brings them into a workspace directory.
package workspace

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind classifies an import unit.
type Kind string

const (
	KindProject  Kind = "project"
	KindResource Kind = "resource"
)

// DefaultEncoding is used for resources that do not name a charset.
const DefaultEncoding = "utf-8"

// Unit is one entity a target location wants present in the workspace.
// Units are compared by value, so two locations requesting the same project
// from the same source share a single Unit.
type Unit struct {
	Kind Kind `json:"kind"`
	// Name is the workspace-relative path of the unit.
	Name string `json:"name"`
	// Source is the project directory, or where resource content came from.
	Source   string `json:"source,omitempty"`
	Content  string `json:"content,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Force    bool   `json:"force,omitempty"`
}

// ProjectUnit returns a unit linking or copying dir into the workspace as name.
func ProjectUnit(name, dir string) Unit {
	return Unit{Kind: KindProject, Name: name, Source: dir}
}

// ResourceUnit returns a unit creating the file name with content.
func ResourceUnit(name, content, encoding string, force bool) Unit {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return Unit{Kind: KindResource, Name: name, Content: content, Encoding: encoding, Force: force}
}

// Key renders the unit as "kind:name".
func (u Unit) Key() string {
	return string(u.Kind) + ":" + u.Name
}

func (u Unit) String() string {
	return u.Key()
}

// Validate checks that the unit can be placed inside a workspace root.
func (u Unit) Validate() error {
	switch u.Kind {
	case KindProject:
		if u.Source == "" {
			return fmt.Errorf("project %q has no source directory", u.Name)
		}
	case KindResource:
	default:
		return fmt.Errorf("unknown unit kind %q", u.Kind)
	}
	if u.Name == "" {
		return fmt.Errorf("%s unit has an empty name", u.Kind)
	}
	if filepath.IsAbs(u.Name) {
		return fmt.Errorf("unit name %q must be relative to the workspace", u.Name)
	}
	clean := filepath.Clean(u.Name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("unit name %q escapes the workspace", u.Name)
	}
	return nil
}

// UnitSet is a set of units with value identity.
type UnitSet map[Unit]struct{}

// NewUnitSet builds a set from units, merging duplicates.
func NewUnitSet(units ...Unit) UnitSet {
	s := make(UnitSet, len(units))
	s.Add(units...)
	return s
}

// Add inserts units into the set.
func (s UnitSet) Add(units ...Unit) {
	for _, u := range units {
		s[u] = struct{}{}
	}
}

// Has reports whether u is in the set.
func (s UnitSet) Has(u Unit) bool {
	_, ok := s[u]
	return ok
}

// Slice returns the members ordered by key.
func (s UnitSet) Slice() []Unit {
	out := make([]Unit, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sortUnits(out)
	return out
}
