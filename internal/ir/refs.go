package ir

import (
	"fmt"
	"strings"
)

// EntityRef is a typed reference to a catalog entity.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

// Ref builds an EntityRef.
func Ref(kind EntityKind, id string) EntityRef {
	return EntityRef{Kind: kind, ID: id}
}

func (r EntityRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// Less orders refs by kind, then ID.
func (r EntityRef) Less(o EntityRef) bool {
	if r.Kind != o.Kind {
		return r.Kind < o.Kind
	}
	return r.ID < o.ID
}

// ParseRef parses "kind:id".
func ParseRef(s string) (EntityRef, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return EntityRef{}, fmt.Errorf("invalid entity reference %q: want kind:id", s)
	}
	if !ValidKinds[EntityKind(kind)] {
		return EntityRef{}, fmt.Errorf("invalid entity reference %q: unknown kind %q", s, kind)
	}
	return EntityRef{Kind: EntityKind(kind), ID: id}, nil
}
