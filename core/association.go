package core

import (
	"fmt"
	"strings"
)

// AssociationTarget references one endpoint of an association, by
// summary/name (Ref) or by numeric id. Exactly one of Ref or ID is
// normally populated.
type AssociationTarget struct {
	Ref  string
	Type string
	ID   int
}

func (t AssociationTarget) key() string {
	return fmt.Sprintf("%t|%s|%s|%d", t.Ref == "", t.Ref, t.Type, t.ID)
}

// targetLess orders targets by (ref absent, ref, type, id) so that an
// association's endpoints have a canonical order.
func targetLess(a, b AssociationTarget) bool {
	if (a.Ref == "") != (b.Ref == "") {
		return b.Ref == ""
	}
	if a.Ref != b.Ref {
		return a.Ref < b.Ref
	}
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.ID < b.ID
}

// Association is an undirected pairing of two referenced entities.
// Equality is order-independent: the endpoints are normalized into
// canonical order at construction, so (A,B) equals (B,A). The
// association type participates in equality. Associations are never
// mutated after creation.
type Association struct {
	Type string
	A, B AssociationTarget
}

// NewAssociation creates an association with canonically ordered
// endpoints.
func NewAssociation(associationType string, a, b AssociationTarget) Association {
	if targetLess(b, a) {
		a, b = b, a
	}
	return Association{Type: associationType, A: a, B: b}
}

// Key returns a canonical string identity usable as a map key; equal
// associations always produce the same key.
func (a Association) Key() string {
	return strings.Join([]string{a.Type, a.A.key(), a.B.key()}, "||")
}

// Wire returns the wire representation. Zero-valued endpoint fields
// are omitted.
func (a Association) Wire() map[string]any {
	m := map[string]any{"associationType": a.Type}
	putTarget := func(suffix string, t AssociationTarget) {
		if t.Ref != "" {
			m["ref"+suffix] = t.Ref
		}
		if t.Type != "" {
			m["type"+suffix] = t.Type
		}
		if t.ID != 0 {
			m["id"+suffix] = t.ID
		}
	}
	putTarget("1", a.A)
	putTarget("2", a.B)
	return m
}
