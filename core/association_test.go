package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssociationSymmetry(t *testing.T) {
	a := NewAssociation("Campaign to Campaign",
		AssociationTarget{Ref: "g1", Type: "Campaign"},
		AssociationTarget{Ref: "g2", Type: "Campaign"})
	b := NewAssociation("Campaign to Campaign",
		AssociationTarget{Ref: "g2", Type: "Campaign"},
		AssociationTarget{Ref: "g1", Type: "Campaign"})

	assert.Equal(t, a, b)
	assert.Equal(t, a.Key(), b.Key())

	set := map[string]Association{a.Key(): a, b.Key(): b}
	assert.Len(t, set, 1)
}

func TestAssociationTypeBreaksEquality(t *testing.T) {
	a := NewAssociation("drop",
		AssociationTarget{Ref: "g1", Type: "Campaign"},
		AssociationTarget{Ref: "g2", Type: "Campaign"})
	b := NewAssociation("traffic",
		AssociationTarget{Ref: "g1", Type: "Campaign"},
		AssociationTarget{Ref: "g2", Type: "Campaign"})

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestAssociationCanonicalOrdering(t *testing.T) {
	// Id-only endpoints sort after ref-bearing ones.
	byID := AssociationTarget{Type: "Incident", ID: 42}
	byRef := AssociationTarget{Ref: "inc-name", Type: "Incident"}

	a := NewAssociation("related", byID, byRef)
	assert.Equal(t, byRef, a.A)
	assert.Equal(t, byID, a.B)
}

func TestAssociationWire(t *testing.T) {
	a := NewAssociation("related",
		AssociationTarget{Ref: "g1", Type: "Campaign"},
		AssociationTarget{Type: "Incident", ID: 7})
	wire := a.Wire()
	assert.Equal(t, "related", wire["associationType"])
	assert.Equal(t, "g1", wire["ref1"])
	assert.Equal(t, "Campaign", wire["type1"])
	assert.Equal(t, 7, wire["id2"])
	assert.NotContains(t, wire, "ref2")
}
