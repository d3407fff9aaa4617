package core

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		values []string
	}{
		{"single", []string{"mutex-name"}},
		{"pair", []string{"HKLM\\Software", "Run"}},
		{"triple", []string{"aaa", "bbb", "ccc"}},
		{"hashes", []string{"905ad8176a569a36421bf54c04ba7f95", "a52b6986d68cdfac53aa740566cbeade4452124e", "25bdec2c4e0a440b63a4ca00cbd8d17f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := BuildSummary(tt.values...)
			got := SplitSummary(summary)
			if !reflect.DeepEqual(got, tt.values) {
				t.Fatalf("Round trip failed: %v -> %q -> %v", tt.values, summary, got)
			}
		})
	}
}

func TestBuildSummarySkipsEmptyComponents(t *testing.T) {
	if got := BuildSummary("only", "", ""); got != "only" {
		t.Fatalf("Expected %q, got %q", "only", got)
	}
}

func TestCoreIndicatorWireUsesSummary(t *testing.T) {
	in := NewIndicator(IndicatorFile, BuildSummary("md5h", "sha1h", "sha256h"))
	wire := in.Wire()
	assert.Equal(t, "md5h : sha1h : sha256h", wire["summary"])
	assert.NotContains(t, wire, "value1")
}

func TestNonCoreIndicatorWireUsesValueFields(t *testing.T) {
	in := NewIndicator(IndicatorRegistryKey, BuildSummary("HKLM\\Software", "RunOnce", "REG_SZ"))
	wire := in.Wire()
	assert.NotContains(t, wire, "summary")
	assert.Equal(t, "HKLM\\Software", wire["value1"])
	assert.Equal(t, "RunOnce", wire["value2"])
	assert.Equal(t, "REG_SZ", wire["value3"])
}

func TestRegistryCustomType(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("Cert Fingerprint", "Fingerprint"))

	in, err := NewIndicatorValues(registry, "Cert Fingerprint", []string{"ab:cd:ef"})
	require.NoError(t, err)
	assert.Equal(t, "ab:cd:ef", in.Wire()["value1"])

	_, err = NewIndicatorValues(registry, "Cert Fingerprint", []string{"a", "b"})
	assert.ErrorIs(t, err, ErrValueCount)

	_, err = NewIndicatorValues(registry, "Never Registered", []string{"a"})
	assert.ErrorIs(t, err, ErrUnknownIndicatorType)

	err = registry.Register("Too Wide", "a", "b", "c", "d")
	assert.ErrorIs(t, err, ErrInvalidValueLabels)

	err = registry.Register("Cert Fingerprint", "Fingerprint")
	if !errors.Is(err, ErrTypeRegistered) {
		t.Fatalf("Expected ErrTypeRegistered, got %v", err)
	}
}

func TestIndicatorOptionalFlags(t *testing.T) {
	in := NewIndicator(IndicatorAddress, "10.2.3.4",
		WithRating(4.5), WithConfidence(80), WithActive(true), WithPrivate(false))
	wire := in.Wire()
	assert.Equal(t, 4.5, wire["rating"])
	assert.Equal(t, 80, wire["confidence"])
	assert.Equal(t, true, wire["active"])
	assert.Equal(t, false, wire["privateFlag"])
}

func TestFileIndicatorOccurrenceAndAction(t *testing.T) {
	file := NewIndicator(IndicatorFile, "905ad8176a569a36421bf54c04ba7f95")
	file.Occurrence("dropper.exe", "C:\\windows\\temp", "2026-08-12T00:00:00Z")

	dropped := NewIndicator(IndicatorFile, "25bdec2c4e0a440b63a4ca00cbd8d17f")
	action := file.Action("drop", dropped)
	grandchild := NewIndicator(IndicatorHost, "bad.example.com")
	action.Action("traffic", grandchild)

	wire := file.Wire()
	occurrences := wire["fileOccurrence"].([]map[string]any)
	require.Len(t, occurrences, 1)
	assert.Equal(t, "dropper.exe", occurrences[0]["fileName"])

	fa := wire["fileAction"].(map[string]any)
	children := fa["children"].([]map[string]any)
	require.Len(t, children, 1)
	assert.Equal(t, dropped.Xid(), children[0]["indicatorXid"])
	nested := children[0]["children"].([]map[string]any)
	require.Len(t, nested, 1)
	assert.Equal(t, "traffic", nested[0]["relationship"])
}

func TestIndicatorAssociatedGroupsWire(t *testing.T) {
	in := NewIndicator(IndicatorHost, "evil.example.com")
	in.AssociateGroup("g-1")
	in.AssociateGroup("g-2")
	in.AssociateGroup("g-1") // duplicate ignored

	refs := in.Wire()["associatedGroups"].([]map[string]any)
	require.Len(t, refs, 2)
	assert.Equal(t, "g-1", refs[0]["groupXid"])
}
