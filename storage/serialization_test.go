package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalWire(t *testing.T) {
	tests := []struct {
		name string
		wire map[string]any
	}{
		{
			name: "minimal group",
			wire: map[string]any{
				"type": "Adversary",
				"name": "APT-Example",
				"xid":  "abc123",
			},
		},
		{
			name: "group with nested collections",
			wire: map[string]any{
				"type": "Incident",
				"name": "2026 intrusion",
				"xid":  "def456",
				"attribute": []any{
					map[string]any{"type": "Description", "value": "initial access"},
				},
				"tag":                []any{map[string]any{"name": "apt"}},
				"associatedGroupXid": []any{"abc123"},
			},
		},
		{
			name: "unicode values",
			wire: map[string]any{
				"type":    "Host",
				"summary": "пример.example",
				"xid":     "ghi789",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalWire(tt.wire)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalWire(data)
			require.NoError(t, err)
			assert.Equal(t, tt.wire, decoded)
		})
	}
}

func TestUnmarshalWire_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated object", []byte(`{"type":`)},
		{"non-object", []byte(`[1,2,3]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalWire(tt.data)
			assert.Error(t, err)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestWireSize(t *testing.T) {
	wire := map[string]any{"type": "Adversary", "name": "x", "xid": "y"}

	data, err := MarshalWire(wire)
	require.NoError(t, err)
	size, err := WireSize(wire)
	require.NoError(t, err)
	assert.Equal(t, len(data), size)

	size, err = WireSize(map[string]any{"bad": make(chan int)})
	assert.ErrorIs(t, err, ErrSerializationFailed)
	assert.Zero(t, size)
}
