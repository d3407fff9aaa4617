// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

// UniquePolicy controls how staged attributes are deduplicated.
type UniquePolicy int

const (
	// UniqueAppend always appends; duplicates are allowed.
	UniqueAppend UniquePolicy = iota
	// UniqueValue appends only if no existing attribute has the same
	// (type, value) pair; otherwise the existing attribute is returned.
	UniqueValue
	// UniqueType keeps at most one attribute per type; a new attribute
	// with the same type replaces the prior single slot.
	UniqueType
)

// Attribute is a typed key/value annotation attached to a Group or
// Indicator. Validity is computed once at construction; invalid
// attributes stay in memory (so later mutation is still possible) but
// are excluded from wire output.
type Attribute struct {
	Type      string
	Value     string
	Displayed bool
	Source    string

	valid bool
}

// NewAttribute creates an attribute. If formatter is non-nil it
// transforms value before storage; validity is computed from the
// formatted value.
func NewAttribute(attrType, value string, displayed bool, source string, formatter func(string) string) *Attribute {
	if formatter != nil {
		value = formatter(value)
	}
	return &Attribute{
		Type:      attrType,
		Value:     value,
		Displayed: displayed,
		Source:    source,
		valid:     value != "",
	}
}

// Valid reports whether the attribute carries a non-empty value.
func (a *Attribute) Valid() bool {
	return a.valid
}

// Wire returns the camelCase wire representation.
func (a *Attribute) Wire() map[string]any {
	m := map[string]any{
		"type":  a.Type,
		"value": a.Value,
	}
	if a.Displayed {
		m["displayed"] = true
	}
	if a.Source != "" {
		m["source"] = a.Source
	}
	return m
}

// attributeList holds staged attributes and applies the unique policy.
// It is embedded by Group and Indicator.
type attributeList struct {
	attributes []*Attribute
}

func (l *attributeList) add(attrType, value string, unique UniquePolicy, displayed bool, source string, formatter func(string) string) *Attribute {
	attr := NewAttribute(attrType, value, displayed, source, formatter)
	switch unique {
	case UniqueValue:
		for _, existing := range l.attributes {
			if existing.Type == attr.Type && existing.Value == attr.Value {
				return existing
			}
		}
	case UniqueType:
		for i, existing := range l.attributes {
			if existing.Type == attr.Type {
				l.attributes[i] = attr
				return attr
			}
		}
	}
	l.attributes = append(l.attributes, attr)
	return attr
}

// Attributes returns all staged attributes, including invalid ones.
func (l *attributeList) Attributes() []*Attribute {
	return l.attributes
}

func (l *attributeList) wire() []map[string]any {
	var out []map[string]any
	for _, attr := range l.attributes {
		if !attr.Valid() {
			continue
		}
		out = append(out, attr.Wire())
	}
	return out
}
