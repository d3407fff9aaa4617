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

import (
	"fmt"
	"slices"
	"strings"
)

// Built-in indicator types.
const (
	IndicatorAddress      = "Address"
	IndicatorASN          = "ASN"
	IndicatorCIDR         = "CIDR"
	IndicatorEmailAddress = "EmailAddress"
	IndicatorFile         = "File"
	IndicatorHost         = "Host"
	IndicatorMutex        = "Mutex"
	IndicatorRegistryKey  = "Registry Key"
	IndicatorURL          = "URL"
	IndicatorUserAgent    = "User Agent"
)

// SummaryDelimiter joins the value components of a multi-value
// indicator summary.
const SummaryDelimiter = " : "

// coreTypes are the five indicator types whose create API accepts a
// combined summary; every other type requires explicit value fields.
var coreTypes = map[string]bool{
	IndicatorAddress:      true,
	IndicatorEmailAddress: true,
	IndicatorFile:         true,
	IndicatorHost:         true,
	IndicatorURL:          true,
}

// builtinValueLabels describes the value components of the built-in
// non-core indicator types.
var builtinValueLabels = map[string][]string{
	IndicatorASN:         {"AS Number"},
	IndicatorCIDR:        {"Block"},
	IndicatorMutex:       {"Mutex"},
	IndicatorRegistryKey: {"Key Name", "Value Name", "Value Type"},
	IndicatorUserAgent:   {"User Agent String"},
}

// BuildSummary joins non-empty value components with the summary
// delimiter.
func BuildSummary(values ...string) string {
	nonEmpty := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			nonEmpty = append(nonEmpty, v)
		}
	}
	return strings.Join(nonEmpty, SummaryDelimiter)
}

// SplitSummary splits a summary into up to three value components,
// exactly inverting BuildSummary for components without an embedded
// delimiter.
func SplitSummary(summary string) []string {
	return strings.SplitN(summary, SummaryDelimiter, 3)
}

// RegisteredType describes a custom indicator type: its name and the
// labels of its 1-3 value components.
type RegisteredType struct {
	Name        string
	ValueLabels []string
}

// Registry maps custom indicator type names to their value layout. It
// replaces per-type generated constructors with one generic entry
// point; a Registry is owned by the engine instance, never global.
type Registry struct {
	types map[string]RegisteredType
}

// NewRegistry creates an empty custom-type registry.
func NewRegistry() *Registry {
	return &Registry{types: map[string]RegisteredType{}}
}

// Register records a custom indicator type with 1-3 value labels.
func (r *Registry) Register(name string, valueLabels ...string) error {
	if len(valueLabels) < 1 || len(valueLabels) > 3 {
		return fmt.Errorf("%w: %s has %d", ErrInvalidValueLabels, name, len(valueLabels))
	}
	if _, ok := r.types[name]; ok {
		return fmt.Errorf("%w: %s", ErrTypeRegistered, name)
	}
	r.types[name] = RegisteredType{Name: name, ValueLabels: slices.Clone(valueLabels)}
	return nil
}

// Lookup returns the registered layout for a custom type name.
func (r *Registry) Lookup(name string) (RegisteredType, bool) {
	t, ok := r.types[name]
	return t, ok
}

// valueCount returns the expected number of value components for an
// indicator type, or 0 when the type is unknown.
func (r *Registry) valueCount(indicatorType string) int {
	if coreTypes[indicatorType] {
		if indicatorType == IndicatorFile {
			return 3
		}
		return 1
	}
	if labels, ok := builtinValueLabels[indicatorType]; ok {
		return len(labels)
	}
	if r != nil {
		if t, ok := r.types[indicatorType]; ok {
			return len(t.ValueLabels)
		}
	}
	return 0
}

// Indicator is an atomic observable entity. Its summary is derived
// from 1-3 value components joined by the summary delimiter.
type Indicator struct {
	attributeList
	tagList
	labelList

	indicatorType  string
	values         []string
	xid            string
	rating         *float64
	confidence     *int
	active         *bool
	private        *bool
	fields         map[string]any
	associatedXids []string
	occurrences    []*FileOccurrence
	actions        []*FileAction
}

// IndicatorOption configures an Indicator at construction.
type IndicatorOption func(*Indicator)

// WithIndicatorXid sets a caller-supplied xid.
func WithIndicatorXid(xid string) IndicatorOption {
	return func(in *Indicator) {
		if xid != "" {
			in.xid = xid
		}
	}
}

// WithRating sets the threat rating.
func WithRating(rating float64) IndicatorOption {
	return func(in *Indicator) { in.rating = &rating }
}

// WithConfidence sets the confidence percentage.
func WithConfidence(confidence int) IndicatorOption {
	return func(in *Indicator) { in.confidence = &confidence }
}

// WithActive sets the active flag.
func WithActive(active bool) IndicatorOption {
	return func(in *Indicator) { in.active = &active }
}

// WithPrivate sets the private flag.
func WithPrivate(private bool) IndicatorOption {
	return func(in *Indicator) { in.private = &private }
}

// WithIndicatorField sets an extra wire field.
func WithIndicatorField(key string, value any) IndicatorOption {
	return func(in *Indicator) { in.fields[key] = value }
}

// NewIndicator creates an indicator from a combined summary. For types
// other than the five core types the summary is split back into value
// components, because the create API for those types requires explicit
// value fields.
func NewIndicator(indicatorType, summary string, opts ...IndicatorOption) *Indicator {
	in := &Indicator{
		indicatorType: indicatorType,
		values:        SplitSummary(summary),
		xid:           RandomXid(),
		fields:        map[string]any{},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// NewIndicatorValues creates an indicator from explicit value
// components, validating the arity against the built-in layout or the
// registry for custom types.
func NewIndicatorValues(registry *Registry, indicatorType string, values []string, opts ...IndicatorOption) (*Indicator, error) {
	expected := registry.valueCount(indicatorType)
	if expected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndicatorType, indicatorType)
	}
	if len(values) < 1 || len(values) > expected {
		return nil, fmt.Errorf("%w: %s expects up to %d, got %d",
			ErrValueCount, indicatorType, expected, len(values))
	}
	in := &Indicator{
		indicatorType: indicatorType,
		values:        slices.Clone(values),
		xid:           RandomXid(),
		fields:        map[string]any{},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// Type returns the indicator type.
func (in *Indicator) Type() string { return in.indicatorType }

// Xid returns the external identifier.
func (in *Indicator) Xid() string { return in.xid }

// Summary returns the value components joined by the summary
// delimiter.
func (in *Indicator) Summary() string {
	return BuildSummary(in.values...)
}

// Values returns the value components.
func (in *Indicator) Values() []string {
	return in.values
}

// Attribute stages an attribute on the indicator per the unique
// policy.
func (in *Indicator) Attribute(attrType, value string, unique UniquePolicy) *Attribute {
	return in.attributeList.add(attrType, value, unique, false, "", nil)
}

// AttributeWithOptions stages an attribute with display flag, source
// and an optional value formatter.
func (in *Indicator) AttributeWithOptions(attrType, value string, unique UniquePolicy, displayed bool, source string, formatter func(string) string) *Attribute {
	return in.attributeList.add(attrType, value, unique, displayed, source, formatter)
}

// Tag stages a tag on the indicator.
func (in *Indicator) Tag(name string) *Tag {
	return in.tagList.add(name, nil)
}

// SecurityLabel stages a security label on the indicator.
func (in *Indicator) SecurityLabel(name, description, color string) *SecurityLabel {
	return in.labelList.add(name, description, color)
}

// AssociateGroup records an association to a group by xid.
func (in *Indicator) AssociateGroup(xid string) {
	if xid == "" || slices.Contains(in.associatedXids, xid) {
		return
	}
	in.associatedXids = append(in.associatedXids, xid)
}

// AssociatedXids returns the xids of associated groups.
func (in *Indicator) AssociatedXids() []string {
	return in.associatedXids
}

// Occurrence records a file occurrence (File indicators only). The
// date accepts any form NormalizeDate accepts; unparseable dates are
// dropped.
func (in *Indicator) Occurrence(fileName, path string, date any) *FileOccurrence {
	occurrence := &FileOccurrence{FileName: fileName, Path: path}
	if date != nil {
		if normalized, err := NormalizeDate(date); err == nil {
			occurrence.Date = normalized
		}
	}
	in.occurrences = append(in.occurrences, occurrence)
	return occurrence
}

// Action records a parent/child file action against another indicator
// (File indicators only).
func (in *Indicator) Action(relationship string, child *Indicator) *FileAction {
	action := &FileAction{Relationship: relationship, IndicatorXid: child.Xid()}
	in.actions = append(in.actions, action)
	return action
}

// Wire returns the camelCase wire representation. Core types carry a
// combined summary; all other types carry value1..value3 fields.
func (in *Indicator) Wire() map[string]any {
	m := map[string]any{
		"type": in.indicatorType,
		"xid":  in.xid,
	}
	if coreTypes[in.indicatorType] {
		m["summary"] = in.Summary()
	} else {
		for i, v := range in.values {
			if v == "" {
				continue
			}
			m[fmt.Sprintf("value%d", i+1)] = v
		}
	}
	if in.rating != nil {
		m["rating"] = *in.rating
	}
	if in.confidence != nil {
		m["confidence"] = *in.confidence
	}
	if in.active != nil {
		m["active"] = *in.active
	}
	if in.private != nil {
		m["privateFlag"] = *in.private
	}
	for k, v := range in.fields {
		m[k] = v
	}
	if attrs := in.attributeList.wire(); attrs != nil {
		m["attribute"] = attrs
	}
	if tags := in.tagList.wire(); tags != nil {
		m["tag"] = tags
	}
	if labels := in.labelList.wire(); labels != nil {
		m["securityLabel"] = labels
	}
	if len(in.associatedXids) > 0 {
		refs := make([]map[string]any, 0, len(in.associatedXids))
		for _, xid := range in.associatedXids {
			refs = append(refs, map[string]any{"groupXid": xid})
		}
		m["associatedGroups"] = refs
	}
	if len(in.occurrences) > 0 {
		occurrences := make([]map[string]any, 0, len(in.occurrences))
		for _, o := range in.occurrences {
			occurrences = append(occurrences, o.Wire())
		}
		m["fileOccurrence"] = occurrences
	}
	if len(in.actions) > 0 {
		children := make([]map[string]any, 0, len(in.actions))
		for _, a := range in.actions {
			children = append(children, a.Wire())
		}
		m["fileAction"] = map[string]any{"children": children}
	}
	return m
}
