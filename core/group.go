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

import "slices"

// Built-in group types.
const (
	GroupAdversary    = "Adversary"
	GroupCampaign     = "Campaign"
	GroupDocument     = "Document"
	GroupEmail        = "Email"
	GroupEvent        = "Event"
	GroupIncident     = "Incident"
	GroupIntrusionSet = "Intrusion Set"
	GroupReport       = "Report"
	GroupSignature    = "Signature"
	GroupThreat       = "Threat"
)

// groupFieldNames maps snake_case constructor keys to their camelCase
// wire names. Keys not in the table pass through unchanged.
var groupFieldNames = map[string]string{
	"file_name":       "fileName",
	"file_type":       "fileType",
	"file_text":       "fileText",
	"malware":         "malware",
	"password":        "password",
	"subject":         "subject",
	"header":          "header",
	"body":            "body",
	"from_addr":       "from",
	"to_addr":         "to",
	"score":           "score",
	"event_date":      "eventDate",
	"status":          "status",
	"first_seen":      "firstSeen",
	"publish_date":    "publishDate",
	"due_date":        "dueDate",
	"reminder_date":   "reminderDate",
	"escalation_date": "escalationDate",
}

// groupDateFields are wire fields whose values are normalized to the
// wire date format on assignment.
var groupDateFields = map[string]bool{
	"eventDate":      true,
	"firstSeen":      true,
	"publishDate":    true,
	"dueDate":        true,
	"reminderDate":   true,
	"escalationDate": true,
}

// Group is a container intel entity (Adversary, Campaign, Document,
// Email, ...). A Group is identified by its xid; two groups with the
// same xid are the same logical entity.
type Group struct {
	attributeList
	tagList
	labelList

	groupType      string
	name           string
	xid            string
	fields         map[string]any
	associatedXids []string
	fileContent    FileContent
}

// GroupOption configures a Group at construction.
type GroupOption func(*Group)

// WithXid sets a caller-supplied xid.
func WithXid(xid string) GroupOption {
	return func(g *Group) {
		if xid != "" {
			g.xid = xid
		}
	}
}

// WithField sets a type-specific scalar field. Snake_case keys are
// mapped to camelCase wire names; unknown keys pass through unchanged.
func WithField(key string, value any) GroupOption {
	return func(g *Group) {
		g.SetField(key, value)
	}
}

// WithFileContent attaches file content to a Document or Report group.
func WithFileContent(content FileContent) GroupOption {
	return func(g *Group) {
		g.fileContent = content
	}
}

// NewGroup creates a group of the given type. The xid defaults to a
// random UUID if not supplied via WithXid.
func NewGroup(groupType, name string, opts ...GroupOption) *Group {
	g := &Group{
		groupType: groupType,
		name:      name,
		xid:       RandomXid(),
		fields:    map[string]any{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Type returns the group type.
func (g *Group) Type() string { return g.groupType }

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Xid returns the external identifier.
func (g *Group) Xid() string { return g.xid }

// SetField sets a type-specific scalar field, mapping snake_case keys
// through the field-name table and normalizing date fields.
func (g *Group) SetField(key string, value any) {
	if mapped, ok := groupFieldNames[key]; ok {
		key = mapped
	}
	if groupDateFields[key] {
		if normalized, err := NormalizeDate(value); err == nil {
			value = normalized
		}
	}
	g.fields[key] = value
}

// Field returns a previously set field value.
func (g *Group) Field(key string) (any, bool) {
	if mapped, ok := groupFieldNames[key]; ok {
		key = mapped
	}
	v, ok := g.fields[key]
	return v, ok
}

// Attribute stages an attribute on the group per the unique policy.
func (g *Group) Attribute(attrType, value string, unique UniquePolicy) *Attribute {
	return g.attributeList.add(attrType, value, unique, false, "", nil)
}

// AttributeWithOptions stages an attribute with display flag, source
// and an optional value formatter.
func (g *Group) AttributeWithOptions(attrType, value string, unique UniquePolicy, displayed bool, source string, formatter func(string) string) *Attribute {
	return g.attributeList.add(attrType, value, unique, displayed, source, formatter)
}

// Tag stages a tag on the group, returning the existing tag when the
// name was already staged.
func (g *Group) Tag(name string) *Tag {
	return g.tagList.add(name, nil)
}

// TagWithFormatter stages a tag with a name formatter.
func (g *Group) TagWithFormatter(name string, formatter func(string) string) *Tag {
	return g.tagList.add(name, formatter)
}

// SecurityLabel stages a security label, mutating and returning the
// existing label when the name was already staged.
func (g *Group) SecurityLabel(name, description, color string) *SecurityLabel {
	return g.labelList.add(name, description, color)
}

// AssociateGroup records an association to another group by xid.
func (g *Group) AssociateGroup(xid string) {
	if xid == "" || slices.Contains(g.associatedXids, xid) {
		return
	}
	g.associatedXids = append(g.associatedXids, xid)
}

// AssociatedXids returns the xids of associated groups.
func (g *Group) AssociatedXids() []string {
	return g.associatedXids
}

// SetFileContent attaches file content after construction.
func (g *Group) SetFileContent(content FileContent) {
	g.fileContent = content
}

// FileContent returns the attached file content, if any.
func (g *Group) FileContent() FileContent {
	return g.fileContent
}

// FileName returns the fileName field, if set.
func (g *Group) FileName() string {
	if v, ok := g.fields["fileName"].(string); ok {
		return v
	}
	return ""
}

// Wire returns the camelCase wire representation. Invalid attributes
// and tags are excluded. File content, when present as raw bytes, is
// carried under "fileContent" for the assembler to pull out; deferred
// content is exposed only through FileContent.
func (g *Group) Wire() map[string]any {
	m := map[string]any{
		"type": g.groupType,
		"name": g.name,
		"xid":  g.xid,
	}
	for k, v := range g.fields {
		m[k] = v
	}
	if attrs := g.attributeList.wire(); attrs != nil {
		m["attribute"] = attrs
	}
	if tags := g.tagList.wire(); tags != nil {
		m["tag"] = tags
	}
	if labels := g.labelList.wire(); labels != nil {
		m["securityLabel"] = labels
	}
	if len(g.associatedXids) > 0 {
		m["associatedGroupXid"] = slices.Clone(g.associatedXids)
	}
	if !g.fileContent.IsZero() && !g.fileContent.Deferred() {
		m["fileContent"] = string(g.fileContent.data)
	}
	return m
}
