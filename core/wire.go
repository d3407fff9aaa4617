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

// Rehydration of entities from wire maps read back from the disk tier.
// JSON round-trips produce map[string]any with []any lists and float64
// numbers; these constructors accept that shape.

func wireString(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func wireMaps(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func wireStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// subObjectKeys are wire keys handled structurally during rehydration
// rather than copied as scalar fields.
var subObjectKeys = map[string]bool{
	"type":               true,
	"name":               true,
	"xid":                true,
	"attribute":          true,
	"tag":                true,
	"securityLabel":      true,
	"associatedGroupXid": true,
	"fileContent":        true,
}

// GroupFromWire reconstructs a Group from its wire map. Attributes,
// tags and labels become live sub-objects so the rehydrated instance
// can still be mutated before the final drain.
func GroupFromWire(m map[string]any) *Group {
	g := NewGroup(wireString(m, "type"), wireString(m, "name"), WithXid(wireString(m, "xid")))
	for k, v := range m {
		if subObjectKeys[k] {
			continue
		}
		g.fields[k] = v
	}
	for _, attr := range wireMaps(m["attribute"]) {
		displayed, _ := attr["displayed"].(bool)
		g.attributeList.add(wireString(attr, "type"), wireString(attr, "value"),
			UniqueAppend, displayed, wireString(attr, "source"), nil)
	}
	for _, tag := range wireMaps(m["tag"]) {
		g.tagList.add(wireString(tag, "name"), nil)
	}
	for _, label := range wireMaps(m["securityLabel"]) {
		g.labelList.add(wireString(label, "name"), wireString(label, "description"), wireString(label, "color"))
	}
	g.associatedXids = wireStrings(m["associatedGroupXid"])
	if content := wireString(m, "fileContent"); content != "" {
		g.fileContent = Bytes([]byte(content))
	}
	return g
}

// IndicatorFromWire reconstructs an Indicator from its wire map.
func IndicatorFromWire(m map[string]any) *Indicator {
	in := &Indicator{
		indicatorType: wireString(m, "type"),
		xid:           wireString(m, "xid"),
		fields:        map[string]any{},
	}
	if in.xid == "" {
		in.xid = RandomXid()
	}
	if summary, ok := m["summary"].(string); ok {
		in.values = SplitSummary(summary)
	} else {
		for _, key := range []string{"value1", "value2", "value3"} {
			if v, ok := m[key].(string); ok {
				in.values = append(in.values, v)
			}
		}
	}
	if rating, ok := m["rating"].(float64); ok {
		in.rating = &rating
	}
	if confidence, ok := m["confidence"].(float64); ok {
		c := int(confidence)
		in.confidence = &c
	}
	if active, ok := m["active"].(bool); ok {
		in.active = &active
	}
	if private, ok := m["privateFlag"].(bool); ok {
		in.private = &private
	}
	for k, v := range m {
		switch k {
		case "type", "xid", "summary", "value1", "value2", "value3",
			"rating", "confidence", "active", "privateFlag",
			"attribute", "tag", "securityLabel", "associatedGroups",
			"fileOccurrence", "fileAction":
			continue
		}
		in.fields[k] = v
	}
	for _, attr := range wireMaps(m["attribute"]) {
		displayed, _ := attr["displayed"].(bool)
		in.attributeList.add(wireString(attr, "type"), wireString(attr, "value"),
			UniqueAppend, displayed, wireString(attr, "source"), nil)
	}
	for _, tag := range wireMaps(m["tag"]) {
		in.tagList.add(wireString(tag, "name"), nil)
	}
	for _, label := range wireMaps(m["securityLabel"]) {
		in.labelList.add(wireString(label, "name"), wireString(label, "description"), wireString(label, "color"))
	}
	for _, ref := range wireMaps(m["associatedGroups"]) {
		in.AssociateGroup(wireString(ref, "groupXid"))
	}
	for _, occ := range wireMaps(m["fileOccurrence"]) {
		in.occurrences = append(in.occurrences, &FileOccurrence{
			FileName: wireString(occ, "fileName"),
			Path:     wireString(occ, "path"),
			Date:     wireString(occ, "date"),
		})
	}
	if fa, ok := m["fileAction"].(map[string]any); ok {
		for _, child := range wireMaps(fa["children"]) {
			in.actions = append(in.actions, fileActionFromWire(child))
		}
	}
	return in
}

func fileActionFromWire(m map[string]any) *FileAction {
	action := &FileAction{
		Relationship: wireString(m, "relationship"),
		IndicatorXid: wireString(m, "indicatorXid"),
	}
	for _, child := range wireMaps(m["children"]) {
		action.Children = append(action.Children, fileActionFromWire(child))
	}
	return action
}
