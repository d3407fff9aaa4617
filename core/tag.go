package core

// Tag is a named marker attached to a Group or Indicator. Tags with an
// empty name are kept in memory but excluded from wire output.
type Tag struct {
	Name string
}

// NewTag creates a tag. If formatter is non-nil it transforms the name
// before storage.
func NewTag(name string, formatter func(string) string) *Tag {
	if formatter != nil {
		name = formatter(name)
	}
	return &Tag{Name: name}
}

// Valid reports whether the tag carries a non-empty name.
func (t *Tag) Valid() bool {
	return t.Name != ""
}

// Wire returns the wire representation.
func (t *Tag) Wire() map[string]any {
	return map[string]any{"name": t.Name}
}

// SecurityLabel is a named classification marker. Identity is the
// label name; re-adding a label with the same name returns the
// existing instance.
type SecurityLabel struct {
	Name        string
	Description string
	Color       string
}

// Wire returns the wire representation.
func (l *SecurityLabel) Wire() map[string]any {
	m := map[string]any{"name": l.Name}
	if l.Description != "" {
		m["description"] = l.Description
	}
	if l.Color != "" {
		m["color"] = l.Color
	}
	return m
}

// tagList holds staged tags with identity by name.
type tagList struct {
	tags []*Tag
}

func (l *tagList) add(name string, formatter func(string) string) *Tag {
	tag := NewTag(name, formatter)
	for _, existing := range l.tags {
		if existing.Name == tag.Name {
			return existing
		}
	}
	l.tags = append(l.tags, tag)
	return tag
}

// Tags returns all staged tags.
func (l *tagList) Tags() []*Tag {
	return l.tags
}

func (l *tagList) wire() []map[string]any {
	var out []map[string]any
	for _, tag := range l.tags {
		if !tag.Valid() {
			continue
		}
		out = append(out, tag.Wire())
	}
	return out
}

// labelList holds staged security labels with identity by name.
// Re-invocation with an existing name mutates and returns the existing
// label instead of creating a new one.
type labelList struct {
	labels []*SecurityLabel
}

func (l *labelList) add(name, description, color string) *SecurityLabel {
	for _, existing := range l.labels {
		if existing.Name == name {
			if description != "" {
				existing.Description = description
			}
			if color != "" {
				existing.Color = color
			}
			return existing
		}
	}
	label := &SecurityLabel{Name: name, Description: description, Color: color}
	l.labels = append(l.labels, label)
	return label
}

// SecurityLabels returns all staged labels.
func (l *labelList) SecurityLabels() []*SecurityLabel {
	return l.labels
}

func (l *labelList) wire() []map[string]any {
	var out []map[string]any
	for _, label := range l.labels {
		if label.Name == "" {
			continue
		}
		out = append(out, label.Wire())
	}
	return out
}
