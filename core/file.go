package core

// FileContent holds attachment content for a Document or Report group:
// either raw bytes, or a producer invoked with the entity's xid at
// upload time. The indirection lets callers defer
// expensive file generation until the batch has actually been accepted.
type FileContent struct {
	data []byte
	fn   func(xid string) []byte
}

// Bytes wraps raw file content.
func Bytes(data []byte) FileContent {
	return FileContent{data: data}
}

// Deferred wraps a callback that produces file content on demand.
func Deferred(fn func(xid string) []byte) FileContent {
	return FileContent{fn: fn}
}

// IsZero reports whether no content or producer was set.
func (c FileContent) IsZero() bool {
	return c.data == nil && c.fn == nil
}

// Deferred reports whether the content is produced by a callback.
func (c FileContent) Deferred() bool {
	return c.fn != nil
}

// Resolve returns the file bytes, invoking the producer with xid when
// the content is deferred. May return nil.
func (c FileContent) Resolve(xid string) []byte {
	if c.fn != nil {
		return c.fn(xid)
	}
	return c.data
}

// FileOccurrence records where a File indicator was observed.
type FileOccurrence struct {
	FileName string
	Path     string
	Date     string // wire format, normalized at construction
}

// Wire returns the wire representation.
func (o *FileOccurrence) Wire() map[string]any {
	m := map[string]any{}
	if o.FileName != "" {
		m["fileName"] = o.FileName
	}
	if o.Path != "" {
		m["path"] = o.Path
	}
	if o.Date != "" {
		m["date"] = o.Date
	}
	return m
}

// FileAction records a parent/child relationship between a File
// indicator and another indicator (e.g. drop, traffic, archive).
type FileAction struct {
	Relationship string
	IndicatorXid string
	Children     []*FileAction
}

// Action adds a nested child action and returns it.
func (a *FileAction) Action(relationship string, child *Indicator) *FileAction {
	fa := &FileAction{Relationship: relationship, IndicatorXid: child.Xid()}
	a.Children = append(a.Children, fa)
	return fa
}

// Wire returns the wire representation.
func (a *FileAction) Wire() map[string]any {
	m := map[string]any{
		"relationship": a.Relationship,
		"indicatorXid": a.IndicatorXid,
	}
	if len(a.Children) > 0 {
		children := make([]map[string]any, 0, len(a.Children))
		for _, child := range a.Children {
			children = append(children, child.Wire())
		}
		m["children"] = children
	}
	return m
}
