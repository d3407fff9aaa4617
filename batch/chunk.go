package batch

import "github.com/poiesic/intelbatch/core"

// FileMeta is a file payload pulled out of a Document or Report group
// into a chunk's side channel.
type FileMeta struct {
	Content  core.FileContent
	FileName string
	Type     string
}

// Chunk is a bounded batch of entities assembled for one submission
// call, with file payloads separated into a side-channel map keyed by
// xid.
type Chunk struct {
	Groups       []map[string]any
	Indicators   []map[string]any
	Associations []map[string]any
	Files        map[string]FileMeta
}

// NewChunk creates an empty chunk.
func NewChunk() *Chunk {
	return &Chunk{Files: map[string]FileMeta{}}
}

// Empty reports whether the chunk carries nothing to submit.
func (c *Chunk) Empty() bool {
	return len(c.Groups) == 0 && len(c.Indicators) == 0 && len(c.Associations) == 0
}

// EntityCount returns the number of groups and indicators.
func (c *Chunk) EntityCount() int {
	return len(c.Groups) + len(c.Indicators)
}

// Wire returns the submission payload.
func (c *Chunk) Wire() map[string]any {
	groups := c.Groups
	if groups == nil {
		groups = []map[string]any{}
	}
	indicators := c.Indicators
	if indicators == nil {
		indicators = []map[string]any{}
	}
	m := map[string]any{
		"group":     groups,
		"indicator": indicators,
	}
	if len(c.Associations) > 0 {
		m["association"] = c.Associations
	}
	return m
}

// Assembler drains a DedupStore into submission-ready chunks. An
// association-connected set of groups travels in one chunk when the
// entity cap allows; the cap may legitimately split a component, in
// which case the remainder resumes on the next call.
type Assembler struct {
	store *DedupStore
	max   int
}

// NewAssembler creates an assembler with a per-chunk entity cap.
func NewAssembler(store *DedupStore, maxEntities int) *Assembler {
	if maxEntities < 1 {
		maxEntities = 1
	}
	return &Assembler{store: store, max: maxEntities}
}

// Next assembles the next chunk. Draining order is in-memory groups,
// on-disk groups, in-memory indicators, on-disk indicators, stopping
// as soon as the entity cap is hit at any stage. Groups are drained by
// breadth-first traversal of the association graph rooted at each
// remaining top-level group; removal from the store doubles as the
// visited marker, so association cycles terminate. An empty chunk
// means the store is fully drained.
func (a *Assembler) Next() (*Chunk, error) {
	chunk := NewChunk()

	for chunk.EntityCount() < a.max {
		root, err := a.store.nextGroupXid()
		if err != nil {
			return chunk, err
		}
		if root == "" {
			break
		}

		queue := []string{root}
		for len(queue) > 0 && chunk.EntityCount() < a.max {
			xid := queue[0]
			queue = queue[1:]

			wire, file, found, err := a.store.takeGroup(xid)
			if err != nil {
				return chunk, err
			}
			if !found {
				// Already emitted or never known; either way the
				// association is resolved server-side by xid.
				continue
			}
			chunk.Groups = append(chunk.Groups, wire)
			if file != nil {
				chunk.Files[xid] = *file
			}
			queue = append(queue, associatedGroupXids(wire)...)
		}
	}

	for chunk.EntityCount() < a.max {
		wire, found, err := a.store.takeNextIndicator()
		if err != nil {
			return chunk, err
		}
		if !found {
			break
		}
		chunk.Indicators = append(chunk.Indicators, wire)
	}

	return chunk, nil
}

// associatedGroupXids reads the association list from a wire map,
// which holds []string for in-memory entities and []any after a JSON
// round trip through the disk tier.
func associatedGroupXids(m map[string]any) []string {
	switch v := m["associatedGroupXid"].(type) {
	case []string:
		return v
	case []any:
		xids := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				xids = append(xids, s)
			}
		}
		return xids
	}
	return nil
}
