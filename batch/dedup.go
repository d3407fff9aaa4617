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


package batch

import (
	"log/slog"
	"slices"

	"github.com/poiesic/intelbatch/core"
	"github.com/poiesic/intelbatch/storage"
)

const (
	groupBucket     = "group"
	indicatorBucket = "indicator"

	// defaultSizeBudget is the in-memory byte budget before a spill.
	defaultSizeBudget = 75 * 1024 * 1024
)

// DiskTier hands out the KV stores backing the dedup store's disk
// tier and owns their lifecycle. storage/badger.Backend implements it.
type DiskTier interface {
	KV(prefix string) storage.KV
	Close() error
	RemoveFiles() error
}

// SpillSink receives the full in-memory tier as a chunk when the size
// budget is exceeded. A spill is a forced drain, not an eviction: the
// sink typically submits the chunk immediately.
type SpillSink interface {
	SpillChunk(chunk *Chunk) error
}

// entity is the store-facing surface shared by Group and Indicator.
type entity interface {
	Xid() string
	Type() string
	Wire() map[string]any
}

// tier pairs the fast in-memory map with its disk overflow for one
// entity kind. A given xid lives in exactly one of the two at any
// time.
type tier struct {
	mem   map[string]entity
	order []string // insertion order of in-memory xids
	disk  storage.KV
}

func newTier(disk storage.KV) *tier {
	return &tier{mem: map[string]entity{}, disk: disk}
}

func (t *tier) put(e entity) {
	xid := e.Xid()
	if _, ok := t.mem[xid]; !ok {
		t.order = append(t.order, xid)
	}
	t.mem[xid] = e
}

func (t *tier) remove(xid string) {
	delete(t.mem, xid)
	if i := slices.Index(t.order, xid); i >= 0 {
		t.order = slices.Delete(t.order, i, i+1)
	}
}

// DedupStore provides insert-if-absent semantics for Groups and
// Indicators keyed by xid, spilling through the sink once the
// in-memory size budget is exceeded. The store exclusively owns the
// entities handed to it; it is single-writer and not safe for
// concurrent mutation without external locking.
type DedupStore struct {
	groups     *tier
	indicators *tier

	// files parks file content for entities written to the disk tier;
	// deferred callbacks cannot survive serialization.
	files map[string]FileMeta

	disk         DiskTier
	sizeBudget   int
	pendingBytes int
	sink         SpillSink
	logger       *slog.Logger
}

// StoreOption configures a DedupStore.
type StoreOption func(*DedupStore)

// WithSizeBudget sets the in-memory byte budget that triggers a spill.
func WithSizeBudget(bytes int) StoreOption {
	return func(s *DedupStore) {
		if bytes > 0 {
			s.sizeBudget = bytes
		}
	}
}

// WithSpillSink sets the spill target. Without a sink, a spill falls
// back to persisting the in-memory tier to disk.
func WithSpillSink(sink SpillSink) StoreOption {
	return func(s *DedupStore) { s.sink = sink }
}

// WithStoreLogger sets a custom logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *DedupStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewDedupStore creates a dedup store over the given disk tier.
func NewDedupStore(disk DiskTier, opts ...StoreOption) (*DedupStore, error) {
	if disk == nil {
		return nil, ErrDiskTierRequired
	}
	s := &DedupStore{
		groups:     newTier(disk.KV(groupBucket)),
		indicators: newTier(disk.KV(indicatorBucket)),
		files:      map[string]FileMeta{},
		disk:       disk,
		sizeBudget: defaultSizeBudget,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetSpillSink wires the spill target after construction; the engine
// registers itself here.
func (s *DedupStore) SetSpillSink(sink SpillSink) {
	s.sink = sink
}

// UpsertGroup inserts a group if its xid is absent, otherwise returns
// the stored instance (first write wins). A disk-tier hit is
// rehydrated back into memory so the caller can keep staging
// attributes on the one live instance.
func (s *DedupStore) UpsertGroup(g *core.Group) (*core.Group, error) {
	if existing, ok := s.groups.mem[g.Xid()]; ok {
		return existing.(*core.Group), nil
	}
	wire, found, err := s.fromDisk(s.groups, g.Xid())
	if err != nil {
		return nil, err
	}
	if found {
		rehydrated := core.GroupFromWire(wire)
		if meta, ok := s.files[rehydrated.Xid()]; ok {
			rehydrated.SetFileContent(meta.Content)
			delete(s.files, rehydrated.Xid())
		}
		s.groups.put(rehydrated)
		return rehydrated, nil
	}
	s.groups.put(g)
	return g, s.account(g)
}

// UpsertIndicator inserts an indicator if its xid is absent, otherwise
// returns the stored instance (first write wins).
func (s *DedupStore) UpsertIndicator(in *core.Indicator) (*core.Indicator, error) {
	if existing, ok := s.indicators.mem[in.Xid()]; ok {
		return existing.(*core.Indicator), nil
	}
	wire, found, err := s.fromDisk(s.indicators, in.Xid())
	if err != nil {
		return nil, err
	}
	if found {
		rehydrated := core.IndicatorFromWire(wire)
		s.indicators.put(rehydrated)
		return rehydrated, nil
	}
	s.indicators.put(in)
	return in, s.account(in)
}

// fromDisk looks up an xid in a tier's disk store and, when present,
// removes it so the tiers stay disjoint.
func (s *DedupStore) fromDisk(t *tier, xid string) (map[string]any, bool, error) {
	data, found, err := t.disk.Get(xid)
	if err != nil || !found {
		return nil, false, err
	}
	wire, err := storage.UnmarshalWire(data)
	if err != nil {
		return nil, false, err
	}
	if err := t.disk.Delete(xid); err != nil {
		return nil, false, err
	}
	return wire, true, nil
}

func (s *DedupStore) account(e entity) error {
	size, err := storage.WireSize(e.Wire())
	if err != nil {
		s.logger.Warn("entity size not counted toward spill budget", "xid", e.Xid(), "err", err)
	}
	s.pendingBytes += size
	if s.sizeBudget > 0 && s.pendingBytes > s.sizeBudget {
		return s.Spill()
	}
	return nil
}

// Spill drains the entire in-memory tier for both kinds into a chunk
// and hands it to the sink; the running size counter resets to zero.
// Without a sink the chunk is persisted to the disk tier instead.
func (s *DedupStore) Spill() error {
	chunk := NewChunk()
	if err := s.drainMemory(chunk); err != nil {
		return err
	}
	s.pendingBytes = 0
	if chunk.Empty() && len(chunk.Files) == 0 {
		return nil
	}
	if s.sink != nil {
		s.logger.Debug("spilling in-memory tier to sink",
			"groups", len(chunk.Groups), "indicators", len(chunk.Indicators))
		return s.sink.SpillChunk(chunk)
	}
	s.logger.Debug("no spill sink configured, persisting in-memory tier to disk",
		"groups", len(chunk.Groups), "indicators", len(chunk.Indicators))
	return s.persistChunk(chunk)
}

// drainMemory moves every in-memory entity into the chunk, extracting
// file payloads into the side channel.
func (s *DedupStore) drainMemory(chunk *Chunk) error {
	for _, xid := range slices.Clone(s.groups.order) {
		wire, file, found, err := s.takeMemGroup(xid)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		chunk.Groups = append(chunk.Groups, wire)
		if file != nil {
			chunk.Files[xid] = *file
		}
	}
	for _, xid := range slices.Clone(s.indicators.order) {
		in, ok := s.indicators.mem[xid]
		if !ok {
			continue
		}
		s.indicators.remove(xid)
		chunk.Indicators = append(chunk.Indicators, in.Wire())
	}
	return nil
}

// persistChunk writes a drained chunk back into the disk tier, parking
// file content in memory.
func (s *DedupStore) persistChunk(chunk *Chunk) error {
	for _, wire := range chunk.Groups {
		xid, _ := wire["xid"].(string)
		data, err := storage.MarshalWire(wire)
		if err != nil {
			return err
		}
		if err := s.groups.disk.Put(xid, data); err != nil {
			return err
		}
	}
	for _, wire := range chunk.Indicators {
		xid, _ := wire["xid"].(string)
		data, err := storage.MarshalWire(wire)
		if err != nil {
			return err
		}
		if err := s.indicators.disk.Put(xid, data); err != nil {
			return err
		}
	}
	for xid, meta := range chunk.Files {
		s.files[xid] = meta
	}
	return nil
}

// Persist explicitly moves one in-memory entity into the disk tier,
// best-effort: if the disk write fails the entity stays accessible in
// memory. File content is parked rather than serialized.
func (s *DedupStore) Persist(xid string) error {
	if g, ok := s.groups.mem[xid]; ok {
		wire, file, _, err := s.takeMemGroup(xid)
		if err != nil {
			return err
		}
		data, err := storage.MarshalWire(wire)
		if err == nil {
			err = s.groups.disk.Put(xid, data)
		}
		if err != nil {
			// Roll back so the entity is not lost.
			s.groups.put(g)
			s.logger.Warn("persist failed, entity stays in memory", "xid", xid, "err", err)
			return err
		}
		if file != nil {
			s.files[xid] = *file
		}
		return nil
	}
	if in, ok := s.indicators.mem[xid]; ok {
		data, err := storage.MarshalWire(in.Wire())
		if err == nil {
			err = s.indicators.disk.Put(xid, data)
		}
		if err != nil {
			s.logger.Warn("persist failed, entity stays in memory", "xid", xid, "err", err)
			return err
		}
		s.indicators.remove(xid)
		return nil
	}
	return storage.ErrNotFound
}

// takeMemGroup removes an in-memory group and returns its wire map
// plus any file payload.
func (s *DedupStore) takeMemGroup(xid string) (map[string]any, *FileMeta, bool, error) {
	e, ok := s.groups.mem[xid]
	if !ok {
		return nil, nil, false, nil
	}
	s.groups.remove(xid)
	g := e.(*core.Group)
	wire := g.Wire()
	delete(wire, "fileContent")
	if fc := g.FileContent(); !fc.IsZero() {
		return wire, &FileMeta{Content: fc, FileName: g.FileName(), Type: g.Type()}, true, nil
	}
	return wire, nil, true, nil
}

// takeGroup removes a group from whichever tier holds it, in-memory
// first, and returns its wire map plus any file payload.
func (s *DedupStore) takeGroup(xid string) (map[string]any, *FileMeta, bool, error) {
	if wire, file, found, err := s.takeMemGroup(xid); found || err != nil {
		return wire, file, found, err
	}
	wire, found, err := s.fromDisk(s.groups, xid)
	if err != nil || !found {
		return nil, nil, false, err
	}
	if content, ok := wire["fileContent"].(string); ok {
		delete(wire, "fileContent")
		fileName, _ := wire["fileName"].(string)
		groupType, _ := wire["type"].(string)
		return wire, &FileMeta{Content: core.Bytes([]byte(content)), FileName: fileName, Type: groupType}, true, nil
	}
	if meta, ok := s.files[xid]; ok {
		delete(s.files, xid)
		return wire, &meta, true, nil
	}
	return wire, nil, true, nil
}

// nextGroupXid returns the next top-level group xid to root a
// traversal at: in-memory entities first, then disk overflow.
func (s *DedupStore) nextGroupXid() (string, error) {
	if len(s.groups.order) > 0 {
		return s.groups.order[0], nil
	}
	keys, err := s.groups.disk.Keys()
	if err != nil {
		return "", err
	}
	if len(keys) > 0 {
		return keys[0], nil
	}
	return "", nil
}

// takeNextIndicator removes and returns the next indicator, in-memory
// first, then disk.
func (s *DedupStore) takeNextIndicator() (map[string]any, bool, error) {
	if len(s.indicators.order) > 0 {
		xid := s.indicators.order[0]
		in := s.indicators.mem[xid]
		s.indicators.remove(xid)
		return in.Wire(), true, nil
	}
	keys, err := s.indicators.disk.Keys()
	if err != nil {
		return nil, false, err
	}
	if len(keys) == 0 {
		return nil, false, nil
	}
	return s.takeDiskIndicator(keys[0])
}

func (s *DedupStore) takeDiskIndicator(xid string) (map[string]any, bool, error) {
	wire, found, err := s.fromDisk(s.indicators, xid)
	return wire, found, err
}

// GroupCount returns the number of groups across both tiers.
func (s *DedupStore) GroupCount() (int, error) {
	onDisk, err := s.groups.disk.Len()
	if err != nil {
		return 0, err
	}
	return len(s.groups.mem) + onDisk, nil
}

// IndicatorCount returns the number of indicators across both tiers.
func (s *DedupStore) IndicatorCount() (int, error) {
	onDisk, err := s.indicators.disk.Len()
	if err != nil {
		return 0, err
	}
	return len(s.indicators.mem) + onDisk, nil
}

// Close closes the disk tier and removes its backing files. Removal
// failure is logged, not fatal.
func (s *DedupStore) Close() error {
	if err := s.disk.Close(); err != nil {
		return err
	}
	if err := s.disk.RemoveFiles(); err != nil {
		s.logger.Warn("failed removing disk tier files", "err", err)
	}
	return nil
}
