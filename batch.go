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


package intelbatch

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/intelbatch/batch"
	"github.com/poiesic/intelbatch/client"
	"github.com/poiesic/intelbatch/core"
	"github.com/poiesic/intelbatch/storage/badger"
)

// Batch wires the disk-backed dedup store, the submission client, and
// the engine into one handle. It is the package's main entry point.
type Batch struct {
	backend *badger.Backend
	store   *batch.DedupStore
	engine  *batch.Engine
	dumper  *batch.Dumper
	logger  *slog.Logger
}

// Option configures a Batch.
type Option func(*options)

type options struct {
	storePath    string
	settings     *client.Settings
	chunkSize    int
	sizeBudget   int
	dumpDir      string
	progress     io.Writer
	clientConfig func(*client.Config)
}

// WithStorePath places the disk tier at the given directory instead of
// running memory-only.
func WithStorePath(path string) Option {
	return func(o *options) { o.storePath = path }
}

// WithSettings replaces the default job settings.
func WithSettings(settings client.Settings) Option {
	return func(o *options) { o.settings = &settings }
}

// WithChunkSize sets the entity ceiling per submitted chunk.
func WithChunkSize(max int) Option {
	return func(o *options) { o.chunkSize = max }
}

// WithSizeBudget sets the in-memory byte budget before staged entities
// spill into an immediate submission.
func WithSizeBudget(bytes int) Option {
	return func(o *options) { o.sizeBudget = bytes }
}

// WithDumpDir enables gzip snapshots of submitted chunks and returned
// error lists under the given directory.
func WithDumpDir(dir string) Option {
	return func(o *options) { o.dumpDir = dir }
}

// WithProgress reports per-chunk submission progress to the given
// writer during Submit, typically os.Stderr.
func WithProgress(w io.Writer) Option {
	return func(o *options) { o.progress = w }
}

// WithClientConfig adjusts the submission client config before it is
// validated, for custom HTTP clients, headers, or poll timeouts.
func WithClientConfig(fn func(*client.Config)) Option {
	return func(o *options) { o.clientConfig = fn }
}

// New creates a batch handle for the given platform address and owner.
func New(address, owner string, opts ...Option) (*Batch, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	config := client.Config{Address: address, Owner: owner}
	if o.clientConfig != nil {
		o.clientConfig(&config)
	}
	cl, err := client.New(config)
	if err != nil {
		return nil, err
	}

	// Open the disk tier, memory-only unless a path was given.
	backend, err := badger.OpenBackend(o.storePath, o.storePath == "")
	if err != nil {
		return nil, err
	}

	storeOpts := []batch.StoreOption{}
	if o.sizeBudget > 0 {
		storeOpts = append(storeOpts, batch.WithSizeBudget(o.sizeBudget))
	}
	store, err := batch.NewDedupStore(backend, storeOpts...)
	if err != nil {
		backend.Close()
		return nil, err
	}

	engineOpts := []batch.EngineOption{}
	if o.settings != nil {
		engineOpts = append(engineOpts, batch.WithSettings(*o.settings))
	}
	if o.chunkSize > 0 {
		engineOpts = append(engineOpts, batch.WithChunkSize(o.chunkSize))
	}
	if o.progress != nil {
		engineOpts = append(engineOpts, batch.WithProgress(batch.NewProgressTracker(o.progress, 0)))
	}
	var dumper *batch.Dumper
	if o.dumpDir != "" {
		dumper, err = batch.NewDumper(o.dumpDir)
		if err != nil {
			backend.Close()
			return nil, err
		}
		engineOpts = append(engineOpts, batch.WithDumper(dumper))
	}

	engine, err := batch.NewEngine(store, cl, engineOpts...)
	if err != nil {
		if dumper != nil {
			dumper.Close()
		}
		backend.Close()
		return nil, err
	}

	return &Batch{
		backend: backend,
		store:   store,
		engine:  engine,
		dumper:  dumper,
		logger:  slog.Default(),
	}, nil
}

// Group stages a group entity, deduplicating by xid.
func (b *Batch) Group(groupType, name string, opts ...core.GroupOption) (*core.Group, error) {
	return b.engine.Group(groupType, name, opts...)
}

// Indicator stages an indicator built from a delimited summary.
func (b *Batch) Indicator(indicatorType, summary string, opts ...core.IndicatorOption) (*core.Indicator, error) {
	return b.engine.Indicator(indicatorType, summary, opts...)
}

// IndicatorValues stages an indicator built from discrete values,
// validated against the custom type registry.
func (b *Batch) IndicatorValues(indicatorType string, values []string, opts ...core.IndicatorOption) (*core.Indicator, error) {
	return b.engine.IndicatorValues(indicatorType, values, opts...)
}

// Associate stages an order-independent association between two
// targets.
func (b *Batch) Associate(associationType string, x, y core.AssociationTarget) {
	b.engine.Associate(associationType, x, y)
}

// Registry exposes the custom indicator type registry.
func (b *Batch) Registry() *core.Registry {
	return b.engine.Registry()
}

// Persist moves a staged entity to the disk tier.
func (b *Batch) Persist(xid string) error {
	return b.engine.Persist(xid)
}

// Submit drains every staged entity and association to the platform.
func (b *Batch) Submit(ctx context.Context) error {
	return b.engine.Submit(ctx)
}

// Statuses returns the final job status of every submitted chunk.
func (b *Batch) Statuses() []*client.BatchStatus {
	return b.engine.Statuses()
}

// Close flushes pending dump writes and releases the dedup store and
// its disk tier.
func (b *Batch) Close() error {
	if b.dumper != nil {
		b.dumper.Close()
	}
	if err := b.store.Close(); err != nil {
		b.logger.Error("error closing dedup store", "err", err)
		return err
	}
	return nil
}
