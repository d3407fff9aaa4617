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
	"context"
	"log/slog"

	"github.com/poiesic/intelbatch/client"
	"github.com/poiesic/intelbatch/core"
)

// defaultChunkEntities is the entity ceiling per submitted chunk.
const defaultChunkEntities = 1000

// Engine stages entities through the dedup store, assembles
// association-aware chunks, and drives them through the submission
// client: submit, poll, retrieve errors, upload files. It is the
// store's spill sink, so exceeding the in-memory budget mid-staging
// submits a chunk immediately.
type Engine struct {
	store    *DedupStore
	client   *client.Client
	settings client.Settings
	registry *core.Registry

	associations map[string]core.Association
	assocOrder   []string

	chunkMax int
	dumper   *Dumper
	progress *ProgressTracker
	logger   *slog.Logger
	baseCtx  context.Context

	statuses []*client.BatchStatus
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSettings replaces the default job settings.
func WithSettings(settings client.Settings) EngineOption {
	return func(e *Engine) { e.settings = settings }
}

// WithChunkSize sets the entity ceiling per submitted chunk.
func WithChunkSize(max int) EngineOption {
	return func(e *Engine) {
		if max > 0 {
			e.chunkMax = max
		}
	}
}

// WithDumper enables chunk and error snapshots.
func WithDumper(d *Dumper) EngineOption {
	return func(e *Engine) { e.dumper = d }
}

// WithProgress enables progress reporting during Submit.
func WithProgress(p *ProgressTracker) EngineOption {
	return func(e *Engine) { e.progress = p }
}

// WithEngineLogger sets a custom logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine over a dedup store and a submission
// client, and registers itself as the store's spill sink.
func NewEngine(store *DedupStore, cl *client.Client, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if cl == nil {
		return nil, ErrClientRequired
	}
	e := &Engine{
		store:        store,
		client:       cl,
		settings:     client.DefaultSettings(cl.Owner()),
		registry:     core.NewRegistry(),
		associations: map[string]core.Association{},
		chunkMax:     defaultChunkEntities,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	store.SetSpillSink(e)
	return e, nil
}

// Registry exposes the custom indicator type registry.
func (e *Engine) Registry() *core.Registry {
	return e.registry
}

// Group stages a group, deduplicating by xid. A second call with the
// same xid returns the already staged instance.
func (e *Engine) Group(groupType, name string, opts ...core.GroupOption) (*core.Group, error) {
	return e.store.UpsertGroup(core.NewGroup(groupType, name, opts...))
}

// Indicator stages an indicator built from a delimited summary.
func (e *Engine) Indicator(indicatorType, summary string, opts ...core.IndicatorOption) (*core.Indicator, error) {
	return e.store.UpsertIndicator(core.NewIndicator(indicatorType, summary, opts...))
}

// IndicatorValues stages an indicator built from discrete values,
// validated against the type registry.
func (e *Engine) IndicatorValues(indicatorType string, values []string, opts ...core.IndicatorOption) (*core.Indicator, error) {
	in, err := core.NewIndicatorValues(e.registry, indicatorType, values, opts...)
	if err != nil {
		return nil, err
	}
	return e.store.UpsertIndicator(in)
}

// Associate stages a cross-reference association between two targets.
// The pair is order-independent; re-adding an equivalent association
// is a no-op.
func (e *Engine) Associate(associationType string, a, b core.AssociationTarget) {
	assoc := core.NewAssociation(associationType, a, b)
	key := assoc.Key()
	if _, ok := e.associations[key]; ok {
		return
	}
	e.associations[key] = assoc
	e.assocOrder = append(e.assocOrder, key)
}

// AssociationCount returns the number of staged associations.
func (e *Engine) AssociationCount() int {
	return len(e.assocOrder)
}

// Persist moves a staged entity to the disk tier; see DedupStore.Persist.
func (e *Engine) Persist(xid string) error {
	return e.store.Persist(xid)
}

// SpillChunk submits a spilled chunk immediately. Implements
// SpillSink. Spills raised while Submit is draining inherit its
// context; spills during staging run without a deadline.
func (e *Engine) SpillChunk(chunk *Chunk) error {
	ctx := e.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	return e.submitChunk(ctx, chunk)
}

// Statuses returns the final job status of every chunk processed so
// far, in submission order.
func (e *Engine) Statuses() []*client.BatchStatus {
	return e.statuses
}

// Submit drains every staged entity and association through the
// chunked submission pipeline. Per-chunk errors are routed through the
// halt-on-error setting; always-fatal conditions abort regardless.
func (e *Engine) Submit(ctx context.Context) error {
	e.baseCtx = ctx
	defer func() { e.baseCtx = nil }()

	if e.progress != nil {
		total, err := e.entityTotal()
		if err != nil {
			return err
		}
		e.progress.total = total
		e.progress.Start()
		defer e.progress.Finish()
	}

	assembler := NewAssembler(e.store, e.chunkMax)
	for {
		chunk, err := assembler.Next()
		if err != nil {
			return err
		}
		e.attachAssociations(chunk)
		if chunk.Empty() {
			return nil
		}
		if err := e.submitChunk(ctx, chunk); err != nil {
			if handled := client.HandleError(e.logger, err, e.settings.HaltOnError); handled != nil {
				return handled
			}
		}
		if e.progress != nil {
			e.progress.ChunkSubmitted(chunk.EntityCount())
		}
	}
}

// attachAssociations drains all staged associations into the chunk.
// Associations reference entities by xid, so they need not travel with
// the chunk that carries their endpoints.
func (e *Engine) attachAssociations(chunk *Chunk) {
	if len(e.assocOrder) == 0 {
		return
	}
	for _, key := range e.assocOrder {
		chunk.Associations = append(chunk.Associations, e.associations[key].Wire())
	}
	e.associations = map[string]core.Association{}
	e.assocOrder = nil
}

// submitChunk runs one chunk through submit, poll, error retrieval,
// and file upload.
func (e *Engine) submitChunk(ctx context.Context, chunk *Chunk) error {
	if e.dumper != nil {
		e.dumper.DumpChunk(chunk)
	}

	e.logger.Info("submitting batch chunk",
		"groups", len(chunk.Groups),
		"indicators", len(chunk.Indicators),
		"associations", len(chunk.Associations),
		"files", len(chunk.Files))

	status, err := e.client.SubmitJob(ctx, e.settings, chunk.Wire())
	if err != nil {
		return err
	}
	if !status.Completed() && status.ID != 0 {
		status, err = e.client.PollStatus(ctx, status.ID, chunk.EntityCount())
		if err != nil {
			return err
		}
	}

	e.statuses = append(e.statuses, status)
	e.logger.Info("batch chunk processed",
		"jobID", status.ID,
		"successCount", status.SuccessCount,
		"errorCount", status.ErrorCount)

	if status.ErrorCount > 0 && status.ID != 0 {
		batchErrors, err := e.client.BatchErrors(ctx, status.ID)
		if e.dumper != nil && len(batchErrors) > 0 {
			e.dumper.DumpErrors(status.ID, batchErrors)
		}
		for _, be := range batchErrors {
			e.logger.Warn("batch entity error",
				"jobID", status.ID, "reason", be.ErrorReason, "source", be.ErrorSource)
		}
		if err != nil {
			return err
		}
	}

	return e.uploadFiles(ctx, chunk)
}

// uploadFiles streams the chunk's attachment payloads after the
// entities were accepted.
func (e *Engine) uploadFiles(ctx context.Context, chunk *Chunk) error {
	if len(chunk.Files) == 0 {
		return nil
	}
	uploads := make([]client.FileUpload, 0, len(chunk.Files))
	for xid, meta := range chunk.Files {
		uploads = append(uploads, client.FileUpload{
			Xid:      xid,
			Type:     meta.Type,
			FileName: meta.FileName,
			Content:  meta.Content.Resolve,
		})
	}
	_, err := e.client.UploadFiles(ctx, uploads, e.settings.HaltOnFileError)
	return err
}

func (e *Engine) entityTotal() (int, error) {
	groups, err := e.store.GroupCount()
	if err != nil {
		return 0, err
	}
	indicators, err := e.store.IndicatorCount()
	if err != nil {
		return 0, err
	}
	return groups + indicators, nil
}
