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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/panjf2000/ants/v2"
)

// Dumper writes gzip-compressed JSON snapshots of submitted chunks and
// returned error lists to a directory, off the submission path. Writes
// run on a single-worker pool so submission never blocks on disk.
type Dumper struct {
	dir     string
	pool    *ants.Pool
	wg      sync.WaitGroup
	logger  *slog.Logger
	onWrite func(path string)
}

// DumperOption configures a Dumper.
type DumperOption func(*Dumper)

// WithDumpLogger sets a custom logger.
func WithDumpLogger(logger *slog.Logger) DumperOption {
	return func(d *Dumper) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// withWriteHook registers a callback invoked after each completed
// write. Used by tests to synchronize on the async pool.
func withWriteHook(fn func(path string)) DumperOption {
	return func(d *Dumper) { d.onWrite = fn }
}

// NewDumper creates a dumper rooted at dir, creating it if needed.
func NewDumper(dir string, opts ...DumperOption) (*Dumper, error) {
	if dir == "" {
		return nil, ErrDumpDirRequired
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}
	d := &Dumper{dir: dir, pool: pool, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// DumpChunk queues a snapshot of the chunk's wire payload.
func (d *Dumper) DumpChunk(chunk *Chunk) {
	name := fmt.Sprintf("chunk-%d.json.gz", time.Now().UnixNano())
	d.enqueue(name, chunk.Wire())
}

// DumpErrors queues a snapshot of a job's error list.
func (d *Dumper) DumpErrors(jobID int, batchErrors any) {
	name := fmt.Sprintf("errors-%d-%d.json.gz", jobID, time.Now().UnixNano())
	d.enqueue(name, batchErrors)
}

func (d *Dumper) enqueue(name string, payload any) {
	path := filepath.Join(d.dir, name)
	d.wg.Add(1)
	err := d.pool.Submit(func() {
		defer d.wg.Done()
		if err := d.write(path, payload); err != nil {
			d.logger.Warn("dump write failed", "path", path, "err", err)
			return
		}
		if d.onWrite != nil {
			d.onWrite(path)
		}
	})
	if err != nil {
		d.wg.Done()
		d.logger.Warn("dump submit failed", "path", path, "err", err)
	}
}

func (d *Dumper) write(path string, payload any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(payload); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Close waits for queued writes to finish and releases the pool.
func (d *Dumper) Close() {
	d.wg.Wait()
	d.pool.Release()
}
