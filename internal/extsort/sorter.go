// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.


// Package extsort sorts row streams that may not fit in memory.
//
// Rows are collected into chunks of at most the in-memory limit. Each full
// chunk is stable-sorted and spilled to a private temporary file; the last
// chunk stays in memory. A balanced binary merge tree over all chunks then
// produces the sorted sequence lazily. Inputs that fit in one chunk never
// touch the disk.
//
// Spill files are deleted as soon as their last row is read, or on Close.
// Each one is also recorded in a TempRegistry so that a process exiting
// early can remove whatever is left.
package extsort

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/flattable/internal/idgen"
	"github.com/cardinalhq/flattable/internal/spillers"
	"github.com/cardinalhq/flattable/pipeline"
)

// Stats describes how a sort was carried out.
type Stats struct {
	Rows          int64
	Chunks        int
	SpilledChunks int
	SpilledBytes  int64
}

// SortedReader returns the rows of a sorted input in order.
type SortedReader struct {
	input  pipeline.Reader
	root   *source
	stats  Stats
	err    error
	closed bool
}

var _ pipeline.Reader = (*SortedReader)(nil)

// spillSlot receives the result of one spill task. Slots are appended in
// input order so the merge set keeps chunk order.
type spillSlot struct {
	file *spillers.SpillFile
}

type sortRun struct {
	opts   options
	cmp    pipeline.Comparator
	prefix string

	group *errgroup.Group
	slots []*spillSlot
	mu    sync.Mutex
	stats Stats
}

// Sort consumes input and returns a reader over its rows ordered by cmp.
// Configuration errors are returned before input is read. On success the
// returned reader owns input and closes it on Close; on error the caller
// still owns it.
func Sort(ctx context.Context, input pipeline.Reader, cmp pipeline.Comparator, opts ...Option) (*SortedReader, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: sort input is nil", pipeline.ErrInvalidConfig)
	}
	if cmp == nil {
		return nil, fmt.Errorf("%w: sort comparator is nil", pipeline.ErrInvalidConfig)
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	tracer := otel.Tracer("github.com/cardinalhq/flattable/internal/extsort")
	ctx, span := tracer.Start(ctx, "extsort.Sort", trace.WithAttributes(
		attribute.Int("inMemoryLimit", o.limit),
		attribute.Int("spillConcurrency", o.concurrency),
	))
	defer span.End()

	run := &sortRun{
		opts:   o,
		cmp:    cmp,
		prefix: "flattable-" + idgen.NextBase32ID(),
	}
	groupCtx := ctx
	if o.concurrency > 1 {
		run.group, groupCtx = errgroup.WithContext(ctx)
		run.group.SetLimit(o.concurrency)
	}

	root, err := run.consume(groupCtx, input)
	if err != nil {
		run.abort()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("rows", run.stats.Rows),
		attribute.Int("chunks", run.stats.Chunks),
		attribute.Int("spilledChunks", run.stats.SpilledChunks),
		attribute.Int64("spilledBytes", run.stats.SpilledBytes),
	)

	rowsSortedCounter.Add(ctx, run.stats.Rows)
	slog.Debug("Sorted input",
		slog.String("prefix", run.prefix),
		slog.Int64("rows", run.stats.Rows),
		slog.Int("chunks", run.stats.Chunks),
		slog.Int("spilledChunks", run.stats.SpilledChunks))

	return &SortedReader{
		input: input,
		root:  root,
		stats: run.stats,
	}, nil
}

func (run *sortRun) consume(ctx context.Context, input pipeline.Reader) (*source, error) {
	limit := run.opts.limit
	buffer := make([]pipeline.Row, 0, min(limit, 1024))

	for {
		row, err := input.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, run.inputError(err)
		}

		if len(buffer) == limit {
			if err := run.spill(ctx, buffer); err != nil {
				return nil, err
			}
			buffer = make([]pipeline.Row, 0, limit)
		}
		buffer = append(buffer, row)
		run.stats.Rows++
	}

	if run.group != nil {
		if err := run.group.Wait(); err != nil {
			return nil, err
		}
	}

	slices.SortStableFunc(buffer, run.cmp)
	sources := make([]*source, 0, len(run.slots)+1)
	for _, slot := range run.slots {
		sources = append(sources, newDiskSource(run.opts.spiller, slot.file, run.opts.registry))
	}
	if len(buffer) > 0 {
		sources = append(sources, newMemorySource(buffer))
		run.stats.Chunks++
	}
	return buildMergeTree(sources, run.cmp), nil
}

// inputError waits for in-flight spills so that abort sees every file. A
// failed spill cancels the input's context, so its error wins.
func (run *sortRun) inputError(err error) error {
	if run.group != nil {
		if spillErr := run.group.Wait(); spillErr != nil {
			return spillErr
		}
	}
	return fmt.Errorf("failed to read sort input: %w", err)
}

// spill sorts chunk and writes it to a new spill file. With concurrency
// the work runs as an errgroup task that owns chunk.
func (run *sortRun) spill(ctx context.Context, chunk []pipeline.Row) error {
	slot := &spillSlot{}
	run.slots = append(run.slots, slot)
	run.stats.Chunks++

	if run.group == nil {
		return run.writeChunk(ctx, slot, chunk)
	}
	run.group.Go(func() error {
		return run.writeChunk(ctx, slot, chunk)
	})
	if ctx.Err() != nil {
		if err := run.group.Wait(); err != nil {
			return err
		}
		return ctx.Err()
	}
	return nil
}

func (run *sortRun) writeChunk(ctx context.Context, slot *spillSlot, chunk []pipeline.Row) error {
	slices.SortStableFunc(chunk, run.cmp)
	file, err := run.opts.spiller.WriteSpillFile(run.opts.tmpDir, run.prefix, chunk)
	if err != nil {
		return fmt.Errorf("failed to spill sorted chunk: %w", err)
	}
	run.opts.registry.Register(file.Path)
	slot.file = file

	run.mu.Lock()
	run.stats.SpilledChunks++
	run.stats.SpilledBytes += file.Bytes
	run.mu.Unlock()

	spillsCounter.Add(ctx, 1)
	spillBytesCounter.Add(ctx, file.Bytes)
	slog.Debug("Spilled sorted chunk",
		slog.String("path", file.Path),
		slog.Int64("rows", file.RowCount),
		slog.Int64("bytes", file.Bytes))
	return nil
}

// abort removes every spill file written so far. Cleanup failures are
// logged and not returned.
func (run *sortRun) abort() {
	for _, slot := range run.slots {
		if slot.file == nil {
			continue
		}
		if err := run.opts.spiller.CleanupSpillFile(slot.file); err != nil {
			slog.Debug("Failed to remove spill file", slog.String("path", slot.file.Path), slog.Any("error", err))
		}
		run.opts.registry.Release(slot.file.Path)
	}
	run.slots = nil
}

// Next returns the next row in sorted order, or io.EOF. A failure reading
// a spill file is returned by every later call.
func (r *SortedReader) Next(ctx context.Context) (pipeline.Row, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.closed {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row, err := r.root.next()
	if err != nil && !errors.Is(err, io.EOF) {
		r.err = err
	}
	return row, err
}

// Stats reports how the input was sorted.
func (r *SortedReader) Stats() Stats {
	return r.stats
}

// Close closes the input and removes any spill files not yet consumed.
func (r *SortedReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var result *multierror.Error
	if err := r.root.close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to release sorted chunks: %w", err))
	}
	if err := r.input.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close sort input: %w", err))
	}
	return result.ErrorOrNil()
}
