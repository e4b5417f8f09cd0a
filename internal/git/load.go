package git

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/taskreview/internal/log"
	"github.com/zjrosen/taskreview/internal/render"
	"github.com/zjrosen/taskreview/internal/review/catalog"
	"github.com/zjrosen/taskreview/internal/tracing"
)

// DefaultMaxCumulativeBytes is the total old+new content carried by one load
// before later records are reduced to line counts.
const DefaultMaxCumulativeBytes int64 = 200 * 1024 * 1024

// LoadOptions control how much content a load carries.
type LoadOptions struct {
	// StatsOnly drops every record's contents and keeps line counts.
	StatsOnly bool
	// MaxCumulativeBytes caps total content size; 0 uses the default.
	MaxCumulativeBytes int64
	Tracer             trace.Tracer
}

// LoadDiffs reads the change set of the worktree against base as diff records.
func LoadDiffs(ctx context.Context, exec Executor, base string, opts LoadOptions) ([]catalog.DiffRecord, error) {
	if !exec.IsGitRepo() {
		return nil, ErrNotGitRepo
	}
	if opts.MaxCumulativeBytes <= 0 {
		opts.MaxCumulativeBytes = DefaultMaxCumulativeBytes
	}

	ctx, span := tracing.OrNoop(opts.Tracer).Start(ctx, tracing.SpanLoadDiffs)
	defer span.End()

	changes, err := exec.ListChanges(ctx, base)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	budget := &omitBudget{limit: opts.MaxCumulativeBytes, statsOnly: opts.StatsOnly}
	records := make([]catalog.DiffRecord, 0, len(changes))
	omitted := 0
	for _, c := range changes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := readRecord(ctx, exec, base, c)
		if err != nil {
			return nil, err
		}
		budget.apply(&rec)
		if rec.ContentOmitted {
			omitted++
		}
		records = append(records, rec)
	}

	span.SetAttributes(attribute.Int("git.records", len(records)), attribute.Int("git.omitted", omitted))
	log.Info(log.CatGit, "loaded diffs", "base", base, "records", len(records), "omitted", omitted, "bytes", budget.used)
	return records, nil
}

func readRecord(ctx context.Context, exec Executor, base string, c Change) (catalog.DiffRecord, error) {
	rec := catalog.DiffRecord{
		OldPath:    c.OldPath,
		NewPath:    c.NewPath,
		ChangeKind: c.Kind,
		Additions:  c.Additions,
		Deletions:  c.Deletions,
	}
	if c.Binary {
		rec.ContentOmitted = true
		return rec, nil
	}

	var err error
	if c.OldPath != "" && c.Kind != catalog.ChangeAdded {
		if rec.OldContent, err = exec.ShowFile(ctx, base, c.OldPath); err != nil {
			return rec, fmt.Errorf("old content of %s: %w", c.OldPath, err)
		}
	}
	if c.NewPath != "" && c.Kind != catalog.ChangeDeleted {
		rec.NewContent, err = exec.ReadWorktreeFile(c.NewPath)
		if err != nil {
			// Deleted between listing and reading; keep the record with what we have.
			log.Warn(log.CatGit, "worktree file unreadable", "path", c.NewPath, "error", err.Error())
			if errors.Is(err, ErrPathOutsideRepo) {
				return rec, err
			}
		}
	}
	if !c.HasCounts {
		rec.Additions, rec.Deletions = render.LineChangeCounts(rec.OldContent, rec.NewContent)
	}
	return rec, nil
}

// omitBudget drops contents once the cumulative size passes the limit.
type omitBudget struct {
	limit     int64
	used      int64
	statsOnly bool
}

func (b *omitBudget) apply(rec *catalog.DiffRecord) {
	if rec.ContentOmitted {
		return
	}
	if b.statsOnly {
		omitContents(rec)
		return
	}
	size := int64(len(rec.OldContent) + len(rec.NewContent))
	if size == 0 {
		return
	}
	if b.used+size > b.limit {
		omitContents(rec)
		return
	}
	b.used += size
}

func omitContents(rec *catalog.DiffRecord) {
	rec.OldContent = ""
	rec.NewContent = ""
	rec.ContentOmitted = true
}
