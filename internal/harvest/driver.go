package harvest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"yt-dataset-harvester/internal/checkpoint"
	"yt-dataset-harvester/internal/models"
)

const DefaultBatchSize = 50

type DriverConfig struct {
	InputPath  string
	RunDate    string
	BatchSize  int
	StartBatch int
}

// Driver walks the playlist input slice by slice:
//
//	INIT -> LOADING_INPUT -> (PROCESSING_BATCH -> CHECKPOINTING)* -> DONE
//
// The resume point is pure arithmetic on the full input list (startBatch * batchSize
// leading entries are skipped), so the input order must not change between runs.
type Driver struct {
	cfg       DriverConfig
	processor *Processor
	writer    *checkpoint.Writer
	locker    BatchLocker
	ledger    BatchLedger
	reporter  Reporter
	runID     uuid.UUID
	now       func() time.Time
}

type DriverOption func(*Driver)

func WithLocker(l BatchLocker) DriverOption { return func(d *Driver) { d.locker = l } }

func WithLedger(l BatchLedger) DriverOption { return func(d *Driver) { d.ledger = l } }

func WithReporter(r Reporter) DriverOption { return func(d *Driver) { d.reporter = r } }

func WithRunID(id uuid.UUID) DriverOption { return func(d *Driver) { d.runID = id } }

func NewDriver(cfg DriverConfig, processor *Processor, writer *checkpoint.Writer, opts ...DriverOption) *Driver {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.StartBatch < 0 {
		cfg.StartBatch = 0
	}
	d := &Driver{
		cfg:       cfg,
		processor: processor,
		writer:    writer,
		reporter:  nopReporter{},
		runID:     uuid.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) RunID() uuid.UUID {
	return d.runID
}

// Run executes the harvest. Cancelling ctx stops the driver between batches only;
// a batch that has started is always processed and committed first. The returned
// error is non-nil only for per-run failures (input, lock, checkpoint write).
func (d *Driver) Run(ctx context.Context) (models.RunState, error) {
	state := models.RunState{
		RunID:       d.runID,
		RunDate:     d.cfg.RunDate,
		State:       models.StateInit,
		StartBatch:  d.cfg.StartBatch,
		BatchNumber: d.cfg.StartBatch,
		StartedAt:   d.now(),
	}

	var remaining []string
	var current *models.BatchResult
	batchCtx := context.WithoutCancel(ctx)

	for {
		switch state.State {
		case models.StateInit:
			state = d.transition(batchCtx, state, models.StateLoadingInput)

		case models.StateLoadingInput:
			ids, err := ReadPlaylistIDs(d.cfg.InputPath)
			if err != nil {
				return state, err
			}
			skip := d.cfg.StartBatch * d.cfg.BatchSize
			if skip > len(ids) {
				skip = len(ids)
			}
			remaining = ids[skip:]
			state.InputTotal = len(ids)
			state.InputOffset = skip
			log.Printf("Loaded %d playlists, skipping %d (start batch %d)", len(ids), skip, d.cfg.StartBatch)
			state = d.transition(batchCtx, state, models.StateProcessingBatch)

		case models.StateProcessingBatch:
			if ctx.Err() != nil {
				log.Printf("Stop requested, not starting batch %d", state.BatchNumber)
				state.Interrupted = true
				state = d.transition(batchCtx, state, models.StateDone)
				continue
			}
			if len(remaining) == 0 {
				state = d.transition(batchCtx, state, models.StateDone)
				continue
			}

			n := d.cfg.BatchSize
			if n > len(remaining) {
				n = len(remaining)
			}
			slice := remaining[:n]
			remaining = remaining[n:]
			state.InputOffset += n

			log.Printf("Processing batch %d (%d playlists)", state.BatchNumber, len(slice))
			current = d.processor.ProcessBatch(batchCtx, d.runID, slice, state.BatchNumber)
			state.PlaylistsSkipped += len(current.Failed)
			state = d.transition(batchCtx, state, models.StateCheckpointing)

		case models.StateCheckpointing:
			var err error
			state, err = d.commit(batchCtx, state, current)
			if err != nil {
				return state, err
			}
			current = nil
			state = d.transition(batchCtx, state, models.StateProcessingBatch)

		case models.StateDone:
			finished := d.now()
			state.FinishedAt = &finished
			snapshot := state
			d.reporter.Report(batchCtx, models.ProgressEvent{
				Type: models.EventRunFinished, RunID: d.runID, BatchNumber: state.BatchNumber, Run: &snapshot,
			})
			logSummary(state)
			return state, nil

		default:
			return state, fmt.Errorf("unknown harvest state %q", state.State)
		}
	}
}

// commit writes a non-empty batch and advances the cursor. An empty batch is not
// written and does not advance the batch number; the input slice is consumed anyway.
func (d *Driver) commit(ctx context.Context, state models.RunState, b *models.BatchResult) (models.RunState, error) {
	if b.Empty() {
		log.Printf("Batch %d produced no results, nothing written", b.BatchNumber)
		d.reporter.Report(ctx, models.ProgressEvent{
			Type: models.EventBatchEmpty, RunID: d.runID, BatchNumber: b.BatchNumber,
		})
		return state, nil
	}

	if d.locker != nil {
		release, err := d.locker.Acquire(ctx, d.writer.Dir(), b.BatchNumber)
		if err != nil {
			return state, fmt.Errorf("batch %d: %w", b.BatchNumber, err)
		}
		defer release()
	}

	if err := d.writer.Write(b); err != nil {
		return state, err
	}

	state = state.Commit(b)

	if d.ledger != nil {
		if err := d.ledger.RecordBatch(ctx, state, b); err != nil {
			log.Printf("failed to record batch %d in ledger: %v", b.BatchNumber, err)
		}
	}

	snapshot := state
	d.reporter.Report(ctx, models.ProgressEvent{
		Type: models.EventBatchCommitted, RunID: d.runID, BatchNumber: b.BatchNumber,
		Videos: b.VideoCount(), Run: &snapshot,
	})

	log.Printf("Batch Summary: batch %d committed, %d playlists, %d videos", b.BatchNumber, len(b.Playlists), b.VideoCount())
	log.Printf("Total playlists processed so far: %d", state.TotalPlaylistsProcessed)
	return state, nil
}

func (d *Driver) transition(ctx context.Context, state models.RunState, next models.HarvestState) models.RunState {
	state.State = next
	snapshot := state
	d.reporter.Report(ctx, models.ProgressEvent{
		Type: models.EventStateChanged, RunID: d.runID, BatchNumber: state.BatchNumber, Run: &snapshot,
	})
	return state
}

func logSummary(state models.RunState) {
	log.Printf("Final Summary:")
	log.Printf("  Total playlists processed: %d", state.TotalPlaylistsProcessed)
	log.Printf("  Total playlists skipped:   %d", state.PlaylistsSkipped)
	log.Printf("  Total batches written:     %d", state.BatchesWritten)
	log.Printf("  Total videos processed:    %d", state.TotalVideosProcessed)
	if state.Interrupted {
		log.Printf("  Interrupted before input was exhausted, resume with --start-batch %d", state.BatchNumber)
	}
}

// ResolveStartBatch picks the resume offset. An explicit value wins; with auto set
// the offset is inferred from the newest checkpoint in runDir, and a trailing
// partial pair is moved aside so its batch is redone.
func ResolveStartBatch(runDir string, explicit int, auto bool) (int, error) {
	if explicit > 0 || !auto {
		return explicit, nil
	}

	entries, err := checkpoint.Scan(runDir)
	if err != nil {
		return 0, err
	}
	for _, e := range entries[:max(0, len(entries)-1)] {
		if !e.Complete() {
			log.Printf("WARNING: batch %d in %s is a partial pair (%s)", e.BatchNumber, runDir, e.Status)
		}
	}

	next, partial := checkpoint.ResumePoint(entries)
	if partial != nil {
		log.Printf("Batch %d is a partial pair (%s), redoing it", partial.BatchNumber, partial.Status)
		if err := checkpoint.Quarantine(*partial); err != nil {
			return 0, err
		}
	}
	return next, nil
}
