package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/kairos-persistor/internal/infrastructure/logging"
	"github.com/nerrad567/kairos-persistor/internal/journal"
	"github.com/nerrad567/kairos-persistor/internal/persistor"
)

const (
	// journalChanSize is the buffer size for the async journal channel.
	// Entries beyond this are dropped so SQLite never back-pressures replies.
	journalChanSize = 256

	// pruneInterval is how often expired journal entries are removed.
	pruneInterval = time.Hour
)

// errJournalFull is returned by Record when the buffer is full.
var errJournalFull = errors.New("journal channel full, entry dropped")

// journalRecorder adapts journal.Repository to persistor.Recorder.
// Records are queued and written serially by a single goroutine.
type journalRecorder struct {
	repo journal.Repository
	log  *logging.Logger
	ch   chan *journal.Entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newJournalRecorder(repo journal.Repository, log *logging.Logger) *journalRecorder {
	return &journalRecorder{
		repo: repo,
		log:  log,
		ch:   make(chan *journal.Entry, journalChanSize),
	}
}

// Record implements persistor.Recorder.
func (r *journalRecorder) Record(_ context.Context, rec persistor.Record) error {
	entry := &journal.Entry{
		RequestID:  rec.RequestID,
		Action:     rec.Action,
		Status:     string(rec.Status),
		Kind:       string(rec.Kind),
		Message:    rec.Message,
		DurationMS: rec.Duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}

	select {
	case r.ch <- entry:
		return nil
	default:
		return errJournalFull
	}
}

// Start launches the writer and, when retention is positive, the pruner.
// Only Stop ends them: commands still in flight after ctx is cancelled must
// be recorded.
func (r *journalRecorder) Start(ctx context.Context, retention time.Duration) {
	ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.drain(ctx)
	}()

	if retention > 0 {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.pruneLoop(ctx, retention)
		}()
	}
}

// Stop cancels the background goroutines and waits for queued entries to be written.
func (r *journalRecorder) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// drain writes queued entries until ctx is cancelled, then flushes the rest.
func (r *journalRecorder) drain(ctx context.Context) {
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *journalRecorder) write(entry *journal.Entry) {
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.log.Error("journal write failed",
			"action", entry.Action,
			"request_id", entry.RequestID,
			"error", err,
		)
	}
}

// pruneLoop removes entries older than retention now and every pruneInterval.
func (r *journalRecorder) pruneLoop(ctx context.Context, retention time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		r.prune(ctx, retention)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (r *journalRecorder) prune(ctx context.Context, retention time.Duration) {
	removed, err := r.repo.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error("journal prune failed", "error", err)
		}
		return
	}
	if removed > 0 {
		r.log.Info("journal pruned", "removed", removed, "retention", retention.String())
	}
}
