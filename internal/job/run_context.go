package job

import (
	"sync"
	"time"

	"github.com/tigerroll/yotposync/internal/export"
	"github.com/tigerroll/yotposync/internal/localeconfig"
)

// ErrorLedger counts processed and skipped records for the current chunk
// and the whole step. Chunk counters reset at every chunk boundary.
type ErrorLedger struct {
	mu sync.Mutex

	chunkProcessed int
	chunkSkipped   int
	stepProcessed  int
	stepSkipped    int
	skippedIDs     []string
}

// RecordProcessed counts one record handed to the processor.
func (l *ErrorLedger) RecordProcessed() {
	l.mu.Lock()
	l.chunkProcessed++
	l.stepProcessed++
	l.mu.Unlock()
}

// RecordSkipped counts records that failed transform or dispatch.
func (l *ErrorLedger) RecordSkipped(ids ...string) {
	l.mu.Lock()
	l.chunkSkipped += len(ids)
	l.stepSkipped += len(ids)
	l.skippedIDs = append(l.skippedIDs, ids...)
	l.mu.Unlock()
}

// ResetChunk clears the chunk counters.
func (l *ErrorLedger) ResetChunk() {
	l.mu.Lock()
	l.chunkProcessed, l.chunkSkipped = 0, 0
	l.mu.Unlock()
}

// Chunk returns the processed and skipped counts of the current chunk.
func (l *ErrorLedger) Chunk() (processed, skipped int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chunkProcessed, l.chunkSkipped
}

// Step returns the processed and skipped counts of the step.
func (l *ErrorLedger) Step() (processed, skipped int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stepProcessed, l.stepSkipped
}

// SkippedIDs returns the IDs of every skipped record, in order.
func (l *ErrorLedger) SkippedIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.skippedIDs...)
}

// ErrorRate returns skipped/processed as a percentage.
func (l *ErrorLedger) ErrorRate() float64 {
	processed, skipped := l.Step()
	if processed == 0 {
		return 0
	}
	return float64(skipped) * 100 / float64(processed)
}

// RunContext is the state of one job launch, shared by the reader,
// processor, writer and listeners of that job.
type RunContext struct {
	Type     Type
	RunStart time.Time
	Session  *localeconfig.Session
	Cursor   JobCursor
	Ledger   *ErrorLedger

	// Locales are the locales eligible for this run.
	Locales []string
	// Envelopes are the purchase feed templates per locale, holding the current token.
	Envelopes map[string]*export.Envelope
	// Configs are the resolved configurations of Locales.
	Configs map[string]*localeconfig.LocaleConfiguration

	// AlreadyComplete is set when a backfill finished in an earlier run.
	AlreadyComplete bool
	// LastReadID is the highest record ID read so far.
	LastReadID string
	// Exhausted is set once the reader reported the end of input.
	Exhausted bool
	// ChunkFailed is set when any chunk ended with an error.
	ChunkFailed bool
}

func newRunContext(t Type) *RunContext {
	return &RunContext{Type: t, Ledger: &ErrorLedger{}}
}

// reset prepares rc for a new launch starting at runStart.
func (rc *RunContext) reset(runStart time.Time, session *localeconfig.Session) {
	*rc = RunContext{
		Type:      rc.Type,
		RunStart:  runStart,
		Session:   session,
		Ledger:    &ErrorLedger{},
		Envelopes: make(map[string]*export.Envelope),
		Configs:   make(map[string]*localeconfig.LocaleConfiguration),
	}
}

func (rc *RunContext) eligible(locale string) bool {
	_, ok := rc.Configs[locale]
	return ok
}
