package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tigerroll/yotposync/internal/export"
	"github.com/tigerroll/yotposync/internal/localeconfig"
	"github.com/tigerroll/yotposync/internal/platform"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	"github.com/tigerroll/yotposync/pkg/batch/core/support/incrementer"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// RunStartParam is the optional job parameter (RFC3339) overriding the run start time.
// The launcher stamps it through incrementer.TimestampIncrementer.
const RunStartParam = incrementer.DefaultRunStartKey

// runListener gives every launch a fresh RunContext.
type runListener struct {
	rc       *RunContext
	resolver *localeconfig.Resolver
}

func (l *runListener) BeforeJob(ctx context.Context, je *model.JobExecution) {
	l.rc.reset(runStartOf(je), l.resolver.NewSession())
	logger.Debugf("%s: run starts at %s.", l.rc.Type, l.rc.RunStart.Format(time.RFC3339))
}

func (l *runListener) AfterJob(ctx context.Context, je *model.JobExecution) {
	if ids := l.rc.Ledger.SkippedIDs(); len(ids) > 0 {
		logger.Warnf("%s: %d record(s) were not exported: %v", l.rc.Type, len(ids), ids)
	}
}

func runStartOf(je *model.JobExecution) time.Time {
	if je != nil {
		switch v := je.Parameters[RunStartParam].(type) {
		case time.Time:
			return v
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t
			}
			logger.Warnf("Ignoring malformed %s parameter %q.", RunStartParam, v)
		}
	}
	return time.Now()
}

// feedSpec describes how a job decides which locales take part.
type feedSpec struct {
	feed export.Feed
	// flag reports whether the job's feed is switched on for cfg.
	flag func(cfg *localeconfig.LocaleConfiguration) bool
	// flagPref is the preference consulted when no locale record enables the feed.
	flagPref string
	// eligible reports whether cfg can take part, given the loaded cursor.
	eligible func(cfg *localeconfig.LocaleConfiguration, cursor JobCursor) bool
}

// exportStepListener gates the step before any record is read and judges
// it afterwards.
type exportStepListener struct {
	rc         *RunContext
	spec       feedSpec
	resolver   *localeconfig.Resolver
	cursors    *CursorStore
	model      *export.Model
	transactor platform.Transactor
	threshold  float64
}

func (l *exportStepListener) BeforeStep(ctx context.Context, se *model.StepExecution) error {
	rc := l.rc
	cursor, err := l.cursors.Load(ctx, rc.Type)
	if err != nil {
		return l.fail(se, err)
	}
	rc.Cursor = cursor
	rc.LastReadID = cursor.LastProcessedID

	if rc.Type != TypeOrderExport && cursor.CompletionFlag {
		logger.Infof("%s: already completed in an earlier run; nothing to do.", rc.Type)
		rc.AlreadyComplete = true
		return nil
	}

	enabled, err := l.resolver.CartridgeEnabled(ctx)
	if err != nil {
		return l.fail(se, err)
	}
	if !enabled {
		return l.fail(se, exception.NewBatchError(module, "the cartridge is disabled", ErrFeatureDisabled, false, false))
	}

	locales, err := l.resolver.Locales(ctx)
	if err != nil {
		return l.fail(se, err)
	}
	flagSet, err := l.feedEnabled(ctx, locales)
	if err != nil {
		return l.fail(se, err)
	}
	if !flagSet {
		return l.fail(se, exception.NewBatchError(module, fmt.Sprintf("the %s feed is disabled", l.spec.feed), ErrFeatureDisabled, false, false))
	}

	eligible, err := export.EligibleLocales(ctx, rc.Session, locales, func(cfg *localeconfig.LocaleConfiguration) bool {
		return l.spec.eligible(cfg, cursor)
	})
	if err != nil {
		return l.fail(se, err)
	}
	for _, locale := range eligible {
		cfg, err := rc.Session.Resolve(ctx, locale)
		if err != nil {
			return l.fail(se, err)
		}
		rc.Configs[locale] = cfg
	}
	rc.Locales = eligible

	if l.spec.feed == export.FeedPurchase {
		envelopes, err := l.model.PrepareBatchRequest(ctx, rc.Session, eligible)
		if err != nil {
			return l.fail(se, err)
		}
		if len(envelopes) == 0 {
			return l.fail(se, exception.NewBatchError(module, "no eligible locale could authenticate",
				&export.NoEnabledConfigurationError{Skipped: len(eligible)}, false, false))
		}
		rc.Envelopes = envelopes
	}
	logger.Infof("%s: exporting locales %v after cursor '%s'.", rc.Type, eligible, cursor.LastProcessedID)
	return nil
}

// feedEnabled reports whether any locale, or the global preference, switches the feed on.
func (l *exportStepListener) feedEnabled(ctx context.Context, locales []string) (bool, error) {
	for _, locale := range locales {
		cfg, err := l.rc.Session.Resolve(ctx, locale)
		if err != nil {
			return false, err
		}
		if l.spec.flag(cfg) {
			return true, nil
		}
	}
	v, err := l.rc.Session.GetPref(ctx, l.spec.flagPref, localeconfig.DefaultLocale)
	if err != nil || v == nil {
		return false, err
	}
	on, _ := localeconfig.AsBool(v)
	return on, nil
}

func (l *exportStepListener) AfterStep(ctx context.Context, se *model.StepExecution) error {
	rc := l.rc
	if rc.AlreadyComplete {
		return nil
	}

	processed, skipped := rc.Ledger.Step()
	rate := rc.Ledger.ErrorRate()
	se.ExecutionContext.Put("processedCount", processed)
	se.ExecutionContext.Put("skippedCount", skipped)
	if skipped > 0 {
		se.ExecutionContext.Put("skippedIDs", rc.Ledger.SkippedIDs())
	}

	if processed > 0 && rate > l.threshold {
		err := exception.NewBatchError(module,
			fmt.Sprintf("%d of %d record(s) failed (%.2f%%), above the %.2f%% threshold; not exported: %s",
				skipped, processed, rate, l.threshold, listIDs(rc.Ledger.SkippedIDs())),
			ErrThresholdExceeded, false, false)
		logger.Errorf("%s: %v", rc.Type, err)
		return l.fail(se, err)
	}
	if skipped > 0 {
		logger.Warnf("%s: %d of %d record(s) failed (%.2f%%), within the %.2f%% threshold.", rc.Type, skipped, processed, rate, l.threshold)
	}

	if !rc.Exhausted || rc.ChunkFailed {
		return nil
	}
	cursor := rc.Cursor
	cursor.LastProcessedID = Advance(cursor.LastProcessedID, rc.LastReadID)
	if rc.Type == TypeOrderExport {
		runStart := rc.RunStart
		cursor.LastExecutionTimestamp = &runStart
	} else {
		cursor.CompletionFlag = true
	}
	if err := l.transactor.InTransaction(ctx, func(ctx context.Context) error {
		return l.cursors.Save(ctx, rc.Type, cursor)
	}); err != nil {
		return l.fail(se, err)
	}
	rc.Cursor = cursor
	return nil
}

// maxListedIDs caps the record IDs quoted in a step failure message.
const maxListedIDs = 20

// listIDs joins ids for an error message, eliding everything past maxListedIDs.
func listIDs(ids []string) string {
	if len(ids) <= maxListedIDs {
		return strings.Join(ids, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(ids[:maxListedIDs], ", "), len(ids)-maxListedIDs)
}

// fail raises the operator-facing error flag and returns err.
func (l *exportStepListener) fail(se *model.StepExecution, err error) error {
	if se.JobExecution != nil {
		se.JobExecution.SetDisplayError(exception.ExtractErrorMessage(err))
	}
	var noEnabled *export.NoEnabledConfigurationError
	if errors.As(err, &noEnabled) {
		logger.Errorf("%s: no locale is eligible (%d skipped).", l.rc.Type, noEnabled.Skipped)
	}
	return err
}

// cursorListener checkpoints the cursor at every successful chunk.
type cursorListener struct {
	rc         *RunContext
	cursors    *CursorStore
	transactor platform.Transactor
}

func (l *cursorListener) BeforeChunk(ctx context.Context, se *model.StepExecution) error {
	l.rc.Ledger.ResetChunk()
	return nil
}

// AfterChunk runs inside the chunk transaction, so the cursor commits with the chunk.
func (l *cursorListener) AfterChunk(ctx context.Context, se *model.StepExecution, chunkErr error) error {
	rc := l.rc
	processed, skipped := rc.Ledger.Chunk()
	if chunkErr != nil {
		rc.ChunkFailed = true
		logger.Errorf("%s: chunk failed after %d record(s), %d error(s): %v", rc.Type, processed, skipped, chunkErr)
		return nil
	}
	if skipped > 0 {
		logger.Warnf("%s: chunk done with %d error(s) in %d record(s).", rc.Type, skipped, processed)
	} else {
		logger.Infof("%s: chunk done, %d record(s).", rc.Type, processed)
	}

	if !platform.IDAfter(rc.LastReadID, rc.Cursor.LastProcessedID) || rc.LastReadID == "" {
		return nil
	}
	cursor := rc.Cursor
	cursor.LastProcessedID = rc.LastReadID
	if err := l.transactor.InTransaction(ctx, func(ctx context.Context) error {
		return l.cursors.Save(ctx, rc.Type, cursor)
	}); err != nil {
		return err
	}
	rc.Cursor = cursor
	logger.Debugf("%s: cursor advanced to '%s'.", rc.Type, cursor.LastProcessedID)
	return nil
}
