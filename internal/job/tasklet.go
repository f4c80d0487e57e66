package job

import (
	"context"

	"github.com/tigerroll/yotposync/internal/export"
	"github.com/tigerroll/yotposync/internal/localeconfig"
	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// configMetadataTasklet reports the feature flags of every eligible locale
// before the order export. Failures are logged; the step always completes.
type configMetadataTasklet struct {
	rc       *RunContext
	resolver *localeconfig.Resolver
	cursors  *CursorStore
	model    *export.Model
}

// NewConfigMetadataTasklet creates the tasklet sending locale metadata.
func NewConfigMetadataTasklet(rc *RunContext, resolver *localeconfig.Resolver, cursors *CursorStore, m *export.Model) port.Tasklet {
	return &configMetadataTasklet{rc: rc, resolver: resolver, cursors: cursors, model: m}
}

func (t *configMetadataTasklet) Execute(ctx context.Context, se *model.StepExecution) (model.ExitStatus, error) {
	enabled, err := t.resolver.CartridgeEnabled(ctx)
	if err != nil {
		logger.Warnf("Config metadata: could not read the cartridge flag: %v", err)
		return model.ExitStatusCompleted, nil
	}
	if !enabled {
		logger.Infof("Config metadata: cartridge disabled; nothing sent.")
		return model.ExitStatusCompleted, nil
	}

	cursor, err := t.cursors.Load(ctx, TypeOrderExport)
	if err != nil {
		logger.Warnf("Config metadata: %v", err)
		return model.ExitStatusCompleted, nil
	}
	locales, err := t.resolver.Locales(ctx)
	if err != nil {
		logger.Warnf("Config metadata: %v", err)
		return model.ExitStatusCompleted, nil
	}
	eligible, err := export.EligibleLocales(ctx, t.rc.Session, locales, func(cfg *localeconfig.LocaleConfiguration) bool {
		return export.ValidateLocaleEligibility(cfg, cursor.LastExecutionTimestamp)
	})
	if err != nil {
		logger.Infof("Config metadata: %v", err)
		return model.ExitStatusCompleted, nil
	}

	sent := 0
	for _, locale := range eligible {
		if err := ctx.Err(); err != nil {
			return model.ExitStatusFailed, err
		}
		if _, err := t.model.SendConfigData(ctx, t.rc.Session, locale); err != nil {
			logger.Warnf("Config metadata for locale '%s' was not sent: %v", locale, err)
			continue
		}
		sent++
	}
	se.ExecutionContext.Put("metadataSent", sent)
	logger.Infof("Config metadata sent for %d of %d locale(s).", sent, len(eligible))
	return model.ExitStatusCompleted, nil
}
