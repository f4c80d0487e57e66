package job

import (
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/yotposync/internal/export"
	"github.com/tigerroll/yotposync/internal/localeconfig"
	"github.com/tigerroll/yotposync/internal/payload"
	"github.com/tigerroll/yotposync/internal/platform"
	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
	repository "github.com/tigerroll/yotposync/pkg/batch/core/domain/repository"
	"github.com/tigerroll/yotposync/pkg/batch/core/job/runner"
	metrics "github.com/tigerroll/yotposync/pkg/batch/core/metrics"
	tx "github.com/tigerroll/yotposync/pkg/batch/core/tx"
	"github.com/tigerroll/yotposync/pkg/batch/engine/step/item"
	"github.com/tigerroll/yotposync/pkg/batch/engine/step/retry"
	"github.com/tigerroll/yotposync/pkg/batch/engine/step/tasklet"
)

// Job names as accepted by the launcher.
const (
	JobOrderExport             = "orderExportJob"
	JobLoyaltyOrderBackfill    = "loyaltyOrderBackfillJob"
	JobLoyaltyCustomerBackfill = "loyaltyCustomerBackfillJob"
)

// Deps are the collaborators shared by every job.
type Deps struct {
	fx.In

	Config     *config.Config
	Platform   platform.Platform
	Resolver   *localeconfig.Resolver
	Cursors    *CursorStore
	Model      *export.Model
	Repository repository.JobRepository
	// TxManager runs chunk transactions on the platform database.
	TxManager tx.TransactionManager
	Recorder  metrics.MetricRecorder `optional:"true"`
	Tracer    metrics.Tracer         `optional:"true"`

	JobListeners   []port.JobExecutionListener  `group:"jobListeners"`
	StepListeners  []port.StepExecutionListener `group:"stepListeners"`
	ChunkListeners []port.ChunkListener         `group:"chunkListeners"`
	RetryListeners []port.RetryItemListener     `group:"retryListeners"`
}

// NewOrderExportJob assembles the purchase feed export: an optional config
// metadata step followed by the order window export.
func NewOrderExportJob(d Deps) *runner.SimpleJob {
	rc := newRunContext(TypeOrderExport)
	y := d.Config.Sync.Yotpo
	spec := feedSpec{
		feed:     export.FeedPurchase,
		flag:     func(c *localeconfig.LocaleConfiguration) bool { return c.PurchaseFeedEnabled },
		flagPref: localeconfig.AttrPurchaseFeedEnabled,
		eligible: func(c *localeconfig.LocaleConfiguration, cursor JobCursor) bool {
			return export.ValidateLocaleEligibility(c, cursor.LastExecutionTimestamp)
		},
	}

	var steps []port.Step
	if y.ExportConfigMetadata {
		steps = append(steps, tasklet.NewTaskletStep(
			"configMetadataStep",
			NewConfigMetadataTasklet(rc, d.Resolver, d.Cursors, d.Model),
			d.Repository, d.TxManager, d.Recorder, d.Tracer,
			d.StepListeners...,
		))
	}
	steps = append(steps, newExportStep(d, rc, "orderExportStep", spec,
		NewOrderWindowReader(rc, d.Platform, d.chunkSize()),
		NewPurchaseProcessor(rc, payload.Options{Platform: y.Platform, StorefrontBaseURL: y.StorefrontBaseURL}),
	))
	return d.newJob(JobOrderExport, rc, steps)
}

// NewLoyaltyOrderBackfillJob assembles the one-off loyalty order upload.
func NewLoyaltyOrderBackfillJob(d Deps) *runner.SimpleJob {
	rc := newRunContext(TypeLoyaltyOrderBackfill)
	spec := loyaltySpec(export.FeedLoyaltyOrders, localeconfig.AttrLoyaltyOrderFeedEnabled,
		func(c *localeconfig.LocaleConfiguration) bool { return c.LoyaltyOrderFeedEnabled })
	step := newExportStep(d, rc, "loyaltyOrderBackfillStep", spec,
		NewOrderBackfillReader(rc, d.Platform, d.chunkSize()),
		NewLoyaltyOrderProcessor(rc),
	)
	return d.newJob(JobLoyaltyOrderBackfill, rc, []port.Step{step})
}

// NewLoyaltyCustomerBackfillJob assembles the one-off loyalty customer upload.
func NewLoyaltyCustomerBackfillJob(d Deps) *runner.SimpleJob {
	rc := newRunContext(TypeLoyaltyCustomerBackfill)
	spec := loyaltySpec(export.FeedLoyaltyCustomers, localeconfig.AttrLoyaltyCustomerFeedEnabled,
		func(c *localeconfig.LocaleConfiguration) bool { return c.LoyaltyCustomerFeedEnabled })
	step := newExportStep(d, rc, "loyaltyCustomerBackfillStep", spec,
		NewCustomerBackfillReader(rc, d.Platform, d.chunkSize()),
		NewLoyaltyCustomerProcessor(rc),
	)
	return d.newJob(JobLoyaltyCustomerBackfill, rc, []port.Step{step})
}

func loyaltySpec(feed export.Feed, pref string, flag func(*localeconfig.LocaleConfiguration) bool) feedSpec {
	return feedSpec{
		feed:     feed,
		flag:     flag,
		flagPref: pref,
		eligible: func(c *localeconfig.LocaleConfiguration, _ JobCursor) bool {
			return export.ValidateLoyaltyEligibility(c, feed)
		},
	}
}

// newExportStep wires reader and processor to the export writer and the
// gating and checkpoint listeners of rc.
func newExportStep[I any](d Deps, rc *RunContext, name string, spec feedSpec, reader port.ItemReader[I], processor port.ItemProcessor[I, export.Record]) port.Step {
	y := d.Config.Sync.Yotpo
	gate := &exportStepListener{
		rc:         rc,
		spec:       spec,
		resolver:   d.Resolver,
		cursors:    d.Cursors,
		model:      d.Model,
		transactor: d.Platform,
		threshold:  y.ErrorThresholdPercent,
	}
	checkpoint := &cursorListener{rc: rc, cursors: d.Cursors, transactor: d.Platform}
	readPolicy := retry.NewDefaultRetryPolicyFactory().Create(y.MaxTimeouts, time.Duration(y.RetryIntervalMillis)*time.Millisecond, nil)

	return item.NewChunkStep[I, export.Record](
		name, reader, processor,
		NewExportWriter(rc, d.Model, spec.feed, d.Platform),
		d.chunkSize(), d.Repository, d.TxManager,
		item.WithStepExecutionListeners[I, export.Record](append([]port.StepExecutionListener{gate}, d.StepListeners...)...),
		item.WithChunkListeners[I, export.Record](append([]port.ChunkListener{checkpoint}, d.ChunkListeners...)...),
		item.WithRetryItemListeners[I, export.Record](d.RetryListeners...),
		item.WithReadRetryPolicy[I, export.Record](readPolicy),
		item.WithMetrics[I, export.Record](d.Recorder, d.Tracer),
	)
}

func (d Deps) newJob(name string, rc *RunContext, steps []port.Step) *runner.SimpleJob {
	listeners := append([]port.JobExecutionListener{&runListener{rc: rc, resolver: d.Resolver}}, d.JobListeners...)
	return runner.NewSimpleJob(name, steps, d.Repository, listeners, d.Recorder, d.Tracer)
}

func (d Deps) chunkSize() int {
	return d.Config.Sync.Batch.ChunkSize
}
