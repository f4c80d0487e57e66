// Package job assembles the export jobs on top of the chunk-oriented batch
// engine: readers over platform cursors, payload processors, the per-locale
// export writer, and the listeners that gate, checkpoint and judge each run.
package job

import "errors"

const module = "job"

var (
	// ErrThresholdExceeded means the step error rate rose above the configured threshold.
	ErrThresholdExceeded = errors.New("error threshold exceeded")
	// ErrFeatureDisabled means the cartridge or the job's feed is switched off.
	ErrFeatureDisabled = errors.New("feature disabled")
)
