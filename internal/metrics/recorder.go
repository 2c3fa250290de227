// Package metrics records pipeline and command activity. The pipeline only
// sees the Recorder interface; a NoopRecorder is used when metrics are off.
package metrics

import "time"

// ResultLabel enumerates what happened to a file at the end of a run.
type ResultLabel string

const (
	ResultWritten ResultLabel = "written"
	ResultCopied  ResultLabel = "copied"
	ResultSkipped ResultLabel = "skipped"
	ResultFailed  ResultLabel = "failed"
)

// Recorder defines the observability hooks used by the view pipeline and the
// command host. Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveRunDuration(d time.Duration)
	ObserveFileDuration(d time.Duration)
	IncFileResult(stage string, result ResultLabel)
	IncCommand(kind string, success bool)
	SetPartials(n int)
}

// NoopRecorder is a Recorder that does nothing
type NoopRecorder struct{}

func (NoopRecorder) ObserveRunDuration(time.Duration)  {}
func (NoopRecorder) ObserveFileDuration(time.Duration) {}
func (NoopRecorder) IncFileResult(string, ResultLabel) {}
func (NoopRecorder) IncCommand(string, bool)           {}
func (NoopRecorder) SetPartials(int)                   {}
