package journal

import "time"

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// ExportStatus is the state of one segment export.
type ExportStatus string

const (
	ExportRunning   ExportStatus = "running"
	ExportCompleted ExportStatus = "completed"
	ExportFailed    ExportStatus = "failed"
	ExportSkipped   ExportStatus = "skipped"
)

// Run is one invocation against a source URL.
type Run struct {
	ID            string
	SourceURL     string
	Status        RunStatus
	StartedAt     time.Time
	FinishedAt    *time.Time
	FinalDuration float64
	ErrorMessage  string
	SegmentCount  int
	FailedExports int
}

// Segment is a journaled segment and its export result.
type Segment struct {
	RunID        string
	Ordinal      int
	Label        string
	Start        float64
	End          float64
	OutputPath   string
	ExportStatus ExportStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
