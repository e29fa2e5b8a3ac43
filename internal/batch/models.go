package batch

import (
	"strings"
	"time"

	"nugget/internal/nugget"
)

// Status represents the lifecycle of a batch job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusPaused,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further mutation of the job is permitted.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ItemStatus represents the lifecycle of one item inside a job.
type ItemStatus string

const (
	ItemPending  ItemStatus = "pending"
	ItemRunning  ItemStatus = "running"
	ItemRetrying ItemStatus = "retrying"
	ItemSuccess  ItemStatus = "success"
	ItemFailed   ItemStatus = "failed"
	ItemSkipped  ItemStatus = "skipped"
)

// IsTerminal reports whether the item has settled.
func (s ItemStatus) IsTerminal() bool {
	switch s {
	case ItemSuccess, ItemFailed, ItemSkipped:
		return true
	default:
		return false
	}
}

// Config is the per-job processing configuration.
type Config struct {
	Concurrency        int      `json:"concurrency"`
	RetryFailed        bool     `json:"retry_failed"`
	MaxRetries         uint     `json:"max_retries"`
	NuggetDuration     float64  `json:"nugget_duration"`
	OverlapDuration    float64  `json:"overlap_duration"`
	EnableTranscript   bool     `json:"enable_transcript"`
	EnableAnalysis     bool     `json:"enable_analysis"`
	EnableSocialExport bool     `json:"enable_social_export"`
	OutputDir          string   `json:"output_dir"`
	ExportFormats      []string `json:"export_formats"`
}

// Progress aggregates per-item outcomes into job-level counters.
//
// Invariant: Processed+Failed <= Total at all times. Percentage is derived
// from the two counters and is monotonically non-decreasing until the job
// reaches a terminal state.
type Progress struct {
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Failed      int        `json:"failed"`
	CurrentItem string     `json:"current_item,omitempty"`
	Percentage  float64    `json:"percentage"`
	ETASeconds  *float64   `json:"eta_seconds,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
}

// ItemResult is the outcome of one item's pipeline run. Retries overwrite the
// result in place; once the item settles the result is immutable.
type ItemResult struct {
	Position       int                     `json:"position"`
	Reference      string                  `json:"reference"`
	VideoInfo      *nugget.VideoInfo       `json:"video_info,omitempty"`
	Nuggets        []nugget.Nugget         `json:"nuggets,omitempty"`
	Analysis       *nugget.ContentAnalysis `json:"analysis,omitempty"`
	OutputFiles    []string                `json:"output_files,omitempty"`
	Status         ItemStatus              `json:"status"`
	ErrorMessage   string                  `json:"error_message,omitempty"`
	Attempts       int                     `json:"attempts"`
	ElapsedSeconds float64                 `json:"elapsed_seconds"`
}

// Job is the authoritative record of one batch job. Items preserves original
// submission order; Results holds exactly one entry per item, in the same
// order, regardless of completion order.
type Job struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Items       []string     `json:"items"`
	Config      Config       `json:"config"`
	Status      Status       `json:"status"`
	Progress    Progress     `json:"progress"`
	Results     []ItemResult `json:"results"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Clone returns a deep copy; store reads hand out clones so callers never
// share mutable state with the scheduler.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Items = append([]string(nil), j.Items...)
	cp.Config.ExportFormats = append([]string(nil), j.Config.ExportFormats...)
	if j.Progress.ETASeconds != nil {
		eta := *j.Progress.ETASeconds
		cp.Progress.ETASeconds = &eta
	}
	if j.Progress.StartedAt != nil {
		ts := *j.Progress.StartedAt
		cp.Progress.StartedAt = &ts
	}
	if j.StartedAt != nil {
		ts := *j.StartedAt
		cp.StartedAt = &ts
	}
	if j.CompletedAt != nil {
		ts := *j.CompletedAt
		cp.CompletedAt = &ts
	}
	cp.Results = make([]ItemResult, len(j.Results))
	for i, result := range j.Results {
		cp.Results[i] = result.clone()
	}
	return &cp
}

func (r ItemResult) clone() ItemResult {
	cp := r
	cp.OutputFiles = append([]string(nil), r.OutputFiles...)
	if r.VideoInfo != nil {
		info := *r.VideoInfo
		cp.VideoInfo = &info
	}
	if r.Analysis != nil {
		analysis := *r.Analysis
		analysis.KeyTopics = append([]string(nil), r.Analysis.KeyTopics...)
		analysis.SuggestedTags = append([]string(nil), r.Analysis.SuggestedTags...)
		analysis.HighlightMoments = append([]nugget.HighlightMoment(nil), r.Analysis.HighlightMoments...)
		analysis.Categories = append([]string(nil), r.Analysis.Categories...)
		cp.Analysis = &analysis
	}
	if r.Nuggets != nil {
		cp.Nuggets = make([]nugget.Nugget, len(r.Nuggets))
		for i, n := range r.Nuggets {
			n.Tags = append([]string(nil), n.Tags...)
			cp.Nuggets[i] = n
		}
	}
	return cp
}

// recomputePercentage derives the percentage from the counters. An empty job
// is trivially complete.
func (p *Progress) recomputePercentage() {
	if p.Total == 0 {
		p.Percentage = 100
		return
	}
	p.Percentage = float64(p.Processed+p.Failed) / float64(p.Total) * 100
}
