package model

// TaskStatus represents the lifecycle state of a scrape task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// ScrapeTask targets one restaurant/site pair. Succeeded/Failed are final per
// attempt; the runner may resubmit a failed task under its retry policy.
type ScrapeTask struct {
	RestaurantID string     `json:"restaurant_id"`
	TargetURL    string     `json:"target_url"`
	SiteKind     string     `json:"site_kind"`
	Attempt      int        `json:"attempt"`
	Status       TaskStatus `json:"status"`
}

// TaskResult holds the per-task outcome reported into the run summary.
type TaskResult struct {
	Task      ScrapeTask `json:"task"`
	Extracted int        `json:"extracted"`
	Inserted  int        `json:"inserted"`
	Skipped   int        `json:"skipped"`
	Retries   int        `json:"retries"`
	Error     string     `json:"error,omitempty"`
}

// RunSummary aggregates a full pipeline run. It is always reported, even when
// every task failed.
type RunSummary struct {
	Tasks     int          `json:"tasks"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Retried   int          `json:"retried"`
	Extracted int          `json:"extracted"`
	Inserted  int          `json:"inserted"`
	Skipped   int          `json:"skipped"`
	Results   []TaskResult `json:"results,omitempty"`
}
