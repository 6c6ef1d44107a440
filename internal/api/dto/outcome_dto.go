package dto

type ListRecentRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
}

type ListHistoryRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListOutcomesResponse struct {
	Outcomes   []OutcomeDTO `json:"outcomes"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type OutcomeDTO struct {
	JobID      string `json:"job_id"`
	Path       string `json:"path"`
	Status     string `json:"status"`
	OutputPath string `json:"output_path,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Attempts   int    `json:"attempts"`
	Retries    int    `json:"retries"`
	InputSize  int64  `json:"input_size"`
	OutputSize int64  `json:"output_size"`
	DurationMS int64  `json:"duration_ms"`
	FinishedAt string `json:"finished_at"`
}

type StatsResponse struct {
	WorkerID    string `json:"worker_id"`
	Concurrency int    `json:"concurrency"`
	Active      int64  `json:"active"`
	InFlight    int    `json:"in_flight"`
	Succeeded   int64  `json:"succeeded"`
	Failed      int64  `json:"failed"`
	Retries     int64  `json:"retries"`
}
