package models

// HarvestResponse is the immediate response for POST /api/v1/harvest.
type HarvestResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ErrorResponse is the envelope for API error bodies.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// HarvestStatusResponse is the response for GET /api/v1/harvest/:id.
type HarvestStatusResponse struct {
	ID         string       `json:"id"`
	Status     string       `json:"status"`
	Kept       int          `json:"kept"`
	Duplicates int          `json:"duplicates"`
	Pages      int          `json:"pages"`
	Files      []string     `json:"files,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// HarvestJob tracks an in-progress harvest run.
type HarvestJob struct {
	ID            string
	Status        string // "processing", "completed", "failed"
	Kept          int
	Duplicates    int
	Pages         int
	Files         []string
	Error         *ErrorDetail
	CreatedAt     int64 // unix timestamp
	WebhookURL    string
	WebhookSecret string
}

// RunStats summarises a finished pipeline run.
type RunStats struct {
	Kept       int `json:"kept"`
	Duplicates int `json:"duplicates"`

	// PerType breaks the kept count down by record type.
	PerType map[RecordType]int `json:"per_type,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"` // "healthy" or "degraded"
	Uptime      string `json:"uptime"`
	ActivePages int    `json:"active_pages"`
	MaxPages    int    `json:"max_pages"`
	Version     string `json:"version"`
}
