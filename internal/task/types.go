package task

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusPaused     Status = "paused"
)

// Valid reports whether s is one of the known task statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted,
		StatusFailed, StatusCancelled, StatusPaused:
		return true
	}
	return false
}

// Retryable reports whether a task in this status may be re-queued.
func (s Status) Retryable() bool {
	switch s {
	case StatusFailed, StatusCancelled, StatusPaused:
		return true
	}
	return false
}

// Task is one unit of translation work. The database row is the
// authoritative state; in-memory copies are snapshots.
type Task struct {
	ID             int64      `json:"id"`
	FilePath       string     `json:"file_path"`
	FileName       string     `json:"file_name"`
	Status         Status     `json:"status"`
	Progress       int        `json:"progress"`
	SourceLanguage string     `json:"source_language,omitempty"`
	TargetLanguage string     `json:"target_language"`
	Provider       string     `json:"llm_provider"`
	SubtitleTrack  *int       `json:"subtitle_track,omitempty"`
	ForceOverride  bool       `json:"force_override"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Watcher is a persisted directory subscription. The enabled flag
// toggles the filesystem subscription without deleting the row.
type Watcher struct {
	ID             int64     `json:"id"`
	Path           string    `json:"path"`
	Enabled        bool      `json:"enabled"`
	TargetLanguage string    `json:"target_language"`
	Provider       string    `json:"llm_provider"`
	CreatedAt      time.Time `json:"created_at"`
}

// TranslatedFile memoizes a finished (source, target language) pair for
// skip detection. Written once per successful completion, upserted on
// forced retranslation.
type TranslatedFile struct {
	ID             int64     `json:"id"`
	FilePath       string    `json:"file_path"`
	TargetLanguage string    `json:"target_language"`
	OutputPath     string    `json:"output_path"`
	TranslatedAt   time.Time `json:"translated_at"`
}
